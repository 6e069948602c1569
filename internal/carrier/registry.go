package carrier

import (
	"fmt"
	"math"
	"sort"

	"github.com/papapumpkin/caldera/internal/fault"
)

// MissingQualifierPolicy decides what ForTemperature and ForVoltage do when
// the requested value is NaN.
type MissingQualifierPolicy int

const (
	// PolicyReject fails the lookup with fault.ErrConfiguration.
	PolicyReject MissingQualifierPolicy = iota
	// PolicyFirstRow returns the first catalog row of the subtype and reports
	// the substitution through the registry's WarnFunc.
	PolicyFirstRow
)

// ParsePolicy maps a configuration value ("reject" or "first_row") to a policy.
func ParsePolicy(s string) (MissingQualifierPolicy, error) {
	switch s {
	case "", "reject":
		return PolicyReject, nil
	case "first_row":
		return PolicyFirstRow, nil
	}
	return PolicyReject, fault.Newf(fault.ErrConfiguration, "parse policy", "unknown missing-qualifier policy %q", s)
}

// WarnFunc receives human-readable notices about lookup substitutions.
type WarnFunc func(msg string)

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the missing-qualifier policy.
func WithPolicy(p MissingQualifierPolicy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithWarn sets the function notified when PolicyFirstRow substitutes a carrier.
func WithWarn(fn WarnFunc) Option {
	return func(r *Registry) { r.warn = fn }
}

// WithFeedstocks attaches hourly price and GHG tables keyed by feedstock name.
func WithFeedstocks(tables map[string]Feedstock) Option {
	return func(r *Registry) {
		for name, fs := range tables {
			r.feedstocks[name] = fs
		}
	}
}

// Registry is an immutable, explicitly constructed catalog of carriers. It is
// safe for concurrent use once built.
type Registry struct {
	carriers   []Carrier
	byCode     map[string]int
	feedstocks map[string]Feedstock
	policy     MissingQualifierPolicy
	warn       WarnFunc
}

// NewRegistry validates rows and returns a registry preserving their order.
// Duplicate codes, unknown categories and subtypes outside the allowed set
// fail with fault.ErrConfiguration.
func NewRegistry(rows []Carrier, opts ...Option) (*Registry, error) {
	r := &Registry{
		carriers:   make([]Carrier, 0, len(rows)),
		byCode:     make(map[string]int, len(rows)),
		feedstocks: make(map[string]Feedstock),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i, c := range rows {
		if c.Code == "" {
			return nil, fault.Newf(fault.ErrConfiguration, "load carriers", "row %d has no code", i+1)
		}
		if _, dup := r.byCode[c.Code]; dup {
			return nil, fault.ForCarriers(fault.ErrConfiguration, "load carriers", []string{c.Code}, fmt.Errorf("duplicate code"))
		}
		if Subtypes(c.Category) == nil {
			return nil, fault.ForCarriers(fault.ErrConfiguration, "load carriers", []string{c.Code},
				fmt.Errorf("unknown category %q", c.Category))
		}
		if !ValidSubtype(c.Category, c.Subtype) {
			return nil, fault.ForCarriers(fault.ErrConfiguration, "load carriers", []string{c.Code},
				fmt.Errorf("subtype %q is not allowed for category %s (allowed: %v)", c.Subtype, c.Category, Subtypes(c.Category)))
		}
		if c.Feedstock != "" {
			if _, ok := r.feedstocks[c.Feedstock]; !ok {
				return nil, fault.ForCarriers(fault.ErrConfiguration, "load carriers", []string{c.Code},
					fmt.Errorf("feedstock %q has no hourly table", c.Feedstock))
			}
		}
		r.byCode[c.Code] = len(r.carriers)
		r.carriers = append(r.carriers, c)
	}
	return r, nil
}

// Len returns the number of carriers.
func (r *Registry) Len() int { return len(r.carriers) }

// All returns every carrier in catalog order.
func (r *Registry) All() []Carrier {
	out := make([]Carrier, len(r.carriers))
	copy(out, r.carriers)
	return out
}

// Lookup returns the carrier with the given code.
func (r *Registry) Lookup(code string) (Carrier, error) {
	i, ok := r.byCode[code]
	if !ok {
		return Carrier{}, fault.ForCarriers(fault.ErrConfiguration, "lookup carrier", []string{code}, fmt.Errorf("not in registry"))
	}
	return r.carriers[i], nil
}

// Has reports whether code is registered.
func (r *Registry) Has(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// OfCategory returns the codes of every carrier in category c, catalog order.
func (r *Registry) OfCategory(c Category) []string {
	var codes []string
	for _, ec := range r.carriers {
		if ec.Category == c {
			codes = append(codes, ec.Code)
		}
	}
	return codes
}

// OfSubtype returns the codes of every carrier with the given category and
// subtype, catalog order.
func (r *Registry) OfSubtype(c Category, subtype string) []string {
	var codes []string
	for _, ec := range r.carriers {
		if ec.Category == c && ec.Subtype == subtype {
			codes = append(codes, ec.Code)
		}
	}
	return codes
}

// ForTemperature returns the thermal carrier of the given subtype whose mean
// temperature is nearest t. Ties go to the earlier catalog row.
func (r *Registry) ForTemperature(subtype string, t float64) (string, error) {
	return r.nearest(Thermal, subtype, t, "carrier for temperature")
}

// ForVoltage returns the electrical carrier of the given subtype whose mean
// voltage is nearest v. Ties go to the earlier catalog row.
func (r *Registry) ForVoltage(subtype string, v float64) (string, error) {
	return r.nearest(Electrical, subtype, v, "carrier for voltage")
}

func (r *Registry) nearest(cat Category, subtype string, value float64, op string) (string, error) {
	if !ValidSubtype(cat, subtype) {
		return "", fault.Newf(fault.ErrConfiguration, op, "subtype %q is not a %s subtype", subtype, cat)
	}
	if math.IsNaN(value) {
		return r.missingQualifier(cat, subtype, op)
	}
	best, bestDist := -1, math.Inf(1)
	for i, c := range r.carriers {
		if c.Category != cat || c.Subtype != subtype || !c.HasQualifier() {
			continue
		}
		if d := math.Abs(c.MeanQual - value); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", fault.Newf(fault.ErrConfiguration, op, "no %s %s carrier declares a qualifier", cat, subtype)
	}
	return r.carriers[best].Code, nil
}

func (r *Registry) missingQualifier(cat Category, subtype, op string) (string, error) {
	if r.policy != PolicyFirstRow {
		return "", fault.Newf(fault.ErrConfiguration, op, "%s %s qualifier is undefined", cat, subtype)
	}
	codes := r.OfSubtype(cat, subtype)
	if len(codes) == 0 {
		return "", fault.Newf(fault.ErrConfiguration, op, "no %s %s carrier registered", cat, subtype)
	}
	if r.warn != nil {
		r.warn(fmt.Sprintf("%s: undefined %s %s qualifier, using first row %s", op, cat, subtype, codes[0]))
	}
	return codes[0], nil
}

// Hotter returns thermal carriers whose mean temperature is above code's (or
// equal, when inclusive), nearest first. Candidates share code's subtype
// unless a subtype is given.
func (r *Registry) Hotter(code string, inclusive bool, subtype ...string) ([]string, error) {
	return r.ordered(code, inclusive, subtype, func(ref, q float64) bool { return q > ref })
}

// Colder returns thermal carriers whose mean temperature is below code's (or
// equal, when inclusive), nearest first. Candidates share code's subtype
// unless a subtype is given.
func (r *Registry) Colder(code string, inclusive bool, subtype ...string) ([]string, error) {
	return r.ordered(code, inclusive, subtype, func(ref, q float64) bool { return q < ref })
}

func (r *Registry) ordered(code string, inclusive bool, subtype []string, beyond func(ref, q float64) bool) ([]string, error) {
	ref, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	if ref.Category != Thermal || !ref.HasQualifier() {
		return nil, fault.ForCarriers(fault.ErrConfiguration, "order carriers", []string{code},
			fmt.Errorf("not a thermal carrier with a temperature"))
	}
	want := ref.Subtype
	if len(subtype) > 0 && subtype[0] != "" {
		want = subtype[0]
		if !ValidSubtype(Thermal, want) {
			return nil, fault.Newf(fault.ErrConfiguration, "order carriers", "%q is not a thermal subtype", want)
		}
	}
	type cand struct {
		code string
		dist float64
		row  int
	}
	var cands []cand
	for i, c := range r.carriers {
		if c.Code == code || c.Category != Thermal || c.Subtype != want || !c.HasQualifier() {
			continue
		}
		if beyond(ref.MeanQual, c.MeanQual) || (inclusive && c.MeanQual == ref.MeanQual) {
			cands = append(cands, cand{code: c.Code, dist: math.Abs(c.MeanQual - ref.MeanQual), row: i})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].row < cands[j].row
	})
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.code
	}
	return out, nil
}

// Between returns carriers of the given category and subtype whose mean
// qualifier lies in [low, high], catalog order.
func (r *Registry) Between(cat Category, subtype string, low, high float64) []string {
	if low > high {
		low, high = high, low
	}
	var codes []string
	for _, c := range r.carriers {
		if c.Category == cat && c.Subtype == subtype && c.HasQualifier() && c.MeanQual >= low && c.MeanQual <= high {
			codes = append(codes, c.Code)
		}
	}
	return codes
}

// OtherElectrical returns every electrical carrier except code, catalog order.
func (r *Registry) OtherElectrical(code string) []string {
	var codes []string
	for _, c := range r.carriers {
		if c.Category == Electrical && c.Code != code {
			codes = append(codes, c.Code)
		}
	}
	return codes
}
