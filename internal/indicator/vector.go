// Package indicator implements the capacity indicator vector: one installed
// fraction of peak capacity per frozen active component, validated per
// (category, main carrier) group against bounds derived from upstream
// indicators. An outer search mutates vectors; every assignment is corrected
// so that no group exceeds its bound times the overdimensioning tolerance.
package indicator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/papapumpkin/caldera/internal/flow"
)

// DefaultOverdimensioning is the slack by which a group may exceed its bound.
const DefaultOverdimensioning = 1.2

// Indicator is the installed fraction of one component's peak capacity.
type Indicator struct {
	Category flow.Placement
	Code     string
	Carrier  string // carrier of the category demand the component serves
	Value    float64
}

// Share is an upstream component's fixed proportion of a carrier at peak.
type Share struct {
	Category flow.Placement
	Code     string
	Factor   float64
}

// Dependencies maps category, then carrier, to the upstream shares that
// bound that group. Primary groups carry no entry.
type Dependencies map[flow.Placement]map[string][]Share

// Clone returns a deep copy.
func (d Dependencies) Clone() Dependencies {
	out := make(Dependencies, len(d))
	for cat, byCarrier := range d {
		m := make(map[string][]Share, len(byCarrier))
		for code, shares := range byCarrier {
			m[code] = slices.Clone(shares)
		}
		out[cat] = m
	}
	return out
}

// Option configures a Vector.
type Option func(*Vector)

// WithTolerance overrides the overdimensioning tolerance. Values below 1
// are rejected by NewVector.
func WithTolerance(f float64) Option {
	return func(v *Vector) { v.tolerance = f }
}

// WithRand injects the random source used to break correction ties. Seed it
// identically to reproduce a correction.
func WithRand(r *rand.Rand) Option {
	return func(v *Vector) { v.rng = r }
}

// WithSeed is WithRand over a PCG source seeded with seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Vector is an ordered set of indicators plus the dependency map that bounds
// them. A Vector belongs to one trial and must not be shared between goroutines.
type Vector struct {
	inds      []Indicator
	deps      Dependencies
	tolerance float64
	rng       *rand.Rand
}

// NewVector validates the layout, quantizes every value and corrects the result.
func NewVector(inds []Indicator, deps Dependencies, opts ...Option) (*Vector, error) {
	v := &Vector{
		inds:      make([]Indicator, len(inds)),
		deps:      deps.Clone(),
		tolerance: DefaultOverdimensioning,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if v.tolerance < 1 {
		return nil, fmt.Errorf("%w: tolerance %v is below 1", ErrInvalidIndicator, v.tolerance)
	}
	seen := make(map[string]bool, len(inds))
	for i, ind := range inds {
		if !slices.Contains(flow.SupplyCategories(), ind.Category) {
			return nil, fmt.Errorf("%w: %s/%s has category %q", ErrInvalidIndicator, ind.Category, ind.Code, ind.Category)
		}
		key := string(ind.Category) + "/" + ind.Code
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidIndicator, key)
		}
		seen[key] = true
		ind.Value = quantize(ind.Value)
		v.inds[i] = ind
	}
	v.Correct()
	return v, nil
}

// Len returns the number of indicators.
func (v *Vector) Len() int { return len(v.inds) }

// Tolerance returns the overdimensioning tolerance.
func (v *Vector) Tolerance() float64 { return v.tolerance }

// Indicators returns a copy of the indicators in order.
func (v *Vector) Indicators() []Indicator { return slices.Clone(v.inds) }

// Dependencies returns a copy of the dependency map.
func (v *Vector) Dependencies() Dependencies { return v.deps.Clone() }

// Values returns the indicator values in order.
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.inds))
	for i, ind := range v.inds {
		out[i] = ind.Value
	}
	return out
}

// Value returns the value of the indicator for (category, code), and whether
// it exists.
func (v *Vector) Value(cat flow.Placement, code string) (float64, bool) {
	for _, ind := range v.inds {
		if ind.Category == cat && ind.Code == code {
			return ind.Value, true
		}
	}
	return 0, false
}

// Set assigns every value in order, clamping to [0, 1], and corrects.
func (v *Vector) Set(values []float64) error {
	if len(values) != len(v.inds) {
		return fmt.Errorf("%w: got %d values for %d indicators", ErrShape, len(values), len(v.inds))
	}
	for i, val := range values {
		v.inds[i].Value = quantize(val)
	}
	v.Correct()
	return nil
}

// Category returns the values of one category in order.
func (v *Vector) Category(cat flow.Placement) []float64 {
	var out []float64
	for _, ind := range v.inds {
		if ind.Category == cat {
			out = append(out, ind.Value)
		}
	}
	return out
}

// SetCategory assigns the values of one category in order and corrects.
func (v *Vector) SetCategory(cat flow.Placement, values []float64) error {
	var idx []int
	for i, ind := range v.inds {
		if ind.Category == cat {
			idx = append(idx, i)
		}
	}
	if len(idx) != len(values) {
		return fmt.Errorf("%w: got %d values for %d %s indicators", ErrShape, len(values), len(idx), cat)
	}
	for j, i := range idx {
		v.inds[i].Value = quantize(values[j])
	}
	v.Correct()
	return nil
}

// Randomize draws every value uniformly from {0, 0.01, ..., 1} and corrects.
func (v *Vector) Randomize() {
	for i := range v.inds {
		v.inds[i].Value = float64(v.rng.IntN(101)) / 100
	}
	v.Correct()
}

// Clone returns an independent copy with its own random source derived from v's.
func (v *Vector) Clone() *Vector {
	return &Vector{
		inds:      slices.Clone(v.inds),
		deps:      v.deps.Clone(),
		tolerance: v.tolerance,
		rng:       rand.New(rand.NewPCG(v.rng.Uint64(), v.rng.Uint64())),
	}
}

// Key renders the ordered category, code and value of every indicator. Two
// vectors are Equal exactly when their keys match.
func (v *Vector) Key() string {
	var b strings.Builder
	for i, ind := range v.inds {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(string(ind.Category))
		b.WriteByte('/')
		b.WriteString(ind.Code)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(ind.Value, 'f', 2, 64))
	}
	return b.String()
}

// StructureKey renders the ordered category and code of every indicator.
func (v *Vector) StructureKey() string {
	parts := make([]string, len(v.inds))
	for i, ind := range v.inds {
		parts[i] = string(ind.Category) + "/" + ind.Code
	}
	return strings.Join(parts, ";")
}

// Equal reports structural equality: same categories, codes and values in order.
func (v *Vector) Equal(o *Vector) bool {
	return o != nil && v.Key() == o.Key()
}

// MatchesStructure reports whether o has the same categories and codes in order.
func (v *Vector) MatchesStructure(o *Vector) bool {
	return o != nil && v.StructureKey() == o.StructureKey()
}

// quantize clamps to [0, 1] and rounds to two decimals.
func quantize(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return math.Round(x*100) / 100
}

// cents converts a two-decimal value to integer hundredths.
func cents(x float64) int {
	return int(math.Round(x * 100))
}
