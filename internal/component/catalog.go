// Package component holds the equipment catalog and the components built from
// it. Technologies form a closed set of tagged variants that share one
// capability record; each variant's operate relation is selected by a switch
// on its Technology rather than by dynamic dispatch.
package component

import (
	"fmt"
	"slices"
	"sort"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
)

// Model is a catalog model code with its capacity-range rows in catalog order.
type Model struct {
	Code       string
	Technology Technology
	rows       []Row
	layouts    []carriers
}

// Rows returns a copy of the model's rows.
func (m *Model) Rows() []Row {
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out
}

// CapMin returns the smallest declared minimum capacity across rows.
func (m *Model) CapMin() float64 {
	lo := m.rows[0].CapMin
	for _, r := range m.rows[1:] {
		lo = min(lo, r.CapMin)
	}
	return lo
}

// CapMax returns the largest declared maximum capacity across rows.
func (m *Model) CapMax() float64 {
	hi := m.rows[0].CapMax
	for _, r := range m.rows[1:] {
		hi = max(hi, r.CapMax)
	}
	return hi
}

// MainCarriers returns the distinct main carriers of the model's rows.
// Passive models have none.
func (m *Model) MainCarriers() []string {
	var out []string
	for _, l := range m.layouts {
		if l.main != "" && !slices.Contains(out, l.main) {
			out = append(out, l.main)
		}
	}
	return out
}

// selectRow picks the first row whose range contains capacity. Below every
// range it rounds up to the nearest declared minimum; above every range it fails.
func (m *Model) selectRow(capacity float64) (int, float64, error) {
	for i, r := range m.rows {
		if capacity >= r.CapMin && capacity <= r.CapMax {
			return i, capacity, nil
		}
	}
	best := -1
	for i, r := range m.rows {
		if r.CapMin > capacity && (best < 0 || r.CapMin < m.rows[best].CapMin) {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, fault.Newf(fault.ErrConfiguration, fmt.Sprintf("instantiate %s/%s", m.Technology, m.Code),
			"capacity %.3f kW exceeds every declared range (max %.3f kW)", capacity, m.CapMax())
	}
	return best, m.rows[best].CapMin, nil
}

// Catalog is the immutable set of equipment models, grouped by technology in
// declaration order. It is safe for concurrent use.
type Catalog struct {
	reg    *carrier.Registry
	models map[Technology][]*Model
	byCode map[string]*Model
}

// NewCatalog validates every row, resolves its carriers against reg and
// groups rows by model code. Model codes must be unique across technologies.
func NewCatalog(reg *carrier.Registry, tables map[Technology][]Row) (*Catalog, error) {
	c := &Catalog{
		reg:    reg,
		models: make(map[Technology][]*Model),
		byCode: make(map[string]*Model),
	}
	for tech := range tables {
		if _, err := ParseTechnology(string(tech)); err != nil {
			return nil, fault.Newf(fault.ErrConfiguration, "load catalog", "%v", err)
		}
	}
	for _, tech := range Technologies() {
		for _, row := range tables[tech] {
			if err := row.validate(tech); err != nil {
				return nil, err
			}
			layout, err := row.resolve(tech, reg)
			if err != nil {
				return nil, err
			}
			m, ok := c.byCode[row.Code]
			if !ok {
				m = &Model{Code: row.Code, Technology: tech}
				c.byCode[row.Code] = m
				c.models[tech] = append(c.models[tech], m)
			} else if m.Technology != tech {
				return nil, fault.Newf(fault.ErrConfiguration, "load catalog",
					"model code %s declared by both %s and %s", row.Code, m.Technology, tech)
			}
			m.rows = append(m.rows, row)
			m.layouts = append(m.layouts, layout)
		}
	}
	return c, nil
}

// Registry returns the carrier registry the catalog was resolved against.
func (c *Catalog) Registry() *carrier.Registry { return c.reg }

// Models returns the models of a technology in catalog order.
func (c *Catalog) Models(tech Technology) []*Model {
	return slices.Clone(c.models[tech])
}

// Model returns the model with the given code.
func (c *Catalog) Model(code string) (*Model, bool) {
	m, ok := c.byCode[code]
	return m, ok
}

// Len returns the number of models.
func (c *Catalog) Len() int { return len(c.byCode) }

// Carriers returns every carrier code referenced by an active model row, sorted.
func (c *Catalog) Carriers() []string {
	seen := make(map[string]bool)
	for _, m := range c.byCode {
		for _, l := range m.layouts {
			if l.main != "" {
				seen[l.main] = true
			}
			for _, code := range append(slices.Clone(l.inputs), l.outputs...) {
				seen[code] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Instantiate builds an active component of the given model at placement p.
// The capacity is matched against the model's rows (see selectRow).
func (c *Catalog) Instantiate(model string, p flow.Placement, capacity float64) (*Component, error) {
	m, err := c.activeModel(model, p)
	if err != nil {
		return nil, err
	}
	return m.instantiate(p, capacity)
}

func (c *Catalog) activeModel(model string, p flow.Placement) (*Model, error) {
	op := "instantiate " + model
	m, ok := c.byCode[model]
	if !ok {
		return nil, fault.Newf(fault.ErrConfiguration, op, "no catalog row for model %q", model)
	}
	if m.Technology.Passive() {
		return nil, fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: %s is passive", ErrPassive, m.Technology))
	}
	if !m.Technology.CanOccupy(p) {
		return nil, fault.Newf(fault.ErrConfiguration, op, "%s cannot be placed in %s", m.Technology.Description(), p)
	}
	return m, nil
}

func (m *Model) instantiate(p flow.Placement, capacity float64) (*Component, error) {
	if capacity <= 0 {
		return nil, fault.Newf(fault.ErrConfiguration, fmt.Sprintf("instantiate %s/%s", m.Technology, m.Code),
			"capacity must be positive, got %v", capacity)
	}
	i, matched, err := m.selectRow(capacity)
	if err != nil {
		return nil, err
	}
	l := m.layouts[i]
	return &Component{
		model:     m,
		row:       m.rows[i],
		placement: p,
		capacity:  matched,
		main:      l.main,
		inputs:    slices.Clone(l.inputs),
		outputs:   slices.Clone(l.outputs),
	}, nil
}

// Bridge builds a passive component of the given model converting carrier
// from into carrier to at placement p. Both carriers must belong to the
// model's medium and lie inside its operating envelope.
func (c *Catalog) Bridge(model string, p flow.Placement, from, to string, capacity float64) (*Component, error) {
	op := "bridge " + model
	m, ok := c.byCode[model]
	if !ok {
		return nil, fault.Newf(fault.ErrConfiguration, op, "no catalog row for model %q", model)
	}
	if !m.Technology.Passive() {
		return nil, fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: %s is active", ErrPassive, m.Technology))
	}
	if capacity <= 0 {
		return nil, fault.Newf(fault.ErrConfiguration, op, "capacity must be positive, got %v", capacity)
	}
	i, matched, err := m.selectRow(capacity)
	if err != nil {
		return nil, err
	}
	row := m.rows[i]
	want := carrier.Thermal
	if m.Technology == PowerTransformer {
		want = carrier.Electrical
	}
	for _, code := range []string{from, to} {
		ec, err := c.reg.Lookup(code)
		if err != nil {
			return nil, err
		}
		if ec.Category != want || ec.Subtype != row.Subtype {
			return nil, fault.ForCarriers(fault.ErrConfiguration, op, []string{from, to},
				fmt.Errorf("%s is %s/%s, model bridges %s/%s", code, ec.Category, ec.Subtype, want, row.Subtype))
		}
		if !ec.HasQualifier() || ec.MeanQual < row.QualMin || ec.MeanQual > row.QualMax {
			return nil, fault.ForCarriers(fault.ErrConfiguration, op, []string{from, to},
				fmt.Errorf("%s qualifier outside operating envelope [%v, %v]", code, row.QualMin, row.QualMax))
		}
	}
	return &Component{
		model:     m,
		row:       row,
		placement: p,
		capacity:  matched,
		main:      to,
		inputs:    []string{from},
		outputs:   []string{to},
	}, nil
}
