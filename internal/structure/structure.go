// Package structure assembles a feasible supply-system structure for one
// demand target. Build runs three phases per supply category (primary, then
// secondary, then tertiary): discovery of components able to serve the
// required carriers, extraction of their peak inputs and outputs, and
// propagation of what they need and reject through local potentials,
// unlimited external sources and releasable sinks. A successful build freezes
// the components and their dependency shares; trial evaluation then reuses
// them without rebuilding.
package structure

import (
	"slices"

	"github.com/google/uuid"

	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/dag"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/indicator"
)

// Selection overrides discovery with explicit model codes per category. A
// category present in the map is never discovered automatically, even when
// its list is empty.
type Selection map[flow.Placement][]string

// Inputs is everything a build needs. The catalog and its registry are shared
// read-only; the demand and potentials are owned by the structure.
type Inputs struct {
	Catalog     *component.Catalog
	Environment Environment
	SystemType  SystemType
	// Preference is the global technology-preference sequence used for
	// activation order and to choose which technologies discovery considers.
	// Empty means every technology in declaration order.
	Preference []component.Technology
	Demand     flow.Flow
	Potentials map[string]flow.Flow
	Selection  Selection
}

// Member is a frozen active component and the passive bridges connecting it
// to the carrier it serves. The first bridge is the one operated.
type Member struct {
	Component *component.Component
	Bridges   []*component.Component
	Serves    string
}

// Bridge returns the operated bridge, or nil for a direct match.
func (m Member) Bridge() *component.Component {
	if len(m.Bridges) == 0 {
		return nil
	}
	return m.Bridges[0]
}

// Structure is one demand target's supply-system structure. It is owned by a
// single worker: Build mutates it and must run exactly once.
type Structure struct {
	id     string
	in     Inputs
	built  bool
	frozen bool

	stages map[flow.Placement]*stage
	deps   indicator.Dependencies
	graph  *dag.DAG

	available map[string]float64 // remaining guaranteed potential per carrier
	used      map[string]float64

	rank map[string]int // model code -> global activation rank
}

// New validates the inputs and prepares a structure for Build.
func New(in Inputs) (*Structure, error) {
	const op = "new structure"
	if in.Catalog == nil {
		return nil, invalid(op, "no component catalog")
	}
	if in.Demand.Len() == 0 || in.Demand.Max() <= 0 {
		return nil, invalid(op, "demand must have a positive peak")
	}
	if !in.Catalog.Registry().Has(in.Demand.Carrier()) {
		return nil, invalid(op, "demand carrier %s is not registered", in.Demand.Carrier())
	}
	for p := range in.Selection {
		if !slices.Contains(flow.SupplyCategories(), p) {
			return nil, invalid(op, "selection for %q, which is not a supply category", p)
		}
	}
	s := &Structure{
		id:        uuid.NewString(),
		in:        in,
		stages:    make(map[flow.Placement]*stage),
		deps:      make(indicator.Dependencies),
		available: make(map[string]float64),
		used:      make(map[string]float64),
	}
	for code, pot := range in.Potentials {
		if code != pot.Carrier() {
			return nil, invalid(op, "potential keyed %s carries %s", code, pot.Carrier())
		}
		if !in.Catalog.Registry().Has(code) {
			return nil, invalid(op, "potential carrier %s is not registered", code)
		}
		s.available[code] = pot.Min()
	}
	s.rank = activationRanks(in.Catalog, in.Preference)
	return s, nil
}

// ID returns the structure's unique identifier.
func (s *Structure) ID() string { return s.id }

// Catalog returns the catalog the structure was built from.
func (s *Structure) Catalog() *component.Catalog { return s.in.Catalog }

// Environment returns the unlimited sources and releasable sinks.
func (s *Structure) Environment() Environment { return s.in.Environment }

// Demand returns the target demand flow.
func (s *Structure) Demand() flow.Flow { return s.in.Demand }

// Potentials returns the locally available energy potentials.
func (s *Structure) Potentials() map[string]flow.Flow {
	out := make(map[string]flow.Flow, len(s.in.Potentials))
	for k, v := range s.in.Potentials {
		out[k] = v
	}
	return out
}

// Built reports whether Build completed successfully.
func (s *Structure) Built() bool { return s.frozen }

// Members returns a category's frozen components in activation order.
func (s *Structure) Members(p flow.Placement) []Member {
	st, ok := s.stages[p]
	if !ok || !s.frozen {
		return nil
	}
	out := make([]Member, 0, len(st.members))
	for _, code := range st.order {
		m := st.byCode[code]
		out = append(out, Member{Component: m.active, Bridges: slices.Clone(m.bridges), Serves: m.serves})
	}
	return out
}

// Components returns a category's active components in activation order.
func (s *Structure) Components(p flow.Placement) []*component.Component {
	var out []*component.Component
	for _, m := range s.Members(p) {
		out = append(out, m.Component)
	}
	return out
}

// ActivationOrder returns a category's model codes in activation order.
func (s *Structure) ActivationOrder(p flow.Placement) []string {
	if st, ok := s.stages[p]; ok && s.frozen {
		return slices.Clone(st.order)
	}
	return nil
}

// Required returns a category's required carriers and their peak magnitudes.
func (s *Structure) Required(p flow.Placement) map[string]float64 {
	st, ok := s.stages[p]
	if !ok {
		return nil
	}
	return cloneMap(st.required)
}

// Dependencies returns the dependency shares bounding secondary and tertiary groups.
func (s *Structure) Dependencies() indicator.Dependencies { return s.deps.Clone() }

// UsedPotentials returns how much of each potential the build consumed at peak.
func (s *Structure) UsedPotentials() map[string]float64 { return cloneMap(s.used) }

// Indicators returns a fresh capacity indicator vector shaped like the frozen
// structure, every component at full peak capacity, corrected.
func (s *Structure) Indicators(opts ...indicator.Option) (*indicator.Vector, error) {
	if !s.frozen {
		return nil, ErrNotBuilt
	}
	var inds []indicator.Indicator
	for _, p := range flow.SupplyCategories() {
		for _, m := range s.Members(p) {
			inds = append(inds, indicator.Indicator{Category: p, Code: m.Component.Code(), Carrier: m.Serves, Value: 1})
		}
	}
	return indicator.NewVector(inds, s.deps, opts...)
}

// Upstream returns the node IDs ("category/code") a component transitively
// depends on.
func (s *Structure) Upstream(p flow.Placement, code string) []string {
	if s.graph == nil {
		return nil
	}
	return s.graph.Ancestors(nodeID(p, code))
}

// Graph returns the frozen dependency graph.
func (s *Structure) Graph() *dag.DAG { return s.graph }

// EvaluationOrder returns node IDs with every component after the components
// it depends on, preferred technologies first.
func (s *Structure) EvaluationOrder() ([]string, error) {
	if s.graph == nil {
		return nil, ErrNotBuilt
	}
	return s.graph.TopologicalSort()
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
