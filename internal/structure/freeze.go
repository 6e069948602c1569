package structure

import (
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/dag"
	"github.com/papapumpkin/caldera/internal/flow"
)

// activationRanks orders every active model by its technology's position in
// the preference sequence, then by catalog order. Technologies missing from
// the preference follow in declaration order.
func activationRanks(cat *component.Catalog, pref []component.Technology) map[string]int {
	techs := slices.Clone(pref)
	for _, t := range component.Technologies() {
		if !slices.Contains(techs, t) {
			techs = append(techs, t)
		}
	}
	rank := make(map[string]int)
	for _, t := range techs {
		if t.Passive() {
			continue
		}
		for _, m := range cat.Models(t) {
			if _, ok := rank[m.Code]; !ok {
				rank[m.Code] = len(rank)
			}
		}
	}
	return rank
}

// freeze fixes the activation order of every category and the dependency
// graph between components.
func (s *Structure) freeze() error {
	g := dag.New()
	for _, p := range flow.SupplyCategories() {
		st := s.stages[p]
		st.order = make([]string, 0, len(st.members))
		for _, m := range st.members {
			st.order = append(st.order, m.active.Code())
		}
		slices.SortStableFunc(st.order, func(a, b string) int { return s.rank[a] - s.rank[b] })
		for _, code := range st.order {
			if err := g.AddNode(nodeID(p, code), code, len(s.rank)-s.rank[code]); err != nil {
				return err
			}
		}
	}
	for _, p := range flow.SupplyCategories() {
		st := s.stages[p]
		for _, m := range st.members {
			for _, sh := range s.deps[p][m.serves] {
				if err := g.AddEdge(nodeID(p, m.active.Code()), nodeID(sh.Category, sh.Code)); err != nil {
					return fmt.Errorf("freeze: %w", err)
				}
			}
		}
	}
	s.graph = g
	s.frozen = true
	return nil
}

func nodeID(p flow.Placement, code string) string { return string(p) + "/" + code }
