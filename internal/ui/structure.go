package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/structure"
)

// Structure prints a built structure: members per supply category with
// their capacities, the bridges they use and the peak demand they answer.
func (p *Printer) Structure(s *structure.Structure) {
	fmt.Fprintf(p.w, "%s %s\n", styleTitle.Render("structure"), styleMuted.Render(s.ID()))
	fmt.Fprintf(p.w, "  demand  %s peak %.1f kW\n", styleCode.Render(s.Demand().Carrier()), s.Demand().Max())

	for _, cat := range flow.SupplyCategories() {
		members := s.Members(cat)
		fmt.Fprintf(p.w, "\n%s\n", styleHeading.Render(string(cat)))
		if len(members) == 0 {
			fmt.Fprintln(p.w, styleMuted.Render("  (none)"))
			continue
		}
		for _, code := range sortedKeys(s.Required(cat)) {
			fmt.Fprintf(p.w, "  %s %s %.1f kW\n", styleMuted.Render("needs"), styleCode.Render(code), s.Required(cat)[code])
		}
		for _, m := range members {
			c := m.Component
			fmt.Fprintf(p.w, "  %s %-8s %-34s %8.1f kW  serves %s\n",
				styleAccent.Render(iconItem), c.Code(), c.Technology().Description(), c.Capacity(), styleCode.Render(m.Serves))
			for _, b := range m.Bridges {
				fmt.Fprintf(p.w, "      %s %s %s -> %s %.1f kW\n",
					styleMuted.Render(iconBridge), b.Code(), strings.Join(b.Inputs(), ","), b.MainCarrier(), b.Capacity())
			}
		}
	}

	if used := s.UsedPotentials(); len(used) > 0 {
		fmt.Fprintf(p.w, "\n%s\n", styleHeading.Render("potentials"))
		for _, code := range sortedKeys(used) {
			fmt.Fprintf(p.w, "  %s %.1f kW\n", styleCode.Render(code), used[code])
		}
	}
}

// Dependencies prints, for each member, the components that feed it, in
// evaluation order.
func (p *Printer) Dependencies(s *structure.Structure) error {
	order, err := s.EvaluationOrder()
	if err != nil {
		return err
	}
	g := s.Graph()
	fmt.Fprintf(p.w, "\n%s\n", styleHeading.Render("evaluation order"))
	for i, id := range order {
		deps := g.Dependencies(id)
		line := fmt.Sprintf("  %2d. %s", i+1, id)
		if len(deps) > 0 {
			line += styleMuted.Render(" <- " + strings.Join(deps, ", "))
		}
		fmt.Fprintln(p.w, line)
	}
	return nil
}

// BuildFailed prints a failed build with the carriers named by the error.
func (p *Printer) BuildFailed(err error, carriers []string) {
	fmt.Fprintf(p.w, "%s %v\n", styleDanger.Render(iconFailed+" build failed"), err)
	if len(carriers) > 0 {
		fmt.Fprintf(p.w, "  carriers: %s\n", styleCode.Render(strings.Join(carriers, ", ")))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
