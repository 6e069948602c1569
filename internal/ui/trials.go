package ui

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/caldera/internal/supply"
)

// Front prints the non-dominated trials with one column per objective.
func (p *Printer) Front(front []supply.Trial, objectives []supply.Objective) {
	fmt.Fprintf(p.w, "\n%s %s\n", styleTitle.Render("front"), styleMuted.Render(fmt.Sprintf("%d trial(s)", len(front))))
	if len(front) == 0 {
		fmt.Fprintln(p.w, styleMuted.Render("  (no feasible trial)"))
		return
	}
	header := fmt.Sprintf("  %6s", "trial")
	for _, o := range objectives {
		header += fmt.Sprintf(" %22s", o)
	}
	fmt.Fprintln(p.w, styleHeading.Render(header))
	for _, t := range front {
		line := fmt.Sprintf("  %6d", t.Index)
		for _, f := range t.Fitness {
			line += fmt.Sprintf(" %22.2f", f)
		}
		fmt.Fprintln(p.w, line)
		fmt.Fprintf(p.w, "         %s\n", styleMuted.Render(installed(t)))
	}
}

// installed summarizes the capacities installed by a trial.
func installed(t supply.Trial) string {
	parts := make([]string, 0, len(t.Result.Installed))
	for _, in := range t.Result.Installed {
		parts = append(parts, fmt.Sprintf("%s/%s=%.0f%%", in.Category, in.Component.Code(), in.Value*100))
	}
	return strings.Join(parts, " ")
}

// TrialRejected prints a trial that failed evaluation.
func (p *Printer) TrialRejected(index int, err error) {
	fmt.Fprintf(p.w, "  %s trial %d: %v\n", styleMuted.Render(iconFailed), index, err)
}
