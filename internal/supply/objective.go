package supply

import "fmt"

// Objective is a quantity the outer search minimises.
type Objective string

// Objectives a trial reports.
const (
	Cost               Objective = "cost"
	GHGEmissions       Objective = "ghg_emissions"
	SystemEnergyDemand Objective = "system_energy_demand"
	AnthropogenicHeat  Objective = "anthropogenic_heat"
)

// Objectives returns every objective in reporting order.
func Objectives() []Objective {
	return []Objective{Cost, GHGEmissions, SystemEnergyDemand, AnthropogenicHeat}
}

// ParseObjective converts a configuration value into an Objective.
func ParseObjective(s string) (Objective, error) {
	for _, o := range Objectives() {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownObjective, s)
}

// ParseObjectives converts a list of configuration values, keeping order.
func ParseObjectives(ss []string) ([]Objective, error) {
	out := make([]Objective, 0, len(ss))
	for _, s := range ss {
		o, err := ParseObjective(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
