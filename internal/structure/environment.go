package structure

import (
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/carrier"
)

// SystemType tells the builder whether the supply system heats or cools.
type SystemType string

// Supply system types.
const (
	Heating SystemType = "heating"
	Cooling SystemType = "cooling"
)

// ParseSystemType converts "heating" or "cooling" into a SystemType.
func ParseSystemType(s string) (SystemType, error) {
	switch SystemType(s) {
	case Heating, Cooling:
		return SystemType(s), nil
	}
	return "", invalid("parse system type", "%q is neither heating nor cooling", s)
}

// Sources lists which external supplies are available without limit.
type Sources struct {
	PowerGrid   bool
	FossilFuels bool
	BioFuels    bool
}

// Environment is what the surroundings of a supply system provide without
// limit and accept without limit.
type Environment struct {
	Ambient    string   // ambient air carrier
	Unlimited  []string // carriers that can be drawn from outside without limit
	Releasable []string // carriers that can be released to the environment or a grid
}

// NewEnvironment derives the unlimited sources and releasable sinks.
// Ambient air is always available. Grid electricity, fossil fuels and
// biofuels are available when enabled in sources. Heating systems may release
// heat into any air carrier; cooling systems only into air at or above
// ambient temperature. Every electrical carrier can be fed into the grid.
func NewEnvironment(reg *carrier.Registry, sys SystemType, ambientTemp float64, sources Sources) (Environment, error) {
	ambient, err := reg.ForTemperature("air", ambientTemp)
	if err != nil {
		return Environment{}, fmt.Errorf("ambient air carrier: %w", err)
	}
	env := Environment{Ambient: ambient, Unlimited: []string{ambient}}
	if sources.PowerGrid {
		env.Unlimited = append(env.Unlimited, reg.OfCategory(carrier.Electrical)...)
	}
	if sources.FossilFuels {
		env.Unlimited = append(env.Unlimited, reg.OfSubtype(carrier.Combustible, "fossil")...)
	}
	if sources.BioFuels {
		env.Unlimited = append(env.Unlimited, reg.OfSubtype(carrier.Combustible, "biofuel")...)
	}

	switch sys {
	case Heating:
		env.Releasable = reg.OfSubtype(carrier.Thermal, "air")
	case Cooling:
		hotter, err := reg.Hotter(ambient, true)
		if err != nil {
			return Environment{}, err
		}
		env.Releasable = append([]string{ambient}, hotter...)
	default:
		return Environment{}, invalid("environment", "%q is neither heating nor cooling", sys)
	}
	env.Releasable = append(env.Releasable, reg.OfCategory(carrier.Electrical)...)
	return env, nil
}

// IsUnlimited reports whether code can be drawn without limit.
func (e Environment) IsUnlimited(code string) bool { return slices.Contains(e.Unlimited, code) }

// IsReleasable reports whether code can be released.
func (e Environment) IsReleasable(code string) bool { return slices.Contains(e.Releasable, code) }
