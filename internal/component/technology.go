package component

import (
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/flow"
)

// Technology identifies a family of equipment models. The set is closed:
// every technology has a fixed carrier layout and operate relation.
type Technology string

// Known technologies, in declaration order.
const (
	VapourCompressionChiller Technology = "VCC"
	AbsorptionChiller        Technology = "ACH"
	Boiler                   Technology = "BO"
	HeatPump                 Technology = "HP"
	CombinedHeatPower        Technology = "CHP"
	CoolingTower             Technology = "CT"
	HeatExchanger            Technology = "HEX"
	PowerTransformer         Technology = "PT"
)

// Technologies returns every technology in declaration order. Catalog
// iteration and activation tie-breaks follow this order.
func Technologies() []Technology {
	return []Technology{
		VapourCompressionChiller, AbsorptionChiller, Boiler, HeatPump,
		CombinedHeatPower, CoolingTower, HeatExchanger, PowerTransformer,
	}
}

// ParseTechnology converts a code such as "VCC" into a Technology.
func ParseTechnology(s string) (Technology, error) {
	t := Technology(s)
	if !slices.Contains(Technologies(), t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTechnology, s)
	}
	return t, nil
}

// Passive reports whether t bridges carriers of one medium without an
// active energy input.
func (t Technology) Passive() bool {
	return t == HeatExchanger || t == PowerTransformer
}

// Absorber reports whether t's main carrier is consumed rather than produced.
func (t Technology) Absorber() bool {
	return t == CoolingTower
}

// Placements returns the supply categories a technology may occupy.
func (t Technology) Placements() []flow.Placement {
	switch t {
	case VapourCompressionChiller, AbsorptionChiller:
		return []flow.Placement{flow.Primary}
	case Boiler, HeatPump, CombinedHeatPower:
		return []flow.Placement{flow.Primary, flow.Secondary}
	case CoolingTower:
		return []flow.Placement{flow.Tertiary}
	case HeatExchanger, PowerTransformer:
		return flow.SupplyCategories()
	}
	return nil
}

// CanOccupy reports whether t may be placed at p.
func (t Technology) CanOccupy(p flow.Placement) bool {
	return slices.Contains(t.Placements(), p)
}

// Description returns a human-readable name.
func (t Technology) Description() string {
	switch t {
	case VapourCompressionChiller:
		return "vapour compression chiller"
	case AbsorptionChiller:
		return "absorption chiller"
	case Boiler:
		return "boiler"
	case HeatPump:
		return "heat pump"
	case CombinedHeatPower:
		return "combined heat and power plant"
	case CoolingTower:
		return "cooling tower"
	case HeatExchanger:
		return "heat exchanger"
	case PowerTransformer:
		return "power transformer"
	}
	return string(t)
}
