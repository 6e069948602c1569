package component

import (
	"fmt"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/fault"
)

// Row is one line of a technology table: a capacity range of a model with its
// cost coefficients and physical parameters. Capacities are in kW.
type Row struct {
	Code         string
	Type         string
	CapMin       float64
	CapMax       float64
	A, B, C      float64
	D, E         float64
	Lifetime     float64 // years
	OMShare      float64 // % of capex per year
	InterestRate float64 // % per year

	Efficiency         float64 // COP or thermal efficiency
	ElectricEfficiency float64 // CHP only
	TMain              float64 // °C, main carrier design temperature
	TAux               float64 // °C, by-product design temperature
	TSource            float64 // °C, driving or source heat temperature
	AuxRatio           float64 // kW electricity per kW main flow
	Voltage            float64 // V
	Fuel               string  // combustible carrier code
	SourceSubtype      string  // heat pump source medium
	QualMin, QualMax   float64 // passive operating envelope
	Subtype            string  // passive medium subtype
}

// carriers is the resolved carrier layout of a row.
type carriers struct {
	main    string
	inputs  []string
	outputs []string
}

func (r Row) validate(tech Technology) error {
	op := fmt.Sprintf("load %s/%s", tech, r.Code)
	switch {
	case r.Code == "":
		return fault.Newf(fault.ErrConfiguration, "load "+string(tech), "row without model code")
	case r.CapMin < 0 || r.CapMax <= 0 || r.CapMax < r.CapMin:
		return fault.Newf(fault.ErrConfiguration, op, "invalid capacity range [%v, %v]", r.CapMin, r.CapMax)
	case r.Lifetime <= 0:
		return fault.Newf(fault.ErrConfiguration, op, "lifetime must be positive, got %v", r.Lifetime)
	case r.InterestRate < 0 || r.OMShare < 0:
		return fault.Newf(fault.ErrConfiguration, op, "negative interest rate or O&M share")
	}
	if tech.Passive() {
		if r.QualMin > r.QualMax {
			return fault.Newf(fault.ErrConfiguration, op, "operating envelope [%v, %v] is inverted", r.QualMin, r.QualMax)
		}
		if r.Efficiency <= 0 || r.Efficiency > 1 {
			return fault.Newf(fault.ErrConfiguration, op, "transfer efficiency %v outside (0, 1]", r.Efficiency)
		}
		return nil
	}
	if r.Efficiency <= 0 {
		return fault.Newf(fault.ErrConfiguration, op, "efficiency must be positive, got %v", r.Efficiency)
	}
	if r.AuxRatio < 0 || r.ElectricEfficiency < 0 {
		return fault.Newf(fault.ErrConfiguration, op, "negative auxiliary ratio or electric efficiency")
	}
	return nil
}

// resolver collects the first lookup failure so carrier layouts read as one
// expression per technology.
type resolver struct {
	reg *carrier.Registry
	err error
}

func (rv *resolver) thermal(subtype string, t float64) string {
	if rv.err != nil {
		return ""
	}
	code, err := rv.reg.ForTemperature(subtype, t)
	rv.err = err
	return code
}

func (rv *resolver) power(v float64) string {
	if rv.err != nil {
		return ""
	}
	code, err := rv.reg.ForVoltage("AC", v)
	rv.err = err
	return code
}

func (rv *resolver) fuel(code string) string {
	if rv.err != nil {
		return ""
	}
	c, err := rv.reg.Lookup(code)
	if err == nil && c.Category != carrier.Combustible {
		err = fault.ForCarriers(fault.ErrConfiguration, "resolve fuel", []string{code}, fmt.Errorf("not a combustible carrier"))
	}
	rv.err = err
	return code
}

// resolve maps a row's design parameters onto registry carriers.
func (r Row) resolve(tech Technology, reg *carrier.Registry) (carriers, error) {
	rv := &resolver{reg: reg}
	var cs carriers
	switch tech {
	case VapourCompressionChiller:
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.power(r.Voltage)}, outputs: []string{rv.thermal("water", r.TAux)}}
	case AbsorptionChiller:
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.thermal("water", r.TSource)}, outputs: []string{rv.thermal("water", r.TAux)}}
		if r.AuxRatio > 0 {
			cs.inputs = append(cs.inputs, rv.power(r.Voltage))
		}
	case Boiler:
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.fuel(r.Fuel)}}
	case HeatPump:
		sub := r.SourceSubtype
		if sub == "" {
			sub = "water"
		}
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.power(r.Voltage), rv.thermal(sub, r.TSource)}}
	case CombinedHeatPower:
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.fuel(r.Fuel)}, outputs: []string{rv.power(r.Voltage)}}
	case CoolingTower:
		cs = carriers{main: rv.thermal("water", r.TMain), inputs: []string{rv.power(r.Voltage)}, outputs: []string{rv.thermal("air", r.TAux)}}
	case HeatExchanger:
		if !carrier.ValidSubtype(carrier.Thermal, r.Subtype) {
			rv.err = fault.Newf(fault.ErrConfiguration, "resolve "+r.Code, "heat exchanger subtype %q is not thermal", r.Subtype)
		}
	case PowerTransformer:
		if !carrier.ValidSubtype(carrier.Electrical, r.Subtype) {
			rv.err = fault.Newf(fault.ErrConfiguration, "resolve "+r.Code, "transformer subtype %q is not electrical", r.Subtype)
		}
	default:
		rv.err = fmt.Errorf("%w: %s", ErrUnknownTechnology, tech)
	}
	if rv.err != nil {
		return carriers{}, fmt.Errorf("model %s/%s: %w", tech, r.Code, rv.err)
	}
	return cs, nil
}
