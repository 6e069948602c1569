package component

import (
	"fmt"

	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
)

// Operation is the result of operating an active component: the flows it
// needs and the by-product flows it releases, keyed by carrier code.
type Operation struct {
	Inputs  map[string]flow.Flow
	Outputs map[string]flow.Flow
}

// Operate runs an active component at the target main-carrier flow. The
// target must carry the component's main carrier and never exceed its
// capacity. Operate has no side effects; identical targets yield identical
// operations.
func (c *Component) Operate(target flow.Flow) (Operation, error) {
	op := "operate " + c.Code()
	if c.Passive() {
		return Operation{}, fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: use Convert", ErrPassive))
	}
	if err := c.checkTarget(op, target, c.main); err != nil {
		return Operation{}, err
	}

	b := &operationBuilder{c: c, target: target, op: Operation{
		Inputs:  make(map[string]flow.Flow, len(c.inputs)),
		Outputs: make(map[string]flow.Flow, len(c.outputs)),
	}}
	r := c.row
	switch c.Technology() {
	case VapourCompressionChiller:
		// electricity = Q/COP, condenser heat = Q + Q/COP
		b.input(c.inputs[0], 1/r.Efficiency)
		b.output(c.outputs[0], 1+1/r.Efficiency)
	case AbsorptionChiller:
		b.input(c.inputs[0], 1/r.Efficiency)
		if len(c.inputs) > 1 {
			b.input(c.inputs[1], r.AuxRatio)
		}
		b.output(c.outputs[0], 1+1/r.Efficiency)
	case Boiler:
		b.input(c.inputs[0], 1/r.Efficiency)
	case HeatPump:
		// the evaporator supplies what the compressor does not
		b.input(c.inputs[0], 1/r.Efficiency)
		b.input(c.inputs[1], max(1-1/r.Efficiency, 0))
	case CombinedHeatPower:
		b.input(c.inputs[0], 1/r.Efficiency)
		b.output(c.outputs[0], r.ElectricEfficiency/r.Efficiency)
	case CoolingTower:
		b.input(c.inputs[0], r.AuxRatio)
		b.output(c.outputs[0], 1+r.AuxRatio)
	default:
		return Operation{}, fmt.Errorf("%w: %s", ErrUnknownTechnology, c.Technology())
	}
	if b.err != nil {
		return Operation{}, fmt.Errorf("%s: %w", op, b.err)
	}
	return b.op, nil
}

type operationBuilder struct {
	c      *Component
	target flow.Flow
	op     Operation
	err    error
}

func (b *operationBuilder) input(code string, k float64) {
	b.add(b.op.Inputs, code, flow.Upstream(b.c.placement), b.c.placement, k)
}

func (b *operationBuilder) output(code string, k float64) {
	b.add(b.op.Outputs, code, b.c.placement, flow.Downstream(b.c.placement), k)
}

func (b *operationBuilder) add(dst map[string]flow.Flow, code string, in, out flow.Placement, k float64) {
	if b.err != nil {
		return
	}
	f, err := b.target.As(in, out, code, k)
	if err != nil {
		b.err = err
		return
	}
	if prev, ok := dst[code]; ok {
		f, err = prev.Add(f)
		if err != nil {
			b.err = err
			return
		}
	}
	dst[code] = f
}

// Supply converts a passive bridge's delivered flow into the flow it must
// draw: target carries the bridge's output carrier and the result carries its
// input carrier, divided by the transfer efficiency. Generators use it to
// find the flow they have to produce.
func (c *Component) Supply(target flow.Flow) (flow.Flow, error) {
	op := "convert " + c.Code()
	if !c.Passive() {
		return flow.Flow{}, fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: use Operate", ErrPassive))
	}
	if err := c.checkTarget(op, target, c.outputs[0]); err != nil {
		return flow.Flow{}, err
	}
	return target.As(target.In(), target.Out(), c.inputs[0], 1/c.row.Efficiency)
}

// Pass forwards a flow through a passive bridge: target carries the bridge's
// input carrier and the result carries its output carrier at the same
// magnitude, since heat handed to an absorber must all be rejected.
func (c *Component) Pass(target flow.Flow) (flow.Flow, error) {
	op := "convert " + c.Code()
	if !c.Passive() {
		return flow.Flow{}, fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: use Operate", ErrPassive))
	}
	if err := c.checkTarget(op, target, c.inputs[0]); err != nil {
		return flow.Flow{}, err
	}
	return target.As(target.In(), target.Out(), c.outputs[0], 1)
}
