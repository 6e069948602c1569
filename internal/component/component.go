package component

import (
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
)

// capacityTolerance absorbs floating-point noise when comparing a flow
// against rated capacity.
const capacityTolerance = 1e-9

// Component is an immutable piece of equipment sized at a fixed capacity. A
// new capacity means a new component (see Resized).
type Component struct {
	model     *Model
	row       Row
	placement flow.Placement
	capacity  float64
	main      string
	inputs    []string
	outputs   []string
}

// Technology returns the component's technology.
func (c *Component) Technology() Technology { return c.model.Technology }

// Code returns the model code.
func (c *Component) Code() string { return c.model.Code }

// Type returns the catalog type tag of the matched row.
func (c *Component) Type() string { return c.row.Type }

// Row returns the matched catalog row.
func (c *Component) Row() Row { return c.row }

// Placement returns the supply category the component occupies.
func (c *Component) Placement() flow.Placement { return c.placement }

// Capacity returns the installed capacity in kW.
func (c *Component) Capacity() float64 { return c.capacity }

// MainCarrier returns the carrier the component produces (generators), absorbs
// (absorbers) or delivers (passive bridges).
func (c *Component) MainCarrier() string { return c.main }

// Inputs returns the carriers the component consumes besides an absorbed main carrier.
func (c *Component) Inputs() []string { return slices.Clone(c.inputs) }

// Outputs returns the by-product carriers the component releases.
func (c *Component) Outputs() []string { return slices.Clone(c.outputs) }

// Passive reports whether the component is a passive bridge.
func (c *Component) Passive() bool { return c.model.Technology.Passive() }

// Efficiency returns the rated COP, efficiency or transfer efficiency.
func (c *Component) Efficiency() float64 { return c.row.Efficiency }

// Resized returns a new component of the same model and placement at another
// capacity. Passive bridges keep their carriers.
func (c *Component) Resized(capacity float64) (*Component, error) {
	if !c.Passive() {
		return c.model.instantiate(c.placement, capacity)
	}
	if capacity <= 0 {
		return nil, fault.Newf(fault.ErrConfiguration, "resize "+c.Code(), "capacity must be positive, got %v", capacity)
	}
	i, matched, err := c.model.selectRow(capacity)
	if err != nil {
		return nil, err
	}
	out := *c
	out.row = c.model.rows[i]
	out.capacity = matched
	out.inputs = slices.Clone(c.inputs)
	out.outputs = slices.Clone(c.outputs)
	return &out, nil
}

// String renders the component for diagnostics.
func (c *Component) String() string {
	return fmt.Sprintf("%s/%s@%s(%.1f kW, main %s)", c.Technology(), c.Code(), c.placement, c.capacity, c.main)
}

func (c *Component) checkTarget(op string, target flow.Flow, want string) error {
	if target.Carrier() != want {
		return fault.ForCarriers(fault.ErrCarrierMismatch, op, []string{target.Carrier(), want},
			fmt.Errorf("%s serves %s, asked for %s", c.Code(), want, target.Carrier()))
	}
	if peak := target.Max(); peak > c.capacity*(1+capacityTolerance)+capacityTolerance {
		return fault.ForCarriers(fault.ErrCapacityMismatch, op, []string{want},
			fmt.Errorf("%s rated %.3f kW, asked for %.3f kW", c.Code(), c.capacity, peak))
	}
	return nil
}
