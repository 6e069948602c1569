// Package supply evaluates trial designs against a frozen supply-system
// structure. A capacity indicator vector decides how much of each component
// is installed; the installed components are then operated hour by hour,
// category by category, each demand carrier filling the components that
// serve it in activation order until it is met. What the components need is
// drawn from local potentials and unlimited sources, what they reject is
// released to the environment or a grid, and the resulting flows are priced
// through the carrier registry's feedstock tables.
package supply

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/indicator"
	"github.com/papapumpkin/caldera/internal/structure"
)

// balanceTolerance is the demand in kW still considered met.
const balanceTolerance = 1e-6

// Installed is a component installed for one trial.
type Installed struct {
	Category  flow.Placement
	Serves    string
	Value     float64
	Component *component.Component
	Bridge    *component.Component
}

// limit is the largest flow of the served carrier the unit can deliver or
// absorb.
func (u Installed) limit() float64 {
	c := u.Component.Capacity()
	if u.Bridge == nil {
		return c
	}
	if u.Category != flow.Tertiary {
		c *= u.Bridge.Efficiency()
	}
	return min(c, u.Bridge.Capacity())
}

func (u Installed) operate(target flow.Flow) (component.Operation, error) {
	if u.Bridge != nil {
		var err error
		if u.Category == flow.Tertiary {
			target, err = u.Bridge.Pass(target)
		} else {
			target, err = u.Bridge.Supply(target)
		}
		if err != nil {
			return component.Operation{}, err
		}
	}
	return u.Component.Operate(target)
}

type evaluation struct {
	reg       *carrier.Registry
	env       structure.Environment
	steps     int
	units     map[flow.Placement][]Installed
	potential map[string]flow.Flow
	res       *Result
}

// Evaluate installs the components of a frozen structure at the capacities
// the vector assigns and operates them against demand. Every input must be
// drawn and every output released; otherwise the trial fails with
// fault.ErrUnmetEnergyBalance naming the carriers left over. Evaluate never
// changes the structure.
func Evaluate(s *structure.Structure, v *indicator.Vector, demand flow.Flow) (*Result, error) {
	if !s.Built() {
		return nil, structure.ErrNotBuilt
	}
	if demand.Carrier() != s.Demand().Carrier() {
		return nil, fault.ForCarriers(fault.ErrCarrierMismatch, "evaluate", []string{demand.Carrier(), s.Demand().Carrier()},
			errors.New("demand carrier differs from the structure's"))
	}
	e := &evaluation{
		reg:       s.Catalog().Registry(),
		env:       s.Environment(),
		steps:     demand.Len(),
		units:     make(map[flow.Placement][]Installed),
		potential: s.Potentials(),
		res:       newResult(),
	}
	if err := e.install(s, v); err != nil {
		return nil, err
	}

	target, err := demand.WithPlacement(flow.Primary, flow.Consumer)
	if err != nil {
		return nil, err
	}
	if err := e.stage(flow.Primary, map[string]flow.Flow{target.Carrier(): target}, true); err != nil {
		return nil, err
	}
	if err := e.stage(flow.Secondary, e.res.Inputs[flow.Primary], true); err != nil {
		return nil, err
	}
	rejected, err := aggregate(e.res.Outputs[flow.Primary], e.res.Outputs[flow.Secondary])
	if err != nil {
		return nil, err
	}
	if err := e.stage(flow.Tertiary, rejected, false); err != nil {
		return nil, err
	}

	needed, err := aggregate(e.res.Inputs[flow.Secondary], e.res.Inputs[flow.Tertiary])
	if err != nil {
		return nil, err
	}
	needed, err = e.draw(needed)
	if err != nil {
		return nil, err
	}
	unavailable := e.external(needed)
	unreleasable := e.release(e.res.Outputs[flow.Tertiary])
	if err := e.price(); err != nil {
		return nil, err
	}
	if len(unavailable)+len(unreleasable) > 0 {
		codes := append(flow.Carriers(unavailable), flow.Carriers(unreleasable)...)
		slices.Sort(codes)
		return e.res, fault.ForCarriers(fault.ErrUnmetEnergyBalance, "evaluate", slices.Compact(codes),
			errors.New("system inputs cannot be drawn or outputs cannot be released"))
	}
	return e.res, nil
}

// install sizes every component with a non-zero indicator at its share of
// peak capacity, keeping activation order.
func (e *evaluation) install(s *structure.Structure, v *indicator.Vector) error {
	total := 0
	for _, p := range flow.SupplyCategories() {
		for _, m := range s.Members(p) {
			total++
			value, ok := v.Value(p, m.Component.Code())
			if !ok {
				return fmt.Errorf("%w: no indicator for %s/%s", ErrVectorMismatch, p, m.Component.Code())
			}
			if value <= 0 {
				continue
			}
			c, err := m.Component.Resized(value * m.Component.Capacity())
			if err != nil {
				return err
			}
			u := Installed{Category: p, Serves: m.Serves, Value: value, Component: c}
			if b := m.Bridge(); b != nil {
				if u.Bridge, err = b.Resized(value * b.Capacity()); err != nil {
					return err
				}
			}
			e.units[p] = append(e.units[p], u)
			e.res.Installed = append(e.res.Installed, u)
		}
	}
	if v.Len() != total {
		return fmt.Errorf("%w: vector has %d indicators, structure %d components", ErrVectorMismatch, v.Len(), total)
	}
	return nil
}

// stage meets one category's demand. Generators first take what local
// potentials and unlimited sources provide; absorbers only take what cannot
// be released.
func (e *evaluation) stage(p flow.Placement, demand map[string]flow.Flow, generate bool) error {
	var err error
	if generate {
		if demand, err = e.draw(demand); err != nil {
			return err
		}
		demand = e.external(demand)
	} else {
		demand = e.release(demand)
	}
	return e.fill(p, demand)
}

// fill activates the category's units in order, each taking as much of the
// remaining demand as it can.
func (e *evaluation) fill(p flow.Placement, demand map[string]flow.Flow) error {
	for _, code := range flow.Carriers(demand) {
		rest := demand[code]
		for _, u := range e.units[p] {
			if u.Serves != code {
				continue
			}
			if rest.IsZero(balanceTolerance) {
				break
			}
			share := rest.CapAt(u.limit())
			var err error
			if rest, err = rest.Sub(share); err != nil {
				return err
			}
			op, err := u.operate(share)
			if err != nil {
				return err
			}
			if err := e.collect(p, op); err != nil {
				return err
			}
		}
		if !rest.IsZero(balanceTolerance) {
			return fault.ForCarriers(fault.ErrUnmetEnergyBalance, "evaluate "+string(p), []string{code},
				fmt.Errorf("installed capacity falls %.3f kW short", rest.Max()))
		}
	}
	return nil
}

func (e *evaluation) collect(p flow.Placement, op component.Operation) error {
	var err error
	if e.res.Inputs[p], err = merge(e.res.Inputs[p], op.Inputs); err != nil {
		return err
	}
	e.res.Outputs[p], err = merge(e.res.Outputs[p], op.Outputs)
	return err
}

// draw covers required flows from what is left of the local potentials,
// hour by hour, and returns the remainder.
func (e *evaluation) draw(required map[string]flow.Flow) (map[string]flow.Flow, error) {
	out := make(map[string]flow.Flow, len(required))
	for _, code := range flow.Carriers(required) {
		need := required[code]
		if pot, ok := e.potential[code]; ok {
			usable, err := pot.CapAtFlow(need)
			if err != nil {
				return nil, err
			}
			if need, err = need.Sub(usable); err != nil {
				return nil, err
			}
			if e.potential[code], err = pot.Sub(usable); err != nil {
				return nil, err
			}
			if e.res.UsedPotentials, err = merge(e.res.UsedPotentials, map[string]flow.Flow{code: usable}); err != nil {
				return nil, err
			}
		}
		if !need.IsZero(balanceTolerance) {
			out[code] = need
		}
	}
	return out, nil
}

// external books flows of unlimited carriers as system energy demand and
// returns the rest.
func (e *evaluation) external(required map[string]flow.Flow) map[string]flow.Flow {
	out := make(map[string]flow.Flow)
	for code, f := range required {
		if e.env.IsUnlimited(code) {
			e.book(e.res.SystemEnergyDemand, code, f, 1)
			continue
		}
		out[code] = f
	}
	return out
}

// release books releasable flows, electricity as grid feed-in and
// everything else as heat rejection, and returns the rest.
func (e *evaluation) release(outputs map[string]flow.Flow) map[string]flow.Flow {
	out := make(map[string]flow.Flow)
	for code, f := range outputs {
		if f.IsZero(balanceTolerance) {
			continue
		}
		if !e.env.IsReleasable(code) {
			out[code] = f
			continue
		}
		if ec, err := e.reg.Lookup(code); err == nil && ec.Category == carrier.Electrical {
			e.book(e.res.SystemEnergyDemand, code, f, -1)
			continue
		}
		e.book(e.res.HeatRejection, code, f, 1)
	}
	return out
}

func (e *evaluation) book(dst map[string][]float64, code string, f flow.Flow, sign float64) {
	acc, ok := dst[code]
	if !ok {
		acc = make([]float64, e.steps)
		dst[code] = acc
	}
	for i := range acc {
		acc[i] += sign * f.At(i)
	}
}

// price turns the system energy demand into energy cost and emissions, and
// annualises the cost of every installed component and bridge. Hours of net
// feed-in earn the sell price and emit nothing.
func (e *evaluation) price() error {
	for code, hourly := range e.res.SystemEnergyDemand {
		var cost, ghg float64
		for h, x := range hourly {
			switch {
			case x > 0:
				buy, err := e.reg.Price(code, h)
				if err != nil {
					return err
				}
				factor, err := e.reg.GHG(code, h)
				if err != nil {
					return err
				}
				cost += x * buy
				ghg += x * factor
			case x < 0:
				sell, err := e.reg.SellPrice(code, h)
				if err != nil {
					return err
				}
				cost += x * sell
			}
		}
		e.res.EnergyCost[code] = cost
		e.res.Emissions[code] = ghg
	}
	for _, u := range e.res.Installed {
		annual := u.Component.Cost().Annual()
		if u.Bridge != nil {
			annual += u.Bridge.Cost().Annual()
		}
		e.res.ComponentCost[string(u.Category)+"/"+u.Component.Code()] = annual
	}
	return nil
}

func merge(dst, src map[string]flow.Flow) (map[string]flow.Flow, error) {
	if dst == nil {
		dst = make(map[string]flow.Flow, len(src))
	}
	for code, f := range src {
		if acc, ok := dst[code]; ok {
			sum, err := acc.Add(f)
			if err != nil {
				return nil, err
			}
			f = sum
		}
		dst[code] = f
	}
	return dst, nil
}

func aggregate(ms ...map[string]flow.Flow) (map[string]flow.Flow, error) {
	var out map[string]flow.Flow
	var err error
	for _, m := range ms {
		if out, err = merge(out, m); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = make(map[string]flow.Flow)
	}
	return out, nil
}
