// Package flow models a time-indexed quantity of one energy carrier moving
// between two placement categories. Flows are values: every operation returns
// a new flow and profiles are never shared between flows.
package flow

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Flow is an energy flow in kW per time step.
type Flow struct {
	in      Placement
	out     Placement
	carrier string
	profile []float64
}

// New validates the placements and copies profile into a new flow. Negative
// values are clipped to zero.
func New(in, out Placement, carrier string, profile []float64) (Flow, error) {
	if !Allowed(in, out) {
		return Flow{}, fmt.Errorf("%w: %s -> %s", ErrInvalidPlacement, in, out)
	}
	if carrier == "" {
		return Flow{}, fmt.Errorf("%w: empty carrier", ErrIncompatible)
	}
	if len(profile) == 0 {
		return Flow{}, fmt.Errorf("%w: empty profile for %s", ErrInvalidProfile, carrier)
	}
	p := make([]float64, len(profile))
	for i, v := range profile {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Flow{}, fmt.Errorf("%w: %s step %d is %v", ErrInvalidProfile, carrier, i, v)
		}
		p[i] = max(v, 0)
	}
	return Flow{in: in, out: out, carrier: carrier, profile: p}, nil
}

// Peak returns a single-step flow of the given magnitude.
func Peak(in, out Placement, carrier string, value float64) (Flow, error) {
	return New(in, out, carrier, []float64{value})
}

// Zero returns an all-zero flow with n steps.
func Zero(in, out Placement, carrier string, n int) (Flow, error) {
	if n <= 0 {
		return Flow{}, fmt.Errorf("%w: %d steps", ErrInvalidProfile, n)
	}
	return New(in, out, carrier, make([]float64, n))
}

// In returns the placement the energy leaves.
func (f Flow) In() Placement { return f.in }

// Out returns the placement the energy enters.
func (f Flow) Out() Placement { return f.out }

// Carrier returns the carrier code.
func (f Flow) Carrier() string { return f.carrier }

// Len returns the number of time steps.
func (f Flow) Len() int { return len(f.profile) }

// Profile returns a copy of the time profile.
func (f Flow) Profile() []float64 {
	p := make([]float64, len(f.profile))
	copy(p, f.profile)
	return p
}

// At returns the value at step i. A single-step flow returns its only value
// for every i.
func (f Flow) At(i int) float64 {
	if len(f.profile) == 1 {
		return f.profile[0]
	}
	return f.profile[i]
}

// Max returns the peak value.
func (f Flow) Max() float64 { return floats.Max(f.profile) }

// Min returns the lowest value.
func (f Flow) Min() float64 { return floats.Min(f.profile) }

// Sum returns the total energy over the horizon.
func (f Flow) Sum() float64 { return floats.Sum(f.profile) }

// IsZero reports whether every step is below tol.
func (f Flow) IsZero(tol float64) bool { return f.Max() <= tol }

// WithPlacement returns a copy of f moving between different placements.
func (f Flow) WithPlacement(in, out Placement) (Flow, error) {
	return New(in, out, f.carrier, f.profile)
}

// As returns a flow of another carrier between other placements whose
// profile is f scaled by k. Operate contracts use it to derive input and
// output flows from a target flow.
func (f Flow) As(in, out Placement, carrier string, k float64) (Flow, error) {
	dst := make([]float64, len(f.profile))
	floats.ScaleTo(dst, k, f.profile)
	return New(in, out, carrier, dst)
}

// Add returns f + g. Both flows must carry the same carrier; a single-step
// operand is broadcast across the other's horizon.
func (f Flow) Add(g Flow) (Flow, error) {
	a, b, err := f.aligned(g)
	if err != nil {
		return Flow{}, err
	}
	dst := make([]float64, len(a))
	floats.AddTo(dst, a, b)
	return f.withProfile(dst), nil
}

// Sub returns f - g clipped at zero.
func (f Flow) Sub(g Flow) (Flow, error) {
	a, b, err := f.aligned(g)
	if err != nil {
		return Flow{}, err
	}
	dst := make([]float64, len(a))
	floats.SubTo(dst, a, b)
	return f.withProfile(dst), nil
}

// Scale returns f multiplied by k (k < 0 yields zero).
func (f Flow) Scale(k float64) Flow {
	dst := make([]float64, len(f.profile))
	floats.ScaleTo(dst, k, f.profile)
	return f.withProfile(dst)
}

// CapAt returns f with every step limited to limit.
func (f Flow) CapAt(limit float64) Flow {
	dst := make([]float64, len(f.profile))
	for i, v := range f.profile {
		dst[i] = math.Min(v, limit)
	}
	return f.withProfile(dst)
}

// CapAtFlow returns the step-wise minimum of f and g.
func (f Flow) CapAtFlow(g Flow) (Flow, error) {
	a, b, err := f.aligned(g)
	if err != nil {
		return Flow{}, err
	}
	dst := make([]float64, len(a))
	for i := range a {
		dst[i] = math.Min(a[i], b[i])
	}
	return f.withProfile(dst), nil
}

func (f Flow) withProfile(p []float64) Flow {
	for i, v := range p {
		if v < 0 {
			p[i] = 0
		}
	}
	return Flow{in: f.in, out: f.out, carrier: f.carrier, profile: p}
}

// aligned returns two equal-length views of f and g, broadcasting a
// single-step operand.
func (f Flow) aligned(g Flow) ([]float64, []float64, error) {
	if f.carrier != g.carrier {
		return nil, nil, fmt.Errorf("%w: carrier %s vs %s", ErrIncompatible, f.carrier, g.carrier)
	}
	switch {
	case len(f.profile) == len(g.profile):
		return f.profile, g.profile, nil
	case len(g.profile) == 1:
		b := make([]float64, len(f.profile))
		floats.AddConst(g.profile[0], b)
		return f.profile, b, nil
	case len(f.profile) == 1:
		a := make([]float64, len(g.profile))
		floats.AddConst(f.profile[0], a)
		return a, g.profile, nil
	}
	return nil, nil, fmt.Errorf("%w: %s horizons %d vs %d", ErrIncompatible, f.carrier, len(f.profile), len(g.profile))
}

// String renders the flow for diagnostics.
func (f Flow) String() string {
	return fmt.Sprintf("%s[%s->%s peak=%.3f steps=%d]", f.carrier, f.in, f.out, f.Max(), len(f.profile))
}

// Aggregate sums flows per carrier. The placements of the first flow seen for
// each carrier are kept.
func Aggregate(flows []Flow) (map[string]Flow, error) {
	out := make(map[string]Flow)
	for _, fl := range flows {
		acc, ok := out[fl.carrier]
		if !ok {
			out[fl.carrier] = fl
			continue
		}
		sum, err := acc.Add(fl)
		if err != nil {
			return nil, err
		}
		out[fl.carrier] = sum
	}
	return out, nil
}

// Carriers returns the sorted keys of a carrier-keyed flow map.
func Carriers(m map[string]Flow) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
