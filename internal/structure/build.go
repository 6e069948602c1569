package structure

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/indicator"
)

// Build selects the components of every supply category, operates them at
// peak, propagates their inputs and outputs and freezes the result. Any
// failure aborts the whole build and leaves the structure unusable; a second
// call returns ErrAlreadyBuilt.
func (s *Structure) Build() error {
	if s.built {
		return ErrAlreadyBuilt
	}
	s.built = true

	primary := newStage(flow.Primary)
	primary.demand(s.in.Demand.Carrier(), s.in.Demand.Max(), flow.Consumer)
	if err := s.populate(primary); err != nil {
		return err
	}
	s.stages[flow.Primary] = primary

	// Primary inputs not covered locally or externally become secondary demand.
	secondary := newStage(flow.Secondary)
	for code, peak := range s.source(primary.maxIn) {
		secondary.demand(code, peak, flow.Primary)
	}
	if err := s.populate(secondary); err != nil {
		return unmet("build secondary", err)
	}
	s.stages[flow.Secondary] = secondary
	s.depend(secondary, primary.sharesIn, flow.Primary)
	if err := s.settle("build secondary", s.source(secondary.maxIn)); err != nil {
		return err
	}

	// Whatever primary and secondary cannot release is tertiary demand.
	tertiary := newStage(flow.Tertiary)
	fromPrimary := s.release(primary.maxOut)
	fromSecondary := s.release(secondary.maxOut)
	for _, code := range sortedKeys(fromPrimary) {
		tertiary.demand(code, fromPrimary[code], flow.Primary)
	}
	for _, code := range sortedKeys(fromSecondary) {
		tertiary.demand(code, fromSecondary[code], flow.Secondary)
	}
	if err := s.populate(tertiary); err != nil {
		return unmet("build tertiary", err)
	}
	s.stages[flow.Tertiary] = tertiary
	s.dependCombined(tertiary, primary, secondary)
	if err := s.settle("build tertiary", s.source(tertiary.maxIn)); err != nil {
		return err
	}
	if rest := s.release(tertiary.maxOut); len(rest) > 0 {
		return fault.ForCarriers(fault.ErrUnmetEnergyBalance, "build tertiary", sortedKeys(rest),
			errors.New("outputs can be neither released nor absorbed"))
	}

	return s.freeze()
}

// populate runs discovery for every required carrier of a stage and
// operates the members at the stage's peak.
func (s *Structure) populate(st *stage) error {
	for _, code := range st.carriers() {
		found, err := s.discover(st.placement, code, st.required[code])
		if err != nil {
			return err
		}
		if st.add(found) == 0 {
			return fault.ForCarriers(fault.ErrCarrierMismatch, fmt.Sprintf("discover %s %s", st.placement, code),
				[]string{code}, errors.New("every candidate already serves another carrier"))
		}
	}
	for _, m := range st.members {
		if err := s.operatePeak(st, m); err != nil {
			return err
		}
	}
	st.tally()
	return nil
}

// operatePeak operates a member, through its bridge when it has one, at the
// full peak of the carrier it serves.
func (s *Structure) operatePeak(st *stage, m *member) error {
	target, err := st.target(m.serves)
	if err != nil {
		return err
	}
	if b := m.bridge(); b != nil {
		if st.placement == flow.Tertiary {
			target, err = b.Pass(target)
		} else {
			target, err = b.Supply(target)
		}
		if err != nil {
			return err
		}
	}
	op, err := m.active.Operate(target)
	if err != nil {
		return err
	}
	m.inputs, m.outputs = op.Inputs, op.Outputs
	return nil
}

// source offsets peak inputs against local potentials, then drops what
// unlimited sources provide. It returns what is still needed.
func (s *Structure) source(required map[string]float64) map[string]float64 {
	rest := make(map[string]float64)
	for _, code := range sortedKeys(required) {
		need := s.drawPotential(code, required[code])
		if need <= 0 || s.in.Environment.IsUnlimited(code) {
			continue
		}
		rest[code] = need
	}
	return rest
}

// drawPotential consumes up to need from a carrier's remaining guaranteed
// potential and returns the shortfall. Potentials are never replenished.
func (s *Structure) drawPotential(code string, need float64) float64 {
	avail := s.available[code]
	if avail <= 0 {
		return need
	}
	take := min(avail, need)
	s.available[code] -= take
	s.used[code] += take
	return need - take
}

// release drops carriers that can go to the environment or a grid.
func (s *Structure) release(outputs map[string]float64) map[string]float64 {
	rest := make(map[string]float64)
	for code, peak := range outputs {
		if peak > 0 && !s.in.Environment.IsReleasable(code) {
			rest[code] = peak
		}
	}
	return rest
}

// settle fails when inputs of a dependent category remain unmet.
func (s *Structure) settle(op string, rest map[string]float64) error {
	if len(rest) == 0 {
		return nil
	}
	return fault.ForCarriers(fault.ErrUnmetEnergyBalance, op, sortedKeys(rest),
		errors.New("inputs are covered by neither potentials nor unlimited sources"))
}

// depend records that a stage's carrier groups are bounded by the upstream
// category's shares of those carriers.
func (s *Structure) depend(st *stage, shares map[string]map[string]float64, upstream flow.Placement) {
	groups := make(map[string][]indicator.Share, len(st.required))
	for _, code := range st.carriers() {
		groups[code] = sharesOf(upstream, shares[code])
	}
	s.deps[st.placement] = groups
}

// dependCombined bounds tertiary groups by primary and secondary outputs.
// Each category's share of a carrier is scaled by that category's peak
// output over the combined peak of both.
func (s *Structure) dependCombined(st *stage, upstream ...*stage) {
	groups := make(map[string][]indicator.Share, len(st.required))
	for _, code := range st.carriers() {
		var total float64
		for _, u := range upstream {
			total += u.maxOut[code]
		}
		var shares []indicator.Share
		for _, u := range upstream {
			if total <= 0 || u.maxOut[code] <= 0 {
				continue
			}
			k := u.maxOut[code] / total
			for _, sh := range sharesOf(u.placement, u.sharesOut[code]) {
				sh.Factor *= k
				shares = append(shares, sh)
			}
		}
		groups[code] = shares
	}
	s.deps[st.placement] = groups
}

// sharesOf lists shares in model-code order.
func sharesOf(p flow.Placement, byCode map[string]float64) []indicator.Share {
	codes := slices.Sorted(maps.Keys(byCode))
	out := make([]indicator.Share, 0, len(codes))
	for _, code := range codes {
		out = append(out, indicator.Share{Category: p, Code: code, Factor: byCode[code]})
	}
	return out
}
