package structure

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
)

// candidates returns the active models considered for category p: the
// explicit selection when one was given, otherwise every model of the
// preferred technologies that may occupy p. Absorbers only go to tertiary.
func (s *Structure) candidates(p flow.Placement) ([]*component.Model, error) {
	cat := s.in.Catalog
	if codes, ok := s.in.Selection[p]; ok {
		var out []*component.Model
		for _, code := range codes {
			m, ok := cat.Model(code)
			if !ok {
				return nil, fault.Newf(fault.ErrConfiguration, "select "+string(p), "no catalog row for model %q", code)
			}
			if m.Technology.Passive() {
				continue
			}
			if !m.Technology.CanOccupy(p) {
				return nil, fault.Newf(fault.ErrConfiguration, "select "+string(p),
					"%s is a %s and cannot be placed in %s", code, m.Technology.Description(), p)
			}
			out = append(out, m)
		}
		return out, nil
	}

	var out []*component.Model
	for _, tech := range s.technologies() {
		if tech.Passive() || !tech.CanOccupy(p) || tech.Absorber() != (p == flow.Tertiary) {
			continue
		}
		out = append(out, cat.Models(tech)...)
	}
	return out, nil
}

func (s *Structure) technologies() []component.Technology {
	if len(s.in.Preference) > 0 {
		return s.in.Preference
	}
	return component.Technologies()
}

// discover finds every candidate able to serve code at peak in category p.
// Direct matches win; only when there are none are passively bridged
// alternatives searched. An explicitly selected model that cannot be sized
// for the peak is a configuration error.
func (s *Structure) discover(p flow.Placement, code string, peak float64) ([]*member, error) {
	op := fmt.Sprintf("discover %s %s", p, code)
	models, err := s.candidates(p)
	if err != nil {
		return nil, err
	}

	_, selected := s.in.Selection[p]
	var direct []*member
	for _, m := range models {
		if !slices.Contains(m.MainCarriers(), code) {
			continue
		}
		c, err := s.in.Catalog.Instantiate(m.Code, p, peak)
		if err != nil && selected {
			return nil, fault.ForCarriers(fault.ErrConfiguration, op, []string{code}, fmt.Errorf("selected model %s: %w", m.Code, err))
		}
		if err != nil || c.MainCarrier() != code {
			continue
		}
		direct = append(direct, &member{active: c, serves: code})
	}
	if len(direct) > 0 {
		return direct, nil
	}

	alts, err := s.convertible(p, code)
	if err != nil {
		return nil, err
	}
	var bridged []*member
	for _, m := range models {
		if mb := s.bridged(m, p, code, alts, peak); mb != nil {
			bridged = append(bridged, mb)
		}
	}
	if len(bridged) == 0 {
		return nil, fault.ForCarriers(fault.ErrCarrierMismatch, op, []string{code},
			fmt.Errorf("no %s component serves %s directly or through a passive bridge", p, code))
	}
	return bridged, nil
}

// bridged tries alternative carriers nearest first and returns the first
// pairing of model m with the passive bridges that connect it to code.
func (s *Structure) bridged(m *component.Model, p flow.Placement, code string, alts []string, peak float64) *member {
	cat := s.in.Catalog
	absorber := p == flow.Tertiary
	for _, alt := range alts {
		if !slices.Contains(m.MainCarriers(), alt) {
			continue
		}
		var bridges []*component.Component
		for _, pm := range s.passiveModels() {
			from, to := alt, code
			if absorber {
				from, to = code, alt
			}
			b, err := cat.Bridge(pm.Code, p, from, to, peak)
			if err == nil {
				bridges = append(bridges, b)
			}
		}
		if len(bridges) == 0 {
			continue
		}
		size, err := s.bridgedSize(bridges[0], code, peak, absorber)
		if err != nil {
			continue
		}
		c, err := cat.Instantiate(m.Code, p, size)
		if err != nil || c.MainCarrier() != alt {
			continue
		}
		return &member{active: c, bridges: bridges, serves: code}
	}
	return nil
}

// bridgedSize is the peak the active side of a bridge has to handle.
// Generators cover the bridge's transfer losses; absorbers take what passes.
func (s *Structure) bridgedSize(b *component.Component, code string, peak float64, absorber bool) (float64, error) {
	target, err := flow.Peak(flow.Primary, flow.Consumer, code, peak)
	if err != nil {
		return 0, err
	}
	var f flow.Flow
	if absorber {
		f, err = b.Pass(target)
	} else {
		f, err = b.Supply(target)
	}
	if err != nil {
		return 0, err
	}
	return f.Max(), nil
}

func (s *Structure) passiveModels() []*component.Model {
	var out []*component.Model
	for _, tech := range component.Technologies() {
		if tech.Passive() {
			out = append(out, s.in.Catalog.Models(tech)...)
		}
	}
	return out
}

// convertible lists the carriers a passive bridge could turn into code,
// nearest first. Thermal demand of absorbers, and of cooling generators,
// is met from colder carriers; other thermal demand from hotter ones.
func (s *Structure) convertible(p flow.Placement, code string) ([]string, error) {
	reg := s.in.Catalog.Registry()
	ec, err := reg.Lookup(code)
	if err != nil {
		return nil, err
	}
	switch ec.Category {
	case carrier.Thermal:
		if p == flow.Tertiary || (p == flow.Primary && s.in.SystemType == Cooling) {
			return reg.Colder(code, false)
		}
		return reg.Hotter(code, false)
	case carrier.Electrical:
		return reg.OtherElectrical(code), nil
	}
	return nil, nil
}

// unmet turns a discovery failure in a dependent category into the energy
// balance failure it causes, keeping the carrier mismatch as its cause.
func unmet(op string, err error) error {
	if !errors.Is(err, fault.ErrCarrierMismatch) {
		return err
	}
	return fault.ForCarriers(fault.ErrUnmetEnergyBalance, op, fault.Carriers(err), err)
}
