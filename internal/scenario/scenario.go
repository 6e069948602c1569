// Package scenario reads case files: the TOML description of one supply
// system to build, covering its demand, the surroundings it sits in, local
// energy potentials and any explicit component selection.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/structure"
)

// Case is a parsed case file.
type Case struct {
	Name               string    `toml:"name"`
	System             string    `toml:"system"`
	AmbientTemperature float64   `toml:"ambient_temperature"`
	Database           string    `toml:"database,omitempty"`
	Objectives         []string  `toml:"objectives,omitempty"`
	Preference         []string  `toml:"preference,omitempty"`
	Sources            Sources   `toml:"sources"`
	Demand             Profile   `toml:"demand"`
	Potentials         []Profile `toml:"potentials,omitempty"`
	Selection          Selection `toml:"selection,omitempty"`

	// Path is the file the case was read from, empty for parsed bytes.
	Path string `toml:"-"`
}

// Sources mirrors structure.Sources.
type Sources struct {
	PowerGrid   bool `toml:"power_grid"`
	FossilFuels bool `toml:"fossil_fuels"`
	BioFuels    bool `toml:"bio_fuels"`
}

// Profile is an hourly energy profile of one carrier, in kW.
type Profile struct {
	Carrier string    `toml:"carrier"`
	Profile []float64 `toml:"profile"`
}

// Selection lists explicit model codes per supply category.
type Selection struct {
	Primary   []string `toml:"primary,omitempty"`
	Secondary []string `toml:"secondary,omitempty"`
	Tertiary  []string `toml:"tertiary,omitempty"`
}

// Load reads and validates a case file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCase, path)
		}
		return nil, fmt.Errorf("reading case: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes and validates case file contents. Unknown keys are rejected.
func Parse(data []byte) (*Case, error) {
	var c Case
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "parse case", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Case) validate() error {
	const op = "validate case"
	if _, err := structure.ParseSystemType(c.System); err != nil {
		return err
	}
	if c.Demand.Carrier == "" {
		return fault.Newf(fault.ErrConfiguration, op, "demand carrier is missing")
	}
	if len(c.Demand.Profile) == 0 {
		return fault.Newf(fault.ErrConfiguration, op, "demand profile is empty")
	}
	seen := make(map[string]bool, len(c.Potentials))
	for _, p := range c.Potentials {
		if p.Carrier == "" || len(p.Profile) == 0 {
			return fault.Newf(fault.ErrConfiguration, op, "potential needs a carrier and a profile")
		}
		if seen[p.Carrier] {
			return fault.ForCarriers(fault.ErrConfiguration, op, []string{p.Carrier}, ErrDuplicatePotential)
		}
		seen[p.Carrier] = true
		if len(p.Profile) != len(c.Demand.Profile) {
			return fault.ForCarriers(fault.ErrConfiguration, op, []string{p.Carrier},
				fmt.Errorf("%w: %d hours, demand has %d", ErrProfileLength, len(p.Profile), len(c.Demand.Profile)))
		}
	}
	for _, t := range c.Preference {
		if _, err := component.ParseTechnology(t); err != nil {
			return fault.Wrap(fault.ErrConfiguration, op, err)
		}
	}
	return nil
}

// DatabaseDir resolves the database directory. A relative path in the case
// file is taken relative to the file; fallback applies when none is given.
func (c *Case) DatabaseDir(fallback string) string {
	if c.Database == "" {
		return fallback
	}
	if filepath.IsAbs(c.Database) || c.Path == "" {
		return c.Database
	}
	return filepath.Join(filepath.Dir(c.Path), c.Database)
}

// DemandFlow returns the demand as a primary-to-consumer flow.
func (c *Case) DemandFlow() (flow.Flow, error) {
	return flow.New(flow.Primary, flow.Consumer, c.Demand.Carrier, c.Demand.Profile)
}

// Inputs assembles the structure builder inputs against a catalog.
func (c *Case) Inputs(cat *component.Catalog) (structure.Inputs, error) {
	sys, err := structure.ParseSystemType(c.System)
	if err != nil {
		return structure.Inputs{}, err
	}
	env, err := structure.NewEnvironment(cat.Registry(), sys, c.AmbientTemperature, structure.Sources(c.Sources))
	if err != nil {
		return structure.Inputs{}, err
	}
	demand, err := c.DemandFlow()
	if err != nil {
		return structure.Inputs{}, fault.Wrap(fault.ErrConfiguration, "case demand", err)
	}
	in := structure.Inputs{
		Catalog:     cat,
		Environment: env,
		SystemType:  sys,
		Demand:      demand,
	}
	for _, t := range c.Preference {
		tech, err := component.ParseTechnology(t)
		if err != nil {
			return structure.Inputs{}, fault.Wrap(fault.ErrConfiguration, "case preference", err)
		}
		in.Preference = append(in.Preference, tech)
	}
	if len(c.Potentials) > 0 {
		in.Potentials = make(map[string]flow.Flow, len(c.Potentials))
		for _, p := range c.Potentials {
			f, err := flow.New(flow.Source, flow.Secondary, p.Carrier, p.Profile)
			if err != nil {
				return structure.Inputs{}, fault.Wrap(fault.ErrConfiguration, "case potential "+p.Carrier, err)
			}
			in.Potentials[p.Carrier] = f
		}
	}
	in.Selection = c.Selection.forStructure()
	return in, nil
}

func (s Selection) forStructure() structure.Selection {
	out := structure.Selection{}
	for p, codes := range map[flow.Placement][]string{
		flow.Primary:   s.Primary,
		flow.Secondary: s.Secondary,
		flow.Tertiary:  s.Tertiary,
	} {
		if len(codes) > 0 {
			out[p] = codes
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
