// Package database loads the carrier registry, feedstock tables and
// component catalog from a directory of CSV files:
//
//	carriers.csv            one row per energy carrier
//	feedstocks/<NAME>.csv   24 hourly rows of buy, sell and ghg
//	components/<TECH>.csv   one table per technology, e.g. VCC.csv
//
// Loading happens once, before any structure is built; the returned registry
// and catalog are immutable.
package database

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
)

// Layout of a database directory.
const (
	CarriersFile   = "carriers.csv"
	FeedstocksDir  = "feedstocks"
	ComponentsDir  = "components"
	tableExtension = ".csv"
)

// Database is a loaded registry and catalog.
type Database struct {
	Dir      string
	Registry *carrier.Registry
	Catalog  *component.Catalog
}

// Load reads a database directory. opts are passed to the registry after
// the feedstock tables found in the directory.
func Load(dir string, opts ...carrier.Option) (*Database, error) {
	feedstocks, err := LoadFeedstocks(filepath.Join(dir, FeedstocksDir))
	if err != nil {
		return nil, err
	}
	rows, err := LoadCarriers(filepath.Join(dir, CarriersFile))
	if err != nil {
		return nil, err
	}
	reg, err := carrier.NewRegistry(rows, append([]carrier.Option{carrier.WithFeedstocks(feedstocks)}, opts...)...)
	if err != nil {
		return nil, err
	}
	tables, err := LoadComponents(filepath.Join(dir, ComponentsDir))
	if err != nil {
		return nil, err
	}
	cat, err := component.NewCatalog(reg, tables)
	if err != nil {
		return nil, err
	}
	return &Database{Dir: dir, Registry: reg, Catalog: cat}, nil
}

// LoadCarriers reads carriers.csv.
func LoadCarriers(path string) ([]carrier.Carrier, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("code", "type", "subtype", "mean_qual"); err != nil {
		return nil, err
	}
	var out []carrier.Carrier
	for t.next() {
		c := carrier.Carrier{
			Code:          t.str("code"),
			Description:   t.str("description"),
			Category:      carrier.Category(strings.ToLower(t.str("type"))),
			Subtype:       t.str("subtype"),
			Qualifier:     t.str("qualifier"),
			QualifierUnit: t.str("unit_qual"),
			MeanQual:      t.num("mean_qual"),
			UnitCost:      t.num("unit_cost"),
			UnitGHG:       t.num("unit_ghg"),
			Feedstock:     t.opt("feedstock"),
		}
		if math.IsNaN(c.UnitCost) {
			c.UnitCost = 0
		}
		if math.IsNaN(c.UnitGHG) {
			c.UnitGHG = 0
		}
		out = append(out, c)
	}
	if err := t.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFeedstocks reads every table in dir, keyed by file name without
// extension. A missing directory yields no feedstocks.
func LoadFeedstocks(dir string) (map[string]carrier.Feedstock, error) {
	out := make(map[string]carrier.Feedstock)
	paths, err := tablesIn(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), tableExtension)
		t, err := readTable(path)
		if err != nil {
			return nil, err
		}
		if err := t.require("hour", "buy", "sell", "ghg"); err != nil {
			return nil, err
		}
		buy := make([]float64, 0, carrier.HoursPerDay)
		sell := make([]float64, 0, carrier.HoursPerDay)
		ghg := make([]float64, 0, carrier.HoursPerDay)
		for t.next() {
			buy = append(buy, t.num("buy"))
			sell = append(sell, t.num("sell"))
			ghg = append(ghg, t.num("ghg"))
		}
		if err := t.err(); err != nil {
			return nil, err
		}
		fs, err := carrier.NewFeedstock(name, buy, sell, ghg)
		if err != nil {
			return nil, err
		}
		out[name] = fs
	}
	return out, nil
}

// LoadComponents reads every technology table in dir. The file name selects
// the technology; unknown names fail.
func LoadComponents(dir string) (map[component.Technology][]component.Row, error) {
	paths, err := tablesIn(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fault.Newf(fault.ErrConfiguration, "load catalog", "no technology tables in %s", dir)
	}
	out := make(map[component.Technology][]component.Row, len(paths))
	for _, path := range paths {
		tech, err := component.ParseTechnology(strings.TrimSuffix(filepath.Base(path), tableExtension))
		if err != nil {
			return nil, fault.Wrap(fault.ErrConfiguration, "load "+path, err)
		}
		rows, err := loadRows(path)
		if err != nil {
			return nil, err
		}
		out[tech] = rows
	}
	return out, nil
}

func loadRows(path string) ([]component.Row, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("code", "cap_min", "cap_max", "a", "b", "c", "d", "e", "lt_yr", "o&m_%", "ir_%"); err != nil {
		return nil, err
	}
	var out []component.Row
	for t.next() {
		out = append(out, component.Row{
			Code:               t.str("code"),
			Type:               t.str("type"),
			CapMin:             t.num("cap_min"),
			CapMax:             t.num("cap_max"),
			A:                  t.num("a"),
			B:                  t.num("b"),
			C:                  t.num("c"),
			D:                  t.num("d"),
			E:                  t.num("e"),
			Lifetime:           t.num("lt_yr"),
			OMShare:            t.num("o&m_%"),
			InterestRate:       t.num("ir_%"),
			Efficiency:         t.num("efficiency"),
			ElectricEfficiency: t.num("efficiency_el"),
			TMain:              t.num("t_main"),
			TAux:               t.num("t_aux"),
			TSource:            t.num("t_source"),
			AuxRatio:           t.num("aux_ratio"),
			Voltage:            t.num("voltage"),
			Fuel:               t.opt("fuel"),
			SourceSubtype:      t.opt("source_subtype"),
			QualMin:            t.num("qual_min"),
			QualMax:            t.num("qual_max"),
			Subtype:            t.opt("subtype"),
		})
	}
	if err := t.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// tablesIn lists the CSV files of dir, sorted. A missing directory is empty.
func tablesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "read "+dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), tableExtension) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
