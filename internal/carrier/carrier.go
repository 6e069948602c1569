// Package carrier holds the energy-carrier registry: the typed catalog of
// energy media (thermal, electrical, combustible, radiation) with their
// discretized qualifiers, and the ordering queries the structure builder uses
// to find bridgeable alternatives.
package carrier

import (
	"math"
	"slices"
)

// Category is the physical family of an energy carrier.
type Category string

// Valid carrier categories.
const (
	Thermal     Category = "thermal"
	Electrical  Category = "electrical"
	Combustible Category = "combustible"
	Radiation   Category = "radiation"
)

// NoSubtype is the subtype of radiation carriers and the marker for an
// undefined qualifier in carrier tables.
const NoSubtype = "-"

// Subtypes returns the allowed subtypes for a category, or nil for an unknown one.
func Subtypes(c Category) []string {
	switch c {
	case Thermal:
		return []string{"water", "air", "brine"}
	case Electrical:
		return []string{"AC", "DC"}
	case Combustible:
		return []string{"fossil", "biofuel"}
	case Radiation:
		return []string{NoSubtype}
	}
	return nil
}

// ValidSubtype reports whether subtype belongs to category c.
func ValidSubtype(c Category, subtype string) bool {
	return slices.Contains(Subtypes(c), subtype)
}

// Carrier is one row of the energy-carrier table.
type Carrier struct {
	Code          string
	Description   string
	Category      Category
	Subtype       string
	Qualifier     string  // e.g. "temperature", "voltage"
	QualifierUnit string  // e.g. "°C", "V"
	MeanQual      float64 // NaN when the table declares no qualifier value
	UnitCost      float64 // USD/kWh
	UnitGHG       float64 // kgCO2eq/kWh
	Feedstock     string  // optional hourly price/GHG table name
}

// HasQualifier reports whether the carrier declares a numeric mean qualifier.
func (c Carrier) HasQualifier() bool {
	return !math.IsNaN(c.MeanQual)
}
