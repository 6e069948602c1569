package flow

import (
	"fmt"
	"slices"
)

// Placement is a topological slot of a supply system.
type Placement string

// Placement categories.
const (
	Source      Placement = "source"
	Primary     Placement = "primary"
	Secondary   Placement = "secondary"
	Tertiary    Placement = "tertiary"
	Storage     Placement = "storage"
	Consumer    Placement = "consumer"
	Environment Placement = "environment"
)

// SupplyCategories returns the categories the structure builder populates, in build order.
func SupplyCategories() []Placement {
	return []Placement{Primary, Secondary, Tertiary}
}

var allowedPairs = map[Placement][]Placement{
	Source:    {Primary, Secondary, Tertiary},
	Secondary: {Primary, Tertiary, Environment},
	Primary:   {Consumer, Storage, Tertiary, Environment},
	Tertiary:  {Environment},
	Storage:   {Consumer},
}

// Valid reports whether p is one of the placement categories.
func (p Placement) Valid() bool {
	switch p {
	case Source, Primary, Secondary, Tertiary, Storage, Consumer, Environment:
		return true
	}
	return false
}

// ParsePlacement converts a string into a Placement.
func ParsePlacement(s string) (Placement, error) {
	p := Placement(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlacement, s)
	}
	return p, nil
}

// Allowed reports whether energy may flow from placement in to placement out.
func Allowed(in, out Placement) bool {
	return slices.Contains(allowedPairs[in], out)
}

// Upstream returns the placement that feeds the inputs of a component placed at p.
func Upstream(p Placement) Placement {
	if p == Primary {
		return Secondary
	}
	return Source
}

// Downstream returns the placement that receives the by-products of a
// component placed at p.
func Downstream(p Placement) Placement {
	if p == Tertiary {
		return Environment
	}
	return Tertiary
}
