package supply

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/papapumpkin/caldera/internal/flow"
)

// Result is the outcome of one trial evaluation.
type Result struct {
	Installed []Installed

	// Inputs and Outputs aggregate, per category, the flows the installed
	// components drew and rejected, keyed by carrier.
	Inputs  map[flow.Placement]map[string]flow.Flow
	Outputs map[flow.Placement]map[string]flow.Flow

	UsedPotentials map[string]flow.Flow

	// SystemEnergyDemand is the hourly exchange with unlimited sources per
	// carrier. Negative hours are net feed-in to a grid.
	SystemEnergyDemand map[string][]float64
	HeatRejection      map[string][]float64

	ComponentCost map[string]float64 // "category/code" -> annualised cost
	EnergyCost    map[string]float64
	Emissions     map[string]float64
}

func newResult() *Result {
	return &Result{
		Inputs:             make(map[flow.Placement]map[string]flow.Flow),
		Outputs:            make(map[flow.Placement]map[string]flow.Flow),
		UsedPotentials:     make(map[string]flow.Flow),
		SystemEnergyDemand: make(map[string][]float64),
		HeatRejection:      make(map[string][]float64),
		ComponentCost:      make(map[string]float64),
		EnergyCost:         make(map[string]float64),
		Emissions:          make(map[string]float64),
	}
}

// Value returns one objective. Unknown objectives yield NaN.
func (r *Result) Value(o Objective) float64 {
	switch o {
	case Cost:
		return sumValues(r.ComponentCost) + sumValues(r.EnergyCost)
	case GHGEmissions:
		return sumValues(r.Emissions)
	case SystemEnergyDemand:
		return sumProfiles(r.SystemEnergyDemand)
	case AnthropogenicHeat:
		return sumProfiles(r.HeatRejection)
	}
	return math.NaN()
}

// Fitness returns the objectives in the given order.
func (r *Result) Fitness(objs []Objective) []float64 {
	out := make([]float64, len(objs))
	for i, o := range objs {
		out[i] = r.Value(o)
	}
	return out
}

func sumValues(m map[string]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

func sumProfiles(m map[string][]float64) float64 {
	var s float64
	for _, p := range m {
		s += floats.Sum(p)
	}
	return s
}
