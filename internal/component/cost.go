package component

import "math"

// Cost is the capital and fixed operating cost of a component in USD.
type Cost struct {
	Capex           float64
	AnnualizedCapex float64
	FixedOpex       float64 // per year
}

// Annual returns the yearly cost: annualized capex plus fixed O&M.
func (c Cost) Annual() float64 { return c.AnnualizedCapex + c.FixedOpex }

// Cost evaluates capex = a + b·cap^c + (d + e·cap)·ln(cap) at the installed
// capacity and annualizes it through the capital recovery factor.
func (c *Component) Cost() Cost {
	r := c.row
	capacity := c.capacity
	capex := r.A + r.B*math.Pow(capacity, r.C) + (r.D+r.E*capacity)*math.Log(capacity)
	capex = max(capex, 0)
	return Cost{
		Capex:           capex,
		AnnualizedCapex: capex * RecoveryFactor(r.InterestRate/100, r.Lifetime),
		FixedOpex:       capex * r.OMShare / 100,
	}
}

// RecoveryFactor returns the capital recovery factor i(1+i)^n / ((1+i)^n - 1)
// for interest rate i (fraction) over n years; 1/n when i is zero.
func RecoveryFactor(i, n float64) float64 {
	if n <= 0 {
		return 0
	}
	if i == 0 {
		return 1 / n
	}
	g := math.Pow(1+i, n)
	return i * g / (g - 1)
}
