package indicator

import (
	"math"
	"slices"

	"github.com/papapumpkin/caldera/internal/flow"
)

// Group identifies the indicators validated together.
type Group struct {
	Category flow.Placement
	Carrier  string
}

// Groups returns the vector's groups in category order, then by first
// appearance of each carrier.
func (v *Vector) Groups() []Group {
	var out []Group
	for _, cat := range flow.SupplyCategories() {
		for _, ind := range v.inds {
			g := Group{Category: cat, Carrier: ind.Carrier}
			if ind.Category == cat && !slices.Contains(out, g) {
				out = append(out, g)
			}
		}
	}
	return out
}

// Bound returns a group's upper bound before tolerance: 1 for primary groups,
// otherwise the sum over upstream shares of factor times the upstream value,
// rounded to two decimals.
func (v *Vector) Bound(g Group) float64 {
	if g.Category == flow.Primary {
		return 1
	}
	shares, ok := v.deps[g.Category][g.Carrier]
	if !ok {
		return 1
	}
	var bound float64
	for _, s := range shares {
		bound += s.Factor * v.upstreamValue(s)
	}
	return math.Round(bound*100) / 100
}

func (v *Vector) upstreamValue(s Share) float64 {
	for _, ind := range v.inds {
		if ind.Code == s.Code && (s.Category == "" || ind.Category == s.Category) {
			return ind.Value
		}
	}
	return 0
}

// Sum returns the summed values of a group.
func (v *Vector) Sum(g Group) float64 {
	return float64(v.sumCents(g)) / 100
}

func (v *Vector) sumCents(g Group) int {
	total := 0
	for _, ind := range v.inds {
		if ind.Category == g.Category && ind.Carrier == g.Carrier {
			total += cents(ind.Value)
		}
	}
	return total
}

// limitCents is the group's bound times the tolerance in hundredths.
func (v *Vector) limitCents(g Group) int {
	return cents(v.Bound(g) * v.tolerance)
}

// Breaches returns the groups whose sum exceeds bound × tolerance.
func (v *Vector) Breaches() []Group {
	var out []Group
	for _, g := range v.Groups() {
		if v.sumCents(g) > v.limitCents(g) {
			out = append(out, g)
		}
	}
	return out
}

// Correct reduces indicators until no group exceeds its bound times the
// tolerance. Within an offending group the smallest non-zero value is cut
// first (a random one among ties) by exactly the excess, or to zero. Values
// only decrease, so reducing an upstream indicator can only tighten
// downstream bounds; the loop re-checks every group until none is breached.
// Correcting a corrected vector changes nothing.
func (v *Vector) Correct() {
	for {
		breaches := v.Breaches()
		if len(breaches) == 0 {
			return
		}
		v.correctGroup(breaches[0])
	}
}

func (v *Vector) correctGroup(g Group) {
	for {
		excess := v.sumCents(g) - v.limitCents(g)
		if excess <= 0 {
			return
		}
		i := v.smallestNonZero(g)
		if i < 0 {
			return
		}
		reduced := max(cents(v.inds[i].Value)-excess, 0)
		v.inds[i].Value = float64(reduced) / 100
	}
}

// smallestNonZero returns the index of the smallest non-zero indicator of g,
// choosing uniformly among ties, or -1.
func (v *Vector) smallestNonZero(g Group) int {
	lowest := math.MaxInt
	var ties []int
	for i, ind := range v.inds {
		if ind.Category != g.Category || ind.Carrier != g.Carrier {
			continue
		}
		c := cents(ind.Value)
		switch {
		case c == 0:
		case c < lowest:
			lowest, ties = c, []int{i}
		case c == lowest:
			ties = append(ties, i)
		}
	}
	switch len(ties) {
	case 0:
		return -1
	case 1:
		return ties[0]
	}
	return ties[v.rng.IntN(len(ties))]
}
