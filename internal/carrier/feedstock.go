package carrier

import (
	"fmt"

	"github.com/papapumpkin/caldera/internal/fault"
)

// HoursPerDay is the length of a feedstock table.
const HoursPerDay = 24

// Feedstock holds hour-of-day prices and emission factors for a purchased
// energy source such as grid electricity or natural gas.
type Feedstock struct {
	Name string
	Buy  [HoursPerDay]float64 // USD/kWh
	Sell [HoursPerDay]float64 // USD/kWh
	GHG  [HoursPerDay]float64 // kgCO2eq/kWh
}

// NewFeedstock validates per-hour rows. Each slice must hold exactly 24 values
// and none may be negative.
func NewFeedstock(name string, buy, sell, ghg []float64) (Feedstock, error) {
	fs := Feedstock{Name: name}
	for label, col := range map[string][]float64{"buy": buy, "sell": sell, "ghg": ghg} {
		if len(col) != HoursPerDay {
			return Feedstock{}, fault.Newf(fault.ErrConfiguration, "load feedstock",
				"%s: %s column has %d rows, want %d", name, label, len(col), HoursPerDay)
		}
		for h, v := range col {
			if v < 0 {
				return Feedstock{}, fault.Newf(fault.ErrConfiguration, "load feedstock",
					"%s: negative %s value at hour %d", name, label, h)
			}
		}
	}
	copy(fs.Buy[:], buy)
	copy(fs.Sell[:], sell)
	copy(fs.GHG[:], ghg)
	return fs, nil
}

// Price returns the buy price of code at hour-of-year hour.
func (r *Registry) Price(code string, hour int) (float64, error) {
	return r.hourly(code, hour, func(fs Feedstock, h int) float64 { return fs.Buy[h] },
		func(c Carrier) float64 { return c.UnitCost })
}

// SellPrice returns the price earned when releasing code to a grid at hour.
// Carriers without a feedstock table have no resale value.
func (r *Registry) SellPrice(code string, hour int) (float64, error) {
	return r.hourly(code, hour, func(fs Feedstock, h int) float64 { return fs.Sell[h] },
		func(Carrier) float64 { return 0 })
}

// GHG returns the emission factor of code at hour.
func (r *Registry) GHG(code string, hour int) (float64, error) {
	return r.hourly(code, hour, func(fs Feedstock, h int) float64 { return fs.GHG[h] },
		func(c Carrier) float64 { return c.UnitGHG })
}

func (r *Registry) hourly(code string, hour int, pick func(Feedstock, int) float64, flat func(Carrier) float64) (float64, error) {
	c, err := r.Lookup(code)
	if err != nil {
		return 0, err
	}
	if hour < 0 {
		return 0, fmt.Errorf("hour %d is negative", hour)
	}
	if c.Feedstock == "" {
		return flat(c), nil
	}
	return pick(r.feedstocks[c.Feedstock], hour%HoursPerDay), nil
}
