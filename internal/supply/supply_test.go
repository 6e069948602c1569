package supply

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/indicator"
	"github.com/papapumpkin/caldera/internal/structure"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func testRegistry(t *testing.T, opts ...carrier.Option) *carrier.Registry {
	t.Helper()
	water := func(code string, temp float64) carrier.Carrier {
		return carrier.Carrier{Code: code, Category: carrier.Thermal, Subtype: "water", MeanQual: temp}
	}
	air := func(code string, temp float64) carrier.Carrier {
		return carrier.Carrier{Code: code, Category: carrier.Thermal, Subtype: "air", MeanQual: temp}
	}
	grid := carrier.Carrier{Code: "E400AC", Category: carrier.Electrical, Subtype: "AC", MeanQual: 400, UnitCost: 0.2, UnitGHG: 0.1}
	if len(opts) > 0 {
		grid.Feedstock = "GRID"
	}
	rows := []carrier.Carrier{
		water("T6W", 6), water("T10W", 10), water("T35W", 35), water("T80W", 80),
		air("T30A", 30), air("T40A", 40),
		grid,
		{Code: "NG", Category: carrier.Combustible, Subtype: "fossil", MeanQual: math.NaN(), UnitCost: 0.08, UnitGHG: 0.2},
	}
	reg, err := carrier.NewRegistry(rows, opts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func testCatalog(t *testing.T, reg *carrier.Registry) *component.Catalog {
	t.Helper()
	base := component.Row{A: 1000, B: 10, C: 1, Lifetime: 20, OMShare: 2, InterestRate: 5}
	row := func(code string, lo, hi float64, set func(*component.Row)) component.Row {
		r := base
		r.Code, r.CapMin, r.CapMax = code, lo, hi
		set(&r)
		return r
	}
	tables := map[component.Technology][]component.Row{
		component.VapourCompressionChiller: {
			row("CH1", 100, 400, func(r *component.Row) { r.Efficiency, r.TMain, r.TAux, r.Voltage = 5, 10, 35, 400 }),
			row("CH1", 400, 2000, func(r *component.Row) { r.Efficiency, r.TMain, r.TAux, r.Voltage = 5, 10, 35, 400 }),
			row("CH2", 50, 1000, func(r *component.Row) { r.Efficiency, r.TMain, r.TAux, r.Voltage = 4, 6, 35, 400 }),
		},
		component.AbsorptionChiller: {
			row("ACH1", 100, 2000, func(r *component.Row) { r.Efficiency, r.TMain, r.TSource, r.TAux = 0.7, 10, 80, 35 }),
		},
		component.Boiler: {
			row("BO1", 10, 5000, func(r *component.Row) { r.Efficiency, r.TMain, r.Fuel = 0.9, 80, "NG" }),
		},
		component.CoolingTower: {
			row("CT1", 10, 5000, func(r *component.Row) { r.AuxRatio, r.Efficiency, r.TMain, r.TAux, r.Voltage = 0.02, 1, 35, 40, 400 }),
		},
		component.HeatExchanger: {
			row("HEX1", 1, 10000, func(r *component.Row) { r.Efficiency, r.Subtype, r.QualMin, r.QualMax = 0.98, "water", 0, 90 }),
		},
	}
	cat, err := component.NewCatalog(reg, tables)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

func testDemand(t *testing.T) flow.Flow {
	t.Helper()
	d, err := flow.New(flow.Primary, flow.Consumer, "T10W", []float64{320, 500, 410})
	if err != nil {
		t.Fatalf("flow.New: %v", err)
	}
	return d
}

type fixture struct {
	reg        *carrier.Registry
	sel        structure.Selection
	potentials map[string]flow.Flow
}

func (f fixture) build(t *testing.T) *structure.Structure {
	t.Helper()
	reg := f.reg
	if reg == nil {
		reg = testRegistry(t)
	}
	cat := testCatalog(t, reg)
	env, err := structure.NewEnvironment(reg, structure.Cooling, 30, structure.Sources{PowerGrid: true, FossilFuels: true})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	s, err := structure.New(structure.Inputs{
		Catalog:     cat,
		Environment: env,
		SystemType:  structure.Cooling,
		Demand:      testDemand(t),
		Potentials:  f.potentials,
		Selection:   f.sel,
	})
	if err != nil {
		t.Fatalf("structure.New: %v", err)
	}
	if err := s.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

var chillerPlant = structure.Selection{
	flow.Primary:  {"CH1"},
	flow.Tertiary: {"CT1"},
}

func vectorOf(t *testing.T, s *structure.Structure, values ...float64) *indicator.Vector {
	t.Helper()
	v, err := s.Indicators(indicator.WithSeed(7))
	if err != nil {
		t.Fatalf("Indicators: %v", err)
	}
	if len(values) > 0 {
		if err := v.Set(values); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	return v
}

func TestEvaluateFullCapacity(t *testing.T) {
	t.Parallel()
	s := fixture{sel: chillerPlant}.build(t)

	res, err := Evaluate(s, vectorOf(t, s), testDemand(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// chiller draws Q/5, the tower 2% of the Q*1.2 it absorbs
	wantGrid := []float64{64 + 7.68, 100 + 12, 82 + 9.84}
	if diff := cmp.Diff(map[string][]float64{"E400AC": wantGrid}, res.SystemEnergyDemand, approx); diff != "" {
		t.Errorf("SystemEnergyDemand mismatch (-want +got):\n%s", diff)
	}
	wantHeat := []float64{384 * 1.02, 600 * 1.02, 492 * 1.02}
	if diff := cmp.Diff(map[string][]float64{"T40A": wantHeat}, res.HeatRejection, approx); diff != "" {
		t.Errorf("HeatRejection mismatch (-want +got):\n%s", diff)
	}

	var grid float64
	for _, x := range wantGrid {
		grid += x
	}
	if got := res.EnergyCost["E400AC"]; math.Abs(got-0.2*grid) > 1e-9 {
		t.Errorf("E400AC energy cost = %v, want %v", got, 0.2*grid)
	}
	if got := res.Value(GHGEmissions); math.Abs(got-0.1*grid) > 1e-9 {
		t.Errorf("GHG = %v, want %v", got, 0.1*grid)
	}
	if got := res.Value(SystemEnergyDemand); math.Abs(got-grid) > 1e-9 {
		t.Errorf("system energy demand = %v, want %v", got, grid)
	}
	if len(res.ComponentCost) != 2 || res.ComponentCost["primary/CH1"] <= 0 {
		t.Errorf("ComponentCost = %v, want positive annual cost for CH1 and CT1", res.ComponentCost)
	}
	if got := res.Value(Cost); math.Abs(got-(sumValues(res.ComponentCost)+0.2*grid)) > 1e-9 {
		t.Errorf("cost = %v, want components plus energy", got)
	}
}

func TestEvaluateHourlyTariff(t *testing.T) {
	t.Parallel()
	buy := make([]float64, carrier.HoursPerDay)
	sell := make([]float64, carrier.HoursPerDay)
	ghg := make([]float64, carrier.HoursPerDay)
	for h := range buy {
		buy[h] = 0.1 + 0.01*float64(h)
		sell[h] = 0.05
		ghg[h] = 0.3
	}
	fs, err := carrier.NewFeedstock("GRID", buy, sell, ghg)
	if err != nil {
		t.Fatalf("NewFeedstock: %v", err)
	}
	reg := testRegistry(t, carrier.WithFeedstocks(map[string]carrier.Feedstock{"GRID": fs}))
	s := fixture{reg: reg, sel: chillerPlant}.build(t)

	res, err := Evaluate(s, vectorOf(t, s), testDemand(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := 71.68*0.10 + 112*0.11 + 91.84*0.12
	if got := res.EnergyCost["E400AC"]; math.Abs(got-want) > 1e-9 {
		t.Errorf("E400AC energy cost = %v, want %v", got, want)
	}
	if got := res.Emissions["E400AC"]; math.Abs(got-0.3*275.52) > 1e-9 {
		t.Errorf("E400AC emissions = %v, want %v", got, 0.3*275.52)
	}
}

func TestEvaluateUndersizedFails(t *testing.T) {
	t.Parallel()
	s := fixture{sel: chillerPlant}.build(t)

	tests := []struct {
		name    string
		values  []float64
		carrier string
	}{
		{"chiller at 80 percent", []float64{0.8, 1}, "T10W"},
		{"no cooling tower", []float64{1, 0}, "T35W"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Evaluate(s, vectorOf(t, s, tt.values...), testDemand(t))
			if !errors.Is(err, fault.ErrUnmetEnergyBalance) {
				t.Fatalf("Evaluate error = %v, want ErrUnmetEnergyBalance", err)
			}
			if diff := cmp.Diff([]string{tt.carrier}, fault.Carriers(err)); diff != "" {
				t.Errorf("named carriers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateDrawsPotentialsHourly(t *testing.T) {
	t.Parallel()
	pot, err := flow.New(flow.Source, flow.Secondary, "T80W", []float64{400, 300, 350})
	if err != nil {
		t.Fatalf("flow.New: %v", err)
	}
	s := fixture{
		sel:        structure.Selection{flow.Primary: {"ACH1"}, flow.Secondary: {"BO1"}, flow.Tertiary: {"CT1"}},
		potentials: map[string]flow.Flow{"T80W": pot},
	}.build(t)

	res, err := Evaluate(s, vectorOf(t, s), testDemand(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if diff := cmp.Diff([]float64{400, 300, 350}, res.UsedPotentials["T80W"].Profile(), approx); diff != "" {
		t.Errorf("used potential mismatch (-want +got):\n%s", diff)
	}
	heat := []float64{320 / 0.7, 500 / 0.7, 410 / 0.7}
	wantFuel := []float64{(heat[0] - 400) / 0.9, (heat[1] - 300) / 0.9, (heat[2] - 350) / 0.9}
	if diff := cmp.Diff(wantFuel, res.SystemEnergyDemand["NG"], approx); diff != "" {
		t.Errorf("NG demand mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateThroughBridge(t *testing.T) {
	t.Parallel()
	s := fixture{sel: structure.Selection{flow.Primary: {"CH2"}, flow.Tertiary: {"CT1"}}}.build(t)

	res, err := Evaluate(s, vectorOf(t, s), testDemand(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// CH2 produces T6W for the exchanger and covers its losses
	want := []float64{320 / 0.98 / 4, 500 / 0.98 / 4, 410 / 0.98 / 4}
	if diff := cmp.Diff(want, res.Inputs[flow.Primary]["E400AC"].Profile(), approx); diff != "" {
		t.Errorf("CH2 power mismatch (-want +got):\n%s", diff)
	}
	if res.Installed[0].Bridge == nil {
		t.Error("CH2 installed without its heat exchanger")
	}
}

func TestEvaluateRejectsForeignVector(t *testing.T) {
	t.Parallel()
	s := fixture{sel: chillerPlant}.build(t)
	other := fixture{sel: structure.Selection{flow.Primary: {"CH2"}, flow.Tertiary: {"CT1"}}}.build(t)

	_, err := Evaluate(s, vectorOf(t, other), testDemand(t))
	if !errors.Is(err, ErrVectorMismatch) {
		t.Errorf("Evaluate error = %v, want ErrVectorMismatch", err)
	}
}

func TestSampleKeepsNonDominatedTrials(t *testing.T) {
	t.Parallel()
	s := fixture{
		sel: structure.Selection{flow.Primary: {"CH1", "ACH1"}, flow.Secondary: {"BO1"}, flow.Tertiary: {"CT1"}},
	}.build(t)
	mem, err := indicator.NewMemory(1000, indicator.DefaultBrackets, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	var seen, failed int
	best, err := Sample(context.Background(), s, testDemand(t), SampleOptions{
		Trials:     40,
		Objectives: []Objective{Cost, GHGEmissions},
		Rand:       rand.New(rand.NewPCG(3, 4)),
		Memory:     mem,
		OnTrial: func(_ Trial, err error) {
			seen++
			if err != nil {
				failed++
			}
		},
	})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if seen != 40 {
		t.Errorf("OnTrial called %d times, want 40", seen)
	}
	if len(best) == 0 {
		t.Fatalf("no feasible trial among %d (%d failed)", seen, failed)
	}
	for _, a := range best {
		for _, b := range best {
			if dominates(a.Fitness, b.Fitness) {
				t.Errorf("trial %d dominates trial %d in the returned front", a.Index, b.Index)
			}
		}
	}
	if mem.Len() == 0 {
		t.Error("memory not updated with the front")
	}
}

func TestSampleStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := fixture{sel: chillerPlant}.build(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sample(ctx, s, testDemand(t), SampleOptions{Trials: 5})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sample error = %v, want context.Canceled", err)
	}
}

func TestDominates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want bool
	}{
		{"better everywhere", []float64{1, 1}, []float64{2, 2}, true},
		{"better somewhere", []float64{1, 2}, []float64{2, 2}, true},
		{"equal", []float64{1, 2}, []float64{1, 2}, false},
		{"trade-off", []float64{1, 3}, []float64{2, 2}, false},
		{"length mismatch", []float64{1}, []float64{2, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := dominates(tt.a, tt.b); got != tt.want {
				t.Errorf("dominates(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseObjectives(t *testing.T) {
	t.Parallel()
	got, err := ParseObjectives([]string{"cost", "anthropogenic_heat"})
	if err != nil {
		t.Fatalf("ParseObjectives: %v", err)
	}
	if diff := cmp.Diff([]Objective{Cost, AnthropogenicHeat}, got); diff != "" {
		t.Errorf("ParseObjectives mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseObjective("comfort"); !errors.Is(err, ErrUnknownObjective) {
		t.Errorf("ParseObjective(comfort) = %v, want ErrUnknownObjective", err)
	}
}
