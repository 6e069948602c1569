package arch_test

import "testing"

// layers places each internal package in the dependency order. A package may
// import packages from its own layer or any layer below it.
var layers = map[string]int{
	"config":    0,
	"dag":       0,
	"fault":     0,
	"telemetry": 0,

	"carrier": 1,

	"flow": 2,

	"component": 3,
	"indicator": 3,

	"archive":   4,
	"database":  4,
	"structure": 4,

	"scenario": 5,
	"supply":   5,

	"ui": 6,
}

func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		layer, ok := layers[pkg]
		if !ok {
			continue
		}
		for _, imp := range internalImports(t, pkg) {
			if other, ok := layers[imp]; ok && other > layer {
				t.Errorf("%s (layer %d) imports %s (layer %d)", pkg, layer, imp, other)
			}
		}
	}
}

func TestEveryPackageHasALayer(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer; add it to layers", pkg)
		}
	}
}
