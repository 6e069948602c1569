package flow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustFlow(t *testing.T, in, out Placement, carrier string, profile ...float64) Flow {
	t.Helper()
	f, err := New(in, out, carrier, profile)
	if err != nil {
		t.Fatalf("New(%s, %s, %s): %v", in, out, carrier, err)
	}
	return f
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in, out Placement
		carrier string
		profile []float64
		wantErr error
	}{
		{"consumer to primary", Consumer, Primary, "T10W", []float64{1}, ErrInvalidPlacement},
		{"tertiary to consumer", Tertiary, Consumer, "T10W", []float64{1}, ErrInvalidPlacement},
		{"empty profile", Primary, Consumer, "T10W", nil, ErrInvalidProfile},
		{"empty carrier", Primary, Consumer, "", []float64{1}, ErrIncompatible},
		{"ok", Primary, Consumer, "T10W", []float64{1, 2}, nil},
		{"source to tertiary", Source, Tertiary, "E230AC", []float64{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.in, tt.out, tt.carrier, tt.profile)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClipsNegativeAndCopies(t *testing.T) {
	t.Parallel()

	src := []float64{-3, 4}
	f := mustFlow(t, Primary, Consumer, "T10W", src...)
	src[1] = 100

	if diff := cmp.Diff([]float64{0, 4}, f.Profile()); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	p := f.Profile()
	p[0] = 9
	if f.At(0) != 0 {
		t.Error("Profile() must return a copy")
	}
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	a := mustFlow(t, Primary, Consumer, "T10W", 1, 5, 3)
	b := mustFlow(t, Primary, Consumer, "T10W", 2, 2, 2)
	scalar := mustFlow(t, Primary, Consumer, "T10W", 4)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if diff := cmp.Diff([]float64{3, 7, 5}, sum.Profile()); diff != "" {
		t.Errorf("Add mismatch (-want +got):\n%s", diff)
	}

	diff, err := a.Sub(scalar)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if d := cmp.Diff([]float64{0, 1, 0}, diff.Profile()); d != "" {
		t.Errorf("Sub mismatch (-want +got):\n%s", d)
	}

	if d := cmp.Diff([]float64{1, 4, 3}, a.CapAt(4).Profile()); d != "" {
		t.Errorf("CapAt mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]float64{0.5, 2.5, 1.5}, a.Scale(0.5).Profile()); d != "" {
		t.Errorf("Scale mismatch (-want +got):\n%s", d)
	}
	capped, err := a.CapAtFlow(b)
	if err != nil {
		t.Fatalf("CapAtFlow: %v", err)
	}
	if d := cmp.Diff([]float64{1, 2, 2}, capped.Profile()); d != "" {
		t.Errorf("CapAtFlow mismatch (-want +got):\n%s", d)
	}

	if a.Max() != 5 || a.Min() != 1 || a.Sum() != 9 {
		t.Errorf("Max/Min/Sum = %v/%v/%v, want 5/1/9", a.Max(), a.Min(), a.Sum())
	}
	// Operands are untouched.
	if d := cmp.Diff([]float64{1, 5, 3}, a.Profile()); d != "" {
		t.Errorf("operand mutated (-want +got):\n%s", d)
	}
}

func TestIncompatibleOperands(t *testing.T) {
	t.Parallel()

	a := mustFlow(t, Primary, Consumer, "T10W", 1, 2)
	other := mustFlow(t, Primary, Consumer, "T6W", 1, 2)
	long := mustFlow(t, Primary, Consumer, "T10W", 1, 2, 3)

	if _, err := a.Add(other); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Add(other carrier) error = %v, want ErrIncompatible", err)
	}
	if _, err := a.Sub(long); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Sub(longer) error = %v, want ErrIncompatible", err)
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	flows := []Flow{
		mustFlow(t, Source, Primary, "E230AC", 1, 1),
		mustFlow(t, Source, Primary, "NG", 3, 0),
		mustFlow(t, Source, Primary, "E230AC", 2, 5),
	}
	got, err := Aggregate(flows)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if diff := cmp.Diff([]string{"E230AC", "NG"}, Carriers(got)); diff != "" {
		t.Errorf("carriers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 6}, got["E230AC"].Profile()); diff != "" {
		t.Errorf("E230AC mismatch (-want +got):\n%s", diff)
	}
}

func TestPlacementHelpers(t *testing.T) {
	t.Parallel()

	if _, err := ParsePlacement("attic"); !errors.Is(err, ErrInvalidPlacement) {
		t.Errorf("ParsePlacement(attic) error = %v", err)
	}
	for _, p := range SupplyCategories() {
		up, down := Upstream(p), Downstream(p)
		if !Allowed(up, p) {
			t.Errorf("Allowed(%s, %s) = false, want true", up, p)
		}
		if !Allowed(p, down) {
			t.Errorf("Allowed(%s, %s) = false, want true", p, down)
		}
	}
}

func TestAsDerivesScaledFlow(t *testing.T) {
	t.Parallel()

	target := mustFlow(t, Primary, Consumer, "T10W", 100, 50)
	el, err := target.As(Secondary, Primary, "E230AC", 0.25)
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if el.Carrier() != "E230AC" || el.In() != Secondary || el.Out() != Primary {
		t.Errorf("As() = %s", el)
	}
	if diff := cmp.Diff([]float64{25, 12.5}, el.Profile()); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	if _, err := target.As(Consumer, Primary, "E230AC", 1); !errors.Is(err, ErrInvalidPlacement) {
		t.Errorf("As(consumer->primary) error = %v, want ErrInvalidPlacement", err)
	}
}
