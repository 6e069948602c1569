package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type nodeSpec struct {
	id       string
	priority int
	deps     []string
}

func buildDAG(t *testing.T, specs []nodeSpec) *DAG {
	t.Helper()
	d := New()
	for _, s := range specs {
		if err := d.AddNode(s.id, "label "+s.id, s.priority); err != nil {
			t.Fatalf("AddNode(%q): %v", s.id, err)
		}
	}
	for _, s := range specs {
		for _, dep := range s.deps {
			if err := d.AddEdge(s.id, dep); err != nil {
				t.Fatalf("AddEdge(%q, %q): %v", s.id, dep, err)
			}
		}
	}
	return d
}

// plant is a chiller and absorption chiller, a boiler driving the absorption
// chiller and a cooling tower absorbing both chillers' waste heat.
func plant(t *testing.T) *DAG {
	t.Helper()
	return buildDAG(t, []nodeSpec{
		{id: "primary/CH1", priority: 10},
		{id: "primary/ACH1", priority: 9},
		{id: "secondary/BO1", priority: 5, deps: []string{"primary/ACH1"}},
		{id: "tertiary/CT1", priority: 1, deps: []string{"primary/CH1", "primary/ACH1"}},
	})
}

func TestAddNodeAndEdgeErrors(t *testing.T) {
	t.Parallel()
	d := plant(t)

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"duplicate", d.AddNode("primary/CH1", "", 0), ErrDuplicateNode},
		{"self edge", d.AddEdge("primary/CH1", "primary/CH1"), ErrSelfEdge},
		{"missing node", d.AddEdge("primary/CH1", "nope"), ErrNodeNotFound},
		{"cycle", d.AddEdge("primary/ACH1", "tertiary/CT1"), ErrCycle},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.wantErr) {
			t.Errorf("%s: error = %v, want %v", tt.name, tt.err, tt.wantErr)
		}
	}
	if err := d.AddEdge("tertiary/CT1", "primary/CH1"); err != nil {
		t.Errorf("re-adding an edge should be a no-op, got %v", err)
	}
	if d.Len() != 4 {
		t.Errorf("Len() = %d, want 4", d.Len())
	}
}

func TestTopologicalSortHonoursPriority(t *testing.T) {
	t.Parallel()
	d := plant(t)

	got, err := d.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	want := []string{"primary/CH1", "primary/ACH1", "secondary/BO1", "tertiary/CT1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestClosures(t *testing.T) {
	t.Parallel()
	d := plant(t)

	if diff := cmp.Diff([]string{"primary/ACH1", "primary/CH1"}, d.Ancestors("tertiary/CT1")); diff != "" {
		t.Errorf("Ancestors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"secondary/BO1", "tertiary/CT1"}, d.Descendants("primary/ACH1")); diff != "" {
		t.Errorf("Descendants mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tertiary/CT1"}, d.Dependents("primary/CH1")); diff != "" {
		t.Errorf("Dependents mismatch (-want +got):\n%s", diff)
	}
	if got := d.Ancestors("missing"); got != nil {
		t.Errorf("Ancestors(missing) = %v, want nil", got)
	}
	if got := d.Dependencies("primary/CH1"); len(got) != 0 {
		t.Errorf("Dependencies(primary/CH1) = %v, want none", got)
	}
}

func TestEdgesSorted(t *testing.T) {
	t.Parallel()
	d := plant(t)

	want := []Edge{
		{From: "secondary/BO1", To: "primary/ACH1"},
		{From: "tertiary/CT1", To: "primary/ACH1"},
		{From: "tertiary/CT1", To: "primary/CH1"},
	}
	if diff := cmp.Diff(want, d.Edges()); diff != "" {
		t.Errorf("Edges mismatch (-want +got):\n%s", diff)
	}
	if n := d.Node("secondary/BO1"); n == nil || n.Label != "label secondary/BO1" {
		t.Errorf("Node(secondary/BO1) = %+v", n)
	}
}
