package archive

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/caldera/internal/indicator"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(t *testing.T) *indicator.Memory {
	t.Helper()
	m, err := indicator.NewMemory(1000, 10, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return m
}

func TestMemoryRoundTripKeepsBrackets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	m := testMemory(t)
	m.Update(450, []indicator.Entry{
		{Structure: "primary/CH1;tertiary/CT1", Values: []float64{0.5, 1}, Fitness: []float64{120, 3}},
		{Structure: "primary/CH1;tertiary/CT1", Values: []float64{0.75, 1}},
	})
	if err := s.SaveMemory(ctx, "campus", m); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	got, err := s.LoadMemory(ctx, "campus", nil)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if diff := cmp.Diff(m.Medians(), got.Medians()); diff != "" {
		t.Errorf("medians mismatch (-want +got):\n%s", diff)
	}
	for b := range len(m.Medians()) {
		if diff := cmp.Diff(m.Entries(b), got.Entries(b)); diff != "" {
			t.Errorf("bracket %d mismatch (-want +got):\n%s", b, diff)
		}
	}
}

func TestSaveMemoryReplacesEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	m := testMemory(t)
	m.Update(50, []indicator.Entry{{Structure: "a", Values: []float64{0.1}}})
	if err := s.SaveMemory(ctx, "campus", m); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}
	m.Clear()
	m.Update(950, []indicator.Entry{{Structure: "b", Values: []float64{0.2}}})
	if err := s.SaveMemory(ctx, "campus", m); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	got, err := s.LoadMemory(ctx, "campus", nil)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if got.Len() != m.Len() {
		t.Errorf("Len = %d, want %d", got.Len(), m.Len())
	}
	if es := got.Entries(0); len(es) != 0 {
		t.Errorf("bracket 0 = %+v, want cleared", es)
	}
}

func TestLoadMemoryMissing(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	if _, err := s.LoadMemory(context.Background(), "absent", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	for _, name := range []string{"b", "a"} {
		if err := s.SaveMemory(ctx, name, testMemory(t)); err != nil {
			t.Fatalf("SaveMemory(%s): %v", name, err)
		}
	}
	names, err := s.Memories(ctx)
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteMemory(ctx, "a"); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}
	if err := s.DeleteMemory(ctx, "a"); err != nil {
		t.Errorf("second DeleteMemory: %v", err)
	}
	names, err = s.Memories(ctx)
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if diff := cmp.Diff([]string{"b"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "r1", Case: "campus", Structure: "primary/CH1", Trials: 10, Front: 2, CreatedAt: base},
		{ID: "r2", Case: "campus", Structure: "primary/CH1", Trials: 20, Front: 3, CreatedAt: base.Add(time.Hour)},
		{ID: "r3", Case: "other", Structure: "primary/BO1", Trials: 5, Front: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.ID, err)
		}
	}

	got, err := s.Runs(ctx, "campus", 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if diff := cmp.Diff([]Run{runs[1], runs[0]}, got); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	if err := s.RecordRun(ctx, runs[0]); err == nil {
		t.Error("duplicate run id should fail")
	}
}
