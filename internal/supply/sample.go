package supply

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/indicator"
	"github.com/papapumpkin/caldera/internal/structure"
)

// Trial is one evaluated vector.
type Trial struct {
	Index   int
	Vector  *indicator.Vector
	Result  *Result
	Fitness []float64
}

// SampleOptions configures Sample.
type SampleOptions struct {
	Trials     int
	Objectives []Objective
	Rand       *rand.Rand
	Tolerance  float64
	// Memory, when set, warm-starts the first trial and receives the
	// non-dominated trials afterwards.
	Memory *indicator.Memory
	// OnTrial is called after every trial; err is non-nil for infeasible ones.
	OnTrial func(t Trial, err error)
}

// Sample evaluates the full-capacity vector (or a remembered one) followed
// by random vectors against one frozen structure, and returns the feasible
// trials no other feasible trial dominates. Infeasible trials are reported
// through OnTrial and skipped; any other error stops sampling.
func Sample(ctx context.Context, s *structure.Structure, demand flow.Flow, opts SampleOptions) ([]Trial, error) {
	if opts.Trials <= 0 {
		opts.Trials = 1
	}
	if len(opts.Objectives) == 0 {
		opts.Objectives = Objectives()
	}
	vopts := []indicator.Option{}
	if opts.Rand != nil {
		vopts = append(vopts, indicator.WithRand(opts.Rand))
	}
	if opts.Tolerance > 0 {
		vopts = append(vopts, indicator.WithTolerance(opts.Tolerance))
	}
	base, err := s.Indicators(vopts...)
	if err != nil {
		return nil, err
	}
	if opts.Memory != nil {
		if e, ok := opts.Memory.Recall(demand.Max(), base); ok {
			if err := base.Apply(e); err != nil {
				return nil, err
			}
		}
	}

	var feasible []Trial
	for i := range opts.Trials {
		if err := ctx.Err(); err != nil {
			return front(feasible), err
		}
		v := base.Clone()
		if i > 0 {
			v.Randomize()
		}
		res, err := Evaluate(s, v, demand)
		t := Trial{Index: i, Vector: v, Result: res}
		if err == nil {
			t.Fitness = res.Fitness(opts.Objectives)
			feasible = append(feasible, t)
		}
		if opts.OnTrial != nil {
			opts.OnTrial(t, err)
		}
		if err != nil && !errors.Is(err, fault.ErrUnmetEnergyBalance) {
			return front(feasible), err
		}
	}

	best := front(feasible)
	if opts.Memory != nil && len(best) > 0 {
		entries := make([]indicator.Entry, len(best))
		for i, t := range best {
			entries[i] = indicator.EntryOf(t.Vector, t.Fitness)
		}
		opts.Memory.Update(demand.Max(), entries)
		opts.Memory.Consolidate()
	}
	return best, nil
}

// front keeps trials no other trial dominates, dropping repeated vectors.
func front(ts []Trial) []Trial {
	seen := make(map[string]bool, len(ts))
	var out []Trial
	for i, t := range ts {
		key := t.Vector.Key()
		if seen[key] {
			continue
		}
		dominated := false
		for j, o := range ts {
			if i != j && dominates(o.Fitness, t.Fitness) {
				dominated = true
				break
			}
		}
		if !dominated {
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

// dominates reports whether a is no worse than b everywhere and better somewhere.
func dominates(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}
