package indicator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// DefaultBrackets is the number of demand brackets a Memory keeps.
const DefaultBrackets = 20

// neighbourReach is how many brackets on each side an update may seed.
const neighbourReach = 2

// Entry is a remembered vector: its structure key, its values and,
// optionally, the objective values it achieved (lower is better).
type Entry struct {
	Structure string
	Values    []float64
	Fitness   []float64
}

// EntryOf captures a vector and its fitness.
func EntryOf(v *Vector, fitness []float64) Entry {
	return Entry{Structure: v.StructureKey(), Values: v.Values(), Fitness: slices.Clone(fitness)}
}

func (e Entry) valueKey() string {
	parts := make([]string, len(e.Values))
	for i, x := range e.Values {
		parts[i] = strconv.FormatFloat(x, 'f', 2, 64)
	}
	return e.Structure + "|" + strings.Join(parts, ",")
}

// Memory remembers good vectors bucketed by target peak demand so a search
// can warm-start on similar targets. It is a hint only: an empty memory never
// changes correctness. Memory is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	maxDemand float64
	medians   []float64
	entries   [][]Entry
	rng       *rand.Rand
}

// NewMemory creates a memory of n equal brackets spanning (0, maxDemand].
func NewMemory(maxDemand float64, n int, rng *rand.Rand) (*Memory, error) {
	if maxDemand <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: memory needs positive demand range and bracket count, got %v and %d", ErrShape, maxDemand, n)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := &Memory{maxDemand: maxDemand, medians: make([]float64, n), entries: make([][]Entry, n), rng: rng}
	width := maxDemand / float64(n)
	for i := range m.medians {
		m.medians[i] = (float64(i) + 0.5) * width
	}
	return m, nil
}

// MaxDemand returns the upper end of the bracketed demand range.
func (m *Memory) MaxDemand() float64 { return m.maxDemand }

// Medians returns the bracket medians in ascending order.
func (m *Memory) Medians() []float64 { return slices.Clone(m.medians) }

// Bracket returns the index of the bracket whose median is nearest peak.
func (m *Memory) Bracket(peak float64) int {
	best, dist := 0, math.Inf(1)
	for i, med := range m.medians {
		if d := math.Abs(med - peak); d < dist {
			best, dist = i, d
		}
	}
	return best
}

// Update replaces the entries of peak's bracket and seeds up to two empty
// brackets on each side with the same entries.
func (m *Memory) Update(peak float64, entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.Bracket(peak)
	m.entries[b] = cloneEntries(entries)
	for d := 1; d <= neighbourReach; d++ {
		for _, n := range []int{b - d, b + d} {
			if n >= 0 && n < len(m.entries) && len(m.entries[n]) == 0 {
				m.entries[n] = cloneEntries(entries)
			}
		}
	}
}

// Restore sets the entries of one bracket directly, as when loading a
// persisted memory.
func (m *Memory) Restore(bracket int, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bracket < 0 || bracket >= len(m.entries) {
		return fmt.Errorf("%w: bracket %d outside [0, %d)", ErrShape, bracket, len(m.entries))
	}
	m.entries[bracket] = cloneEntries(entries)
	return nil
}

// Entries returns a copy of one bracket's entries.
func (m *Memory) Entries(bracket int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bracket < 0 || bracket >= len(m.entries) {
		return nil
	}
	return cloneEntries(m.entries[bracket])
}

// Len returns the total number of remembered entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, es := range m.entries {
		n += len(es)
	}
	return n
}

// Recall returns a random entry of peak's bracket whose structure matches v.
func (m *Memory) Recall(peak float64, v *Vector) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := v.StructureKey()
	var matches []Entry
	for _, e := range m.entries[m.Bracket(peak)] {
		if e.Structure == key {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return Entry{}, false
	}
	e := matches[m.rng.IntN(len(matches))]
	return Entry{Structure: e.Structure, Values: slices.Clone(e.Values), Fitness: slices.Clone(e.Fitness)}, true
}

// Clear forgets everything.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		m.entries[i] = nil
	}
}

// Consolidate drops duplicate entries in every bracket and, among entries
// with fitness of equal length, those dominated by another entry.
func (m *Memory) Consolidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, es := range m.entries {
		m.entries[i] = nonDominated(dedupe(es))
	}
}

func dedupe(es []Entry) []Entry {
	seen := make(map[string]bool, len(es))
	var out []Entry
	for _, e := range es {
		k := e.valueKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

func nonDominated(es []Entry) []Entry {
	var out []Entry
	for i, e := range es {
		dominated := false
		for j, o := range es {
			if i != j && dominates(o.Fitness, e.Fitness) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, e)
		}
	}
	return out
}

// dominates reports whether a is no worse than b everywhere and better somewhere.
func dominates(a, b []float64) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	better := false
	for k := range a {
		if a[k] > b[k] {
			return false
		}
		if a[k] < b[k] {
			better = true
		}
	}
	return better
}

func cloneEntries(es []Entry) []Entry {
	if es == nil {
		return nil
	}
	out := make([]Entry, len(es))
	for i, e := range es {
		out[i] = Entry{Structure: e.Structure, Values: slices.Clone(e.Values), Fitness: slices.Clone(e.Fitness)}
	}
	return out
}

// Apply assigns a remembered entry's values to v. The entry must come from a
// vector of the same structure.
func (v *Vector) Apply(e Entry) error {
	if e.Structure != v.StructureKey() {
		return fmt.Errorf("%w: entry structure %q does not match %q", ErrShape, e.Structure, v.StructureKey())
	}
	return v.Set(e.Values)
}
