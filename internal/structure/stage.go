package structure

import (
	"sort"

	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/flow"
)

// member is a component under construction: what it serves and what it
// draws and rejects when operated at its category's peak.
type member struct {
	active  *component.Component
	bridges []*component.Component
	serves  string
	inputs  map[string]flow.Flow
	outputs map[string]flow.Flow
}

func (m *member) bridge() *component.Component {
	if len(m.bridges) == 0 {
		return nil
	}
	return m.bridges[0]
}

// stage is one supply category in progress.
type stage struct {
	placement flow.Placement
	required  map[string]float64        // carrier -> peak demand
	origin    map[string]flow.Placement // carrier -> placement that demands it
	members   []*member
	byCode    map[string]*member
	order     []string

	maxIn, maxOut       map[string]float64
	sharesIn, sharesOut map[string]map[string]float64 // carrier -> code -> share
}

func newStage(p flow.Placement) *stage {
	return &stage{
		placement: p,
		required:  make(map[string]float64),
		origin:    make(map[string]flow.Placement),
		byCode:    make(map[string]*member),
		maxIn:     make(map[string]float64),
		maxOut:    make(map[string]float64),
		sharesIn:  make(map[string]map[string]float64),
		sharesOut: make(map[string]map[string]float64),
	}
}

// demand adds peak to a carrier's requirement.
func (st *stage) demand(code string, peak float64, from flow.Placement) {
	if _, ok := st.origin[code]; !ok {
		st.origin[code] = from
	}
	st.required[code] += peak
}

// carriers returns the required carriers sorted.
func (st *stage) carriers() []string {
	return sortedKeys(st.required)
}

// add commits discovered members. A model already serving another carrier
// keeps its first assignment; it reports how many were committed.
func (st *stage) add(ms []*member) int {
	n := 0
	for _, m := range ms {
		if _, dup := st.byCode[m.active.Code()]; dup {
			continue
		}
		st.byCode[m.active.Code()] = m
		st.members = append(st.members, m)
		n++
	}
	return n
}

// target is the peak flow a member must deliver or absorb. Generators
// deliver towards the origin of the demand; absorbers take from it.
func (st *stage) target(code string) (flow.Flow, error) {
	if st.placement == flow.Tertiary {
		return flow.Peak(st.origin[code], st.placement, code, st.required[code])
	}
	return flow.Peak(st.placement, st.origin[code], code, st.required[code])
}

// tally records per-carrier maxima across members and each member's share
// of them.
func (st *stage) tally() {
	for _, m := range st.members {
		for code, f := range m.inputs {
			st.maxIn[code] = max(st.maxIn[code], f.Max())
		}
		for code, f := range m.outputs {
			st.maxOut[code] = max(st.maxOut[code], f.Max())
		}
	}
	shares := func(flows func(*member) map[string]flow.Flow, maxima map[string]float64, dst map[string]map[string]float64) {
		for _, m := range st.members {
			for code, f := range flows(m) {
				if maxima[code] <= 0 {
					continue
				}
				if dst[code] == nil {
					dst[code] = make(map[string]float64)
				}
				dst[code][m.active.Code()] = f.Max() / maxima[code]
			}
		}
	}
	shares(func(m *member) map[string]flow.Flow { return m.inputs }, st.maxIn, st.sharesIn)
	shares(func(m *member) map[string]flow.Flow { return m.outputs }, st.maxOut, st.sharesOut)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
