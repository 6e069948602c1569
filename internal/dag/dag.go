// Package dag provides the directed acyclic graph behind a supply-system
// structure: nodes are components, and an edge from A to B records that A
// depends on B, i.e. B's operation determines how much A has to handle.
package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when an edge would close a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// Node is a vertex of the graph.
type Node struct {
	ID       string
	Label    string
	Priority int // higher sorts first among nodes that become ready together
}

// Edge is a dependency: From depends on To.
type Edge struct {
	From, To string
}

// DAG is a directed acyclic graph. It is not safe for concurrent mutation.
type DAG struct {
	nodes map[string]*Node
	deps  map[string]map[string]bool // id -> what it depends on
	users map[string]map[string]bool // id -> what depends on it
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes: make(map[string]*Node),
		deps:  make(map[string]map[string]bool),
		users: make(map[string]map[string]bool),
	}
}

// AddNode adds a node. Returns ErrDuplicateNode if id is taken.
func (d *DAG) AddNode(id, label string, priority int) error {
	if _, ok := d.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	d.nodes[id] = &Node{ID: id, Label: label, Priority: priority}
	d.deps[id] = make(map[string]bool)
	d.users[id] = make(map[string]bool)
	return nil
}

// AddEdge records that from depends on to. Adding an existing edge is a no-op.
func (d *DAG) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	for _, id := range []string{from, to} {
		if _, ok := d.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	if d.deps[from][to] {
		return nil
	}
	if d.reaches(to, from) {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, from, to)
	}
	d.deps[from][to] = true
	d.users[to][from] = true
	return nil
}

// Node returns the node with the given ID, or nil.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all node IDs sorted alphabetically.
func (d *DAG) Nodes() []string {
	return sortedKeys(d.nodes)
}

// Len returns the number of nodes.
func (d *DAG) Len() int { return len(d.nodes) }

// Edges returns every edge sorted by From, then To.
func (d *DAG) Edges() []Edge {
	var out []Edge
	for _, from := range d.Nodes() {
		for _, to := range sortedKeys(d.deps[from]) {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Dependencies returns the direct dependencies of id, sorted.
func (d *DAG) Dependencies(id string) []string { return sortedKeys(d.deps[id]) }

// Dependents returns the nodes that directly depend on id, sorted.
func (d *DAG) Dependents(id string) []string { return sortedKeys(d.users[id]) }

// Ancestors returns everything id transitively depends on, sorted.
func (d *DAG) Ancestors(id string) []string { return d.closure(id, d.deps) }

// Descendants returns everything that transitively depends on id, sorted.
func (d *DAG) Descendants(id string) []string { return d.closure(id, d.users) }

// TopologicalSort returns node IDs with every dependency before its
// dependents. Nodes that become ready together are ordered by priority
// descending, then ID.
func (d *DAG) TopologicalSort() ([]string, error) {
	pending := make(map[string]int, len(d.nodes))
	var ready []string
	for id := range d.nodes {
		pending[id] = len(d.deps[id])
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	d.byPriority(ready)

	order := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var freed []string
		for user := range d.users[id] {
			pending[user]--
			if pending[user] == 0 {
				freed = append(freed, user)
			}
		}
		d.byPriority(freed)
		ready = append(ready, freed...)
	}
	if len(order) != len(d.nodes) {
		return nil, fmt.Errorf("%w: ordered %d of %d nodes", ErrCycle, len(order), len(d.nodes))
	}
	return order, nil
}

// reaches reports whether dst is reachable from src along dependency edges.
func (d *DAG) reaches(src, dst string) bool {
	seen := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range d.deps[cur] {
			if next == dst {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func (d *DAG) closure(id string, edges map[string]map[string]bool) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	seen := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range edges[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return sortedKeys(seen)
}

func (d *DAG) byPriority(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := d.nodes[ids[i]].Priority, d.nodes[ids[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
