// Package depgraph provides the directed dependency graph and the
// closure/reduction algorithms that shrink a raw discovered edge set to
// the minimal graph over the originally requested packages.
//
// Unlike a layout-oriented DAG, this graph is fully general: cycles are
// representable and every algorithm terminates on cyclic input.
// Inconsistent upstream metadata must degrade to a diagnostic, not a
// hang or a crash.
package depgraph

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] and [Graph.AddEdge]
	// when a node ID is empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")
)

// Edge is an ordered pair meaning "From requires To".
type Edge struct {
	From string
	To   string
}

// Graph is a directed graph over string node IDs.
// Edges are a set: adding a duplicate edge is a no-op. Self-edges are
// allowed and preserved since they feed cycle handling downstream.
//
// The zero value is not usable - use New. Graph is not safe for
// concurrent mutation without external synchronization.
type Graph struct {
	nodes    map[string]struct{}
	edges    map[Edge]struct{}
	outgoing map[string]map[string]struct{}
	incoming map[string]map[string]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		edges:    make(map[Edge]struct{}),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
	}
}

// FromEdges builds a graph whose nodes are the union of all edge
// endpoints. Duplicate edges collapse into one.
func FromEdges(edges []Edge) (*Graph, error) {
	g := New()
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode adds a node. Adding an existing node is a no-op.
// Returns ErrInvalidNodeID for an empty ID.
func (g *Graph) AddNode(id string) error {
	if id == "" {
		return ErrInvalidNodeID
	}
	g.nodes[id] = struct{}{}
	return nil
}

// AddEdge adds a directed edge, creating missing endpoint nodes.
// Adding an existing edge is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	if from == "" || to == "" {
		return ErrInvalidNodeID
	}
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}

	e := Edge{From: from, To: to}
	if _, dup := g.edges[e]; dup {
		return nil
	}
	g.edges[e] = struct{}{}

	if g.outgoing[from] == nil {
		g.outgoing[from] = make(map[string]struct{})
	}
	g.outgoing[from][to] = struct{}{}
	if g.incoming[to] == nil {
		g.incoming[to] = make(map[string]struct{})
	}
	g.incoming[to][from] = struct{}{}
	return nil
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether the edge from→to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// Nodes returns all node IDs in lexicographic order.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Edges returns all edges sorted by (From, To).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, CompareEdges)
	return edges
}

// Children returns the direct successors of id in lexicographic order.
func (g *Graph) Children(id string) []string {
	return sortedKeys(g.outgoing[id])
}

// Parents returns the direct predecessors of id in lexicographic order.
func (g *Graph) Parents(id string) []string {
	return sortedKeys(g.incoming[id])
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Equal reports whether two graphs have identical node and edge sets.
func (g *Graph) Equal(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for id := range g.nodes {
		if _, ok := other.nodes[id]; !ok {
			return false
		}
	}
	for e := range g.edges {
		if _, ok := other.edges[e]; !ok {
			return false
		}
	}
	return true
}

// CompareEdges orders edges by (From, To) for deterministic output.
func CompareEdges(a, b Edge) int {
	if a.From != b.From {
		if a.From < b.From {
			return -1
		}
		return 1
	}
	if a.To != b.To {
		if a.To < b.To {
			return -1
		}
		return 1
	}
	return 0
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
