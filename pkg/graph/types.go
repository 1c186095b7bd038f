// Package graph defines the canonical serialization format for reduced
// dependency graphs, used for API responses, storage, and caching.
package graph

import (
	"encoding/json"

	"github.com/matzehuels/depwalk/pkg/depgraph"
	"github.com/matzehuels/depwalk/pkg/errors"
)

// Graph is the serialization format for a reduced dependency graph.
// Nodes and edges are kept sorted so that import, export, and re-import
// produce identical documents.
type Graph struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// Node is a package in a serialized graph.
type Node struct {
	ID string `json:"id" bson:"id"`
	// Cyclic marks packages whose mutual dependencies made the reduction
	// non-unique.
	Cyclic bool `json:"cyclic,omitempty" bson:"cyclic,omitempty"`
}

// Edge is a directed dependency: From requires To.
type Edge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
}

// CycleNodes returns the IDs of nodes flagged as cyclic, in graph order.
func (g Graph) CycleNodes() []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Cyclic {
			out = append(out, n.ID)
		}
	}
	return out
}

// FromGraph converts an in-memory graph to its serialization format.
func FromGraph(g *depgraph.Graph) Graph {
	return fromGraph(g, nil)
}

// FromReduction converts a reduction result, carrying its cycle
// diagnostics as node flags.
func FromReduction(red depgraph.Reduction) Graph {
	cyclic := make(map[string]bool, len(red.CycleNodes))
	for _, n := range red.CycleNodes {
		cyclic[n] = true
	}
	return fromGraph(red.Graph, cyclic)
}

func fromGraph(g *depgraph.Graph, cyclic map[string]bool) Graph {
	nodes := g.Nodes()
	edges := g.Edges()

	out := Graph{
		Nodes: make([]Node, len(nodes)),
		Edges: make([]Edge, len(edges)),
	}
	for i, id := range nodes {
		out.Nodes[i] = Node{ID: id, Cyclic: cyclic[id]}
	}
	for i, e := range edges {
		out.Edges[i] = Edge{From: e.From, To: e.To}
	}
	return out
}

// ToGraph converts a serialized graph back to its in-memory form.
func (g Graph) ToGraph() (*depgraph.Graph, error) {
	d := depgraph.New()
	for _, n := range g.Nodes {
		if err := d.AddNode(n.ID); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid node %q", n.ID)
		}
	}
	for _, e := range g.Edges {
		if err := d.AddEdge(e.From, e.To); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid edge %q -> %q", e.From, e.To)
		}
	}
	return d, nil
}

// MarshalIndent renders the graph as indented JSON for file output.
func (g Graph) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal graph")
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a serialized graph from JSON.
func Unmarshal(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse graph document")
	}
	return g, nil
}
