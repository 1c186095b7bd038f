package nodelink

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/depwalk/pkg/depgraph"
)

// Options configures DOT output.
type Options struct {
	// Name is the graph identifier in the DOT header (default: "dependencies").
	Name string
	// Rankdir sets the layout direction (default: "RL", so dependencies
	// point left toward what requires them).
	Rankdir string
	// CycleNodes are drawn with a dashed outline to flag packages whose
	// mutual dependencies made the reduction non-unique.
	CycleNodes []string
}

func (o Options) withDefaults() Options {
	opts := o
	if opts.Name == "" {
		opts.Name = "dependencies"
	}
	if opts.Rankdir == "" {
		opts.Rankdir = "RL"
	}
	return opts
}

// ToDOT serializes a graph to Graphviz DOT. Nodes are emitted first in
// lexicographic order, then edges sorted by source and target, so equal
// graphs produce identical bytes.
func ToDOT(g *depgraph.Graph, opts Options) string {
	opts = opts.withDefaults()

	cyclic := make(map[string]bool, len(opts.CycleNodes))
	for _, n := range opts.CycleNodes {
		cyclic[n] = true
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", opts.Name)
	fmt.Fprintf(&buf, "  rankdir=%s;\n", opts.Rankdir)
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		if cyclic[n] {
			fmt.Fprintf(&buf, "  %q [style=dashed];\n", n)
			continue
		}
		fmt.Fprintf(&buf, "  %q;\n", n)
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}
