package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/depwalk/pkg/depgraph"
)

func TestToDOT(t *testing.T) {
	g, err := depgraph.FromEdges([]depgraph.Edge{
		{From: "app", To: "requests"},
		{From: "requests", To: "urllib3"},
	})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	got := ToDOT(g, Options{})
	want := `digraph "dependencies" {
  rankdir=RL;

  "app";
  "requests";
  "urllib3";

  "app" -> "requests";
  "requests" -> "urllib3";
}
`
	if got != want {
		t.Errorf("ToDOT() =\n%s\nwant:\n%s", got, want)
	}
}

func TestToDOTDeterministic(t *testing.T) {
	edges := []depgraph.Edge{
		{From: "a", To: "b"}, {From: "b", To: "c"},
		{From: "a", To: "c"}, {From: "c", To: "d"},
	}

	forward, err := depgraph.FromEdges(edges)
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	reversed := depgraph.New()
	for i := len(edges) - 1; i >= 0; i-- {
		if err := reversed.AddEdge(edges[i].From, edges[i].To); err != nil {
			t.Fatalf("AddEdge() error = %v", err)
		}
	}

	if a, b := ToDOT(forward, Options{}), ToDOT(reversed, Options{}); a != b {
		t.Errorf("ToDOT() differs across insertion orders:\n%s\nvs:\n%s", a, b)
	}
}

func TestToDOTCycleNodesDashed(t *testing.T) {
	g, err := depgraph.FromEdges([]depgraph.Edge{
		{From: "a", To: "b"}, {From: "b", To: "a"},
	})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	got := ToDOT(g, Options{CycleNodes: []string{"a", "b"}})
	if !strings.Contains(got, `"a" [style=dashed];`) {
		t.Errorf("ToDOT() missing dashed style for cycle node:\n%s", got)
	}
}

func TestToDOTOptions(t *testing.T) {
	g := depgraph.New()
	if err := g.AddNode("solo"); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}

	got := ToDOT(g, Options{Name: "deps", Rankdir: "TB"})
	if !strings.HasPrefix(got, "digraph \"deps\" {\n  rankdir=TB;\n") {
		t.Errorf("ToDOT() header = %q", got[:min(len(got), 40)])
	}
	if !strings.Contains(got, `"solo";`) {
		t.Errorf("ToDOT() missing isolated node:\n%s", got)
	}
}
