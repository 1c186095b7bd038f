package depgraph

import (
	"slices"
	"testing"
)

func mustReduce(t *testing.T, edges []Edge, keep []string) Reduction {
	t.Helper()
	red, err := ReduceEdges(edges, keep)
	if err != nil {
		t.Fatalf("ReduceEdges() error = %v", err)
	}
	return red
}

func TestReduceDropsImpliedEdge(t *testing.T) {
	red := mustReduce(t,
		[]Edge{{"x", "y"}, {"x", "z"}, {"y", "z"}},
		[]string{"x", "y", "z"},
	)
	want := []Edge{{"x", "y"}, {"y", "z"}}
	if got := red.Graph.Edges(); !slices.Equal(got, want) {
		t.Errorf("Reduce() edges = %v, want %v", got, want)
	}
	if red.Cyclic() {
		t.Errorf("Cyclic() = true, want false")
	}
}

func TestReduceDropsUnrequestedNodes(t *testing.T) {
	red := mustReduce(t,
		[]Edge{{"a", "c"}, {"b", "c"}},
		[]string{"a", "b"},
	)
	if got, want := red.Graph.Nodes(), []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("Reduce() nodes = %v, want %v", got, want)
	}
	if got := red.Graph.Edges(); len(got) != 0 {
		t.Errorf("Reduce() edges = %v, want none", got)
	}
}

func TestReduceSummarizesPathsThroughDroppedNodes(t *testing.T) {
	// a depends on c only via b; restricting to {a, c} keeps the
	// relationship as a direct edge.
	red := mustReduce(t,
		[]Edge{{"a", "b"}, {"b", "c"}},
		[]string{"a", "c"},
	)
	want := []Edge{{"a", "c"}}
	if got := red.Graph.Edges(); !slices.Equal(got, want) {
		t.Errorf("Reduce() edges = %v, want %v", got, want)
	}
}

func TestReduceIdempotent(t *testing.T) {
	edges := []Edge{
		{"app", "requests"}, {"app", "urllib3"}, {"app", "certifi"},
		{"requests", "urllib3"}, {"requests", "certifi"}, {"requests", "idna"},
	}
	keep := []string{"app", "certifi", "idna", "requests", "urllib3"}

	once := mustReduce(t, edges, keep)
	twice := mustReduce(t, once.Graph.Edges(), keep)
	if !once.Graph.Equal(twice.Graph) {
		t.Errorf("reducing a reduced graph changed it:\nonce  = %v\ntwice = %v",
			once.Graph.Edges(), twice.Graph.Edges())
	}
}

func TestReducePreservesClosure(t *testing.T) {
	edges := []Edge{
		{"a", "b"}, {"a", "d"}, {"b", "c"}, {"b", "d"},
		{"c", "e"}, {"d", "e"}, {"a", "e"},
	}
	keep := []string{"a", "b", "c", "d", "e"}

	raw, err := FromEdges(edges)
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}
	red := mustReduce(t, edges, keep)

	wantClosure := Restrict(TransitiveClosure(raw), keep)
	gotClosure := TransitiveClosure(red.Graph)
	if !gotClosure.Equal(wantClosure) {
		t.Errorf("closure not preserved:\ngot  = %v\nwant = %v",
			gotClosure.Edges(), wantClosure.Edges())
	}
}

func TestReduceCycleBecomesRing(t *testing.T) {
	red := mustReduce(t,
		[]Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}},
		[]string{"a", "b", "c"},
	)
	want := []Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}}
	if got := red.Graph.Edges(); !slices.Equal(got, want) {
		t.Errorf("Reduce() edges = %v, want %v", got, want)
	}
	if got, wantNodes := red.CycleNodes, []string{"a", "b", "c"}; !slices.Equal(got, wantNodes) {
		t.Errorf("CycleNodes = %v, want %v", got, wantNodes)
	}
}

func TestReduceCycleWithTail(t *testing.T) {
	// Cycle {a, b} with a downstream dependency d reached through c,
	// which is not requested. The cycle collapses to a ring and the
	// component keeps a single summarizing edge to d.
	red := mustReduce(t,
		[]Edge{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "d"}},
		[]string{"a", "b", "d"},
	)
	want := []Edge{{"a", "b"}, {"a", "d"}, {"b", "a"}}
	if got := red.Graph.Edges(); !slices.Equal(got, want) {
		t.Errorf("Reduce() edges = %v, want %v", got, want)
	}
	if got, wantNodes := red.CycleNodes, []string{"a", "b"}; !slices.Equal(got, wantNodes) {
		t.Errorf("CycleNodes = %v, want %v", got, wantNodes)
	}

	// Mutual reachability and the path to d survive reduction.
	closure := TransitiveClosure(red.Graph)
	for _, e := range []Edge{{"a", "b"}, {"b", "a"}, {"a", "d"}, {"b", "d"}} {
		if !closure.HasEdge(e.From, e.To) {
			t.Errorf("closure missing edge %v", e)
		}
	}
}

func TestReduceSelfDependency(t *testing.T) {
	red := mustReduce(t,
		[]Edge{{"a", "a"}, {"a", "b"}},
		[]string{"a", "b"},
	)
	want := []Edge{{"a", "a"}, {"a", "b"}}
	if got := red.Graph.Edges(); !slices.Equal(got, want) {
		t.Errorf("Reduce() edges = %v, want %v", got, want)
	}
	if got, wantNodes := red.CycleNodes, []string{"a"}; !slices.Equal(got, wantNodes) {
		t.Errorf("CycleNodes = %v, want %v", got, wantNodes)
	}
}

func TestReduceDeterministic(t *testing.T) {
	edges := []Edge{
		{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"}, {"b", "d"},
	}
	keep := []string{"a", "b", "c", "d"}

	base := mustReduce(t, edges, keep)
	for range 10 {
		shuffled := slices.Clone(edges)
		slices.Reverse(shuffled)
		again := mustReduce(t, shuffled, keep)
		if !base.Graph.Equal(again.Graph) {
			t.Fatalf("Reduce() not deterministic across input orders:\nbase  = %v\nagain = %v",
				base.Graph.Edges(), again.Graph.Edges())
		}
	}
}
