package depgraph

import "slices"

// Reduction is the outcome of reducing a raw edge set to the minimal
// graph over the requested packages.
type Reduction struct {
	// Graph is the reduced graph. Its node set is exactly the requested
	// package set; its transitive closure equals the closure of the raw
	// graph restricted to those packages.
	Graph *Graph

	// CycleNodes lists requested packages that participate in mutual
	// (possibly indirect) dependencies, sorted. Reduction under cycles is
	// not unique, so the output for these nodes is one minimal
	// representative; callers should surface this as a diagnostic.
	// Empty for well-formed dependency data.
	CycleNodes []string
}

// Cyclic reports whether any requested packages were mutually dependent.
func (r Reduction) Cyclic() bool { return len(r.CycleNodes) > 0 }

// Reduce computes the minimal dependency graph over keep from a raw
// discovered graph, in three steps: transitive closure, restriction to
// keep (summarizing paths through non-requested intermediaries as direct
// edges), and transitive reduction of the result.
//
// Cycle policy: mutually dependent requested packages are emitted as a
// single directed ring over the members in lexicographic order, which is
// minimal and preserves mutual reachability, and reported in CycleNodes
// rather than failing the build. A self-dependency keeps its self-edge,
// since no smaller edge set reproduces it in the closure.
func Reduce(raw *Graph, keep []string) Reduction {
	restricted := Restrict(TransitiveClosure(raw), keep)
	return reduceClosed(restricted)
}

// ReduceEdges is a convenience wrapper over Reduce for a plain edge set.
func ReduceEdges(edges []Edge, keep []string) (Reduction, error) {
	raw, err := FromEdges(edges)
	if err != nil {
		return Reduction{}, err
	}
	return Reduce(raw, keep), nil
}

// reduceClosed computes the transitive reduction of a transitively
// closed graph. In a closed graph two nodes are in the same strongly
// connected component exactly when they share edges in both directions,
// which makes component detection a pairwise check instead of a full
// Tarjan pass.
func reduceClosed(closed *Graph) Reduction {
	nodes := closed.Nodes()

	// Group mutually reachable nodes; rep is the smallest member.
	rep := make(map[string]string, len(nodes))
	members := make(map[string][]string)
	for _, n := range nodes {
		if _, done := rep[n]; done {
			continue
		}
		group := []string{n}
		for _, m := range nodes {
			if m != n && closed.HasEdge(n, m) && closed.HasEdge(m, n) {
				group = append(group, m)
			}
		}
		slices.Sort(group)
		r := group[0]
		for _, m := range group {
			rep[m] = r
		}
		members[r] = group
	}

	// Condensation: edges between components. Transitive closedness is
	// inherited from the input, so the reduction below stays exact.
	cond := New()
	for r := range members {
		_ = cond.AddNode(r)
	}
	for e := range closed.edges {
		if rep[e.From] != rep[e.To] {
			_ = cond.AddEdge(rep[e.From], rep[e.To])
		}
	}

	out := New()
	var cycleNodes []string
	for _, n := range nodes {
		_ = out.AddNode(n)
	}

	// Each non-trivial component becomes a directed ring; a singleton on
	// a cycle (self-edge in the closure) keeps its self-edge.
	for _, r := range sortedKeys(keysOf(members)) {
		group := members[r]
		if len(group) > 1 {
			for i, m := range group {
				_ = out.AddEdge(m, group[(i+1)%len(group)])
			}
			cycleNodes = append(cycleNodes, group...)
			continue
		}
		if closed.HasEdge(r, r) {
			_ = out.AddEdge(r, r)
			cycleNodes = append(cycleNodes, r)
		}
	}

	// Transitive reduction of the condensation: drop every edge implied
	// by a two-step path. Exact because the condensation is closed.
	for e := range cond.edges {
		if !impliedByPath(cond, e) {
			_ = out.AddEdge(e.From, e.To)
		}
	}

	slices.Sort(cycleNodes)
	return Reduction{Graph: out, CycleNodes: cycleNodes}
}

// impliedByPath reports whether edge e is implied by a two-step path
// through some intermediate node in a transitively closed graph.
func impliedByPath(g *Graph, e Edge) bool {
	for mid := range g.outgoing[e.From] {
		if mid == e.From || mid == e.To {
			continue
		}
		if g.HasEdge(mid, e.To) {
			return true
		}
	}
	return false
}

func keysOf(m map[string][]string) map[string]struct{} {
	set := make(map[string]struct{}, len(m))
	for k := range m {
		set[k] = struct{}{}
	}
	return set
}
