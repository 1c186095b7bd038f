package depgraph

// TransitiveClosure returns the graph with an edge a→b for every pair
// of nodes connected by a directed path of length >= 1 in g.
//
// Cycles are handled by definition rather than special-cased: mutually
// reachable nodes get edges in both directions, and a node on any cycle
// (including a self-dependency) gets a self-edge. Each node's reachable
// set is computed with an iterative DFS, so deep chains cannot overflow
// the stack and cyclic input terminates because the node set is finite.
func TransitiveClosure(g *Graph) *Graph {
	closure := New()
	for id := range g.nodes {
		closure.nodes[id] = struct{}{}
	}

	for start := range g.nodes {
		visited := make(map[string]struct{})
		stack := make([]string, 0, len(g.outgoing[start]))
		for succ := range g.outgoing[start] {
			stack = append(stack, succ)
		}

		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, seen := visited[cur]; seen {
				continue
			}
			visited[cur] = struct{}{}
			// start reaches cur via a path of length >= 1.
			_ = closure.AddEdge(start, cur)
			for succ := range g.outgoing[cur] {
				if _, seen := visited[succ]; !seen {
					stack = append(stack, succ)
				}
			}
		}
	}

	return closure
}

// Restrict returns the subgraph of g induced by keep: every node in keep
// (isolated if g never saw it) and every edge of g with both endpoints
// in keep. Nodes outside keep disappear together with their edges; paths
// through them survive only if g was already transitively closed.
func Restrict(g *Graph, keep []string) *Graph {
	keepSet := make(map[string]struct{}, len(keep))
	restricted := New()
	for _, id := range keep {
		if id == "" {
			continue
		}
		keepSet[id] = struct{}{}
		restricted.nodes[id] = struct{}{}
	}

	for e := range g.edges {
		if _, ok := keepSet[e.From]; !ok {
			continue
		}
		if _, ok := keepSet[e.To]; !ok {
			continue
		}
		_ = restricted.AddEdge(e.From, e.To)
	}

	return restricted
}
