package graph

import (
	"github.com/katalvlaran/lvlath/bfs"
)

// ReverseCFG builds the reverse graph the base spec's data model names:
// the same nodes, call edges omitted, and a return-edge inserted from
// every callee's returning block back to the call-site's successor.
// callReturns maps a call edge (from the call site) to the block the
// call returns control to; it is supplied by the static-analyzer
// adapter, which alone knows callee/caller return-point pairing.
func (c *CFG) ReverseCFG(callReturns map[Address]Address) *CFG {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rev := NewCFG(c.entry)
	for id := range c.g.VerticesMap() {
		a, err := unkey(id)
		if err != nil {
			continue
		}
		rev.AddNode(a, c.funcs[a])
	}
	for id := range c.g.VerticesMap() {
		from, err := unkey(id)
		if err != nil {
			continue
		}
		edges, _ := c.g.Neighbors(id)
		for _, e := range edges {
			if EdgeKind(e.Weight) == EdgeCall {
				continue
			}
			to, err := unkey(e.To)
			if err != nil {
				continue
			}
			_ = rev.AddEdge(to, from, EdgeKind(e.Weight))
		}
	}
	for call, returnsTo := range callReturns {
		_ = rev.AddEdge(returnsTo, call, EdgeReturn)
	}
	for a := range c.exits {
		rev.MarkExit(a)
	}
	return rev
}

// succFunc/predFunc adapt a CFG to the plain-closure signature the
// dominator and PageRank algorithms use, so those algorithms stay
// independent of the lvlath-backed storage.
func (c *CFG) succFunc() func(Address) []Address {
	return func(a Address) []Address { return c.Successors(a) }
}

func (c *CFG) predFunc() func(Address) []Address {
	// lvlath's core.Graph only exposes forward adjacency; predecessors
	// are derived by scanning, cached once per call since dominator
	// computation calls predFunc heavily during one fixed-point pass.
	preds := map[Address][]Address{}
	c.mu.RLock()
	for id := range c.g.VerticesMap() {
		from, err := unkey(id)
		if err != nil {
			continue
		}
		edges, _ := c.g.Neighbors(id)
		for _, e := range edges {
			to, err := unkey(e.To)
			if err != nil {
				continue
			}
			preds[to] = append(preds[to], from)
		}
	}
	c.mu.RUnlock()
	return func(a Address) []Address { return preds[a] }
}

// NodesReachable returns |BFS-tree(root)|, matching graph.py's
// nodes_reachable: the count of nodes reachable from root, including
// root itself.
func (c *CFG) NodesReachable(root Address) int {
	c.mu.RLock()
	g := c.g
	c.mu.RUnlock()
	res, err := bfs.BFS(g, key(root))
	if err != nil {
		return 0
	}
	return len(res.Order)
}

// UncoveredNeighbours returns uncovered nodes one edge away from a
// covered node (graph.py's uncovered_neighbours).
func (c *CFG) UncoveredNeighbours(covered map[Address]bool) map[Address]bool {
	out := map[Address]bool{}
	for addr := range covered {
		if addr < 0 || !c.HasNode(addr) {
			continue
		}
		for _, dst := range c.Successors(addr) {
			if !covered[dst] {
				out[dst] = true
			}
		}
	}
	return out
}

// UncoveredNeighboursNear mirrors uncovered_neighbours_near_node: the
// uncovered successors of a single address.
func (c *CFG) UncoveredNeighboursNear(addr Address, covered map[Address]bool) map[Address]bool {
	out := map[Address]bool{}
	if !c.HasNode(addr) {
		return out
	}
	for _, dst := range c.Successors(addr) {
		if !covered[dst] {
			out[dst] = true
		}
	}
	return out
}

// EdgesReachable counts edges reachable from root (graph.py's
// edges_reachable): the out-degree sum over every node the BFS visits.
func (c *CFG) EdgesReachable(root Address) int {
	if !c.HasNode(root) {
		return 0
	}
	visited := map[Address]bool{root: true}
	queue := []Address{root}
	total := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		succs := c.Successors(n)
		total += len(succs)
		for _, s := range succs {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	return total
}

// EdgesToTarget returns the covered basic blocks with an outgoing edge
// into target (graph.py's edges_to_target).
func (c *CFG) EdgesToTarget(target Address, covered map[Address]bool) []Address {
	var out []Address
	for addr := range covered {
		for _, dst := range c.Successors(addr) {
			if dst == target {
				out = append(out, addr)
				break
			}
		}
	}
	sortAddrs(out)
	return out
}

// GetParents returns, for every node reachable from entrypoint, the
// address of the node's BFS parent (graph.py's get_parents).
func (c *CFG) GetParents(entrypoint Address) map[Address]Address {
	parents := map[Address]Address{}
	if !c.HasNode(entrypoint) {
		return parents
	}
	visited := map[Address]bool{entrypoint: true}
	queue := []Address{entrypoint}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, dst := range c.Successors(n) {
			if !visited[dst] {
				visited[dst] = true
				parents[dst] = n
				queue = append(queue, dst)
			}
		}
	}
	return parents
}

// ShortestPathLengths returns, for every node reachable from addr on
// this graph, its unweighted distance from addr, computed with
// lvlath/bfs.
func (c *CFG) ShortestPathLengths(addr Address) map[Address]int {
	c.mu.RLock()
	g := c.g
	c.mu.RUnlock()
	res, err := bfs.BFS(g, key(addr))
	if err != nil {
		return map[Address]int{}
	}
	out := make(map[Address]int, len(res.Depth))
	for id, d := range res.Depth {
		a, err := unkey(id)
		if err != nil {
			continue
		}
		out[a] = d
	}
	return out
}
