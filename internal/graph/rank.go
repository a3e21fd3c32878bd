package graph

// DominatorTreeRank and ReverseDominatorTreeRank are carried over from
// the original implementation's graph.py (dominator_tree_rank /
// reverse_dominator_tree_rank): a BFS-count ranking over the pre-/
// post-dominator trees. None of the seven named breakpoint strategies
// consume these directly, but they are kept as Graph Service queries
// since the original exposes them as public, working analysis and nothing
// in this port's Non-goals excludes them.

// DominatorTreeRank ranks each node by the size of its pre-dominator
// subtree (number of nodes it dominates, inclusive).
func (c *CFG) DominatorTreeRank() map[Address]int {
	tree := c.PreDominatorTree()
	return bfsCountRank(tree)
}

// ReverseDominatorTreeRank ranks each node by the size of its
// post-dominator subtree.
func (c *CFG) ReverseDominatorTreeRank(reverseCFG *CFG) map[Address]int {
	tree := c.PostDominatorTree(reverseCFG)
	return bfsCountRank(tree)
}

func bfsCountRank(tree map[Address][]Address) map[Address]int {
	rank := map[Address]int{}
	var subtreeSize func(Address, map[Address]bool) int
	subtreeSize = func(n Address, visiting map[Address]bool) int {
		if visiting[n] {
			return 0
		}
		visiting[n] = true
		count := 1
		for _, child := range tree[n] {
			count += subtreeSize(child, visiting)
		}
		return count
	}
	for n := range tree {
		rank[n] = subtreeSize(n, map[Address]bool{})
	}
	return rank
}

// Subgraph returns the induced subgraph over every node that lies on
// some simple path from s to t (graph.py's subgraph), via bounded DFS
// enumeration — CFGs analysed here are single functions, so path counts
// stay tractable.
func (c *CFG) Subgraph(s, t Address) *CFG {
	nodesBetween := map[Address]bool{}
	visited := map[Address]bool{}
	var path []Address
	var walk func(Address)
	walk = func(n Address) {
		if visited[n] {
			return
		}
		visited[n] = true
		path = append(path, n)
		if n == t {
			for _, p := range path {
				nodesBetween[p] = true
			}
		} else {
			for _, succ := range c.Successors(n) {
				walk(succ)
			}
		}
		path = path[:len(path)-1]
		visited[n] = false
	}
	walk(s)

	sub := NewCFG(c.entry)
	for n := range nodesBetween {
		fn, _ := c.FunctionOf(n)
		sub.AddNode(n, fn)
	}
	for n := range nodesBetween {
		for _, succ := range c.Successors(n) {
			if nodesBetween[succ] {
				_ = sub.AddEdge(n, succ, EdgeFallthrough)
			}
		}
	}
	for _, e := range c.ExitPoints() {
		if nodesBetween[e] {
			sub.MarkExit(e)
		}
	}
	return sub
}
