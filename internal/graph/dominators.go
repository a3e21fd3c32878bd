package graph

// Immediate-dominator computation. The base spec's design notes ask for
// Lengauer-Tarjan; this implements the iterative reverse-postorder
// dataflow algorithm from Cooper, Harvey & Kennedy, "A Simple, Fast
// Dominance Algorithm" (2001), which converges to the identical idom
// map in practice for CFG sizes this fuzzer ever analyses (single
// functions, not whole programs) and needs no link-eval forest.

func reversePostorder(entry Address, succ func(Address) []Address) []Address {
	visited := map[Address]bool{}
	var order []Address
	var stack []struct {
		addr     Address
		children []Address
		i        int
	}
	visited[entry] = true
	stack = append(stack, struct {
		addr     Address
		children []Address
		i        int
	}{entry, succ(entry), 0})
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i < len(top.children) {
			next := top.children[top.i]
			top.i++
			if !visited[next] {
				visited[next] = true
				stack = append(stack, struct {
					addr     Address
					children []Address
					i        int
				}{next, succ(next), 0})
			}
			continue
		}
		order = append(order, top.addr)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ImmediateDominators returns, for every node reachable from entry
// (other than entry itself), its immediate dominator.
func ImmediateDominators(entry Address, succ, pred func(Address) []Address) map[Address]Address {
	rpo := reversePostorder(entry, succ)
	if len(rpo) == 0 {
		return map[Address]Address{}
	}
	postIndex := make(map[Address]int, len(rpo))
	for i, n := range rpo {
		postIndex[n] = i
	}
	idom := map[Address]Address{entry: entry}

	intersect := func(a, b Address) Address {
		for a != b {
			for postIndex[a] > postIndex[b] {
				a = idom[a]
			}
			for postIndex[b] > postIndex[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom Address
			set := false
			for _, p := range pred(b) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !set {
					newIdom = p
					set = true
					continue
				}
				newIdom = intersect(newIdom, p)
			}
			if !set {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, entry)
	return idom
}

// dominatorTreeEdges turns an idom map into adjacency src -> []dst
// (dominator -> dominated), matching graph.py's pre_dominator_graph
// orientation.
func dominatorTreeEdges(idom map[Address]Address) map[Address][]Address {
	tree := map[Address][]Address{}
	for node, id := range idom {
		tree[id] = append(tree[id], node)
	}
	for k := range tree {
		sortAddrs(tree[k])
	}
	return tree
}

// PreDominatorTree returns the pre-dominator tree of the forward CFG
// rooted at entry, as adjacency dominator -> []dominated.
func (c *CFG) PreDominatorTree() map[Address][]Address {
	idom := ImmediateDominators(c.entry, c.succFunc(), c.predFunc())
	return dominatorTreeEdges(idom)
}

// PostDominatorTree returns the post-dominator tree of the reverse CFG,
// computed by adding a virtual super-exit with edges to every exit
// point and running the same dominance algorithm rooted there; the
// virtual node is never present in the returned tree.
func (c *CFG) PostDominatorTree(reverseCFG *CFG) map[Address][]Address {
	exits := c.ExitPoints()
	succ := func(a Address) []Address {
		if a == virtualSuperExit {
			return exits
		}
		return reverseCFG.Successors(a)
	}
	preds := reverseCFG.predFunc()
	exitSet := map[Address]bool{}
	for _, e := range exits {
		exitSet[e] = true
	}
	pred := func(a Address) []Address {
		ps := preds(a)
		if exitSet[a] {
			ps = append(append([]Address{}, ps...), virtualSuperExit)
		}
		return ps
	}
	idom := ImmediateDominators(virtualSuperExit, succ, pred)
	delete(idom, virtualSuperExit)
	tree := dominatorTreeEdges(idom)
	delete(tree, virtualSuperExit)
	return tree
}

// DominatorComposite is the graph-composition of the pre-dominator tree
// of the forward CFG and the post-dominator tree of the reverse CFG: an
// edge A->B means A dominates B in either tree.
func (c *CFG) DominatorComposite(reverseCFG *CFG) map[Address][]Address {
	composite := map[Address][]Address{}
	merge := func(tree map[Address][]Address) {
		for src, dsts := range tree {
			existing := map[Address]bool{}
			for _, d := range composite[src] {
				existing[d] = true
			}
			for _, d := range dsts {
				if !existing[d] {
					composite[src] = append(composite[src], d)
					existing[d] = true
				}
			}
		}
	}
	merge(c.PreDominatorTree())
	merge(c.PostDominatorTree(reverseCFG))
	for k := range composite {
		sortAddrs(composite[k])
	}
	return composite
}

// DominatorCompositeReachable reports whether to is dominance-reachable
// from from in the composite (BFS over composite edges).
func DominatorCompositeReachable(composite map[Address][]Address, from, to Address) bool {
	if from == to {
		return true
	}
	visited := map[Address]bool{from: true}
	queue := []Address{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range composite[n] {
			if d == to {
				return true
			}
			if !visited[d] {
				visited[d] = true
				queue = append(queue, d)
			}
		}
	}
	return false
}

// DominatingChildren returns the leaves of the dominator composite:
// blocks whose coverage is not implied by coverage of any other block.
func DominatingChildren(composite map[Address][]Address) map[Address]bool {
	nodes := map[Address]bool{}
	for src, dsts := range composite {
		nodes[src] = true
		for _, d := range dsts {
			nodes[d] = true
		}
	}
	out := map[Address]bool{}
	for n := range nodes {
		if len(composite[n]) == 0 {
			out[n] = true
		}
	}
	return out
}

// DominatingChildrenPlus extends DominatingChildren with any CFG node
// that has a successor not dominance-reachable from it in the
// composite — blocks whose successors are not implied by their own
// coverage.
func (c *CFG) DominatingChildrenPlus(composite map[Address][]Address) map[Address]bool {
	marked := DominatingChildren(composite)
	for _, node := range c.Nodes() {
		if marked[node] {
			continue
		}
		for _, succ := range c.Successors(node) {
			if !DominatorCompositeReachable(composite, node, succ) {
				marked[node] = true
				break
			}
		}
	}
	return marked
}
