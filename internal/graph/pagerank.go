package graph

import "math"

const (
	pageRankDamping    = 0.85
	pageRankTolerance  = 1e-6
	pageRankMaxRounds  = 100
)

// PageRank computes PageRank weights over the CFG by power iteration,
// per the base spec's design note: damping 0.85, tolerance 1e-6, a
// 100-round cap, falling back to uniform weights on non-convergence
// instead of raising AnalyzerUnavailable for what is, here, a selection
// heuristic rather than a CFG-rebuild failure.
func (c *CFG) PageRank() map[Address]float64 {
	nodes := c.Nodes()
	n := len(nodes)
	rank := make(map[Address]float64, n)
	if n == 0 {
		return rank
	}
	uniform := 1.0 / float64(n)
	for _, v := range nodes {
		rank[v] = uniform
	}
	outDeg := make(map[Address]int, n)
	succs := make(map[Address][]Address, n)
	for _, v := range nodes {
		s := c.Successors(v)
		succs[v] = s
		outDeg[v] = len(s)
	}

	for round := 0; round < pageRankMaxRounds; round++ {
		next := make(map[Address]float64, n)
		base := (1 - pageRankDamping) / float64(n)
		dangling := 0.0
		for _, v := range nodes {
			next[v] = base
			if outDeg[v] == 0 {
				dangling += rank[v]
			}
		}
		danglingShare := pageRankDamping * dangling / float64(n)
		for _, v := range nodes {
			next[v] += danglingShare
		}
		for _, v := range nodes {
			if outDeg[v] == 0 {
				continue
			}
			share := pageRankDamping * rank[v] / float64(outDeg[v])
			for _, w := range succs[v] {
				next[w] += share
			}
		}
		delta := 0.0
		for _, v := range nodes {
			delta += math.Abs(next[v] - rank[v])
		}
		rank = next
		if delta < pageRankTolerance {
			return rank
		}
	}

	fallback := make(map[Address]float64, n)
	for _, v := range nodes {
		fallback[v] = uniform
	}
	return fallback
}
