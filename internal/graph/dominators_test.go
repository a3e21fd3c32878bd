package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// diamondCFG builds the section-8 scenario-1 fixture: entry A, A->B,
// A->C, B->D, C->D, D the sole exit. A dominates everything; D
// post-dominates A, B, and C.
func diamondCFG(t *testing.T) (cfg, reverse *CFG) {
	t.Helper()
	const A, B, C, D Address = 1, 2, 3, 4

	cfg = NewCFG(A)
	for _, n := range []Address{A, B, C, D} {
		cfg.AddNode(n, "diamond")
	}
	require.NoError(t, cfg.AddEdge(A, B, EdgeBranch))
	require.NoError(t, cfg.AddEdge(A, C, EdgeBranch))
	require.NoError(t, cfg.AddEdge(B, D, EdgeFallthrough))
	require.NoError(t, cfg.AddEdge(C, D, EdgeFallthrough))
	cfg.MarkExit(D)

	reverse = cfg.ReverseCFG(nil)
	return cfg, reverse
}

func TestDominatorComposite_Diamond(t *testing.T) {
	const A, B, C, D Address = 1, 2, 3, 4
	cfg, reverse := diamondCFG(t)

	composite := cfg.DominatorComposite(reverse)

	require.ElementsMatch(t, []Address{B, C, D}, composite[A], "A pre-dominates B, C, D")
	require.ElementsMatch(t, []Address{A, B, C}, composite[D], "D post-dominates A, B, C")
	require.Empty(t, composite[B], "B dominates nothing else in the diamond")
	require.Empty(t, composite[C], "C dominates nothing else in the diamond")
}

func TestDominatorComposite_IsIdempotent(t *testing.T) {
	cfg, reverse := diamondCFG(t)

	first := cfg.DominatorComposite(reverse)
	second := cfg.DominatorComposite(reverse)

	require.Equal(t, len(first), len(second))
	for k, v := range first {
		require.ElementsMatch(t, v, second[k], "composing twice on the same CFG must yield equal edges")
	}
}

// TestDominatorCompositeReachable_MatchesDominationDirection locks in
// the fixed direction of the reachability helper: node->addr means node
// dominates addr, which is the direction the orchestrator's
// mark_dominated_nodes logic depends on (section 4.F, section 8
// scenario 1).
func TestDominatorCompositeReachable_MatchesDominationDirection(t *testing.T) {
	const A, B, D Address = 1, 2, 4
	cfg, reverse := diamondCFG(t)
	composite := cfg.DominatorComposite(reverse)

	require.True(t, DominatorCompositeReachable(composite, A, B), "A dominates B")
	require.True(t, DominatorCompositeReachable(composite, D, B), "D post-dominates B")
	require.False(t, DominatorCompositeReachable(composite, B, A), "B does not dominate A")
	require.False(t, DominatorCompositeReachable(composite, B, D), "B does not dominate D")
}

func TestDominatingChildren_Diamond(t *testing.T) {
	const B, C Address = 2, 3
	cfg, reverse := diamondCFG(t)
	composite := cfg.DominatorComposite(reverse)

	leaves := DominatingChildren(composite)

	require.Equal(t, map[Address]bool{B: true, C: true}, leaves,
		"B and C are the composite's leaves: neither dominates any other block")
}

func TestDominatingChildrenPlus_DiamondMatchesPlainLeaves(t *testing.T) {
	cfg, reverse := diamondCFG(t)
	composite := cfg.DominatorComposite(reverse)

	plain := DominatingChildren(composite)
	plus := cfg.DominatingChildrenPlus(composite)

	require.Equal(t, plain, plus,
		"every diamond successor is already composite-reachable from its predecessor, so Plus adds nothing here")
}

func TestImmediateDominators_Diamond(t *testing.T) {
	const A, B, C, D Address = 1, 2, 3, 4
	cfg, _ := diamondCFG(t)

	idom := ImmediateDominators(A, cfg.succFunc(), cfg.predFunc())

	require.Equal(t, A, idom[B])
	require.Equal(t, A, idom[C])
	require.Equal(t, A, idom[D], "D's immediate dominator is A, the meet point of the B and C paths")
}
