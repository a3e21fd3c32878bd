package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nxsec/bpfuzz/internal/graph"
)

// diamondView builds the section-8 scenario-1 fixture as a CFGView:
// entry A, A->B, A->C, B->D, C->D, D the sole exit.
func diamondView(t *testing.T) CFGView {
	t.Helper()
	const A, B, C, D graph.Address = 1, 2, 3, 4

	cfg := graph.NewCFG(A)
	for _, n := range []graph.Address{A, B, C, D} {
		cfg.AddNode(n, "diamond")
	}
	require.NoError(t, cfg.AddEdge(A, B, graph.EdgeBranch))
	require.NoError(t, cfg.AddEdge(A, C, graph.EdgeBranch))
	require.NoError(t, cfg.AddEdge(B, D, graph.EdgeFallthrough))
	require.NoError(t, cfg.AddEdge(C, D, graph.EdgeFallthrough))
	cfg.MarkExit(D)

	return CFGView{
		EntryPoint: A,
		CFG:        cfg,
		ExitPoints: []graph.Address{D},
		ReverseCFG: cfg.ReverseCFG(nil),
	}
}

func TestRegistry_NamesIncludesAllSevenStrategies(t *testing.T) {
	names := Names()
	for _, want := range []string{
		"blackbox",
		"random_basic_block",
		"random_basic_block_no_dom",
		"dominator_child",
		"dominator_child_plus",
		"pagerank",
		"dominator_child_plus_near_path",
	} {
		require.Contains(t, names, want)
	}
}

func TestRegistry_NewUnknownNameErrors(t *testing.T) {
	_, err := New("not_a_real_strategy", nil)
	require.Error(t, err)
}

func TestBlackbox_NeverReturnsABreakpointAndIsNotCoverageGuided(t *testing.T) {
	s, err := New("blackbox", nil)
	require.NoError(t, err)

	require.False(t, s.CoverageGuided())
	_, ok := s.GetBreakpointAddress(nil, nil, nil)
	require.False(t, ok)
}

func TestRandomBasicBlock_SamplesFromEveryCFGNodeExcludingCoveredAndActive(t *testing.T) {
	s, err := New("random_basic_block", nil)
	require.NoError(t, err)
	s.CFGChanged(diamondView(t))

	const A, B, C, D graph.Address = 1, 2, 3, 4
	covered := map[graph.Address]bool{A: true}
	active := map[graph.Address]bool{B: true}

	seen := map[graph.Address]bool{}
	for i := 0; i < 50; i++ {
		addr, ok := s.GetBreakpointAddress(covered, active, nil)
		require.True(t, ok)
		require.False(t, covered[addr] || active[addr], "strategy must never return a covered or active address")
		seen[addr] = true
	}
	require.Subset(t, []graph.Address{C, D}, keysOf(seen))
}

func TestRandomBasicBlockNoDom_DisablesDominanceMarking(t *testing.T) {
	s, err := New("random_basic_block_no_dom", nil)
	require.NoError(t, err)
	require.False(t, s.MarkDominatedNodes())

	plain, err := New("random_basic_block", nil)
	require.NoError(t, err)
	require.True(t, plain.MarkDominatedNodes())
}

func TestRandomBasicBlock_ExhaustedCandidatesReturnsFalse(t *testing.T) {
	s, err := New("random_basic_block", nil)
	require.NoError(t, err)
	s.CFGChanged(diamondView(t))

	const A, B, C, D graph.Address = 1, 2, 3, 4
	covered := map[graph.Address]bool{A: true, B: true, C: true, D: true}

	_, ok := s.GetBreakpointAddress(covered, nil, nil)
	require.False(t, ok)
}

func TestDominatorChild_CandidatePoolIsCompositeLeaves(t *testing.T) {
	s, err := New("dominator_child", nil)
	require.NoError(t, err)
	s.CFGChanged(diamondView(t))

	const B, C graph.Address = 2, 3
	for i := 0; i < 20; i++ {
		addr, ok := s.GetBreakpointAddress(nil, nil, nil)
		require.True(t, ok)
		require.Contains(t, []graph.Address{B, C}, addr,
			"the diamond's composite leaves are B and C; A and D dominate something and must never be offered")
	}
}

func TestDominatorChildPlus_Name(t *testing.T) {
	s, err := New("dominator_child_plus", nil)
	require.NoError(t, err)
	require.Equal(t, "dominator_child_plus", s.Name())
}

func TestDominatorChild_ExcludesCoveredAndActive(t *testing.T) {
	s, err := New("dominator_child", nil)
	require.NoError(t, err)
	s.CFGChanged(diamondView(t))

	const B, C graph.Address = 2, 3
	covered := map[graph.Address]bool{B: true}

	addr, ok := s.GetBreakpointAddress(covered, nil, nil)
	require.True(t, ok)
	require.Equal(t, C, addr)
}

func keysOf(m map[graph.Address]bool) []graph.Address {
	out := make([]graph.Address, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
