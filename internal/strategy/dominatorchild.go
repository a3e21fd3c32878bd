package strategy

import (
	"math/rand"
	"time"

	"github.com/nxsec/bpfuzz/internal/graph"
)

func init() {
	Register("dominator_child", NewDominatorChild)
	Register("dominator_child_plus", NewDominatorChildPlus)
}

// DominatorChild restricts its candidate set to the dominator
// composite's leaves (graph.DominatingChildren): the nodes a single
// breakpoint can credit the largest dominance-reachable subtree for.
type DominatorChild struct {
	base
	rng        *rand.Rand
	plus       bool
	candidates map[graph.Address]bool
}

// NewDominatorChild creates the dominator-child strategy.
func NewDominatorChild(options map[string]interface{}) (Strategy, error) {
	return &DominatorChild{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

// NewDominatorChildPlus creates the variant whose candidate set also
// includes nodes whose sole successor falls outside their own
// dominance reach (graph.DominatingChildrenPlus).
func NewDominatorChildPlus(options map[string]interface{}) (Strategy, error) {
	return &DominatorChild{rng: rand.New(rand.NewSource(time.Now().UnixNano())), plus: true}, nil
}

func (s *DominatorChild) Name() string {
	if s.plus {
		return "dominator_child_plus"
	}
	return "dominator_child"
}

func (s *DominatorChild) CFGChanged(view CFGView) {
	s.base.CFGChanged(view)
	composite := view.CFG.DominatorComposite(view.ReverseCFG)
	if s.plus {
		s.candidates = view.CFG.DominatingChildrenPlus(composite)
	} else {
		s.candidates = graph.DominatingChildren(composite)
	}
}

func (s *DominatorChild) GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool) {
	excl := excludeSet(covered, active)
	var remaining []graph.Address
	for n := range s.candidates {
		if !excl[n] {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[s.rng.Intn(len(remaining))], true
}
