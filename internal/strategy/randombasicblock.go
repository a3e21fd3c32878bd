package strategy

import (
	"math/rand"
	"time"

	"github.com/nxsec/bpfuzz/internal/graph"
)

func init() {
	Register("random_basic_block", NewRandomBasicBlock)
	Register("random_basic_block_no_dom", NewRandomBasicBlockNoDom)
}

// RandomBasicBlock samples uniformly from every basic block in the
// CFG, ignoring dominance structure entirely.
type RandomBasicBlock struct {
	base
	rng        *rand.Rand
	noDom      bool
	candidates []graph.Address
}

// NewRandomBasicBlock creates the random-basic-block strategy.
func NewRandomBasicBlock(options map[string]interface{}) (Strategy, error) {
	return &RandomBasicBlock{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

// NewRandomBasicBlockNoDom creates the variant that disables
// dominance-based coverage marking (it only credits a node as covered
// once that exact address is hit, not its dominance subtree).
func NewRandomBasicBlockNoDom(options map[string]interface{}) (Strategy, error) {
	return &RandomBasicBlock{rng: rand.New(rand.NewSource(time.Now().UnixNano())), noDom: true}, nil
}

func (s *RandomBasicBlock) Name() string {
	if s.noDom {
		return "random_basic_block_no_dom"
	}
	return "random_basic_block"
}

func (s *RandomBasicBlock) MarkDominatedNodes() bool { return !s.noDom }

func (s *RandomBasicBlock) CFGChanged(view CFGView) {
	s.base.CFGChanged(view)
	s.candidates = view.CFG.Nodes()
}

func (s *RandomBasicBlock) GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool) {
	excl := excludeSet(covered, active)
	var remaining []graph.Address
	for _, n := range s.candidates {
		if !excl[n] {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[s.rng.Intn(len(remaining))], true
}
