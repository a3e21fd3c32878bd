package strategy

import (
	"math/rand"
	"time"

	"github.com/nxsec/bpfuzz/internal/graph"
)

func init() {
	Register("pagerank", NewPageRank)
}

// PageRank biases breakpoint selection toward basic blocks with high
// PageRank in the CFG, on the theory that well-connected blocks sit on
// more execution paths and are worth a breakpoint sooner.
type PageRank struct {
	base
	rng  *rand.Rand
	rank map[graph.Address]float64
}

// NewPageRank creates the pagerank strategy.
func NewPageRank(options map[string]interface{}) (Strategy, error) {
	return &PageRank{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

func (s *PageRank) Name() string { return "pagerank" }

func (s *PageRank) CFGChanged(view CFGView) {
	s.base.CFGChanged(view)
	s.rank = view.CFG.PageRank()
}

func (s *PageRank) GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool) {
	excl := excludeSet(covered, active)
	var candidates []graph.Address
	var weights []float64
	var total float64
	for _, n := range s.view.CFG.Nodes() {
		if excl[n] {
			continue
		}
		w := s.rank[n]
		candidates = append(candidates, n)
		weights = append(weights, w)
		total += w
	}
	if len(candidates) == 0 {
		return 0, false
	}
	if total <= 0 {
		return candidates[s.rng.Intn(len(candidates))], true
	}
	draw := s.rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if draw <= cum {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}
