package strategy

import (
	"math/rand"
	"time"

	"github.com/nxsec/bpfuzz/internal/graph"
)

func init() {
	Register("dominator_child_plus_near_path", NewDominatorChildPlusNearPath)
}

// DominatorChildPlusNearPath extends DominatorChildPlus with a
// path-distance bias: among the dominating-children-plus candidates,
// it prefers the one closest (by CFG shortest path, in either
// direction) to any address the current baseline has already reached,
// so new breakpoints tend to land near the frontier of known-reachable
// code instead of anywhere in the candidate set.
type DominatorChildPlusNearPath struct {
	base
	rng        *rand.Rand
	candidates map[graph.Address]bool

	// inputWeights[baseline][node] accumulates inverse shortest-path
	// lengths from every address that baseline has reached.
	inputWeights map[string]map[graph.Address]float64
}

// NewDominatorChildPlusNearPath creates the strategy.
func NewDominatorChildPlusNearPath(options map[string]interface{}) (Strategy, error) {
	return &DominatorChildPlusNearPath{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		inputWeights: map[string]map[graph.Address]float64{},
	}, nil
}

func (s *DominatorChildPlusNearPath) Name() string { return "dominator_child_plus_near_path" }

func (s *DominatorChildPlusNearPath) CFGChanged(view CFGView) {
	s.base.CFGChanged(view)
	composite := view.CFG.DominatorComposite(view.ReverseCFG)
	s.candidates = view.CFG.DominatingChildrenPlus(composite)
}

func (s *DominatorChildPlusNearPath) GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool) {
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

	if addr, ok := s.nodeNearPath(remaining, baseline); ok {
		return addr, true
	}
	return remaining[s.rng.Intn(len(remaining))], true
}

func (s *DominatorChildPlusNearPath) nodeNearPath(candidates []graph.Address, baseline []byte) (graph.Address, bool) {
	weights, ok := s.inputWeights[string(baseline)]
	if !ok {
		return 0, false
	}

	var nodes []graph.Address
	var ws []float64
	var total float64
	for _, n := range candidates {
		if w, ok := weights[n]; ok {
			nodes = append(nodes, n)
			ws = append(ws, w)
			total += w
		}
	}
	if len(nodes) == 0 || total <= 0 {
		return 0, false
	}

	draw := s.rng.Float64() * total
	var cum float64
	for i, w := range ws {
		cum += w
		if draw <= cum {
			return nodes[i], true
		}
	}
	return nodes[len(nodes)-1], true
}

func (s *DominatorChildPlusNearPath) ReportAddressReached(current []byte, addr graph.Address) {
	lengths := s.view.CFG.ShortestPathLengths(addr)
	if s.view.ReverseCFG.HasNode(addr) {
		for n, l := range s.view.ReverseCFG.ShortestPathLengths(addr) {
			if existing, ok := lengths[n]; !ok || l < existing {
				lengths[n] = l
			}
		}
	}

	key := string(current)
	weights, ok := s.inputWeights[key]
	if !ok {
		weights = map[graph.Address]float64{}
		s.inputWeights[key] = weights
	}
	for node, length := range lengths {
		if length == 0 {
			continue
		}
		weights[node] += 1.0 / float64(length)
	}
}
