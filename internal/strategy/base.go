package strategy

import "github.com/nxsec/bpfuzz/internal/graph"

// base holds the CFG view every strategy needs and supplies the
// default CoverageGuided/MarkDominatedNodes/ReportAddressReached
// implementations (4.F's base class defaults are both true, and
// ReportAddressReached is a no-op unless overridden).
type base struct {
	view CFGView
}

func (b *base) CFGChanged(view CFGView) { b.view = view }

func (b *base) CoverageGuided() bool { return true }

func (b *base) MarkDominatedNodes() bool { return true }

func (b *base) ReportAddressReached([]byte, graph.Address) {}

// excludeSet builds a lookup combining covered and active nodes, the
// exclusion every strategy applies to its candidate set.
func excludeSet(covered, active map[graph.Address]bool) map[graph.Address]bool {
	out := make(map[graph.Address]bool, len(covered)+len(active))
	for a := range covered {
		out[a] = true
	}
	for a := range active {
		out[a] = true
	}
	return out
}
