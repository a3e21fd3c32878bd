package strategy

import "github.com/nxsec/bpfuzz/internal/graph"

func init() {
	Register("blackbox", NewBlackbox)
}

// Blackbox never sets a breakpoint; it is the baseline for comparing
// coverage-guided strategies against plain random mutation with no
// breakpoint feedback at all.
type Blackbox struct{ base }

// NewBlackbox creates the blackbox strategy.
func NewBlackbox(options map[string]interface{}) (Strategy, error) {
	return &Blackbox{}, nil
}

func (s *Blackbox) Name() string { return "blackbox" }

func (s *Blackbox) CoverageGuided() bool { return false }

func (s *Blackbox) GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool) {
	return 0, false
}
