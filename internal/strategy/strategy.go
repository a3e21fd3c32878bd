// Package strategy implements the pluggable Breakpoint Strategies
// (component 4.F): the policy that decides which basic blocks get live
// breakpoints on each rotation. Each strategy is registered under a
// short name, the same factory-registry idiom this codebase already
// uses for its pluggable analysis backends.
package strategy

import (
	"fmt"

	"github.com/nxsec/bpfuzz/internal/graph"
)

// CFGView is the CFG state a strategy rebuilds its candidate set from,
// handed to CFGChanged whenever the orchestrator updates the CFG
// (4.G.1).
type CFGView struct {
	EntryPoint graph.Address
	CFG        *graph.CFG
	ExitPoints []graph.Address
	ReverseCFG *graph.CFG
}

// Strategy is the contract every breakpoint-selection policy
// implements (4.F's table of strategies). A Strategy is stateful: it
// caches whatever candidate ranking CFGChanged computed and consults it
// on every GetBreakpointAddress call until the next CFGChanged.
type Strategy interface {
	// Name reports the strategy's registry name.
	Name() string

	// CoverageGuided reports whether this strategy adapts its choices
	// to observed coverage, or samples independently of it.
	CoverageGuided() bool

	// MarkDominatedNodes reports whether nodes dominance-reachable from
	// a chosen breakpoint should be marked covered without ever being
	// directly hit (most strategies do; RandomBasicBlockNoDom does not).
	MarkDominatedNodes() bool

	// CFGChanged recomputes the strategy's candidate set from a fresh
	// CFG, called once after every CFG rebuild and once at startup.
	CFGChanged(view CFGView)

	// GetBreakpointAddress returns one candidate address, or false if
	// none remain. covered and active are excluded from consideration;
	// baseline is the current baseline input, consulted only by
	// strategies whose choice depends on it.
	GetBreakpointAddress(covered, active map[graph.Address]bool, baseline []byte) (graph.Address, bool)

	// ReportAddressReached lets coverage-guided strategies update
	// internal bookkeeping (e.g. per-input path-length weights) when
	// addr is hit by current.
	ReportAddressReached(current []byte, addr graph.Address)
}

// Factory constructs a Strategy from its config options.
type Factory func(options map[string]interface{}) (Strategy, error)

var registry = make(map[string]Factory)

// Register adds a strategy factory to the registry. Called from each
// strategy file's init().
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New creates a strategy instance by its registered name.
func New(name string, options map[string]interface{}) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown breakpoint strategy %q", name)
	}
	return factory(options)
}

// Names returns every registered strategy name, for config validation
// and --help text.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
