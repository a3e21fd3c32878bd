// Package analyzer defines the Static-Analyzer Adapter contract (the
// base spec's component 4.B) and the CFG text-format codec it and the
// orchestrator share. The analysis backend itself — the tool that
// actually disassembles a binary and recovers a CFG — is an external
// collaborator named only by this contract, exactly as section 1 of
// the base spec scopes it.
package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/nxsec/bpfuzz/internal/graph"
)

// ErrAnalyzerUnavailable names the condition in which MAX_ANALYSIS_FAILS
// consecutive rebuilds have failed. Nothing in this module returns it:
// FailureTracker.Fail reports the condition as a bool, and the
// orchestrator then keeps fuzzing with the stale CFG and disables
// further CFG updates for the run.
var ErrAnalyzerUnavailable = errors.New("analyzer: unavailable after repeated failures")

// Result is the output of a full CFG rebuild.
type Result struct {
	CFG        *graph.CFG
	ReverseCFG *graph.CFG
}

// StaticAnalyzer is the contract the orchestrator consumes (4.B):
//
//   - UnknownEdges reports basic blocks whose terminating branch has no
//     resolved destination; the map value is the branch-instruction
//     address.
//   - BasicBlockAt maps any instruction address to its enclosing basic
//     block's start address.
//   - AddReference notifies the analyzer of a runtime-observed edge; the
//     analyzer must re-run incremental analysis and update UnknownEdges.
//   - RebuildCFG returns a fresh CFG, reverse CFG and exit-point set.
//
// Every call is bounded by ctx; a caller-exceeded deadline or an
// analyzer-reported error both count as one failure toward
// MAX_ANALYSIS_FAILS.
type StaticAnalyzer interface {
	UnknownEdges(ctx context.Context) (map[graph.Address]graph.Address, error)
	BasicBlockAt(ctx context.Context, addr graph.Address) (graph.Address, error)
	AddReference(ctx context.Context, branchAddr, observedDestination graph.Address) error
	RebuildCFG(ctx context.Context) (Result, error)
}

// Budgeted wraps a StaticAnalyzer so every call it serves is bounded by
// a fixed wall-clock budget, matching 4.B's failure policy ("each
// rebuild is bounded by a wall-clock budget").
type Budgeted struct {
	Inner  StaticAnalyzer
	Budget time.Duration
}

func (b Budgeted) UnknownEdges(ctx context.Context) (map[graph.Address]graph.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Budget)
	defer cancel()
	return b.Inner.UnknownEdges(ctx)
}

func (b Budgeted) BasicBlockAt(ctx context.Context, addr graph.Address) (graph.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Budget)
	defer cancel()
	return b.Inner.BasicBlockAt(ctx, addr)
}

func (b Budgeted) AddReference(ctx context.Context, branchAddr, observed graph.Address) error {
	ctx, cancel := context.WithTimeout(ctx, b.Budget)
	defer cancel()
	return b.Inner.AddReference(ctx, branchAddr, observed)
}

func (b Budgeted) RebuildCFG(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Budget)
	defer cancel()
	return b.Inner.RebuildCFG(ctx)
}

// FailureTracker counts consecutive RebuildCFG failures; Fail reports
// true once the count reaches the configured maximum. The orchestrator
// owns one instance for its whole run.
type FailureTracker struct {
	max   int
	count int
}

// NewFailureTracker builds a tracker with the given MAX_ANALYSIS_FAILS.
func NewFailureTracker(max int) *FailureTracker {
	if max <= 0 {
		max = 1
	}
	return &FailureTracker{max: max}
}

// Fail records one failure and reports whether the analyzer should now
// be considered unavailable for the rest of the run.
func (f *FailureTracker) Fail() (unavailable bool) {
	f.count++
	return f.count >= f.max
}

// Reset clears the failure count after a successful rebuild.
func (f *FailureTracker) Reset() { f.count = 0 }
