package analyzer

import (
	"context"
	"fmt"
	"os"

	"github.com/nxsec/bpfuzz/internal/graph"
)

// FileAnalyzer loads its CFG once from a disk dump in the adjacency
// format (section 6's "CFG file format") and never resolves unknown
// edges on its own: the real static-analysis backend that disassembles
// a binary and answers AddReference with fresh incremental analysis is
// the out-of-scope external collaborator named by the StaticAnalyzer
// contract (4.B). FileAnalyzer is the stand-in this codebase ships so
// the orchestrator has something to drive in the absence of that
// backend; RebuildCFG simply re-serves the same graph it started with.
type FileAnalyzer struct {
	path  string
	entry graph.Address

	cfg        *graph.CFG
	reverseCFG *graph.CFG
}

// NewFileAnalyzer loads path (the CFG dump named by SUT.binary_file_path's
// companion analysis output, or produced by a prior run) and builds its
// reverse CFG with no call/return pairing (callReturns is empty — the
// file format does not distinguish call edges from fall-through/branch
// edges once round-tripped, matching Decode's behavior of tagging every
// edge EdgeFallthrough).
func NewFileAnalyzer(path string, entry graph.Address) (*FileAnalyzer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analyzer: open CFG dump %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := Decode(f, entry)
	if err != nil {
		return nil, fmt.Errorf("analyzer: decode CFG dump %s: %w", path, err)
	}
	return &FileAnalyzer{
		path:       path,
		entry:      entry,
		cfg:        cfg,
		reverseCFG: cfg.ReverseCFG(nil),
	}, nil
}

// UnknownEdges always reports none: FileAnalyzer has no disassembler
// behind it to discover indirect-branch destinations.
func (a *FileAnalyzer) UnknownEdges(ctx context.Context) (map[graph.Address]graph.Address, error) {
	return nil, nil
}

// BasicBlockAt delegates to the loaded CFG's node set.
func (a *FileAnalyzer) BasicBlockAt(ctx context.Context, addr graph.Address) (graph.Address, error) {
	if bb, ok := a.cfg.BasicBlockAt(addr); ok {
		return bb, nil
	}
	return 0, fmt.Errorf("analyzer: %x is not a known basic block", addr)
}

// AddReference is a no-op: without a disassembler there is no
// incremental analysis to re-run.
func (a *FileAnalyzer) AddReference(ctx context.Context, branchAddr, observed graph.Address) error {
	return nil
}

// RebuildCFG re-serves the graph loaded at construction time.
func (a *FileAnalyzer) RebuildCFG(ctx context.Context) (Result, error) {
	return Result{CFG: a.cfg, ReverseCFG: a.reverseCFG}, nil
}
