package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nxsec/bpfuzz/internal/analyzer"
	"github.com/nxsec/bpfuzz/internal/debugger"
	"github.com/nxsec/bpfuzz/internal/graph"
	"github.com/nxsec/bpfuzz/internal/logger"
	"github.com/nxsec/bpfuzz/internal/strategy"
)

// errAbortedCandidate is returned when a CFG-update candidate's SUT
// instance does not follow the expected stop sequence (4.G.1 step 3):
// the candidate is dropped, not retried.
var errAbortedCandidate = errors.New("orchestrator: CFG-update candidate aborted, unexpected stop")

// candidatePerInstanceBudget bounds the wall-clock time the CFG-update
// sub-protocol spends on a single candidate (4.B: "each rebuild is
// bounded by a wall-clock budget").
const candidatePerInstanceBudget = 30 * time.Second

// maybeUpdateCFG implements the CFG-update trigger: after an
// InputRequest, if the analyzer has unresolved edges queued and more
// than CFGUpdateInterval has elapsed since the last snapshot, tear
// down the current SUT instance, run the per-candidate sub-protocol,
// rebuild the graphs, and reseat the strategy before restarting.
func (o *Orchestrator) maybeUpdateCFG(ctx context.Context) error {
	if o.an == nil || o.cfgUpdatesDisabled.Load() {
		return nil
	}
	if time.Since(o.lastCFGUpdate) < o.cfg.CFGUpdateInterval {
		return nil
	}

	unknown, err := o.an.UnknownEdges(ctx)
	if err != nil || len(unknown) == 0 {
		return nil
	}

	// A block only becomes a runnable candidate once some input has
	// actually reached it (4: "Produced when a hit address is known to
	// terminate an edge of unknown destination"); blocks unknown_edges
	// names that this run never hit yet have no trigger_input to replay
	// and are skipped until a later pass.
	candidates := make(map[graph.Address]cfgUpdateCandidate, len(unknown))
	for blockAddr, branchAddr := range unknown {
		input, ok := o.inputForAddr[blockAddr]
		if !ok {
			continue
		}
		candidates[branchAddr] = cfgUpdateCandidate{blockAddr: blockAddr, input: input}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Tear down the current SUT instance before the sub-protocol runs:
	// every candidate gets its own scoped instance via o.reset (4.G.1),
	// so the main loop's instance has no business staying attached while
	// they run.
	if o.dbg != nil {
		_ = o.dbg.Disconnect(ctx)
	}
	if o.tr != nil {
		_ = o.tr.Disconnect(ctx)
	}

	o.state = UpdatingCFG
	if err := o.runCFGUpdateProtocol(ctx, candidates); err != nil {
		logger.Warn("orchestrator: CFG-update sub-protocol failed: %v", err)
	}

	result, err := o.an.RebuildCFG(ctx)
	o.lastCFGUpdate = time.Now()
	if err != nil {
		if unavailable := o.analysisFailTracker().Fail(); unavailable {
			o.cfgUpdatesDisabled.Store(true)
			logger.Warn("orchestrator: analyzer unavailable after repeated failures, keeping stale CFG: %v", err)
		}
	} else {
		o.analysisFailTracker().Reset()

		o.cfgGraph = result.CFG
		o.reverseCFG = result.ReverseCFG
		o.strat.CFGChanged(strategy.CFGView{
			EntryPoint: o.cfgGraph.Entry(),
			CFG:        o.cfgGraph,
			ExitPoints: o.cfgGraph.ExitPoints(),
			ReverseCFG: o.reverseCFG,
		})
		o.st.RecordCFGUpdate(len(o.cfgGraph.Nodes()), o.countEdges())
	}

	// Reseating done, bring a fresh SUT instance back up before handing
	// control back to the main loop.
	return o.restart(ctx)
}

// analysisFailTracker lazily constructs the consecutive-failure
// tracker so Config need not carry a pointer field.
func (o *Orchestrator) analysisFailTracker() *analyzer.FailureTracker {
	if o.failTracker == nil {
		o.failTracker = analyzer.NewFailureTracker(o.cfg.MaxAnalysisFails)
	}
	return o.failTracker
}

// cfgUpdateCandidate is the data model's CFGUpdateCandidate (section
// 3): the basic block whose coverage produced it, and the exact input
// bytes that reached it, replayed verbatim against a fresh SUT
// instance to re-trigger the same unresolved branch.
type cfgUpdateCandidate struct {
	blockAddr graph.Address
	input     []byte
}

// runCFGUpdateProtocol executes 4.G.1 for every candidate concurrently,
// each under its own scoped SUT instance and wall-clock budget; any
// per-candidate error is logged, never fatal to the batch, and the
// combined causes of every candidate that failed are returned.
func (o *Orchestrator) runCFGUpdateProtocol(ctx context.Context, candidates map[graph.Address]cfgUpdateCandidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var combined error
	for branchAddr, c := range candidates {
		branchAddr, c := branchAddr, c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, candidatePerInstanceBudget)
			defer cancel()
			if err := o.resolveOneCandidate(cctx, branchAddr, c); err != nil {
				logger.Info("orchestrator: CFG-update candidate %x failed: %v", branchAddr, err)
				combined = multierr.Append(combined, err)
			} else {
				logger.Info("orchestrator: CFG-update candidate %x resolved", branchAddr)
			}
			return nil
		})
	}
	_ = g.Wait()
	return combined
}

// resolveOneCandidate runs one (branch_addr, trigger_input) through a
// fresh, scoped SUT instance per 4.G.1.
func (o *Orchestrator) resolveOneCandidate(ctx context.Context, branchAddr graph.Address, c cfgUpdateCandidate) error {
	dbg, tr, err := o.reset(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbg.Disconnect(ctx)
		_ = tr.Disconnect(ctx)
	}()

	if err := dbg.Connect(ctx); err != nil {
		return err
	}
	id, err := dbg.SetBreakpoint(ctx, uint64(branchAddr), true)
	if err != nil {
		return err
	}

	if err := dbg.Continue(ctx); err != nil {
		return err
	}
	if err := tr.WaitForInputRequest(ctx); err != nil {
		return err
	}
	if err := tr.SendInput(ctx, c.input); err != nil {
		return err
	}

	ev, err := dbg.WaitForStop(ctx, candidatePerInstanceBudget)
	if err != nil {
		return err
	}
	if ev.Tag != debugger.BreakpointHit || ev.BreakpointID != id {
		return errAbortedCandidate
	}

	if err := dbg.StepInstruction(ctx); err != nil {
		return err
	}
	ev, err = dbg.WaitForStop(ctx, candidatePerInstanceBudget)
	if err != nil {
		return err
	}
	if ev.Tag != debugger.StepDone {
		return errAbortedCandidate
	}

	observedPC, err := dbg.ReadPC(ctx)
	if err != nil {
		return err
	}
	return o.an.AddReference(ctx, branchAddr, graph.Address(observedPC))
}

func (o *Orchestrator) countEdges() int {
	total := 0
	for _, n := range o.cfgGraph.Nodes() {
		total += len(o.cfgGraph.Successors(n))
	}
	return total
}
