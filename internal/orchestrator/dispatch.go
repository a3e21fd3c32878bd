package orchestrator

import (
	"context"
	"time"

	"github.com/nxsec/bpfuzz/internal/debugger"
	"github.com/nxsec/bpfuzz/internal/graph"
	"github.com/nxsec/bpfuzz/internal/logger"
)

// handleStop dispatches one StopEvent per 4.G's table. It returns
// terminal=true when the event ends the current SUT instance (crash,
// timeout, exit, comm error), signalling the caller to restart.
func (o *Orchestrator) handleStop(ctx context.Context, ev debugger.StopEvent) (terminal bool, err error) {
	switch ev.Tag {
	case debugger.InputRequest:
		return false, o.handleInputRequest(ctx)

	case debugger.BreakpointHit:
		return false, o.handleBreakpointHit(ctx, ev.BreakpointID)

	case debugger.Interrupt:
		return o.handleInterrupt(ctx, ev.PC)

	case debugger.TimedOut:
		o.recordTimeout(ctx)
		return true, nil

	case debugger.Crashed, debugger.Exited, debugger.CommError:
		o.recordCrash(ctx)
		return true, nil

	case debugger.StepDone, debugger.StoppedNoReason:
		logger.Debug("orchestrator: unexpected stop %s outside its protocol", ev.Tag)
		return false, nil

	default:
		logger.Warn("orchestrator: unknown stop tag %d", ev.Tag)
		return false, nil
	}
}

func (o *Orchestrator) handleInputRequest(ctx context.Context) error {
	o.inputsUntilRotate--
	if o.inputsUntilRotate <= 0 {
		o.state = RotatingBreakpoints
		return nil
	}

	input := o.corp.GenerateInput()
	if err := o.tr.SendInput(ctx, input); err != nil {
		return &TransportError{Cause: err}
	}
	o.lastSentInput = input
	o.st.Runs.Inc()

	return o.maybeUpdateCFG(ctx)
}

func (o *Orchestrator) handleBreakpointHit(ctx context.Context, id debugger.BreakpointID) error {
	addr, ok := o.breakpoints[id]
	if !ok {
		logger.Warn("orchestrator: breakpoint hit for unknown id %d", id)
		return nil
	}
	o.creditHit(addr)

	if err := o.dbg.RemoveBreakpoint(ctx, id); err != nil {
		return &DebuggerError{Cause: err}
	}
	delete(o.breakpoints, id)
	delete(o.addrToBP, addr)

	if err := o.setBreakpoints(ctx); err != nil {
		return err
	}
	o.inputsUntilRotate = o.cfg.UntilRotateBreakpoints
	return nil
}

// creditHit marks addr (and every node the composite says dominates
// it, if the strategy asks for that) covered, and notifies the
// strategy and corpus.
func (o *Orchestrator) creditHit(addr graph.Address) {
	// current is the input that actually reached addr, not the rotation
	// baseline (4.E: report_address_reached(input, addr, t) dedupes and
	// grows the corpus by the triggering bytes themselves). Before any
	// input has been sent (the Attaching-time initial stop) there is
	// nothing to report yet.
	current := o.lastSentInput

	if !o.covered[addr] {
		o.covered[addr] = true
		o.st.RecordCoverage(uint64(addr))
		if _, ok := o.inputForAddr[addr]; !ok && o.lastSentInput != nil {
			o.inputForAddr[addr] = append([]byte(nil), o.lastSentInput...)
		}
	}
	if o.strat.MarkDominatedNodes() {
		composite := o.cfgGraph.DominatorComposite(o.reverseCFG)
		// A composite edge n->addr means n dominates addr (either
		// pre- or post-), so hitting addr also covers every n that
		// dominance-reaches it — not the other way around.
		for _, n := range o.cfgGraph.Nodes() {
			if !o.covered[n] && graph.DominatorCompositeReachable(composite, n, addr) {
				o.covered[n] = true
				o.st.RecordCoverage(uint64(n))
			}
		}
	}

	if current == nil {
		return
	}
	o.strat.ReportAddressReached(current, addr)
	if o.strat.CoverageGuided() {
		o.corp.ReportAddressReached(current, int64(addr), time.Now())
	}
}

// handleInterrupt drains additional_hits, treating every address
// present in the BP table as a BreakpointHit, then classifies pc per
// 4.C's table and the explicit Interrupt-dispatch rule in section 14:
// an address in the configured software-breakpoint-as-error set, or
// any address at all when consider_sw_breakpoint_as_error is on, is
// always a crash; otherwise pc is a soft breakpoint hit if its
// enclosing basic block is in the BP table, and a crash (with a
// warning, since this is an unexpected stop) in every remaining case.
func (o *Orchestrator) handleInterrupt(ctx context.Context, pc uint64) (terminal bool, err error) {
	o.st.BreakpointInterrupts.Inc()
	for _, hit := range o.dbg.AdditionalHits() {
		if id, ok := o.addrToBP[graph.Address(hit)]; ok {
			if err := o.handleBreakpointHit(ctx, id); err != nil {
				return false, err
			}
		}
	}

	if o.cfg.ConsiderSWBPAsError || o.cfg.SoftwareBPAddresses[pc] {
		o.recordCrash(ctx)
		return true, nil
	}

	bb, ok := o.cfgGraph.BasicBlockAt(graph.Address(pc))
	if ok {
		if id, ok := o.addrToBP[bb]; ok {
			return false, o.handleBreakpointHit(ctx, id)
		}
	}
	logger.Warn("orchestrator: interrupt at pc=0x%x is not a known breakpoint; treating as crash", pc)
	o.recordCrash(ctx)
	return true, nil
}

// recordCrash and recordTimeout are expected outcomes (section 7):
// they are recorded and never returned as errors to the caller, which
// restarts the SUT instance regardless.
func (o *Orchestrator) recordCrash(ctx context.Context) {
	frames, err := o.dbg.StackFrames(ctx)
	if err != nil {
		frames = nil
	}
	fp := fingerprint(frames)
	if o.crashes.RecordCrash(fp, o.lastSentInput) {
		o.st.Crashes.Inc()
	}
}

func (o *Orchestrator) recordTimeout(ctx context.Context) {
	frames, err := o.dbg.StackFrames(ctx)
	if err != nil {
		frames = nil
	}
	fp := fingerprint(frames)
	if o.crashes.RecordTimeout(fp, o.lastSentInput) {
		o.st.Timeouts.Inc()
	}
}
