package orchestrator

import (
	"context"

	"github.com/nxsec/bpfuzz/internal/debugger"
	"github.com/nxsec/bpfuzz/internal/graph"
)

// rotateBreakpoints implements the RotatingBreakpoints protocol:
// interrupt the SUT, clear all breakpoints, choose a new baseline,
// refill the BP table, continue.
func (o *Orchestrator) rotateBreakpoints(ctx context.Context) error {
	if err := o.dbg.Interrupt(ctx); err != nil {
		return &DebuggerError{Cause: err}
	}
	for id := range o.breakpoints {
		if err := o.dbg.RemoveBreakpoint(ctx, id); err != nil {
			return &DebuggerError{Cause: err}
		}
	}
	o.breakpoints = map[debugger.BreakpointID]graph.Address{}
	o.addrToBP = map[graph.Address]debugger.BreakpointID{}

	o.corp.ChooseNewBaseline()

	if err := o.setBreakpoints(ctx); err != nil {
		return err
	}
	o.inputsUntilRotate = o.cfg.UntilRotateBreakpoints
	o.state = Running
	return nil
}
