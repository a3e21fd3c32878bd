// Package orchestrator implements the Fuzzing Orchestrator (component
// 4.G): the state machine that drives one SUT instance through
// breakpoint rotation, corpus scheduling, and CFG updates until the
// run's total_runtime elapses.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"

	"github.com/nxsec/bpfuzz/internal/analyzer"
	"github.com/nxsec/bpfuzz/internal/corpus"
	"github.com/nxsec/bpfuzz/internal/debugger"
	"github.com/nxsec/bpfuzz/internal/graph"
	"github.com/nxsec/bpfuzz/internal/logger"
	"github.com/nxsec/bpfuzz/internal/stats"
	"github.com/nxsec/bpfuzz/internal/strategy"
	"github.com/nxsec/bpfuzz/internal/transport"
)

// State is one node of the orchestrator's state machine (4.G).
type State int

const (
	Attaching State = iota
	Running
	AwaitingInput
	HandlingStop
	RotatingBreakpoints
	UpdatingCFG
	RestartingSUT
	Terminated
)

func (s State) String() string {
	switch s {
	case Attaching:
		return "Attaching"
	case Running:
		return "Running"
	case AwaitingInput:
		return "AwaitingInput"
	case HandlingStop:
		return "HandlingStop"
	case RotatingBreakpoints:
		return "RotatingBreakpoints"
	case UpdatingCFG:
		return "UpdatingCFG"
	case RestartingSUT:
		return "RestartingSUT"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// defaults for the config knobs section 6 names.
const (
	defaultUntilRotateBreakpoints = 20000
	defaultCFGUpdateInterval      = 900 * time.Second
	defaultMaxAnalysisFails       = 1
)

// Config is the subset of the SUT/Fuzzer config sections the
// orchestrator consults directly.
type Config struct {
	MaxBreakpoints          int
	UntilRotateBreakpoints  int
	SingleRunTimeout        time.Duration
	TotalRuntime            time.Duration
	CFGUpdateInterval       time.Duration
	MaxAnalysisFails        int
	ConsiderSWBPAsError     bool
	SoftwareBPAddresses     map[uint64]bool
}

// resetFunc restarts the SUT and returns fresh adapters for the new
// instance.
type resetFunc func(ctx context.Context) (debugger.Debugger, transport.Transport, error)

// Orchestrator owns the CoveredSet, Corpus, BreakpointTable, strategy
// and CFG handles, per section 5's single-owner resource model.
type Orchestrator struct {
	cfg   Config
	reset resetFunc

	dbg  debugger.Debugger
	tr   transport.Transport
	strat strategy.Strategy
	corp *corpus.Corpus
	an   analyzer.StaticAnalyzer
	st   *stats.FuzzerStats

	cfgGraph   *graph.CFG
	reverseCFG *graph.CFG

	covered   map[graph.Address]bool
	breakpoints map[debugger.BreakpointID]graph.Address
	addrToBP    map[graph.Address]debugger.BreakpointID

	lastSentInput []byte
	// inputForAddr remembers, for every address first hit this run, the
	// exact input bytes that reached it — the "triggering_input" half
	// of a CFGUpdateCandidate (section 3), since UnknownEdges only
	// reports addresses, never the bytes that got the SUT there.
	inputForAddr map[graph.Address][]byte

	inputsUntilRotate  int
	lastCFGUpdate      time.Time
	cfgUpdatesDisabled *atomic.Bool

	state State

	crashes     *stats.CrashStore
	failTracker *analyzer.FailureTracker
}

// New creates an Orchestrator ready to run.
func New(
	cfg Config,
	reset resetFunc,
	strat strategy.Strategy,
	corp *corpus.Corpus,
	an analyzer.StaticAnalyzer,
	st *stats.FuzzerStats,
	crashes *stats.CrashStore,
	cfgGraph, reverseCFG *graph.CFG,
) *Orchestrator {
	if cfg.UntilRotateBreakpoints == 0 {
		cfg.UntilRotateBreakpoints = defaultUntilRotateBreakpoints
	}
	if cfg.CFGUpdateInterval == 0 {
		cfg.CFGUpdateInterval = defaultCFGUpdateInterval
	}
	if cfg.MaxAnalysisFails == 0 {
		cfg.MaxAnalysisFails = defaultMaxAnalysisFails
	}
	return &Orchestrator{
		cfg:                cfg,
		reset:              reset,
		strat:              strat,
		corp:               corp,
		an:                 an,
		st:                 st,
		crashes:            crashes,
		cfgGraph:           cfgGraph,
		reverseCFG:         reverseCFG,
		covered:            map[graph.Address]bool{},
		breakpoints:        map[debugger.BreakpointID]graph.Address{},
		addrToBP:           map[graph.Address]debugger.BreakpointID{},
		inputForAddr:       map[graph.Address][]byte{},
		inputsUntilRotate:  cfg.UntilRotateBreakpoints,
		cfgUpdatesDisabled: atomic.NewBool(false),
		state:              Attaching,
	}
}

// Run drives the state machine until total_runtime elapses or ctx is
// cancelled, whichever comes first. A total_runtime of zero terminates
// immediately after Attaching, which is a valid (if useless) clean run.
func (o *Orchestrator) Run(ctx context.Context) error {
	stopTime := time.Now().Add(o.cfg.TotalRuntime)

	// The flush loop stops as soon as the main loop returns, so Run does
	// not wait for the next minute tick after the state machine is done.
	flushCtx, stopFlush := context.WithCancel(ctx)
	defer stopFlush()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(context.Context) error {
		return o.flushLoop(flushCtx, stopTime)
	})
	p.Go(func(ctx context.Context) error {
		defer stopFlush()
		return o.mainLoop(ctx, stopTime)
	})

	err := p.Wait()
	o.state = Terminated
	o.st.Flush()
	return err
}

// flushLoop persists FuzzerStats at least once per minute (4.H).
func (o *Orchestrator) flushLoop(ctx context.Context, stopTime time.Time) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := o.st.Flush(); err != nil {
				logger.Warn("orchestrator: stats flush failed: %v", err)
			}
			if time.Now().After(stopTime) {
				return nil
			}
		}
	}
}

func (o *Orchestrator) mainLoop(ctx context.Context, stopTime time.Time) error {
	// restart obtains the first dbg/tr pair from reset (New leaves both
	// nil) and guards nil Disconnect, so it doubles as the initial
	// Attaching-state bootstrap.
	if err := o.restart(ctx); err != nil {
		return err
	}

	for time.Now().Before(stopTime) {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		o.state = Running
		if err := o.dbg.Continue(ctx); err != nil {
			// 7: DebuggerError is treated as a SUT crash unless it is a
			// timeout on wait_for_stop specifically; a failed Continue is
			// a generic failed command, so it is a crash.
			o.recordCrash(ctx)
			if err := o.restart(ctx); err != nil {
				return err
			}
			continue
		}

		o.state = AwaitingInput
		ev, err := o.dbg.WaitForStop(ctx, o.cfg.SingleRunTimeout)
		if err != nil {
			// 7: a failed wait_for_stop round-trip is the named exception
			// that becomes TimedOut rather than a crash.
			o.recordTimeout(ctx)
			if err := o.restart(ctx); err != nil {
				return err
			}
			continue
		}

		o.state = HandlingStop
		terminal, err := o.handleStop(ctx, ev)
		if err != nil {
			// 7: recovery policy leaves the orchestrator in RestartingSUT
			// for every non-fatal error; only restart itself failing is
			// fatal to the run.
			o.recordCrash(ctx)
			if err := o.restart(ctx); err != nil {
				return err
			}
			continue
		}
		if terminal {
			if err := o.restart(ctx); err != nil {
				return err
			}
			continue
		}

		if o.state == RotatingBreakpoints {
			if err := o.rotateBreakpoints(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// attach runs the Attaching-state protocol: start adapters, wait for
// the initial stop, fill the BP table, continue.
func (o *Orchestrator) attach(ctx context.Context) error {
	o.state = Attaching
	if err := o.dbg.Connect(ctx); err != nil {
		return &DebuggerError{Cause: err}
	}
	ev, err := o.dbg.WaitForStop(ctx, o.cfg.SingleRunTimeout)
	if err != nil {
		return &DebuggerError{Cause: err}
	}
	if ev.Tag != debugger.StoppedNoReason {
		logger.Warn("orchestrator: expected StoppedNoReason on attach, got %s", ev.Tag)
	}
	if err := o.setBreakpoints(ctx); err != nil {
		return err
	}
	return nil
}

// setBreakpoints refills the BP table up to MaxBreakpoints using the
// strategy, stopping early once it returns no more candidates.
func (o *Orchestrator) setBreakpoints(ctx context.Context) error {
	baseline := o.corp.GetBaseline()
	for len(o.breakpoints) < o.cfg.MaxBreakpoints {
		addr, ok := o.strat.GetBreakpointAddress(o.covered, o.activeAddrs(), baseline)
		if !ok {
			break
		}
		id, err := o.dbg.SetBreakpoint(ctx, uint64(addr), true)
		if err != nil {
			return &DebuggerError{Cause: err}
		}
		o.breakpoints[id] = addr
		o.addrToBP[addr] = id
	}
	return nil
}

func (o *Orchestrator) activeAddrs() map[graph.Address]bool {
	out := make(map[graph.Address]bool, len(o.addrToBP))
	for a := range o.addrToBP {
		out[a] = true
	}
	return out
}

// restart runs the RestartingSUT protocol: tear the old adapters down
// and acquire a fresh instance via reset, per section 5's scoped
// acquisition guarantee.
func (o *Orchestrator) restart(ctx context.Context) error {
	o.state = RestartingSUT
	if o.dbg != nil {
		_ = o.dbg.Disconnect(ctx)
	}
	if o.tr != nil {
		_ = o.tr.Disconnect(ctx)
	}
	dbg, tr, err := o.reset(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: restart SUT: %w", err)
	}
	o.dbg = dbg
	o.tr = tr
	o.breakpoints = map[debugger.BreakpointID]graph.Address{}
	o.addrToBP = map[graph.Address]debugger.BreakpointID{}
	return o.attach(ctx)
}
