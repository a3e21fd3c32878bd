// Package app wires the CLI entrypoint (component 10.D): a single
// cobra command with one required flag, constructing every adapter
// named in sections 4 and 5 from one parsed config document.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nxsec/bpfuzz/internal/analyzer"
	"github.com/nxsec/bpfuzz/internal/config"
	"github.com/nxsec/bpfuzz/internal/corpus"
	"github.com/nxsec/bpfuzz/internal/debugger"
	"github.com/nxsec/bpfuzz/internal/exec"
	"github.com/nxsec/bpfuzz/internal/graph"
	"github.com/nxsec/bpfuzz/internal/logger"
	"github.com/nxsec/bpfuzz/internal/mutate"
	"github.com/nxsec/bpfuzz/internal/orchestrator"
	"github.com/nxsec/bpfuzz/internal/state"
	"github.com/nxsec/bpfuzz/internal/stats"
	"github.com/nxsec/bpfuzz/internal/strategy"
	"github.com/nxsec/bpfuzz/internal/transport"
	"github.com/nxsec/bpfuzz/internal/vm"
)

// NewRootCommand builds the bpfuzz command: "bpfuzz --config <path>",
// no subcommands, per section 6/10.D.
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bpfuzz",
		Short: "Coverage-guided, breakpoint-driven greybox fuzzer for a remote-debugged SUT.",
		Long: `bpfuzz drives one SUT instance through a live debugger connection,
rotating live breakpoints over a control-flow graph to steer a mutation-based
corpus toward uncovered basic blocks, until total_runtime elapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	trialDir := filepath.Join(cfg.LogsAndVisualizations.OutputDirectory, "trial-1")
	if err := os.MkdirAll(trialDir, 0755); err != nil {
		return fmt.Errorf("bpfuzz: create output directory: %w", err)
	}

	if err := logger.InitWithFile(cfg.LogsAndVisualizations.LogLevel, trialDir); err != nil {
		return fmt.Errorf("bpfuzz: init logger: %w", err)
	}
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry, err := cfg.ParseEntrypoint()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	swBPAddrs, err := cfg.ParseSoftwareBreakpointAddresses()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fileAnalyzer, err := analyzer.NewFileAnalyzer(cfg.SUT.BinaryFilePath, graph.Address(entry))
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	an := analyzer.Budgeted{Inner: fileAnalyzer, Budget: 30 * time.Second}

	rebuild, err := an.RebuildCFG(ctx)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}

	corp := corpus.New(filepath.Join(trialDir, "corpus"), cfg.Fuzzer.MaximumInputLength, mutate.NewDefault(), time.Now().UnixNano())
	if err := os.MkdirAll(filepath.Join(trialDir, "corpus"), 0755); err != nil {
		return fmt.Errorf("bpfuzz: create corpus directory: %w", err)
	}
	if cfg.Fuzzer.SeedsDirectory != "" {
		if err := corp.AddSeeds(cfg.Fuzzer.SeedsDirectory); err != nil {
			return fmt.Errorf("corpus: %w", err)
		}
	}

	sel, err := config.LoadStrategySelection(cfg.BreakpointStrategy.BreakpointStrategyFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	options := sel.Options
	if options == nil {
		options = cfg.BreakpointStrategy.Options
	}
	strat, err := strategy.New(sel.Name, options)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	strat.CFGChanged(strategy.CFGView{
		EntryPoint: rebuild.CFG.Entry(),
		CFG:        rebuild.CFG,
		ExitPoints: rebuild.CFG.ExitPoints(),
		ReverseCFG: rebuild.ReverseCFG,
	})

	st, err := stats.New(trialDir)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	defer st.Close()
	crashes, err := stats.NewCrashStore(trialDir)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	reset, teardown, err := resetFuncFor(cfg)
	if err != nil {
		return fmt.Errorf("bpfuzz: %w", err)
	}
	defer teardown()

	orchCfg := orchestrator.Config{
		MaxBreakpoints:         cfg.SUT.MaxBreakpoints,
		UntilRotateBreakpoints: cfg.SUT.UntilRotateBreakpoints,
		SingleRunTimeout:       time.Duration(cfg.Fuzzer.SingleRunTimeout) * time.Second,
		TotalRuntime:           time.Duration(cfg.Fuzzer.TotalRuntime) * time.Second,
		ConsiderSWBPAsError:    cfg.SUT.ConsiderSWBreakpointAsError,
		SoftwareBPAddresses:    swBPAddrs,
	}

	o := orchestrator.New(orchCfg, reset, strat, corp, an, st, crashes, rebuild.CFG, rebuild.ReverseCFG)

	if cfg.LogsAndVisualizations.EnableUI {
		ui := state.NewTerminalUI()
		ui.SetEnabled(true)
		metrics := &state.FuzzMetrics{StartTime: time.Now(), StrategyName: strat.Name(), MaxBreakpoints: cfg.SUT.MaxBreakpoints}
		ui.SetMetrics(metrics)
		stop := renderLoop(ctx, ui, metrics, st, corp, rebuild)
		defer stop()
	}

	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// renderLoop refreshes the terminal UI once a second from live stats
// and corpus counters, returning a stop func the caller defers.
func renderLoop(ctx context.Context, ui *state.TerminalUI, m *state.FuzzMetrics, st *stats.FuzzerStats, corp *corpus.Corpus, rebuild analyzer.Result) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case <-ticker.C:
				m.Runs = st.Runs.Load()
				m.Crashes = st.Crashes.Load()
				m.Timeouts = st.Timeouts.Load()
				m.BreakpointHits = st.BreakpointInterrupts.Load()
				m.CoveredCount = int(st.CoverageCount.Load())
				m.TotalBasicBlocks = len(rebuild.CFG.Nodes())
				m.CorpusSize = corp.Len()
				m.Snapshot(time.Now())
				ui.Render()
			}
		}
	}()
	return func() {
		<-done
		ui.Clear()
	}
}

// resetFuncFor builds the orchestrator's resetFunc for cfg.SUT.TargetMode,
// plus a teardown func the caller defers for any long-lived auxiliary
// resource (the QEMU sandbox). The Debugger itself always comes from
// the debugger package's registry, which this core leaves empty: the
// wire-protocol client for every target_mode is the external
// collaborator named in section 1 and must call debugger.Register from
// its own init().
func resetFuncFor(cfg *config.Config) (func(ctx context.Context) (debugger.Debugger, transport.Transport, error), func(), error) {
	switch cfg.SUT.TargetMode {
	case "SUTRunsOnHost":
		args, _ := cfg.SUTConnection.Options["args"].([]interface{})
		argv := make([]string, 0, len(args))
		for _, a := range args {
			if s, ok := a.(string); ok {
				argv = append(argv, s)
			}
		}
		reset := func(ctx context.Context) (debugger.Debugger, transport.Transport, error) {
			dbg, err := debugger.New(ctx, cfg.SUT.TargetMode)
			if err != nil {
				return nil, nil, err
			}
			tr := transport.NewLocalProcess(cfg.SUT.BinaryFilePath, argv, func(ctx context.Context) error { return nil })
			return dbg, tr, nil
		}
		return reset, func() {}, nil

	case "QEMU":
		qemuPath, _ := cfg.SUTConnection.Options["qemu_binary"].(string)
		if qemuPath == "" {
			qemuPath = "qemu-system-x86_64"
		}
		image, _ := cfg.SUTConnection.Options["image"].(string)
		machine := vm.NewQemuVM(image, qemuPath, nil, 1234, exec.NewCommandExecutor())
		if err := machine.Create(); err != nil {
			return nil, func() {}, fmt.Errorf("vm: %w", err)
		}
		reset := func(ctx context.Context) (debugger.Debugger, transport.Transport, error) {
			dbg, err := debugger.New(ctx, cfg.SUT.TargetMode)
			if err != nil {
				return nil, nil, err
			}
			tr := transport.NewLocalProcess(cfg.SUT.BinaryFilePath, nil, func(ctx context.Context) error { return nil })
			return dbg, tr, nil
		}
		return reset, func() { _ = machine.Stop() }, nil

	case "Hardware":
		reset := func(ctx context.Context) (debugger.Debugger, transport.Transport, error) {
			dbg, err := debugger.New(ctx, cfg.SUT.TargetMode)
			if err != nil {
				return nil, nil, err
			}
			tr := transport.NewLocalProcess(cfg.SUT.BinaryFilePath, nil, func(ctx context.Context) error { return nil })
			return dbg, tr, nil
		}
		return reset, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown target_mode %q", cfg.SUT.TargetMode)
	}
}
