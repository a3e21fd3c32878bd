// Package stats implements the Stats & Persistence component (4.H):
// fuzzer_stats JSON, append-only plot_data/coverage_data logs, and the
// crashes/ directory's deduplicated crash and timeout storage.
package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/sjson"
	"go.uber.org/atomic"

	"github.com/nxsec/bpfuzz/internal/logger"
)

// FuzzerStats holds the counters flushed to fuzzer_stats on every tick
// (4.H: "flushed at least once per minute and on exit"). Counters are
// atomics because the flush goroutine reads them while the
// orchestrator goroutine writes them (section 11's concurrency-sensitive
// counters, mirroring this codebase's existing use of go.uber.org/atomic).
type FuzzerStats struct {
	Runs                 atomic.Uint64
	Crashes              atomic.Uint64
	Timeouts             atomic.Uint64
	CoverageCount        atomic.Uint64
	BreakpointInterrupts atomic.Uint64

	mu        sync.Mutex
	dir       string
	start     time.Time
	doc       string // incrementally built fuzzer_stats JSON document
	plotFile  *os.File
	covFile   *os.File
	cfgUpdates []cfgUpdateEntry
}

type cfgUpdateEntry struct {
	Timestamp        int64 `json:"timestamp"`
	TotalBasicBlocks int   `json:"total_basic_blocks"`
	TotalEdges       int   `json:"total_edges"`
}

// New creates a FuzzerStats writing under dir (a trial-N directory).
func New(dir string) (*FuzzerStats, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("stats: create output dir: %w", err)
	}
	plotFile, err := os.OpenFile(filepath.Join(dir, "plot_data"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("stats: open plot_data: %w", err)
	}
	covFile, err := os.OpenFile(filepath.Join(dir, "coverage_data"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("stats: open coverage_data: %w", err)
	}
	return &FuzzerStats{
		dir:      dir,
		start:    time.Now(),
		doc:      "{}",
		plotFile: plotFile,
		covFile:  covFile,
	}, nil
}

// RecordCoverage appends a "<runtime> <hex_addr>" line to both
// plot_data and coverage_data for a newly covered address.
func (s *FuzzerStats) RecordCoverage(addr uint64) {
	s.CoverageCount.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%.3f %x\n", time.Since(s.start).Seconds(), addr)
	if _, err := s.plotFile.WriteString(line); err != nil {
		logger.Warn("stats: write plot_data: %v", err)
	}
	if _, err := s.covFile.WriteString(line); err != nil {
		logger.Warn("stats: write coverage_data: %v", err)
	}
}

// RecordCFGUpdate appends a cfg_update snapshot, mirroring
// fuzzer_stats_cfg_update() in the reference implementation.
func (s *FuzzerStats) RecordCFGUpdate(totalBasicBlocks, totalEdges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfgUpdates = append(s.cfgUpdates, cfgUpdateEntry{
		Timestamp:        time.Now().Unix(),
		TotalBasicBlocks: totalBasicBlocks,
		TotalEdges:       totalEdges,
	})
}

// Flush writes the current fuzzer_stats JSON document to disk.
func (s *FuzzerStats) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := "{}"
	var err error
	doc, err = sjson.Set(doc, "runs", s.Runs.Load())
	if err != nil {
		return fmt.Errorf("stats: build fuzzer_stats: %w", err)
	}
	doc, err = sjson.Set(doc, "crashes", s.Crashes.Load())
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "timeouts", s.Timeouts.Load())
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "run_time_seconds", time.Since(s.start).Seconds())
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "coverage_count", s.CoverageCount.Load())
	if err != nil {
		return err
	}
	doc, err = sjson.Set(doc, "breakpoint_interrupts", s.BreakpointInterrupts.Load())
	if err != nil {
		return err
	}
	for i, u := range s.cfgUpdates {
		path := fmt.Sprintf("cfg_update.%d", i)
		doc, err = sjson.Set(doc, path, u)
		if err != nil {
			return err
		}
	}
	s.doc = doc

	path := filepath.Join(s.dir, "fuzzer_stats")
	return os.WriteFile(path, []byte(s.doc), 0644)
}

// Close flushes and releases the append-only log files.
func (s *FuzzerStats) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.plotFile.Close()
	_ = s.covFile.Close()
	return nil
}
