// Package state renders the optional live terminal dashboard behind
// LogsAndVisualizations.enable_UI (section 6). It is a local, in-process
// stand-in for the out-of-scope MQTT/visual dashboard named in section 1:
// this package only reflects counters the orchestrator already tracks, it
// never persists anything (that is 4.H's job).
package state

import "time"

// FuzzMetrics is a point-in-time snapshot of the run, refreshed once a
// second by the CLI's render loop and handed to the TerminalUI.
type FuzzMetrics struct {
	StartTime      time.Time
	ElapsedSeconds float64

	Runs     uint64
	Crashes  uint64
	Timeouts uint64

	CoveredCount       int
	TotalBasicBlocks   int
	TotalEdges         int
	ActiveBreakpoints  int
	MaxBreakpoints     int
	CorpusSize         int
	BreakpointHits     uint64
	RunsPerSecond      float64
	StrategyName       string
}

// Snapshot fills in ElapsedSeconds and RunsPerSecond from the other
// fields; callers set everything else before calling it.
func (m *FuzzMetrics) Snapshot(now time.Time) {
	m.ElapsedSeconds = now.Sub(m.StartTime).Seconds()
	if m.ElapsedSeconds > 0 {
		m.RunsPerSecond = float64(m.Runs) / m.ElapsedSeconds
	}
}

func safePercent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	d = d.Round(time.Second)
	return d.String()
}
