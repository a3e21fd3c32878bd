package state

import (
	"testing"
	"time"
)

func TestFuzzMetricsSnapshot(t *testing.T) {
	m := &FuzzMetrics{
		StartTime: time.Now().Add(-10 * time.Second),
		Runs:      100,
	}
	m.Snapshot(m.StartTime.Add(10 * time.Second))

	if m.ElapsedSeconds < 9.9 || m.ElapsedSeconds > 10.1 {
		t.Errorf("expected ElapsedSeconds ~10, got %f", m.ElapsedSeconds)
	}
	if m.RunsPerSecond < 9.9 || m.RunsPerSecond > 10.1 {
		t.Errorf("expected RunsPerSecond ~10, got %f", m.RunsPerSecond)
	}
}

func TestFuzzMetricsSnapshotZeroElapsed(t *testing.T) {
	now := time.Now()
	m := &FuzzMetrics{StartTime: now, Runs: 5}
	m.Snapshot(now)

	if m.RunsPerSecond != 0 {
		t.Errorf("expected RunsPerSecond 0 at zero elapsed, got %f", m.RunsPerSecond)
	}
}

func TestSafePercent(t *testing.T) {
	if got := safePercent(0, 0); got != 0 {
		t.Errorf("safePercent(0,0) = %f, want 0", got)
	}
	if got := safePercent(50, 100); got != 50 {
		t.Errorf("safePercent(50,100) = %f, want 50", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "0s" {
		t.Errorf("formatDuration(0) = %q, want 0s", got)
	}
	if got := formatDuration(65); got != "1m5s" {
		t.Errorf("formatDuration(65) = %q, want 1m5s", got)
	}
}
