package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_CreatesPlotAndCoverageFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	require.FileExists(t, filepath.Join(dir, "plot_data"))
	require.FileExists(t, filepath.Join(dir, "coverage_data"))
}

func TestRecordCoverage_AppendsToBothLogsAndBumpsCounter(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	s.RecordCoverage(0x1000)
	s.RecordCoverage(0x2000)
	require.Equal(t, uint64(2), s.CoverageCount.Load())

	plot, err := os.ReadFile(filepath.Join(dir, "plot_data"))
	require.NoError(t, err)
	require.Contains(t, string(plot), "1000")
	require.Contains(t, string(plot), "2000")
}

func TestFlush_WritesFuzzerStatsJSON(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	s.Runs.Store(5)
	s.Crashes.Store(1)
	s.Timeouts.Store(2)
	s.RecordCoverage(0x42)
	s.BreakpointInterrupts.Store(3)

	require.NoError(t, s.Flush())

	body, err := os.ReadFile(filepath.Join(dir, "fuzzer_stats"))
	require.NoError(t, err)
	doc := string(body)
	require.Contains(t, doc, `"runs":5`)
	require.Contains(t, doc, `"crashes":1`)
	require.Contains(t, doc, `"timeouts":2`)
	require.Contains(t, doc, `"breakpoint_interrupts":3`)
}

func TestRecordCFGUpdate_AppendsASnapshotEntry(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	s.RecordCFGUpdate(10, 14)
	require.NoError(t, s.Flush())

	body, err := os.ReadFile(filepath.Join(dir, "fuzzer_stats"))
	require.NoError(t, err)
	doc := string(body)
	require.Contains(t, doc, `"total_basic_blocks":10`)
	require.Contains(t, doc, `"total_edges":14`)
}

func TestClose_FlushesAndClosesFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	s.Runs.Store(1)
	require.NoError(t, s.Close())

	require.FileExists(t, filepath.Join(dir, "fuzzer_stats"))
}

func TestNewCrashStore_CreatesCrashesDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := NewCrashStore(dir)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, "crashes"))
}

func TestCrashStore_RecordCrash_DedupesByFingerprint(t *testing.T) {
	dir := t.TempDir()
	cs, err := NewCrashStore(dir)
	require.NoError(t, err)

	require.True(t, cs.RecordCrash("fp-a", []byte("input-a")), "a new fingerprint always writes")
	require.False(t, cs.RecordCrash("fp-a", []byte("input-a-again")), "a repeat fingerprint is silently dropped")

	body, err := os.ReadFile(filepath.Join(dir, "crashes", "fp-a"))
	require.NoError(t, err)
	require.Equal(t, "input-a", string(body), "the first write's bytes are retained, the second is dropped")
}

func TestCrashStore_RecordTimeout_UsesASeparatePrefixFromCrashes(t *testing.T) {
	dir := t.TempDir()
	cs, err := NewCrashStore(dir)
	require.NoError(t, err)

	require.True(t, cs.RecordCrash("fp-b", []byte("crash-input")))
	require.True(t, cs.RecordTimeout("fp-b", []byte("timeout-input")),
		"a timeout and a crash sharing a fingerprint occupy distinct namespaces")

	require.FileExists(t, filepath.Join(dir, "crashes", "fp-b"))
	require.FileExists(t, filepath.Join(dir, "crashes", "timeout_fp-b"))
}

func TestCrashStore_RecordTimeout_DedupesIndependently(t *testing.T) {
	dir := t.TempDir()
	cs, err := NewCrashStore(dir)
	require.NoError(t, err)

	require.True(t, cs.RecordTimeout("fp-c", []byte("first")))
	require.False(t, cs.RecordTimeout("fp-c", []byte("second")))
}
