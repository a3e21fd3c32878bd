package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxsec/bpfuzz/internal/graph"
)

func writeCFGDump(t *testing.T) string {
	t.Helper()
	cfg := graph.NewCFG(0x1000)
	cfg.AddNode(0x1000, "main")
	cfg.AddNode(0x1010, "main")
	cfg.AddNode(0x1020, "main")
	require.NoError(t, cfg.AddEdge(0x1000, 0x1010, graph.EdgeFallthrough))
	require.NoError(t, cfg.AddEdge(0x1010, 0x1020, graph.EdgeFallthrough))
	cfg.MarkExit(0x1020)

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.dump")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, Encode(f, cfg))
	return path
}

func TestNewFileAnalyzer(t *testing.T) {
	path := writeCFGDump(t)
	a, err := NewFileAnalyzer(path, 0x1000)
	require.NoError(t, err)

	bb, err := a.BasicBlockAt(context.Background(), 0x1010)
	assert.NoError(t, err)
	assert.Equal(t, graph.Address(0x1010), bb)
}

func TestNewFileAnalyzer_UnknownAddress(t *testing.T) {
	path := writeCFGDump(t)
	a, err := NewFileAnalyzer(path, 0x1000)
	require.NoError(t, err)

	_, err = a.BasicBlockAt(context.Background(), 0xdead)
	assert.Error(t, err)
}

func TestNewFileAnalyzer_MissingFile(t *testing.T) {
	_, err := NewFileAnalyzer(filepath.Join(t.TempDir(), "missing"), 0x1000)
	assert.Error(t, err)
}

func TestFileAnalyzer_RebuildCFGIsStable(t *testing.T) {
	path := writeCFGDump(t)
	a, err := NewFileAnalyzer(path, 0x1000)
	require.NoError(t, err)

	r1, err := a.RebuildCFG(context.Background())
	require.NoError(t, err)
	r2, err := a.RebuildCFG(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r1.CFG, r2.CFG)
}

func TestFileAnalyzer_UnknownEdgesEmpty(t *testing.T) {
	path := writeCFGDump(t)
	a, err := NewFileAnalyzer(path, 0x1000)
	require.NoError(t, err)

	edges, err := a.UnknownEdges(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, edges)
}
