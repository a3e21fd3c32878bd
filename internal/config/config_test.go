package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
SUT:
  entrypoint: "0x401000"
  max_breakpoints: 8
  until_rotate_breakpoints: 1000
  binary_file_path: "/bin/target"
  target_mode: "SUTRunsOnHost"
Fuzzer:
  seeds_directory: "./seeds"
  maximum_input_length: 4096
  single_run_timeout: 5
  total_runtime: 3600
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
  loglevel: "info"
SUTConnection:
  SUT_connection_file: "./connection.json"
`

func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 8, cfg.SUT.MaxBreakpoints)
	assert.Equal(t, "SUTRunsOnHost", cfg.SUT.TargetMode)
	assert.Equal(t, 4096, cfg.Fuzzer.MaximumInputLength)
}

func TestLoad_FileNotExists(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_MaxBreakpointsZeroIsValid(t *testing.T) {
	content := `
SUT:
  entrypoint: "0x1000"
  max_breakpoints: 0
  target_mode: "SUTRunsOnHost"
Fuzzer:
  maximum_input_length: 100
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
`
	path := writeConfig(t, content)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 0, cfg.SUT.MaxBreakpoints)
}

func TestLoad_MaxBreakpointsNegativeRejected(t *testing.T) {
	content := `
SUT:
  entrypoint: "0x1000"
  max_breakpoints: -1
  target_mode: "SUTRunsOnHost"
Fuzzer:
  maximum_input_length: 100
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
`
	path := writeConfig(t, content)
	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_breakpoints")
}

func TestLoad_MissingEntrypoint(t *testing.T) {
	content := `
SUT:
  max_breakpoints: 1
  target_mode: "SUTRunsOnHost"
Fuzzer:
  maximum_input_length: 100
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
`
	path := writeConfig(t, content)
	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entrypoint")
}

func TestLoad_InvalidTargetMode(t *testing.T) {
	content := `
SUT:
  entrypoint: "0x1000"
  max_breakpoints: 1
  target_mode: "Cloud"
Fuzzer:
  maximum_input_length: 100
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
`
	path := writeConfig(t, content)
	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "target_mode")
}

func TestLoad_EnvVarPlaceholderResolved(t *testing.T) {
	os.Setenv("BPFUZZ_TEST_BIN", "/opt/target")
	defer os.Unsetenv("BPFUZZ_TEST_BIN")

	content := `
SUT:
  entrypoint: "0x1000"
  max_breakpoints: 1
  binary_file_path: "${BPFUZZ_TEST_BIN}"
  target_mode: "SUTRunsOnHost"
Fuzzer:
  maximum_input_length: 100
BreakpointStrategy:
  breakpoint_strategy_file: "./strategy.json"
LogsAndVisualizations:
  output_directory: "./out"
`
	path := writeConfig(t, content)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "/opt/target", cfg.SUT.BinaryFilePath)
}

func TestResolveEnvVars(t *testing.T) {
	os.Setenv("TEST_API_KEY", "secret123")
	defer os.Unsetenv("TEST_API_KEY")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"braced", "${TEST_API_KEY}", "secret123"},
		{"simple", "$TEST_API_KEY", "secret123"},
		{"mixed text", "Bearer ${TEST_API_KEY}", "Bearer secret123"},
		{"non-existent stays as-is", "${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no env vars", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveEnvVars(tt.input))
		})
	}
}

func TestResolveEnvVarsInMap(t *testing.T) {
	os.Setenv("TEST_KEY", "resolved_value")
	defer os.Unsetenv("TEST_KEY")

	m := map[string]interface{}{
		"api_key":  "${TEST_KEY}",
		"endpoint": "https://api.example.com",
		"nested": map[string]interface{}{
			"inner_key": "$TEST_KEY",
		},
		"array": []interface{}{"$TEST_KEY", "static_value"},
	}
	resolveInMap(m)

	assert.Equal(t, "resolved_value", m["api_key"])
	assert.Equal(t, "https://api.example.com", m["endpoint"])
	nested := m["nested"].(map[string]interface{})
	assert.Equal(t, "resolved_value", nested["inner_key"])
	array := m["array"].([]interface{})
	assert.Equal(t, "resolved_value", array[0])
	assert.Equal(t, "static_value", array[1])
}

func TestParseEntrypoint_Hex(t *testing.T) {
	cfg := &Config{SUT: SUTConfig{Entrypoint: "0x401001"}}
	v, err := cfg.ParseEntrypoint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x401000), v) // low bit cleared
}

func TestParseEntrypoint_Decimal(t *testing.T) {
	cfg := &Config{SUT: SUTConfig{Entrypoint: "4198400"}}
	v, err := cfg.ParseEntrypoint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(4198400), v)
}

func TestParseEntrypoint_SymbolRejected(t *testing.T) {
	cfg := &Config{SUT: SUTConfig{Entrypoint: "main"}}
	_, err := cfg.ParseEntrypoint()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

func TestParseEntrypoint_Malformed(t *testing.T) {
	cfg := &Config{SUT: SUTConfig{Entrypoint: "0xZZZZ"}}
	_, err := cfg.ParseEntrypoint()
	assert.Error(t, err)
}
