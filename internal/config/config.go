// Package config loads the YAML configuration file named by the CLI's
// single --config flag (section 6) via github.com/spf13/viper, the
// way the rest of this codebase's config loader does it: one parsed
// document, environment-variable placeholders resolved in every string
// value before the section structs are populated.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully parsed configuration, one struct per section
// from section 6's table.
type Config struct {
	SUT                    SUTConfig                    `mapstructure:"SUT"`
	Fuzzer                 FuzzerConfig                 `mapstructure:"Fuzzer"`
	BreakpointStrategy     BreakpointStrategyConfig     `mapstructure:"BreakpointStrategy"`
	LogsAndVisualizations  LogsAndVisualizationsConfig  `mapstructure:"LogsAndVisualizations"`
	SUTConnection          SUTConnectionConfig          `mapstructure:"SUTConnection"`
}

// SUTConfig is section 6's SUT option group.
type SUTConfig struct {
	Entrypoint                  string   `mapstructure:"entrypoint"`
	MaxBreakpoints               int      `mapstructure:"max_breakpoints"`
	UntilRotateBreakpoints        int      `mapstructure:"until_rotate_breakpoints"`
	BinaryFilePath                string   `mapstructure:"binary_file_path"`
	SoftwareBreakpointAddresses   string   `mapstructure:"software_breakpoint_addresses"`
	ConsiderSWBreakpointAsError   bool     `mapstructure:"consider_sw_breakpoint_as_error"`
	TargetMode                   string   `mapstructure:"target_mode"` // Hardware, QEMU, SUTRunsOnHost
	IgnoreFunctions               string   `mapstructure:"ignore_functions"`
}

// FuzzerConfig is section 6's Fuzzer option group.
type FuzzerConfig struct {
	SeedsDirectory      string `mapstructure:"seeds_directory"`
	MaximumInputLength  int    `mapstructure:"maximum_input_length"`
	SingleRunTimeout    int    `mapstructure:"single_run_timeout"` // seconds
	TotalRuntime        int    `mapstructure:"total_runtime"`      // seconds
}

// BreakpointStrategyConfig is section 6's BreakpointStrategy option
// group.
type BreakpointStrategyConfig struct {
	BreakpointStrategyFile string                 `mapstructure:"breakpoint_strategy_file"`
	Options                map[string]interface{} `mapstructure:"options"`
}

// LogsAndVisualizationsConfig is section 6's LogsAndVisualizations
// option group.
type LogsAndVisualizationsConfig struct {
	OutputDirectory string `mapstructure:"output_directory"`
	LogLevel        string `mapstructure:"loglevel"`
	EnableUI        bool   `mapstructure:"enable_UI"`
}

// SUTConnectionConfig is section 6's SUTConnection option group;
// transport-specific options beyond SUTConnectionFile are adapter
// defined, so they are captured as a raw map.
type SUTConnectionConfig struct {
	SUTConnectionFile string                 `mapstructure:"SUT_connection_file"`
	Options           map[string]interface{} `mapstructure:"options"`
}

// envVarPattern matches environment variable placeholders: ${VAR_NAME}
// or $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// resolveEnvVars replaces environment variable placeholders in s with
// their values. An unset variable is left as-is in the string.
func resolveEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match
		if strings.HasPrefix(match, "${") && strings.HasSuffix(match, "}") {
			varName = match[2 : len(match)-1]
		} else if strings.HasPrefix(match, "$") {
			varName = match[1:]
		}
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}

func resolveInMap(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if resolved := resolveEnvVars(val); resolved != val {
				m[k] = resolved
			}
		case map[string]interface{}:
			resolveInMap(val)
		case []interface{}:
			resolveInSlice(val)
		}
	}
}

func resolveInSlice(s []interface{}) {
	for i, v := range s {
		switch val := v.(type) {
		case string:
			s[i] = resolveEnvVars(val)
		case map[string]interface{}:
			resolveInMap(val)
		}
	}
}

// Load reads and validates the configuration file at path, per the
// base spec's single required --config flag (section 6).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	settings := v.AllSettings()
	resolveInMap(settings)
	resolved := viper.New()
	for key, value := range settings {
		resolved.Set(key, value)
	}

	var cfg Config
	if err := resolved.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// ParseEntrypoint resolves SUT.entrypoint per section 6: decimal, hex
// (0x-prefixed), or a symbol name. Symbol resolution needs the ELF
// symbol-lookup collaborator named out of scope in section 1, so a
// bare symbol is reported as an error here rather than guessed at.
// The low bit is always cleared, which is the "forced to even if
// target is ARM Thumb" rule: Thumb entry symbols are odd by
// convention and a real block address never is, so clearing it is a
// no-op for every other target.
func (c *Config) ParseEntrypoint() (uint64, error) {
	s := strings.TrimSpace(c.SUT.Entrypoint)
	var v uint64
	var err error
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	case s != "" && isAllDigits(s):
		v, err = strconv.ParseUint(s, 10, 64)
	default:
		return 0, fmt.Errorf("config: SUT.entrypoint %q looks like a symbol name; symbol resolution requires the ELF symbol-lookup adapter, which this core does not implement", s)
	}
	if err != nil {
		return 0, fmt.Errorf("config: malformed SUT.entrypoint %q: %w", s, err)
	}
	return v &^ 1, nil
}

// ParseSoftwareBreakpointAddresses resolves SUT.software_breakpoint_addresses,
// a whitespace-separated list of decimal or 0x-prefixed hex addresses
// (section 6), into the set the orchestrator checks stop PCs against.
func (c *Config) ParseSoftwareBreakpointAddresses() (map[uint64]bool, error) {
	out := map[uint64]bool{}
	for _, tok := range strings.Fields(c.SUT.SoftwareBreakpointAddresses) {
		var v uint64
		var err error
		if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
			v, err = strconv.ParseUint(tok[2:], 16, 64)
		} else {
			v, err = strconv.ParseUint(tok, 10, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("config: malformed SUT.software_breakpoint_addresses entry %q: %w", tok, err)
		}
		out[v] = true
	}
	return out, nil
}

// IgnoreFunctionSet splits SUT.ignore_functions into a set of symbol
// names. The bundled FileAnalyzer has no per-node function tagging to
// filter against (its CFG dumps carry no symbol table), so this set is
// only consulted by a disassembling StaticAnalyzer implementation that
// supplies one.
func (c *Config) IgnoreFunctionSet() map[string]bool {
	out := map[string]bool{}
	for _, name := range strings.Fields(c.SUT.IgnoreFunctions) {
		out[name] = true
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *Config) validate() error {
	if c.SUT.Entrypoint == "" {
		return fmt.Errorf("SUT.entrypoint is required")
	}
	if c.SUT.MaxBreakpoints < 0 {
		return fmt.Errorf("SUT.max_breakpoints must not be negative")
	}
	switch c.SUT.TargetMode {
	case "Hardware", "QEMU", "SUTRunsOnHost":
	default:
		return fmt.Errorf("SUT.target_mode must be one of Hardware, QEMU, SUTRunsOnHost, got %q", c.SUT.TargetMode)
	}
	if c.Fuzzer.MaximumInputLength <= 0 {
		return fmt.Errorf("Fuzzer.maximum_input_length must be positive")
	}
	if c.BreakpointStrategy.BreakpointStrategyFile == "" {
		return fmt.Errorf("BreakpointStrategy.breakpoint_strategy_file is required")
	}
	if c.LogsAndVisualizations.OutputDirectory == "" {
		return fmt.Errorf("LogsAndVisualizations.output_directory is required")
	}
	return nil
}
