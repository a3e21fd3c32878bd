package config

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// StrategySelection is the registry key plus free-form options that
// BreakpointStrategy.breakpoint_strategy_file resolves to. Per the base
// spec's design notes ("configuration names a registry key, never a
// path"), the file itself is not loaded as code: it is a small JSON
// document naming which built-in strategy/transport to register
// against, read here with gjson rather than a full struct unmarshal
// since its shape varies per adapter and is never the main config's
// schema.
type StrategySelection struct {
	Name    string
	Options map[string]interface{}
}

// LoadStrategySelection reads path and extracts the "name" and
// "options" fields by gjson path query, tolerating any extra fields an
// adapter-specific file might carry.
func LoadStrategySelection(path string) (StrategySelection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StrategySelection{}, fmt.Errorf("config: read strategy selection %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return StrategySelection{}, fmt.Errorf("config: %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)
	name := root.Get("name").String()
	if name == "" {
		return StrategySelection{}, fmt.Errorf("config: %s missing required \"name\" field", path)
	}

	options := map[string]interface{}{}
	root.Get("options").ForEach(func(key, value gjson.Result) bool {
		options[key.String()] = value.Value()
		return true
	})
	return StrategySelection{Name: name, Options: options}, nil
}
