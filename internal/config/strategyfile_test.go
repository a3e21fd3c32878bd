package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStrategySelection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.json")
	doc := `{"name": "dominator_child_plus", "options": {"seed": 7, "pool": "leaves"}}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	sel, err := LoadStrategySelection(path)
	if err != nil {
		t.Fatalf("LoadStrategySelection: %v", err)
	}
	if sel.Name != "dominator_child_plus" {
		t.Errorf("expected name dominator_child_plus, got %q", sel.Name)
	}
	if sel.Options["pool"] != "leaves" {
		t.Errorf("expected options.pool = leaves, got %v", sel.Options["pool"])
	}
}

func TestLoadStrategySelectionMissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.json")
	if err := os.WriteFile(path, []byte(`{"options": {}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadStrategySelection(path); err == nil {
		t.Fatal("expected error for missing name field")
	}
}

func TestLoadStrategySelectionInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.json")
	if err := os.WriteFile(path, []byte(`not json`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadStrategySelection(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
