package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CrashStore persists crashing and timing-out inputs under
// crashes/<fingerprint> and crashes/timeout_<fingerprint>,
// deduplicating by fingerprint: a repeat fingerprint is silently
// dropped (section 7).
type CrashStore struct {
	mu  sync.Mutex
	dir string
}

// NewCrashStore creates a store writing under dir/crashes.
func NewCrashStore(dir string) (*CrashStore, error) {
	crashDir := filepath.Join(dir, "crashes")
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		return nil, fmt.Errorf("stats: create crashes dir: %w", err)
	}
	return &CrashStore{dir: crashDir}, nil
}

// RecordCrash writes input under crashes/<fingerprint> if that
// fingerprint has not been seen before, and reports whether it wrote a
// new file.
func (c *CrashStore) RecordCrash(fingerprint string, input []byte) bool {
	return c.record(fingerprint, input)
}

// RecordTimeout writes input under crashes/timeout_<fingerprint> if
// that fingerprint has not been seen before.
func (c *CrashStore) RecordTimeout(fingerprint string, input []byte) bool {
	return c.record("timeout_"+fingerprint, input)
}

func (c *CrashStore) record(name string, input []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, name)
	if _, err := os.Stat(path); err == nil {
		return false
	}
	if err := os.WriteFile(path, input, 0644); err != nil {
		return false
	}
	return true
}
