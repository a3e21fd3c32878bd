// Package corpus implements the Corpus Manager (component 4.E): the
// pool of inputs the orchestrator draws baselines from and appends new
// coverage-increasing inputs to, scheduled by burn-in-weighted energy
// the way the base spec's input-generation loop does.
package corpus

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nxsec/bpfuzz/internal/logger"
	"github.com/nxsec/bpfuzz/internal/mutate"
)

// Corpus is a mutex-protected, file-backed pool of Entries, mirroring
// the locking and persistence shape of the rest of this codebase's
// manager types.
type Corpus struct {
	mu  sync.Mutex
	dir string
	rng *rand.Rand
	mut mutate.Mutator

	entries []*Entry

	maxInputLength int
	totalHitBlocks int

	// currentBaseIndex is -1 until the first choose_new_baseline,
	// matching the reference initialization-phase sentinel.
	currentBaseIndex int
	// retryCorpusIndex drives the post-reset replay sweep: every entry
	// is tried once, in order, before falling back to mutation again.
	retryCorpusIndex int
}

// New creates an empty corpus backed by dir, which must already exist.
// A non-nil mutator is required; NewDefault from the mutate package is
// the usual choice.
func New(dir string, maxInputLength int, mut mutate.Mutator, seed int64) *Corpus {
	return &Corpus{
		dir:              dir,
		rng:              rand.New(rand.NewSource(seed)),
		mut:              mut,
		maxInputLength:   maxInputLength,
		currentBaseIndex: -1,
		retryCorpusIndex: 0,
	}
}

// AddSeeds reads every regular file in seedsDir and adds it as an
// initial corpus entry, skipping files over maxInputLength. If no
// seeds are added (directory empty or all oversized), a default
// two-byte seed is inserted so the corpus is never empty.
func (c *Corpus) AddSeeds(seedsDir string) error {
	entries, err := os.ReadDir(seedsDir)
	if err != nil {
		return fmt.Errorf("corpus: read seeds dir %s: %w", seedsDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(c.entries))
	for _, e := range c.entries {
		seen[string(e.Content)] = true
	}
	for _, name := range names {
		path := filepath.Join(seedsDir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("corpus: read seed %s: %w", path, err)
		}
		if len(content) > c.maxInputLength {
			logger.Warn("corpus: seed %s not added, length %d exceeds max_input_length %d", path, len(content), c.maxInputLength)
			continue
		}
		key := string(content)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := c.addEntry(content, -1, 0); err != nil {
			return err
		}
	}

	if len(c.entries) == 0 {
		if _, err := c.addEntry([]byte("hi"), -1, 0); err != nil {
			return err
		}
	}
	return nil
}

// addEntry persists content to dir with the base spec's filename
// convention and appends the resulting Entry. Callers must hold mu or
// guarantee no concurrent access (used only during setup and from
// within already-locked methods).
func (c *Corpus) addEntry(content []byte, addr int64, unixSeconds int64) (*Entry, error) {
	origin := c.currentBaseIndex
	depth := 0
	if origin >= 0 {
		depth = c.entries[origin].Depth + 1
		c.entries[origin].NumChildren++
	}

	entry := newEntry(content, origin, depth)
	idx := len(c.entries)
	entry.Path = filepath.Join(c.dir, fmt.Sprintf("id:%d,orig:%d,addr:%x,time:%d", idx, origin, addr, unixSeconds))
	if err := os.WriteFile(entry.Path, content, 0644); err != nil {
		return nil, fmt.Errorf("corpus: persist entry: %w", err)
	}
	c.entries = append(c.entries, entry)
	return entry, nil
}

// ChooseNewBaseline draws a new current-baseline entry via
// burn-in-weighted cumulative sampling, matching the reference
// scheduler exactly: every call recomputes all weights, builds a
// cumulative-weight ladder, and draws one index from it.
func (c *Corpus) ChooseNewBaseline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retryCorpusIndex > 0 {
		c.retryCorpusIndex = 0
	}

	cumulative := make([]float64, len(c.entries))
	var sum float64
	for i, e := range c.entries {
		e.computeWeight()
		sum += e.Weight
		cumulative[i] = sum
	}

	draw := c.rng.Float64() * sum
	chosen := len(cumulative) - 1
	for i, cw := range cumulative {
		if draw <= cw {
			chosen = i
			break
		}
	}
	c.currentBaseIndex = chosen

	e := c.entries[chosen]
	e.NumFuzzed++
	if e.BurnIn > 0 {
		e.BurnIn--
	}
}

// baseIndexLocked resolves currentBaseIndex to an entry index, falling
// back to entry 0 (the first seed) when no ChooseNewBaseline has run
// yet, matching the data model's "index 0 is the first seed or the
// default synthetic seed" rule. Callers must hold mu.
func (c *Corpus) baseIndexLocked() int {
	if c.currentBaseIndex < 0 {
		return 0
	}
	return c.currentBaseIndex
}

// GetBaseline returns the content of the current baseline entry.
func (c *Corpus) GetBaseline() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[c.baseIndexLocked()].Content
}

// GenerateInput returns the next input to feed the SUT: during a
// post-reset replay sweep it returns corpus entries verbatim in order,
// then falls back to mutating the current baseline.
func (c *Corpus) GenerateInput() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retryCorpusIndex < len(c.entries) {
		input := c.entries[c.retryCorpusIndex].Content
		c.retryCorpusIndex++
		return input
	}
	return c.mut.Mutate(c.entries[c.baseIndexLocked()].Content)
}

// ReportAddressReached records a newly observed breakpoint hit for
// input. If input already exists as an entry its hit count is bumped;
// otherwise it becomes a new corpus entry and the post-reset replay
// sweep is rearmed, since a coverage-increasing input means previously
// rejected corpus entries may now reach new breakpoints too.
func (c *Corpus) ReportAddressReached(input []byte, addr int64, when time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalHitBlocks++
	key := string(input)
	for _, e := range c.entries {
		if string(e.Content) == key {
			e.HitBlocks++
			return
		}
	}

	c.retryCorpusIndex = 0
	entry, err := c.addEntry(input, addr, when.Unix())
	if err != nil {
		logger.Warn("corpus: failed to persist new entry: %v", err)
		return
	}
	entry.HitBlocks++
	logger.Debug("corpus: new entry %s", entry.Path)
}

// Len returns the number of entries currently in the corpus.
func (c *Corpus) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns a shallow copy of the current entry pointers, for
// stats reporting.
func (c *Corpus) Snapshot() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
