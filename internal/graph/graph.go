// Package graph implements the control-flow and dominator analysis the
// fuzzing orchestrator consults on every breakpoint hit and CFG rebuild.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/katalvlaran/lvlath/core"
)

// Address identifies a basic-block start. Negative values are reserved
// sentinels; everything else is a real code address.
type Address int64

const (
	// ExternalCallSite stands in for a call target outside the
	// analysed function-closure.
	ExternalCallSite Address = -1
	// ExternalReturnBlock stands in for the block a call returns into
	// when that block itself lies outside the analysed closure.
	ExternalReturnBlock Address = -2
	// virtualSuperExit only exists while computing post-dominators; it
	// is never a member of a CFG returned to callers.
	virtualSuperExit Address = -42
)

func key(a Address) string {
	return strconv.FormatInt(int64(a), 16)
}

func unkey(s string) (Address, error) {
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("graph: malformed node id %q: %w", s, err)
	}
	return Address(v), nil
}

// EdgeKind distinguishes the edge classes the base spec's data model
// names: intra-procedural fall-through/branch edges, inter-procedural
// call edges, and the synthetic return edges the reverse CFG inserts
// in their place.
type EdgeKind int

const (
	EdgeFallthrough EdgeKind = iota
	EdgeBranch
	EdgeCall
	EdgeReturn
)

// CFG is a directed control-flow graph over Address nodes, backed by an
// lvlath adjacency graph so reachability and shortest-path queries reuse
// a real graph library instead of a hand-rolled adjacency walk.
type CFG struct {
	mu    sync.RWMutex
	g     *core.Graph
	entry Address
	exits map[Address]struct{}
	funcs map[Address]string
}

// NewCFG creates an empty CFG rooted at entry.
func NewCFG(entry Address) *CFG {
	return &CFG{
		g:     core.NewGraph(core.WithDirected(true)),
		entry: entry,
		exits: map[Address]struct{}{},
		funcs: map[Address]string{},
	}
}

// AddNode registers a basic block, optionally tagging it with the
// enclosing function name (used by the CFG dump header and by
// ignore_functions filtering upstream in the static-analyzer adapter).
func (c *CFG) AddNode(addr Address, fn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.g.AddVertex(key(addr))
	if fn != "" {
		c.funcs[addr] = fn
	}
}

// AddEdge records a control-flow edge. Call edges are tracked so the
// reverse CFG can omit them per the base spec's data model.
func (c *CFG) AddEdge(from, to Address, kind EdgeKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.g.AddVertex(key(from))
	_ = c.g.AddVertex(key(to))
	if c.g.HasVertex(key(from)) {
		if _, err := c.g.AddEdge(key(from), key(to), int64(kind)); err != nil {
			// Multi-edges between the same two blocks (e.g. a block
			// that both falls through and branches to the same
			// target under different encodings) are not an error.
			return nil
		}
	}
	return nil
}

// MarkExit records addr as an exit point (a block ending in a return or
// a call to a non-returning function).
func (c *CFG) MarkExit(addr Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exits[addr] = struct{}{}
}

// Entry returns the CFG's entry point.
func (c *CFG) Entry() Address { return c.entry }

// ExitPoints returns the set of exit points, sorted for determinism.
func (c *CFG) ExitPoints() []Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Address, 0, len(c.exits))
	for a := range c.exits {
		out = append(out, a)
	}
	sortAddrs(out)
	return out
}

// HasNode reports whether addr is a node of the CFG.
func (c *CFG) HasNode(addr Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.g.HasVertex(key(addr))
}

// Nodes returns every node address, sorted for determinism.
func (c *CFG) Nodes() []Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.g.Vertices()
	out := make([]Address, 0, len(ids))
	for _, id := range ids {
		a, err := unkey(id)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	sortAddrs(out)
	return out
}

// FunctionOf returns the enclosing function name for addr, if known.
func (c *CFG) FunctionOf(addr Address) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[addr]
	return fn, ok
}

// Successors returns the out-edges of addr, filtered to edge kinds the
// caller asks for; pass nil to get every successor.
func (c *CFG) Successors(addr Address, kinds ...EdgeKind) []Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	edges, err := c.g.Neighbors(key(addr))
	if err != nil {
		return nil
	}
	allow := func(EdgeKind) bool { return true }
	if len(kinds) > 0 {
		set := map[EdgeKind]bool{}
		for _, k := range kinds {
			set[k] = true
		}
		allow = func(k EdgeKind) bool { return set[k] }
	}
	out := make([]Address, 0, len(edges))
	for _, e := range edges {
		if !allow(EdgeKind(e.Weight)) {
			continue
		}
		a, err := unkey(e.To)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	sortAddrs(out)
	return out
}

// BasicBlockAt returns the enclosing basic-block start for addr: addr
// itself if it already names a node, else the CFG has no opinion (the
// static-analyzer adapter is the authority on instruction-to-block
// mapping; the graph service only exposes the identity projection for
// addresses it already knows as block starts).
func (c *CFG) BasicBlockAt(addr Address) (Address, bool) {
	if c.HasNode(addr) {
		return addr, true
	}
	return 0, false
}

func sortAddrs(a []Address) {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
}
