package debugger

import (
	"context"
	"fmt"
)

// Factory constructs a Debugger for one SUT instance. It is called
// once per Orchestrator restart (4.G's RestartingSUT state), and once
// per candidate by the CFG-update sub-protocol, which gives every
// candidate its own debugger and transport.
type Factory func(ctx context.Context) (Debugger, error)

var registry = make(map[string]Factory)

// Register adds a Debugger factory under a target_mode name. Called
// from an adapter package's init(). This core ships with an empty
// registry: the SUTRunsOnHost, Hardware, and QEMU wire-protocol clients
// are all the external debugger collaborator named only by interface,
// so New returns a clear error until a caller links in and registers
// a real adapter.
func Register(targetMode string, factory Factory) {
	registry[targetMode] = factory
}

// New resolves target_mode to its registered factory and constructs a
// Debugger for a fresh SUT instance.
func New(ctx context.Context, targetMode string) (Debugger, error) {
	factory, ok := registry[targetMode]
	if !ok {
		return nil, fmt.Errorf("debugger: no adapter registered for target_mode %q; debugger clients for every target_mode are supplied externally and must call debugger.Register from their own init()", targetMode)
	}
	return factory(ctx)
}
