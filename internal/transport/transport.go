// Package transport defines the SUT Transport Adapter contract
// (component 4.D of the base spec) and a local-process implementation
// for the SUTRunsOnHost target mode. Hardware and QEMU transports are
// named only by this interface, as concrete I/O transports (serial,
// TCP, USB, FIFO, UNIX socket) are out of scope per section 1.
package transport

import "context"

// Transport is the contract the orchestrator consumes (4.D).
type Transport interface {
	// SendInput delivers the next fuzz input to the SUT.
	SendInput(ctx context.Context, data []byte) error

	// WaitForInputRequest blocks until the SUT is ready for its next
	// input, emitting exactly one request per call.
	WaitForInputRequest(ctx context.Context) error

	Disconnect(ctx context.Context) error
}

// ResetFunc is the caller-supplied callback a Transport invokes,
// synchronously, from inside itself, whenever it needs the SUT brought
// up fresh (4.D: "plus a caller-supplied reset_sut() callback").
type ResetFunc func(ctx context.Context) error
