package debugger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock is a scriptable Debugger used by orchestrator tests: callers
// queue StopEvents with Push and Mock replays them in order from
// WaitForStop, recording every command it receives.
type Mock struct {
	mu sync.Mutex

	events []StopEvent
	pc     uint64
	frames []StackFrame
	hits   []uint64

	nextBP BreakpointID
	active map[BreakpointID]uint64

	Connected bool
	Commands  []string
}

// NewMock creates an empty scriptable debugger.
func NewMock() *Mock {
	return &Mock{active: map[BreakpointID]uint64{}}
}

// Push appends a StopEvent to the script WaitForStop will replay.
func (m *Mock) Push(ev StopEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// SetPC sets the value ReadPC returns.
func (m *Mock) SetPC(pc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pc = pc
}

// SetFrames sets the value StackFrames returns.
func (m *Mock) SetFrames(frames []StackFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
}

// QueueAdditionalHit enqueues a PC onto the side-channel additional-hit
// queue that AdditionalHits drains.
func (m *Mock) QueueAdditionalHit(pc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, pc)
}

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, "connect")
	m.Connected = true
	return nil
}

func (m *Mock) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, "disconnect")
	m.Connected = false
	return nil
}

func (m *Mock) SetBreakpoint(ctx context.Context, addr uint64, hardware bool) (BreakpointID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBP++
	id := m.nextBP
	m.active[id] = addr
	m.Commands = append(m.Commands, "set_breakpoint")
	return id, nil
}

func (m *Mock) RemoveBreakpoint(ctx context.Context, id BreakpointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
	m.Commands = append(m.Commands, "remove_breakpoint")
	return nil
}

func (m *Mock) Continue(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, "continue")
	return nil
}

func (m *Mock) Interrupt(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, "interrupt")
	return nil
}

func (m *Mock) StepInstruction(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, "step_instruction")
	return nil
}

func (m *Mock) WaitForStop(ctx context.Context, timeout time.Duration) (StopEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return StopEvent{}, errors.New("debugger: mock script exhausted")
	}
	ev := m.events[0]
	m.events = m.events[1:]
	return ev, nil
}

func (m *Mock) ReadPC(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pc, nil
}

func (m *Mock) StackFrames(ctx context.Context) ([]StackFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames, nil
}

func (m *Mock) AdditionalHits() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := m.hits
	m.hits = nil
	return hits
}
