package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/nxsec/bpfuzz/internal/logger"
)

// LocalProcess is a Transport for target_mode = SUTRunsOnHost: it owns
// a single long-lived child process, feeding it one input per
// WaitForInputRequest/SendInput round-trip over stdin, adapted from the
// exec.Executor process-lifecycle idiom already used elsewhere in this
// codebase (command + stdout/stderr capture), generalized here to a
// persistent process instead of a one-shot run.
type LocalProcess struct {
	mu      sync.Mutex
	path    string
	args    []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	reset   ResetFunc
	started bool
}

// NewLocalProcess creates a transport that runs path with args.
func NewLocalProcess(path string, args []string, reset ResetFunc) *LocalProcess {
	return &LocalProcess{path: path, args: args, reset: reset}
}

func (p *LocalProcess) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.path, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transport: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transport: start %s: %w", p.path, err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	return nil
}

// WaitForInputRequest brings the SUT up on first use (or after a
// reset), then treats process readiness as the input-request signal:
// a freshly started or freshly reset SUT is always ready for its first
// byte.
func (p *LocalProcess) WaitForInputRequest(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.start(ctx); err != nil {
		return err
	}
	logger.Debug("transport: local SUT %s started (pid %d)", p.path, p.cmd.Process.Pid)
	return nil
}

// SendInput writes data to the SUT's stdin.
func (p *LocalProcess) SendInput(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("transport: SendInput before WaitForInputRequest")
	}
	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("transport: write input: %w", err)
	}
	return nil
}

// Disconnect tears down the SUT process; it is safe to call more than
// once. The caller's ResetFunc, if any, is invoked afterward so the
// next WaitForInputRequest starts a clean instance.
func (p *LocalProcess) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	p.started = false
	if p.reset != nil {
		return p.reset(ctx)
	}
	return nil
}
