// Package vm manages the lifecycle of the virtual or containerized
// environment a SUT runs inside when target_mode is QEMU (the base
// spec's "optionally run under QEMU"). It is a sibling concern to
// internal/transport: vm brings the environment up and down, while
// transport exchanges bytes with whatever is running inside it.
package vm

import (
	"fmt"
	"os"
	"strings"

	"github.com/nxsec/bpfuzz/internal/exec"
)

// ExecutionResult holds the outcome of a command run inside the VM.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// VM defines the interface for a SUT sandbox manager.
type VM interface {
	// Create brings the environment up and returns once it is ready to
	// accept a debugger connection.
	Create() error
	// Run executes a command inside the environment, used for
	// provisioning steps (copying the binary in, chmod'ing a run
	// script) rather than for the fuzzed SUT itself.
	Run(binaryPath, runScriptPath string) (*ExecutionResult, error)
	// Stop tears the environment down.
	Stop() error
	// GDBAddress returns the host:port the environment's gdbstub
	// listens on, once Create has succeeded.
	GDBAddress() string
}

// QemuVM runs the SUT under QEMU's built-in gdbstub (`-s -S`), inside a
// Podman container so the host filesystem stays untouched. It is the
// concrete VM used for target_mode = QEMU.
type QemuVM struct {
	image       string
	qemuBinary  string
	qemuArgs    []string
	gdbPort     int
	executor    exec.Executor
	containerID string
	workDir     string
}

// NewQemuVM creates a new Podman-hosted QEMU sandbox. qemuArgs are the
// QEMU machine/kernel/drive arguments beyond `-s -S -nographic`; gdbPort
// is the TCP port QEMU's gdbstub is told to listen on.
func NewQemuVM(image, qemuBinary string, qemuArgs []string, gdbPort int, executor exec.Executor) *QemuVM {
	workDir, _ := os.Getwd()
	return &QemuVM{
		image:      image,
		qemuBinary: qemuBinary,
		qemuArgs:   qemuArgs,
		gdbPort:    gdbPort,
		executor:   executor,
		workDir:    workDir,
	}
}

// Create starts the container and launches QEMU inside it, paused at
// the reset vector and listening for a GDB/MI connection on gdbPort.
func (q *QemuVM) Create() error {
	mountArg := fmt.Sprintf("%s:/workspace", q.workDir)
	portArg := fmt.Sprintf("%d:%d", q.gdbPort, q.gdbPort)
	args := []string{"run", "-d", "--rm", "-v", mountArg, "-p", portArg, "-w", "/workspace", q.image, "sleep", "infinity"}
	res, err := q.executor.Run("podman", args...)
	if err != nil {
		return fmt.Errorf("vm: create podman container: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("vm: create podman container, exit code %d: %s", res.ExitCode, res.Stderr)
	}
	q.containerID = strings.TrimSpace(res.Stdout)

	qemuCmd := append([]string{"exec", "-d", q.containerID, q.qemuBinary,
		"-nographic", "-s", "-S",
		"-gdb", fmt.Sprintf("tcp::%d", q.gdbPort)}, q.qemuArgs...)
	res, err = q.executor.Run("podman", qemuCmd...)
	if err != nil {
		return fmt.Errorf("vm: launch qemu: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("vm: launch qemu, exit code %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// GDBAddress returns the loopback address the gdbstub listens on.
func (q *QemuVM) GDBAddress() string {
	return fmt.Sprintf("127.0.0.1:%d", q.gdbPort)
}

// Run executes a provisioning command inside the container.
func (q *QemuVM) Run(binaryPath, runScriptPath string) (*ExecutionResult, error) {
	if q.containerID == "" {
		return nil, fmt.Errorf("vm: not created, cannot run command")
	}
	chmodCmd := []string{"exec", q.containerID, "chmod", "+x", runScriptPath}
	if _, err := q.executor.Run("podman", chmodCmd...); err != nil {
		return nil, fmt.Errorf("vm: make run script executable: %w", err)
	}

	args := []string{"exec", q.containerID, runScriptPath}
	res, err := q.executor.Run("podman", args...)
	if err != nil {
		return nil, fmt.Errorf("vm: exec in podman: %w", err)
	}
	return &ExecutionResult{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}, nil
}

// Stop stops and removes the container. --rm handles container
// removal; QEMU dies with it.
func (q *QemuVM) Stop() error {
	if q.containerID == "" {
		return nil
	}
	_, err := q.executor.Run("podman", "stop", q.containerID)
	return err
}
