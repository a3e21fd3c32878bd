package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalProcess_SendInputBeforeWaitForInputRequestErrors(t *testing.T) {
	p := NewLocalProcess("cat", nil, nil)
	err := p.SendInput(context.Background(), []byte("x"))
	require.Error(t, err, "writing to a process that was never started must fail, not block")
}

func TestLocalProcess_StartsLazilyAndAcceptsInput(t *testing.T) {
	p := NewLocalProcess("cat", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.WaitForInputRequest(ctx))
	require.NoError(t, p.SendInput(ctx, []byte("hello\n")))
	require.NoError(t, p.Disconnect(ctx))
}

func TestLocalProcess_WaitForInputRequestIsIdempotentOnceStarted(t *testing.T) {
	p := NewLocalProcess("cat", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.WaitForInputRequest(ctx))
	require.NoError(t, p.WaitForInputRequest(ctx), "a second call after the SUT is already up is a no-op, not a restart")
	require.NoError(t, p.Disconnect(ctx))
}

func TestLocalProcess_DisconnectIsSafeToCallTwice(t *testing.T) {
	p := NewLocalProcess("cat", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.WaitForInputRequest(ctx))
	require.NoError(t, p.Disconnect(ctx))
	require.NoError(t, p.Disconnect(ctx), "disconnecting an already-stopped process must not error")
}

func TestLocalProcess_DisconnectInvokesResetCallback(t *testing.T) {
	called := false
	reset := func(ctx context.Context) error {
		called = true
		return nil
	}
	p := NewLocalProcess("cat", nil, reset)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.WaitForInputRequest(ctx))
	require.NoError(t, p.Disconnect(ctx))
	require.True(t, called, "reset_sut must run synchronously from inside Disconnect")
}

func TestLocalProcess_DisconnectSkipsResetWhenNeverStarted(t *testing.T) {
	called := false
	reset := func(ctx context.Context) error {
		called = true
		return nil
	}
	p := NewLocalProcess("cat", nil, reset)
	require.NoError(t, p.Disconnect(context.Background()))
	require.False(t, called, "a process that never started has nothing to reset")
}
