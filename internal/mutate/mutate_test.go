package mutate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutate_EmptySeedReturnsUnchanged(t *testing.T) {
	d := NewDefaultSeeded(1)
	out := d.Mutate(nil)
	require.Empty(t, out)
}

func TestMutate_DoesNotModifySeedsBackingArray(t *testing.T) {
	d := NewDefaultSeeded(42)
	seed := []byte("AAAAAAAAAA")
	original := append([]byte(nil), seed...)

	for i := 0; i < 100; i++ {
		_ = d.Mutate(seed)
	}
	require.Equal(t, original, seed, "Mutate must never write through to the caller's seed slice")
}

func TestMutate_IsDeterministicGivenTheSameSeed(t *testing.T) {
	d1 := NewDefaultSeeded(7)
	d2 := NewDefaultSeeded(7)

	seed := []byte("deterministic-input")
	for i := 0; i < 20; i++ {
		require.Equal(t, d1.Mutate(seed), d2.Mutate(seed),
			"two mutators seeded identically must produce the same sequence of outputs")
	}
}

func TestMutate_DifferentSeedsEventuallyDiverge(t *testing.T) {
	d1 := NewDefaultSeeded(1)
	d2 := NewDefaultSeeded(2)

	seed := []byte("some reasonably long input to mutate")
	diverged := false
	for i := 0; i < 50; i++ {
		a := d1.Mutate(seed)
		b := d2.Mutate(seed)
		if string(a) != string(b) {
			diverged = true
			break
		}
	}
	require.True(t, diverged, "differently-seeded mutators should not produce identical output forever")
}

func TestMutate_SingleByteSeedNeverPanics(t *testing.T) {
	d := NewDefaultSeeded(3)
	seed := []byte("x")
	for i := 0; i < 200; i++ {
		require.NotPanics(t, func() {
			_ = d.Mutate(seed)
		})
	}
}

func TestMutate_OutputLengthStaysReasonable(t *testing.T) {
	d := NewDefaultSeeded(9)
	seed := []byte("abcdefgh")
	for i := 0; i < 200; i++ {
		out := d.Mutate(seed)
		require.LessOrEqual(t, len(out), len(seed)+1, "insertByte is the only operator that grows the buffer, by one byte")
		require.GreaterOrEqual(t, len(out), 1, "deleteByte refuses to shrink a buffer below length 1")
	}
}
