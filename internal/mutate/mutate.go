// Package mutate provides the byte-level seed mutator the corpus
// draws on to turn a baseline input into a new fuzz input (component
// 4.E). There is no LLM in this loop: mutation is the classic
// bit/byte-flip-and-splice family a breakpoint-driven coverage fuzzer
// uses to perturb raw bytes cheaply and often.
package mutate

import (
	"math/rand"
	"time"
)

// Mutator produces a new input derived from seed bytes. Implementations
// must not modify seed's backing array.
type Mutator interface {
	Mutate(seed []byte) []byte
}

// op is one mutation operator; each receives the rng and a
// freshly-copied buffer to edit in place, returning its (possibly
// resized) result.
type op func(rng *rand.Rand, buf []byte) []byte

// Default is the stock mutator: each call picks one operator uniformly
// at random and applies it once. It is deterministic given its rng, so
// tests can seed it for reproducible sequences.
type Default struct {
	rng *rand.Rand
	ops []op
}

// NewDefault creates a mutator seeded from the current time. Use
// NewDefaultSeeded in tests for reproducibility.
func NewDefault() *Default {
	return NewDefaultSeeded(time.Now().UnixNano())
}

// NewDefaultSeeded creates a mutator with an explicit seed.
func NewDefaultSeeded(seed int64) *Default {
	return &Default{
		rng: rand.New(rand.NewSource(seed)),
		ops: []op{flipBit, flipByte, arithByte, insertByte, deleteByte, spliceSelf},
	}
}

// Mutate returns a mutated copy of seed. An empty seed is returned
// unchanged: there is nothing to perturb.
func (d *Default) Mutate(seed []byte) []byte {
	if len(seed) == 0 {
		return seed
	}
	buf := make([]byte, len(seed))
	copy(buf, seed)
	return d.ops[d.rng.Intn(len(d.ops))](d.rng, buf)
}

func flipBit(rng *rand.Rand, buf []byte) []byte {
	i := rng.Intn(len(buf))
	bit := uint(rng.Intn(8))
	buf[i] ^= 1 << bit
	return buf
}

func flipByte(rng *rand.Rand, buf []byte) []byte {
	i := rng.Intn(len(buf))
	buf[i] = byte(rng.Intn(256))
	return buf
}

func arithByte(rng *rand.Rand, buf []byte) []byte {
	i := rng.Intn(len(buf))
	delta := byte(1 + rng.Intn(35))
	if rng.Intn(2) == 0 {
		buf[i] += delta
	} else {
		buf[i] -= delta
	}
	return buf
}

func insertByte(rng *rand.Rand, buf []byte) []byte {
	i := rng.Intn(len(buf) + 1)
	b := byte(rng.Intn(256))
	out := make([]byte, 0, len(buf)+1)
	out = append(out, buf[:i]...)
	out = append(out, b)
	out = append(out, buf[i:]...)
	return out
}

func deleteByte(rng *rand.Rand, buf []byte) []byte {
	if len(buf) <= 1 {
		return buf
	}
	i := rng.Intn(len(buf))
	return append(buf[:i], buf[i+1:]...)
}

// spliceSelf swaps a contiguous run within buf with another run of the
// same length elsewhere in buf, a cheap stand-in for splicing against a
// second corpus entry when none is supplied.
func spliceSelf(rng *rand.Rand, buf []byte) []byte {
	if len(buf) < 2 {
		return buf
	}
	n := 1 + rng.Intn(len(buf)/2+1)
	if n > len(buf) {
		n = len(buf)
	}
	a := rng.Intn(len(buf) - n + 1)
	b := rng.Intn(len(buf) - n + 1)
	src := make([]byte, n)
	copy(src, buf[a:a+n])
	copy(buf[b:b+n], src)
	return buf
}
