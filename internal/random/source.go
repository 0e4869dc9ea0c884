package random

import "math/rand/v2"

// Source is the pseudo-random stream consumed by the generators. For a fixed
// seed, the same sequence of calls yields the same sequence of values.
type Source interface {
	// Uniform100 returns a value uniformly distributed in [0, 100).
	Uniform100() float64
	// IntN returns a value uniformly distributed in [0, n). It panics if n <= 0.
	IntN(n int) int
	// Uint32 returns a uniformly distributed 32-bit value.
	Uint32() uint32
}

// PCG is a Source backed by the PCG generator from math/rand/v2.
type PCG struct {
	seed int64
	r    *rand.Rand
}

// NewPCG returns a deterministic source for seed.
func NewPCG(seed int64) *PCG {
	s := uint64(seed)
	return &PCG{
		seed: seed,
		r:    rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the seed the source was created with.
func (p *PCG) Seed() int64 { return p.seed }

// Uniform100 implements Source.
func (p *PCG) Uniform100() float64 { return p.r.Float64() * 100 }

// IntN implements Source.
func (p *PCG) IntN(n int) int { return p.r.IntN(n) }

// Uint32 implements Source.
func (p *PCG) Uint32() uint32 { return p.r.Uint32() }

// Draw returns the elements of pool in the order produced by drawing
// uniformly, without replacement, from the remaining elements. pool is not
// modified.
func Draw[T any](src Source, pool []T) []T {
	rest := make([]T, len(pool))
	copy(rest, pool)
	out := make([]T, 0, len(pool))
	for len(rest) > 0 {
		i := src.IntN(len(rest))
		out = append(out, rest[i])
		last := len(rest) - 1
		rest[i] = rest[last]
		rest = rest[:last]
	}
	return out
}
