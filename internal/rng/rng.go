// Package rng implements the deterministic random source behind weekly quiz
// generation. Every cache layer and every request must derive the exact same
// question set for a given (week, language) key, so both the seed hash and
// the generator are fixed at the bit level: FNV-1a for seeding, 32-bit
// xorshift for the stream. Callers must consume the stream in a fixed,
// documented order or their outputs diverge.
package rng

const (
	fnvOffset32 = 0x811c9dc5
	fnvPrime32  = 0x01000193
)

// Seed hashes the UTF-8 bytes of key with 32-bit FNV-1a. A zero result is
// remapped to 1 because xorshift32 is degenerate at state zero.
func Seed(key string) uint32 {
	h := uint32(fnvOffset32)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime32
	}
	if h == 0 {
		return 1
	}
	return h
}

// Stream is a 32-bit xorshift generator producing floats in [0,1].
type Stream struct {
	state uint32
}

// NewStream returns a stream seeded with seed (zero is remapped to 1).
func NewStream(seed uint32) *Stream {
	if seed == 0 {
		seed = 1
	}
	return &Stream{state: seed}
}

// Float64 advances the generator and returns state / 0xffffffff.
func (s *Stream) Float64() float64 {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.state = x
	return float64(x) / float64(0xffffffff)
}

// Intn returns a value in [0,n) drawn from the stream. The stream's upper
// bound is inclusive, so the scaled index is clamped.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Shuffle runs a Fisher-Yates pass over n elements, consuming exactly n-1
// draws from the stream.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// ShuffleInts returns a shuffled copy of values.
func (s *Stream) ShuffleInts(values []int) []int {
	out := make([]int, len(values))
	copy(out, values)
	s.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
