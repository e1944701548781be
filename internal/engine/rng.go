package engine

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/roach88/facet/internal/bank"
)

// Stream is the session-scoped deterministic random stream.
//
// The stream is keyed by SHA256(sessionSeed, bankHash, profile) with
// domain separation and produces values by hashing the key with a block
// counter (SHA-256 in counter mode). Identical inputs yield an identical
// draw sequence on every host, architecture, and Go release, which is
// what makes session replay byte-exact.
//
// CRITICAL: consumers must call exactly one draw per decision point and
// never reorder draws, otherwise replay diverges. The scheduler is the
// only production consumer; it performs a single shuffle per session.
//
// Stream is NOT safe for concurrent use. Each session owns one stream
// and the engine serializes access through the session lock.
type Stream struct {
	key     [32]byte
	counter uint64
	block   [sha256.Size]byte
	off     int
}

// NewStream creates a stream keyed from the session seed, the bank
// content hash, and the active constants profile name.
func NewStream(sessionSeed, bankHash, profile string) *Stream {
	return &Stream{
		key: bank.StreamSeed(sessionSeed, bankHash, profile),
		off: sha256.Size, // force refill on first draw
	}
}

// refill computes the next block: SHA256(key || counter) with the counter
// big-endian encoded, then advances the counter.
func (s *Stream) refill() {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], s.counter)

	h := sha256.New()
	h.Write(s.key[:])
	h.Write(ctr[:])
	copy(s.block[:], h.Sum(nil))

	s.counter++
	s.off = 0
}

// next64 consumes the next 8 bytes of the stream as a big-endian uint64.
func (s *Stream) next64() uint64 {
	if s.off+8 > sha256.Size {
		s.refill()
	}
	u := binary.BigEndian.Uint64(s.block[s.off:])
	s.off += 8
	return u
}

// Next returns the next value in [0, 1) with 53-bit resolution.
// One call consumes one draw.
func (s *Stream) Next() float64 {
	// Keep the top 53 bits: the largest mantissa a float64 represents
	// exactly, so the conversion is lossless and platform-independent.
	return float64(s.next64()>>11) / (1 << 53)
}

// Shuffle permutes seq in place with a Fisher-Yates walk driven by the
// stream. A length-n shuffle consumes exactly n-1 draws.
func Shuffle[T any](s *Stream, seq []T) {
	for i := len(seq) - 1; i > 0; i-- {
		j := int(s.Next() * float64(i+1))
		seq[i], seq[j] = seq[j], seq[i]
	}
}

// Sample returns n elements drawn without replacement, in draw order.
// The input is not mutated. Consumes exactly n draws. Panics if n is
// negative or exceeds len(seq); callers size their requests from the
// same bank data that sizes seq.
func Sample[T any](s *Stream, seq []T, n int) []T {
	if n < 0 || n > len(seq) {
		panic("Sample: n out of range")
	}

	pool := make([]T, len(seq))
	copy(pool, seq)

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		j := i + int(s.Next()*float64(len(pool)-i))
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, pool[i])
	}
	return out
}
