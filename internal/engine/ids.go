package engine

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates unique session IDs.
// Implemented by UUIDv7Generator (production) and FixedIDGenerator (tests).
type IDGenerator interface {
	NewSessionID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time, which is helpful when scanning an archive.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewSessionID creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedIDGenerator returns predetermined session IDs for testing and
// replay. Replay must mint the archived session's original ID so the
// recomputed snapshot hashes identically.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use via mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns IDs in order.
//
// Example:
//
//	gen := NewFixedIDGenerator("sess-1", "sess-2")
//	gen.NewSessionID() // "sess-1"
//	gen.NewSessionID() // "sess-2"
//	gen.NewSessionID() // panic: all IDs exhausted
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{
		ids: ids,
		idx: 0,
	}
}

// NewSessionID returns the next predetermined ID.
//
// Panics when all IDs are consumed. This is a fail-fast approach to catch
// test misconfiguration (a test opened more sessions than it declared).
func (g *FixedIDGenerator) NewSessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
