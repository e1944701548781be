package testutil

import (
	"sync"
	"time"
)

// WallClock is a deterministic wall-clock source for tests.
//
// Each call to Now advances a fixed step from a fixed start, so answer
// timestamps are reproducible across runs. Inject via engine.WithNow.
// Timestamps are observational only and never influence scoring; the
// clock exists so archived rows and scenario output stay byte-stable.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type WallClock struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

// NewWallClock creates a clock starting at start, advancing by step on
// every Now call.
func NewWallClock(start time.Time, step time.Duration) *WallClock {
	return &WallClock{at: start, step: step}
}

// NewFixedWallClock creates a clock pinned to 2024-01-01T00:00:00Z,
// advancing one second per call.
func NewFixedWallClock() *WallClock {
	return NewWallClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

// Now returns the current instant and advances the clock.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.at
	c.at = c.at.Add(c.step)
	return now
}

// Reset rewinds the clock to start. After Reset the next Now call
// returns start again, enabling scenario reuse.
func (c *WallClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = start
}
