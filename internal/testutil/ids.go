package testutil

// FixedSessionID generates the same session ID every time.
//
// This enables deterministic scenario execution and golden snapshot
// comparison: the same scenario with the same FixedSessionID produces
// byte-identical snapshots.
//
// Unlike engine.FixedIDGenerator, which returns IDs in sequence and
// exhausts, this generator never runs out. Use it for scenarios that
// create exactly one session.
//
// Thread-safety: FixedSessionID is stateless and safe for concurrent use.
type FixedSessionID struct {
	id string
}

// NewFixedSessionID creates a generator pinned to the given ID.
//
// If id is empty, NewSessionID returns "test-session-default".
func NewFixedSessionID(id string) *FixedSessionID {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionID{id: id}
}

// NewSessionID returns the fixed ID.
//
// Implements engine.IDGenerator.
func (g *FixedSessionID) NewSessionID() string {
	return g.id
}
