package engine

import "sync"

// SessionStore holds live sessions by ID. The engine serializes all
// mutation of a stored session through its session lock; the store
// itself only needs to make Put/Get safe to call concurrently.
type SessionStore interface {
	Put(sess *Session)
	Get(sessionID string) (*Session, bool)
	Len() int
}

// MemoryStore is the default in-process SessionStore.
//
// Thread-safe: all methods may be called from any goroutine. Sessions
// are never evicted; terminal sessions stay resident so repeated
// Finalize and Abort calls can return cached results.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Put registers a session, replacing any previous entry with the same ID.
func (m *MemoryStore) Put(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

// Get returns the session with the given ID.
func (m *MemoryStore) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
