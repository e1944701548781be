package engine

import (
	"hash/fnv"
	"sync"
	"time"
)

// lockShardCount is fixed so a session always hashes to the same shard.
const lockShardCount = 16

// sessionLocks is a sharded registry of per-session exclusive locks.
//
// Each session owns a one-slot channel semaphore. Acquire sends into the
// channel (bounded by a timer); Release drains it. A waiter that times
// out gets E_LOCK_TIMEOUT and the holder keeps the lock - abandoned
// locks are never reclaimed, because reclamation cannot distinguish a
// dead holder from a slow one and would let two writers interleave on
// the same ledger.
//
// Thread-safe: all methods may be called from any goroutine.
type sessionLocks struct {
	shards [lockShardCount]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newSessionLocks() *sessionLocks {
	sl := &sessionLocks{}
	for i := range sl.shards {
		sl.shards[i].locks = make(map[string]chan struct{})
	}
	return sl
}

func (sl *sessionLocks) shard(sessionID string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &sl.shards[h.Sum32()%lockShardCount]
}

// Acquire blocks until the session's lock is held or the timeout
// elapses. Returns false on timeout. Lock entries live as long as the
// engine; the registry is bounded by the number of distinct sessions.
func (sl *sessionLocks) Acquire(sessionID string, timeout time.Duration) bool {
	sh := sl.shard(sessionID)

	sh.mu.Lock()
	sem, ok := sh.locks[sessionID]
	if !ok {
		sem = make(chan struct{}, 1)
		sh.locks[sessionID] = sem
	}
	sh.mu.Unlock()

	// Fast path: uncontended acquire without arming a timer.
	select {
	case sem <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Release frees the session's lock. Must only be called by the current
// holder; Acquire and Release pair on every engine exit path.
func (sl *sessionLocks) Release(sessionID string) {
	sh := sl.shard(sessionID)

	sh.mu.Lock()
	sem, ok := sh.locks[sessionID]
	sh.mu.Unlock()

	if !ok {
		return
	}
	select {
	case <-sem:
	default:
	}
}
