// Package store provides SQLite-backed durable storage for finalized
// assessment sessions.
//
// The archive is an append-only record of completed sessions:
//   - Sessions: identity, seed, bank hash, profile, and picks
//   - Answers: final per-question answers in submission order
//   - Snapshots: the canonical result document and its hash
//
// Live sessions never touch the archive; the engine writes through
// exactly once at finalize time, and retries are absorbed by
// idempotent inserts (ON CONFLICT DO NOTHING inside one transaction).
//
// Reads are deterministic (ORDER BY seq ASC, qid ASC), which is what
// ReplaySession depends on: re-running the archived answer log against
// the same bank re-derives a byte-identical snapshot, and VerifySession
// turns that property into a tamper and drift check.
package store
