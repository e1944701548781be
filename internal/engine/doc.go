// Package engine drives scored sessions of the facet instrument.
//
// The engine is the heart of facet - it schedules question screens,
// accumulates line and face evidence as answers arrive, and gates the
// final classification into an immutable snapshot.
//
// ARCHITECTURE:
//
// Synchronous Per-Session Core:
// The engine runs no goroutines of its own. Callers invoke operations
// directly; each operation takes the target session's exclusive lock,
// mutates under it, and releases on every exit path. Operations on
// different sessions never contend.
//
// Session Flow:
//  1. InitSession binds a seed, the bank hash, and a constants profile
//  2. SetPicks derives the schedule (the session's only use of the RNG)
//  3. NextQuestion / SubmitAnswer walk the schedule; the ledger updates
//     line state and credits face tells under the concentration cap
//  4. Reaching the scheduled count auto-transitions to FINALIZING
//  5. Finalize gates faces, settles verdicts, and seals the snapshot
//
// CRITICAL PATTERNS:
//
// Deterministic Scheduling:
// Every random decision draws from a SHA-256 counter stream keyed by
// (sessionSeed, bankHash, profile). Identical inputs replay to an
// identical schedule and an identical snapshot hash. Wall-clock time
// and session IDs never feed a scoring decision.
//
// Logical Clock:
// Answers are stamped with a monotonic seq from Clock.Next(). Ordering
// always uses seq or submission order, never timestamps.
//
// Integer Scoring:
// All thresholds and shares are integer comparisons (cross-multiplied
// percentages). No floats exist anywhere in ledger or snapshot state.
package engine
