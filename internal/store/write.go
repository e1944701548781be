package store

import (
	"context"
	"fmt"

	"github.com/roach88/facet/internal/engine"
)

// Store satisfies the engine's archive hook.
var _ engine.Archiver = (*Store)(nil)

// ArchiveSession writes a finalized session, its answers, and its
// snapshot in a single transaction. Every insert uses ON CONFLICT DO
// NOTHING, so re-archiving the same session (the engine retries after
// a failed archive) is a silent no-op rather than an error.
//
// The transaction makes the archive crash-atomic: either the whole
// session lands or none of it does, never a session row without its
// snapshot.
func (s *Store) ArchiveSession(ctx context.Context, rec *engine.ArchiveRecord) error {
	picksJSON, err := marshalPicks(rec.Picks)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(session_id, seed, bank_hash, profile, picks, created_at, answer_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`,
		rec.SessionID,
		rec.Seed,
		rec.BankHash,
		rec.Profile,
		picksJSON,
		formatTS(rec.CreatedAt),
		len(rec.Answers),
	)
	if err != nil {
		return fmt.Errorf("archive session: insert session: %w", err)
	}

	for _, ans := range rec.Answers {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO answers
			(session_id, qid, option_key, seq, ts, latency_ms, credited, dropped)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			rec.SessionID,
			ans.QID,
			ans.OptionKey,
			ans.Seq,
			formatTS(ans.TS),
			ans.LatencyMS,
			ans.Credited,
			ans.Dropped,
		)
		if err != nil {
			return fmt.Errorf("archive session: insert answer %s: %w", ans.QID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(session_id, snapshot_hash, body)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`,
		rec.SessionID,
		rec.Snapshot.SnapshotHash,
		string(rec.SnapshotJSON),
	)
	if err != nil {
		return fmt.Errorf("archive session: insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive session: commit: %w", err)
	}

	return nil
}

// HasSession checks whether a session is already archived.
func (s *Store) HasSession(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return count > 0, nil
}
