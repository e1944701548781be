package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/facet/internal/engine"
)

// ReadSession retrieves an archived session with its answers and
// snapshot, reassembled into the record shape the engine archived.
// Returns sql.ErrNoRows if the session is not archived.
func (s *Store) ReadSession(ctx context.Context, sessionID string) (*engine.ArchiveRecord, error) {
	rec := &engine.ArchiveRecord{SessionID: sessionID}

	var picksJSON, createdAt string
	var answerCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT seed, bank_hash, profile, picks, created_at, answer_count
		FROM sessions
		WHERE session_id = ?
	`, sessionID).Scan(
		&rec.Seed, &rec.BankHash, &rec.Profile, &picksJSON, &createdAt, &answerCount,
	)
	if err != nil {
		return nil, err
	}

	if rec.Picks, err = unmarshalPicks(picksJSON); err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	if rec.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	if rec.Answers, err = s.ReadAnswers(ctx, sessionID); err != nil {
		return nil, err
	}
	if len(rec.Answers) != answerCount {
		return nil, fmt.Errorf("read session %s: %d answers archived, session row says %d",
			sessionID, len(rec.Answers), answerCount)
	}

	hash, body, err := s.ReadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec.SnapshotJSON = body

	snap := &engine.FinalSnapshot{}
	if err := json.Unmarshal(body, snap); err != nil {
		return nil, fmt.Errorf("read session %s: unmarshal snapshot: %w", sessionID, err)
	}
	if snap.SnapshotHash != hash {
		return nil, fmt.Errorf("read session %s: snapshot body hash %s, column says %s",
			sessionID, snap.SnapshotHash, hash)
	}
	rec.Snapshot = snap

	return rec, nil
}

// ReadAnswers returns a session's archived answers in submission
// order: ORDER BY seq ASC, qid ASC for deterministic replay.
//
// Returns an empty slice (not nil) if the session has no answers.
func (s *Store) ReadAnswers(ctx context.Context, sessionID string) ([]engine.ArchivedAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT qid, option_key, seq, ts, latency_ms, credited, dropped
		FROM answers
		WHERE session_id = ?
		ORDER BY seq ASC, qid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []engine.ArchivedAnswer
	for rows.Next() {
		var ans engine.ArchivedAnswer
		var ts string
		if err := rows.Scan(
			&ans.QID, &ans.OptionKey, &ans.Seq, &ts, &ans.LatencyMS, &ans.Credited, &ans.Dropped,
		); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if ans.TS, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("scan answer %s: %w", ans.QID, err)
		}
		answers = append(answers, ans)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}

	if answers == nil {
		answers = []engine.ArchivedAnswer{}
	}

	return answers, nil
}

// ReadSnapshot returns a session's archived snapshot hash and
// canonical body. Returns sql.ErrNoRows if no snapshot is archived.
func (s *Store) ReadSnapshot(ctx context.Context, sessionID string) (string, []byte, error) {
	var hash, body string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_hash, body
		FROM snapshots
		WHERE session_id = ?
	`, sessionID).Scan(&hash, &body)
	if err != nil {
		return "", nil, err
	}
	return hash, []byte(body), nil
}

// ListSessions returns all archived session IDs in lexical order.
// Used by replay tooling to enumerate the archive.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM sessions
		ORDER BY session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

// MaxSeq returns the highest answer seq in the archive. Used on
// restart to resume the logical clock past every archived submission.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM answers
	`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get max seq: %w", err)
	}
	return maxSeq, nil
}
