package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/engine"
)

// ReplaySession re-runs an archived session from its seed and answer
// log through a fresh engine and returns the re-derived snapshot.
//
// The bank must be the exact bank the session ran against; the
// archived bank_hash is checked before any replay work starts. Given
// the same bank, seed, picks, and answers, the engine's determinism
// contract makes the re-derived snapshot byte-identical to the
// archived one under canonical marshalling.
func (s *Store) ReplaySession(ctx context.Context, sessionID string, pkg *bank.Package) (*engine.FinalSnapshot, error) {
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	if rec.BankHash != pkg.Hash() {
		return nil, fmt.Errorf("replay session %s: bank hash mismatch: archived %s, loaded %s",
			sessionID, rec.BankHash, pkg.Hash())
	}

	eng, err := engine.New(pkg,
		engine.WithConstantsProfile(rec.Profile),
		engine.WithIDGenerator(engine.NewFixedIDGenerator(sessionID)),
	)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	view, err := eng.InitSession(ctx, rec.Seed)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: init: %w", sessionID, err)
	}

	if _, err := eng.SetPicks(ctx, view.ID, rec.Picks); err != nil {
		return nil, fmt.Errorf("replay session %s: set picks: %w", sessionID, err)
	}

	for _, ans := range rec.Answers {
		_, err := eng.SubmitAnswer(ctx, view.ID, ans.QID, ans.OptionKey, engine.SubmitOptions{
			TS:        ans.TS,
			LatencyMS: ans.LatencyMS,
		})
		if err != nil {
			return nil, fmt.Errorf("replay session %s: submit %s: %w", sessionID, ans.QID, err)
		}
	}

	snap, err := eng.Finalize(ctx, view.ID)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: finalize: %w", sessionID, err)
	}

	return snap, nil
}

// ReplayReport compares an archived snapshot against its re-derived
// counterpart. Match is true only when both the hashes and the full
// canonical bodies agree.
type ReplayReport struct {
	SessionID    string
	ArchivedHash string
	ReplayedHash string
	AnswerCount  int
	Match        bool
}

// VerifySession replays an archived session and reports whether the
// re-derived snapshot matches the archived one. A mismatch means the
// archive was tampered with, the bank changed under its hash, or the
// engine lost determinism; all three deserve attention.
func (s *Store) VerifySession(ctx context.Context, sessionID string, pkg *bank.Package) (ReplayReport, error) {
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify session %s: %w", sessionID, err)
	}

	report := ReplayReport{
		SessionID:    sessionID,
		ArchivedHash: rec.Snapshot.SnapshotHash,
		AnswerCount:  len(rec.Answers),
	}

	snap, err := s.ReplaySession(ctx, sessionID, pkg)
	if err != nil {
		return report, err
	}
	report.ReplayedHash = snap.SnapshotHash

	body, err := snap.MarshalCanonical()
	if err != nil {
		return report, fmt.Errorf("verify session %s: %w", sessionID, err)
	}

	report.Match = report.ArchivedHash == report.ReplayedHash && bytes.Equal(body, rec.SnapshotJSON)
	return report, nil
}
