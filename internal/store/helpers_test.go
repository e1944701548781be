package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/engine"
)

// createTestStore creates a store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facet.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a structurally consistent archive record
// without running an engine. The snapshot body is the real canonical
// marshal of the snapshot, so ReadSession's consistency checks pass.
func createTestRecord(t *testing.T, sessionID string) *engine.ArchiveRecord {
	t.Helper()

	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	answers := []engine.ArchivedAnswer{
		{QID: "control_c", OptionKey: "A", Seq: 1, TS: base, LatencyMS: 1200, Credited: 1, Dropped: 0},
		{QID: "pace_c", OptionKey: "B", Seq: 2, TS: base.Add(3 * time.Second), LatencyMS: 2050, Credited: 1, Dropped: 0},
	}

	snap := &engine.FinalSnapshot{
		SchemaVersion: bank.SchemaVersion,
		EngineVersion: bank.EngineVersion,
		SessionID:     sessionID,
		BankHash:      "a1b2c3d4",
		Profile:       "default",
		Picks:         []string{"Control"},
		ScheduleLen:   2,
		AnswerCount:   2,
		LineVerdicts:  map[string]bank.LineCOF{"Control": bank.LineClean},
		FaceStates:    map[string]engine.FaceState{"Control.Sovereign": engine.FaceLean},
		Faces: map[string]engine.Evidence{
			"Control.Sovereign": {Questions: 2, Families: 2, Signature: 1, Clean: 2, Total: 2, MaxFamily: 1},
		},
		FamilyReps: []engine.FamilyRep{
			{Family: "Control", FaceID: "Control.Sovereign", State: engine.FaceLean},
		},
		AnchorFamily: "Control",
		SnapshotHash: "0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
	}
	body, err := snap.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}

	return &engine.ArchiveRecord{
		SessionID:    sessionID,
		Seed:         "seed-" + sessionID,
		BankHash:     "a1b2c3d4",
		Profile:      "default",
		Picks:        []string{"Control"},
		CreatedAt:    base.Add(-time.Minute),
		Answers:      answers,
		Snapshot:     snap,
		SnapshotJSON: body,
	}
}

// countRows returns the number of rows in a table.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
