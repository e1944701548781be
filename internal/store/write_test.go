package store

import (
	"context"
	"testing"
)

func TestArchiveSession_WritesAllRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord(t, "sess-write")
	if err := s.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession() failed: %v", err)
	}

	if got := countRows(t, s, "sessions"); got != 1 {
		t.Errorf("sessions rows = %d, want 1", got)
	}
	if got := countRows(t, s, "answers"); got != len(rec.Answers) {
		t.Errorf("answers rows = %d, want %d", got, len(rec.Answers))
	}
	if got := countRows(t, s, "snapshots"); got != 1 {
		t.Errorf("snapshots rows = %d, want 1", got)
	}
}

func TestArchiveSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord(t, "sess-idem")
	for i := 0; i < 3; i++ {
		if err := s.ArchiveSession(ctx, rec); err != nil {
			t.Fatalf("ArchiveSession() iteration %d failed: %v", i, err)
		}
	}

	if got := countRows(t, s, "sessions"); got != 1 {
		t.Errorf("sessions rows = %d, want 1 after repeated archives", got)
	}
	if got := countRows(t, s, "answers"); got != len(rec.Answers) {
		t.Errorf("answers rows = %d, want %d after repeated archives", got, len(rec.Answers))
	}
	if got := countRows(t, s, "snapshots"); got != 1 {
		t.Errorf("snapshots rows = %d, want 1 after repeated archives", got)
	}
}

func TestArchiveSession_IndependentSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"sess-a", "sess-b"} {
		if err := s.ArchiveSession(ctx, createTestRecord(t, id)); err != nil {
			t.Fatalf("ArchiveSession(%s) failed: %v", id, err)
		}
	}

	if got := countRows(t, s, "sessions"); got != 2 {
		t.Errorf("sessions rows = %d, want 2", got)
	}
}

func TestHasSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ok, err := s.HasSession(ctx, "sess-has")
	if err != nil {
		t.Fatalf("HasSession() failed: %v", err)
	}
	if ok {
		t.Error("HasSession() = true before archive")
	}

	if err := s.ArchiveSession(ctx, createTestRecord(t, "sess-has")); err != nil {
		t.Fatalf("ArchiveSession() failed: %v", err)
	}

	ok, err = s.HasSession(ctx, "sess-has")
	if err != nil {
		t.Fatalf("HasSession() failed: %v", err)
	}
	if !ok {
		t.Error("HasSession() = false after archive")
	}
}
