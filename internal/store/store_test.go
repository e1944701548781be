package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facet.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facet.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facet.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"sessions", "answers", "snapshots"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	path := "/nonexistent/dir/facet.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema tests

func TestSchema_SessionsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "sessions")
	expected := []string{
		"session_id", "seed", "bank_hash", "profile", "picks", "created_at", "answer_count",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("sessions table missing column %q", col)
		}
	}
}

func TestSchema_AnswersTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "answers")
	expected := []string{
		"session_id", "qid", "option_key", "seq", "ts", "latency_ms", "credited", "dropped",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("answers table missing column %q", col)
		}
	}
}

func TestSchema_SnapshotsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "snapshots")
	expected := []string{"session_id", "snapshot_hash", "body"}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("snapshots table missing column %q", col)
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	if !contains(getTableIndexes(t, s.db, "sessions"), "idx_sessions_bank_hash") {
		t.Error("sessions table missing index idx_sessions_bank_hash")
	}
	if !contains(getTableIndexes(t, s.db, "answers"), "idx_answers_session_seq") {
		t.Error("answers table missing index idx_answers_session_seq")
	}
	if !contains(getTableIndexes(t, s.db, "snapshots"), "idx_snapshots_hash") {
		t.Error("snapshots table missing index idx_snapshots_hash")
	}
}

func TestSchema_UserVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestConstraint_AnswersRequireSession(t *testing.T) {
	s := createTestStore(t)

	// Foreign keys are ON, so an answer without its session must fail.
	_, err := s.db.Exec(`
		INSERT INTO answers (session_id, qid, option_key, seq, ts, latency_ms, credited, dropped)
		VALUES ('ghost', 'control_c', 'A', 1, '2026-03-14T09:26:53Z', 0, 0, 0)
	`)
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

func TestConstraint_AnswersUniqueSeq(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, seed, bank_hash, profile, picks, created_at, answer_count)
		VALUES ('sess-1', 'seed', 'hash', 'default', '[]', '2026-03-14T09:00:00Z', 2)
	`)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO answers (session_id, qid, option_key, seq, ts, latency_ms, credited, dropped)
		VALUES ('sess-1', 'control_c', 'A', 7, '2026-03-14T09:26:53Z', 0, 0, 0)
	`)
	if err != nil {
		t.Fatalf("insert first answer: %v", err)
	}

	// Same seq for a different question violates UNIQUE(session_id, seq).
	_, err = s.db.Exec(`
		INSERT INTO answers (session_id, qid, option_key, seq, ts, latency_ms, credited, dropped)
		VALUES ('sess-1', 'pace_c', 'B', 7, '2026-03-14T09:26:54Z', 0, 0, 0)
	`)
	if err == nil {
		t.Error("expected unique constraint violation on (session_id, seq), got nil")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
