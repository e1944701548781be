package engine

import (
	"context"
	"time"
)

// ArchivedAnswer is the storable projection of one live answer: enough
// to replay the session and to audit what each submission earned.
type ArchivedAnswer struct {
	QID       string
	OptionKey string
	Seq       int64
	TS        time.Time
	LatencyMS int64
	Credited  int
	Dropped   int
}

// ArchiveRecord carries a finalized session to persistent storage.
// Answers are in submission order, which replay depends on.
type ArchiveRecord struct {
	SessionID    string
	Seed         string
	BankHash     string
	Profile      string
	Picks        []string
	CreatedAt    time.Time
	Answers      []ArchivedAnswer
	Snapshot     *FinalSnapshot
	SnapshotJSON []byte
}

// Archiver persists finalized sessions. ArchiveSession is called once
// per session after the snapshot is computed, outside any scoring path;
// an archive failure never invalidates the finalize result. A nil
// Archiver disables archival.
//
// Implementations must be safe for concurrent use.
type Archiver interface {
	ArchiveSession(ctx context.Context, rec *ArchiveRecord) error
}

// archiveRecord builds the persistence projection of a finalized
// session. Caller holds the session lock.
func archiveRecord(sess *Session, snap *FinalSnapshot) (*ArchiveRecord, error) {
	body, err := snap.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	ordered := sess.orderedAnswers()
	answers := make([]ArchivedAnswer, len(ordered))
	for i, ans := range ordered {
		answers[i] = ArchivedAnswer{
			QID:       ans.QID,
			OptionKey: ans.OptionKey,
			Seq:       ans.Seq,
			TS:        ans.TS,
			LatencyMS: ans.LatencyMS,
			Credited:  ans.Credited,
			Dropped:   ans.Dropped,
		}
	}

	return &ArchiveRecord{
		SessionID:    sess.ID,
		Seed:         sess.Seed,
		BankHash:     sess.BankHash,
		Profile:      sess.Profile,
		Picks:        append([]string(nil), sess.Picks...),
		CreatedAt:    sess.CreatedAt,
		Answers:      answers,
		Snapshot:     snap,
		SnapshotJSON: body,
	}, nil
}
