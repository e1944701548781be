package engine

import (
	"fmt"

	"github.com/roach88/facet/internal/bank"
)

// FinalSnapshot is the immutable result of a finalized session. Its
// SnapshotHash covers the canonical JSON of every other field, so two
// snapshots with equal hashes are byte-identical under canonical
// marshalling.
type FinalSnapshot struct {
	SchemaVersion string                  `json:"schema_version"`
	EngineVersion string                  `json:"engine_version"`
	SessionID     string                  `json:"session_id"`
	BankHash      string                  `json:"bank_hash"`
	Profile       string                  `json:"profile"`
	Picks         []string                `json:"picks"`
	ScheduleLen   int                     `json:"schedule_len"`
	AnswerCount   int                     `json:"answer_count"`
	LineVerdicts  map[string]bank.LineCOF `json:"line_verdicts"`
	FaceStates    map[string]FaceState    `json:"face_states"`
	Faces         map[string]Evidence     `json:"faces"`
	FamilyReps    []FamilyRep             `json:"family_reps"`
	AnchorFamily  string                  `json:"anchor_family"`
	SnapshotHash  string                  `json:"snapshot_hash"`
}

// newFinalSnapshot assembles the snapshot for a completed session and
// seals it with its own hash.
func newFinalSnapshot(sess *Session, res finalResult) (*FinalSnapshot, error) {
	snap := &FinalSnapshot{
		SchemaVersion: bank.SchemaVersion,
		EngineVersion: bank.EngineVersion,
		SessionID:     sess.ID,
		BankHash:      sess.BankHash,
		Profile:       sess.Profile,
		Picks:         append([]string(nil), sess.Picks...),
		ScheduleLen:   len(sess.Schedule.Entries),
		AnswerCount:   sess.answerCount(),
		LineVerdicts:  res.LineVerdicts,
		FaceStates:    res.FaceStates,
		Faces:         res.FaceEvidence,
		FamilyReps:    res.FamilyReps,
		AnchorFamily:  res.AnchorFamily,
	}

	body, err := snap.canonicalBody()
	if err != nil {
		return nil, fmt.Errorf("assembling snapshot body: %w", err)
	}
	hash, err := bank.HashSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("hashing snapshot: %w", err)
	}
	snap.SnapshotHash = hash
	return snap, nil
}

// canonicalBody builds the hash preimage document: every snapshot field
// except snapshot_hash itself.
func (s *FinalSnapshot) canonicalBody() (bank.Object, error) {
	picks := make(bank.Array, len(s.Picks))
	for i, p := range s.Picks {
		picks[i] = bank.String(p)
	}

	verdicts := make(bank.Object, len(s.LineVerdicts))
	for fam, v := range s.LineVerdicts {
		verdicts[fam] = bank.String(v)
	}

	states := make(bank.Object, len(s.FaceStates))
	for id, st := range s.FaceStates {
		states[id] = bank.String(st)
	}

	faces := make(bank.Object, len(s.Faces))
	for id, ev := range s.Faces {
		faces[id] = evidenceObject(ev)
	}

	reps := make(bank.Array, len(s.FamilyReps))
	for i, rep := range s.FamilyReps {
		reps[i] = bank.Object{
			"family":     bank.String(rep.Family),
			"face_id":    bank.String(rep.FaceID),
			"state":      bank.String(rep.State),
			"co_present": bank.Bool(rep.CoPresent),
		}
	}

	return bank.Object{
		"schema_version": bank.String(s.SchemaVersion),
		"engine_version": bank.String(s.EngineVersion),
		"session_id":     bank.String(s.SessionID),
		"bank_hash":      bank.String(s.BankHash),
		"profile":        bank.String(s.Profile),
		"picks":          picks,
		"schedule_len":   bank.Int(int64(s.ScheduleLen)),
		"answer_count":   bank.Int(int64(s.AnswerCount)),
		"line_verdicts":  verdicts,
		"face_states":    states,
		"faces":          faces,
		"family_reps":    reps,
		"anchor_family":  bank.String(s.AnchorFamily),
	}, nil
}

// Document returns the full snapshot as a canonical-JSON-ready object,
// snapshot_hash included.
func (s *FinalSnapshot) Document() (bank.Object, error) {
	doc, err := s.canonicalBody()
	if err != nil {
		return nil, err
	}
	doc["snapshot_hash"] = bank.String(s.SnapshotHash)
	return doc, nil
}

// MarshalCanonical renders the snapshot as canonical JSON bytes,
// suitable for golden comparison and at-rest storage.
func (s *FinalSnapshot) MarshalCanonical() ([]byte, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	return bank.MarshalCanonical(doc)
}

func evidenceObject(ev Evidence) bank.Object {
	return bank.Object{
		"questions":  bank.Int(int64(ev.Questions)),
		"families":   bank.Int(int64(ev.Families)),
		"signature":  bank.Int(int64(ev.Signature)),
		"clean":      bank.Int(int64(ev.Clean)),
		"bent":       bank.Int(int64(ev.Bent)),
		"broken":     bank.Int(int64(ev.Broken)),
		"total":      bank.Int(int64(ev.Total)),
		"max_family": bank.Int(int64(ev.MaxFamily)),
		"contrast":   bank.Bool(ev.Contrast),
	}
}
