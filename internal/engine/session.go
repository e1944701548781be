package engine

import (
	"time"

	"github.com/roach88/facet/internal/bank"
)

// Phase is a session lifecycle state.
type Phase string

const (
	PhaseInit       Phase = "INIT"
	PhasePicked     Phase = "PICKED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhasePaused     Phase = "PAUSED"
	PhaseFinalizing Phase = "FINALIZING"
	PhaseFinalized  Phase = "FINALIZED"
	PhaseAborted    Phase = "ABORTED"
)

// phaseTransitions is the complete transition table. Anything not listed
// is illegal. FINALIZED and ABORTED are terminal.
var phaseTransitions = map[Phase]map[Phase]bool{
	PhaseInit:       {PhasePicked: true, PhaseAborted: true},
	PhasePicked:     {PhaseInProgress: true, PhaseAborted: true},
	PhaseInProgress: {PhasePaused: true, PhaseFinalizing: true, PhaseAborted: true},
	PhasePaused:     {PhaseInProgress: true, PhaseAborted: true},
	PhaseFinalizing: {PhaseFinalized: true, PhaseAborted: true},
	PhaseFinalized:  {},
	PhaseAborted:    {},
}

// canTransition reports whether from -> to is a legal phase change.
func canTransition(from, to Phase) bool {
	return phaseTransitions[from][to]
}

// terminal reports whether a phase admits no further transitions.
func (p Phase) terminal() bool {
	return len(phaseTransitions[p]) == 0
}

// Answer is one recorded submission. A replaced answer keeps its original
// slot (qid and submission order position) but carries the new option,
// the new seq, and recomputed credit counts.
type Answer struct {
	QID       string       `json:"qid"`
	Family    string       `json:"family"`
	OptionKey string       `json:"option_key"`
	Line      bank.LineCOF `json:"line"`
	Tells     []string     `json:"tells,omitempty"`
	Seq       int64        `json:"seq"`
	TS        time.Time    `json:"ts"`
	LatencyMS int64        `json:"latency_ms,omitempty"`
	Credited  int          `json:"credited"`
	Dropped   int          `json:"dropped"`
}

// Ack acknowledges an accepted submission. Resubmitting the same option
// for a qid returns the stored first-submission Ack unchanged; switching
// options returns a fresh Ack with Replaced set.
type Ack struct {
	SessionID   string `json:"session_id"`
	QID         string `json:"qid"`
	OptionKey   string `json:"option_key"`
	Seq         int64  `json:"seq"`
	AnswerCount int    `json:"answer_count"`
	Credited    int    `json:"credited"`
	Dropped     int    `json:"dropped"`
	Replaced    bool   `json:"replaced,omitempty"`
}

// SubmitOptions carries optional observational metadata for a submission.
// Neither field participates in ordering or scoring.
type SubmitOptions struct {
	// TS is the caller-observed submission time. Zero means "stamp with
	// the engine's time source".
	TS time.Time

	// LatencyMS is the caller-measured answer latency.
	LatencyMS int64
}

// Question is the presentation view of a scheduled question. It exposes
// prompt text and option keys only; lineCOF mappings and tells stay
// server-side.
type Question struct {
	QID         string           `json:"qid"`
	Family      string           `json:"family"`
	Probe       bank.Probe       `json:"probe"`
	ScreenIndex int              `json:"screen_index"`
	Text        string           `json:"text"`
	Options     []QuestionOption `json:"options"`
}

// QuestionOption is one selectable choice of a presentation Question.
type QuestionOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Session is the live state of one run of the instrument. All fields are
// owned by the engine and mutated only while holding the session lock;
// callers observe sessions through SessionView copies.
type Session struct {
	ID          string
	Seed        string
	BankHash    string
	Profile     string
	Phase       Phase
	AbortReason string
	Picks       []string
	Schedule    *Schedule
	CreatedAt   time.Time

	picksSet map[string]bool
	answers  map[string]*Answer
	order    []string // qids in first-submission order
	acks     map[string]Ack
	ledger   *Ledger
	snapshot *FinalSnapshot
	archived bool
}

// answerCount returns the number of distinct questions answered.
func (s *Session) answerCount() int {
	return len(s.answers)
}

// answer returns the live answer for qid, if any.
func (s *Session) answer(qid string) (*Answer, bool) {
	a, ok := s.answers[qid]
	return a, ok
}

// orderedAnswers returns the live answers in first-submission order.
// Replaced answers occupy their original position.
func (s *Session) orderedAnswers() []*Answer {
	out := make([]*Answer, 0, len(s.order))
	for _, qid := range s.order {
		out = append(out, s.answers[qid])
	}
	return out
}

// view snapshots the session for callers.
func (s *Session) view() SessionView {
	scheduleLen := 0
	if s.Schedule != nil {
		scheduleLen = len(s.Schedule.Entries)
	}
	picks := make([]string, len(s.Picks))
	copy(picks, s.Picks)

	return SessionView{
		ID:          s.ID,
		Phase:       s.Phase,
		BankHash:    s.BankHash,
		Profile:     s.Profile,
		Picks:       picks,
		ScheduleLen: scheduleLen,
		AnswerCount: s.answerCount(),
		AbortReason: s.AbortReason,
		CreatedAt:   s.CreatedAt,
	}
}

// SessionView is a read-only copy of a session's observable state.
type SessionView struct {
	ID          string    `json:"id"`
	Phase       Phase     `json:"phase"`
	BankHash    string    `json:"bank_hash"`
	Profile     string    `json:"profile"`
	Picks       []string  `json:"picks,omitempty"`
	ScheduleLen int       `json:"schedule_len"`
	AnswerCount int       `json:"answer_count"`
	AbortReason string    `json:"abort_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
