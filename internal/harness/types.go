package harness

import "github.com/roach88/facet/internal/engine"

// TraceEvent records one submission step for failure diagnostics.
// Accepted submissions carry the engine ack fields; rejected ones carry
// the engine error code instead.
type TraceEvent struct {
	QID         string `json:"qid"`
	OptionKey   string `json:"option_key"`
	Seq         int64  `json:"seq,omitempty"`
	AnswerCount int    `json:"answer_count,omitempty"`
	Credited    int    `json:"credited,omitempty"`
	Dropped     int    `json:"dropped,omitempty"`
	Replaced    bool   `json:"replaced,omitempty"`
	ErrCode     string `json:"err_code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True only if every step behaved as scripted and every assertion held.
	Pass bool `json:"pass"`

	// ScheduleLen is the session's scheduled question count.
	ScheduleLen int `json:"schedule_len"`

	// AnswerCount is the distinct-question answer count after the walk.
	AnswerCount int `json:"answer_count"`

	// Trace contains one event per scripted submission, in order.
	Trace []TraceEvent `json:"trace"`

	// Snapshot is the finalized session result. Nil when the walk left
	// the schedule incomplete.
	Snapshot *engine.FinalSnapshot `json:"snapshot,omitempty"`

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddAckTrace records an accepted submission.
func (r *Result) AddAckTrace(ack engine.Ack) {
	r.Trace = append(r.Trace, TraceEvent{
		QID:         ack.QID,
		OptionKey:   ack.OptionKey,
		Seq:         ack.Seq,
		AnswerCount: ack.AnswerCount,
		Credited:    ack.Credited,
		Dropped:     ack.Dropped,
		Replaced:    ack.Replaced,
	})
}

// AddErrorTrace records a rejected submission.
func (r *Result) AddErrorTrace(qid, optionKey string, code engine.ErrorCode) {
	r.Trace = append(r.Trace, TraceEvent{
		QID:       qid,
		OptionKey: optionKey,
		ErrCode:   string(code),
	})
}
