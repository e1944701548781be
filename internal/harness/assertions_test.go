package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/engine"
)

func boolPtr(b bool) *bool { return &b }

// finalizedResult builds a result with a hand-assembled snapshot so
// assertion evaluation can be tested without running a session.
func finalizedResult() *Result {
	r := NewResult()
	r.ScheduleLen = 19
	r.AnswerCount = 19
	r.Trace = []TraceEvent{
		{QID: "control_c", OptionKey: "A", Seq: 1, AnswerCount: 1, Credited: 2},
		{QID: "control_f", OptionKey: "A", ErrCode: "E_QID_UNKNOWN"},
	}
	r.Snapshot = &engine.FinalSnapshot{
		SessionID:   "scenario-sample",
		Profile:     "default",
		Picks:       []string{"Control", "Stress"},
		ScheduleLen: 19,
		AnswerCount: 19,
		LineVerdicts: map[string]bank.LineCOF{
			"Control": bank.LineClean,
			"Pace":    bank.LineBent,
		},
		FaceStates: map[string]engine.FaceState{
			"Control.Sovereign": engine.FaceLit,
			"Control.Rebel":     engine.FaceAbsent,
			"Pace.Visionary":    engine.FaceGhost,
		},
		FamilyReps: []engine.FamilyRep{
			{Family: "Control", FaceID: "Control.Sovereign", State: engine.FaceLit, CoPresent: false},
			{Family: "Pace", FaceID: "Pace.Visionary", State: engine.FaceGhost, CoPresent: true},
		},
		AnchorFamily: "Pace",
		SnapshotHash: strings.Repeat("ab", 32),
	}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := finalizedResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertScheduleTotal, Count: 19},
		{Type: AssertAnswersCount, Count: 19},
		{Type: AssertLineVerdict, Family: "Control", Verdict: "C"},
		{Type: AssertLineVerdict, Family: "Pace", Verdict: "O"},
		{Type: AssertFaceState, Face: "Control.Sovereign", State: "LIT"},
		{Type: AssertFaceState, Face: "Pace.Visionary", State: "GHOST"},
		{Type: AssertAnchorFamily, Family: "Pace"},
		{Type: AssertCoPresent, Family: "Control", Value: boolPtr(false)},
		{Type: AssertCoPresent, Family: "Pace", Value: boolPtr(true)},
		{Type: AssertSnapshotHash, Hash: strings.Repeat("ab", 32)},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "schedule total mismatch",
			assertion: Assertion{Type: AssertScheduleTotal, Count: 21},
			want:      []string{"21 scheduled questions", "19 scheduled questions"},
		},
		{
			name:      "answers count mismatch",
			assertion: Assertion{Type: AssertAnswersCount, Count: 18},
			want:      []string{"18 answered questions", "19 answered questions"},
		},
		{
			name:      "line verdict mismatch",
			assertion: Assertion{Type: AssertLineVerdict, Family: "Pace", Verdict: "C"},
			want:      []string{`family "Pace" line verdict C`, "line verdict O"},
		},
		{
			name:      "line verdict unknown family",
			assertion: Assertion{Type: AssertLineVerdict, Family: "Gravitas", Verdict: "C"},
			want:      []string{"family not present in snapshot"},
		},
		{
			name:      "face state mismatch",
			assertion: Assertion{Type: AssertFaceState, Face: "Control.Rebel", State: "LIT"},
			want:      []string{`face "Control.Rebel" state LIT`, "state ABSENT"},
		},
		{
			name:      "face state unknown face",
			assertion: Assertion{Type: AssertFaceState, Face: "Gravitas.Nobody", State: "LIT"},
			want:      []string{"face not present in snapshot"},
		},
		{
			name:      "anchor mismatch",
			assertion: Assertion{Type: AssertAnchorFamily, Family: "Control"},
			want:      []string{`anchor family "Control"`, `anchor family "Pace"`},
		},
		{
			name:      "co_present mismatch",
			assertion: Assertion{Type: AssertCoPresent, Family: "Pace", Value: boolPtr(false)},
			want:      []string{`family "Pace" co_present false`, "co_present true"},
		},
		{
			name:      "co_present unknown family",
			assertion: Assertion{Type: AssertCoPresent, Family: "Gravitas", Value: boolPtr(true)},
			want:      []string{"family not present in snapshot"},
		},
		{
			name:      "hash mismatch",
			assertion: Assertion{Type: AssertSnapshotHash, Hash: strings.Repeat("cd", 32)},
			want:      []string{"snapshot hash " + strings.Repeat("cd", 32), "snapshot hash " + strings.Repeat("ab", 32)},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_contains"},
			want:      []string{`unknown assertion type "trace_contains"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(finalizedResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			for _, fragment := range tt.want {
				assert.Contains(t, errs[0], fragment)
			}
		})
	}
}

func TestEvaluateAssertions_SnapshotRequired(t *testing.T) {
	result := finalizedResult()
	result.Snapshot = nil
	result.AnswerCount = 5

	snapshotTypes := []Assertion{
		{Type: AssertLineVerdict, Family: "Control", Verdict: "C"},
		{Type: AssertFaceState, Face: "Control.Sovereign", State: "LIT"},
		{Type: AssertAnchorFamily, Family: "Pace"},
		{Type: AssertCoPresent, Family: "Control", Value: boolPtr(false)},
		{Type: AssertSnapshotHash, Hash: strings.Repeat("ab", 32)},
	}
	errs := EvaluateAssertions(result, snapshotTypes)
	require.Len(t, errs, len(snapshotTypes))
	for _, msg := range errs {
		assert.Contains(t, msg, "session not finalized (5 of 19 answered)")
	}

	// Counts stay checkable without a snapshot.
	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertScheduleTotal, Count: 19},
		{Type: AssertAnswersCount, Count: 5},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	// Every failing assertion reports, not just the first.
	errs := EvaluateAssertions(finalizedResult(), []Assertion{
		{Type: AssertScheduleTotal, Count: 1},
		{Type: AssertAnswersCount, Count: 19},
		{Type: AssertAnchorFamily, Family: "Control"},
	})
	require.Len(t, errs, 2)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertAnswersCount,
		Expected: "19 answered questions",
		Actual:   "18 answered questions",
		Trace: []TraceEvent{
			{QID: "control_c", OptionKey: "A", Seq: 1},
			{QID: "control_f", OptionKey: "A", ErrCode: "E_QID_UNKNOWN"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: answers_count")
	assert.Contains(t, msg, "Expected: 19 answered questions")
	assert.Contains(t, msg, "Actual: 18 answered questions")
	assert.Contains(t, msg, "Submission trace:")
	assert.Contains(t, msg, "[1] control_c A (seq 1)")
	assert.Contains(t, msg, "[2] control_f A -> E_QID_UNKNOWN")
}

func TestAssertionError_NoTraceSection(t *testing.T) {
	err := &AssertionError{
		Type:     AssertScheduleTotal,
		Expected: "19 scheduled questions",
		Actual:   "0 scheduled questions",
	}
	assert.NotContains(t, err.Error(), "Submission trace:")
}
