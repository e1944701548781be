package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full submission trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSubmission trace:\n")
		for i, event := range e.Trace {
			if event.ErrCode != "" {
				fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", i+1, event.QID, event.OptionKey, event.ErrCode)
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s %s (seq %d)\n", i+1, event.QID, event.OptionKey, event.Seq)
		}
	}

	return buf.String()
}

// assertScheduleTotal checks the session's schedule length.
func assertScheduleTotal(result *Result, assertion Assertion) error {
	if result.ScheduleLen != assertion.Count {
		return &AssertionError{
			Type:     AssertScheduleTotal,
			Expected: fmt.Sprintf("%d scheduled questions", assertion.Count),
			Actual:   fmt.Sprintf("%d scheduled questions", result.ScheduleLen),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertAnswersCount checks the distinct-question answer count after the
// walk. Repeats and replacements must not inflate it.
func assertAnswersCount(result *Result, assertion Assertion) error {
	if result.AnswerCount != assertion.Count {
		return &AssertionError{
			Type:     AssertAnswersCount,
			Expected: fmt.Sprintf("%d answered questions", assertion.Count),
			Actual:   fmt.Sprintf("%d answered questions", result.AnswerCount),
			Trace:    result.Trace,
		}
	}
	return nil
}

// requireSnapshot guards the snapshot-dependent assertion types.
func requireSnapshot(result *Result, assertionType string) (*engine.FinalSnapshot, error) {
	if result.Snapshot == nil {
		return nil, &AssertionError{
			Type:     assertionType,
			Expected: "a finalized session snapshot",
			Actual:   fmt.Sprintf("session not finalized (%d of %d answered)", result.AnswerCount, result.ScheduleLen),
			Trace:    result.Trace,
		}
	}
	return result.Snapshot, nil
}

// assertLineVerdict checks one family's collapsed line verdict.
func assertLineVerdict(result *Result, assertion Assertion) error {
	snap, err := requireSnapshot(result, AssertLineVerdict)
	if err != nil {
		return err
	}

	verdict, ok := snap.LineVerdicts[assertion.Family]
	if !ok {
		return &AssertionError{
			Type:     AssertLineVerdict,
			Expected: fmt.Sprintf("family %q in line verdicts", assertion.Family),
			Actual:   "family not present in snapshot",
			Trace:    result.Trace,
		}
	}
	if verdict != bank.LineCOF(assertion.Verdict) {
		return &AssertionError{
			Type:     AssertLineVerdict,
			Expected: fmt.Sprintf("family %q line verdict %s", assertion.Family, assertion.Verdict),
			Actual:   fmt.Sprintf("line verdict %s", verdict),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFaceState checks one face's gated classification.
func assertFaceState(result *Result, assertion Assertion) error {
	snap, err := requireSnapshot(result, AssertFaceState)
	if err != nil {
		return err
	}

	state, ok := snap.FaceStates[assertion.Face]
	if !ok {
		return &AssertionError{
			Type:     AssertFaceState,
			Expected: fmt.Sprintf("face %q in face states", assertion.Face),
			Actual:   "face not present in snapshot",
			Trace:    result.Trace,
		}
	}
	if state != engine.FaceState(assertion.State) {
		return &AssertionError{
			Type:     AssertFaceState,
			Expected: fmt.Sprintf("face %q state %s", assertion.Face, assertion.State),
			Actual:   fmt.Sprintf("state %s", state),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertAnchorFamily checks the snapshot's anchor family.
func assertAnchorFamily(result *Result, assertion Assertion) error {
	snap, err := requireSnapshot(result, AssertAnchorFamily)
	if err != nil {
		return err
	}

	if snap.AnchorFamily != assertion.Family {
		return &AssertionError{
			Type:     AssertAnchorFamily,
			Expected: fmt.Sprintf("anchor family %q", assertion.Family),
			Actual:   fmt.Sprintf("anchor family %q", snap.AnchorFamily),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCoPresent checks the co-presence flag on a family's
// representative.
func assertCoPresent(result *Result, assertion Assertion) error {
	snap, err := requireSnapshot(result, AssertCoPresent)
	if err != nil {
		return err
	}

	for _, rep := range snap.FamilyReps {
		if rep.Family != assertion.Family {
			continue
		}
		if rep.CoPresent != *assertion.Value {
			return &AssertionError{
				Type:     AssertCoPresent,
				Expected: fmt.Sprintf("family %q co_present %t", assertion.Family, *assertion.Value),
				Actual:   fmt.Sprintf("co_present %t", rep.CoPresent),
				Trace:    result.Trace,
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertCoPresent,
		Expected: fmt.Sprintf("family %q in family reps", assertion.Family),
		Actual:   "family not present in snapshot",
		Trace:    result.Trace,
	}
}

// assertSnapshotHash checks the snapshot's self-hash.
func assertSnapshotHash(result *Result, assertion Assertion) error {
	snap, err := requireSnapshot(result, AssertSnapshotHash)
	if err != nil {
		return err
	}

	if snap.SnapshotHash != assertion.Hash {
		return &AssertionError{
			Type:     AssertSnapshotHash,
			Expected: fmt.Sprintf("snapshot hash %s", assertion.Hash),
			Actual:   fmt.Sprintf("snapshot hash %s", snap.SnapshotHash),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertScheduleTotal:
			err = assertScheduleTotal(result, assertion)
		case AssertAnswersCount:
			err = assertAnswersCount(result, assertion)
		case AssertLineVerdict:
			err = assertLineVerdict(result, assertion)
		case AssertFaceState:
			err = assertFaceState(result, assertion)
		case AssertAnchorFamily:
			err = assertAnchorFamily(result, assertion)
		case AssertCoPresent:
			err = assertCoPresent(result, assertion)
		case AssertSnapshotHash:
			err = assertSnapshotHash(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
