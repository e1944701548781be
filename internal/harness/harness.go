package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/engine"
)

// Run executes a scenario against a sealed bank and returns the result.
//
// Each scenario runs a fresh engine with a fixed session ID derived from
// the scenario name, so the snapshot (session ID included) is byte-stable
// across runs and suitable for golden comparison.
//
// Run returns an error only for harness-level failures (bad bank, broken
// engine construction). Scripted-behavior mismatches and assertion
// failures land in Result.Errors with Pass false.
func Run(pkg *bank.Package, scenario *Scenario) (*Result, error) {
	opts := []engine.EngineOption{
		engine.WithIDGenerator(engine.NewFixedIDGenerator("scenario-" + scenario.Name)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.Profile != "" {
		opts = append(opts, engine.WithConstantsProfile(scenario.Profile))
	}

	eng, err := engine.New(pkg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return RunWith(eng, scenario)
}

// RunWith drives a caller-built engine through the scenario script. The
// CLI run command uses it to attach an archive store, a resumed clock,
// and live UUID session IDs; the engine must already carry the
// scenario's constants profile.
//
// Execution flow:
//  1. Init the session with the scenario seed, set the scripted picks
//  2. Submit each answer step, checking expect_error clauses
//  3. Finalize when the schedule is fully answered
//  4. Evaluate assertions against the schedule, acks, and snapshot
func RunWith(eng *engine.Engine, scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	result := NewResult()

	view, err := eng.InitSession(ctx, scenario.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}

	sched, err := eng.SetPicks(ctx, view.ID, scenario.Picks)
	if err != nil {
		result.AddError(fmt.Sprintf("picks %v rejected: %v", scenario.Picks, err))
		return finish(ctx, eng, view.ID, scenario, result)
	}
	result.ScheduleLen = len(sched.Entries)

	for i, step := range scenario.Answers {
		ack, err := eng.SubmitAnswer(ctx, view.ID, step.QID, step.Option, engine.SubmitOptions{})

		if step.ExpectError != "" {
			if err == nil {
				result.AddError(fmt.Sprintf(
					"answers[%d] (%s %s): expected error %s, submission succeeded",
					i, step.QID, step.Option, step.ExpectError))
				result.AddAckTrace(ack)
				continue
			}
			code := engine.CodeOf(err)
			if string(code) != step.ExpectError {
				result.AddError(fmt.Sprintf(
					"answers[%d] (%s %s): expected error %s, got %s: %v",
					i, step.QID, step.Option, step.ExpectError, code, err))
			}
			result.AddErrorTrace(step.QID, step.Option, code)
			continue
		}

		if err != nil {
			result.AddError(fmt.Sprintf(
				"answers[%d] (%s %s): unexpected error: %v",
				i, step.QID, step.Option, err))
			result.AddErrorTrace(step.QID, step.Option, engine.CodeOf(err))
			continue
		}
		result.AddAckTrace(ack)
	}

	return finish(ctx, eng, view.ID, scenario, result)
}

// finish reads back the session, finalizes it when complete, and
// evaluates the scenario's assertions.
func finish(ctx context.Context, eng *engine.Engine, sessionID string, scenario *Scenario, result *Result) (*Result, error) {
	info, err := eng.SessionInfo(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session info: %w", err)
	}
	result.AnswerCount = info.AnswerCount

	if result.ScheduleLen > 0 && info.AnswerCount == result.ScheduleLen {
		snap, err := eng.Finalize(ctx, sessionID)
		if err != nil {
			result.AddError(fmt.Sprintf("finalize failed: %v", err))
		} else {
			result.Snapshot = snap
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
