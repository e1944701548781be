// Package harness provides conformance testing for the session engine.
//
// The harness loads YAML scenarios, drives a real engine over a sealed
// bank, and validates schedules, acks, and final snapshots as executable
// contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: "session-seed"
//	profile: default
//	picks: [Control, Stress]
//	answers:
//	  - qid: control_c
//	    option: A
//	  - qid: control_f
//	    option: A
//	    expect_error: E_QID_UNKNOWN
//	assertions:
//	  - type: schedule_total
//	    count: 19
//	  - type: line_verdict
//	    family: Control
//	    verdict: C
//	  - type: face_state
//	    face: Control.Sovereign
//	    state: LIT
//	golden: true
//
// Unknown YAML fields are rejected, so typos fail loading instead of
// silently skipping a clause.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - schedule_total: the schedule has exactly count entries
//   - answers_count: the session ended with exactly count questions answered
//   - line_verdict: a family's line verdict is C, O, or F
//   - face_state: a face's gated state is LIT/LEAN/COLD/GHOST/ABSENT
//   - anchor_family: the snapshot names this anchor family
//   - co_present: a family representative's co-presence flag
//   - snapshot_hash: the snapshot's self-hash, pinned exactly
//
// # Deterministic Execution
//
// A scenario fully determines its session: the seed fixes the schedule
// shuffle, the scripted answers fix the ledger, and the session ID is
// derived from the scenario name. Identical runs therefore produce
// byte-identical canonical snapshots, which is what golden comparison
// relies on.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/clean_walk.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(pkg, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
