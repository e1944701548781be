package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario scripts one full session against a loaded bank and asserts
// on the resulting schedule, acks, and final snapshot.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name when Golden is set.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the session seed. Identical seeds against the same bank
	// and picks produce identical schedules.
	Seed string `yaml:"seed"`

	// Profile selects a constants profile from the bank.
	// Empty means the bank's default profile.
	Profile string `yaml:"profile,omitempty"`

	// Picks lists the families put on the short screen.
	// Empty means the zero-pick branch (every family on the long screen).
	Picks []string `yaml:"picks,omitempty"`

	// Answers scripts the submissions in order. Repeated qids are legal
	// and exercise the idempotency and replacement rules.
	Answers []AnswerStep `yaml:"answers"`

	// Assertions validate the schedule, the answer walk, and the snapshot.
	Assertions []Assertion `yaml:"assertions"`

	// Golden pins the canonical snapshot JSON against a golden file.
	Golden bool `yaml:"golden,omitempty"`
}

// AnswerStep scripts a single submission.
type AnswerStep struct {
	// QID is the question to answer.
	QID string `yaml:"qid"`

	// Option is the option key to submit.
	Option string `yaml:"option"`

	// ExpectError, when set, requires the submission to fail with this
	// engine error code (e.g. "E_QID_UNKNOWN"). The step then has no
	// ledger effect and does not count toward completion.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates one fact about the executed session.
type Assertion struct {
	// Type specifies the assertion type:
	// - "schedule_total": the schedule has exactly Count entries
	// - "answers_count": the walk left exactly Count questions answered
	// - "line_verdict": Family's line verdict equals Verdict (C/O/F)
	// - "face_state": Face's gated state equals State
	// - "anchor_family": the snapshot's anchor family equals Family
	// - "co_present": Family's representative co-presence flag equals Value
	// - "snapshot_hash": the snapshot hash equals Hash
	Type string `yaml:"type"`

	// Family names a family (line_verdict, anchor_family, co_present).
	Family string `yaml:"family,omitempty"`

	// Face names a face by ID (face_state).
	Face string `yaml:"face,omitempty"`

	// Verdict is the expected line verdict letter (line_verdict).
	Verdict string `yaml:"verdict,omitempty"`

	// State is the expected face state (face_state).
	State string `yaml:"state,omitempty"`

	// Value is the expected co-presence flag (co_present).
	Value *bool `yaml:"value,omitempty"`

	// Count is the expected total (schedule_total, answers_count).
	Count int `yaml:"count,omitempty"`

	// Hash is the expected snapshot hash (snapshot_hash).
	Hash string `yaml:"hash,omitempty"`
}

// Assertion type constants.
const (
	AssertScheduleTotal = "schedule_total"
	AssertAnswersCount  = "answers_count"
	AssertLineVerdict   = "line_verdict"
	AssertFaceState     = "face_state"
	AssertAnchorFamily  = "anchor_family"
	AssertCoPresent     = "co_present"
	AssertSnapshotHash  = "snapshot_hash"
)

var validVerdicts = map[string]bool{"C": true, "O": true, "F": true}

var validStates = map[string]bool{
	"LIT": true, "LEAN": true, "COLD": true, "GHOST": true, "ABSENT": true,
}

var validHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by file
// name for stable execution order. Scenario names must be unique within
// the directory.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".yaml" || filepath.Ext(entry.Name()) == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", path, s.Name, prev)
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Seed == "" {
		return fmt.Errorf("seed is required")
	}

	if len(s.Answers) == 0 {
		return fmt.Errorf("answers list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, fam := range s.Picks {
		if fam == "" {
			return fmt.Errorf("picks[%d]: family name must be non-empty", i)
		}
	}

	for i, step := range s.Answers {
		if step.QID == "" {
			return fmt.Errorf("answers[%d]: qid is required", i)
		}
		if step.Option == "" {
			return fmt.Errorf("answers[%d]: option is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertScheduleTotal, AssertAnswersCount:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive for %s", index, a.Type)
		}
	case AssertLineVerdict:
		if a.Family == "" {
			return fmt.Errorf("assertions[%d]: family is required for line_verdict", index)
		}
		if !validVerdicts[a.Verdict] {
			return fmt.Errorf("assertions[%d]: verdict must be C, O, or F, got %q", index, a.Verdict)
		}
	case AssertFaceState:
		if a.Face == "" {
			return fmt.Errorf("assertions[%d]: face is required for face_state", index)
		}
		if !validStates[a.State] {
			return fmt.Errorf("assertions[%d]: unknown face state %q", index, a.State)
		}
	case AssertAnchorFamily:
		if a.Family == "" {
			return fmt.Errorf("assertions[%d]: family is required for anchor_family", index)
		}
	case AssertCoPresent:
		if a.Family == "" {
			return fmt.Errorf("assertions[%d]: family is required for co_present", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for co_present", index)
		}
	case AssertSnapshotHash:
		if !validHash.MatchString(a.Hash) {
			return fmt.Errorf("assertions[%d]: hash must be 64 lowercase hex characters", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
