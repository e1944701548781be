package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/facet/internal/store"
)

// cleanWalkScenario scripts a full session against the demo bank: two
// picked families, every scheduled question answered with its clean
// option.
const cleanWalkScenario = `
name: cli_clean_walk
description: Two picked families answered clean end to end
seed: cli-seed-1
picks: [Control, Stress]
answers:
  - {qid: control_c, option: A}
  - {qid: control_o, option: A}
  - {qid: pace_c, option: A}
  - {qid: pace_o, option: A}
  - {qid: pace_f, option: A}
  - {qid: boundary_c, option: A}
  - {qid: boundary_o, option: A}
  - {qid: boundary_f, option: A}
  - {qid: truth_c, option: A}
  - {qid: truth_o, option: A}
  - {qid: truth_f, option: A}
  - {qid: recognition_c, option: A}
  - {qid: recognition_o, option: A}
  - {qid: recognition_f, option: A}
  - {qid: bonding_c, option: A}
  - {qid: bonding_o, option: A}
  - {qid: bonding_f, option: A}
  - {qid: stress_c, option: A}
  - {qid: stress_o, option: A}
assertions:
  - {type: schedule_total, count: 19}
  - {type: answers_count, count: 19}
  - {type: line_verdict, family: Control, verdict: C}
`

func writeRunScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCleanWalk(t *testing.T) {
	scenarioPath := writeRunScenario(t, cleanWalkScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{demoBankDir(), scenarioPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `✓ Scenario "cli_clean_walk" passed (19/19 answered)`)
	assert.Contains(t, output, "session:")
	// The canonical snapshot body follows the summary.
	assert.Contains(t, output, `"snapshot_hash"`)
	assert.NotContains(t, output, "archived: yes")
}

func TestRunCleanWalkJSON(t *testing.T) {
	scenarioPath := writeRunScenario(t, cleanWalkScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{demoBankDir(), scenarioPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cli_clean_walk", dataMap["scenario"])
	assert.Equal(t, true, dataMap["pass"])
	assert.Equal(t, float64(19), dataMap["schedule_len"])
	assert.Equal(t, float64(19), dataMap["answer_count"])

	sessionID, _ := dataMap["session_id"].(string)
	assert.NotEmpty(t, sessionID)

	// The embedded snapshot is the canonical document for this session.
	snapshot, ok := dataMap["snapshot"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, sessionID, snapshot["session_id"])
	verdicts, ok := snapshot["line_verdicts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "C", verdicts["Control"])
}

func TestRunArchivesSession(t *testing.T) {
	scenarioPath := writeRunScenario(t, cleanWalkScenario)
	dbPath := filepath.Join(t.TempDir(), "facet.db")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{demoBankDir(), scenarioPath, "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, dataMap["archived"])
	sessionID, _ := dataMap["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// The session must be readable back from the archive.
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	ok, err = st.HasSession(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := st.ReadSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "cli-seed-1", rec.Seed)
	assert.Len(t, rec.Answers, 19)
}

func TestRunSecondSessionContinuesSeq(t *testing.T) {
	scenarioPath := writeRunScenario(t, cleanWalkScenario)
	dbPath := filepath.Join(t.TempDir(), "facet.db")

	for i := 0; i < 2; i++ {
		cmd := NewRunCommand(&RootOptions{Format: "text"}, "")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{demoBankDir(), scenarioPath, "--db", dbPath})
		require.NoError(t, cmd.Execute())
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	ids, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// Both sessions share one logical clock: seqs never restart.
	maxSeq, err := st.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(38), maxSeq)
}

func TestRunFailingAssertion(t *testing.T) {
	failing := cleanWalkScenario + `  - {type: line_verdict, family: Stress, verdict: F}
`
	scenarioPath := writeRunScenario(t, failing)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{demoBankDir(), scenarioPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), `✗ Scenario "cli_clean_walk" failed:`)
	assert.Contains(t, buf.String(), "line_verdict")
}

func TestRunMissingScenarioFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{demoBankDir(), "/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeScenario)
}

func TestRunMissingBankDir(t *testing.T) {
	scenarioPath := writeRunScenario(t, cleanWalkScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"}, "")
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/bank", scenarioPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "not found")
}
