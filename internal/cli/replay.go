package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/compiler"
	"github.com/roach88/facet/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
}

// SessionReplayResult holds the replay verdict for a single session.
type SessionReplayResult struct {
	SessionID    string `json:"session_id"`
	ArchivedHash string `json:"archived_hash,omitempty"`
	ReplayedHash string `json:"replayed_hash,omitempty"`
	AnswerCount  int    `json:"answer_count"`
	Match        bool   `json:"match"`
	Error        string `json:"error,omitempty"`
}

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Sessions      []SessionReplayResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllMatch      bool                  `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions, defaultDB string) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <bank-dir>",
		Short: "Replay archived sessions and verify determinism",
		Long: `Replay archived sessions from their seed and answer log and verify
that the re-derived snapshot matches the archived one byte-for-byte.

A mismatch means the archive was altered, the bank changed under its
hash, or scoring lost determinism. The bank directory must hold the
exact bank the sessions ran against; sessions archived under a
different bank hash fail before any replay work starts.

Exit codes:
  0 - Every replayed session matches its archive
  1 - At least one session diverged or failed to replay
  2 - Command error (database not found, broken bank, etc.)

Examples:
  facet replay --db ./facet.db ./banks/default
  facet replay --db ./facet.db --session 0192c5e8 ./banks/default
  facet replay --db ./facet.db ./banks/default --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB, "path to SQLite archive database (required)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay a specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, bankDir string, cmd *cobra.Command) error {
	ctx := context.Background()

	// The flag default may come from FACET_DB, so requiredness is checked
	// here rather than with MarkFlagRequired.
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "no archive database specified (use --db or FACET_DB)")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	pkg, err := compiler.LoadPackage(bankDir)
	if err != nil {
		_, message := classifyLoadError(err)
		return NewExitError(ExitCommandError, message)
	}

	// Get sessions to verify
	var sessionIDs []string
	if opts.SessionID != "" {
		sessionIDs = []string{opts.SessionID}
	} else {
		sessionIDs, err = st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	if len(sessionIDs) == 0 {
		if opts.Format == "json" {
			result := ReplaySummary{
				Sessions:      []SessionReplayResult{},
				TotalSessions: 0,
				AllMatch:      true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in archive.")
		return nil
	}

	// Verify each session. A session that fails to replay is recorded as
	// a mismatch row rather than aborting the sweep, so one corrupt
	// session never hides the verdict on the rest.
	result := ReplaySummary{
		Sessions:      make([]SessionReplayResult, 0, len(sessionIDs)),
		TotalSessions: len(sessionIDs),
		AllMatch:      true,
	}

	for _, id := range sessionIDs {
		row := verifyOneSession(ctx, st, id, pkg)
		result.Sessions = append(result.Sessions, row)
		if !row.Match {
			result.AllMatch = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// verifyOneSession replays one archived session and reports the verdict.
func verifyOneSession(ctx context.Context, st *store.Store, sessionID string, pkg *bank.Package) SessionReplayResult {
	report, err := st.VerifySession(ctx, sessionID, pkg)
	if err != nil {
		return SessionReplayResult{
			SessionID:    sessionID,
			ArchivedHash: report.ArchivedHash,
			AnswerCount:  report.AnswerCount,
			Match:        false,
			Error:        err.Error(),
		}
	}
	return SessionReplayResult{
		SessionID:    report.SessionID,
		ArchivedHash: report.ArchivedHash,
		ReplayedHash: report.ReplayedHash,
		AnswerCount:  report.AnswerCount,
		Match:        report.Match,
	}
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplaySummary) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllMatch {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplaySummary, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, sess := range result.Sessions {
		status := "✓"
		if !sess.Match {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, sess.SessionID)

		if sess.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", sess.Error)
		} else if verbose {
			fmt.Fprintf(w, "  Answers:  %d\n", sess.AnswerCount)
			fmt.Fprintf(w, "  Archived: %s\n", sess.ArchivedHash)
			fmt.Fprintf(w, "  Replayed: %s\n", sess.ReplayedHash)
		} else {
			fmt.Fprintf(w, "  Answers: %d\n", sess.AnswerCount)
		}

		if !sess.Match && sess.Error == "" {
			fmt.Fprintln(w, "  Warning: replayed snapshot diverges from archive!")
		}
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "replay verification failed")
}
