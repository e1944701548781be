package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/facet/internal/engine"
	"github.com/roach88/facet/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - detail view for one session
}

// SessionSummary is one row in the archive listing.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	Profile      string    `json:"profile"`
	Picks        []string  `json:"picks"`
	AnswerCount  int       `json:"answer_count"`
	SnapshotHash string    `json:"snapshot_hash"`
}

// SessionList holds the archive listing output.
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// AnswerRow is one submission in the session timeline.
type AnswerRow struct {
	Seq       int64  `json:"seq"`
	QID       string `json:"qid"`
	Option    string `json:"option"`
	Credited  int    `json:"credited"`
	Dropped   int    `json:"dropped,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// VerdictRow is one family's resolved line verdict.
type VerdictRow struct {
	Family  string `json:"family"`
	Verdict string `json:"verdict"`
	Anchor  bool   `json:"anchor,omitempty"`
}

// SessionDetail holds the full inspection view of one archived session.
type SessionDetail struct {
	SessionID    string            `json:"session_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Seed         string            `json:"seed"`
	BankHash     string            `json:"bank_hash"`
	Profile      string            `json:"profile"`
	Picks        []string          `json:"picks"`
	Timeline     []AnswerRow       `json:"timeline"`
	Verdicts     []VerdictRow      `json:"verdicts"`
	FaceStates   map[string]string `json:"face_states"`
	SnapshotHash string            `json:"snapshot_hash"`
	Snapshot     json.RawMessage   `json:"snapshot"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions, defaultDB string) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List and inspect archived sessions",
		Long: `List archived sessions, or inspect one session in detail.

Without --session, prints one line per archived session. With
--session, prints the session's metadata, its answer timeline in
submission order, the per-family verdicts, and the snapshot hash.

Examples:
  facet show --db ./facet.db
  facet show --db ./facet.db --session 0192c5e8-71f3-7a44-b0c1-8e1f2a3b4c5d
  facet show --db ./facet.db --session 0192c5e8-71f3-7a44-b0c1-8e1f2a3b4c5d --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB, "path to SQLite archive database (required)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "inspect a specific session")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "no archive database specified (use --db or FACET_DB)")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.SessionID != "" {
		return showSession(ctx, st, opts, cmd)
	}
	return listSessions(ctx, st, opts, cmd)
}

// listSessions prints one summary row per archived session.
func listSessions(ctx context.Context, st *store.Store, opts *ShowOptions, cmd *cobra.Command) error {
	ids, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	list := SessionList{
		Sessions: make([]SessionSummary, 0, len(ids)),
		Total:    len(ids),
	}
	for _, id := range ids {
		rec, err := st.ReadSession(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read session %s", id), err)
		}
		list.Sessions = append(list.Sessions, SessionSummary{
			SessionID:    rec.SessionID,
			CreatedAt:    rec.CreatedAt,
			Profile:      rec.Profile,
			Picks:        rec.Picks,
			AnswerCount:  len(rec.Answers),
			SnapshotHash: rec.Snapshot.SnapshotHash,
		})
	}

	if opts.Format == "json" {
		return outputShowJSON(cmd, list)
	}

	w := cmd.OutOrStdout()
	if list.Total == 0 {
		fmt.Fprintln(w, "No sessions found in archive.")
		return nil
	}

	fmt.Fprintf(w, "Archived Sessions: %d\n\n", list.Total)
	for _, s := range list.Sessions {
		fmt.Fprintf(w, "  %s\n", s.SessionID)
		fmt.Fprintf(w, "    created=%s profile=%s answers=%d picks=%s\n",
			s.CreatedAt.UTC().Format(time.RFC3339), s.Profile, s.AnswerCount, formatPicks(s.Picks))
		if opts.Verbose {
			fmt.Fprintf(w, "    snapshot=%s\n", s.SnapshotHash)
		}
	}
	return nil
}

// showSession prints the full inspection view of one archived session.
func showSession(ctx context.Context, st *store.Store, opts *ShowOptions, cmd *cobra.Command) error {
	rec, err := st.ReadSession(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	detail := buildSessionDetail(rec)

	if opts.Format == "json" {
		return outputShowJSON(cmd, detail)
	}
	return outputSessionText(cmd, detail, opts.Verbose)
}

// buildSessionDetail projects an archive record into the inspection view.
func buildSessionDetail(rec *engine.ArchiveRecord) SessionDetail {
	timeline := make([]AnswerRow, len(rec.Answers))
	for i, ans := range rec.Answers {
		timeline[i] = AnswerRow{
			Seq:       ans.Seq,
			QID:       ans.QID,
			Option:    ans.OptionKey,
			Credited:  ans.Credited,
			Dropped:   ans.Dropped,
			LatencyMS: ans.LatencyMS,
		}
	}

	snap := rec.Snapshot
	verdicts := make([]VerdictRow, 0, len(snap.LineVerdicts))
	for family, verdict := range snap.LineVerdicts {
		verdicts = append(verdicts, VerdictRow{
			Family:  family,
			Verdict: string(verdict),
			Anchor:  family == snap.AnchorFamily,
		})
	}
	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].Family < verdicts[j].Family })

	faceStates := make(map[string]string, len(snap.FaceStates))
	for faceID, state := range snap.FaceStates {
		faceStates[faceID] = string(state)
	}

	return SessionDetail{
		SessionID:    rec.SessionID,
		CreatedAt:    rec.CreatedAt,
		Seed:         rec.Seed,
		BankHash:     rec.BankHash,
		Profile:      rec.Profile,
		Picks:        rec.Picks,
		Timeline:     timeline,
		Verdicts:     verdicts,
		FaceStates:   faceStates,
		SnapshotHash: snap.SnapshotHash,
		Snapshot:     json.RawMessage(rec.SnapshotJSON),
	}
}

// outputShowJSON outputs a show result as JSON.
func outputShowJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputSessionText outputs the session detail as text.
func outputSessionText(cmd *cobra.Command, detail SessionDetail, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", detail.SessionID)
	fmt.Fprintf(w, "Created: %s\n", detail.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Profile: %s\n", detail.Profile)
	fmt.Fprintf(w, "Picks:   %s\n", formatPicks(detail.Picks))
	fmt.Fprintf(w, "Seed:    %s\n", detail.Seed)
	fmt.Fprintf(w, "Bank:    %s\n", detail.BankHash)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Answers ===")
	if len(detail.Timeline) == 0 {
		fmt.Fprintln(w, "  (no answers)")
	} else {
		for _, row := range detail.Timeline {
			formatAnswerRow(w, row, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Verdicts ===")
	for _, v := range detail.Verdicts {
		marker := ""
		if v.Anchor {
			marker = "  (anchor)"
		}
		fmt.Fprintf(w, "  %-14s %s%s\n", v.Family+":", v.Verdict, marker)
	}
	fmt.Fprintln(w)

	if verbose {
		fmt.Fprintln(w, "=== Faces ===")
		faceIDs := make([]string, 0, len(detail.FaceStates))
		for faceID := range detail.FaceStates {
			faceIDs = append(faceIDs, faceID)
		}
		sort.Strings(faceIDs)
		for _, faceID := range faceIDs {
			fmt.Fprintf(w, "  %-24s %s\n", faceID+":", detail.FaceStates[faceID])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Snapshot: %s\n", detail.SnapshotHash)
	return nil
}

// formatAnswerRow formats a single timeline row for text output.
func formatAnswerRow(w interface{ Write([]byte) (int, error) }, row AnswerRow, verbose bool) {
	extras := []string{fmt.Sprintf("credited %d", row.Credited)}
	if row.Dropped > 0 {
		extras = append(extras, fmt.Sprintf("dropped %d", row.Dropped))
	}
	if verbose && row.LatencyMS > 0 {
		extras = append(extras, fmt.Sprintf("%dms", row.LatencyMS))
	}
	fmt.Fprintf(w, "  [%d] %s %s  (%s)\n", row.Seq, row.QID, row.Option, strings.Join(extras, ", "))
}

// formatPicks renders a picks list for display.
func formatPicks(picks []string) string {
	if len(picks) == 0 {
		return "(none)"
	}
	return strings.Join(picks, ", ")
}
