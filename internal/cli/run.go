package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/facet/internal/compiler"
	"github.com/roach88/facet/internal/engine"
	"github.com/roach88/facet/internal/harness"
	"github.com/roach88/facet/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunReport summarizes one scripted session run.
type RunReport struct {
	Scenario    string          `json:"scenario"`
	SessionID   string          `json:"session_id,omitempty"`
	Pass        bool            `json:"pass"`
	ScheduleLen int             `json:"schedule_len"`
	AnswerCount int             `json:"answer_count"`
	Archived    bool            `json:"archived"`
	Errors      []string        `json:"errors,omitempty"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions, defaultDB string) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <bank-dir> <scenario.yaml>",
		Short: "Run one scripted session against a bank",
		Long: `Run a scripted assessment session against a compiled bank.

The scenario file supplies the seed, picks, and answer script. The
session runs to completion, the final snapshot is printed, and with
--db the session is archived for later replay verification. Sessions
run under a live UUIDv7 session ID so archived IDs are unique per run.

Example:
  facet run ./banks/default ./scenarios/clean_walk.yaml
  facet run --db ./facet.db ./banks/default ./scenarios/clean_walk.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB, "path to SQLite archive database (optional)")

	return cmd
}

func runScenario(opts *RunOptions, bankDir, scenarioPath string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	slog.Info("loading bank", "dir", bankDir)
	pkg, err := compiler.LoadPackage(bankDir)
	if err != nil {
		code, message := classifyLoadError(err)
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, "loading bank", err)
	}
	slog.Info("bank sealed", "bank", pkg.Name, "hash", pkg.Hash())

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading scenario", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engOpts := []engine.EngineOption{
		engine.WithLogger(logger),
	}
	if scenario.Profile != "" {
		engOpts = append(engOpts, engine.WithConstantsProfile(scenario.Profile))
	}

	archived := false
	if opts.Database != "" {
		slog.Info("opening archive database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeArchive, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		// Resume the logical clock past the archive's highest seq so the
		// answer log stays one totally ordered stream across runs.
		maxSeq, err := st.MaxSeq(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeArchive, err.Error(), nil)
			return WrapExitError(ExitCommandError, "reading archive clock", err)
		}
		engOpts = append(engOpts,
			engine.WithArchiver(st),
			engine.WithClock(engine.NewClockAt(maxSeq)),
		)
		archived = true
	}

	eng, err := engine.New(pkg, engOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "building engine", err)
	}

	slog.Info("running scenario", "scenario", scenario.Name, "seed", scenario.Seed)
	result, err := harness.RunWith(eng, scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "running scenario", err)
	}

	report := RunReport{
		Scenario:    scenario.Name,
		Pass:        result.Pass,
		ScheduleLen: result.ScheduleLen,
		AnswerCount: result.AnswerCount,
		Archived:    archived && result.Snapshot != nil,
		Errors:      result.Errors,
	}
	if result.Snapshot != nil {
		report.SessionID = result.Snapshot.SessionID
		body, err := result.Snapshot.MarshalCanonical()
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "marshaling snapshot", err)
		}
		report.Snapshot = body
	}

	return outputRunReport(formatter, report)
}

// outputRunReport renders the run outcome and sets the exit code.
func outputRunReport(formatter *OutputFormatter, report RunReport) error {
	if formatter.Format == "json" {
		if report.Pass {
			return formatter.Success(report)
		}
		response := CLIResponse{
			Status: "error",
			Data:   report,
			Error: &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: fmt.Sprintf("scenario %q failed", report.Scenario),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", report.Scenario))
	}

	if report.Pass {
		fmt.Fprintf(formatter.Writer, "✓ Scenario %q passed (%d/%d answered)\n",
			report.Scenario, report.AnswerCount, report.ScheduleLen)
		if report.SessionID != "" {
			fmt.Fprintf(formatter.Writer, "  session: %s\n", report.SessionID)
		}
		if report.Archived {
			fmt.Fprintln(formatter.Writer, "  archived: yes")
		}
		if len(report.Snapshot) > 0 {
			fmt.Fprintf(formatter.Writer, "\n%s\n", report.Snapshot)
		}
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✗ Scenario %q failed:\n", report.Scenario)
	for _, msg := range report.Errors {
		fmt.Fprintf(formatter.Writer, "  - %s\n", msg)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", report.Scenario))
}
