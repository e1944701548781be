package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/compiler"
)

// ValidationReport holds the outcome of validating a bank directory.
type ValidationReport struct {
	Bank   string                 `json:"bank"`
	Valid  bool                   `json:"valid"`
	Hash   string                 `json:"hash,omitempty"`
	Errors []bank.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <bank-dir>",
		Short: "Validate a question bank without emitting output",
		Long: `Validate a CUE question bank against the instrument's invariants.

Runs the same pipeline as the compile command but is meant for authoring
feedback: every schema violation is reported in one pass, each with a
stable E1xx code that bank tooling can act on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, bankDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating bank at %s", bankDir)

	pkg, err := compiler.LoadPackage(bankDir)
	if err != nil {
		// Schema violations mean the command ran fine and the bank is
		// defective: report every violation and exit 1.
		var vf *compiler.ValidationFailure
		if errors.As(err, &vf) {
			return outputValidationErrors(formatter, vf)
		}

		// CUE compile errors and infrastructure failures are command-level
		// errors (exit code 2).
		code, message := classifyLoadError(err)
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	return outputValidateSuccess(formatter, pkg)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, pkg *bank.Package) error {
	report := ValidationReport{Bank: pkg.Name, Valid: true, Hash: pkg.Hash()}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ Bank %q is valid\n", report.Bank)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", report.Hash)
	return nil
}

// outputValidationErrors outputs every schema violation in the bank.
func outputValidationErrors(formatter *OutputFormatter, vf *compiler.ValidationFailure) error {
	report := ValidationReport{Bank: vf.Bank, Valid: false, Errors: vf.Errors}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   report,
			Error: &CLIError{
				Code:    vf.Errors[0].Code,
				Message: vf.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (the bank is the problem)
		return NewExitError(ExitFailure, fmt.Sprintf("bank %q failed validation with %d error(s)", vf.Bank, len(vf.Errors)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ Bank %q failed validation with %d error(s)\n\n", vf.Bank, len(vf.Errors))
	for _, ve := range vf.Errors {
		fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", ve.Code, ve.Field, ve.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("bank %q failed validation with %d error(s)", vf.Bank, len(vf.Errors)))
}
