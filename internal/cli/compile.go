package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// BankSummary holds the compiled bank's identity and shape.
type BankSummary struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Hash           string   `json:"hash"`
	Families       int      `json:"families"`
	Faces          int      `json:"faces"`
	Questions      int      `json:"questions"`
	Tells          int      `json:"tells"`
	Profiles       []string `json:"profiles"`
	DefaultProfile string   `json:"default_profile"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <bank-dir>",
		Short: "Compile a CUE question bank to canonical JSON",
		Long: `Compile a CUE question bank to its canonical JSON form.

The compiler parses the CUE files, validates the bank against the
instrument's structural invariants, seals it, and reports its content
hash. With --output the canonical JSON document (the hash preimage) is
written out for downstream signing pipelines.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path for canonical bank JSON")

	return cmd
}

func runCompile(opts *CompileOptions, bankDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Loading bank from %s", bankDir)

	pkg, err := compiler.LoadPackage(bankDir)
	if err != nil {
		code, message := classifyLoadError(err)
		_ = formatter.Error(code, message, nil)
		// Compilation errors are command-level errors (exit code 2)
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
	}

	formatter.VerboseLog("Bank %q sealed with hash %s", pkg.Name, pkg.Hash())

	summary := summarizeBank(pkg)

	// Write canonical JSON if --output specified
	if opts.Output != "" {
		if err := writeCanonicalBank(pkg, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWrite, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, summary, opts.Output)
}

// summarizeBank collects the counts and identity fields shown on success.
func summarizeBank(pkg *bank.Package) BankSummary {
	profiles := make([]string, len(pkg.Profiles))
	for i, p := range pkg.Profiles {
		profiles[i] = p.Name
	}
	return BankSummary{
		Name:           pkg.Name,
		Version:        pkg.Version,
		Hash:           pkg.Hash(),
		Families:       len(pkg.Families),
		Faces:          len(pkg.Faces),
		Questions:      len(pkg.Questions),
		Tells:          len(pkg.Tells),
		Profiles:       profiles,
		DefaultProfile: pkg.DefaultProfile,
	}
}

// classifyLoadError maps a load failure to a CLI error code and message.
// Validation failures keep their full per-violation listing in the
// message so authors see every defect in one pass.
func classifyLoadError(err error) (string, string) {
	var vf *compiler.ValidationFailure
	if errors.As(err, &vf) {
		return ErrCodeLoad, vf.Error()
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ErrCodeLoad, ce.Error()
	}
	if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not a directory") {
		return ErrCodeNotFound, err.Error()
	}
	return ErrCodeLoad, err.Error()
}

// writeCanonicalBank writes the bank's canonical JSON document to a file.
// This is the exact byte sequence the content hash covers.
func writeCanonicalBank(pkg *bank.Package, filename string) error {
	data, err := bank.MarshalCanonical(pkg.CanonicalDocument())
	if err != nil {
		return fmt.Errorf("marshaling bank: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, summary BankSummary, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled bank %q (%d families, %d faces, %d questions)\n",
		summary.Name, summary.Families, summary.Faces, summary.Questions)
	fmt.Fprintf(formatter.Writer, "  version:  %s\n", summary.Version)
	fmt.Fprintf(formatter.Writer, "  hash:     %s\n", summary.Hash)
	fmt.Fprintf(formatter.Writer, "  profiles: %s (default: %s)\n",
		strings.Join(summary.Profiles, ", "), summary.DefaultProfile)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical bank JSON to %s\n", outputFile)
	}

	return nil
}
