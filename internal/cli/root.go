package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// envDefaults carries environment overrides for flag defaults.
// Precedence: explicit flag > environment variable > baked-in default.
type envDefaults struct {
	Format   string `env:"FACET_FORMAT" envDefault:"text"`
	Verbose  bool   `env:"FACET_VERBOSE" envDefault:"false"`
	Database string `env:"FACET_DB"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the facet CLI.
func NewRootCommand() *cobra.Command {
	defaults := envDefaults{}
	if err := env.Parse(&defaults); err != nil {
		defaults = envDefaults{Format: "text"}
	}

	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "facet",
		Short: "Facet - deterministic assessment engine",
		Long: "Compile question banks, run scripted assessment sessions, and " +
			"verify archived results byte-for-byte.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", defaults.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", defaults.Format, "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts, defaults.Database))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewShowCommand(opts, defaults.Database))
	cmd.AddCommand(NewReplayCommand(opts, defaults.Database))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
