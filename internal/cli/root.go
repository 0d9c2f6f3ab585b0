// Package cli implements the canon command line: seed a world from CUE,
// apply patch batches, verify replay determinism, compute routes, and
// inspect the graph and ledger of a persisted session.
package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DBPath  string
}

// envDefaults are the environment-variable defaults for global flags.
type envDefaults struct {
	DB     string `env:"CANON_DB" envDefault:"canon.db"`
	Format string `env:"CANON_FORMAT" envDefault:"text"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the canon CLI.
func NewRootCommand() *cobra.Command {
	defaults := envDefaults{}
	if err := env.Parse(&defaults); err != nil {
		// Unparseable environment falls back to hard defaults.
		defaults = envDefaults{DB: "canon.db", Format: "text"}
	}

	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "canon",
		Short: "canon - a versioned world state engine",
		Long: "Maintains a world as an immutable entity-relation graph with an\n" +
			"append-only ledger of validated patches and knowledge-gated routing.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", defaults.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", defaults.DB, "path to the session database")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for a command invocation.
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
