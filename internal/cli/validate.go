package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/seed"
)

// NewValidateCommand compiles a world definition without touching any
// database. It is the fast feedback loop for world authors.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <world.cue>",
		Short: "Check a world definition for errors",
		Long: `Validate compiles a CUE world definition and reports schema
violations, duplicate ids, and dangling relation endpoints. The
database is not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			source, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("read %s", args[0]), err)
			}

			world, err := seed.Compile(string(source))
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("invalid world %s", args[0]), err)
			}

			return out.Successf(map[string]any{
				"name":      world.Name,
				"entities":  len(world.Entities),
				"relations": len(world.Relations),
			}, "world %q is valid: %d entities, %d relations",
				world.Name, len(world.Entities), len(world.Relations))
		},
	}
	return cmd
}
