package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/seed"
)

// NewSeedCommand compiles a world definition and commits it as the first
// ledger entry of a new session.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed <world.cue>",
		Short: "Create a session from a world definition",
		Long: `Seed compiles a CUE world definition, commits every entity and
relation as one atomic batch at tick 0, and saves the session to the
database. Initial knowledge comes from each entity's discovered_by
list. Seeding an already seeded database requires --force, which
starts the session over.`,
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

			if !force {
				if err := refuseExisting(opts.DBPath); err != nil {
					return err
				}
			} else {
				if err := removeExisting(opts.DBPath); err != nil {
					return err
				}
			}

			state, err := openSession(opts.DBPath, false)
			if err != nil {
				return err
			}
			defer state.close()

			result, err := state.session.Submit(world.PatchSet("seed"), "seed")
			if err != nil {
				var batch *canon.BatchError
				if errors.As(err, &batch) {
					return rejectionError(out, batch)
				}
				return WrapExitError(ExitCommandError, "commit seed batch", err)
			}

			for actor, ids := range world.Discoveries() {
				state.knowledge[actor] = knowledge.NewDiscoveries(ids...)
			}

			if err := state.save(cmd.Context()); err != nil {
				return err
			}

			out.VerboseLog("seeded %d entities, %d relations", len(world.Entities), len(world.Relations))
			return out.Successf(map[string]any{
				"world":      world.Name,
				"entry_id":   result.Entry.ID,
				"token":      result.Entry.Token,
				"graph_hash": result.Entry.GraphHash,
			}, "seeded world %q (entry %s)", world.Name, result.Entry.ID)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing session")
	return cmd
}

func refuseExisting(path string) error {
	state, err := openSession(path, false)
	if err != nil {
		return err
	}
	defer state.close()
	if !state.fresh {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("database %s already holds a session: use --force to replace it", path))
	}
	return nil
}

func removeExisting(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("remove %s", path), err)
	}
	return nil
}

// rejectionError reports a rejected batch and carries exit code 1.
func rejectionError(out *OutputFormatter, batch *canon.BatchError) error {
	details := make([]map[string]any, len(batch.Issues))
	for i, issue := range batch.Issues {
		details[i] = map[string]any{
			"index":  issue.Index,
			"code":   string(issue.Code),
			"reason": issue.Reason,
		}
	}
	out.Error("BATCH_REJECTED", "patch set rejected, nothing was applied", details)
	return NewExitError(ExitFailure, batch.Error())
}
