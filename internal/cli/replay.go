package cli

import (
	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// NewReplayCommand refolds the ledger from an empty graph and checks
// the result against the stored graph.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify the session replays deterministically",
		Long: `Replay folds the full ledger over an empty graph twice and compares
the result with the persisted graph and the head entry's hash. Any
divergence means the database was tampered with or a bug broke
determinism, and the command exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			state, err := openSession(opts.DBPath, true)
			if err != nil {
				return err
			}
			defer state.close()

			ledger := state.session.Ledger()
			replayed, err := ledger.VerifyReplay(graph.New())
			if err != nil {
				out.Error("REPLAY_DIVERGED", err.Error(), nil)
				return NewExitError(ExitFailure, "replay diverged")
			}

			if !graph.Equal(replayed, state.session.Graph()) {
				out.Error("REPLAY_DIVERGED", "replayed graph differs from the stored graph", nil)
				return NewExitError(ExitFailure, "replay diverged")
			}

			hash, err := prop.HashCanonical(prop.DomainGraph, replayed.CanonicalForm())
			if err != nil {
				return WrapExitError(ExitCommandError, "hash replayed graph", err)
			}

			return out.Successf(map[string]any{
				"entries":    ledger.Len(),
				"graph_hash": hash,
			}, "replay verified: %d entries, graph hash %s", ledger.Len(), hash)
		},
	}
	return cmd
}
