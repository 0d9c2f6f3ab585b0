package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/prop"
	"github.com/ashgale/canon/internal/travel"
)

// NewRouteCommand computes a route between two locations, optionally
// committing the move to the ledger.
func NewRouteCommand(opts *RootOptions) *cobra.Command {
	var (
		actor     string
		transport string
		weather   string
		stamina   float64
		health    float64
		move      bool
	)

	cmd := &cobra.Command{
		Use:   "route <from> <to>",
		Short: "Compute a route between two locations",
		Long: `Route computes a path between two locations using the containment
hierarchy and explicit connections. With --actor the computation is
gated on that actor's discovered entities and the actor's stamina and
health feed the cost model; without it the full graph is visible.
--move commits the arrival as a ledger entry.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			if move && actor == "" {
				return NewExitError(ExitCommandError, "--move requires --actor")
			}

			state, err := openSession(opts.DBPath, true)
			if err != nil {
				return err
			}
			defer state.close()

			prefs := travel.Preferences{
				Transport: transport,
				Weather:   weather,
				Stamina:   stamina,
				Health:    health,
			}
			if actor != "" {
				if ent, ok := state.session.Graph().GetEntity(actor); ok {
					if prefs.Stamina == 0 {
						if v, ok := prop.Number(ent.Props["stamina"]); ok {
							prefs.Stamina = v
						}
					}
					if prefs.Health == 0 {
						if v, ok := prop.Number(ent.Props["health"]); ok {
							prefs.Health = v
						}
					}
				}
			}

			engine := travel.NewEngine(travelConfig())
			result := engine.CalculateRoute(cmd.Context(), state.session.Graph(),
				state.viewFor(actor), args[0], args[1], prefs)

			if !result.Success {
				out.Error("NO_ROUTE", fmt.Sprintf("%s to %s: %s", args[0], args[1], result.Reason), nil)
				return NewExitError(ExitFailure, result.Reason)
			}

			data := map[string]any{
				"from":              result.From,
				"to":                result.To,
				"class":             string(result.Class),
				"segments":          result.Segments,
				"distance_m":        result.DistanceMeters,
				"estimated_minutes": result.EstimatedMinutes,
				"algorithm":         result.AlgorithmUsed,
			}

			if move {
				state.session.AdvanceTick()
				commit, err := state.session.Submit(travel.MovePatches(actor, result, actor), actor)
				if err != nil {
					var batch *canon.BatchError
					if errors.As(err, &batch) {
						return rejectionError(out, batch)
					}
					return WrapExitError(ExitCommandError, "commit move", err)
				}
				if err := state.save(cmd.Context()); err != nil {
					return err
				}
				data["move_entry_id"] = commit.Entry.ID
			}

			return out.Successf(data, "%s", renderRoute(result))
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "traveler entity id (gates knowledge, reads condition)")
	cmd.Flags().StringVar(&transport, "transport", "", "transport mode (walk, horse, ...)")
	cmd.Flags().StringVar(&weather, "weather", "", "weather tag (clear, rain, storm, ...)")
	cmd.Flags().Float64Var(&stamina, "stamina", 0, "override stamina 1-100")
	cmd.Flags().Float64Var(&health, "health", 0, "override health 1-100")
	cmd.Flags().BoolVar(&move, "move", false, "commit the move as a ledger entry")
	return cmd
}

// travelEnv exposes cost model tuning through the environment, so a
// campaign can slow walking down or grow the route cache without flags
// on every invocation.
type travelEnv struct {
	WalkSpeed float64 `env:"CANON_WALK_SPEED"`
	CacheSize int     `env:"CANON_ROUTE_CACHE"`
}

func travelConfig() travel.Config {
	cfg := travel.DefaultConfig()
	tuning := travelEnv{}
	if err := env.Parse(&tuning); err != nil {
		return cfg
	}
	if tuning.WalkSpeed > 0 {
		cfg.WalkSpeed = tuning.WalkSpeed
	}
	if tuning.CacheSize > 0 {
		cfg.CacheSize = tuning.CacheSize
	}
	return cfg
}

func renderRoute(r travel.RouteResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s -> %s: %.0f m, %.1f min (%s)",
		r.From, r.To, r.DistanceMeters, r.EstimatedMinutes, r.AlgorithmUsed)
	for _, seg := range r.Segments {
		fmt.Fprintf(&sb, "\n  %s -> %s [%s] %.0f m, %.1f min",
			seg.From, seg.To, seg.Kind, seg.DistanceMeters, seg.Minutes)
	}
	return sb.String()
}
