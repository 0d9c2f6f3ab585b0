package harness

import (
	"fmt"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// assert checks one final-state assertion against the run result.
func assert(res *Result, a Assertion) error {
	g := res.Session.Graph()

	switch a.Type {
	case "entity_prop":
		e, ok := g.GetEntity(a.Entity)
		if !ok {
			return fmt.Errorf("entity %q not found", a.Entity)
		}
		got, ok := e.Props[a.Field]
		if !ok {
			return fmt.Errorf("entity %q has no field %q", a.Entity, a.Field)
		}
		want, err := prop.FromGo(normalizeYAML(a.Value))
		if err != nil {
			return fmt.Errorf("expected value: %w", err)
		}
		if !prop.Equal(got, want) {
			return fmt.Errorf("entity %q field %q: got %v, want %v", a.Entity, a.Field, got, want)
		}
		return nil

	case "entity_missing":
		if _, ok := g.GetEntity(a.Entity); ok {
			return fmt.Errorf("entity %q should not exist", a.Entity)
		}
		return nil

	case "entity_count":
		if got := g.EntityCount(); got != a.Count {
			return fmt.Errorf("entity count: got %d, want %d", got, a.Count)
		}
		return nil

	case "relation_count":
		if got := g.RelationCount(); got != a.Count {
			return fmt.Errorf("relation count: got %d, want %d", got, a.Count)
		}
		return nil

	case "ledger_len":
		if got := res.Session.Ledger().Len(); got != a.Count {
			return fmt.Errorf("ledger length: got %d, want %d", got, a.Count)
		}
		return nil

	case "replay_matches":
		replayed, err := res.Session.Ledger().Replay(graph.New(), canon.ApplyPatch)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		if !graph.Equal(replayed, g) {
			return fmt.Errorf("replayed graph diverges from session graph")
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
