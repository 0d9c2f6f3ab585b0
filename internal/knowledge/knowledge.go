// Package knowledge defines what an actor is permitted to know about the
// world. The engine only ever reads a View; discovery itself is owned and
// mutated by the narrative layer.
package knowledge

import "sort"

// View gates graph visibility for one actor. Implementations must be safe
// for concurrent reads.
type View interface {
	// IsDiscovered reports whether the actor knows the entity exists.
	IsDiscovered(entityID string) bool
}

// Discoveries is the standard set-backed View. The zero value is unusable;
// use NewDiscoveries.
type Discoveries struct {
	known map[string]bool
}

// NewDiscoveries creates a view with the given entity ids already known.
func NewDiscoveries(ids ...string) *Discoveries {
	d := &Discoveries{known: make(map[string]bool, len(ids))}
	for _, id := range ids {
		d.known[id] = true
	}
	return d
}

// IsDiscovered implements View.
func (d *Discoveries) IsDiscovered(entityID string) bool {
	return d.known[entityID]
}

// Discover marks an entity as known. Called by the narrative layer, never
// by the engine.
func (d *Discoveries) Discover(entityID string) {
	d.known[entityID] = true
}

// Forget removes an entity from the known set.
func (d *Discoveries) Forget(entityID string) {
	delete(d.known, entityID)
}

// Len returns the number of discovered entities.
func (d *Discoveries) Len() int { return len(d.known) }

// IDs returns the discovered ids sorted, for stable persistence.
func (d *Discoveries) IDs() []string {
	out := make([]string, 0, len(d.known))
	for id := range d.known {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// All is a View that knows everything. Useful for admin tooling and tests.
type All struct{}

// IsDiscovered implements View; always true.
func (All) IsDiscovered(string) bool { return true }
