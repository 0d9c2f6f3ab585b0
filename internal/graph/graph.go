// Package graph implements the immutable entity-relation world graph.
//
// A Graph value is never mutated in place. Every mutation returns a new
// Graph; the receiver stays valid, which is what makes ledger replay and
// time-travel snapshots cheap and safe.
//
// # Soft failures
//
// Duplicate-id creates, missing-id updates/deletes, and dangling relation
// endpoints are soft failures: logged at Warn and returned as a no-op (the
// receiver itself). They never return errors and never panic. Batch-level
// rejection of such patches is the arbiter's job; the graph layer stays
// forgiving so replay of historical ledgers cannot wedge on them.
package graph

import (
	"log/slog"

	"github.com/ashgale/canon/internal/prop"
)

// Entity is one thing that exists in the world. Type is an open string tag
// (region, character, item, faction, event, ...); new tags require no code
// changes.
type Entity struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Name  string   `json:"name"`
	Props prop.Map `json:"props,omitempty"`
}

// Relation is a directed, typed edge between two entities.
// From and To must reference entities that exist at commit time.
type Relation struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Props prop.Map `json:"props,omitempty"`
}

// Graph holds entities and relations with derived traversal indices.
//
// INVARIANTS:
//   - entity and relation ids are unique
//   - no relation references a missing entity
//   - entityOrder/relationOrder track insertion order (deterministic
//     iteration and free-text query tiebreaks depend on it)
type Graph struct {
	entities  map[string]Entity
	relations map[string]Relation

	// Traversal indices: entity id -> relation ids, relation type -> relation ids.
	// Slices preserve insertion order.
	bySubject   map[string][]string
	byObject    map[string][]string
	byPredicate map[string][]string

	entityOrder   []string
	relationOrder []string

	log *slog.Logger
}

// New creates an empty graph.
func New() *Graph {
	return NewWithLogger(slog.Default())
}

// NewWithLogger creates an empty graph that reports soft failures to log.
func NewWithLogger(log *slog.Logger) *Graph {
	if log == nil {
		log = slog.Default()
	}
	return &Graph{
		entities:    map[string]Entity{},
		relations:   map[string]Relation{},
		bySubject:   map[string][]string{},
		byObject:    map[string][]string{},
		byPredicate: map[string][]string{},
		log:         log,
	}
}

// clone returns a deep-enough copy: maps and index slices are copied so the
// original cannot be affected by mutation of the copy. Entity/Relation
// values and their Props are shared until a mutating op replaces them.
func (g *Graph) clone() *Graph {
	out := &Graph{
		entities:      make(map[string]Entity, len(g.entities)),
		relations:     make(map[string]Relation, len(g.relations)),
		bySubject:     make(map[string][]string, len(g.bySubject)),
		byObject:      make(map[string][]string, len(g.byObject)),
		byPredicate:   make(map[string][]string, len(g.byPredicate)),
		entityOrder:   copyIDs(g.entityOrder),
		relationOrder: copyIDs(g.relationOrder),
		log:           g.log,
	}
	for id, e := range g.entities {
		out.entities[id] = e
	}
	for id, r := range g.relations {
		out.relations[id] = r
	}
	for k, ids := range g.bySubject {
		out.bySubject[k] = copyIDs(ids)
	}
	for k, ids := range g.byObject {
		out.byObject[k] = copyIDs(ids)
	}
	for k, ids := range g.byPredicate {
		out.byPredicate[k] = copyIDs(ids)
	}
	return out
}

// copyIDs copies a slice with exact capacity so a later append on the copy
// can never write into the original's backing array.
func copyIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// CreateEntity returns a new graph with e added.
// A colliding id is a soft failure: logged, receiver returned unchanged.
func (g *Graph) CreateEntity(e Entity) *Graph {
	if _, exists := g.entities[e.ID]; exists {
		g.log.Warn("create entity ignored: id exists", "id", e.ID)
		return g
	}
	out := g.clone()
	e.Props = e.Props.Clone()
	out.entities[e.ID] = e
	out.entityOrder = append(out.entityOrder, e.ID)
	return out
}

// GetEntity returns the entity and whether it exists. O(1).
// The returned entity's Props must be treated as read-only.
func (g *Graph) GetEntity(id string) (Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// UpdateEntity shallow-merges partial into the entity's property map and
// returns the new graph. A missing id is a soft failure (logged no-op).
func (g *Graph) UpdateEntity(id string, partial prop.Map) *Graph {
	e, ok := g.entities[id]
	if !ok {
		g.log.Warn("update entity ignored: not found", "id", id)
		return g
	}
	out := g.clone()
	merged := e.Props.Clone()
	if merged == nil {
		merged = prop.Map{}
	}
	for k, v := range partial {
		merged[k] = v
	}
	e.Props = merged
	out.entities[id] = e
	return out
}

// SetEntityProp sets a single property and returns the new graph.
func (g *Graph) SetEntityProp(id, key string, v prop.Value) *Graph {
	return g.UpdateEntity(id, prop.Map{key: v})
}

// RemoveEntityProp deletes a single property key and returns the new graph.
// Missing entity or missing key is a no-op.
func (g *Graph) RemoveEntityProp(id, key string) *Graph {
	e, ok := g.entities[id]
	if !ok {
		g.log.Warn("remove property ignored: entity not found", "id", id)
		return g
	}
	if _, has := e.Props[key]; !has {
		return g
	}
	out := g.clone()
	pruned := e.Props.Clone()
	delete(pruned, key)
	e.Props = pruned
	out.entities[id] = e
	return out
}

// DeleteEntity removes the entity and cascades removal of every relation
// where it appears as From or To, all in the same returned graph.
// Deleting a missing id is an idempotent no-op.
func (g *Graph) DeleteEntity(id string) *Graph {
	if _, ok := g.entities[id]; !ok {
		return g
	}
	out := g.clone()
	delete(out.entities, id)
	out.entityOrder = removeID(out.entityOrder, id)

	// Cascade: collect from both directions, then drop each once.
	seen := map[string]bool{}
	for _, rid := range g.bySubject[id] {
		seen[rid] = true
	}
	for _, rid := range g.byObject[id] {
		seen[rid] = true
	}
	for rid := range seen {
		out.removeRelationInPlace(rid)
	}
	return out
}

// CreateRelation returns a new graph with r added. Soft failures: a
// colliding relation id or a dangling endpoint is logged and returns the
// receiver unchanged.
func (g *Graph) CreateRelation(r Relation) *Graph {
	if _, exists := g.relations[r.ID]; exists {
		g.log.Warn("create relation ignored: id exists", "id", r.ID)
		return g
	}
	if _, ok := g.entities[r.From]; !ok {
		g.log.Warn("create relation ignored: from endpoint missing", "id", r.ID, "from", r.From)
		return g
	}
	if _, ok := g.entities[r.To]; !ok {
		g.log.Warn("create relation ignored: to endpoint missing", "id", r.ID, "to", r.To)
		return g
	}
	out := g.clone()
	r.Props = r.Props.Clone()
	out.relations[r.ID] = r
	out.relationOrder = append(out.relationOrder, r.ID)
	out.bySubject[r.From] = append(out.bySubject[r.From], r.ID)
	out.byObject[r.To] = append(out.byObject[r.To], r.ID)
	out.byPredicate[r.Type] = append(out.byPredicate[r.Type], r.ID)
	return out
}

// GetRelation returns the relation and whether it exists. O(1).
func (g *Graph) GetRelation(id string) (Relation, bool) {
	r, ok := g.relations[id]
	return r, ok
}

// DeleteRelation removes a relation by id. Idempotent.
func (g *Graph) DeleteRelation(id string) *Graph {
	if _, ok := g.relations[id]; !ok {
		return g
	}
	out := g.clone()
	out.removeRelationInPlace(id)
	return out
}

// removeRelationInPlace drops a relation and its index entries.
// Only call on a freshly cloned graph.
func (g *Graph) removeRelationInPlace(id string) {
	r, ok := g.relations[id]
	if !ok {
		return
	}
	delete(g.relations, id)
	g.relationOrder = removeID(g.relationOrder, id)
	g.bySubject[r.From] = removeID(g.bySubject[r.From], id)
	g.byObject[r.To] = removeID(g.byObject[r.To], id)
	g.byPredicate[r.Type] = removeID(g.byPredicate[r.Type], id)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			out := make([]string, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			return append(out, ids[i+1:]...)
		}
	}
	return ids
}

// EntityCount returns the number of entities.
func (g *Graph) EntityCount() int { return len(g.entities) }

// RelationCount returns the number of relations.
func (g *Graph) RelationCount() int { return len(g.relations) }

// Entities returns all entities in insertion order.
func (g *Graph) Entities() []Entity {
	out := make([]Entity, 0, len(g.entityOrder))
	for _, id := range g.entityOrder {
		out = append(out, g.entities[id])
	}
	return out
}

// Relations returns all relations in insertion order.
func (g *Graph) Relations() []Relation {
	out := make([]Relation, 0, len(g.relationOrder))
	for _, id := range g.relationOrder {
		out = append(out, g.relations[id])
	}
	return out
}

// RelationsFrom returns relations whose From is id, optionally filtered by
// type (empty relType matches all). Insertion order.
func (g *Graph) RelationsFrom(id, relType string) []Relation {
	return g.collectRelations(g.bySubject[id], relType)
}

// RelationsTo returns relations whose To is id, optionally filtered by type.
func (g *Graph) RelationsTo(id, relType string) []Relation {
	return g.collectRelations(g.byObject[id], relType)
}

// RelationsOf returns every relation touching id in either direction.
func (g *Graph) RelationsOf(id string) []Relation {
	seen := map[string]bool{}
	var out []Relation
	for _, rid := range g.bySubject[id] {
		if !seen[rid] {
			seen[rid] = true
			out = append(out, g.relations[rid])
		}
	}
	for _, rid := range g.byObject[id] {
		if !seen[rid] {
			seen[rid] = true
			out = append(out, g.relations[rid])
		}
	}
	return out
}

// RelationsByType returns all relations of the given type in insertion order.
func (g *Graph) RelationsByType(relType string) []Relation {
	return g.collectRelations(g.byPredicate[relType], "")
}

func (g *Graph) collectRelations(ids []string, relType string) []Relation {
	var out []Relation
	for _, rid := range ids {
		r := g.relations[rid]
		if relType != "" && r.Type != relType {
			continue
		}
		out = append(out, r)
	}
	return out
}
