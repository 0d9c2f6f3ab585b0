package graph

import (
	"fmt"

	"github.com/ashgale/canon/internal/prop"
)

// CanonicalForm returns the graph as nested maps/lists/primitives in
// insertion order. The same form feeds content hashing and snapshot
// persistence, so a loaded snapshot hashes identically to the graph that
// produced it.
func (g *Graph) CanonicalForm() prop.Map {
	entities := make(prop.List, 0, len(g.entityOrder))
	for _, id := range g.entityOrder {
		entities = append(entities, entityForm(g.entities[id]))
	}
	relations := make(prop.List, 0, len(g.relationOrder))
	for _, id := range g.relationOrder {
		relations = append(relations, relationForm(g.relations[id]))
	}
	return prop.Map{
		"entities":  entities,
		"relations": relations,
	}
}

func entityForm(e Entity) prop.Map {
	m := prop.Map{
		"id":   prop.String(e.ID),
		"type": prop.String(e.Type),
		"name": prop.String(e.Name),
	}
	if len(e.Props) > 0 {
		m["props"] = e.Props
	}
	return m
}

func relationForm(r Relation) prop.Map {
	m := prop.Map{
		"id":   prop.String(r.ID),
		"type": prop.String(r.Type),
		"from": prop.String(r.From),
		"to":   prop.String(r.To),
	}
	if len(r.Props) > 0 {
		m["props"] = r.Props
	}
	return m
}

// Hash returns the domain-separated content hash of the graph.
func (g *Graph) Hash() (string, error) {
	h, err := prop.HashCanonical(prop.DomainGraph, g.CanonicalForm())
	if err != nil {
		return "", fmt.Errorf("graph hash: %w", err)
	}
	return h, nil
}

// FromCanonicalForm rebuilds a graph from the representation produced by
// CanonicalForm. Insertion order is restored from list order.
func FromCanonicalForm(m prop.Map) (*Graph, error) {
	g := New()

	entities, _ := m["entities"].(prop.List)
	for i, ev := range entities {
		em, ok := ev.(prop.Map)
		if !ok {
			return nil, fmt.Errorf("entity %d: not a map", i)
		}
		e, err := entityFromForm(em)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		next := g.CreateEntity(e)
		if next == g {
			return nil, fmt.Errorf("entity %d: duplicate id %q", i, e.ID)
		}
		g = next
	}

	relations, _ := m["relations"].(prop.List)
	for i, rv := range relations {
		rm, ok := rv.(prop.Map)
		if !ok {
			return nil, fmt.Errorf("relation %d: not a map", i)
		}
		r, err := relationFromForm(rm)
		if err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
		next := g.CreateRelation(r)
		if next == g {
			return nil, fmt.Errorf("relation %d: duplicate id or dangling endpoint %q", i, r.ID)
		}
		g = next
	}

	return g, nil
}

func entityFromForm(m prop.Map) (Entity, error) {
	id, ok := m["id"].(prop.String)
	if !ok || id == "" {
		return Entity{}, fmt.Errorf("missing id")
	}
	typ, _ := m["type"].(prop.String)
	name, _ := m["name"].(prop.String)
	props, _ := m["props"].(prop.Map)
	return Entity{ID: string(id), Type: string(typ), Name: string(name), Props: props}, nil
}

func relationFromForm(m prop.Map) (Relation, error) {
	id, ok := m["id"].(prop.String)
	if !ok || id == "" {
		return Relation{}, fmt.Errorf("missing id")
	}
	from, _ := m["from"].(prop.String)
	to, _ := m["to"].(prop.String)
	if from == "" || to == "" {
		return Relation{}, fmt.Errorf("relation %s: missing endpoint", id)
	}
	typ, _ := m["type"].(prop.String)
	props, _ := m["props"].(prop.Map)
	return Relation{ID: string(id), Type: string(typ), From: string(from), To: string(to), Props: props}, nil
}

// Equal reports whether two graphs have identical canonical forms.
// Used by replay determinism checks.
func Equal(a, b *Graph) bool {
	return prop.Equal(a.CanonicalForm(), b.CanonicalForm())
}
