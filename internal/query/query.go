// Package query is the read surface over a world graph: structured lookups
// by id, type, property and connectivity, plus free-text name search. All
// queries are pure reads over an immutable graph value, so they are safe
// to run concurrently with commits against the same session.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// Kind selects the structured query shape.
type Kind string

const (
	// KindEntity fetches a single entity by id.
	KindEntity Kind = "entity"
	// KindEntitiesByType lists entities of one type.
	KindEntitiesByType Kind = "entities_by_type"
	// KindRelationsOf lists all relations touching an entity.
	KindRelationsOf Kind = "relations_of"
	// KindConnected lists entities one hop away over a relation type.
	KindConnected Kind = "connected"
	// KindByProperty lists entities whose field equals a value.
	KindByProperty Kind = "by_property"
)

// validKinds guards request decoding.
var validKinds = map[Kind]bool{
	KindEntity:         true,
	KindEntitiesByType: true,
	KindRelationsOf:    true,
	KindConnected:      true,
	KindByProperty:     true,
}

// Request is one structured query. Which fields are required depends on
// Kind; Execute reports a descriptive error when one is missing.
type Request struct {
	Kind Kind `json:"kind"`
	// ID selects the subject entity (entity, relations_of, connected).
	ID string `json:"id,omitempty"`
	// Type is the entity type (entities_by_type) or relation type
	// (relations_of optional filter, connected).
	Type string `json:"type,omitempty"`
	// Field and Value drive by_property matching.
	Field string     `json:"field,omitempty"`
	Value prop.Value `json:"value,omitempty"`
	// Direction applies to connected: "out", "in" or "both" (default).
	Direction string `json:"direction,omitempty"`
	// Limit truncates entity results when positive.
	Limit int `json:"limit,omitempty"`
}

// UnmarshalJSON decodes the tagged value field through the property codec.
func (r *Request) UnmarshalJSON(data []byte) error {
	type alias struct {
		Kind      Kind            `json:"kind"`
		ID        string          `json:"id"`
		Type      string          `json:"type"`
		Field     string          `json:"field"`
		Value     json.RawMessage `json:"value"`
		Direction string          `json:"direction"`
		Limit     int             `json:"limit"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode query request: %w", err)
	}
	r.Kind = a.Kind
	r.ID = a.ID
	r.Type = a.Type
	r.Field = a.Field
	r.Direction = a.Direction
	r.Limit = a.Limit
	r.Value = nil
	if len(a.Value) > 0 && string(a.Value) != "null" {
		v, err := prop.UnmarshalValue(a.Value)
		if err != nil {
			return fmt.Errorf("decode query value: %w", err)
		}
		r.Value = v
	}
	return nil
}

// Response carries whichever result shape the request kind produces.
type Response struct {
	Entities  []graph.Entity   `json:"entities,omitempty"`
	Relations []graph.Relation `json:"relations,omitempty"`
}

// Execute runs a structured request against a graph value. Entity result
// order is graph insertion order. A lookup that finds nothing is an empty
// response, not an error; errors mean the request itself was malformed.
func Execute(g *graph.Graph, req Request) (Response, error) {
	if !validKinds[req.Kind] {
		return Response{}, fmt.Errorf("unknown query kind %q", req.Kind)
	}

	switch req.Kind {
	case KindEntity:
		if req.ID == "" {
			return Response{}, fmt.Errorf("query kind %q requires id", req.Kind)
		}
		if e, ok := g.GetEntity(req.ID); ok {
			return Response{Entities: []graph.Entity{e}}, nil
		}
		return Response{}, nil

	case KindEntitiesByType:
		if req.Type == "" {
			return Response{}, fmt.Errorf("query kind %q requires type", req.Kind)
		}
		ents := g.Query().FilterByType(req.Type).Execute()
		return Response{Entities: limited(ents, req.Limit)}, nil

	case KindRelationsOf:
		if req.ID == "" {
			return Response{}, fmt.Errorf("query kind %q requires id", req.Kind)
		}
		rels := g.RelationsOf(req.ID)
		if req.Type != "" {
			kept := rels[:0:0]
			for _, r := range rels {
				if r.Type == req.Type {
					kept = append(kept, r)
				}
			}
			rels = kept
		}
		return Response{Relations: rels}, nil

	case KindConnected:
		if req.ID == "" || req.Type == "" {
			return Response{}, fmt.Errorf("query kind %q requires id and type", req.Kind)
		}
		dir, err := parseDirection(req.Direction)
		if err != nil {
			return Response{}, err
		}
		ents := g.Query().
			FilterByID(req.ID).
			Traverse(req.Type, dir).
			Execute()
		return Response{Entities: limited(ents, req.Limit)}, nil

	case KindByProperty:
		if req.Field == "" {
			return Response{}, fmt.Errorf("query kind %q requires field", req.Kind)
		}
		ents := g.Query().FilterByProperty(req.Field, graph.Eq(req.Value)).Execute()
		return Response{Entities: limited(ents, req.Limit)}, nil
	}

	return Response{}, fmt.Errorf("unknown query kind %q", req.Kind)
}

func parseDirection(s string) (graph.Direction, error) {
	switch s {
	case "", "both":
		return graph.DirBoth, nil
	case "out":
		return graph.DirOut, nil
	case "in":
		return graph.DirIn, nil
	default:
		return graph.DirBoth, fmt.Errorf("unknown direction %q", s)
	}
}

func limited(ents []graph.Entity, limit int) []graph.Entity {
	if limit > 0 && len(ents) > limit {
		return ents[:limit]
	}
	return ents
}
