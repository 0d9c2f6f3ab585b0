// Package canon implements the transactional heart of the world engine:
// patch validation and atomic commit (Arbiter), the append-only commit log
// (Ledger), and the single-writer Session that ties them to a graph value.
package canon

import (
	"encoding/json"
	"fmt"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// Op identifies a patch operation.
type Op string

const (
	// OpAdd sets a property that must not already exist.
	OpAdd Op = "add"
	// OpRemove deletes a property from an entity.
	OpRemove Op = "remove"
	// OpSet sets a property unconditionally.
	OpSet Op = "set"
	// OpReplace sets a property that must already exist.
	OpReplace Op = "replace"
	// OpIncrement adds a numeric delta (default 1) to a property.
	OpIncrement Op = "increment"
	// OpDecrement subtracts a numeric delta (default 1) from a property.
	OpDecrement Op = "decrement"
	// OpCreateEntity creates a new entity; Value holds {type, name, props}.
	OpCreateEntity Op = "create_entity"
	// OpDeleteEntity deletes an entity and cascades its relations.
	OpDeleteEntity Op = "delete_entity"
	// OpCreateRelation creates a relation; Value holds {type, from, to, props}.
	OpCreateRelation Op = "create_relation"
	// OpDeleteRelation deletes a relation by id.
	OpDeleteRelation Op = "delete_relation"
)

// ValidOps lists every accepted patch operation.
var ValidOps = map[Op]bool{
	OpAdd: true, OpRemove: true, OpSet: true, OpReplace: true,
	OpIncrement: true, OpDecrement: true,
	OpCreateEntity: true, OpDeleteEntity: true,
	OpCreateRelation: true, OpDeleteRelation: true,
}

// Patch is one proposed atomic state change. Entity names the target entity
// id, except for the relation ops where it names the relation id.
type Patch struct {
	Op       Op         `json:"op"`
	Entity   string     `json:"entity"`
	Field    string     `json:"field,omitempty"`
	Value    prop.Value `json:"value,omitempty"`
	Proposer string     `json:"proposer,omitempty"`
	Tick     int64      `json:"tick,omitempty"`
	Meta     prop.Map   `json:"meta,omitempty"`
}

// PatchSet is an ordered batch of patches submitted together for
// all-or-nothing commit. Later patches see the effects of earlier ones;
// two patches touching the same field obey last-in-list-order-wins.
type PatchSet []Patch

// UnmarshalJSON implements json.Unmarshaler, decoding Value into the
// tagged property types.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op       Op              `json:"op"`
		Entity   string          `json:"entity"`
		Field    string          `json:"field"`
		Value    json.RawMessage `json:"value"`
		Proposer string          `json:"proposer"`
		Tick     int64           `json:"tick"`
		Meta     prop.Map        `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Op = raw.Op
	p.Entity = raw.Entity
	p.Field = raw.Field
	p.Proposer = raw.Proposer
	p.Tick = raw.Tick
	p.Meta = raw.Meta
	p.Value = nil

	if len(raw.Value) > 0 && string(raw.Value) != "null" {
		v, err := prop.UnmarshalValue(raw.Value)
		if err != nil {
			return fmt.Errorf("patch value: %w", err)
		}
		p.Value = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Patch) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"op":     string(p.Op),
		"entity": p.Entity,
	}
	if p.Field != "" {
		m["field"] = p.Field
	}
	if p.Value != nil {
		vb, err := prop.MarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("patch value: %w", err)
		}
		m["value"] = json.RawMessage(vb)
	}
	if p.Proposer != "" {
		m["proposer"] = p.Proposer
	}
	if p.Tick != 0 {
		m["tick"] = p.Tick
	}
	if len(p.Meta) > 0 {
		mb, err := json.Marshal(p.Meta)
		if err != nil {
			return nil, fmt.Errorf("patch meta: %w", err)
		}
		m["meta"] = json.RawMessage(mb)
	}
	return json.Marshal(m)
}

// canonicalForm renders the patch as tagged values for entry hashing.
func (p Patch) canonicalForm() prop.Map {
	m := prop.Map{
		"op":     prop.String(p.Op),
		"entity": prop.String(p.Entity),
	}
	if p.Field != "" {
		m["field"] = prop.String(p.Field)
	}
	if p.Value != nil {
		m["value"] = p.Value
	}
	if p.Proposer != "" {
		m["proposer"] = prop.String(p.Proposer)
	}
	if p.Tick != 0 {
		m["tick"] = prop.Int(p.Tick)
	}
	if len(p.Meta) > 0 {
		m["meta"] = p.Meta
	}
	return m
}

// entitySpec extracts the {type, name, props} payload of a create_entity patch.
func (p Patch) entitySpec() (graph.Entity, error) {
	m, ok := p.Value.(prop.Map)
	if !ok {
		return graph.Entity{}, fmt.Errorf("create_entity value must be a map")
	}
	typ, _ := m["type"].(prop.String)
	if typ == "" {
		return graph.Entity{}, fmt.Errorf("create_entity value missing type")
	}
	name, _ := m["name"].(prop.String)
	props, _ := m["props"].(prop.Map)
	return graph.Entity{ID: p.Entity, Type: string(typ), Name: string(name), Props: props}, nil
}

// relationSpec extracts the {type, from, to, props} payload of a
// create_relation patch. The relation id is the patch's Entity field.
func (p Patch) relationSpec() (graph.Relation, error) {
	m, ok := p.Value.(prop.Map)
	if !ok {
		return graph.Relation{}, fmt.Errorf("create_relation value must be a map")
	}
	typ, _ := m["type"].(prop.String)
	if typ == "" {
		return graph.Relation{}, fmt.Errorf("create_relation value missing type")
	}
	from, _ := m["from"].(prop.String)
	to, _ := m["to"].(prop.String)
	if from == "" || to == "" {
		return graph.Relation{}, fmt.Errorf("create_relation value missing from/to")
	}
	props, _ := m["props"].(prop.Map)
	return graph.Relation{ID: p.Entity, Type: string(typ), From: string(from), To: string(to), Props: props}, nil
}

// numericDelta returns the patch value as a number, defaulting to 1 when
// the value is absent. Used by increment/decrement.
func (p Patch) numericDelta() (float64, bool, error) {
	if p.Value == nil {
		return 1, false, nil
	}
	switch v := p.Value.(type) {
	case prop.Int:
		return float64(v), false, nil
	case prop.Float:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("increment/decrement value must be numeric, got %T", p.Value)
	}
}

// ApplyPatch applies one validated patch to g and returns the new graph.
// It is the single per-patch application primitive shared by commit and
// replay, which is what makes replay deterministic.
//
// ApplyPatch assumes the patch already passed arbiter validation; on a
// patch that cannot apply it returns an error rather than guessing.
func ApplyPatch(g *graph.Graph, p Patch) (*graph.Graph, error) {
	switch p.Op {
	case OpSet, OpAdd, OpReplace:
		if p.Value == nil {
			return nil, fmt.Errorf("%s %s.%s: missing value", p.Op, p.Entity, p.Field)
		}
		return g.SetEntityProp(p.Entity, p.Field, p.Value), nil

	case OpRemove:
		return g.RemoveEntityProp(p.Entity, p.Field), nil

	case OpIncrement, OpDecrement:
		delta, deltaFloat, err := p.numericDelta()
		if err != nil {
			return nil, fmt.Errorf("%s %s.%s: %w", p.Op, p.Entity, p.Field, err)
		}
		if p.Op == OpDecrement {
			delta = -delta
		}
		e, ok := g.GetEntity(p.Entity)
		if !ok {
			return nil, fmt.Errorf("%s %s.%s: entity not found", p.Op, p.Entity, p.Field)
		}
		current := 0.0
		currentFloat := false
		if cv, exists := e.Props[p.Field]; exists {
			n, isNum := prop.Number(cv)
			if !isNum {
				return nil, fmt.Errorf("%s %s.%s: existing value is not numeric", p.Op, p.Entity, p.Field)
			}
			_, currentFloat = cv.(prop.Float)
			current = n
		}
		// Int arithmetic stays Int unless either side is a float.
		var next prop.Value
		if currentFloat || deltaFloat {
			next = prop.Float(current + delta)
		} else {
			next = prop.Int(int64(current) + int64(delta))
		}
		return g.SetEntityProp(p.Entity, p.Field, next), nil

	case OpCreateEntity:
		e, err := p.entitySpec()
		if err != nil {
			return nil, err
		}
		return g.CreateEntity(e), nil

	case OpDeleteEntity:
		return g.DeleteEntity(p.Entity), nil

	case OpCreateRelation:
		r, err := p.relationSpec()
		if err != nil {
			return nil, err
		}
		return g.CreateRelation(r), nil

	case OpDeleteRelation:
		return g.DeleteRelation(p.Entity), nil

	default:
		return nil, fmt.Errorf("unknown op %q", p.Op)
	}
}
