// Package seed compiles CUE world definitions into the patch batches that
// bootstrap a session. Seeding has no private path into the graph: a
// compiled world reduces to ordinary create patches and goes through the
// arbiter like every other proposal.
package seed

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/prop"
)

//go:embed schema.cue
var schemaCUE string

// EntityDef is one entity in a world definition, in file order.
type EntityDef struct {
	ID           string
	Type         string
	Name         string
	Props        prop.Map
	DiscoveredBy []string
}

// RelationDef is one relation in a world definition.
type RelationDef struct {
	ID    string
	Type  string
	From  string
	To    string
	Props prop.Map
}

// World is a compiled, validated world definition.
type World struct {
	Name      string
	Entities  []EntityDef
	Relations []RelationDef
}

// CompileError represents a world compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses CUE source and compiles the world found at the top-level
// "world" field. Uses the CUE SDK's Go API directly (not CLI subprocess).
func Compile(source string) (*World, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	v := ctx.CompileString(source)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	worldVal := v.LookupPath(cue.ParsePath("world"))
	if !worldVal.Exists() {
		return nil, &CompileError{
			Field:   "world",
			Message: "top-level world field is required",
			Pos:     v.Pos(),
		}
	}

	unified := worldVal.Unify(schema.LookupPath(cue.ParsePath("#World")))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileWorld(unified)
}

// CompileWorld decodes an already schema-unified CUE value into a World
// and cross-checks references the schema cannot express: unique relation
// ids and relation endpoints that name defined entities.
func CompileWorld(v cue.Value) (*World, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	w := &World{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	w.Name = name

	entityIDs := map[string]bool{}
	entIter, err := v.LookupPath(cue.ParsePath("entities")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for entIter.Next() {
		def, err := parseEntity(entIter.Selector().Unquoted(), entIter.Value())
		if err != nil {
			return nil, err
		}
		if entityIDs[def.ID] {
			return nil, &CompileError{
				Field:   "entities",
				Message: fmt.Sprintf("duplicate entity id %q", def.ID),
				Pos:     entIter.Value().Pos(),
			}
		}
		entityIDs[def.ID] = true
		w.Entities = append(w.Entities, def)
	}

	relVal := v.LookupPath(cue.ParsePath("relations"))
	if relVal.Exists() {
		relIDs := map[string]bool{}
		relIter, err := relVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for relIter.Next() {
			def, err := parseRelation(relIter.Value())
			if err != nil {
				return nil, err
			}
			if relIDs[def.ID] {
				return nil, &CompileError{
					Field:   "relations",
					Message: fmt.Sprintf("duplicate relation id %q", def.ID),
					Pos:     relIter.Value().Pos(),
				}
			}
			relIDs[def.ID] = true
			for _, endpoint := range []string{def.From, def.To} {
				if !entityIDs[endpoint] {
					return nil, &CompileError{
						Field:   "relations",
						Message: fmt.Sprintf("relation %q references undefined entity %q", def.ID, endpoint),
						Pos:     relIter.Value().Pos(),
					}
				}
			}
			w.Relations = append(w.Relations, def)
		}
	}

	if len(w.Entities) == 0 {
		return nil, &CompileError{
			Field:   "entities",
			Message: "world must define at least one entity",
			Pos:     v.Pos(),
		}
	}

	return w, nil
}

func parseEntity(id string, v cue.Value) (EntityDef, error) {
	def := EntityDef{ID: id}

	typ, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Type = typ

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Name = name

	def.Props, err = parseProps(v)
	if err != nil {
		return def, err
	}

	discVal := v.LookupPath(cue.ParsePath("discovered_by"))
	if discVal.Exists() {
		if err := discVal.Decode(&def.DiscoveredBy); err != nil {
			return def, formatCUEError(err)
		}
	}

	return def, nil
}

func parseRelation(v cue.Value) (RelationDef, error) {
	var def RelationDef
	for field, dst := range map[string]*string{
		"id": &def.ID, "type": &def.Type, "from": &def.From, "to": &def.To,
	} {
		s, err := v.LookupPath(cue.ParsePath(field)).String()
		if err != nil {
			return def, formatCUEError(err)
		}
		*dst = s
	}
	var err error
	def.Props, err = parseProps(v)
	return def, err
}

// parseProps decodes an optional props struct into property values.
func parseProps(v cue.Value) (prop.Map, error) {
	propsVal := v.LookupPath(cue.ParsePath("props"))
	if !propsVal.Exists() {
		return nil, nil
	}
	var raw map[string]any
	if err := propsVal.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	m, err := prop.MapFromGo(raw)
	if err != nil {
		return nil, &CompileError{
			Field:   "props",
			Message: err.Error(),
			Pos:     propsVal.Pos(),
		}
	}
	return m, nil
}

// PatchSet reduces the world to create patches: entities first, in file
// order, then relations, so every endpoint exists before the relation
// that uses it. The batch commits through the arbiter like any other.
func (w *World) PatchSet(proposer string) canon.PatchSet {
	var set canon.PatchSet
	for _, e := range w.Entities {
		spec := prop.Map{
			"type": prop.String(e.Type),
			"name": prop.String(e.Name),
		}
		if len(e.Props) > 0 {
			spec["props"] = e.Props
		}
		set = append(set, canon.Patch{
			Op:       canon.OpCreateEntity,
			Entity:   e.ID,
			Value:    spec,
			Proposer: proposer,
		})
	}
	for _, r := range w.Relations {
		spec := prop.Map{
			"type": prop.String(r.Type),
			"from": prop.String(r.From),
			"to":   prop.String(r.To),
		}
		if len(r.Props) > 0 {
			spec["props"] = r.Props
		}
		set = append(set, canon.Patch{
			Op:       canon.OpCreateRelation,
			Entity:   r.ID,
			Value:    spec,
			Proposer: proposer,
		})
	}
	return set
}

// Discoveries collects the seed knowledge: actor id to the entity ids the
// world file marks as already discovered by that actor.
func (w *World) Discoveries() map[string][]string {
	out := map[string][]string{}
	for _, e := range w.Entities {
		for _, actor := range e.DiscoveredBy {
			out[actor] = append(out[actor], e.ID)
		}
	}
	return out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
