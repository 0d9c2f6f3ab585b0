package canon

import "github.com/ashgale/canon/internal/graph"

// ValidatorFunc is a registry hook that may veto a patch. It receives the
// graph as it stands at the patch's position in the batch and must not
// mutate anything. A non-nil error rejects the whole batch.
type ValidatorFunc func(g *graph.Graph, p Patch) error

// Registry declares which entity and relation types an arbiter admits and
// which validator hooks it runs. It is immutable after construction; to
// change the rules, build a new registry and a new arbiter ("reload").
//
// An empty type set is open: any string tag is admitted. This is the
// default, since the world model must accept new type tags without code
// changes.
type Registry struct {
	entityTypes   map[string]bool
	relationTypes map[string]bool
	validators    []ValidatorFunc
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithEntityTypes restricts create_entity to the listed types.
func WithEntityTypes(types ...string) RegistryOption {
	return func(r *Registry) {
		r.entityTypes = map[string]bool{}
		for _, t := range types {
			r.entityTypes[t] = true
		}
	}
}

// WithRelationTypes restricts create_relation to the listed types.
func WithRelationTypes(types ...string) RegistryOption {
	return func(r *Registry) {
		r.relationTypes = map[string]bool{}
		for _, t := range types {
			r.relationTypes[t] = true
		}
	}
}

// WithValidator appends a validator hook. Hooks run in registration order.
func WithValidator(f ValidatorFunc) RegistryOption {
	return func(r *Registry) {
		r.validators = append(r.validators, f)
	}
}

// NewRegistry builds a registry. With no options every type is admitted
// and no hooks run.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AllowsEntityType reports whether t is an admitted entity type.
func (r *Registry) AllowsEntityType(t string) bool {
	if len(r.entityTypes) == 0 {
		return true
	}
	return r.entityTypes[t]
}

// AllowsRelationType reports whether t is an admitted relation type.
func (r *Registry) AllowsRelationType(t string) bool {
	if len(r.relationTypes) == 0 {
		return true
	}
	return r.relationTypes[t]
}

// Validate runs every hook against the patch. The first error wins.
func (r *Registry) Validate(g *graph.Graph, p Patch) error {
	for _, f := range r.validators {
		if err := f(g, p); err != nil {
			return err
		}
	}
	return nil
}
