package graph

import "github.com/ashgale/canon/internal/prop"

// Direction selects which way Traverse follows relations.
type Direction int

const (
	// DirOut follows relations where the working entity is From.
	DirOut Direction = iota
	// DirIn follows relations where the working entity is To.
	DirIn
	// DirBoth follows relations in either direction.
	DirBoth
)

// Matcher decides whether a property value satisfies a filter.
// A missing key never matches.
type Matcher func(prop.Value) bool

// Eq returns a matcher for deep equality with want.
func Eq(want prop.Value) Matcher {
	return func(v prop.Value) bool { return prop.Equal(v, want) }
}

// Query is a fluent, chainable filter over a working id set seeded with all
// entities. Filter calls narrow the set by intersection; Traverse REPLACES
// the set with the traversal frontier, so chained traversals express
// multi-hop reachability. Execute materializes the final entity list.
//
// A Query reads but never mutates its graph.
type Query struct {
	g       *Graph
	working map[string]bool
}

// Query starts a query over all entities in the graph.
func (g *Graph) Query() *Query {
	working := make(map[string]bool, len(g.entities))
	for id := range g.entities {
		working[id] = true
	}
	return &Query{g: g, working: working}
}

// FilterByType narrows the working set to entities of type t.
func (q *Query) FilterByType(t string) *Query {
	for id := range q.working {
		if q.g.entities[id].Type != t {
			delete(q.working, id)
		}
	}
	return q
}

// FilterByID narrows the working set to the given ids. Ids not in the set
// (or not in the graph) contribute nothing.
func (q *Query) FilterByID(ids ...string) *Query {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for id := range q.working {
		if !keep[id] {
			delete(q.working, id)
		}
	}
	return q
}

// FilterByProperty narrows the working set to entities whose property key
// satisfies match. Entities without the key are dropped.
func (q *Query) FilterByProperty(key string, match Matcher) *Query {
	for id := range q.working {
		v, ok := q.g.entities[id].Props[key]
		if !ok || !match(v) {
			delete(q.working, id)
		}
	}
	return q
}

// Traverse replaces the working set with the frontier reached by following
// relations of relType (empty matches any type) in the given direction.
func (q *Query) Traverse(relType string, dir Direction) *Query {
	frontier := map[string]bool{}
	for id := range q.working {
		if dir == DirOut || dir == DirBoth {
			for _, r := range q.g.RelationsFrom(id, relType) {
				frontier[r.To] = true
			}
		}
		if dir == DirIn || dir == DirBoth {
			for _, r := range q.g.RelationsTo(id, relType) {
				frontier[r.From] = true
			}
		}
	}
	q.working = frontier
	return q
}

// Execute materializes the working set as entities in insertion order.
func (q *Query) Execute() []Entity {
	out := make([]Entity, 0, len(q.working))
	for _, id := range q.g.entityOrder {
		if q.working[id] {
			out = append(out, q.g.entities[id])
		}
	}
	return out
}

// IDs materializes the working set as entity ids in insertion order.
func (q *Query) IDs() []string {
	out := make([]string, 0, len(q.working))
	for _, id := range q.g.entityOrder {
		if q.working[id] {
			out = append(out, id)
		}
	}
	return out
}
