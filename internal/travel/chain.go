package travel

import (
	"fmt"

	"github.com/ashgale/canon/internal/graph"
)

// ContainedIn is the relation type that defines the containment hierarchy.
const ContainedIn = "contained_in"

// containmentChain walks contained_in relations from id up to the root and
// returns the ordered ancestor list (immediate container first, root last).
// The entity itself is not included.
//
// The walk keeps an explicit visited set and a depth cap and fails closed
// on pathological input instead of recursing unbounded. When an entity has
// several containers the first-inserted relation wins, which keeps chains
// deterministic.
func containmentChain(g *graph.Graph, id string, maxDepth int) ([]string, error) {
	var chain []string
	visited := map[string]bool{id: true}

	current := id
	for depth := 0; ; depth++ {
		if depth >= maxDepth {
			return nil, fmt.Errorf("containment chain from %q exceeds depth %d", id, maxDepth)
		}
		parents := g.RelationsFrom(current, ContainedIn)
		if len(parents) == 0 {
			return chain, nil
		}
		next := parents[0].To
		if visited[next] {
			return nil, fmt.Errorf("containment cycle at %q walking up from %q", next, id)
		}
		visited[next] = true
		chain = append(chain, next)
		current = next
	}
}

// chainRoot returns the root container of a chain, or the entity itself
// when it has no container.
func chainRoot(id string, chain []string) string {
	if len(chain) == 0 {
		return id
	}
	return chain[len(chain)-1]
}

// lowestCommonAncestor returns the first container shared by both chains,
// in from-chain order, and whether one exists.
func lowestCommonAncestor(fromChain, toChain []string) (string, bool) {
	inTo := make(map[string]bool, len(toChain))
	for _, id := range toChain {
		inTo[id] = true
	}
	for _, id := range fromChain {
		if inTo[id] {
			return id, true
		}
	}
	return "", false
}

// classifyPair applies the hierarchical classification:
//
//   - same_location: identical endpoints
//   - nested: one chain contains the other endpoint
//   - same_container: the chains share an immediate (first-level) container
//   - distant: anything else - shared ancestor is deeper, or absent
func classifyPair(fromID, toID string, fromChain, toChain []string) PairClass {
	if fromID == toID {
		return ClassSameLocation
	}
	for _, id := range fromChain {
		if id == toID {
			return ClassNested
		}
	}
	for _, id := range toChain {
		if id == fromID {
			return ClassNested
		}
	}
	if len(fromChain) > 0 && len(toChain) > 0 && fromChain[0] == toChain[0] {
		return ClassSameContainer
	}
	return ClassDistant
}
