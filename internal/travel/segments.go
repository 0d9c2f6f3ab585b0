package travel

import (
	"math"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// Relation types the segment builder recognizes.
const (
	// AdjacentTo is an explicit spatial adjacency between two entities in
	// the same container.
	AdjacentTo = "adjacent_to"
	// RouteTo is explicit long-range route data between two entities.
	RouteTo = "route_to"
)

// buildSegments dispatches on the pair class and returns the route's
// segments. ok=false means classification succeeded but no construction
// strategy applied ("no route").
func (e *Engine) buildSegments(g *graph.Graph, class PairClass, fromID, toID string, fromChain, toChain []string, prefs Preferences) ([]Segment, bool) {
	switch class {
	case ClassSameLocation:
		// Zero segments, zero time.
		return nil, true

	case ClassNested:
		seg := e.costedSegment(g, Segment{
			From:           fromID,
			To:             toID,
			Kind:           SegmentContainment,
			Terrain:        terrainOf(g, toID),
			DistanceMeters: e.cfg.NominalContainmentMeters,
		}, prefs)
		return []Segment{seg}, true

	case ClassSameContainer:
		return e.localSegments(g, fromID, toID, fromChain, prefs)

	case ClassDistant:
		return e.connectionSegments(g, fromID, toID, fromChain, toChain, prefs)

	default:
		return nil, false
	}
}

// localSegments handles two entities sharing an immediate container.
// An explicit adjacency relation wins; otherwise one local segment is
// synthesized from grid coordinates.
func (e *Engine) localSegments(g *graph.Graph, fromID, toID string, fromChain []string, prefs Preferences) ([]Segment, bool) {
	scale := e.scaleFor(g, chainRoot(fromID, fromChain))

	if rel, ok := findRelationBetween(g, fromID, toID, AdjacentTo); ok {
		seg := Segment{
			From:           fromID,
			To:             toID,
			Kind:           SegmentLocal,
			Terrain:        relationTerrain(g, rel, toID),
			DistanceMeters: relationDistance(g, rel, fromID, toID, scale, e.cfg.NominalContainmentMeters),
		}
		return []Segment{e.costedSegment(g, seg, prefs)}, true
	}

	dist, ok := e.gridMeters(g, fromID, toID, scale)
	if !ok {
		// No adjacency data and no coordinates: charge the nominal local
		// distance rather than refusing to move within one container.
		dist = e.cfg.NominalContainmentMeters
	}
	seg := Segment{
		From:           fromID,
		To:             toID,
		Kind:           SegmentLocal,
		Terrain:        terrainOf(g, toID),
		DistanceMeters: dist,
	}
	return []Segment{e.costedSegment(g, seg, prefs)}, true
}

// connectionSegments handles distant pairs. Explicit route data anchored
// at the lowest common ancestor is preferred; the fallback is straight-line
// grid distance at the world scale.
func (e *Engine) connectionSegments(g *graph.Graph, fromID, toID string, fromChain, toChain []string, prefs Preferences) ([]Segment, bool) {
	scale := e.scaleFor(g, chainRoot(fromID, fromChain))

	// Candidate anchor pairs, nearest first: the endpoints themselves,
	// then their ancestors directly below the common ancestor.
	pairs := [][2]string{{fromID, toID}}
	if lca, ok := lowestCommonAncestor(fromChain, toChain); ok {
		fa := childBelow(fromID, fromChain, lca)
		ta := childBelow(toID, toChain, lca)
		if fa != fromID || ta != toID {
			pairs = append(pairs, [2]string{fa, ta})
		}
	}

	for _, pair := range pairs {
		rel, ok := findRelationBetween(g, pair[0], pair[1], RouteTo)
		if !ok {
			rel, ok = findRelationBetween(g, pair[0], pair[1], AdjacentTo)
		}
		if ok {
			seg := Segment{
				From:           fromID,
				To:             toID,
				Kind:           SegmentConnection,
				Terrain:        relationTerrain(g, rel, toID),
				DistanceMeters: relationDistance(g, rel, pair[0], pair[1], scale, e.cfg.NominalContainmentMeters),
			}
			return []Segment{e.costedSegment(g, seg, prefs)}, true
		}
	}

	// No explicit route data: straight-line grid distance between any
	// anchor pair that carries coordinates.
	for _, pair := range pairs {
		if dist, ok := e.gridMeters(g, pair[0], pair[1], scale); ok {
			seg := Segment{
				From:           fromID,
				To:             toID,
				Kind:           SegmentConnection,
				Terrain:        terrainOf(g, toID),
				DistanceMeters: dist,
			}
			return []Segment{e.costedSegment(g, seg, prefs)}, true
		}
	}

	return nil, false
}

// childBelow returns the ancestor of id directly below lca, or id itself
// when id sits directly under lca.
func childBelow(id string, chain []string, lca string) string {
	prev := id
	for _, c := range chain {
		if c == lca {
			return prev
		}
		prev = c
	}
	return id
}

// findRelationBetween returns a relation of relType between a and b in
// either direction. First inserted wins.
func findRelationBetween(g *graph.Graph, a, b, relType string) (graph.Relation, bool) {
	for _, r := range g.RelationsFrom(a, relType) {
		if r.To == b {
			return r, true
		}
	}
	for _, r := range g.RelationsFrom(b, relType) {
		if r.To == a {
			return r, true
		}
	}
	return graph.Relation{}, false
}

// relationDistance reads distance_m off the relation, falling back to grid
// distance between its endpoints, then to the nominal distance.
func relationDistance(g *graph.Graph, rel graph.Relation, a, b string, scale, nominal float64) float64 {
	if d, ok := prop.Number(rel.Props["distance_m"]); ok && d > 0 {
		return d
	}
	if d, ok := gridUnits(g, a, b); ok {
		return d * scale
	}
	return nominal
}

// relationTerrain reads terrain off the relation, falling back to the
// destination entity's terrain.
func relationTerrain(g *graph.Graph, rel graph.Relation, toID string) string {
	if t, ok := rel.Props["terrain"].(prop.String); ok {
		return string(t)
	}
	return terrainOf(g, toID)
}

// terrainOf reads an entity's terrain property.
func terrainOf(g *graph.Graph, id string) string {
	e, ok := g.GetEntity(id)
	if !ok {
		return ""
	}
	if t, ok := e.Props["terrain"].(prop.String); ok {
		return string(t)
	}
	return ""
}

// gridUnits returns the Euclidean distance between two entities' grid
// coordinates, in grid units.
func gridUnits(g *graph.Graph, a, b string) (float64, bool) {
	ax, ay, ok := gridPos(g, a)
	if !ok {
		return 0, false
	}
	bx, by, ok := gridPos(g, b)
	if !ok {
		return 0, false
	}
	return math.Hypot(bx-ax, by-ay), true
}

// gridMeters is gridUnits scaled to meters.
func (e *Engine) gridMeters(g *graph.Graph, a, b string, scale float64) (float64, bool) {
	d, ok := gridUnits(g, a, b)
	if !ok {
		return 0, false
	}
	return d * scale, true
}

// gridPos reads grid_x/grid_y off an entity.
func gridPos(g *graph.Graph, id string) (x, y float64, ok bool) {
	e, found := g.GetEntity(id)
	if !found {
		return 0, 0, false
	}
	x, xok := prop.Number(e.Props["grid_x"])
	y, yok := prop.Number(e.Props["grid_y"])
	return x, y, xok && yok
}

// scaleFor reads meters_per_unit off the world root.
func (e *Engine) scaleFor(g *graph.Graph, rootID string) float64 {
	root, ok := g.GetEntity(rootID)
	if !ok {
		return e.cfg.DefaultScale
	}
	if s, ok := prop.Number(root.Props["meters_per_unit"]); ok && s > 0 {
		return s
	}
	return e.cfg.DefaultScale
}
