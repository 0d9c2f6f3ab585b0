package travel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/prop"
)

// travelWorld builds the worked-example world: region B inside region A,
// destination C standing alone, 15 meters per grid unit.
func travelWorld(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "region.a", Type: "region", Name: "Region A", Props: prop.Map{
		"meters_per_unit": prop.Int(15),
	}})
	g = g.CreateEntity(graph.Entity{ID: "region.b", Type: "region", Name: "Region B", Props: prop.Map{
		"grid_x": prop.Int(0),
		"grid_y": prop.Int(0),
	}})
	g = g.CreateEntity(graph.Entity{ID: "region.c", Type: "region", Name: "Region C", Props: prop.Map{
		"grid_x": prop.Int(100),
		"grid_y": prop.Int(0),
	}})
	g = g.CreateRelation(graph.Relation{ID: "rel.b-in-a", Type: ContainedIn, From: "region.b", To: "region.a"})
	require.Equal(t, 3, g.EntityCount())
	return g
}

func allKnown() knowledge.View { return knowledge.All{} }

func TestSameLocationZeroSegments(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.b", Preferences{})

	require.True(t, res.Success)
	assert.Equal(t, ClassSameLocation, res.Class)
	assert.Empty(t, res.Segments)
	assert.Zero(t, res.EstimatedMinutes)
	assert.Zero(t, res.DistanceMeters)
}

func TestNestedPairOneContainmentSegment(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.a", Preferences{})

	require.True(t, res.Success)
	assert.Equal(t, ClassNested, res.Class)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, SegmentContainment, res.Segments[0].Kind)
	assert.Greater(t, res.EstimatedMinutes, 0.0)
}

func TestUnknownDestinationGatedBeforeGraphReads(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	// The destination is not even in the graph; the knowledge gate must
	// fire first so the result reveals nothing about graph contents.
	res := e.CalculateRoute(context.Background(), g, knowledge.NewDiscoveries("region.b"), "region.b", "region.ghost", Preferences{})

	require.False(t, res.Success)
	assert.Contains(t, res.Reason, "unknown")
	assert.Empty(t, res.Segments)
	assert.Zero(t, res.DistanceMeters)
}

func TestMissingEntity(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.ghost", "region.c", Preferences{})
	require.False(t, res.Success)
	assert.Equal(t, ReasonMissingEntity, res.Reason)

	res = e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.phantom", Preferences{})
	require.False(t, res.Success)
	assert.Equal(t, ReasonMissingEntity, res.Reason)
}

func TestWorkedExampleDistantRoute(t *testing.T) {
	// B at (0,0), C at (100,0), 15 m/unit: 1500 m, ~18 min at 1.4 m/s.
	e := NewEngine(Config{})
	g := travelWorld(t)

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})

	require.True(t, res.Success)
	assert.Equal(t, ClassDistant, res.Class)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, SegmentConnection, res.Segments[0].Kind)
	assert.InDelta(t, 1500, res.DistanceMeters, 0.001)
	assert.InDelta(t, 17.857, res.EstimatedMinutes, 0.01)
	assert.Equal(t, AlgoHierarchical, res.AlgorithmUsed)
	assert.Greater(t, res.NodesExplored, 0)
}

func TestRepeatedRouteServedFromCache(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	first := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	require.True(t, first.Success)
	require.Equal(t, AlgoHierarchical, first.AlgorithmUsed)

	second := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	require.True(t, second.Success)
	assert.Equal(t, AlgoCached, second.AlgorithmUsed)
	assert.Equal(t, 0, second.NodesExplored)
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)
	assert.Equal(t, first.EstimatedMinutes, second.EstimatedMinutes)
}

func TestCacheKeyIncludesPreferences(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	walk := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	horse := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{Transport: "horse"})

	assert.Equal(t, AlgoHierarchical, horse.AlgorithmUsed, "different prefs must not hit the walk cache entry")
	assert.Less(t, horse.EstimatedMinutes, walk.EstimatedMinutes)
}

func TestCacheFIFOEviction(t *testing.T) {
	e := NewEngine(Config{CacheSize: 2})
	g := travelWorld(t)
	g = g.CreateEntity(graph.Entity{ID: "region.d", Type: "region", Name: "Region D", Props: prop.Map{
		"grid_x": prop.Int(0), "grid_y": prop.Int(50),
	}})

	ctx := context.Background()
	e.CalculateRoute(ctx, g, allKnown(), "region.b", "region.c", Preferences{}) // oldest
	e.CalculateRoute(ctx, g, allKnown(), "region.b", "region.d", Preferences{})

	// Reading the oldest entry must NOT refresh it (FIFO, not LRU).
	hit := e.CalculateRoute(ctx, g, allKnown(), "region.b", "region.c", Preferences{})
	require.Equal(t, AlgoCached, hit.AlgorithmUsed)

	// Third distinct route evicts the oldest (b->c).
	e.CalculateRoute(ctx, g, allKnown(), "region.c", "region.d", Preferences{})
	assert.Equal(t, 2, e.cache.len())

	again := e.CalculateRoute(ctx, g, allKnown(), "region.b", "region.c", Preferences{})
	assert.Equal(t, AlgoHierarchical, again.AlgorithmUsed, "evicted route recomputes")
}

func TestTimeoutIsTypedFailure(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	res := e.CalculateRoute(ctx, g, allKnown(), "region.b", "region.c", Preferences{})
	require.False(t, res.Success)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Empty(t, res.Segments, "no partial results on timeout")
}

func TestContainmentCycleFailsClosed(t *testing.T) {
	e := NewEngine(Config{})
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "a", Type: "region", Name: "A"})
	g = g.CreateEntity(graph.Entity{ID: "b", Type: "region", Name: "B"})
	g = g.CreateEntity(graph.Entity{ID: "c", Type: "region", Name: "C"})
	g = g.CreateRelation(graph.Relation{ID: "r1", Type: ContainedIn, From: "a", To: "b"})
	g = g.CreateRelation(graph.Relation{ID: "r2", Type: ContainedIn, From: "b", To: "a"})

	res := e.CalculateRoute(context.Background(), g, allKnown(), "a", "c", Preferences{})
	require.False(t, res.Success)
	assert.Equal(t, ReasonCycleDetected, res.Reason)
}

func TestSameContainerPrefersAdjacency(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)
	g = g.CreateEntity(graph.Entity{ID: "region.b2", Type: "region", Name: "B2"})
	g = g.CreateRelation(graph.Relation{ID: "rel.b2-in-a", Type: ContainedIn, From: "region.b2", To: "region.a"})
	g = g.CreateRelation(graph.Relation{ID: "rel.adj", Type: AdjacentTo, From: "region.b", To: "region.b2", Props: prop.Map{
		"distance_m": prop.Int(300),
		"terrain":    prop.String("road"),
	}})

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.b2", Preferences{})

	require.True(t, res.Success)
	assert.Equal(t, ClassSameContainer, res.Class)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, SegmentLocal, res.Segments[0].Kind)
	assert.Equal(t, "road", res.Segments[0].Terrain)
	assert.InDelta(t, 300, res.DistanceMeters, 0.001)
}

func TestSameContainerSynthesizesLocalSegment(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)
	g = g.CreateEntity(graph.Entity{ID: "region.b2", Type: "region", Name: "B2"})
	g = g.CreateRelation(graph.Relation{ID: "rel.b2-in-a", Type: ContainedIn, From: "region.b2", To: "region.a"})

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.b2", Preferences{})

	require.True(t, res.Success)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, SegmentLocal, res.Segments[0].Kind)
}

func TestDistantPrefersExplicitRouteData(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)
	g = g.CreateRelation(graph.Relation{ID: "rel.route", Type: RouteTo, From: "region.b", To: "region.c", Props: prop.Map{
		"distance_m": prop.Int(900),
		"terrain":    prop.String("road"),
	}})

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})

	require.True(t, res.Success)
	assert.InDelta(t, 900, res.DistanceMeters, 0.001, "explicit route data beats straight-line fallback")
}

func TestDistantNoDataNoRoute(t *testing.T) {
	e := NewEngine(Config{})
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "x", Type: "region", Name: "X"})
	g = g.CreateEntity(graph.Entity{ID: "y", Type: "region", Name: "Y"})

	res := e.CalculateRoute(context.Background(), g, allKnown(), "x", "y", Preferences{})
	require.False(t, res.Success)
	assert.Equal(t, ReasonNoRoute, res.Reason)
}

func TestModifierOrderAndValues(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	base := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	require.True(t, base.Success)

	modified := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{
		Weather:   "rain",  // time x1.3
		Transport: "horse", // speed x2.5 -> time /2.5
		Stamina:   50,      // condition sqrt(0.5*1.0)
		Health:    100,
	})
	require.True(t, modified.Success)

	want := base.EstimatedMinutes * 1.3 / 2.5 / 0.7071067811865476
	assert.InDelta(t, want, modified.EstimatedMinutes, 0.01)
}

func TestConditionFloorPreventsBlowup(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	res := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{
		Stamina: 1, // clamps to floor 0.1
		Health:  1,
	})
	require.True(t, res.Success)

	base := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	assert.InDelta(t, base.EstimatedMinutes/0.1, res.EstimatedMinutes, 0.1)
}

func TestValidateRoute(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	route := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	require.True(t, route.Success)

	assert.Empty(t, e.ValidateRoute(g, allKnown(), route))

	// Destination no longer known.
	issues := e.ValidateRoute(g, knowledge.NewDiscoveries("region.b"), route)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Reason, "unknown")

	// Endpoint gone from the graph.
	gone := g.DeleteEntity("region.c")
	issues = e.ValidateRoute(gone, allKnown(), route)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Reason, ReasonMissingEntity)
}

func TestMovePatches(t *testing.T) {
	e := NewEngine(Config{})
	g := travelWorld(t)

	route := e.CalculateRoute(context.Background(), g, allKnown(), "region.b", "region.c", Preferences{})
	require.True(t, route.Success)

	set := MovePatches("char.mira", route, "travel")
	require.Len(t, set, 2)
	assert.Equal(t, "char.mira", set[0].Entity)
	assert.Equal(t, "location", set[0].Field)

	assert.Nil(t, MovePatches("char.mira", fail("a", "b", ReasonNoRoute), "travel"))
}
