package travel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgale/canon/internal/graph"
)

// nestedWorld builds room -> building -> city -> region.
func nestedWorld(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range []string{"room", "building", "city", "region"} {
		g = g.CreateEntity(graph.Entity{ID: id, Type: "place", Name: id})
	}
	g = g.CreateRelation(graph.Relation{ID: "r1", Type: ContainedIn, From: "room", To: "building"})
	g = g.CreateRelation(graph.Relation{ID: "r2", Type: ContainedIn, From: "building", To: "city"})
	g = g.CreateRelation(graph.Relation{ID: "r3", Type: ContainedIn, From: "city", To: "region"})
	return g
}

func TestContainmentChainOrder(t *testing.T) {
	g := nestedWorld(t)

	chain, err := containmentChain(g, "room", 64)
	require.NoError(t, err)
	assert.Equal(t, []string{"building", "city", "region"}, chain)

	chain, err = containmentChain(g, "region", 64)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestContainmentChainDepthCap(t *testing.T) {
	g := nestedWorld(t)

	_, err := containmentChain(g, "room", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")
}

func TestContainmentChainCycle(t *testing.T) {
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "a", Type: "place", Name: "a"})
	g = g.CreateEntity(graph.Entity{ID: "b", Type: "place", Name: "b"})
	g = g.CreateRelation(graph.Relation{ID: "r1", Type: ContainedIn, From: "a", To: "b"})
	g = g.CreateRelation(graph.Relation{ID: "r2", Type: ContainedIn, From: "b", To: "a"})

	_, err := containmentChain(g, "a", 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestMultipleContainersFirstInsertedWins(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"x", "p1", "p2"} {
		g = g.CreateEntity(graph.Entity{ID: id, Type: "place", Name: id})
	}
	g = g.CreateRelation(graph.Relation{ID: "r1", Type: ContainedIn, From: "x", To: "p1"})
	g = g.CreateRelation(graph.Relation{ID: "r2", Type: ContainedIn, From: "x", To: "p2"})

	chain, err := containmentChain(g, "x", 64)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, chain)
}

func TestLowestCommonAncestor(t *testing.T) {
	lca, ok := lowestCommonAncestor(
		[]string{"building", "city", "region"},
		[]string{"other_building", "city", "region"},
	)
	require.True(t, ok)
	assert.Equal(t, "city", lca)

	_, ok = lowestCommonAncestor([]string{"a"}, []string{"b"})
	assert.False(t, ok)

	_, ok = lowestCommonAncestor(nil, []string{"b"})
	assert.False(t, ok)
}

func TestClassifyPair(t *testing.T) {
	tests := []struct {
		name               string
		from, to           string
		fromChain, toChain []string
		want               PairClass
	}{
		{"identical", "a", "a", nil, nil, ClassSameLocation},
		{"ancestor of from", "room", "city", []string{"building", "city"}, nil, ClassNested},
		{"descendant of from", "city", "room", nil, []string{"building", "city"}, ClassNested},
		{"shared immediate container", "a", "b", []string{"city"}, []string{"city"}, ClassSameContainer},
		{"shared ancestor only", "a", "b", []string{"x", "region"}, []string{"y", "region"}, ClassDistant},
		{"unrelated roots", "a", "b", []string{"x"}, []string{"y"}, ClassDistant},
		{"both top level", "a", "b", nil, nil, ClassDistant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPair(tt.from, tt.to, tt.fromChain, tt.toChain)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChainRoot(t *testing.T) {
	assert.Equal(t, "region", chainRoot("room", []string{"building", "city", "region"}))
	assert.Equal(t, "solo", chainRoot("solo", nil))
}

func TestChildBelow(t *testing.T) {
	chain := []string{"building", "city", "region"}
	assert.Equal(t, "building", childBelow("room", chain, "city"))
	assert.Equal(t, "room", childBelow("room", chain, "building"))
	assert.Equal(t, "city", childBelow("room", chain, "region"))
}
