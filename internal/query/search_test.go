package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgale/canon/internal/graph"
)

func searchWorld(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "e1", Type: "region", Name: "Mistwood"})
	g = g.CreateEntity(graph.Entity{ID: "e2", Type: "place", Name: "Mistwood Border Watchtower"})
	g = g.CreateEntity(graph.Entity{ID: "e3", Type: "region", Name: "Greenvale"})
	g = g.CreateEntity(graph.Entity{ID: "e4", Type: "character", Name: "Mira"})
	return g
}

func TestSearchCaseFolded(t *testing.T) {
	g := searchWorld(t)

	for _, text := range []string{"mistwood", "MISTWOOD", "MistWood"} {
		matches := Search(g, text, 0)
		require.NotEmpty(t, matches, text)
		assert.Equal(t, "e1", matches[0].Entity.ID, text)
	}
}

func TestSearchExactWordBeatsSubstring(t *testing.T) {
	g := searchWorld(t)

	matches := Search(g, "mistwood", 0)
	require.Len(t, matches, 2)
	// Both names carry the word; the shorter exact name has no extra
	// words diluting it but scores equal on the single token, so the
	// insertion-order tiebreak puts the region first.
	assert.Equal(t, "e1", matches[0].Entity.ID)
	assert.Equal(t, "e2", matches[1].Entity.ID)

	matches = Search(g, "mist", 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "e1", matches[0].Entity.ID, "substring covers more of the shorter name")
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSearchMultipleTokens(t *testing.T) {
	g := searchWorld(t)

	matches := Search(g, "mistwood watchtower", 0)
	require.NotEmpty(t, matches)
	assert.Equal(t, "e2", matches[0].Entity.ID, "two exact words outrank one")
}

func TestSearchLimitAndNoHits(t *testing.T) {
	g := searchWorld(t)

	assert.Len(t, Search(g, "mi", 1), 1)
	assert.Empty(t, Search(g, "zzz", 0))
	assert.Empty(t, Search(g, "   ", 0))
}

func TestSearchInsertionOrderTiebreak(t *testing.T) {
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "b", Type: "place", Name: "Harbor"})
	g = g.CreateEntity(graph.Entity{ID: "a", Type: "place", Name: "Harbor"})

	matches := Search(g, "harbor", 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].Entity.ID, "first inserted wins the tie")
	assert.Equal(t, "a", matches[1].Entity.ID)
}
