package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

func queryWorld(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "region.vale", Type: "region", Name: "Greenvale", Props: prop.Map{
		"terrain": prop.String("plains"),
	}})
	g = g.CreateEntity(graph.Entity{ID: "region.mistwood", Type: "region", Name: "Mistwood", Props: prop.Map{
		"terrain": prop.String("forest"),
	}})
	g = g.CreateEntity(graph.Entity{ID: "char.mira", Type: "character", Name: "Mira", Props: prop.Map{
		"stamina": prop.Int(80),
	}})
	g = g.CreateEntity(graph.Entity{ID: "char.tomas", Type: "character", Name: "Tomas", Props: prop.Map{
		"stamina": prop.Int(80),
	}})
	g = g.CreateRelation(graph.Relation{ID: "rel.1", Type: "located_in", From: "char.mira", To: "region.vale"})
	g = g.CreateRelation(graph.Relation{ID: "rel.2", Type: "located_in", From: "char.tomas", To: "region.vale"})
	g = g.CreateRelation(graph.Relation{ID: "rel.3", Type: "adjacent_to", From: "region.vale", To: "region.mistwood"})
	return g
}

func TestExecuteEntity(t *testing.T) {
	g := queryWorld(t)

	resp, err := Execute(g, Request{Kind: KindEntity, ID: "char.mira"})
	require.NoError(t, err)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "Mira", resp.Entities[0].Name)

	resp, err = Execute(g, Request{Kind: KindEntity, ID: "char.ghost"})
	require.NoError(t, err, "missing entity is an empty response, not an error")
	assert.Empty(t, resp.Entities)

	_, err = Execute(g, Request{Kind: KindEntity})
	assert.Error(t, err)
}

func TestExecuteEntitiesByType(t *testing.T) {
	g := queryWorld(t)

	resp, err := Execute(g, Request{Kind: KindEntitiesByType, Type: "character"})
	require.NoError(t, err)
	require.Len(t, resp.Entities, 2)
	assert.Equal(t, "char.mira", resp.Entities[0].ID, "insertion order")
	assert.Equal(t, "char.tomas", resp.Entities[1].ID)

	resp, err = Execute(g, Request{Kind: KindEntitiesByType, Type: "character", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Entities, 1)
}

func TestExecuteRelationsOf(t *testing.T) {
	g := queryWorld(t)

	resp, err := Execute(g, Request{Kind: KindRelationsOf, ID: "region.vale"})
	require.NoError(t, err)
	assert.Len(t, resp.Relations, 3)

	resp, err = Execute(g, Request{Kind: KindRelationsOf, ID: "region.vale", Type: "adjacent_to"})
	require.NoError(t, err)
	require.Len(t, resp.Relations, 1)
	assert.Equal(t, "rel.3", resp.Relations[0].ID)
}

func TestExecuteConnected(t *testing.T) {
	g := queryWorld(t)

	resp, err := Execute(g, Request{Kind: KindConnected, ID: "region.vale", Type: "located_in", Direction: "in"})
	require.NoError(t, err)
	require.Len(t, resp.Entities, 2)
	assert.Equal(t, "char.mira", resp.Entities[0].ID)

	resp, err = Execute(g, Request{Kind: KindConnected, ID: "char.mira", Type: "located_in", Direction: "out"})
	require.NoError(t, err)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "region.vale", resp.Entities[0].ID)

	_, err = Execute(g, Request{Kind: KindConnected, ID: "char.mira", Type: "located_in", Direction: "sideways"})
	assert.Error(t, err)
}

func TestExecuteByProperty(t *testing.T) {
	g := queryWorld(t)

	resp, err := Execute(g, Request{Kind: KindByProperty, Field: "terrain", Value: prop.String("forest")})
	require.NoError(t, err)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "region.mistwood", resp.Entities[0].ID)

	resp, err = Execute(g, Request{Kind: KindByProperty, Field: "stamina", Value: prop.Int(80)})
	require.NoError(t, err)
	assert.Len(t, resp.Entities, 2)
}

func TestExecuteUnknownKind(t *testing.T) {
	_, err := Execute(queryWorld(t), Request{Kind: "vibes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query kind")
}

func TestRequestJSONRoundTrip(t *testing.T) {
	raw := []byte(`{"kind":"by_property","field":"stamina","value":80,"limit":3}`)

	var req Request
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, KindByProperty, req.Kind)
	assert.Equal(t, "stamina", req.Field)
	assert.Equal(t, 3, req.Limit)
	assert.True(t, prop.Equal(prop.Int(80), req.Value))
}
