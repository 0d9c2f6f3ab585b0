package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgale/canon/internal/prop"
)

func TestPatchJSONRoundTrip(t *testing.T) {
	in := Patch{
		Op:       OpSet,
		Entity:   "char.mira",
		Field:    "mood",
		Value:    prop.String("wary"),
		Proposer: "narrative",
		Tick:     4,
		Meta:     prop.Map{"reason": prop.String("ambush")},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Patch
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Op, out.Op)
	assert.Equal(t, in.Entity, out.Entity)
	assert.Equal(t, in.Field, out.Field)
	assert.True(t, prop.Equal(in.Value, out.Value))
	assert.Equal(t, in.Proposer, out.Proposer)
	assert.Equal(t, in.Tick, out.Tick)
	assert.True(t, prop.Equal(in.Meta, out.Meta))
}

func TestPatchSetJSONDecode(t *testing.T) {
	raw := `[
		{"op":"create_entity","entity":"region.vale","value":{"type":"region","name":"The Vale"}},
		{"op":"increment","entity":"char.mira","field":"stamina","value":5}
	]`

	var set PatchSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))
	require.Len(t, set, 2)
	assert.Equal(t, OpCreateEntity, set[0].Op)
	assert.Equal(t, prop.Int(5), set[1].Value)
}

func TestEntitySpecValidation(t *testing.T) {
	p := Patch{Op: OpCreateEntity, Entity: "x", Value: prop.String("not a map")}
	_, err := p.entitySpec()
	require.Error(t, err)

	p = Patch{Op: OpCreateEntity, Entity: "x", Value: prop.Map{"name": prop.String("x")}}
	_, err = p.entitySpec()
	require.Error(t, err, "type is required")
}

func TestRelationSpecValidation(t *testing.T) {
	p := Patch{Op: OpCreateRelation, Entity: "r", Value: prop.Map{
		"type": prop.String("road"),
		"from": prop.String("a"),
	}}
	_, err := p.relationSpec()
	require.Error(t, err, "to is required")
}

func TestApplyPatchUnknownOp(t *testing.T) {
	_, err := ApplyPatch(seedGraph(t), Patch{Op: "warp", Entity: "x"})
	require.Error(t, err)
}
