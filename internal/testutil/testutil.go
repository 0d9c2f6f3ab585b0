// Package testutil holds deterministic fixtures shared by tests and the
// scenario harness: a fixed wall clock, sequence-numbered batch tokens,
// and a small premade world. Determinism here is what makes golden
// trace files byte-stable across runs.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// SeqTokens generates batch tokens "tok-000001", "tok-000002", ... so
// ledger dumps in golden files stay byte-identical across runs. Unlike
// canon.FixedGenerator it never exhausts.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqTokens struct {
	mu sync.Mutex
	n  int
}

// NewSeqTokens creates a sequential token generator.
func NewSeqTokens() *SeqTokens {
	return &SeqTokens{}
}

// Generate implements canon.TokenGenerator.
func (g *SeqTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("tok-%06d", g.n)
}

// FixedTime is the wall clock used by deterministic tests.
var FixedTime = time.Unix(1700000000, 0).UTC()

// Now returns FixedTime; inject it with canon.WithNow.
func Now() time.Time { return FixedTime }

// ValeWorld builds the standard test world: Greenvale containing the
// Mistwood forest and the village of Brook, with Mira in Brook.
//
//	region.vale (plains, 15 m/unit)
//	├── region.mistwood  at (0, 0)
//	└── village.brook    at (40, 30)
//	    └── char.mira    (stamina 80)
func ValeWorld() *graph.Graph {
	g := graph.New()
	g = g.CreateEntity(graph.Entity{ID: "region.vale", Type: "region", Name: "Greenvale", Props: prop.Map{
		"terrain":         prop.String("plains"),
		"meters_per_unit": prop.Int(15),
	}})
	g = g.CreateEntity(graph.Entity{ID: "region.mistwood", Type: "region", Name: "Mistwood", Props: prop.Map{
		"terrain": prop.String("forest"),
		"grid_x":  prop.Int(0),
		"grid_y":  prop.Int(0),
	}})
	g = g.CreateEntity(graph.Entity{ID: "village.brook", Type: "village", Name: "Brook", Props: prop.Map{
		"grid_x": prop.Int(40),
		"grid_y": prop.Int(30),
	}})
	g = g.CreateEntity(graph.Entity{ID: "char.mira", Type: "character", Name: "Mira", Props: prop.Map{
		"stamina":  prop.Int(80),
		"health":   prop.Int(100),
		"location": prop.String("village.brook"),
	}})
	g = g.CreateRelation(graph.Relation{ID: "rel.mistwood-in-vale", Type: "contained_in", From: "region.mistwood", To: "region.vale"})
	g = g.CreateRelation(graph.Relation{ID: "rel.brook-in-vale", Type: "contained_in", From: "village.brook", To: "region.vale"})
	g = g.CreateRelation(graph.Relation{ID: "rel.mira-in-brook", Type: "contained_in", From: "char.mira", To: "village.brook"})
	return g
}
