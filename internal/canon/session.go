package canon

import (
	"sync"

	"github.com/ashgale/canon/internal/graph"
)

// Session holds one world's current graph and ledger references and
// replaces them on each successful commit (copy-on-write). All the values
// it hands out are immutable, so readers never need the lock a writer
// holds.
//
// Sessions are fully independent of each other: no shared mutable state.
// The mutex serializes Submit so external callers get the one-writer-per-
// tick ordering the engine assumes; two batches submitted to the same tick
// land in submission order with no merge logic.
type Session struct {
	mu      sync.Mutex
	arbiter *Arbiter
	graph   *graph.Graph
	ledger  *Ledger
	tick    int64
}

// NewSession creates a session over a seed graph with an empty ledger.
func NewSession(a *Arbiter, seed *graph.Graph) *Session {
	return &Session{
		arbiter: a,
		graph:   seed,
		ledger:  NewLedger(),
	}
}

// Restore creates a session from persisted state (graph, ledger, tick).
func Restore(a *Arbiter, g *graph.Graph, l *Ledger, tick int64) *Session {
	return &Session{arbiter: a, graph: g, ledger: l, tick: tick}
}

// Submit validates and commits a patch set at the current tick. On success
// the session's graph and ledger references are swapped to the new values.
// On rejection the session is unchanged and the *BatchError is returned.
func (s *Session) Submit(set PatchSet, proposer string) (*CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.arbiter.Commit(s.graph, s.ledger, set, s.tick, proposer)
	if err != nil {
		return nil, err
	}
	s.graph = res.Graph
	s.ledger = res.Ledger
	return res, nil
}

// AdvanceTick moves the session clock forward by one and returns the new tick.
func (s *Session) AdvanceTick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	return s.tick
}

// Graph returns the current graph value.
func (s *Session) Graph() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Ledger returns the current ledger value.
func (s *Session) Ledger() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

// Tick returns the current tick.
func (s *Session) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}
