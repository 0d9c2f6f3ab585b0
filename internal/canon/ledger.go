package canon

import (
	"fmt"
	"time"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// Entry is one committed patch batch in the canon ledger.
//
// ID is a content-addressed hash over {tick, proposer, patches, resulting
// graph hash}. Timestamp and Token are deliberately excluded from the hash:
// replaying the same history must reproduce the same entry IDs regardless
// of wall clock or batch correlation tokens.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tick      int64     `json:"tick"`
	Proposer  string    `json:"proposer"`
	Token     string    `json:"token,omitempty"`
	Patches   PatchSet  `json:"patches"`
	GraphHash string    `json:"graph_hash"`
}

// EntryID computes the content-addressed id for a ledger entry.
func EntryID(tick int64, proposer string, patches PatchSet, graphHash string) (string, error) {
	list := make(prop.List, len(patches))
	for i, p := range patches {
		list[i] = p.canonicalForm()
	}
	obj := prop.Map{
		"tick":       prop.Int(tick),
		"proposer":   prop.String(proposer),
		"patches":    list,
		"graph_hash": prop.String(graphHash),
	}
	id, err := prop.HashCanonical(prop.DomainEntry, obj)
	if err != nil {
		return "", fmt.Errorf("entry id: %w", err)
	}
	return id, nil
}

// Ledger is the append-only list of committed patch batches. Ledger values
// are immutable: Append returns a new ledger and never touches prior
// entries, so an old ledger reference stays valid forever.
type Ledger struct {
	entries []Entry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append returns a new ledger with e appended. The entries slice is copied
// with exact capacity so no future append can alias the old value.
func (l *Ledger) Append(e Entry) *Ledger {
	entries := make([]Entry, len(l.entries), len(l.entries)+1)
	copy(entries, l.entries)
	return &Ledger{entries: append(entries, e)}
}

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a copy of all entries in append order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Entry returns the entry at index i (append order).
func (l *Ledger) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Head returns the most recent entry.
func (l *Ledger) Head() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// FromEntries rebuilds a ledger from persisted entries in append order.
func FromEntries(entries []Entry) *Ledger {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return &Ledger{entries: out}
}

// ApplyFunc applies one patch to a graph. Replay uses the same ApplyPatch
// the arbiter commits with; the parameter exists so tests can instrument it.
type ApplyFunc func(*graph.Graph, Patch) (*graph.Graph, error)

// Replay folds every entry's patches, in entry order, over seed.
//
// Determinism contract: replaying twice from the same seed and ledger
// yields identical graphs. This is the basis for audit, rollback, and
// "what did the world look like at tick N" queries.
func (l *Ledger) Replay(seed *graph.Graph, apply ApplyFunc) (*graph.Graph, error) {
	return l.ReplayUpTo(seed, apply, len(l.entries))
}

// ReplayUpTo folds only the first n entries, yielding the world as it
// stood after entry n-1.
func (l *Ledger) ReplayUpTo(seed *graph.Graph, apply ApplyFunc, n int) (*graph.Graph, error) {
	if apply == nil {
		apply = ApplyPatch
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	g := seed
	for i := 0; i < n; i++ {
		for j, p := range l.entries[i].Patches {
			next, err := apply(g, p)
			if err != nil {
				return nil, fmt.Errorf("replay entry %d patch %d: %w", i, j, err)
			}
			g = next
		}
	}
	return g, nil
}

// VerifyReplay replays the ledger twice from seed and checks both runs
// land on the recorded head graph hash. Returns the replayed graph.
func (l *Ledger) VerifyReplay(seed *graph.Graph) (*graph.Graph, error) {
	g1, err := l.Replay(seed, nil)
	if err != nil {
		return nil, err
	}
	g2, err := l.Replay(seed, nil)
	if err != nil {
		return nil, err
	}
	if !graph.Equal(g1, g2) {
		return nil, fmt.Errorf("replay diverged between runs")
	}
	if head, ok := l.Head(); ok {
		h, err := g1.Hash()
		if err != nil {
			return nil, err
		}
		if h != head.GraphHash {
			return nil, fmt.Errorf("replay hash %s does not match recorded head %s", h, head.GraphHash)
		}
	}
	return g1, nil
}
