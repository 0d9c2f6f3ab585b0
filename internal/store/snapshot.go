package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/prop"
)

// ErrNoSnapshot reports that the database has no saved session yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is the persisted state of one session: the current graph, the
// full ledger, per-actor discoveries, and the logical clock.
type Snapshot struct {
	Graph     *graph.Graph
	Ledger    *canon.Ledger
	Knowledge map[string]*knowledge.Discoveries
	Tick      int64
}

// SaveSnapshot persists the session atomically: every ledger entry not yet
// stored is appended (existing rows are left untouched via ON CONFLICT DO
// NOTHING), and the single snapshot row is replaced.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.Graph == nil || snap.Ledger == nil {
		return fmt.Errorf("save snapshot: graph and ledger are required")
	}

	graphForm, err := json.Marshal(snap.Graph.CanonicalForm())
	if err != nil {
		return fmt.Errorf("save snapshot: marshal graph: %w", err)
	}
	graphHash, err := snap.Graph.Hash()
	if err != nil {
		return fmt.Errorf("save snapshot: hash graph: %w", err)
	}
	knowledgeJSON, err := marshalKnowledge(snap.Knowledge)
	if err != nil {
		return fmt.Errorf("save snapshot: marshal knowledge: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for seq, entry := range snap.Ledger.Entries() {
		patchesJSON, err := json.Marshal(entry.Patches)
		if err != nil {
			return fmt.Errorf("save snapshot: marshal patches for %s: %w", entry.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries
			(id, seq, tick, proposer, token, timestamp, patches, graph_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			entry.ID,
			seq,
			entry.Tick,
			entry.Proposer,
			entry.Token,
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			string(patchesJSON),
			entry.GraphHash,
		)
		if err != nil {
			return fmt.Errorf("save snapshot: write entry %s: %w", entry.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot (id, graph, graph_hash, knowledge, tick, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			graph = excluded.graph,
			graph_hash = excluded.graph_hash,
			knowledge = excluded.knowledge,
			tick = excluded.tick,
			saved_at = excluded.saved_at
	`,
		string(graphForm),
		graphHash,
		knowledgeJSON,
		snap.Tick,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: write snapshot row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// LoadSnapshot restores the persisted session. The loaded graph is
// re-hashed and checked against the stored hash, so storage corruption
// surfaces here rather than as silently divergent replays later.
func (s *Store) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		graphJSON     string
		graphHash     string
		knowledgeJSON string
		tick          int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT graph, graph_hash, knowledge, tick FROM snapshot WHERE id = 1
	`).Scan(&graphJSON, &graphHash, &knowledgeJSON, &tick)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	g, err := decodeGraph(graphJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	gotHash, err := g.Hash()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: hash graph: %w", err)
	}
	if gotHash != graphHash {
		return Snapshot{}, fmt.Errorf("load snapshot: graph hash mismatch: stored %s, computed %s", graphHash, gotHash)
	}

	kv, err := unmarshalKnowledge(knowledgeJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	ledger, err := s.LoadLedger(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	return Snapshot{Graph: g, Ledger: ledger, Knowledge: kv, Tick: tick}, nil
}

// LoadLedger reads every persisted ledger entry in seq order.
func (s *Store) LoadLedger(ctx context.Context) (*canon.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tick, proposer, token, timestamp, patches, graph_hash
		FROM ledger_entries ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	var entries []canon.Entry
	for rows.Next() {
		var (
			e           canon.Entry
			ts, patches string
		)
		if err := rows.Scan(&e.ID, &e.Tick, &e.Proposer, &e.Token, &ts, &patches, &e.GraphHash); err != nil {
			return nil, fmt.Errorf("load ledger: scan: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("load ledger: parse timestamp for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(patches), &e.Patches); err != nil {
			return nil, fmt.Errorf("load ledger: decode patches for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	return canon.FromEntries(entries), nil
}

// EntryCount reports how many ledger entries are persisted.
func (s *Store) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// decodeGraph rebuilds a graph from its canonical JSON form.
func decodeGraph(raw string) (*graph.Graph, error) {
	v, err := prop.UnmarshalValue([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	m, ok := v.(prop.Map)
	if !ok {
		return nil, fmt.Errorf("decode graph: expected object, got %T", v)
	}
	return graph.FromCanonicalForm(m)
}

// marshalKnowledge serializes per-actor discoveries as actor -> sorted ids.
func marshalKnowledge(kv map[string]*knowledge.Discoveries) (string, error) {
	out := make(map[string][]string, len(kv))
	for actor, d := range kv {
		if d == nil {
			continue
		}
		out[actor] = d.IDs()
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal knowledge: %w", err)
	}
	return string(raw), nil
}

func unmarshalKnowledge(raw string) (map[string]*knowledge.Discoveries, error) {
	var flat map[string][]string
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return nil, fmt.Errorf("decode knowledge: %w", err)
	}
	out := make(map[string]*knowledge.Discoveries, len(flat))
	for actor, ids := range flat {
		out[actor] = knowledge.NewDiscoveries(ids...)
	}
	return out, nil
}
