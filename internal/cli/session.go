package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/store"
)

// sessionState bundles the open database with the live session restored
// from it. Commands mutate the session, then call save to persist.
type sessionState struct {
	store     *store.Store
	session   *canon.Session
	knowledge map[string]*knowledge.Discoveries
	fresh     bool
}

// openSession opens the database at path and restores the persisted
// session. With mustExist, a database without a snapshot is a command
// error; otherwise a fresh empty session is returned.
func openSession(path string, mustExist bool) (*sessionState, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open database %s", path), err)
	}

	arb := canon.NewArbiter()

	snap, err := st.LoadSnapshot(context.Background())
	if errors.Is(err, store.ErrNoSnapshot) {
		if mustExist {
			st.Close()
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("no session in %s: run 'canon seed' first", path))
		}
		return &sessionState{
			store:     st,
			session:   canon.NewSession(arb, graph.New()),
			knowledge: map[string]*knowledge.Discoveries{},
			fresh:     true,
		}, nil
	}
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "load session", err)
	}

	sess := canon.Restore(arb, snap.Graph, snap.Ledger, snap.Tick)
	kv := snap.Knowledge
	if kv == nil {
		kv = map[string]*knowledge.Discoveries{}
	}
	return &sessionState{store: st, session: sess, knowledge: kv}, nil
}

// save persists the session state back to the store.
func (s *sessionState) save(ctx context.Context) error {
	err := s.store.SaveSnapshot(ctx, store.Snapshot{
		Graph:     s.session.Graph(),
		Ledger:    s.session.Ledger(),
		Knowledge: s.knowledge,
		Tick:      s.session.Tick(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "save session", err)
	}
	return nil
}

func (s *sessionState) close() {
	s.store.Close()
}

// viewFor returns the knowledge view for an actor; an empty actor means
// the unrestricted admin view.
func (s *sessionState) viewFor(actor string) knowledge.View {
	if actor == "" {
		return knowledge.All{}
	}
	if d, ok := s.knowledge[actor]; ok {
		return d
	}
	return knowledge.NewDiscoveries()
}
