package canon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/prop"
)

// Arbiter validates patch sets against graph invariants and commits them
// atomically. A commit either applies every patch and appends a ledger
// entry, or applies nothing and reports an itemized issue list.
//
// The arbiter assumes one logical writer per session; concurrent callers
// must serialize through a Session.
type Arbiter struct {
	registry *Registry
	log      *slog.Logger
	now      func() time.Time
	tokens   TokenGenerator
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithRegistry installs the type/validator registry.
func WithRegistry(r *Registry) Option {
	return func(a *Arbiter) { a.registry = r }
}

// WithLogger installs the logger used for soft diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(a *Arbiter) { a.log = log }
}

// WithNow installs the wall-clock source for entry timestamps.
// Tests use a fixed clock for stable golden traces.
func WithNow(now func() time.Time) Option {
	return func(a *Arbiter) { a.now = now }
}

// WithTokens installs the batch token generator.
func WithTokens(g TokenGenerator) Option {
	return func(a *Arbiter) { a.tokens = g }
}

// NewArbiter creates an arbiter with an open registry, slog default logger,
// wall clock timestamps, and UUIDv7 batch tokens.
func NewArbiter(opts ...Option) *Arbiter {
	a := &Arbiter{
		registry: NewRegistry(),
		log:      slog.Default(),
		now:      time.Now,
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CommitResult is a successful commit: the new graph value, the new ledger
// value, and the appended entry. The inputs to Commit are untouched.
type CommitResult struct {
	Graph  *graph.Graph
	Ledger *Ledger
	Entry  Entry
}

// Commit validates set against g and, if every patch passes, applies the
// patches in list order, hashes the resulting graph, and appends a ledger
// entry.
//
// Validation walks the batch against successive scratch graph values, so
// in-batch ordering is honored: a patch may target an entity created
// earlier in the same batch, and two patches on the same field resolve to
// last-in-list-order-wins.
//
// On any validation failure the returned error is a *BatchError with one
// issue per failing patch; g and l are returned to the caller unchanged
// (they were never mutated - all work happened on copies).
func (a *Arbiter) Commit(g *graph.Graph, l *Ledger, set PatchSet, tick int64, proposer string) (*CommitResult, error) {
	var issues []PatchIssue

	// Validate and apply against scratch values. The caller's graph is
	// immutable, so "without touching the graph" is structural here.
	working := g
	for i, p := range set {
		if issue := a.checkPatch(working, p, i); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		next, err := ApplyPatch(working, p)
		if err != nil {
			issues = append(issues, PatchIssue{Index: i, Code: CodeMalformed, Reason: err.Error()})
			continue
		}
		working = next
	}

	if len(issues) > 0 {
		return nil, &BatchError{Issues: issues}
	}

	graphHash, err := working.Hash()
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	entryID, err := EntryID(tick, proposer, set, graphHash)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	entry := Entry{
		ID:        entryID,
		Timestamp: a.now(),
		Tick:      tick,
		Proposer:  proposer,
		Token:     a.tokens.Generate(),
		Patches:   set,
		GraphHash: graphHash,
	}

	a.log.Debug("patch set committed",
		"entry", entryID, "tick", tick, "proposer", proposer, "patches", len(set))

	return &CommitResult{
		Graph:  working,
		Ledger: l.Append(entry),
		Entry:  entry,
	}, nil
}

// checkPatch validates one patch against the working graph. nil means valid.
func (a *Arbiter) checkPatch(g *graph.Graph, p Patch, idx int) *PatchIssue {
	fail := func(code IssueCode, format string, args ...any) *PatchIssue {
		return &PatchIssue{Index: idx, Code: code, Reason: fmt.Sprintf(format, args...)}
	}

	if !ValidOps[p.Op] {
		return fail(CodeMalformed, "unknown op %q", p.Op)
	}
	if p.Entity == "" {
		return fail(CodeMalformed, "%s: missing entity id", p.Op)
	}

	switch p.Op {
	case OpSet, OpAdd, OpReplace, OpRemove, OpIncrement, OpDecrement:
		if p.Field == "" {
			return fail(CodeMalformed, "%s %s: missing field", p.Op, p.Entity)
		}
		e, ok := g.GetEntity(p.Entity)
		if !ok {
			return fail(CodeMissingEntity, "%s: entity %q not found", p.Op, p.Entity)
		}
		_, hasField := e.Props[p.Field]

		switch p.Op {
		case OpSet, OpAdd, OpReplace:
			if p.Value == nil {
				return fail(CodeMalformed, "%s %s.%s: missing value", p.Op, p.Entity, p.Field)
			}
			if p.Op == OpAdd && hasField {
				return fail(CodeFieldConflict, "add %s.%s: field already exists", p.Entity, p.Field)
			}
			if p.Op == OpReplace && !hasField {
				return fail(CodeFieldConflict, "replace %s.%s: field does not exist", p.Entity, p.Field)
			}
		case OpRemove:
			// Removing a missing field is tolerated; the entity existing
			// is the contract.
		case OpIncrement, OpDecrement:
			if _, _, err := p.numericDelta(); err != nil {
				return fail(CodeTypeMismatch, "%s %s.%s: %v", p.Op, p.Entity, p.Field, err)
			}
			if hasField {
				if _, isNum := prop.Number(e.Props[p.Field]); !isNum {
					return fail(CodeTypeMismatch, "%s %s.%s: existing value is not numeric", p.Op, p.Entity, p.Field)
				}
			}
		}

	case OpCreateEntity:
		e, err := p.entitySpec()
		if err != nil {
			return fail(CodeTypeMismatch, "create_entity %s: %v", p.Entity, err)
		}
		if _, exists := g.GetEntity(p.Entity); exists {
			return fail(CodeDuplicateID, "create_entity: id %q already exists", p.Entity)
		}
		if !a.registry.AllowsEntityType(e.Type) {
			return fail(CodeUnknownType, "create_entity %s: type %q not admitted", p.Entity, e.Type)
		}

	case OpDeleteEntity:
		if _, ok := g.GetEntity(p.Entity); !ok {
			return fail(CodeMissingEntity, "delete_entity: entity %q not found", p.Entity)
		}

	case OpCreateRelation:
		r, err := p.relationSpec()
		if err != nil {
			return fail(CodeTypeMismatch, "create_relation %s: %v", p.Entity, err)
		}
		if _, exists := g.GetRelation(p.Entity); exists {
			return fail(CodeDuplicateID, "create_relation: id %q already exists", p.Entity)
		}
		if _, ok := g.GetEntity(r.From); !ok {
			return fail(CodeMissingEndpoint, "create_relation %s: from %q not found", p.Entity, r.From)
		}
		if _, ok := g.GetEntity(r.To); !ok {
			return fail(CodeMissingEndpoint, "create_relation %s: to %q not found", p.Entity, r.To)
		}
		if !a.registry.AllowsRelationType(r.Type) {
			return fail(CodeUnknownType, "create_relation %s: type %q not admitted", p.Entity, r.Type)
		}
		// Uniqueness is by relation id only. A semantically duplicate
		// (from, to, type) triple is accepted - parallel edges are
		// legitimate - but flagged for the operator.
		for _, existing := range g.RelationsFrom(r.From, r.Type) {
			if existing.To == r.To {
				a.log.Warn("duplicate relation triple",
					"id", p.Entity, "existing", existing.ID,
					"from", r.From, "to", r.To, "type", r.Type)
				break
			}
		}

	case OpDeleteRelation:
		if _, ok := g.GetRelation(p.Entity); !ok {
			return fail(CodeMissingEntity, "delete_relation: relation %q not found", p.Entity)
		}
	}

	if err := a.registry.Validate(g, p); err != nil {
		return fail(CodeValidatorRejected, "%s %s: %v", p.Op, p.Entity, err)
	}

	return nil
}
