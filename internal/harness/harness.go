// Package harness runs YAML conformance scenarios against a full session:
// CUE-seeded world, arbiter commits, travel routes, queries. Every run is
// deterministic (fixed clock, sequential tokens), so the executed trace
// can be pinned with golden files.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/prop"
	"github.com/ashgale/canon/internal/query"
	"github.com/ashgale/canon/internal/seed"
	"github.com/ashgale/canon/internal/testutil"
	"github.com/ashgale/canon/internal/travel"
)

// TraceEvent is one executed step's outcome. Keys are stable per event
// type; the whole trace serializes canonically for golden comparison.
type TraceEvent map[string]any

// Result is the final state after running a scenario.
type Result struct {
	Trace     []TraceEvent
	Session   *canon.Session
	Knowledge map[string]*knowledge.Discoveries
}

// Run executes a scenario from seed to final assertion. Step failures that
// the scenario does not expect abort the run with an error; expected
// rejections are recorded in the trace and execution continues.
func Run(s *Scenario) (*Result, error) {
	source := s.WorldSource
	if s.World != "" {
		raw, err := os.ReadFile(s.World)
		if err != nil {
			return nil, fmt.Errorf("read world: %w", err)
		}
		source = string(raw)
	}
	world, err := seed.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile world: %w", err)
	}

	arb := canon.NewArbiter(
		canon.WithNow(testutil.Now),
		canon.WithTokens(testutil.NewSeqTokens()),
	)
	session := canon.NewSession(arb, graph.New())

	if _, err := session.Submit(world.PatchSet("seed"), "seed"); err != nil {
		return nil, fmt.Errorf("seed world: %w", err)
	}

	kv := map[string]*knowledge.Discoveries{}
	for actor, ids := range world.Discoveries() {
		kv[actor] = knowledge.NewDiscoveries(ids...)
	}

	engine := travel.NewEngine(travel.Config{})

	res := &Result{Session: session, Knowledge: kv}
	for i, step := range s.Steps {
		var (
			event TraceEvent
			err   error
		)
		switch {
		case step.Commit != nil:
			event, err = runCommit(session, step.Commit, i)
		case step.Route != nil:
			event, err = runRoute(session, engine, kv, step.Route, i)
		case step.Discover != nil:
			event = runDiscover(kv, step.Discover, i)
		case step.Query != nil:
			event, err = runQuery(session.Graph(), step.Query, i)
		case step.Search != nil:
			event = runSearch(session.Graph(), step.Search, i)
		default:
			err = fmt.Errorf("empty step")
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		res.Trace = append(res.Trace, event)
	}

	for i, a := range s.Assertions {
		if err := assert(res, a); err != nil {
			return nil, fmt.Errorf("assertion %d (%s): %w", i, a.Type, err)
		}
	}

	return res, nil
}

func runCommit(session *canon.Session, step *CommitStep, idx int) (TraceEvent, error) {
	set, err := buildPatchSet(step.Patches)
	if err != nil {
		return nil, err
	}
	session.AdvanceTick()

	result, err := session.Submit(set, step.Proposer)
	if err != nil {
		var batchErr *canon.BatchError
		if !errors.As(err, &batchErr) {
			return nil, err
		}
		if !step.ExpectRejected {
			return nil, fmt.Errorf("unexpected rejection: %w", batchErr)
		}
		issues := make([]any, len(batchErr.Issues))
		for i, issue := range batchErr.Issues {
			issues[i] = map[string]any{
				"index":  issue.Index,
				"code":   string(issue.Code),
				"reason": issue.Reason,
			}
		}
		return TraceEvent{
			"type":      "commit",
			"step":      idx,
			"committed": false,
			"issues":    issues,
		}, nil
	}
	if step.ExpectRejected {
		return nil, fmt.Errorf("expected rejection but batch committed as %s", result.Entry.ID)
	}
	return TraceEvent{
		"type":       "commit",
		"step":       idx,
		"committed":  true,
		"entry_id":   result.Entry.ID,
		"token":      result.Entry.Token,
		"graph_hash": result.Entry.GraphHash,
	}, nil
}

func runRoute(session *canon.Session, engine *travel.Engine, kv map[string]*knowledge.Discoveries, step *RouteStep, idx int) (TraceEvent, error) {
	var view knowledge.View = knowledge.All{}
	if step.Actor != "" {
		if d, ok := kv[step.Actor]; ok {
			view = d
		} else {
			view = knowledge.NewDiscoveries()
		}
	}

	route := engine.CalculateRoute(context.Background(), session.Graph(), view, step.From, step.To, travel.Preferences{
		Transport: step.Transport,
		Weather:   step.Weather,
		Stamina:   step.Stamina,
		Health:    step.Health,
	})

	event := TraceEvent{
		"type":    "route",
		"step":    idx,
		"success": route.Success,
		"from":    route.From,
		"to":      route.To,
	}
	if route.Success {
		event["class"] = string(route.Class)
		event["segments"] = len(route.Segments)
		event["distance_m"] = route.DistanceMeters
		event["estimated_minutes"] = route.EstimatedMinutes
		event["algorithm"] = route.AlgorithmUsed
	} else {
		event["reason"] = route.Reason
	}

	if step.Move && route.Success && step.Actor != "" {
		session.AdvanceTick()
		result, err := session.Submit(travel.MovePatches(step.Actor, route, step.Actor), step.Actor)
		if err != nil {
			return nil, fmt.Errorf("move commit: %w", err)
		}
		event["move_entry_id"] = result.Entry.ID
	}
	return event, nil
}

func runDiscover(kv map[string]*knowledge.Discoveries, step *DiscoverStep, idx int) TraceEvent {
	d, ok := kv[step.Actor]
	if !ok {
		d = knowledge.NewDiscoveries()
		kv[step.Actor] = d
	}
	d.Discover(step.Entity)
	return TraceEvent{
		"type":   "discover",
		"step":   idx,
		"actor":  step.Actor,
		"entity": step.Entity,
	}
}

func runQuery(g *graph.Graph, step *QueryStep, idx int) (TraceEvent, error) {
	req := query.Request{
		Kind:      query.Kind(step.Kind),
		ID:        step.ID,
		Type:      step.Type,
		Field:     step.Field,
		Direction: step.Direction,
		Limit:     step.Limit,
	}
	if step.Value != nil {
		v, err := prop.FromGo(step.Value)
		if err != nil {
			return nil, fmt.Errorf("query value: %w", err)
		}
		req.Value = v
	}

	resp, err := query.Execute(g, req)
	if err != nil {
		return nil, err
	}

	entityIDs := make([]any, len(resp.Entities))
	for i, e := range resp.Entities {
		entityIDs[i] = e.ID
	}
	relationIDs := make([]any, len(resp.Relations))
	for i, r := range resp.Relations {
		relationIDs[i] = r.ID
	}
	return TraceEvent{
		"type":      "query",
		"step":      idx,
		"kind":      step.Kind,
		"entities":  entityIDs,
		"relations": relationIDs,
	}, nil
}

func runSearch(g *graph.Graph, step *SearchStep, idx int) TraceEvent {
	matches := query.Search(g, step.Text, step.Limit)
	hits := make([]any, len(matches))
	for i, m := range matches {
		hits[i] = map[string]any{"id": m.Entity.ID, "score": m.Score}
	}
	return TraceEvent{
		"type": "search",
		"step": idx,
		"text": step.Text,
		"hits": hits,
	}
}

func buildPatchSet(defs []PatchDef) (canon.PatchSet, error) {
	set := make(canon.PatchSet, len(defs))
	for i, d := range defs {
		p := canon.Patch{
			Op:     canon.Op(d.Op),
			Entity: d.Entity,
			Field:  d.Field,
		}
		if d.Value != nil {
			v, err := prop.FromGo(normalizeYAML(d.Value))
			if err != nil {
				return nil, fmt.Errorf("patch %d value: %w", i, err)
			}
			p.Value = v
		}
		set[i] = p
	}
	return set, nil
}

// normalizeYAML rewrites map[any]any (older YAML decodings) into
// map[string]any so property conversion accepts nested structures.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	default:
		return v
	}
}
