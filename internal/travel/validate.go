package travel

import (
	"fmt"

	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
)

// RouteIssue describes one problem found while revalidating a route.
type RouteIssue struct {
	Segment int    `json:"segment"`
	Reason  string `json:"reason"`
}

func (i RouteIssue) String() string {
	return fmt.Sprintf("segment %d: %s", i.Segment, i.Reason)
}

// ValidateRoute re-checks a previously computed route against the current
// graph and knowledge view: every segment endpoint must still exist and
// the destination must still be known. It mutates nothing and returns an
// issue list; an empty list means the route is still good.
func (e *Engine) ValidateRoute(g *graph.Graph, kv knowledge.View, route RouteResult) []RouteIssue {
	var issues []RouteIssue

	if !kv.IsDiscovered(route.To) {
		issues = append(issues, RouteIssue{Segment: -1, Reason: ReasonUnknownDestination})
	}

	for i, seg := range route.Segments {
		if _, ok := g.GetEntity(seg.From); !ok {
			issues = append(issues, RouteIssue{Segment: i, Reason: fmt.Sprintf("from %q: %s", seg.From, ReasonMissingEntity)})
		}
		if _, ok := g.GetEntity(seg.To); !ok {
			issues = append(issues, RouteIssue{Segment: i, Reason: fmt.Sprintf("to %q: %s", seg.To, ReasonMissingEntity)})
		}
	}

	if len(route.Segments) == 0 && route.Success {
		if _, ok := g.GetEntity(route.To); !ok {
			issues = append(issues, RouteIssue{Segment: -1, Reason: fmt.Sprintf("destination %q: %s", route.To, ReasonMissingEntity)})
		}
	}

	return issues
}
