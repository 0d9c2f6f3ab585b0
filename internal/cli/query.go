package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/prop"
	"github.com/ashgale/canon/internal/query"
)

// NewQueryCommand runs structured queries and free-text search against
// the session graph.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	var (
		kind      string
		id        string
		typ       string
		field     string
		value     string
		direction string
		limit     int
		search    string
		actor     string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the session graph",
		Long: `Query runs a structured lookup (--kind entity|entities_by_type|
relations_of|connected|by_property) or a free-text name search
(--search) against the current graph. With --actor, results are
filtered to entities that actor has discovered. Empty results are
not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			if (search == "") == (kind == "") {
				return NewExitError(ExitCommandError, "exactly one of --kind or --search is required")
			}

			state, err := openSession(opts.DBPath, true)
			if err != nil {
				return err
			}
			defer state.close()

			g := state.session.Graph()
			view := state.viewFor(actor)

			if search != "" {
				matches := query.Search(g, search, limit)
				hits := make([]map[string]any, 0, len(matches))
				lines := make([]string, 0, len(matches))
				for _, m := range matches {
					if !view.IsDiscovered(m.Entity.ID) {
						continue
					}
					hits = append(hits, map[string]any{
						"id":    m.Entity.ID,
						"name":  m.Entity.Name,
						"score": m.Score,
					})
					lines = append(lines, fmt.Sprintf("%s  %s (%.2f)", m.Entity.ID, m.Entity.Name, m.Score))
				}
				if len(lines) == 0 {
					lines = append(lines, "no matches")
				}
				return out.Successf(map[string]any{"hits": hits}, "%s", strings.Join(lines, "\n"))
			}

			req := query.Request{
				Kind:      query.Kind(kind),
				ID:        id,
				Type:      typ,
				Field:     field,
				Direction: direction,
				Limit:     limit,
			}
			if value != "" {
				v, err := parseValue(value)
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("parse --value %q", value), err)
				}
				req.Value = v
			}

			resp, err := query.Execute(g, req)
			if err != nil {
				return WrapExitError(ExitCommandError, "query", err)
			}

			lines := make([]string, 0, len(resp.Entities)+len(resp.Relations))
			entities := resp.Entities[:0:0]
			for _, e := range resp.Entities {
				if !view.IsDiscovered(e.ID) {
					continue
				}
				entities = append(entities, e)
				lines = append(lines, fmt.Sprintf("%s  [%s]  %s", e.ID, e.Type, e.Name))
			}
			relations := resp.Relations[:0:0]
			for _, r := range resp.Relations {
				if !view.IsDiscovered(r.From) || !view.IsDiscovered(r.To) {
					continue
				}
				relations = append(relations, r)
				lines = append(lines, fmt.Sprintf("%s  %s -[%s]-> %s", r.ID, r.From, r.Type, r.To))
			}
			if len(lines) == 0 {
				lines = append(lines, "no results")
			}
			return out.Successf(map[string]any{
				"entities":  entities,
				"relations": relations,
			}, "%s", strings.Join(lines, "\n"))
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "query kind (entity, entities_by_type, relations_of, connected, by_property)")
	cmd.Flags().StringVar(&id, "id", "", "subject entity id")
	cmd.Flags().StringVar(&typ, "type", "", "entity or relation type")
	cmd.Flags().StringVar(&field, "field", "", "property field for by_property")
	cmd.Flags().StringVar(&value, "value", "", "property value for by_property (JSON literal or bare string)")
	cmd.Flags().StringVar(&direction, "direction", "", "relation direction for connected (out, in, both)")
	cmd.Flags().IntVar(&limit, "limit", 0, "truncate entity results (0: no limit)")
	cmd.Flags().StringVar(&search, "search", "", "free-text name search")
	cmd.Flags().StringVar(&actor, "actor", "", "filter results to this actor's discoveries")
	return cmd
}

// parseValue reads a flag value as a JSON literal, falling back to a
// plain string so `--value forest` works without quoting.
func parseValue(s string) (prop.Value, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return prop.String(s), nil
	}
	return prop.UnmarshalValue(raw)
}
