package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashgale/canon/internal/canon"
)

// NewLogCommand prints the ledger, newest entry last.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the session ledger",
		Long: `Log prints the append-only ledger of committed entries in order.
--limit shows only the most recent entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			state, err := openSession(opts.DBPath, true)
			if err != nil {
				return err
			}
			defer state.close()

			entries := state.session.Ledger().Entries()
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			lines := make([]string, 0, len(entries))
			for _, e := range entries {
				lines = append(lines, renderEntry(e))
			}
			if len(lines) == 0 {
				lines = append(lines, "ledger is empty")
			}
			return out.Successf(map[string]any{
				"entries": entries,
				"total":   state.session.Ledger().Len(),
			}, "%s", strings.Join(lines, "\n"))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N entries (0: all)")
	return cmd
}

func renderEntry(e canon.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tick %d  %s  by %s  (%d patches)",
		e.Tick, e.ID, e.Proposer, len(e.Patches))
	for _, p := range e.Patches {
		fmt.Fprintf(&sb, "\n    %s %s", p.Op, p.Entity)
		if p.Field != "" {
			fmt.Fprintf(&sb, ".%s", p.Field)
		}
	}
	return sb.String()
}
