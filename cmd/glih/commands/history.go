package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/history"
)

// NewHistoryCmd constructs the `glih history` command, which lists recent
// ingest and query events recorded by the server.
func NewHistoryCmd() *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ingest and query activity",
		Long: `List recent activity recorded in the request history database.

The serve command records one event per ingestion and per query. Use
--kind to restrict the listing to one event type.

Examples:
  glih history
  glih history --kind query -n 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("GLIH_HISTORY_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = history.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}
			hs, err := history.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer func() { _ = hs.Close() }()

			switch kind {
			case "", string(history.KindIngest), string(history.KindQuery):
			default:
				return fmt.Errorf("history: unknown --kind %q, want ingest or query", kind)
			}

			events, err := hs.Recent(ctx, history.Kind(kind), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(events) == 0 {
				fmt.Println("no recorded events")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%s  %-6s  %-12s  count=%-4d  %s\n",
					e.CreatedAt.Format(time.RFC3339), e.Kind, e.Collection, e.Count, e.Subject)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Restrict to one event kind: ingest or query")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")

	return cmd
}
