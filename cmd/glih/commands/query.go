package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/provider"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
)

// NewQueryCmd constructs the `glih query` command, which answers a single
// question from the knowledge base and prints the answer with citations.
func NewQueryCmd() *cobra.Command {
	var collection string
	var topK int
	var style string
	var maxDistance float64
	var filters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the ingested logistics documents",
		Long: `Run one retrieval-augmented query against the vector store.

The question is embedded, the nearest chunks are retrieved and ranked,
and the chat model answers grounded in that context. Citations point back
to the source documents.

Examples:
  glih query "what is the reefer setpoint for pharma shipments?"
  glih query -k 8 --style detailed "how do we handle a customs hold at Rotterdam?"
  glih query --filter source=sop-cold-chain.pdf "maximum door-open time"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = store.Close() }()

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("query: failed to initialise model provider: %w", err)
			}

			pipeline, err := rag.NewCoordinator(store, provider.NewChatGenerator(chatModel), log, getEnvInt("GLIH_TOP_K", 5))
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if collection == "" {
				collection = defaultCollection()
			}

			opts := rag.QueryOptions{TopK: topK, Style: style}
			if cmd.Flags().Changed("max-distance") {
				opts.MaxDistance = &maxDistance
			}
			if len(filters) > 0 {
				opts.Filter, err = parseFilters(filters)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
			}

			answer, err := pipeline.Query(ctx, collection, strings.Join(args, " "), opts)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(answer) //nolint:wrapcheck // CLI output path
			}

			fmt.Println(answer.Answer)
			if len(answer.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range answer.Citations {
					line := fmt.Sprintf("  [%s", c.Source)
					if c.Source == "" {
						line = fmt.Sprintf("  [%s", c.ID)
					}
					if c.Distance != nil {
						line += fmt.Sprintf(" (distance %.3f)", *c.Distance)
					}
					fmt.Printf("%s] %s\n", line, c.Snippet)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to query (default: GLIH_DEFAULT_COLLECTION or logistics)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: 5)")
	cmd.Flags().StringVarP(&style, "style", "s", "", "Answer style: concise, bulleted, detailed, json-list")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Drop results farther than this normalized distance")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full answer as JSON")

	return cmd
}

// parseFilters turns key=value pairs into a metadata filter map.
func parseFilters(pairs []string) (map[string]any, error) {
	filter := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q, want key=value", p)
		}
		filter[key] = value
	}
	return filter, nil
}
