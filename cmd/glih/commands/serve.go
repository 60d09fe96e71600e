package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/history"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/provider"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/server"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// NewServeCmd constructs the `glih serve` command, which starts the HTTP
// server exposing the ingestion and query API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GLIH HTTP server",
		Long: `Start the GLIH HTTP server on localhost.

The server exposes REST endpoints for document ingestion (raw text, file
upload, URL fetch), retrieval-augmented queries, and collection
administration, plus health/readiness probes and Prometheus metrics.

Set GLIH_API_KEY to require Bearer authentication on data routes; probes
and /metrics stay open for orchestrators either way.

Examples:
  glih serve
  glih serve --port 9090
  VECTOR_STORE_PROVIDER=qdrant MODEL_PROVIDER=openai glih serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			storeProvider := getEnvOrDefault("VECTOR_STORE_PROVIDER", string(vectorstore.ProviderLocal))
			log.Info("serve starting",
				slog.String("vector_store", storeProvider),
				slog.String("model_provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")),
			)

			store, emb, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = store.Close() }()

			// One registry serves both the store latency histogram and the
			// HTTP metrics, all scraped from /metrics.
			registry := prometheus.NewRegistry()
			store = vectorstore.Instrument(store, registry, storeProvider)

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised",
				slog.String("backend", string(providerCfg.Backend)),
				slog.String("model", providerCfg.ModelName()),
			)

			pipeline, err := rag.NewCoordinator(store, provider.NewChatGenerator(chatModel), log, getEnvInt("GLIH_TOP_K", 5))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open the request history store. GLIH_HISTORY_DB overrides the
			// default path (~/.glih/history.db); "disabled" turns it off.
			var events history.EventStore
			dbPath := os.Getenv("GLIH_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						events = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via GLIH_HISTORY_DB=disabled")
			}

			srv, err := server.New(pipeline, store, events, &server.Config{
				Host:              host,
				Port:              port,
				Logger:            log,
				Pingers:           []server.Pinger{server.NewStorePinger(store, storeProvider), server.NewEmbedderPinger(emb)},
				APIKey:            os.Getenv("GLIH_API_KEY"),
				DefaultCollection: defaultCollection(),
				Provider:          storeProvider,
				Model:             providerCfg.ModelName(),
				Registry:          registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("GLIH_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("GLIH_PORT", 8080), "TCP port to listen on")

	return cmd
}
