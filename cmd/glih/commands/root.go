// Package commands defines all Cobra CLI commands for the glih binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/audit"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/config"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "glih",
		Short: "GLIH — GenAI-powered knowledge base for logistics operations",
		Long: `GLIH is a retrieval-augmented knowledge base for logistics teams.

It ingests operating procedures, customs notices, carrier contracts, and
other shipping documents into a vector store, then answers operational
questions grounded in that material, with citations back to the sources.

The vector backend is selected via VECTOR_STORE_PROVIDER (local, ann,
pinecone, weaviate, qdrant) and the chat model via MODEL_PROVIDER, either
as environment variables or through a YAML config file (~/.glih/config.yaml).
See 'glih --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env file is a convenience for development; absence
			// is the normal case and not an error.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.glih/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewCollectionsCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
