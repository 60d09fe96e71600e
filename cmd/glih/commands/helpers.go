package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/embedder"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// buildStore constructs the embedder and the vector store selected by the
// environment. Embedder and store must agree on dimensionality, so they
// are always built together. The caller owns the store and must Close it.
func buildStore(ctx context.Context, log *slog.Logger) (vectorstore.Store, embedder.Embedder, error) {
	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	dim := embedder.DefaultDimensions(embedder.Backend())
	store, err := vectorstore.NewFromEnv(emb.Embed, dim, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise vector store: %w", err)
	}
	return store, emb, nil
}

// defaultCollection resolves the collection used when none is given.
func defaultCollection() string {
	return getEnvOrDefault("GLIH_DEFAULT_COLLECTION", "logistics")
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
