package server

import (
	"context"
	"fmt"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/embedder"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// StorePinger probes the vector store through its HealthCheck contract.
// It satisfies the Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	// store is the vector store to probe.
	store vectorstore.Store
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewStorePinger constructs a StorePinger for the given store and provider name.
func NewStorePinger(store vectorstore.Store, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping runs the store's health check and relays any reported failure.
func (p *StorePinger) Ping(ctx context.Context) error {
	h := p.store.HealthCheck(ctx)
	if h.Status != "healthy" {
		return fmt.Errorf("store unhealthy: %s", h.Error)
	}
	return nil
}

// EmbedderPinger probes the embedding backend with a minimal one-text batch.
// It satisfies the Pinger interface and is used by GET /api/ready.
type EmbedderPinger struct {
	// embed is the embedding backend to probe.
	embed embedder.Embedder
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder.
func NewEmbedderPinger(embed embedder.Embedder) *EmbedderPinger {
	return &EmbedderPinger{embed: embed}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping embeds a single short text and checks a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vectors, err := p.embed.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return fmt.Errorf("embedder returned no vector")
	}
	return nil
}
