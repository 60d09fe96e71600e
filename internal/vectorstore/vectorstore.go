// Package vectorstore defines the storage contract of the retrieval layer
// and its five driver implementations: two embedded stores (exact-search
// local and indexed ann) and three service-backed stores (Pinecone,
// Weaviate, Qdrant). Drivers are constructed by [NewFromEnv] and used
// interchangeably through the [Store] interface.
//
// Every driver embeds internally: callers hand over raw text and a query
// string, never vectors. Result distances are normalized so that lower
// always means more similar, whatever similarity convention the backend
// speaks natively.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// documentKey is the reserved metadata key under which service-backed
// drivers smuggle chunk text into backends that only store vectors plus
// metadata. It is stripped from metadata before results reach callers,
// and user metadata must not use it.
const documentKey = "_document_text"

// EmbedFunc turns a batch of texts into one embedding vector per text,
// in order. Drivers call it for both ingestion batches and query strings.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// SearchRequest describes one similarity query against a collection.
type SearchRequest struct {
	// Text is the query string; the driver embeds it internally.
	Text string

	// TopK is the maximum number of results to return.
	TopK int

	// Filter restricts results to chunks whose metadata contains every
	// listed key with exactly the listed value. Nil means no filtering.
	Filter map[string]any

	// MaxDistance, when set, drops results whose normalized distance
	// exceeds it. Results with no distance are never dropped by it.
	MaxDistance *float64
}

// Result is one retrieved chunk. Distance is normalized (lower is more
// similar) and nil when the backend reported none.
type Result struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance *float64       `json:"distance"`
}

// Stats summarizes one collection.
type Stats struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension,omitempty"`
	Provider  string `json:"provider"`
	IndexType string `json:"index_type,omitempty"`
}

// Health reports backend reachability for the readiness probe.
type Health struct {
	Status      string `json:"status"`
	Provider    string `json:"provider"`
	Collections int    `json:"collections_count"`
	Error       string `json:"error,omitempty"`
}

// Store is the contract every vector store driver satisfies.
//
// Deleting a collection that does not exist is not an error: the desired
// state already holds, so drivers return success. Querying a collection
// that does not exist returns no results rather than an error.
type Store interface {
	// CreateCollection ensures the named collection exists. Drivers whose
	// backend needs the embedding dimensionality up front may defer the
	// actual creation until the first AddDocuments call.
	CreateCollection(ctx context.Context, name string) error

	// DeleteCollection removes the named collection and all its contents.
	// Idempotent: deleting an absent collection succeeds.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// AddDocuments embeds texts as one batch and stores them with their
	// metadata under the given IDs. Nil metadatas and empty IDs are
	// filled in; non-nil slices must match len(texts).
	AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error

	// Query embeds req.Text and returns up to req.TopK nearest chunks,
	// nearest first, after applying req.Filter and req.MaxDistance.
	Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error)

	// CollectionStats returns size and configuration of one collection.
	CollectionStats(ctx context.Context, collection string) (Stats, error)

	// HealthCheck probes the backend. It reports rather than returns
	// errors so readiness handlers can relay the failure detail.
	HealthCheck(ctx context.Context) Health

	// Close releases backend connections and flushes embedded state.
	Close() error
}

// Provider identifies a Store driver.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderANN      Provider = "ann"
	ProviderPinecone Provider = "pinecone"
	ProviderWeaviate Provider = "weaviate"
	ProviderQdrant   Provider = "qdrant"
	// ProviderMilvus is recognized but not yet implemented.
	ProviderMilvus Provider = "milvus"
)

// normalizeAddArgs validates the AddDocuments argument triple and fills
// defaults: fresh UUIDs for missing IDs, empty maps for missing metadata.
func normalizeAddArgs(texts []string, metadatas []map[string]any, ids []string) ([]map[string]any, []string, error) {
	if len(texts) == 0 {
		return nil, nil, fmt.Errorf("vectorstore: no texts to add")
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, nil, fmt.Errorf("vectorstore: got %d metadatas for %d texts", len(metadatas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return nil, nil, fmt.Errorf("vectorstore: got %d ids for %d texts", len(ids), len(texts))
	}

	outMeta := make([]map[string]any, len(texts))
	for i := range texts {
		if metadatas != nil && metadatas[i] != nil {
			outMeta[i] = metadatas[i]
		} else {
			outMeta[i] = map[string]any{}
		}
	}

	outIDs := make([]string, len(texts))
	for i := range texts {
		if ids != nil && ids[i] != "" {
			outIDs[i] = ids[i]
		} else {
			outIDs[i] = uuid.NewString()
		}
	}
	return outMeta, outIDs, nil
}

// embedBatch runs the embedding function and checks it returned one vector
// per text with a consistent dimensionality.
func embedBatch(ctx context.Context, embed EmbedFunc, texts []string) ([][]float32, error) {
	vectors, err := embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("vectorstore: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vectorstore: embedder returned empty vector at position %d", i)
		}
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("vectorstore: %w: vector %d has dimension %d, batch started with %d",
				ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
	}
	return vectors, nil
}

// matchesFilter reports whether metadata satisfies every equality clause
// in filter. Numeric values compare by float64 value so JSON-decoded
// filters match natively typed metadata.
func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if !looseEqual(got, want) {
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// withinMaxDistance applies the optional distance ceiling. Results without
// a distance always pass.
func withinMaxDistance(r Result, max *float64) bool {
	if max == nil || r.Distance == nil {
		return true
	}
	return *r.Distance <= *max
}

// float64Ptr returns a pointer to d.
func float64Ptr(d float64) *float64 { return &d }
