package server

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// fakePipeline is a canned pipeline for handler tests.
type fakePipeline struct {
	addTextsN   int
	addTextsErr error

	ingestRes  rag.IngestResult
	ingestErr  error
	ingested   []string // sources passed to Ingest, in order
	chunkSizes []int
	overlaps   []int

	answer   *rag.Answer
	queryErr error
	lastOpts rag.QueryOptions
	lastColl string
}

func (f *fakePipeline) Ingest(ctx context.Context, collection, source, text string, chunkSize, overlap int) (rag.IngestResult, error) {
	f.ingested = append(f.ingested, source)
	f.chunkSizes = append(f.chunkSizes, chunkSize)
	f.overlaps = append(f.overlaps, overlap)
	return f.ingestRes, f.ingestErr
}

func (f *fakePipeline) AddTexts(ctx context.Context, collection string, texts []string, metadatas []map[string]any) (int, error) {
	if f.addTextsErr != nil {
		return 0, f.addTextsErr
	}
	if f.addTextsN > 0 {
		return f.addTextsN, nil
	}
	return len(texts), nil
}

func (f *fakePipeline) Query(ctx context.Context, collection, question string, opts rag.QueryOptions) (*rag.Answer, error) {
	f.lastColl = collection
	f.lastOpts = opts
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &rag.Answer{Query: question, Answer: "ok", Collection: collection, Style: "concise"}, nil
}

// fakeVectorStore is a canned vectorstore.Store for collection endpoints.
type fakeVectorStore struct {
	collections []string
	stats       vectorstore.Stats
	statsErr    error
	deleteErr   error
	createErr   error
	deleted     []string
	created     []string
	health      vectorstore.Health
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string) error {
	f.created = append(f.created, name)
	return f.createErr
}

func (f *fakeVectorStore) DeleteCollection(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	return f.collections, nil
}

func (f *fakeVectorStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, collection string, req vectorstore.SearchRequest) ([]vectorstore.Result, error) {
	return nil, nil
}

func (f *fakeVectorStore) CollectionStats(ctx context.Context, collection string) (vectorstore.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeVectorStore) HealthCheck(ctx context.Context) vectorstore.Health { return f.health }
func (f *fakeVectorStore) Close() error                                       { return nil }

// newTestServer wires a Server with fakes and a hermetic metrics registry.
func newTestServer(t *testing.T, p pipeline, store vectorstore.Store, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Provider == "" {
		cfg.Provider = "local"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	s, err := New(p, store, nil, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}
