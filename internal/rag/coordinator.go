package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/chunk"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// Default chunking geometry, matching the ingestion endpoints' defaults.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Coordinator drives the ingestion and query pipelines against one
// vector store and one generative model. It holds no per-request state;
// all persistent state lives in the store. Safe for concurrent use.
type Coordinator struct {
	store vectorstore.Store
	gen   Generator
	log   *slog.Logger

	// defaultTopK is the retrieval depth when a query does not specify one.
	defaultTopK int
}

// NewCoordinator wires a store and a generator into a Coordinator.
// defaultTopK sets the fallback retrieval depth; values <= 0 become 5.
// gen may be nil for ingest-only use; Query then fails with a clear error.
func NewCoordinator(store vectorstore.Store, gen Generator, log *slog.Logger, defaultTopK int) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Coordinator{store: store, gen: gen, log: log, defaultTopK: defaultTopK}, nil
}

// Ingest normalizes and chunks one document, embeds all chunks in a single
// batch, and stores them with source/doc_id/chunk_id provenance metadata.
// A fresh doc_id is minted per call, so re-ingesting a source never
// overwrites earlier chunks. Empty or whitespace-only text stores nothing
// and is not an error.
func (c *Coordinator) Ingest(ctx context.Context, collection, source, text string, chunkSize, overlap int) (IngestResult, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	chunks := chunk.Split(chunk.Normalize(text), chunkSize, overlap)
	if len(chunks) == 0 {
		return IngestResult{}, nil
	}

	docID := uuid.NewString()
	metadatas := make([]map[string]any, len(chunks))
	for i := range chunks {
		metadatas[i] = map[string]any{
			"source":   source,
			"doc_id":   docID,
			"chunk_id": i,
		}
	}

	if err := c.store.AddDocuments(ctx, collection, chunks, metadatas, nil); err != nil {
		return IngestResult{}, fmt.Errorf("rag: ingest %q: %w", source, err)
	}

	c.log.Info("document ingested",
		slog.String("collection", collection),
		slog.String("source", source),
		slog.String("doc_id", docID),
		slog.Int("chunks", len(chunks)),
	)
	return IngestResult{DocID: docID, Chunks: len(chunks)}, nil
}

// AddTexts stores caller-prepared texts directly, without chunking. Each
// text is normalized first. Used by the raw ingestion endpoint where the
// caller already controls chunk boundaries. Returns the number stored.
func (c *Coordinator) AddTexts(ctx context.Context, collection string, texts []string, metadatas []map[string]any) (int, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return 0, fmt.Errorf("rag: got %d metadatas for %d texts", len(metadatas), len(texts))
	}
	normalized := make([]string, 0, len(texts))
	kept := make([]map[string]any, 0, len(texts))
	for i, t := range texts {
		n := chunk.Normalize(t)
		if n == "" {
			continue
		}
		normalized = append(normalized, n)
		if metadatas != nil {
			kept = append(kept, metadatas[i])
		}
	}
	if len(normalized) == 0 {
		return 0, nil
	}
	if metadatas == nil {
		kept = nil
	}
	if err := c.store.AddDocuments(ctx, collection, normalized, kept, nil); err != nil {
		return 0, fmt.Errorf("rag: add texts: %w", err)
	}
	return len(normalized), nil
}

// Query runs the full retrieval pipeline: embed the question, fetch the
// nearest chunks, filter and rank them, assemble the context, prompt the
// model once, and attach citations. Zero retrieved chunks still produce an
// answer; the model is told there is no context and expected to say so.
func (c *Coordinator) Query(ctx context.Context, collection, question string, opts QueryOptions) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("rag: query text must not be empty")
	}
	if c.gen == nil {
		return nil, fmt.Errorf("rag: no generator configured")
	}

	k := opts.TopK
	if k <= 0 {
		k = c.defaultTopK
	}
	style := resolveStyle(opts.Style)

	results, err := c.store.Query(ctx, collection, vectorstore.SearchRequest{
		Text:        question,
		TopK:        k,
		Filter:      opts.Filter,
		MaxDistance: opts.MaxDistance,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: retrieval: %w", err)
	}

	results = rankResults(results, opts.MaxDistance, k)

	answerText, err := c.gen.Generate(ctx, systemPrompt, buildUserPrompt(joinContext(results), question, style))
	if err != nil {
		return nil, fmt.Errorf("rag: generation: %w", err)
	}

	c.log.Info("query answered",
		slog.String("collection", collection),
		slog.Int("retrieved", len(results)),
		slog.String("style", style),
	)
	return &Answer{
		Query:      question,
		Answer:     answerText,
		Retrieved:  len(results),
		Citations:  buildCitations(results),
		Collection: collection,
		Style:      style,
	}, nil
}

// rankResults applies the max-distance cutoff, orders results so that
// scored results come first by ascending distance and unscored results
// sort last, and truncates to k. Drivers already do most of this; ranking
// again here keeps the pipeline's guarantees independent of any one
// driver's behavior.
func rankResults(results []vectorstore.Result, maxDistance *float64, k int) []vectorstore.Result {
	if maxDistance != nil {
		filtered := results[:0]
		for _, r := range results {
			if r.Distance == nil || *r.Distance <= *maxDistance {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	sort.SliceStable(results, func(i, j int) bool {
		di, dj := results[i].Distance, results[j].Distance
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// joinContext concatenates retrieved texts for the prompt. Results whose
// document text could not be recovered are skipped.
func joinContext(results []vectorstore.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Document != "" {
			parts = append(parts, r.Document)
		}
	}
	return strings.Join(parts, contextSeparator)
}

// buildCitations converts retrieved results into the citation list
// returned alongside the answer.
func buildCitations(results []vectorstore.Result) []Citation {
	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		c := Citation{
			ID:       r.ID,
			Distance: r.Distance,
			Snippet:  snippet(r.Document),
			Metadata: r.Metadata,
		}
		if s, ok := r.Metadata["source"].(string); ok {
			c.Source = s
		}
		if d, ok := r.Metadata["doc_id"].(string); ok {
			c.DocID = d
		}
		c.ChunkID = chunkIDOf(r.Metadata)
		citations = append(citations, c)
	}
	return citations
}

// chunkIDOf reads the chunk_id metadata value, tolerating the numeric
// type drift introduced by JSON round trips through service backends.
func chunkIDOf(metadata map[string]any) int {
	switch v := metadata["chunk_id"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
