package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// fakeStore records AddDocuments calls and serves canned query results.
type fakeStore struct {
	addedTexts [][]string
	addedMetas [][]map[string]any
	results    []vectorstore.Result
	queryReq   vectorstore.SearchRequest
	queryErr   error
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string) error { return nil }
func (f *fakeStore) DeleteCollection(ctx context.Context, name string) error { return nil }
func (f *fakeStore) ListCollections(ctx context.Context) ([]string, error)   { return nil, nil }

func (f *fakeStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	f.addedTexts = append(f.addedTexts, texts)
	f.addedMetas = append(f.addedMetas, metadatas)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, req vectorstore.SearchRequest) ([]vectorstore.Result, error) {
	f.queryReq = req
	return f.results, f.queryErr
}

func (f *fakeStore) CollectionStats(ctx context.Context, collection string) (vectorstore.Stats, error) {
	return vectorstore.Stats{}, nil
}
func (f *fakeStore) HealthCheck(ctx context.Context) vectorstore.Health { return vectorstore.Health{} }
func (f *fakeStore) Close() error                                       { return nil }

// fakeGen captures the prompts it receives and returns a fixed answer.
type fakeGen struct {
	system string
	user   string
	answer string
	err    error
}

func (f *fakeGen) Generate(ctx context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	if f.err != nil {
		return "", f.err
	}
	if f.answer == "" {
		return "answer", nil
	}
	return f.answer, nil
}

func newTestCoordinator(t *testing.T, store *fakeStore, gen *fakeGen) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(store, gen, slog.New(slog.DiscardHandler), 5)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func dist(d float64) *float64 { return &d }

func Test_Coordinator_IngestChunksWithProvenance(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := newTestCoordinator(t, store, &fakeGen{})

	text := strings.Repeat("cold chain handling procedure for reefer containers. ", 50) // ~2,650 chars
	res, err := c.Ingest(context.Background(), "sops", "reefer.pdf", text, 1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks == 0 || res.DocID == "" {
		t.Fatalf("ingest stored nothing: %+v", res)
	}
	if len(store.addedTexts) != 1 {
		t.Fatalf("want one AddDocuments batch, got %d", len(store.addedTexts))
	}
	metas := store.addedMetas[0]
	if len(metas) != res.Chunks {
		t.Fatalf("want %d metadatas, got %d", res.Chunks, len(metas))
	}
	for i, m := range metas {
		if m["source"] != "reefer.pdf" {
			t.Errorf("chunk %d: source = %v", i, m["source"])
		}
		if m["doc_id"] != res.DocID {
			t.Errorf("chunk %d: doc_id = %v, want %s", i, m["doc_id"], res.DocID)
		}
		if m["chunk_id"] != i {
			t.Errorf("chunk %d: chunk_id = %v", i, m["chunk_id"])
		}
	}
}

func Test_Coordinator_ReingestMintsNewDocID(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := newTestCoordinator(t, store, &fakeGen{})

	first, err := c.Ingest(context.Background(), "sops", "sop.pdf", "keep pallets below 8 degrees", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Ingest(context.Background(), "sops", "sop.pdf", "keep pallets below 8 degrees", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.DocID == second.DocID {
		t.Error("re-ingestion must mint a new doc_id")
	}
	if len(store.addedTexts) != 2 {
		t.Errorf("both ingestions must store chunks, got %d batches", len(store.addedTexts))
	}
}

func Test_Coordinator_IngestEmptyTextStoresNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := newTestCoordinator(t, store, &fakeGen{})

	res, err := c.Ingest(context.Background(), "sops", "blank.txt", "   \n\t ", 1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 {
		t.Errorf("want 0 chunks, got %d", res.Chunks)
	}
	if len(store.addedTexts) != 0 {
		t.Error("empty input must not reach the store")
	}
}

func Test_Coordinator_AddTextsSkipsEmptyEntries(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := newTestCoordinator(t, store, &fakeGen{})

	n, err := c.AddTexts(context.Background(), "sops", []string{"dock 4 closes at 18:00", "  ", "customs code 8471.30"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("want 2 stored, got %d", n)
	}
	if got := store.addedTexts[0]; len(got) != 2 {
		t.Errorf("store received %d texts", len(got))
	}
}

func Test_Coordinator_AddTextsMismatchedMetadatas(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, &fakeStore{}, &fakeGen{})
	if _, err := c.AddTexts(context.Background(), "sops", []string{"a", "b"}, []map[string]any{{"k": 1}}); err == nil {
		t.Error("mismatched metadata length must be rejected")
	}
}

func Test_Coordinator_QuerySortsMissingDistanceLast(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []vectorstore.Result{
		{ID: "unscored", Document: "no score"},
		{ID: "far", Document: "far", Distance: dist(0.9)},
		{ID: "near", Document: "near", Distance: dist(0.1)},
	}}
	c := newTestCoordinator(t, store, &fakeGen{})

	ans, err := c.Query(context.Background(), "sops", "temperature breach duration", QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ids := []string{ans.Citations[0].ID, ans.Citations[1].ID, ans.Citations[2].ID}
	if ids[0] != "near" || ids[1] != "far" || ids[2] != "unscored" {
		t.Errorf("unexpected order: %v", ids)
	}
}

func Test_Coordinator_QueryMaxDistanceIsMonotonic(t *testing.T) {
	t.Parallel()

	results := []vectorstore.Result{
		{ID: "a", Document: "a", Distance: dist(0.1)},
		{ID: "b", Document: "b", Distance: dist(0.5)},
		{ID: "c", Document: "c", Distance: dist(0.9)},
	}

	prev := len(results) + 1
	for _, cutoff := range []float64{1.0, 0.6, 0.3, 0.05} {
		store := &fakeStore{results: results}
		c := newTestCoordinator(t, store, &fakeGen{})
		ans, err := c.Query(context.Background(), "sops", "q", QueryOptions{MaxDistance: dist(cutoff)})
		if err != nil {
			t.Fatal(err)
		}
		if ans.Retrieved > prev {
			t.Errorf("tightening max_distance to %v increased results to %d", cutoff, ans.Retrieved)
		}
		prev = ans.Retrieved
	}
}

func Test_Coordinator_QueryTruncatesToK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []vectorstore.Result{
		{ID: "a", Document: "a", Distance: dist(0.1)},
		{ID: "b", Document: "b", Distance: dist(0.2)},
		{ID: "c", Document: "c", Distance: dist(0.3)},
	}}
	c := newTestCoordinator(t, store, &fakeGen{})

	ans, err := c.Query(context.Background(), "sops", "q", QueryOptions{TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Retrieved != 2 || len(ans.Citations) != 2 {
		t.Errorf("want 2 results, got retrieved=%d citations=%d", ans.Retrieved, len(ans.Citations))
	}
	if store.queryReq.TopK != 2 {
		t.Errorf("store queried with k=%d", store.queryReq.TopK)
	}
}

func Test_Coordinator_QueryNoResultsStillPrompts(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{answer: "I don't know."}
	c := newTestCoordinator(t, &fakeStore{}, gen)

	ans, err := c.Query(context.Background(), "sops", "what is the demurrage rate", QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "I don't know." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if ans.Retrieved != 0 || len(ans.Citations) != 0 {
		t.Errorf("expected zero retrieval, got %+v", ans)
	}
	if !strings.Contains(gen.user, emptyContextPlaceholder) {
		t.Errorf("prompt must carry the empty-context placeholder, got %q", gen.user)
	}
}

func Test_Coordinator_QueryStyleDirectives(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{}
	c := newTestCoordinator(t, &fakeStore{}, gen)

	ans, err := c.Query(context.Background(), "sops", "q", QueryOptions{Style: "bulleted"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Style != "bulleted" {
		t.Errorf("style = %q", ans.Style)
	}
	if !strings.Contains(gen.user, styleDirectives["bulleted"]) {
		t.Error("prompt missing the bulleted directive")
	}

	// Unknown styles fall back to concise rather than erroring.
	ans, err = c.Query(context.Background(), "sops", "q", QueryOptions{Style: "haiku"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Style != DefaultStyle {
		t.Errorf("unknown style resolved to %q", ans.Style)
	}
}

func Test_Coordinator_CitationsCarryProvenanceAndCappedSnippet(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 450)
	store := &fakeStore{results: []vectorstore.Result{{
		ID:       "r1",
		Document: long,
		Distance: dist(0.2),
		Metadata: map[string]any{"source": "sop.pdf", "doc_id": "D1", "chunk_id": float64(3)},
	}}}
	c := newTestCoordinator(t, store, &fakeGen{})

	ans, err := c.Query(context.Background(), "sops", "q", QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	cit := ans.Citations[0]
	if cit.Source != "sop.pdf" || cit.DocID != "D1" || cit.ChunkID != 3 {
		t.Errorf("provenance lost: %+v", cit)
	}
	if len(cit.Snippet) != maxSnippetLen {
		t.Errorf("snippet length = %d, want %d", len(cit.Snippet), maxSnippetLen)
	}
}

func Test_Coordinator_QueryRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, &fakeStore{}, &fakeGen{})
	if _, err := c.Query(context.Background(), "sops", "   ", QueryOptions{}); err == nil {
		t.Error("empty question must be rejected")
	}
}

func Test_Coordinator_QuerySurfacesGenerationFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{err: errors.New("model unavailable")}
	c := newTestCoordinator(t, &fakeStore{}, gen)
	if _, err := c.Query(context.Background(), "sops", "q", QueryOptions{}); err == nil {
		t.Error("generation failure must surface")
	}
}

func Test_Coordinator_QuerySurfacesRetrievalFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{queryErr: errors.New("backend down")}
	c := newTestCoordinator(t, store, &fakeGen{})
	if _, err := c.Query(context.Background(), "sops", "q", QueryOptions{}); err == nil {
		t.Error("retrieval failure must surface")
	}
}
