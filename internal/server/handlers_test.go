package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

func doJSON(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func Test_Ingest_StoresTexts(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)

	rec := doJSON(t, s, http.MethodPost, "/ingest", ingestRequest{
		Texts: []string{"dock 4 closes at 18:00", "reefer setpoint is 4C"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ingested != 2 {
		t.Errorf("ingested = %d", resp.Ingested)
	}
	if resp.Collection != "logistics" {
		t.Errorf("collection = %q, want default", resp.Collection)
	}
	if resp.Provider != "local" {
		t.Errorf("provider = %q", resp.Provider)
	}
}

func Test_Ingest_RequiresTexts(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, nil)
	rec := doJSON(t, s, http.MethodPost, "/ingest", ingestRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func Test_Ingest_DimensionMismatchIsBadRequest(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{addTextsErr: fmt.Errorf("add: %w", vectorstore.ErrDimensionMismatch)}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)

	rec := doJSON(t, s, http.MethodPost, "/ingest", ingestRequest{Texts: []string{"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func Test_IngestFile_MultipartUpload(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{ingestRes: rag.IngestResult{DocID: "d", Chunks: 3}}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "sop.txt")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, "hold pallets below 8 degrees for customs inspection")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/file?chunk_size=500&overlap=50", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ingested != 3 || resp.Documents != 1 {
		t.Errorf("ingested=%d documents=%d", resp.Ingested, resp.Documents)
	}
	if len(p.ingested) != 1 || p.ingested[0] != "sop.txt" {
		t.Errorf("pipeline received sources %v", p.ingested)
	}
	if p.chunkSizes[0] != 500 {
		t.Errorf("chunk_size query param not honored: %d", p.chunkSizes[0])
	}
}

func Test_IngestURL_FetchFailureDegrades(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{ingestRes: rag.IngestResult{DocID: "d", Chunks: 2}}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)
	s.fetch = func(ctx context.Context, url string) ([]byte, string, error) {
		if strings.Contains(url, "bad") {
			return nil, "", errors.New("connection refused")
		}
		return []byte("<html><body><main>customs notice</main></body></html>"), "text/html", nil
	}

	rec := doJSON(t, s, http.MethodPost, "/ingest/url", ingestURLRequest{
		URLs: []string{"http://bad.example/doc", "http://good.example/doc"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Documents != 1 {
		t.Errorf("documents = %d, want the good URL only", resp.Documents)
	}
	if resp.Ingested != 2 {
		t.Errorf("ingested = %d", resp.Ingested)
	}
	if len(resp.URLs) != 2 {
		t.Errorf("response must echo all requested urls, got %v", resp.URLs)
	}
}

func Test_IngestURL_ExplicitZeroOverlapHonored(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{ingestRes: rag.IngestResult{DocID: "d", Chunks: 1}}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)
	s.fetch = func(ctx context.Context, url string) ([]byte, string, error) {
		return []byte("carrier surcharge table"), "text/plain", nil
	}

	zero := 0
	rec := doJSON(t, s, http.MethodPost, "/ingest/url", ingestURLRequest{
		URLs:    []string{"http://example.com/surcharges"},
		Overlap: &zero,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(p.overlaps) != 1 || p.overlaps[0] != 0 {
		t.Errorf("overlap 0 not forwarded, pipeline saw %v", p.overlaps)
	}

	// Omitting the field still selects the default.
	p2 := &fakePipeline{ingestRes: rag.IngestResult{DocID: "d", Chunks: 1}}
	s2 := newTestServer(t, p2, &fakeVectorStore{}, nil)
	s2.fetch = s.fetch
	doJSON(t, s2, http.MethodPost, "/ingest/url", ingestURLRequest{
		URLs: []string{"http://example.com/surcharges"},
	})
	if len(p2.overlaps) != 1 || p2.overlaps[0] != rag.DefaultOverlap {
		t.Errorf("omitted overlap should default, pipeline saw %v", p2.overlaps)
	}

	// Negative overlap is rejected up front.
	neg := -1
	rec = doJSON(t, s, http.MethodPost, "/ingest/url", ingestURLRequest{
		URLs:    []string{"http://example.com/surcharges"},
		Overlap: &neg,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative overlap: status = %d, want 400", rec.Code)
	}
}

func Test_Query_ReturnsAnswerShape(t *testing.T) {
	t.Parallel()

	d := 0.12
	p := &fakePipeline{answer: &rag.Answer{
		Query:     "temperature breach duration",
		Answer:    "45 minutes above 8C",
		Retrieved: 1,
		Citations: []rag.Citation{{ID: "c1", Source: "sop.pdf", DocID: "D1", Distance: &d, Snippet: "Temperature exceeded 8C"}},
		Style:     "concise",
	}}
	s := newTestServer(t, p, &fakeVectorStore{}, nil)

	rec := doJSON(t, s, http.MethodGet, "/query?q=temperature+breach+duration&k=3&max_distance=0.5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "45 minutes above 8C" || resp.Retrieved != 1 {
		t.Errorf("unexpected answer: %+v", resp)
	}
	if resp.K != 3 || resp.MaxDistance == nil || *resp.MaxDistance != 0.5 {
		t.Errorf("query params not echoed: k=%d max_distance=%v", resp.K, resp.MaxDistance)
	}
	if resp.Model != "llama3" || resp.Provider != "local" {
		t.Errorf("provenance labels missing: %+v", resp)
	}
	if p.lastOpts.TopK != 3 || p.lastOpts.MaxDistance == nil {
		t.Errorf("options not forwarded: %+v", p.lastOpts)
	}
}

func Test_Query_RequiresQ(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, nil)
	rec := doJSON(t, s, http.MethodGet, "/query", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func Test_Query_RejectsBadMaxDistance(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, nil)
	rec := doJSON(t, s, http.MethodGet, "/query?q=x&max_distance=close", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func Test_Collections_ListsWithDefault(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{collections: []string{"logistics", "sops"}}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodGet, "/index/collections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp collectionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Collections) != 2 || resp.Default != "logistics" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func Test_CollectionStats_NotFound(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{statsErr: vectorstore.ErrCollectionNotFound}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodGet, "/index/collections/missing/stats", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func Test_CollectionStats_ReportsMetadata(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{stats: vectorstore.Stats{
		Name: "sops", Count: 12, Dimension: 768, Provider: "ann", IndexType: "hnsw",
	}}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodGet, "/index/collections/sops/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "sops" || resp.Count != 12 {
		t.Errorf("unexpected stats: %+v", resp)
	}
	if resp.Metadata["index_type"] != "hnsw" {
		t.Errorf("metadata = %v", resp.Metadata)
	}
}

func Test_DeleteCollection_RejectsDefault(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodDelete, "/index/collections/logistics", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(store.deleted) != 0 {
		t.Error("default collection must never reach the store's delete")
	}
}

func Test_DeleteCollection_DeletesOthers(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodDelete, "/index/collections/scratch", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "scratch" {
		t.Errorf("deleted = %v", store.deleted)
	}
}

func Test_ResetCollection_RecreatesEvenWhenDeleteFails(t *testing.T) {
	t.Parallel()

	store := &fakeVectorStore{deleteErr: errors.New("backend glitch")}
	s := newTestServer(t, &fakePipeline{}, store, nil)

	rec := doJSON(t, s, http.MethodPost, "/index/collections/sops/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.created) != 1 || store.created[0] != "sops" {
		t.Errorf("created = %v", store.created)
	}
}

func Test_Health_Liveness(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
