package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_CountsIngestedChunks(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, &Config{Registry: reg})

	rec := doJSON(t, s, http.MethodPost, "/ingest", ingestRequest{Texts: []string{"a", "b", "c"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := testutil.ToFloat64(s.metrics.ingestChunksTotal); got != 3 {
		t.Errorf("glih_ingest_chunks_total = %v, want 3", got)
	}
}

func Test_Metrics_CountsQueryOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, &Config{Registry: reg})

	rec := doJSON(t, s, http.MethodGet, "/query?q=reefer+setpoint", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := testutil.ToFloat64(s.metrics.queryRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok outcome count = %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.queryRequestsTotal.WithLabelValues("error")); got != 0 {
		t.Errorf("error outcome count = %v", got)
	}
}

func Test_Metrics_ExposedOnMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, &Config{Registry: reg})

	// Generate one tracked request, then scrape.
	doJSON(t, s, http.MethodGet, "/api/health", nil)
	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "glih_http_requests_total") {
		t.Error("scrape output missing glih_http_requests_total")
	}
	if !strings.Contains(body, `handler="GET /api/health"`) {
		t.Errorf("scrape output missing handler label, body:\n%s", body)
	}
}

func Test_Metrics_HTTPRequestsLabelledByPattern(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakePipeline{}, &fakeVectorStore{}, &Config{Registry: reg})

	doJSON(t, s, http.MethodGet, "/index/collections", nil)

	got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(
		http.MethodGet, "GET /index/collections", "200"))
	if got != 1 {
		t.Errorf("request count for pattern = %v, want 1", got)
	}
}
