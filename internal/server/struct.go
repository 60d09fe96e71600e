package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/history"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all data routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultCollection is the collection used when requests omit one.
	// It cannot be deleted through the API. Defaults to "logistics".
	DefaultCollection string
	// Provider is the active vector store provider label included in responses.
	Provider string
	// Model is the active chat model label included in query responses.
	Model string
	// Registry receives the server's Prometheus metrics. If nil a fresh
	// registry is created, keeping tests hermetic.
	Registry *prometheus.Registry
}

// pipeline is the interface the handlers call for ingestion and queries.
// *rag.Coordinator satisfies it; tests inject a fake.
type pipeline interface {
	// Ingest chunks, embeds, and stores one document.
	Ingest(ctx context.Context, collection, source, text string, chunkSize, overlap int) (rag.IngestResult, error)
	// AddTexts stores caller-prepared texts without chunking.
	AddTexts(ctx context.Context, collection string, texts []string, metadatas []map[string]any) (int, error)
	// Query runs the retrieval pipeline and returns the generated answer.
	Query(ctx context.Context, collection, question string, opts rag.QueryOptions) (*rag.Answer, error)
}

// Server is the HTTP server exposing the knowledge-base API.
type Server struct {
	// pipeline handles ingestion and queries.
	pipeline pipeline
	// store handles collection lifecycle operations directly.
	store vectorstore.Store
	// events records request history; nil disables recording.
	events history.EventStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// fetch retrieves a URL body for /ingest/url; overridden in tests.
	fetch func(ctx context.Context, url string) ([]byte, string, error)
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /ingest.
type ingestRequest struct {
	// Texts are pre-chunked documents to store as-is.
	Texts []string `json:"texts"`
	// Metadatas holds one optional metadata map per text.
	Metadatas []map[string]any `json:"metadatas,omitempty"`
	// Collection overrides the default collection.
	Collection string `json:"collection,omitempty"`
}

// ingestResponse is the JSON response for POST /ingest and POST /ingest/file.
type ingestResponse struct {
	// Ingested is the number of chunks stored.
	Ingested int `json:"ingested"`
	// Collection is the collection written to.
	Collection string `json:"collection"`
	// Provider is the active vector store provider.
	Provider string `json:"provider"`
	// Documents is the number of source documents processed (file/url ingestion).
	Documents int `json:"documents,omitempty"`
	// URLs lists the URLs processed (url ingestion only).
	URLs []string `json:"urls,omitempty"`
}

// ingestURLRequest is the JSON body for POST /ingest/url.
type ingestURLRequest struct {
	// URLs are the documents to fetch and ingest.
	URLs []string `json:"urls"`
	// ChunkSize is the chunk window width in characters.
	ChunkSize int `json:"chunk_size,omitempty"`
	// Overlap is the chunk overlap in characters. A pointer so an
	// explicit 0 is distinguishable from an omitted field.
	Overlap *int `json:"overlap,omitempty"`
	// Collection overrides the default collection.
	Collection string `json:"collection,omitempty"`
}

// queryResponse is the JSON response for GET /query.
type queryResponse struct {
	Query       string         `json:"query"`
	Answer      string         `json:"answer"`
	Retrieved   int            `json:"retrieved"`
	Citations   []rag.Citation `json:"citations"`
	Collection  string         `json:"collection"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	K           int            `json:"k"`
	MaxDistance *float64       `json:"max_distance,omitempty"`
	Style       string         `json:"style"`
}

// collectionsResponse is the JSON response for GET /index/collections.
type collectionsResponse struct {
	// Collections lists all collection names known to the store.
	Collections []string `json:"collections"`
	// Default is the process-default collection name.
	Default string `json:"default"`
}

// statsResponse is the JSON response for GET /index/collections/{name}/stats.
type statsResponse struct {
	// Name is the collection name.
	Name string `json:"name"`
	// Count is the number of stored chunks.
	Count int `json:"count"`
	// Metadata holds provider-specific collection details.
	Metadata map[string]any `json:"metadata"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
