package vectorstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// instrumentedStore decorates a Store with per-operation latency metrics.
// It adds no behavior; every call is delegated unchanged.
type instrumentedStore struct {
	next Store
	ops  *prometheus.HistogramVec
}

// Instrument wraps store so every operation records its duration in the
// glih_store_op_duration_seconds histogram, labelled by provider and
// operation name.
func Instrument(store Store, reg prometheus.Registerer, provider string) Store {
	ops := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "glih",
		Name:        "store_op_duration_seconds",
		Help:        "Latency of vector store operations in seconds.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"provider": provider},
	}, []string{"op"})
	return &instrumentedStore{next: store, ops: ops}
}

func (s *instrumentedStore) observe(op string, start time.Time) {
	s.ops.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) CreateCollection(ctx context.Context, name string) error {
	defer s.observe("create_collection", time.Now())
	return s.next.CreateCollection(ctx, name)
}

func (s *instrumentedStore) DeleteCollection(ctx context.Context, name string) error {
	defer s.observe("delete_collection", time.Now())
	return s.next.DeleteCollection(ctx, name)
}

func (s *instrumentedStore) ListCollections(ctx context.Context) ([]string, error) {
	defer s.observe("list_collections", time.Now())
	return s.next.ListCollections(ctx)
}

func (s *instrumentedStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	defer s.observe("add_documents", time.Now())
	return s.next.AddDocuments(ctx, collection, texts, metadatas, ids)
}

func (s *instrumentedStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	defer s.observe("query", time.Now())
	return s.next.Query(ctx, collection, req)
}

func (s *instrumentedStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	defer s.observe("collection_stats", time.Now())
	return s.next.CollectionStats(ctx, collection)
}

func (s *instrumentedStore) HealthCheck(ctx context.Context) Health {
	defer s.observe("health_check", time.Now())
	return s.next.HealthCheck(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
