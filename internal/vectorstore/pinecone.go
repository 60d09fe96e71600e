package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
)

// PineconeStore is the managed-cloud driver. One collection maps to one
// serverless index. Pinecone stores only vectors plus metadata, so chunk
// text rides along under the reserved metadata key and is stripped back
// out of results.
//
// Index creation needs the embedding dimensionality and similarity metric
// up front, both fixed at construction. Scores come back similarity-first
// and are normalized per metric: cosine as 1-score, dot product negated,
// euclidean passed through.
type PineconeStore struct {
	client    *pinecone.Client
	embed     EmbedFunc
	log       *slog.Logger
	metric    pinecone.IndexMetric
	cloud     pinecone.Cloud
	region    string
	dimension int32

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

// PineconeConfig holds connection parameters for the Pinecone driver.
type PineconeConfig struct {
	// APIKey authenticates against the Pinecone control plane. Required.
	APIKey string

	// Metric is the similarity metric for new indexes:
	// cosine (default), dotproduct, or euclidean.
	Metric string

	// Cloud and Region place new serverless indexes
	// (defaults: aws / us-east-1).
	Cloud  string
	Region string

	// Dimension is the embedding dimensionality for new indexes.
	Dimension int
}

// NewPineconeStore validates credentials and opens the control-plane
// client. Missing credentials fail here, not on first use.
func NewPineconeStore(cfg PineconeConfig, embed EmbedFunc, log *slog.Logger) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vectorstore: %w: PINECONE_API_KEY is not set", ErrCredentialMissing)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vectorstore: pinecone requires a positive embedding dimension, got %d", cfg.Dimension)
	}

	metric, err := parsePineconeMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	cloud, err := parsePineconeCloud(cfg.Cloud)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create pinecone client: %w", err)
	}

	return &PineconeStore{
		client:    client,
		embed:     embed,
		log:       log,
		metric:    metric,
		cloud:     cloud,
		region:    region,
		dimension: int32(cfg.Dimension),
		conns:     make(map[string]*pinecone.IndexConnection),
	}, nil
}

func parsePineconeMetric(s string) (pinecone.IndexMetric, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return pinecone.Cosine, nil
	case "dotproduct", "dot":
		return pinecone.Dotproduct, nil
	case "euclidean", "euclid", "l2":
		return pinecone.Euclidean, nil
	default:
		return "", fmt.Errorf("vectorstore: unknown pinecone metric %q", s)
	}
}

func parsePineconeCloud(s string) (pinecone.Cloud, error) {
	switch strings.ToLower(s) {
	case "", "aws":
		return pinecone.Aws, nil
	case "gcp":
		return pinecone.Gcp, nil
	case "azure":
		return pinecone.Azure, nil
	default:
		return "", fmt.Errorf("vectorstore: unknown pinecone cloud %q", s)
	}
}

// indexName maps a collection name to a valid Pinecone index name:
// lowercase alphanumerics and hyphens.
func indexName(collection string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(collection) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// CreateCollection creates the serverless index with the configured
// dimension and metric. An existing index is left as-is.
func (s *PineconeStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	idx := indexName(name)

	if _, err := s.client.DescribeIndex(ctx, idx); err == nil {
		return nil
	}

	return withRetry(ctx, "create index "+idx, func() error {
		_, err := s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      idx,
			Dimension: s.dimension,
			Metric:    s.metric,
			Cloud:     s.cloud,
			Region:    s.region,
		})
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	})
}

// DeleteCollection removes the index. Deleting an absent index succeeds.
func (s *PineconeStore) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	idx := indexName(name)

	s.mu.Lock()
	delete(s.conns, idx)
	s.mu.Unlock()

	return withRetry(ctx, "delete index "+idx, func() error {
		err := s.client.DeleteIndex(ctx, idx)
		if err != nil && isMissingIndexErr(err) {
			return nil
		}
		return err
	})
}

// ListCollections returns the names of all indexes in the project.
func (s *PineconeStore) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := withRetry(ctx, "list indexes", func() error {
		indexes, err := s.client.ListIndexes(ctx)
		if err != nil {
			return err
		}
		names = names[:0]
		for _, idx := range indexes {
			names = append(names, idx.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// AddDocuments embeds the batch and upserts one vector per chunk, with
// the chunk text carried in metadata. The index is created on demand.
func (s *PineconeStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	metadatas, ids, err := normalizeAddArgs(texts, metadatas, ids)
	if err != nil {
		return err
	}
	vectors, err := embedBatch(ctx, s.embed, texts)
	if err != nil {
		return err
	}
	if len(vectors[0]) != int(s.dimension) {
		return fmt.Errorf("vectorstore: %w: index is configured for %d dimensions, batch has %d",
			ErrDimensionMismatch, s.dimension, len(vectors[0]))
	}

	if err := s.CreateCollection(ctx, collection); err != nil {
		return err
	}
	conn, err := s.conn(ctx, collection)
	if err != nil {
		return err
	}

	points := make([]*pinecone.Vector, len(texts))
	for i := range texts {
		payload := make(map[string]any, len(metadatas[i])+1)
		for k, v := range metadatas[i] {
			payload[k] = v
		}
		payload[documentKey] = texts[i]

		meta, err := toPineconeMetadata(payload)
		if err != nil {
			return fmt.Errorf("vectorstore: encode metadata for %s: %w", ids[i], err)
		}
		points[i] = &pinecone.Vector{
			Id:       ids[i],
			Values:   vectors[i],
			Metadata: meta,
		}
	}

	err = withRetry(ctx, "upsert "+collection, func() error {
		_, err := conn.UpsertVectors(ctx, points)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Debug("documents added", "provider", ProviderPinecone, "collection", collection, "count", len(texts))
	return nil
}

// Query embeds the request text and runs a similarity query, normalizing
// scores into distances. A missing index yields no results.
func (s *PineconeStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	idx := indexName(collection)
	if _, err := s.client.DescribeIndex(ctx, idx); err != nil {
		if isMissingIndexErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vectorstore: describe index %s: %w", idx, err)
	}

	vectors, err := embedBatch(ctx, s.embed, []string{req.Text})
	if err != nil {
		return nil, err
	}
	conn, err := s.conn(ctx, collection)
	if err != nil {
		return nil, err
	}

	queryReq := &pinecone.QueryByVectorValuesRequest{
		Vector:          vectors[0],
		TopK:            uint32(max(req.TopK, 1)),
		IncludeMetadata: true,
	}
	if len(req.Filter) > 0 {
		filter, err := toPineconeMetadata(req.Filter)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: encode filter: %w", err)
		}
		queryReq.MetadataFilter = filter
	}

	var resp *pinecone.QueryVectorsResponse
	err = withRetry(ctx, "query "+collection, func() error {
		resp, err = conn.QueryByVectorValues(ctx, queryReq)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match.Vector == nil {
			continue
		}
		payload, err := fromPineconeMetadata(match.Vector.Metadata)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: decode metadata for %s: %w", match.Vector.Id, err)
		}
		doc, _ := payload[documentKey].(string)
		delete(payload, documentKey)

		r := Result{
			ID:       match.Vector.Id,
			Document: doc,
			Metadata: payload,
			Distance: float64Ptr(s.normalizeScore(match.Score)),
		}
		if withinMaxDistance(r, req.MaxDistance) {
			results = append(results, r)
		}
	}
	return results, nil
}

// normalizeScore converts Pinecone's similarity-first score into a
// lower-is-more-similar distance.
func (s *PineconeStore) normalizeScore(score float32) float64 {
	switch s.metric {
	case pinecone.Cosine:
		return 1 - float64(score)
	case pinecone.Dotproduct:
		return -float64(score)
	default: // euclidean scores are already distances
		return float64(score)
	}
}

// CollectionStats reports the vector count and dimension of one index.
func (s *PineconeStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	idx := indexName(collection)
	desc, err := s.client.DescribeIndex(ctx, idx)
	if err != nil {
		if isMissingIndexErr(err) {
			return Stats{}, fmt.Errorf("vectorstore: %w: %q", ErrCollectionNotFound, collection)
		}
		return Stats{}, fmt.Errorf("vectorstore: describe index %s: %w", idx, err)
	}

	conn, err := s.conn(ctx, collection)
	if err != nil {
		return Stats{}, err
	}
	statsResp, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: index stats %s: %w", idx, err)
	}

	return Stats{
		Name:      collection,
		Count:     int(statsResp.TotalVectorCount),
		Dimension: int(desc.Dimension),
		Provider:  string(ProviderPinecone),
	}, nil
}

// HealthCheck probes the control plane.
func (s *PineconeStore) HealthCheck(ctx context.Context) Health {
	h := Health{Status: "healthy", Provider: string(ProviderPinecone)}
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		return h
	}
	h.Collections = len(indexes)
	return h
}

// Close tears down cached index connections.
func (s *PineconeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, conn := range s.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("vectorstore: close index connection %s: %w", name, err)
		}
		delete(s.conns, name)
	}
	return firstErr
}

// conn returns a cached data-plane connection for the collection's index,
// dialing it on first use.
func (s *PineconeStore) conn(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	idx := indexName(collection)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[idx]; ok {
		return c, nil
	}

	desc, err := s.client.DescribeIndex(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: describe index %s: %w", idx, err)
	}
	c, err := s.client.Index(pinecone.NewIndexConnParams{Host: desc.Host})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect to index %s: %w", idx, err)
	}
	s.conns[idx] = c
	return c, nil
}

// isMissingIndexErr reports whether err means the index does not exist.
func isMissingIndexErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

// toPineconeMetadata converts a plain map into the protobuf metadata
// struct via its JSON form.
func toPineconeMetadata(m map[string]any) (*pinecone.Metadata, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var meta pinecone.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// fromPineconeMetadata converts protobuf metadata back into a plain map.
func fromPineconeMetadata(meta *pinecone.Metadata) (map[string]any, error) {
	if meta == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
