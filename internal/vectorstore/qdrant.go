package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore is the payload-filtering service driver. Chunk text rides
// in the point payload under the reserved key; metadata equality filters
// translate to native payload match conditions.
//
// Collection creation needs the embedding dimensionality, so it is
// deferred: CreateCollection on a new name is a no-op and the first
// AddDocuments call creates the collection with the batch's dimension
// and the configured metric.
type QdrantStore struct {
	client *qdrant.Client
	embed  EmbedFunc
	log    *slog.Logger
	metric qdrant.Distance
}

// QdrantConfig holds connection parameters for the Qdrant driver.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Metric selects the similarity metric for new collections:
	// cosine (default), dot, or euclid.
	Metric string
}

// NewQdrantStore dials the gRPC endpoint.
func NewQdrantStore(cfg QdrantConfig, embed EmbedFunc, log *slog.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	metric, err := parseQdrantMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, embed: embed, log: log, metric: metric}, nil
}

func parseQdrantMetric(s string) (qdrant.Distance, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "dot", "dotproduct":
		return qdrant.Distance_Dot, nil
	case "euclid", "euclidean", "l2":
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_Cosine, fmt.Errorf("vectorstore: unknown qdrant metric %q", s)
	}
}

// CreateCollection defers actual creation until the first batch reveals
// the embedding dimensionality. An existing collection passes through.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	if _, err := s.client.CollectionExists(ctx, name); err != nil {
		return fmt.Errorf("vectorstore: check collection %s: %w", name, err)
	}
	return nil
}

// ensureCollection creates the collection with the given dimension if it
// does not exist yet, and returns its stored dimension.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %s: %w", name, err)
	}
	if exists {
		stored, err := s.collectionDimension(ctx, name)
		if err != nil {
			return err
		}
		if stored > 0 && stored != dim {
			return fmt.Errorf("vectorstore: %w: collection %q stores %d-dimensional vectors, batch has %d",
				ErrDimensionMismatch, name, stored, dim)
		}
		return nil
	}

	err = withRetry(ctx, "create collection "+name, func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: s.metric,
			}),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("collection created", "provider", ProviderQdrant, "collection", name, "dimension", dim)
	return nil
}

// collectionDimension reads the vector size from the collection config.
func (s *QdrantStore) collectionDimension(ctx context.Context, name string) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: collection info %s: %w", name, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, nil
	}
	return int(params.GetSize()), nil
}

// DeleteCollection removes the collection. Deleting an absent collection
// succeeds.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}
	return withRetry(ctx, "delete collection "+name, func() error {
		return s.client.DeleteCollection(ctx, name)
	})
}

// ListCollections returns all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list collections: %w", err)
	}
	return names, nil
}

// AddDocuments embeds the batch and upserts one point per chunk with the
// text smuggled into the payload.
func (s *QdrantStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	if err := validateCollectionName(collection); err != nil {
		return err
	}
	metadatas, ids, err := normalizeAddArgs(texts, metadatas, ids)
	if err != nil {
		return err
	}
	vectors, err := embedBatch(ctx, s.embed, texts)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(texts))
	for i := range texts {
		payload := make(map[string]any, len(metadatas[i])+1)
		for k, v := range metadatas[i] {
			payload[k] = v
		}
		payload[documentKey] = texts[i]

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(objectUUID(ids[i])),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
		// Non-UUID chunk IDs survive as a payload field.
		if ids[i] != objectUUID(ids[i]) {
			points[i].Payload[propRefID] = qdrant.NewValueString(ids[i])
		}
	}

	err = withRetry(ctx, "upsert "+collection, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.log.Debug("documents added", "provider", ProviderQdrant, "collection", collection, "count", len(texts))
	return nil
}

// Query embeds the request text and runs a similarity query with native
// payload filtering, normalizing scores into distances. A missing
// collection yields no results.
func (s *QdrantStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, nil
	}

	vectors, err := embedBatch(ctx, s.embed, []string{req.Text})
	if err != nil {
		return nil, err
	}

	limit := uint64(max(req.TopK, 1))
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(req.Filter),
	}

	var hits []*qdrant.ScoredPoint
	err = withRetry(ctx, "query "+collection, func() error {
		hits, err = s.client.Query(ctx, queryReq)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		payload := payloadToMap(hit.Payload)
		doc, _ := payload[documentKey].(string)
		delete(payload, documentKey)

		id := hit.Id.GetUuid()
		if ref, ok := payload[propRefID].(string); ok && ref != "" {
			id = ref
			delete(payload, propRefID)
		}

		r := Result{
			ID:       id,
			Document: doc,
			Metadata: payload,
			Distance: float64Ptr(s.normalizeScore(hit.Score)),
		}
		if req.Filter != nil && !matchesFilter(payload, req.Filter) {
			continue
		}
		if !withinMaxDistance(r, req.MaxDistance) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// normalizeScore converts Qdrant's raw metric value into a
// lower-is-more-similar distance. Cosine and dot scores read
// similarity-first; euclid already is a distance.
func (s *QdrantStore) normalizeScore(score float32) float64 {
	switch s.metric {
	case qdrant.Distance_Cosine:
		return 1 - float64(score)
	case qdrant.Distance_Dot:
		return -float64(score)
	default:
		return float64(score)
	}
}

// buildQdrantFilter translates equality clauses into native payload match
// conditions. Unsupported value types are skipped here and enforced by
// the client-side re-check.
func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	var must []*qdrant.Condition
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			must = append(must, qdrant.NewMatch(k, val))
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, val))
		case bool:
			must = append(must, qdrant.NewMatchBool(k, val))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// payloadToMap converts a point payload into plain Go values.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = qdrantValue(v)
	}
	return out
}

func qdrantValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = qdrantValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

// CollectionStats reports the point count and vector dimension.
func (s *QdrantStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: check collection %s: %w", collection, err)
	}
	if !exists {
		return Stats{}, fmt.Errorf("vectorstore: %w: %q", ErrCollectionNotFound, collection)
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: collection})
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: count %s: %w", collection, err)
	}
	dim, err := s.collectionDimension(ctx, collection)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Name:      collection,
		Count:     int(count),
		Dimension: dim,
		Provider:  string(ProviderQdrant),
	}, nil
}

// HealthCheck probes the gRPC endpoint.
func (s *QdrantStore) HealthCheck(ctx context.Context) Health {
	h := Health{Status: "healthy", Provider: string(ProviderQdrant)}
	if _, err := s.client.HealthCheck(ctx); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		return h
	}
	if names, err := s.client.ListCollections(ctx); err == nil {
		h.Collections = len(names)
	}
	return h
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
