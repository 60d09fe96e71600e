package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate stores chunk text natively: each collection becomes a class
// with a text "document" property plus fixed properties for the pipeline
// metadata. Metadata keys outside that fixed set ride in a JSON "extra"
// property and are filtered client-side.
const (
	propDocument = "document"
	propSource   = "source"
	propDocID    = "doc_id"
	propChunkID  = "chunk_id"
	propRefID    = "ref_id"
	propExtra    = "extra"
)

// WeaviateStore is the schema-service driver. Collection names are
// sanitized into class names (capitalized, underscores only); vectors are
// supplied explicitly with vectorizer "none"; the _additional.distance
// field already reads lower-is-more-similar and passes through untouched.
type WeaviateStore struct {
	client *weaviate.Client
	embed  EmbedFunc
	log    *slog.Logger
}

// WeaviateConfig holds connection parameters for the Weaviate driver.
type WeaviateConfig struct {
	// URL is the base URL of the Weaviate instance. Required.
	URL string

	// APIKey authenticates against hosted clusters. Optional for
	// anonymous local instances.
	APIKey string
}

// NewWeaviateStore validates the endpoint and builds the client. A
// missing URL fails here, not on first use.
func NewWeaviateStore(cfg WeaviateConfig, embed EmbedFunc, log *slog.Logger) (*WeaviateStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("vectorstore: %w: WEAVIATE_URL is not set", ErrCredentialMissing)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("vectorstore: invalid weaviate url %q", cfg.URL)
	}

	wcfg := weaviate.Config{Host: u.Host, Scheme: u.Scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create weaviate client: %w", err)
	}

	return &WeaviateStore{client: client, embed: embed, log: log}, nil
}

// className maps a collection name to a valid Weaviate class name:
// leading capital, then letters, digits, and underscores.
func className(collection string) string {
	var b strings.Builder
	for _, r := range collection {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-':
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "Collection"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// CreateCollection creates the class with the fixed chunk schema.
// An existing class is left as-is.
func (s *WeaviateStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	class := className(name)

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: check class %s: %w", class, err)
	}
	if exists {
		return nil
	}

	schema := &models.Class{
		Class:      class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: propDocument, DataType: []string{"text"}},
			{Name: propSource, DataType: []string{"text"}},
			{Name: propDocID, DataType: []string{"text"}},
			{Name: propChunkID, DataType: []string{"int"}},
			{Name: propRefID, DataType: []string{"text"}},
			{Name: propExtra, DataType: []string{"text"}},
		},
	}
	err = withRetry(ctx, "create class "+class, func() error {
		err := s.client.Schema().ClassCreator().WithClass(schema).Do(ctx)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("collection created", "provider", ProviderWeaviate, "collection", name, "class", class)
	return nil
}

// DeleteCollection removes the class and every object in it. Deleting an
// absent class succeeds.
func (s *WeaviateStore) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	class := className(name)
	return withRetry(ctx, "delete class "+class, func() error {
		err := s.client.Schema().ClassDeleter().WithClassName(class).Do(ctx)
		if err != nil && isMissingIndexErr(err) {
			return nil
		}
		return err
	})
}

// ListCollections returns the class names in the schema, sorted.
func (s *WeaviateStore) ListCollections(ctx context.Context) ([]string, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get schema: %w", err)
	}
	names := make([]string, 0, len(schema.Classes))
	for _, c := range schema.Classes {
		names = append(names, c.Class)
	}
	sort.Strings(names)
	return names, nil
}

// AddDocuments embeds the batch and writes one object per chunk with an
// explicit vector. Object IDs must be UUIDs, so non-UUID chunk IDs are
// hashed into deterministic UUIDs and the original kept in ref_id.
func (s *WeaviateStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
	metadatas, ids, err := normalizeAddArgs(texts, metadatas, ids)
	if err != nil {
		return err
	}
	vectors, err := embedBatch(ctx, s.embed, texts)
	if err != nil {
		return err
	}
	if err := s.CreateCollection(ctx, collection); err != nil {
		return err
	}
	class := className(collection)

	objects := make([]*models.Object, len(texts))
	for i := range texts {
		props, err := chunkProperties(texts[i], ids[i], metadatas[i])
		if err != nil {
			return fmt.Errorf("vectorstore: encode metadata for %s: %w", ids[i], err)
		}
		objects[i] = &models.Object{
			Class:      class,
			ID:         strfmt.UUID(objectUUID(ids[i])),
			Properties: props,
			Vector:     vectors[i],
		}
	}

	err = withRetry(ctx, "batch insert "+collection, func() error {
		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return err
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("documents added", "provider", ProviderWeaviate, "collection", collection, "count", len(texts))
	return nil
}

// objectUUID returns id unchanged when it already is a UUID, otherwise a
// deterministic UUID derived from it.
func objectUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

// chunkProperties splits metadata into the fixed schema properties plus a
// JSON-encoded remainder.
func chunkProperties(text, id string, metadata map[string]any) (map[string]any, error) {
	props := map[string]any{
		propDocument: text,
		propRefID:    id,
	}
	extra := map[string]any{}
	for k, v := range metadata {
		switch k {
		case propSource, propDocID, propChunkID:
			props[k] = v
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		data, err := json.Marshal(extra)
		if err != nil {
			return nil, err
		}
		props[propExtra] = string(data)
	}
	return props, nil
}

// Query embeds the request text and runs a nearVector search. Filters on
// the fixed properties push down to a where clause; everything is
// re-checked client-side so extra-property filters work too. A missing
// class yields no results.
func (s *WeaviateStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	class := className(collection)
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: check class %s: %w", class, err)
	}
	if !exists {
		return nil, nil
	}

	vectors, err := embedBatch(ctx, s.embed, []string{req.Text})
	if err != nil {
		return nil, err
	}

	fields := []graphql.Field{
		{Name: propDocument},
		{Name: propSource},
		{Name: propDocID},
		{Name: propChunkID},
		{Name: propRefID},
		{Name: propExtra},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(class).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vectors[0])).
		WithLimit(max(req.TopK, 1)).
		WithFields(fields...)
	if where := nativeWhere(req.Filter); where != nil {
		query = query.WithWhere(where)
	}

	var resp *models.GraphQLResponse
	err = withRetry(ctx, "query "+collection, func() error {
		resp, err = query.Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return parseWeaviateResults(resp, class, req)
}

// nativeWhere builds a where clause from the filter keys Weaviate has
// real properties for. Returns nil when nothing pushes down.
func nativeWhere(filter map[string]any) *filters.WhereBuilder {
	var clauses []*filters.WhereBuilder
	for k, v := range filter {
		if k != propSource && k != propDocID && k != propChunkID {
			continue
		}
		clause := filters.Where().WithPath([]string{k}).WithOperator(filters.Equal)
		switch val := v.(type) {
		case string:
			clause = clause.WithValueText(val)
		case int:
			clause = clause.WithValueInt(int64(val))
		case int64:
			clause = clause.WithValueInt(val)
		case float64:
			clause = clause.WithValueNumber(val)
		case bool:
			clause = clause.WithValueBoolean(val)
		default:
			continue
		}
		clauses = append(clauses, clause)
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(clauses)
	}
}

// parseWeaviateResults walks the GraphQL response, reassembles metadata,
// and applies the client-side filter and distance ceiling.
func parseWeaviateResults(resp *models.GraphQLResponse, class string, req SearchRequest) ([]Result, error) {
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("vectorstore: weaviate query: %s", resp.Errors[0].Message)
	}
	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	items, ok := data[class].([]any)
	if !ok {
		return nil, nil
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		additional, _ := obj["_additional"].(map[string]any)

		metadata := map[string]any{}
		if extraJSON, ok := obj[propExtra].(string); ok && extraJSON != "" {
			if err := json.Unmarshal([]byte(extraJSON), &metadata); err != nil {
				return nil, fmt.Errorf("vectorstore: decode extra metadata: %w", err)
			}
		}
		for _, k := range []string{propSource, propDocID, propChunkID} {
			if v, ok := obj[k]; ok && v != nil {
				metadata[k] = v
			}
		}

		id, _ := obj[propRefID].(string)
		if id == "" {
			id, _ = additional["id"].(string)
		}
		doc, _ := obj[propDocument].(string)

		r := Result{ID: id, Document: doc, Metadata: metadata}
		if d, ok := additional["distance"].(float64); ok {
			r.Distance = float64Ptr(d)
		} else if d, ok := additional["distance"].(json.Number); ok {
			if f, err := d.Float64(); err == nil {
				r.Distance = float64Ptr(f)
			}
		}

		if req.Filter != nil && !matchesFilter(metadata, req.Filter) {
			continue
		}
		if !withinMaxDistance(r, req.MaxDistance) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// CollectionStats counts the objects in the class via an aggregate query.
func (s *WeaviateStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	class := className(collection)
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: check class %s: %w", class, err)
	}
	if !exists {
		return Stats{}, fmt.Errorf("vectorstore: %w: %q", ErrCollectionNotFound, collection)
	}

	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: aggregate %s: %w", class, err)
	}
	if len(resp.Errors) > 0 {
		return Stats{}, fmt.Errorf("vectorstore: aggregate %s: %s", class, resp.Errors[0].Message)
	}

	count := 0
	if agg, ok := resp.Data["Aggregate"].(map[string]any); ok {
		if rows, ok := agg[class].([]any); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]any); ok {
				if meta, ok := row["meta"].(map[string]any); ok {
					if f, ok := meta["count"].(float64); ok {
						count = int(f)
					}
				}
			}
		}
	}

	return Stats{
		Name:     collection,
		Count:    count,
		Provider: string(ProviderWeaviate),
	}, nil
}

// HealthCheck probes liveness and counts classes.
func (s *WeaviateStore) HealthCheck(ctx context.Context) Health {
	h := Health{Status: "healthy", Provider: string(ProviderWeaviate)}
	live, err := s.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		return h
	}
	if !live {
		h.Status = "unhealthy"
		h.Error = "liveness probe returned false"
		return h
	}
	if schema, err := s.client.Schema().Getter().Do(ctx); err == nil {
		h.Collections = len(schema.Classes)
	}
	return h
}

// Close is a no-op: the client is plain HTTP.
func (s *WeaviateStore) Close() error { return nil }
