package vectorstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore/index"
)

// ANNStore is the embedded approximate-nearest-neighbor driver. It builds
// a flat, IVF, or HNSW index per collection (see the index package), with
// distances reported as squared L2.
//
// Index creation is deferred: the underlying index needs the embedding
// dimensionality, which is only known once the first batch arrives.
// CreateCollection therefore just registers the name; the first
// AddDocuments call builds the index and, for IVF, trains it on that
// batch before inserting.
type ANNStore struct {
	mu          sync.RWMutex
	collections map[string]*annCollection
	dir         string
	kind        index.Kind
	opts        index.Options
	embed       EmbedFunc
	log         *slog.Logger
}

type annCollection struct {
	mu        sync.RWMutex
	idx       index.Index // nil until the first batch arrives
	documents []string
	metadatas []map[string]any
	ids       []string
}

// NewANNStore opens (or creates) the store rooted at dir with the given
// index kind, loading every persisted collection.
func NewANNStore(dir string, kind index.Kind, opts index.Options, embed EmbedFunc, log *slog.Logger) (*ANNStore, error) {
	switch kind {
	case index.Flat, index.IVF, index.HNSW:
	default:
		return nil, fmt.Errorf("vectorstore: unknown ann index type %q", kind)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: %w: create %s: %v", ErrPersistence, dir, err)
	}

	s := &ANNStore{
		collections: make(map[string]*annCollection),
		dir:         dir,
		kind:        kind,
		opts:        opts,
		embed:       embed,
		log:         log,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w: read %s: %v", ErrPersistence, dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := loadANNCollection(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("vectorstore: %w: load collection %s: %v", ErrPersistence, e.Name(), err)
		}
		s.collections[e.Name()] = c
	}

	log.Info("ann vector store opened", "dir", dir, "index_type", string(kind), "collections", len(s.collections))
	return s, nil
}

func loadANNCollection(dir string) (*annCollection, error) {
	meta, err := readMeta(dir)
	if err != nil {
		return nil, err
	}
	c := &annCollection{
		documents: meta.Documents,
		metadatas: meta.Metadatas,
		ids:       meta.IDs,
	}

	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if os.IsNotExist(err) {
		// Collection registered but never populated: no index yet.
		if len(meta.Documents) != 0 {
			return nil, fmt.Errorf("sidecar lists %d documents but no index file exists", len(meta.Documents))
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	idx, err := index.Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if idx.Len() != len(meta.Documents) {
		return nil, fmt.Errorf("index holds %d vectors but sidecar lists %d documents", idx.Len(), len(meta.Documents))
	}
	c.idx = idx
	return c, nil
}

// CreateCollection registers the name. The index itself is built lazily
// on the first AddDocuments call.
func (s *ANNStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}

	c := &annCollection{}
	if err := s.persist(name, c); err != nil {
		return err
	}
	s.collections[name] = c
	s.log.Info("collection created", "provider", ProviderANN, "collection", name, "index_type", string(s.kind))
	return nil
}

// DeleteCollection removes the collection from memory and disk. Deleting
// an absent collection succeeds.
func (s *ANNStore) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("vectorstore: %w: delete collection %s: %v", ErrPersistence, name, err)
	}
	s.log.Info("collection deleted", "provider", ProviderANN, "collection", name)
	return nil
}

// ListCollections returns collection names in sorted order.
func (s *ANNStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AddDocuments embeds the batch and inserts it into the collection's
// index, building (and for IVF, training) the index on the first batch.
// On a dimension mismatch or a failed persist nothing is mutated.
func (s *ANNStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
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
	dim := len(vectors[0])

	c := s.getOrCreate(collection)

	c.mu.Lock()
	defer c.mu.Unlock()

	// All mutation is staged on a private index copy and committed to the
	// collection only after persist succeeds, so a batch the disk rejected
	// is neither served from memory nor duplicated by a retry.
	var idx index.Index
	built := false
	switch {
	case c.idx == nil:
		idx, err = index.New(s.kind, dim, s.opts)
		if err != nil {
			return fmt.Errorf("vectorstore: build %s index: %w", s.kind, err)
		}
		built = true
	case c.idx.Dim() != dim:
		return fmt.Errorf("vectorstore: %w: collection %q stores %d-dimensional vectors, batch has %d",
			ErrDimensionMismatch, collection, c.idx.Dim(), dim)
	default:
		idx, err = cloneIndex(c.idx)
		if err != nil {
			return fmt.Errorf("vectorstore: %w: snapshot index: %v", ErrPersistence, err)
		}
	}

	trained := false
	if idx.NeedsTraining() && !idx.IsTrained() {
		if err := idx.Train(vectors); err != nil {
			return fmt.Errorf("vectorstore: train %s index: %w", s.kind, err)
		}
		trained = true
	}

	if err := idx.Add(vectors); err != nil {
		return fmt.Errorf("vectorstore: add vectors: %w", err)
	}

	staged := &annCollection{
		idx:       idx,
		documents: append(c.documents[:len(c.documents):len(c.documents)], texts...),
		metadatas: append(c.metadatas[:len(c.metadatas):len(c.metadatas)], metadatas...),
		ids:       append(c.ids[:len(c.ids):len(c.ids)], ids...),
	}
	if err := s.persist(collection, staged); err != nil {
		return err
	}

	c.idx = staged.idx
	c.documents = staged.documents
	c.metadatas = staged.metadatas
	c.ids = staged.ids

	if built {
		s.log.Info("index built", "provider", ProviderANN, "collection", collection,
			"index_type", string(s.kind), "dimension", dim)
	}
	if trained {
		s.log.Info("index trained", "provider", ProviderANN, "collection", collection, "sample", len(vectors))
	}
	s.log.Debug("documents added", "provider", ProviderANN, "collection", collection, "count", len(texts))
	return nil
}

func (s *ANNStore) getOrCreate(name string) *annCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &annCollection{}
		s.collections[name] = c
	}
	return c
}

// Query embeds the request text and searches the index. The index ranks
// first and the metadata filter prunes afterwards, so fewer than TopK
// results may come back when a filter is set. A missing or unpopulated
// collection yields no results.
func (s *ANNStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	s.mu.RLock()
	c, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	vectors, err := embedBatch(ctx, s.embed, []string{req.Text})
	if err != nil {
		return nil, err
	}
	query := vectors[0]

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.idx == nil || c.idx.Len() == 0 {
		return nil, nil
	}
	if len(query) != c.idx.Dim() {
		return nil, fmt.Errorf("vectorstore: %w: query has dimension %d, collection %q stores %d",
			ErrDimensionMismatch, len(query), collection, c.idx.Dim())
	}

	k := req.TopK
	if k <= 0 {
		k = c.idx.Len()
	}
	hits, dists, err := c.idx.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for i, id := range hits {
		r := Result{
			ID:       c.ids[id],
			Document: c.documents[id],
			Metadata: c.metadatas[id],
			Distance: float64Ptr(float64(dists[i])),
		}
		if req.Filter != nil && !matchesFilter(r.Metadata, req.Filter) {
			continue
		}
		if !withinMaxDistance(r, req.MaxDistance) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// CollectionStats reports the size and index configuration of one
// collection.
func (s *ANNStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	s.mu.RLock()
	c, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return Stats{}, fmt.Errorf("vectorstore: %w: %q", ErrCollectionNotFound, collection)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := Stats{
		Name:      collection,
		Count:     len(c.documents),
		Provider:  string(ProviderANN),
		IndexType: string(s.kind),
	}
	if c.idx != nil {
		stats.Dimension = c.idx.Dim()
	}
	return stats, nil
}

// HealthCheck verifies the data directory is still accessible.
func (s *ANNStore) HealthCheck(ctx context.Context) Health {
	s.mu.RLock()
	n := len(s.collections)
	s.mu.RUnlock()

	h := Health{Status: "healthy", Provider: string(ProviderANN), Collections: n}
	if _, err := os.Stat(s.dir); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}

// Close is a no-op: every write is persisted as it happens.
func (s *ANNStore) Close() error { return nil }

// persist writes the collection's index snapshot and sidecar. Callers
// must hold the collection lock (or own the collection exclusively).
// cloneIndex deep-copies an index through a serialize/deserialize round
// trip, giving AddDocuments a private copy to mutate before commit.
func cloneIndex(idx index.Index) (index.Index, error) {
	var buf bytes.Buffer
	if err := index.Save(&buf, idx); err != nil {
		return nil, err
	}
	return index.Load(&buf)
}

func (s *ANNStore) persist(name string, c *annCollection) error {
	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore: %w: %v", ErrPersistence, err)
	}

	if c.idx != nil {
		var buf bytes.Buffer
		if err := index.Save(&buf, c.idx); err != nil {
			return fmt.Errorf("vectorstore: %w: %v", ErrPersistence, err)
		}
		if err := writeFileAtomic(filepath.Join(dir, indexFileName), buf.Bytes()); err != nil {
			return fmt.Errorf("vectorstore: %w: write index: %v", ErrPersistence, err)
		}
	}

	meta := collectionMeta{
		Documents: c.documents,
		Metadatas: c.metadatas,
		IDs:       c.ids,
		IndexType: string(s.kind),
	}
	if c.idx != nil {
		meta.Dimension = c.idx.Dim()
	}
	if err := writeMeta(dir, meta); err != nil {
		return fmt.Errorf("vectorstore: %w: write sidecar: %v", ErrPersistence, err)
	}
	return nil
}
