package vectorstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// LocalStore is the embedded exact-search driver. Every query is a linear
// scan computing true L2 distances, so results are exact. Collections are
// created immediately (no dimensionality needed up front) and persisted
// to one directory each under the store's root.
type LocalStore struct {
	mu          sync.RWMutex
	collections map[string]*localCollection
	dir         string
	embed       EmbedFunc
	log         *slog.Logger
}

type localCollection struct {
	mu        sync.RWMutex
	vectors   [][]float32
	documents []string
	metadatas []map[string]any
	ids       []string
	dimension int
}

// NewLocalStore opens (or creates) the store rooted at dir and loads every
// persisted collection.
func NewLocalStore(dir string, embed EmbedFunc, log *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: %w: create %s: %v", ErrPersistence, dir, err)
	}

	s := &LocalStore{
		collections: make(map[string]*localCollection),
		dir:         dir,
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
		c, err := loadLocalCollection(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("vectorstore: %w: load collection %s: %v", ErrPersistence, e.Name(), err)
		}
		s.collections[e.Name()] = c
	}

	log.Info("local vector store opened", "dir", dir, "collections", len(s.collections))
	return s, nil
}

func loadLocalCollection(dir string) (*localCollection, error) {
	meta, err := readMeta(dir)
	if err != nil {
		return nil, err
	}
	var vectors [][]float32
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
		return nil, err
	}
	if len(vectors) != len(meta.Documents) {
		return nil, fmt.Errorf("vector count %d does not match document count %d", len(vectors), len(meta.Documents))
	}
	return &localCollection{
		vectors:   vectors,
		documents: meta.Documents,
		metadatas: meta.Metadatas,
		ids:       meta.IDs,
		dimension: meta.Dimension,
	}, nil
}

// CreateCollection registers the collection and persists it immediately.
// Creating an existing collection is a no-op.
func (s *LocalStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}

	c := &localCollection{}
	if err := s.persist(name, c); err != nil {
		return err
	}
	s.collections[name] = c
	s.log.Info("collection created", "provider", ProviderLocal, "collection", name)
	return nil
}

// DeleteCollection removes the collection from memory and disk. Deleting
// an absent collection succeeds.
func (s *LocalStore) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("vectorstore: %w: delete collection %s: %v", ErrPersistence, name, err)
	}
	s.log.Info("collection deleted", "provider", ProviderLocal, "collection", name)
	return nil
}

// ListCollections returns collection names in sorted order.
func (s *LocalStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AddDocuments embeds the batch and appends it to the collection, creating
// the collection if it does not exist yet. On a dimension mismatch the
// collection is left untouched.
func (s *LocalStore) AddDocuments(ctx context.Context, collection string, texts []string, metadatas []map[string]any, ids []string) error {
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

	c := s.getOrCreate(collection)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension != 0 && c.dimension != len(vectors[0]) {
		return fmt.Errorf("vectorstore: %w: collection %q stores %d-dimensional vectors, batch has %d",
			ErrDimensionMismatch, collection, c.dimension, len(vectors[0]))
	}

	// Append, persist, and roll back on failure: a batch the disk
	// rejected must never be served from memory or duplicated by a retry.
	prev := len(c.ids)
	prevDim := c.dimension

	c.vectors = append(c.vectors, vectors...)
	c.documents = append(c.documents, texts...)
	c.metadatas = append(c.metadatas, metadatas...)
	c.ids = append(c.ids, ids...)
	c.dimension = len(vectors[0])

	if err := s.persist(collection, c); err != nil {
		c.vectors = c.vectors[:prev]
		c.documents = c.documents[:prev]
		c.metadatas = c.metadatas[:prev]
		c.ids = c.ids[:prev]
		c.dimension = prevDim
		return err
	}
	s.log.Debug("documents added", "provider", ProviderLocal, "collection", collection, "count", len(texts))
	return nil
}

func (s *LocalStore) getOrCreate(name string) *localCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &localCollection{}
		s.collections[name] = c
	}
	return c
}

// Query embeds the request text and linearly scans the collection.
// Metadata filtering happens before ranking, so TopK counts only matching
// chunks. A missing or empty collection yields no results.
func (s *LocalStore) Query(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
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
	if len(c.vectors) == 0 {
		return nil, nil
	}
	if len(query) != c.dimension {
		return nil, fmt.Errorf("vectorstore: %w: query has dimension %d, collection %q stores %d",
			ErrDimensionMismatch, len(query), collection, c.dimension)
	}

	var results []Result
	for i, v := range c.vectors {
		if req.Filter != nil && !matchesFilter(c.metadatas[i], req.Filter) {
			continue
		}
		var sum float64
		for d := range query {
			diff := float64(query[d] - v[d])
			sum += diff * diff
		}
		r := Result{
			ID:       c.ids[i],
			Document: c.documents[i],
			Metadata: c.metadatas[i],
			Distance: float64Ptr(math.Sqrt(sum)),
		}
		if withinMaxDistance(r, req.MaxDistance) {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool { return *results[i].Distance < *results[j].Distance })
	if req.TopK > 0 && len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// CollectionStats reports the size of one collection.
func (s *LocalStore) CollectionStats(ctx context.Context, collection string) (Stats, error) {
	s.mu.RLock()
	c, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return Stats{}, fmt.Errorf("vectorstore: %w: %q", ErrCollectionNotFound, collection)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Name:      collection,
		Count:     len(c.documents),
		Dimension: c.dimension,
		Provider:  string(ProviderLocal),
	}, nil
}

// HealthCheck verifies the data directory is still accessible.
func (s *LocalStore) HealthCheck(ctx context.Context) Health {
	s.mu.RLock()
	n := len(s.collections)
	s.mu.RUnlock()

	h := Health{Status: "healthy", Provider: string(ProviderLocal), Collections: n}
	if _, err := os.Stat(s.dir); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}

// Close is a no-op: every write is persisted as it happens.
func (s *LocalStore) Close() error { return nil }

// persist writes the collection's vector file and sidecar. Callers must
// hold the collection lock (or own the collection exclusively).
func (s *LocalStore) persist(name string, c *localCollection) error {
	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore: %w: %v", ErrPersistence, err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.vectors); err != nil {
		return fmt.Errorf("vectorstore: %w: encode vectors: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, indexFileName), buf.Bytes()); err != nil {
		return fmt.Errorf("vectorstore: %w: write vectors: %v", ErrPersistence, err)
	}

	meta := collectionMeta{
		Documents: c.documents,
		Metadatas: c.metadatas,
		IDs:       c.ids,
		Dimension: c.dimension,
	}
	if err := writeMeta(dir, meta); err != nil {
		return fmt.Errorf("vectorstore: %w: write sidecar: %v", ErrPersistence, err)
	}
	return nil
}
