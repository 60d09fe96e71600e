// Package index implements the in-process approximate-nearest-neighbor
// indexes behind the embedded vector store: a brute-force flat index, an
// inverted-file (IVF) index with k-means coarse quantization, and a
// navigable-small-world graph (HNSW). All three operate on squared L2
// distance and can be snapshotted to disk with [Save] / [Load].
package index

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
)

// Kind selects an index algorithm.
type Kind string

const (
	// Flat is exhaustive search over every stored vector.
	Flat Kind = "flat"
	// IVF partitions vectors into k-means cells and probes only the
	// nearest cells at query time. Requires a training pass.
	IVF Kind = "ivf"
	// HNSW builds a navigable-small-world graph for greedy search.
	HNSW Kind = "hnsw"
)

// Options tunes the non-flat index kinds. Zero values select defaults.
type Options struct {
	// NList is the number of IVF cells (default 100).
	NList int
	// NProbe is the number of IVF cells scanned per query (default 8).
	NProbe int
	// M is the number of graph links created per HNSW insertion (default 16).
	M int
	// EfSearch is the HNSW candidate-list width at query time (default 64).
	EfSearch int
}

func (o Options) withDefaults() Options {
	if o.NList <= 0 {
		o.NList = 100
	}
	if o.NProbe <= 0 {
		o.NProbe = 8
	}
	if o.M <= 0 {
		o.M = 16
	}
	if o.EfSearch <= 0 {
		o.EfSearch = 64
	}
	return o
}

// Index is the contract shared by the three index kinds. Vector IDs are
// insertion positions: the i-th vector ever added has ID i.
type Index interface {
	// Add appends vectors to the index.
	Add(vectors [][]float32) error

	// Search returns the IDs and squared L2 distances of up to k nearest
	// stored vectors, ordered nearest first.
	Search(query []float32, k int) ([]int, []float32, error)

	// Train runs the index's training pass over a sample of vectors.
	// A no-op for kinds that need no training.
	Train(vectors [][]float32) error

	// NeedsTraining reports whether this kind requires Train before Add.
	NeedsTraining() bool

	// IsTrained reports whether the index is ready to accept vectors.
	IsTrained() bool

	// Len returns the number of stored vectors.
	Len() int

	// Dim returns the vector dimensionality.
	Dim() int

	// Kind returns the algorithm of this index.
	Kind() Kind
}

// New constructs an empty index of the given kind and dimensionality.
func New(kind Kind, dim int, opts Options) (Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	opts = opts.withDefaults()

	switch kind {
	case Flat:
		return &FlatIndex{Dimension: dim}, nil
	case IVF:
		return &IVFIndex{Dimension: dim, NList: opts.NList, NProbe: opts.NProbe}, nil
	case HNSW:
		return &HNSWIndex{Dimension: dim, M: opts.M, EfSearch: opts.EfSearch}, nil
	default:
		return nil, fmt.Errorf("index: unknown kind %q", kind)
	}
}

// snapshot is the on-disk envelope for a serialized index. Exactly one of
// the pointer fields is set, matching Kind.
type snapshot struct {
	Kind Kind
	Flat *FlatIndex
	IVF  *IVFIndex
	HNSW *HNSWIndex
}

// Save writes a gob snapshot of idx to w.
func Save(w io.Writer, idx Index) error {
	snap := snapshot{Kind: idx.Kind()}
	switch v := idx.(type) {
	case *FlatIndex:
		snap.Flat = v
	case *IVFIndex:
		snap.IVF = v
	case *HNSWIndex:
		snap.HNSW = v
	default:
		return fmt.Errorf("index: cannot snapshot %T", idx)
	}
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("index: encode snapshot: %w", err)
	}
	return nil
}

// Load reads a gob snapshot written by [Save] and reconstructs the index.
func Load(r io.Reader) (Index, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("index: decode snapshot: %w", err)
	}
	switch snap.Kind {
	case Flat:
		if snap.Flat == nil {
			return nil, fmt.Errorf("index: snapshot missing flat payload")
		}
		return snap.Flat, nil
	case IVF:
		if snap.IVF == nil {
			return nil, fmt.Errorf("index: snapshot missing ivf payload")
		}
		return snap.IVF, nil
	case HNSW:
		if snap.HNSW == nil {
			return nil, fmt.Errorf("index: snapshot missing hnsw payload")
		}
		return snap.HNSW, nil
	default:
		return nil, fmt.Errorf("index: snapshot has unknown kind %q", snap.Kind)
	}
}

// squaredL2 returns the squared Euclidean distance between a and b.
// Callers guarantee equal length.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// candidate pairs a vector ID with its distance to the query.
type candidate struct {
	id   int
	dist float32
}

// nearest sorts candidates by distance (ties by ID for determinism) and
// returns the first k as parallel ID and distance slices.
func nearest(cands []candidate, k int) ([]int, []float32) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].id < cands[j].id
	})
	if k > len(cands) {
		k = len(cands)
	}
	ids := make([]int, k)
	dists := make([]float32, k)
	for i := 0; i < k; i++ {
		ids[i] = cands[i].id
		dists[i] = cands[i].dist
	}
	return ids, dists
}

// checkDims verifies every vector matches the index dimensionality.
func checkDims(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("index: vector %d has dimension %d, index expects %d", i, len(v), dim)
		}
	}
	return nil
}
