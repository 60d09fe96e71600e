package index

import "fmt"

// FlatIndex is exhaustive nearest-neighbor search: every query scans every
// stored vector. Exact results, no training, linear query cost. Fields are
// exported for gob serialization only.
type FlatIndex struct {
	Dimension int
	Vectors   [][]float32
}

// Add appends vectors to the index.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	if err := checkDims(vectors, ix.Dimension); err != nil {
		return err
	}
	ix.Vectors = append(ix.Vectors, vectors...)
	return nil
}

// Search scans all stored vectors and returns the k nearest.
func (ix *FlatIndex) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != ix.Dimension {
		return nil, nil, fmt.Errorf("index: query has dimension %d, index expects %d", len(query), ix.Dimension)
	}
	cands := make([]candidate, len(ix.Vectors))
	for i, v := range ix.Vectors {
		cands[i] = candidate{id: i, dist: squaredL2(query, v)}
	}
	ids, dists := nearest(cands, k)
	return ids, dists, nil
}

// Train is a no-op: flat indexes need no training.
func (ix *FlatIndex) Train([][]float32) error { return nil }

// NeedsTraining reports false.
func (ix *FlatIndex) NeedsTraining() bool { return false }

// IsTrained reports true: a flat index is always ready.
func (ix *FlatIndex) IsTrained() bool { return true }

// Len returns the number of stored vectors.
func (ix *FlatIndex) Len() int { return len(ix.Vectors) }

// Dim returns the vector dimensionality.
func (ix *FlatIndex) Dim() int { return ix.Dimension }

// Kind returns [Flat].
func (ix *FlatIndex) Kind() Kind { return Flat }
