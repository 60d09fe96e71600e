package index

import "fmt"

// kmeansIterations bounds the Lloyd's-algorithm refinement during training.
const kmeansIterations = 10

// IVFIndex is an inverted-file index: training clusters a sample of vectors
// into NList cells with k-means, and each added vector is filed under its
// nearest centroid. Queries scan only the NProbe nearest cells, trading
// recall for speed. Fields are exported for gob serialization only.
type IVFIndex struct {
	Dimension int
	NList     int
	NProbe    int
	Centroids [][]float32
	Lists     [][]int32
	Vectors   [][]float32
	Ready     bool
}

// Train clusters the sample into at most NList centroids. The sample is
// only used to position centroids; it is not stored. Call Add afterwards
// to actually file vectors, including the training sample if desired.
func (ix *IVFIndex) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("index: ivf training requires at least one vector")
	}
	if err := checkDims(vectors, ix.Dimension); err != nil {
		return err
	}

	nlist := ix.NList
	if nlist > len(vectors) {
		nlist = len(vectors)
	}

	// Seed centroids with evenly spaced sample vectors, then refine with
	// Lloyd's iterations. Empty cells keep their previous centroid.
	centroids := make([][]float32, nlist)
	for i := range centroids {
		src := vectors[i*len(vectors)/nlist]
		centroids[i] = append([]float32(nil), src...)
	}

	assign := make([]int, len(vectors))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(centroids, v)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float64, ix.Dimension)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	ix.Centroids = centroids
	ix.Lists = make([][]int32, nlist)
	ix.Ready = true
	return nil
}

// Add files vectors under their nearest centroid. The index must be
// trained first.
func (ix *IVFIndex) Add(vectors [][]float32) error {
	if !ix.Ready {
		return fmt.Errorf("index: ivf index must be trained before adding vectors")
	}
	if err := checkDims(vectors, ix.Dimension); err != nil {
		return err
	}
	for _, v := range vectors {
		id := int32(len(ix.Vectors))
		ix.Vectors = append(ix.Vectors, v)
		c := nearestCentroid(ix.Centroids, v)
		ix.Lists[c] = append(ix.Lists[c], id)
	}
	return nil
}

// Search probes the NProbe cells nearest the query and ranks their members.
func (ix *IVFIndex) Search(query []float32, k int) ([]int, []float32, error) {
	if !ix.Ready {
		return nil, nil, fmt.Errorf("index: ivf index is not trained")
	}
	if len(query) != ix.Dimension {
		return nil, nil, fmt.Errorf("index: query has dimension %d, index expects %d", len(query), ix.Dimension)
	}

	probe := ix.NProbe
	if probe > len(ix.Centroids) {
		probe = len(ix.Centroids)
	}
	cells := make([]candidate, len(ix.Centroids))
	for i, c := range ix.Centroids {
		cells[i] = candidate{id: i, dist: squaredL2(query, c)}
	}
	cellIDs, _ := nearest(cells, probe)

	var cands []candidate
	for _, cell := range cellIDs {
		for _, id := range ix.Lists[cell] {
			cands = append(cands, candidate{id: int(id), dist: squaredL2(query, ix.Vectors[id])})
		}
	}
	ids, dists := nearest(cands, k)
	return ids, dists, nil
}

// NeedsTraining reports true: IVF requires a training pass.
func (ix *IVFIndex) NeedsTraining() bool { return true }

// IsTrained reports whether Train has run.
func (ix *IVFIndex) IsTrained() bool { return ix.Ready }

// Len returns the number of stored vectors.
func (ix *IVFIndex) Len() int { return len(ix.Vectors) }

// Dim returns the vector dimensionality.
func (ix *IVFIndex) Dim() int { return ix.Dimension }

// Kind returns [IVF].
func (ix *IVFIndex) Kind() Kind { return IVF }

// nearestCentroid returns the index of the centroid closest to v.
func nearestCentroid(centroids [][]float32, v []float32) int {
	best := 0
	bestDist := squaredL2(centroids[0], v)
	for i := 1; i < len(centroids); i++ {
		if d := squaredL2(centroids[i], v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
