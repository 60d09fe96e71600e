package index

import (
	"container/heap"
	"fmt"
)

// HNSWIndex is a single-layer navigable-small-world graph. Each inserted
// vector is linked to its M nearest neighbors found by a greedy beam
// search from the entry point; queries run the same beam search with a
// candidate list of EfSearch. Approximate but fast on large collections.
// Fields are exported for gob serialization only.
type HNSWIndex struct {
	Dimension int
	M         int
	EfSearch  int
	Vectors   [][]float32
	Links     [][]int32
}

// Add inserts vectors one at a time, wiring each into the graph.
func (ix *HNSWIndex) Add(vectors [][]float32) error {
	if err := checkDims(vectors, ix.Dimension); err != nil {
		return err
	}
	for _, v := range vectors {
		ix.insert(v)
	}
	return nil
}

func (ix *HNSWIndex) insert(v []float32) {
	id := int32(len(ix.Vectors))
	ix.Vectors = append(ix.Vectors, v)

	if id == 0 {
		ix.Links = append(ix.Links, nil)
		return
	}

	ef := ix.EfSearch
	if ef < ix.M {
		ef = ix.M
	}
	neighbors, _ := ix.beamSearch(v, ix.M, ef)

	links := make([]int32, len(neighbors))
	for i, n := range neighbors {
		links[i] = int32(n)
	}
	ix.Links = append(ix.Links, links)

	// Bidirectional links, pruning back-links that grow past 2*M to keep
	// the nearest ones.
	maxLinks := 2 * ix.M
	for _, n := range links {
		ix.Links[n] = append(ix.Links[n], id)
		if len(ix.Links[n]) > maxLinks {
			ix.Links[n] = ix.pruneLinks(n, maxLinks)
		}
	}
}

// pruneLinks keeps the limit nearest links of node n.
func (ix *HNSWIndex) pruneLinks(n int32, limit int) []int32 {
	cands := make([]candidate, len(ix.Links[n]))
	for i, l := range ix.Links[n] {
		cands[i] = candidate{id: int(l), dist: squaredL2(ix.Vectors[n], ix.Vectors[l])}
	}
	ids, _ := nearest(cands, limit)
	pruned := make([]int32, len(ids))
	for i, id := range ids {
		pruned[i] = int32(id)
	}
	return pruned
}

// Search runs a beam search from the entry point and returns the k nearest
// reachable vectors.
func (ix *HNSWIndex) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != ix.Dimension {
		return nil, nil, fmt.Errorf("index: query has dimension %d, index expects %d", len(query), ix.Dimension)
	}
	ef := ix.EfSearch
	if ef < k {
		ef = k
	}
	ids, dists := ix.beamSearch(query, k, ef)
	return ids, dists, nil
}

// beamSearch is the greedy best-first traversal shared by insertion and
// query. It starts at node 0, expands the nearest unvisited candidate,
// and keeps the best ef results seen. Returns up to k results, nearest
// first.
func (ix *HNSWIndex) beamSearch(query []float32, k, ef int) ([]int, []float32) {
	if len(ix.Vectors) == 0 {
		return nil, nil
	}

	entry := candidate{id: 0, dist: squaredL2(query, ix.Vectors[0])}
	visited := map[int32]bool{0: true}
	frontier := &minDistHeap{entry}
	best := &maxDistHeap{entry}

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(candidate)
		if best.Len() >= ef && cur.dist > (*best)[0].dist {
			break
		}
		for _, n := range ix.Links[cur.id] {
			if visited[n] {
				continue
			}
			visited[n] = true
			d := squaredL2(query, ix.Vectors[n])
			if best.Len() < ef || d < (*best)[0].dist {
				heap.Push(frontier, candidate{id: int(n), dist: d})
				heap.Push(best, candidate{id: int(n), dist: d})
				if best.Len() > ef {
					heap.Pop(best)
				}
			}
		}
	}

	return nearest([]candidate(*best), k)
}

// Train is a no-op: the graph is built incrementally.
func (ix *HNSWIndex) Train([][]float32) error { return nil }

// NeedsTraining reports false.
func (ix *HNSWIndex) NeedsTraining() bool { return false }

// IsTrained reports true.
func (ix *HNSWIndex) IsTrained() bool { return true }

// Len returns the number of stored vectors.
func (ix *HNSWIndex) Len() int { return len(ix.Vectors) }

// Dim returns the vector dimensionality.
func (ix *HNSWIndex) Dim() int { return ix.Dimension }

// Kind returns [HNSW].
func (ix *HNSWIndex) Kind() Kind { return HNSW }

// minDistHeap pops the candidate nearest the query first.
type minDistHeap []candidate

func (h minDistHeap) Len() int            { return len(h) }
func (h minDistHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)         { *h = append(*h, x.(candidate)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap pops the candidate farthest from the query first, so the
// root is the worst of the kept results.
type maxDistHeap []candidate

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)         { *h = append(*h, x.(candidate)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
