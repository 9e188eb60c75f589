package store

import (
	"log/slog"

	"github.com/coder/hnsw"
)

// Vector search modes.
const (
	VectorModeExact = "exact"
	VectorModeHNSW  = "hnsw"
)

// VectorSearcher finds the k stored chunks most similar to a query vector.
type VectorSearcher interface {
	SimilaritySearch(query []float32, k int) []VectorHit
}

var (
	_ VectorSearcher = (*VectorStore)(nil)
	_ VectorSearcher = (*ANNIndex)(nil)
)

// ANNIndex is an in-memory HNSW graph built from a VectorStore snapshot.
// It trades exactness for sub-linear search; scores are still exact cosine
// similarities of the candidates it returns.
type ANNIndex struct {
	graph *hnsw.Graph[string]
	store *VectorStore
	dims  int
}

// NewANNIndex builds a graph over every embedding in vs. Embeddings whose
// dimension differs from the first one seen are skipped.
func NewANNIndex(vs *VectorStore) *ANNIndex {
	graph := hnsw.NewGraph[string]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	a := &ANNIndex{graph: graph, store: vs}

	skipped := 0
	for _, ec := range vs.All() {
		if !ec.HasEmbedding() {
			continue
		}
		if a.dims == 0 {
			a.dims = len(ec.Embedding)
		}
		if len(ec.Embedding) != a.dims {
			skipped++
			continue
		}
		vec := make([]float32, len(ec.Embedding))
		copy(vec, ec.Embedding)
		graph.Add(hnsw.MakeNode(ec.ID, vec))
	}
	if skipped > 0 {
		slog.Warn("ann_embeddings_skipped",
			slog.Int("skipped", skipped),
			slog.Int("dims", a.dims))
	}
	slog.Debug("ann_index_built", slog.Int("nodes", graph.Len()))
	return a
}

// Len returns the number of nodes in the graph.
func (a *ANNIndex) Len() int {
	return a.graph.Len()
}

// SimilaritySearch returns approximate top-k neighbours of query.
// A query of the wrong dimension matches nothing.
func (a *ANNIndex) SimilaritySearch(query []float32, k int) []VectorHit {
	if k <= 0 || a.graph.Len() == 0 || len(query) != a.dims {
		return []VectorHit{}
	}

	nodes := a.graph.Search(query, k)
	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		ec, ok := a.store.Get(node.Key)
		if !ok {
			continue
		}
		hits = append(hits, VectorHit{Chunk: ec, Score: CosineSimilarity(query, ec.Embedding)})
	}
	sortVectorHits(hits)
	return hits
}
