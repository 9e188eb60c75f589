package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/state"
)

// snapshotEntry is one record of the on-disk vector snapshot.
type snapshotEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Heading   string    `json:"heading,omitempty"`
	Position  int       `json:"position"`
	Embedding []float32 `json:"embedding,omitempty"`
	Model     string    `json:"model,omitempty"`
}

// VectorStore holds id -> EnhancedChunk and searches embeddings by linear scan.
// Search cost is O(n) in the number of stored embeddings.
type VectorStore struct {
	mu     sync.RWMutex
	path   string
	chunks map[string]EnhancedChunk
}

// NewVectorStore returns an empty store that saves to path.
func NewVectorStore(path string) *VectorStore {
	return &VectorStore{path: path, chunks: make(map[string]EnhancedChunk)}
}

// LoadVectorStore reads the snapshot at path. A missing file is an empty store.
func LoadVectorStore(path string) (*VectorStore, error) {
	vs := NewVectorStore(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return vs, nil
	}
	if err != nil {
		return nil, docerrors.IOError(fmt.Sprintf("failed to read vector snapshot %s", path), err)
	}

	var entries map[string]snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeSnapshotMalformed,
			fmt.Sprintf("failed to parse vector snapshot %s", path), err).
			WithSuggestion("delete the snapshot and run 'init' again")
	}

	for id, e := range entries {
		if e.ID == "" {
			e.ID = id
		}
		vs.chunks[id] = EnhancedChunk{
			Chunk: chunk.Chunk{
				ID:       e.ID,
				Text:     e.Text,
				Source:   e.Source,
				Heading:  e.Heading,
				Position: e.Position,
			},
			Embedding: e.Embedding,
			Model:     e.Model,
		}
	}
	return vs, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the snapshot location.
func (v *VectorStore) Path() string {
	return v.path
}

// Save writes the snapshot atomically.
func (v *VectorStore) Save() error {
	v.mu.RLock()
	entries := make(map[string]snapshotEntry, len(v.chunks))
	for id, ec := range v.chunks {
		entries[id] = snapshotEntry{
			ID:        ec.ID,
			Text:      ec.Text,
			Source:    ec.Source,
			Heading:   ec.Heading,
			Position:  ec.Position,
			Embedding: ec.Embedding,
			Model:     ec.Model,
		}
	}
	v.mu.RUnlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeFileWrite, "failed to encode vector snapshot", err)
	}
	return state.WriteFileAtomic(v.path, data)
}

// Get returns the stored chunk for id.
func (v *VectorStore) Get(id string) (EnhancedChunk, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ec, ok := v.chunks[id]
	return ec, ok
}

// Embedding returns the stored embedding for id, or nil.
func (v *VectorStore) Embedding(id string) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.chunks[id].Embedding
}

// Upsert inserts or replaces a chunk.
func (v *VectorStore) Upsert(ec EnhancedChunk) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunks[ec.ID] = ec
}

// Remove deletes a chunk by id.
func (v *VectorStore) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.chunks, id)
}

// Retain drops every chunk whose id is not in keep and returns how many were dropped.
func (v *VectorStore) Retain(keep map[string]struct{}) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	dropped := 0
	for id := range v.chunks {
		if _, ok := keep[id]; !ok {
			delete(v.chunks, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored chunks.
func (v *VectorStore) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chunks)
}

// EmbeddedCount returns the number of chunks carrying an embedding.
func (v *VectorStore) EmbeddedCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	n := 0
	for _, ec := range v.chunks {
		if ec.HasEmbedding() {
			n++
		}
	}
	return n
}

// All returns every stored chunk sorted by id.
func (v *VectorStore) All() []EnhancedChunk {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]EnhancedChunk, 0, len(v.chunks))
	for _, ec := range v.chunks {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SimilaritySearch scores every stored embedding against query and returns
// the top k by descending cosine similarity, ties broken by id.
func (v *VectorStore) SimilaritySearch(query []float32, k int) []VectorHit {
	if k <= 0 {
		return []VectorHit{}
	}

	v.mu.RLock()
	hits := make([]VectorHit, 0, len(v.chunks))
	for _, ec := range v.chunks {
		if !ec.HasEmbedding() {
			continue
		}
		hits = append(hits, VectorHit{Chunk: ec, Score: CosineSimilarity(query, ec.Embedding)})
	}
	v.mu.RUnlock()

	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func sortVectorHits(hits []VectorHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Mismatched lengths and
// zero-norm vectors yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
