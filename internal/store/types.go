// Package store provides the lexical index (Bleve) and the vector store
// (JSON snapshot with exact or HNSW search). This is the persistence layer
// for all indexed data.
package store

import (
	"fmt"

	"github.com/Aman-CERP/docrag/internal/chunk"
)

// Default file and directory names inside the index directory.
const (
	LexicalDirName   = "lexical"
	EmbeddingsFile   = "embeddings.json"
	DefaultWriterBuf = 1000 // operations buffered before a batch flush
)

// EnhancedChunk is a chunk with an optional embedding. Model names the
// embedder that produced Embedding.
type EnhancedChunk struct {
	chunk.Chunk
	Embedding []float32
	Model     string
}

// HasEmbedding reports whether an embedding is attached.
func (e EnhancedChunk) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// LexicalHit is a ranked lexical search result.
type LexicalHit struct {
	Chunk chunk.Chunk
	Score float64 // raw BM25 score
}

// VectorHit is a semantic search result.
type VectorHit struct {
	Chunk EnhancedChunk
	Score float32 // cosine similarity in [-1, 1]
}

// ErrDimensionMismatch indicates a vector has the wrong number of dimensions.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
