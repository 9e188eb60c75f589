package index

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/state"
	"github.com/Aman-CERP/docrag/internal/store"
)

// Status describes the persisted index without opening the lexical engine.
type Status struct {
	IndexDir       string    `json:"index_dir"`
	Built          bool      `json:"built"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	EmbeddedChunks int       `json:"embedded_chunks"`
	LastIndexed    time.Time `json:"last_indexed,omitzero"`
	LexicalBytes   int64     `json:"lexical_bytes"`
	VectorBytes    int64     `json:"vector_bytes"`
}

// SemanticReady reports whether the semantic and hybrid strategies can run.
func (s *Status) SemanticReady() bool {
	return s.EmbeddedChunks > 0
}

// Inspect reads the state file and embeddings snapshot under indexDir.
// A directory that was never indexed yields a zero Status with Built false.
func Inspect(indexDir string) (*Status, error) {
	paths := PathsFor(indexDir)
	st := &Status{IndexDir: indexDir}

	if _, err := os.Stat(paths.State); err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, err
	}
	prev, err := state.Load(paths.State)
	if err != nil {
		return nil, err
	}
	st.Built = true
	st.Chunks = len(prev.ChunkHashes)
	st.LastIndexed = prev.LastUpdated

	sources := make(map[string]struct{})
	for id := range prev.ChunkHashes {
		if i := strings.LastIndex(id, ":chunk"); i >= 0 {
			sources[id[:i]] = struct{}{}
		}
	}
	st.Documents = len(sources)

	if store.Exists(paths.Embeddings) {
		vs, err := store.LoadVectorStore(paths.Embeddings)
		if err != nil {
			return nil, err
		}
		st.EmbeddedChunks = vs.EmbeddedCount()
		st.VectorBytes = fileSize(paths.Embeddings)
	}
	st.LexicalBytes = dirSize(paths.Lexical)
	return st, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
