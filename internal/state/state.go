// Package state tracks per-chunk content hashes between indexing runs.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// SchemaVersion is the IndexState format written by this build.
const SchemaVersion = 1

// FileName is the state file name inside the index directory.
const FileName = "state.json"

// IndexState is the persisted chunk_id -> content hash map.
type IndexState struct {
	ChunkHashes   map[string]string `json:"chunk_hashes"`
	SchemaVersion int               `json:"schema_version"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// New returns an empty state at the current schema version.
func New() *IndexState {
	return &IndexState{
		ChunkHashes:   make(map[string]string),
		SchemaVersion: SchemaVersion,
	}
}

// Hash fingerprints a chunk's text, source, heading and position.
// Fields are NUL-separated so content cannot shift between them unnoticed.
func Hash(c chunk.Chunk) string {
	h := sha256.New()
	h.Write([]byte(c.Text))
	h.Write([]byte{0})
	h.Write([]byte(c.Source))
	h.Write([]byte{0})
	h.Write([]byte(c.Heading))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(c.Position)))
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads the state file at path. A missing file is an empty state.
func Load(path string) (*IndexState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, docerrors.IOError(fmt.Sprintf("failed to read index state %s", path), err)
	}

	var s IndexState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeStateMalformed,
			fmt.Sprintf("failed to parse index state %s", path), err).
			WithSuggestion("delete the index directory and run 'init' again")
	}
	if s.SchemaVersion > SchemaVersion {
		return nil, docerrors.New(docerrors.ErrCodeSchemaMismatch,
			fmt.Sprintf("index state schema %d is newer than supported %d", s.SchemaVersion, SchemaVersion), nil)
	}
	if s.ChunkHashes == nil {
		s.ChunkHashes = make(map[string]string)
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	return &s, nil
}

// Save writes the state atomically (temp file + rename).
func (s *IndexState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return docerrors.New(docerrors.ErrCodeFileWrite, "failed to encode index state", err)
	}
	return WriteFileAtomic(path, data)
}

// Clone returns a deep copy of the state.
func (s *IndexState) Clone() *IndexState {
	c := &IndexState{
		ChunkHashes:   make(map[string]string, len(s.ChunkHashes)),
		SchemaVersion: s.SchemaVersion,
		LastUpdated:   s.LastUpdated,
	}
	for k, v := range s.ChunkHashes {
		c.ChunkHashes[k] = v
	}
	return c
}

// Changes classifies the current chunk set against a prior state.
type Changes struct {
	New       []chunk.Chunk
	Modified  []chunk.Chunk
	Unchanged []chunk.Chunk
	Removed   []string

	// Hashes holds the freshly computed hash of every current chunk.
	Hashes map[string]string
}

// Empty reports whether nothing needs to be written to the lexical index.
func (c Changes) Empty() bool {
	return len(c.New) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Diff compares current chunks against prev.
func Diff(prev *IndexState, chunks []chunk.Chunk) Changes {
	ch := Changes{Hashes: make(map[string]string, len(chunks))}

	for _, c := range chunks {
		hash := Hash(c)
		ch.Hashes[c.ID] = hash

		old, ok := prev.ChunkHashes[c.ID]
		switch {
		case !ok:
			ch.New = append(ch.New, c)
		case old == hash:
			ch.Unchanged = append(ch.Unchanged, c)
		default:
			ch.Modified = append(ch.Modified, c)
		}
	}

	for id := range prev.ChunkHashes {
		if _, ok := ch.Hashes[id]; !ok {
			ch.Removed = append(ch.Removed, id)
		}
	}
	sort.Strings(ch.Removed)
	return ch
}

// Apply records changes in the state and bumps LastUpdated.
func (s *IndexState) Apply(ch Changes, now time.Time) {
	for _, id := range ch.Removed {
		delete(s.ChunkHashes, id)
	}
	for _, c := range ch.New {
		s.ChunkHashes[c.ID] = ch.Hashes[c.ID]
	}
	for _, c := range ch.Modified {
		s.ChunkHashes[c.ID] = ch.Hashes[c.ID]
	}
	s.SchemaVersion = SchemaVersion
	s.LastUpdated = now.UTC()
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to create directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to create temp file for %s", path), err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to write %s", path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to sync %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to close %s", path), err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to rename temp file to %s", path), err)
	}
	return nil
}
