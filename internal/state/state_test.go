package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

func sampleChunk() chunk.Chunk {
	return chunk.Chunk{
		ID:       "guide.md:chunk0",
		Text:     "the quick brown fox jumps over the lazy dog again",
		Source:   "guide.md",
		Heading:  "Intro",
		Position: 0,
	}
}

func TestHash_StableForIdenticalFields(t *testing.T) {
	a := sampleChunk()
	b := sampleChunk()

	assert.Equal(t, Hash(a), Hash(b))
	assert.Len(t, Hash(a), 64)
}

func TestHash_ChangesWithAnyField(t *testing.T) {
	base := Hash(sampleChunk())

	tests := []struct {
		name   string
		mutate func(c *chunk.Chunk)
	}{
		{"text", func(c *chunk.Chunk) { c.Text += "!" }},
		{"source", func(c *chunk.Chunk) { c.Source = "other.md" }},
		{"heading", func(c *chunk.Chunk) { c.Heading = "Usage" }},
		{"heading removed", func(c *chunk.Chunk) { c.Heading = "" }},
		{"position", func(c *chunk.Chunk) { c.Position = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleChunk()
			tt.mutate(&c)
			assert.NotEqual(t, base, Hash(c))
		})
	}
}

func TestHash_FieldBoundariesMatter(t *testing.T) {
	a := chunk.Chunk{Text: "ab", Source: "c"}
	b := chunk.Chunk{Text: "a", Source: "bc"}
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestDiff_ClassifiesChunks(t *testing.T) {
	// Given: prior state with three chunks
	unchanged := chunk.Chunk{ID: "a:chunk0", Text: "same text", Source: "a"}
	modified := chunk.Chunk{ID: "a:chunk1", Text: "old text", Source: "a", Position: 1}
	prev := New()
	prev.ChunkHashes[unchanged.ID] = Hash(unchanged)
	prev.ChunkHashes[modified.ID] = Hash(modified)
	prev.ChunkHashes["gone:chunk0"] = "deadbeef"

	// When: diffing the current set
	modified.Text = "new text"
	added := chunk.Chunk{ID: "b:chunk0", Text: "fresh", Source: "b"}
	ch := Diff(prev, []chunk.Chunk{unchanged, modified, added})

	// Then: each chunk lands in exactly one bucket
	require.Len(t, ch.Unchanged, 1)
	assert.Equal(t, unchanged.ID, ch.Unchanged[0].ID)
	require.Len(t, ch.Modified, 1)
	assert.Equal(t, modified.ID, ch.Modified[0].ID)
	require.Len(t, ch.New, 1)
	assert.Equal(t, added.ID, ch.New[0].ID)
	assert.Equal(t, []string{"gone:chunk0"}, ch.Removed)
	assert.False(t, ch.Empty())
}

func TestDiff_NoChangesIsEmpty(t *testing.T) {
	c := sampleChunk()
	prev := New()
	prev.ChunkHashes[c.ID] = Hash(c)

	ch := Diff(prev, []chunk.Chunk{c})

	assert.True(t, ch.Empty())
	assert.Len(t, ch.Unchanged, 1)
}

func TestApply_PurgesRemovedAndRecordsHashes(t *testing.T) {
	// Given: a state holding a chunk that disappears
	prev := New()
	prev.ChunkHashes["gone:chunk0"] = "x"
	c := sampleChunk()

	// When: applying the diff
	ch := Diff(prev, []chunk.Chunk{c})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev.Apply(ch, now)

	// Then: removed ids are purged and new hashes recorded
	assert.NotContains(t, prev.ChunkHashes, "gone:chunk0")
	assert.Equal(t, Hash(c), prev.ChunkHashes[c.ID])
	assert.Equal(t, now, prev.LastUpdated)
}

func TestLoad_MissingFileIsEmptyState(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Empty(t, s.ChunkHashes)
	assert.Equal(t, SchemaVersion, s.SchemaVersion)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", FileName)
	s := New()
	s.ChunkHashes["a:chunk0"] = "h1"
	s.LastUpdated = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, s.ChunkHashes, loaded.ChunkHashes)
	assert.True(t, s.LastUpdated.Equal(loaded.LastUpdated))

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoad_MalformedIsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, docerrors.CategoryParse, docerrors.GetCategory(err))
}

func TestLoad_NewerSchemaIsIndexEngineError(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"chunk_hashes":{},"schema_version":99}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeSchemaMismatch, docerrors.GetCode(err))
	assert.Equal(t, docerrors.CategoryIndex, docerrors.GetCategory(err))
}

func TestClone_IsIndependent(t *testing.T) {
	s := New()
	s.ChunkHashes["a"] = "1"
	c := s.Clone()
	c.ChunkHashes["a"] = "2"
	assert.Equal(t, "1", s.ChunkHashes["a"])
}
