package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
)

func testChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{ID: "install.md:chunk0", Text: "installing the server requires downloading the binary and running it", Source: "install.md", Heading: "Install", Position: 0},
		{ID: "config.md:chunk0", Text: "configuration lives in a yaml file next to the binary for every server", Source: "config.md", Position: 0},
		{ID: "api.md:chunk0", Text: "the api exposes a function called retrieve which returns ranked passages", Source: "api.md", Heading: "API", Position: 0},
	}
}

func newTestLexical(t *testing.T, chunks []chunk.Chunk) *LexicalIndex {
	t.Helper()
	idx, err := NewMemLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	w, err := idx.Writer(0)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, w.Add(c))
	}
	require.NoError(t, w.Commit())
	return idx
}

func TestLexicalIndex_AddAndSearch(t *testing.T) {
	// Given: an index with three chunks
	idx := newTestLexical(t, testChunks())

	// When: searching a stemmed term
	hits, err := idx.Search(context.Background(), "install", 10)
	require.NoError(t, err)

	// Then: the stemmed variant matches and fields are hydrated
	require.Len(t, hits, 1)
	assert.Equal(t, "install.md:chunk0", hits[0].Chunk.ID)
	assert.Equal(t, "Install", hits[0].Chunk.Heading)
	assert.Equal(t, "install.md", hits[0].Chunk.Source)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestLexicalIndex_Search_OrdersByScoreAndLimitsK(t *testing.T) {
	idx := newTestLexical(t, testChunks())

	hits, err := idx.Search(context.Background(), "binary server", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	all, err := idx.Search(context.Background(), "binary server", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.GreaterOrEqual(t, all[0].Score, all[1].Score)
	assert.Equal(t, all[0].Chunk.ID, hits[0].Chunk.ID)
}

func TestLexicalIndex_Search_EmptyHeadingRoundTrips(t *testing.T) {
	idx := newTestLexical(t, testChunks())

	hits, err := idx.Search(context.Background(), "yaml", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "", hits[0].Chunk.Heading)
}

func TestLexicalIndex_Search_WildcardMatchesAll(t *testing.T) {
	idx := newTestLexical(t, testChunks())

	hits, err := idx.Search(context.Background(), "*", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestLexicalIndex_Search_UnparseableQueryFallsBack(t *testing.T) {
	idx := newTestLexical(t, testChunks())

	// Unbalanced syntax must never surface as an error
	for _, q := range []string{
		`"retrieve`, `retrieve^`, `(api`, `[]{}`, `~~~`,
		`HashMap::new`, `std::fs::read()`, `-`, `+`, `+retrieve`, `-api`, `x:`,
	} {
		_, err := idx.Search(context.Background(), q, 10)
		assert.NoError(t, err, q)
	}
}

func TestLexicalIndex_Search_ReservedSyntaxMatchesTerms(t *testing.T) {
	// Given: a query whose "::" survives sanitizing and still fails to parse
	idx := newTestLexical(t, testChunks())

	// When: searching
	hits, err := idx.Search(context.Background(), "api::retrieve", 10)

	// Then: its words are matched as plain terms
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "api.md:chunk0", hits[0].Chunk.ID)
	assert.Positive(t, hits[0].Score)
}

func TestLexicalIndex_Search_EmptyQuery(t *testing.T) {
	idx := newTestLexical(t, testChunks())

	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalWriter_DeleteByID(t *testing.T) {
	// Given: an index with three chunks
	idx := newTestLexical(t, testChunks())

	// When: deleting one by id
	w, err := idx.Writer(10)
	require.NoError(t, err)
	require.NoError(t, w.Delete("api.md:chunk0"))
	require.NoError(t, w.Commit())

	// Then: it is gone and the writer counted one write
	assert.Equal(t, 1, w.Writes())
	hits, err := idx.Search(context.Background(), "retrieve", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestLexicalWriter_FlushesAtBufferBound(t *testing.T) {
	idx, err := NewMemLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Given: a writer with a buffer of two operations
	w, err := idx.Writer(2)
	require.NoError(t, err)
	chunks := testChunks()
	require.NoError(t, w.Add(chunks[0]))
	require.NoError(t, w.Add(chunks[1]))

	// Then: the first two are already flushed before Commit
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, w.Add(chunks[2]))
	require.NoError(t, w.Commit())
	count, err = idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestOpenLexicalIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", LexicalDirName)

	idx, err := OpenLexicalIndex(path)
	require.NoError(t, err)
	w, err := idx.Writer(0)
	require.NoError(t, err)
	for _, c := range testChunks() {
		require.NoError(t, w.Add(c))
	}
	require.NoError(t, w.Commit())
	require.NoError(t, idx.Close())

	reopened, err := OpenLexicalIndex(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	hits, err := reopened.Search(context.Background(), "configuration", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "config.md:chunk0", hits[0].Chunk.ID)
}

func TestLexicalIndex_ClosedRejectsOperations(t *testing.T) {
	idx, err := NewMemLexicalIndex()
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), "x", 1)
	assert.Error(t, err)
	_, err = idx.Writer(1)
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"only symbols", `[](){}~^"'`, "*"},
		{"embedded brackets and quotes", `how to "use" [the] (api)~ ^fast`, "how to use the api fast"},
		{"collapses whitespace", "  a \t  b\n c ", "a b c"},
		{"empty", "", "*"},
		{"plain", "hybrid search", "hybrid search"},
		{"brackets inside a word", "foo(bar)", "foobar"},
		{"apostrophe inside a word", "don't", "dont"},
		{"index expression", "items[0]", "items0"},
		{"keeps reserved operators", "HashMap::new()", "HashMap::new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
