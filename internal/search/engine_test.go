package search

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// --- Test Helpers ---

type fakeLexical struct {
	hits  []store.LexicalHit
	err   error
	limit int
}

func (f *fakeLexical) Search(_ context.Context, _ string, k int) ([]store.LexicalHit, error) {
	f.limit = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int64
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int   { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Close() error      { return nil }

func testChunk(id string) chunk.Chunk {
	return chunk.Chunk{ID: id, Text: "text of " + id, Source: "doc.md", Position: 0}
}

func lexHit(id string, score float64) store.LexicalHit {
	return store.LexicalHit{Chunk: testChunk(id), Score: score}
}

// newFixture builds an engine where lexical order is A > B > C and semantic
// order against the query vector (1,0) is C > B > A.
func newFixture(t *testing.T) (*Engine, *fakeLexical, *fakeEmbedder, *store.VectorStore) {
	t.Helper()
	vs := store.NewVectorStore(filepath.Join(t.TempDir(), store.EmbeddingsFile))
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("A"), Embedding: []float32{0, 1}})
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("B"), Embedding: []float32{0.6, 0.8}})
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("C"), Embedding: []float32{1, 0}})

	lex := &fakeLexical{hits: []store.LexicalHit{lexHit("A", 3.0), lexHit("B", 2.0), lexHit("C", 1.0)}}
	emb := &fakeEmbedder{vec: []float32{1, 0}}

	e, err := NewEngine(lex, vs, emb)
	require.NoError(t, err)
	return e, lex, emb, vs
}

func ids(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

// --- Tests ---

func TestNewEngine_RequiresDependencies(t *testing.T) {
	vs := store.NewVectorStore(filepath.Join(t.TempDir(), store.EmbeddingsFile))

	_, err := NewEngine(nil, vs, &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(&fakeLexical{}, nil, &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(&fakeLexical{}, vs, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestEngine_AlphaOneMatchesLexicalOrder(t *testing.T) {
	// Given: lexical and semantic orders that disagree
	e, lex, emb, _ := newFixture(t)

	// When: searching with all weight on the lexical signal
	results, err := e.Search(context.Background(), "query", 3, 1)

	// Then: ordering follows lexical scores and the query is never embedded
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids(results))
	assert.Equal(t, int64(0), emb.calls.Load())
	assert.Equal(t, 9, lex.limit)
}

func TestEngine_AlphaZeroMatchesSemanticOrder(t *testing.T) {
	e, _, emb, _ := newFixture(t)

	results, err := e.Search(context.Background(), "query", 3, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, ids(results))
	assert.Equal(t, int64(1), emb.calls.Load())
	assert.InDelta(t, 1.0, results[0].SemanticScore, 1e-6)
	assert.InDelta(t, 1.0, results[0].CombinedScore, 1e-6)
}

func TestEngine_BlendedScores(t *testing.T) {
	e, _, _, _ := newFixture(t)

	results, err := e.Search(context.Background(), "query", 3, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := map[string]SearchResult{}
	for _, r := range results {
		byID[r.Chunk.ID] = r
	}

	// A: lexical 3.0, cosine 0
	a := byID["A"]
	wantA := 0.5*sigmoid(3.0/5) + 0.5*0.5
	assert.InDelta(t, wantA, a.CombinedScore, 1e-9)
	assert.Equal(t, 3.0, a.LexicalScore)
	assert.Contains(t, a.Explanation, "lexical=3.0000")
	assert.Contains(t, a.Explanation, "α=0.50")

	// C: lexical 1.0, cosine 1
	c := byID["C"]
	wantC := 0.5*sigmoid(1.0/5) + 0.5*1.0
	assert.InDelta(t, wantC, c.CombinedScore, 1e-6)
	assert.Equal(t, "C", results[0].Chunk.ID)
}

func TestEngine_SemanticOnlyCandidates(t *testing.T) {
	// Given: a stored passage that the lexical search does not return
	e, lex, _, vs := newFixture(t)
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("D"), Embedding: []float32{1, 0}})
	lex.hits = []store.LexicalHit{lexHit("A", 3.0), lexHit("C", 1.0)}

	// When: searching with a balanced weight
	results, err := e.Search(context.Background(), "query", 3, 0.5)

	// Then: the semantic-only passage carries no lexical term
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"C", "A", "D"}, ids(results))

	d := results[2]
	assert.Equal(t, 0.0, d.LexicalScore)
	assert.InDelta(t, 0.5, d.CombinedScore, 1e-6)
	assert.Contains(t, d.Explanation, "semantic-only")
}

func TestEngine_TruncatesToK(t *testing.T) {
	e, _, _, _ := newFixture(t)

	results, err := e.Search(context.Background(), "query", 1, 0.5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = e.Search(context.Background(), "query", 0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_EmptyVectorStoreFallsBackToLexical(t *testing.T) {
	vs := store.NewVectorStore(filepath.Join(t.TempDir(), store.EmbeddingsFile))
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("A")})
	lex := &fakeLexical{hits: []store.LexicalHit{lexHit("A", 2.0), lexHit("B", 1.0)}}
	emb := &fakeEmbedder{vec: []float32{1, 0}}

	e, err := NewEngine(lex, vs, emb)
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "query", 5, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(results))
	assert.Equal(t, int64(0), emb.calls.Load())
	assert.Equal(t, 0.0, results[0].SemanticScore)
}

func TestEngine_Errors(t *testing.T) {
	e, lex, emb, _ := newFixture(t)
	ctx := context.Background()

	_, err := e.Search(ctx, "query", 3, 1.2)
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeInvalidAlpha, docerrors.GetCode(err))

	emb.err = stderrors.New("model not loaded")
	_, err = e.Search(ctx, "query", 3, 0.5)
	require.Error(t, err)
	assert.Equal(t, docerrors.CategoryExternal, docerrors.GetCategory(err))

	emb.err = nil
	lex.err = docerrors.New(docerrors.ErrCodeIndexSearch, "lexical index is closed", nil)
	_, err = e.Search(ctx, "query", 3, 0.5)
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeIndexSearch, docerrors.GetCode(err))
}

func TestEngine_WithANNSearcher(t *testing.T) {
	vs := store.NewVectorStore(filepath.Join(t.TempDir(), store.EmbeddingsFile))
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("A"), Embedding: []float32{0, 1}})
	vs.Upsert(store.EnhancedChunk{Chunk: testChunk("C"), Embedding: []float32{1, 0}})

	e, err := NewEngine(&fakeLexical{}, vs, &fakeEmbedder{vec: []float32{1, 0}},
		WithVectorSearcher(store.NewANNIndex(vs)), WithOverFetch(2))
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "query", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].Chunk.ID)
}

func TestEngine_WithBleveIndex(t *testing.T) {
	// Given: a real in-memory lexical index with three passages
	idx, err := store.NewMemLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(0)
	require.NoError(t, err)
	for i, text := range []string{
		"hybrid retrieval blends lexical and semantic relevance",
		"the chunker splits documents into overlapping windows",
		"install the binary and run init",
	} {
		c := chunk.Chunk{ID: chunk.ChunkID("guide.md", i), Text: text, Source: "guide.md", Position: i}
		require.NoError(t, w.Add(c))
	}
	require.NoError(t, w.Commit())

	vs := store.NewVectorStore(filepath.Join(t.TempDir(), store.EmbeddingsFile))
	e, err := NewEngine(idx, vs, &fakeEmbedder{vec: []float32{1, 0}})
	require.NoError(t, err)

	// When: searching with pure lexical weight
	results, err := e.Search(context.Background(), "overlapping windows", 2, 1)

	// Then: the matching passage ranks first with its genuine score
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "guide.md:chunk1", results[0].Chunk.ID)
	assert.Greater(t, results[0].LexicalScore, 0.0)
	assert.InDelta(t, sigmoid(results[0].LexicalScore/5), results[0].CombinedScore, 1e-9)
}
