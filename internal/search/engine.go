package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// DefaultOverFetch multiplies k when fetching lexical candidates.
const DefaultOverFetch = 3

// lexicalScale divides the raw lexical score before logistic squashing.
const lexicalScale = 5.0

// ErrNilDependency is returned when a required engine dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// LexicalSearcher returns ranked lexical hits for a query.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, k int) ([]store.LexicalHit, error)
}

// EmbeddingLookup exposes stored passage embeddings by id.
type EmbeddingLookup interface {
	Embedding(id string) []float32
	EmbeddedCount() int
}

// SearchResult is a ranked passage with its component scores.
type SearchResult struct {
	Chunk         chunk.Chunk `json:"chunk"`
	LexicalScore  float64     `json:"lexical_score"`
	SemanticScore float64     `json:"semantic_score"`
	CombinedScore float64     `json:"combined_score"`
	Explanation   string      `json:"explanation"`
}

// Engine fuses lexical and semantic retrieval with a caller-chosen weight.
type Engine struct {
	lexical   LexicalSearcher
	lookup    EmbeddingLookup
	vectors   store.VectorSearcher
	embedder  embed.Embedder
	overFetch int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithVectorSearcher replaces the semantic candidate source, e.g. with an ANN index.
func WithVectorSearcher(vs store.VectorSearcher) EngineOption {
	return func(e *Engine) {
		if vs != nil {
			e.vectors = vs
		}
	}
}

// WithOverFetch sets the lexical candidate multiplier.
func WithOverFetch(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.overFetch = n
		}
	}
}

// NewEngine wires an engine over a lexical index and a vector store.
// The vector store doubles as the semantic candidate source unless
// WithVectorSearcher overrides it.
func NewEngine(lexical LexicalSearcher, vectors *store.VectorStore, embedder embed.Embedder, opts ...EngineOption) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	e := &Engine{
		lexical:   lexical,
		lookup:    vectors,
		vectors:   vectors,
		embedder:  embedder,
		overFetch: DefaultOverFetch,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// HasEmbeddings reports whether any passage embedding is stored.
func (e *Engine) HasEmbeddings() bool {
	return e.lookup.EmbeddedCount() > 0
}

// Search returns up to k passages ranked by
// α·sigmoid(lex/5) + (1−α)·(sem+1)/2. Passages found only by the semantic
// pass carry no lexical term.
func (e *Engine) Search(ctx context.Context, query string, k int, alpha float64) ([]SearchResult, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}
	start := time.Now()

	semantic := alpha < 1
	if semantic && e.lookup.EmbeddedCount() == 0 {
		slog.Warn("semantic_unavailable",
			slog.String("reason", "no stored embeddings"),
			slog.Float64("alpha", alpha))
		semantic = false
	}

	lexHits, queryVec, err := e.parallelRetrieve(ctx, query, k*e.overFetch, semantic)
	if err != nil {
		return nil, err
	}

	results := e.fuse(lexHits, queryVec, k, alpha)

	slog.Debug("search_complete",
		slog.String("query", query),
		slog.Float64("alpha", alpha),
		slog.Int("lexical_candidates", len(lexHits)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// parallelRetrieve runs the lexical search and the query embedding concurrently.
func (e *Engine) parallelRetrieve(ctx context.Context, query string, limit int, semantic bool) (
	[]store.LexicalHit, []float32, error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var lexHits []store.LexicalHit
	g.Go(func() error {
		hits, err := e.lexical.Search(gctx, query, limit)
		if err != nil {
			return err
		}
		lexHits = hits
		return nil
	})

	var queryVec []float32
	if semantic {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				var de *docerrors.DocError
				if stderrors.As(err, &de) {
					return err
				}
				return docerrors.ExternalServiceError("failed to embed query", err)
			}
			queryVec = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lexHits, queryVec, nil
}

func (e *Engine) fuse(lexHits []store.LexicalHit, queryVec []float32, k int, alpha float64) []SearchResult {
	results := make([]SearchResult, 0, len(lexHits)+k)
	seen := make(map[string]struct{}, len(lexHits))

	for _, hit := range lexHits {
		if _, dup := seen[hit.Chunk.ID]; dup {
			continue
		}
		seen[hit.Chunk.ID] = struct{}{}

		var sem float64
		if queryVec != nil {
			if stored := e.lookup.Embedding(hit.Chunk.ID); stored != nil {
				sem = float64(store.CosineSimilarity(queryVec, stored))
			}
		}
		normLex := sigmoid(hit.Score / lexicalScale)
		normSem := normalizeSemantic(sem)
		combined := alpha*normLex + (1-alpha)*normSem

		results = append(results, SearchResult{
			Chunk:         hit.Chunk,
			LexicalScore:  hit.Score,
			SemanticScore: sem,
			CombinedScore: combined,
			Explanation: fmt.Sprintf("lexical=%.4f (norm %.4f) × α=%.2f + semantic=%.4f (norm %.4f) × %.2f = %.4f",
				hit.Score, normLex, alpha, sem, normSem, 1-alpha, combined),
		})
	}

	if queryVec != nil {
		for _, vh := range e.vectors.SimilaritySearch(queryVec, k) {
			if _, dup := seen[vh.Chunk.ID]; dup {
				continue
			}
			seen[vh.Chunk.ID] = struct{}{}

			sem := float64(vh.Score)
			normSem := normalizeSemantic(sem)
			combined := (1 - alpha) * normSem
			results = append(results, SearchResult{
				Chunk:         vh.Chunk.Chunk,
				SemanticScore: sem,
				CombinedScore: combined,
				Explanation: fmt.Sprintf("semantic-only: semantic=%.4f (norm %.4f) × %.2f = %.4f",
					sem, normSem, 1-alpha, combined),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// normalizeSemantic maps cosine similarity from [-1,1] onto [0,1].
func normalizeSemantic(s float64) float64 {
	return (s + 1) / 2
}
