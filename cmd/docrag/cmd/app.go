package cmd

import (
	"log/slog"

	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

// newEmbedder builds the configured embedder.
func (g *globalOptions) newEmbedder() (embed.Embedder, error) {
	e := g.cfg.Embeddings
	return embed.New(embed.Options{
		Provider:  e.Provider,
		Model:     e.Model,
		Host:      e.Host,
		APIKey:    g.apiKey(),
		BatchSize: e.BatchSize,
	})
}

// retrievalSession owns the open index handles behind a Retriever.
type retrievalSession struct {
	retriever *search.Retriever
	lexical   *store.LexicalIndex
	embedder  embed.Embedder
}

func (s *retrievalSession) Close() {
	if s.lexical != nil {
		_ = s.lexical.Close()
	}
	if s.embedder != nil {
		_ = s.embedder.Close()
	}
}

// openRetrieval opens a built index for querying. cacheQueries wraps the
// embedder in an LRU for long-running processes.
func (g *globalOptions) openRetrieval(cacheQueries bool) (*retrievalSession, error) {
	paths := index.PathsFor(g.cfg.Paths.IndexDir)

	status, err := index.Inspect(paths.Dir)
	if err != nil {
		return nil, err
	}
	if !status.Built {
		return nil, docerrors.New(docerrors.ErrCodeFileNotFound,
			"index not found in "+paths.Dir, nil).
			WithSuggestion("run 'docrag init' first")
	}

	vectors := store.NewVectorStore(paths.Embeddings)
	if store.Exists(paths.Embeddings) {
		if vectors, err = store.LoadVectorStore(paths.Embeddings); err != nil {
			return nil, err
		}
	}

	embedder, err := g.newEmbedder()
	if err != nil {
		return nil, err
	}
	if cacheQueries {
		embedder = embed.NewCachedEmbedder(embedder, embed.DefaultEmbeddingCacheSize)
	}

	lexical, err := store.OpenLexicalIndex(paths.Lexical)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	var opts []search.EngineOption
	if g.cfg.Search.VectorMode == store.VectorModeHNSW {
		opts = append(opts, search.WithVectorSearcher(store.NewANNIndex(vectors)))
	}
	engine, err := search.NewEngine(lexical, vectors, embedder, opts...)
	if err != nil {
		_ = lexical.Close()
		_ = embedder.Close()
		return nil, err
	}

	slog.Debug("retrieval_opened",
		slog.Int("chunks", status.Chunks),
		slog.Int("embedded", vectors.EmbeddedCount()),
		slog.String("vector_mode", g.cfg.Search.VectorMode),
		slog.String("embedder", embedder.ModelName()))

	return &retrievalSession{
		retriever: search.NewRetriever(search.NewRouter(g.cfg.Search.RouteCacheSize), engine),
		lexical:   lexical,
		embedder:  embedder,
	}, nil
}
