package search

import (
	"context"
	"log/slog"
	"strings"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Request is one retrieval call.
type Request struct {
	Query    string
	K        int
	Strategy Strategy
	Alpha    *float64 // hybrid weight, nil for the default
}

// Response carries the route taken and the ranked passages.
type Response struct {
	Query    string         `json:"query"`
	Strategy Strategy       `json:"strategy"`
	Route    Route          `json:"route"`
	Results  []SearchResult `json:"results"`
}

// Retriever resolves a strategy into a fusion weight and runs the engine.
// It is shared by the CLI and the MCP server.
type Retriever struct {
	router *Router
	engine *Engine
}

// NewRetriever combines a router and an engine.
func NewRetriever(router *Router, engine *Engine) *Retriever {
	if router == nil {
		router = NewRouter(DefaultRouteCacheSize)
	}
	return &Retriever{router: router, engine: engine}
}

// Retrieve runs req. The explicit semantic and hybrid strategies fail when no
// passage embeddings are stored; auto degrades to lexical ranking instead.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Response, error) {
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}

	resp := &Response{Query: req.Query, Strategy: strategy, Results: []SearchResult{}}
	if strings.TrimSpace(req.Query) == "" {
		return resp, nil
	}

	route, err := r.router.Resolve(strategy, req.Query, req.Alpha)
	if err != nil {
		return nil, err
	}
	resp.Route = route

	if (strategy == StrategySemantic || strategy == StrategyHybrid) && !r.engine.HasEmbeddings() {
		return nil, ErrEmbeddingsMissing()
	}

	slog.Debug("query_routed",
		slog.String("strategy", string(strategy)),
		slog.String("kind", string(route.Kind)),
		slog.Float64("alpha", route.Alpha),
		slog.Int("rule", route.Rule))

	results, err := r.engine.Search(ctx, req.Query, req.K, route.Alpha)
	if err != nil {
		return nil, err
	}
	resp.Results = results
	return resp, nil
}

// ErrEmbeddingsMissing reports that semantic retrieval was requested for an
// index built without embeddings.
func ErrEmbeddingsMissing() *docerrors.DocError {
	return docerrors.New(docerrors.ErrCodeEmbeddingsMissing,
		"embeddings not found, run 'init' without --skip-embeddings first", nil).
		WithSuggestion("or use --strategy bm25")
}
