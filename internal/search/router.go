// Package search routes queries to a fusion weight and blends lexical and
// semantic relevance into one ranked passage list.
package search

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Kind names the retrieval bias a route selects.
type Kind string

// Route kinds.
const (
	KindBM25Heavy     Kind = "bm25_heavy"
	KindSemanticHeavy Kind = "semantic_heavy"
	KindBalanced      Kind = "balanced"
)

// DefaultHybridAlpha is the lexical weight used by the hybrid strategy when
// the caller supplies none.
const DefaultHybridAlpha = 0.5

// DefaultRouteCacheSize bounds the Router's decision cache.
const DefaultRouteCacheSize = 4096

// Route is the outcome of routing a query. Rule is the 1-based rule that matched.
type Route struct {
	Kind  Kind    `json:"kind"`
	Alpha float64 `json:"alpha"`
	Rule  int     `json:"rule,omitempty"`
}

// Markers that indicate a code or API lookup.
var codeMarkers = []string{"::", "api", "function", "struct", "impl", "(", ")", "<", ">"}

var conceptPrefixes = []string{"how", "what", "why"}

var conceptMarkers = []string{"concept", "explain", "tutorial"}

// RouteQuery picks the fusion weight for query. Matching is case-insensitive
// and the first matching rule wins.
func RouteQuery(query string) Route {
	q := strings.ToLower(query)

	for _, m := range codeMarkers {
		if strings.Contains(q, m) {
			return Route{Kind: KindBM25Heavy, Alpha: 0.8, Rule: 1}
		}
	}

	trimmed := strings.TrimSpace(q)
	for _, p := range conceptPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return Route{Kind: KindSemanticHeavy, Alpha: 0.3, Rule: 2}
		}
	}
	for _, m := range conceptMarkers {
		if strings.Contains(q, m) {
			return Route{Kind: KindSemanticHeavy, Alpha: 0.3, Rule: 2}
		}
	}

	words := len(strings.Fields(q))
	switch {
	case words <= 2:
		return Route{Kind: KindSemanticHeavy, Alpha: 0.4, Rule: 3}
	case words > 6:
		return Route{Kind: KindBalanced, Alpha: 0.5, Rule: 4}
	default:
		return Route{Kind: KindBalanced, Alpha: 0.6, Rule: 5}
	}
}

// Strategy selects how α is chosen for a query.
type Strategy string

// Strategies accepted by ParseStrategy.
const (
	StrategyAuto     Strategy = "auto"
	StrategyBM25     Strategy = "bm25"
	StrategySemantic Strategy = "semantic"
	StrategyHybrid   Strategy = "hybrid"
)

// ParseStrategy parses a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyBM25, StrategySemantic, StrategyHybrid:
		return st, nil
	default:
		return "", docerrors.New(docerrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("invalid strategy %q", s), nil).
			WithSuggestion("use one of: auto, bm25, semantic, hybrid")
	}
}

// ValidateAlpha rejects fusion weights outside [0,1].
func ValidateAlpha(alpha float64) error {
	if alpha < 0 || alpha > 1 || alpha != alpha {
		return docerrors.New(docerrors.ErrCodeInvalidAlpha,
			fmt.Sprintf("alpha must be within [0,1], got %v", alpha), nil)
	}
	return nil
}

// Resolve maps a strategy to α. alpha is only consulted by the hybrid
// strategy; nil selects DefaultHybridAlpha.
func Resolve(strategy Strategy, query string, alpha *float64) (Route, error) {
	switch strategy {
	case StrategyAuto, "":
		return RouteQuery(query), nil
	case StrategyBM25:
		return Route{Kind: KindBM25Heavy, Alpha: 1}, nil
	case StrategySemantic:
		return Route{Kind: KindSemanticHeavy, Alpha: 0}, nil
	case StrategyHybrid:
		a := DefaultHybridAlpha
		if alpha != nil {
			a = *alpha
		}
		if err := ValidateAlpha(a); err != nil {
			return Route{}, err
		}
		return Route{Kind: KindBalanced, Alpha: a}, nil
	default:
		_, err := ParseStrategy(string(strategy))
		return Route{}, err
	}
}

// Router caches auto-route decisions for long-running processes.
type Router struct {
	cache *lru.Cache[string, Route]
}

// NewRouter creates a router with an LRU of the given size.
func NewRouter(cacheSize int) *Router {
	if cacheSize <= 0 {
		cacheSize = DefaultRouteCacheSize
	}
	cache, _ := lru.New[string, Route](cacheSize)
	return &Router{cache: cache}
}

// Resolve behaves like the package-level Resolve, memoizing auto routes.
func (r *Router) Resolve(strategy Strategy, query string, alpha *float64) (Route, error) {
	if strategy != StrategyAuto && strategy != "" {
		return Resolve(strategy, query, alpha)
	}
	key := strings.ToLower(query)
	if route, ok := r.cache.Get(key); ok {
		return route, nil
	}
	route := RouteQuery(query)
	r.cache.Add(key, route)
	return route, nil
}

// Len returns the number of cached decisions.
func (r *Router) Len() int {
	return r.cache.Len()
}
