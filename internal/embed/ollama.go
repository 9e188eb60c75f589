package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Ollama API constants
const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the embedding model to use
	Model string

	// Dimensions overrides auto-detection (0 = detect from first response)
	Dimensions int

	// BatchSize for batch embedding requests (default: 32)
	BatchSize int

	// Timeout for API requests (default: 60s)
	Timeout time.Duration

	// Retry controls backoff on transient failures
	Retry docerrors.RetryConfig
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     docerrors.DefaultRetryConfig(),
	}
}

// ollamaEmbedRequest is the request body for /api/embed
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// ollamaEmbedResponse is the response body for /api/embed
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// OllamaEmbedder calls a local Ollama server for embeddings.
type OllamaEmbedder struct {
	config OllamaConfig
	client *http.Client

	mu         sync.RWMutex
	dimensions int
	closed     bool
}

// NewOllamaEmbedder creates an embedder for the given configuration.
// No request is made until the first Embed call.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = defaults.Retry
	}

	return &OllamaEmbedder{
		config:     cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		dimensions: cfg.Dimensions,
	}
}

// Embed generates embedding for a single text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests, preserving order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, docerrors.ExternalServiceError("ollama embedder is closed", nil)
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]

		vecs, err := docerrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
			return e.doEmbed(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

// doEmbed performs one /api/embed request.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeServiceRejected, "failed to marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeServiceRejected, "failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, docerrors.ExternalServiceError(
			fmt.Sprintf("ollama unreachable at %s", e.config.Host), err).
			WithSuggestion("start Ollama with 'ollama serve' or use --embedder static")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := docerrors.ErrCodeServiceRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = docerrors.ErrCodeEmbeddingFailed
		}
		return nil, docerrors.New(code,
			fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil).
			WithDetail("model", e.config.Model)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeResponseMalformed, "failed to decode embed response", err)
	}
	if result.Error != "" {
		return nil, docerrors.New(docerrors.ErrCodeServiceRejected, "ollama error: "+result.Error, nil)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, docerrors.New(docerrors.ErrCodeResponseMalformed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)), nil)
	}

	e.recordDimensions(len(result.Embeddings[0]))
	for i := range result.Embeddings {
		result.Embeddings[i] = normalizeVector(result.Embeddings[i])
	}
	return result.Embeddings, nil
}

// recordDimensions remembers the first observed dimension when none was configured.
func (e *OllamaEmbedder) recordDimensions(dims int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 && dims > 0 {
		e.dimensions = dims
		slog.Debug("ollama_dimensions_detected",
			slog.String("model", e.config.Model),
			slog.Int("dimensions", dims))
	}
}

// Dimensions returns the configured or detected dimension (0 before the first call).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.client.CloseIdleConnections()
	}
	return nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
