package embed

import (
	"fmt"
	"log/slog"
	"strings"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Options selects and configures an embedder.
type Options struct {
	Provider  string // static, ollama, openai
	Model     string
	Host      string // Ollama host or OpenAI base URL
	APIKey    string
	BatchSize int
}

// New creates the embedder named by opts.Provider.
func New(opts Options) (Embedder, error) {
	provider := strings.ToLower(opts.Provider)
	if provider == "" {
		provider = ProviderStatic
	}

	slog.Debug("embedder_selected",
		slog.String("provider", provider),
		slog.String("model", opts.Model))

	switch provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil
	case ProviderOllama:
		return NewOllamaEmbedder(OllamaConfig{
			Host:      opts.Host,
			Model:     opts.Model,
			BatchSize: opts.BatchSize,
		}), nil
	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    opts.APIKey,
			BaseURL:   opts.Host,
			Model:     opts.Model,
			BatchSize: opts.BatchSize,
		})
	default:
		return nil, docerrors.ConfigurationError(
			fmt.Sprintf("unknown embeddings provider %q", opts.Provider), nil).
			WithSuggestion("use one of: static, ollama, openai")
	}
}
