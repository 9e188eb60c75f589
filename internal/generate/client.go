// Package generate turns retrieved passages into an answer through the
// OpenAI chat completions API.
package generate

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/openaiapi"
)

// Defaults for chat completion requests.
const (
	DefaultModel       = openai.GPT4o
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.1
	DefaultTimeout     = 60 * time.Second
)

// SystemPrompt is sent ahead of every user prompt.
const SystemPrompt = "You are a helpful assistant that answers questions based on provided documentation. " +
	"Be concise and accurate. If you cannot answer based on the provided context, say so clearly."

// Config configures the generation client. A nil Temperature selects
// DefaultTemperature; zero is honored.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float32
	Timeout     time.Duration
}

// Generator produces an answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client is a Generator backed by the chat completions API.
type Client struct {
	client      *openai.Client
	config      Config
	temperature float32
}

// NewClient creates a generation client. An API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, docerrors.ConfigurationError("generation requires an OpenAI API key", nil).
			WithSuggestion("set OPENAI_API_KEY, pass --openai-api-key, or use --no-generate")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, docerrors.ConfigurationError("generation temperature must be within [0, 2]", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:      openaiapi.NewClient(cfg.APIKey, cfg.BaseURL, nil),
		config:      cfg,
		temperature: temperature,
	}, nil
}

// Model returns the chat model in use.
func (c *Client) Model() string {
	return c.config.Model
}

// Generate sends prompt after the system prompt and returns the trimmed answer.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", docerrors.ConfigurationError("prompt cannot be empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: wireTemperature(c.temperature),
		Stream:      false,
	})
	if err != nil {
		return "", openaiapi.ClassifyError(err, "chat completion failed")
	}

	answer, err := extractAnswer(resp)
	if err != nil {
		return "", err
	}

	slog.Debug("generation_complete",
		slog.String("model", c.config.Model),
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("answer_chars", len(answer)),
		slog.Duration("duration", time.Since(start)))
	return answer, nil
}

func extractAnswer(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", docerrors.New(docerrors.ErrCodeEmptyGeneration, "no choices returned from chat completion", nil)
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case openai.FinishReasonStop, "":
	case openai.FinishReasonLength:
		slog.Warn("generation_truncated", slog.String("reason", string(choice.FinishReason)))
	case openai.FinishReasonContentFilter:
		return "", docerrors.New(docerrors.ErrCodeContentFiltered, "response was filtered due to content policy", nil)
	default:
		slog.Warn("generation_unexpected_finish", slog.String("reason", string(choice.FinishReason)))
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", docerrors.New(docerrors.ErrCodeEmptyGeneration, "empty response from chat completion", nil)
	}
	return content, nil
}

// wireTemperature keeps an explicit zero on the wire. The request field is
// omitempty, so 0 would otherwise fall back to the server default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
