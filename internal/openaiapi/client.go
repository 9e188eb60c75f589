// Package openaiapi holds the shared OpenAI client setup and error mapping
// used by the embedding and generation clients.
package openaiapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// NewClient builds a client with bearer auth against baseURL (default when empty).
// httpClient may be nil.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// ClassifyError maps a go-openai error onto the docrag taxonomy.
// Rate limits, server errors and timeouts are retryable; other API errors are not.
// A body that fails to decode becomes a parse error.
func ClassifyError(err error, message string) *docerrors.DocError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return docerrors.New(docerrors.ErrCodeServiceTimeout, message+": request timed out", err)
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, message+": "+apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, message+": "+reqErr.Error(), err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
		return docerrors.New(docerrors.ErrCodeResponseMalformed, message+": malformed response body", err)
	}

	return docerrors.New(docerrors.ErrCodeServiceDown, message+": "+err.Error(), err)
}

func statusError(status int, message string, cause error) *docerrors.DocError {
	code := docerrors.ErrCodeServiceRejected
	if status == http.StatusTooManyRequests || status >= 500 {
		code = docerrors.ErrCodeServiceDown
	}
	de := docerrors.New(code, message, cause)
	if status == http.StatusUnauthorized {
		de.WithSuggestion("check --openai-api-key or the OPENAI_API_KEY environment variable")
	}
	return de
}
