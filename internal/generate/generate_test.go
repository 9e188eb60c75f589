package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/search"
)

// chatServer answers chat completions with a fixed body and status.
func chatServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content, finish string) string {
	return `{"id":"c1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,` +
		`"message":{"role":"assistant","content":` + quote(content) + `},"finish_reason":"` + finish + `"}]}`
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestClient_Generate_SendsRequestShape(t *testing.T) {
	// Given: a fake endpoint that records the request
	var seen map[string]any
	srv := chatServer(t, http.StatusOK, completion("  The answer.  ", "stop"), &seen)
	c := newTestClient(t, srv.URL)

	// When: generating
	answer, err := c.Generate(context.Background(), "What is chunking?")

	// Then: the answer is trimmed and the request carries the fixed settings
	require.NoError(t, err)
	assert.Equal(t, "The answer.", answer)
	assert.Equal(t, "gpt-4o", seen["model"])
	assert.EqualValues(t, 2048, seen["max_tokens"])
	assert.InDelta(t, 0.1, seen["temperature"], 1e-6)

	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, SystemPrompt, msgs[0].(map[string]any)["content"])
	assert.Equal(t, "What is chunking?", msgs[1].(map[string]any)["content"])
}

func TestClient_Generate_ZeroTemperatureIsSent(t *testing.T) {
	// Given: a client configured for temperature 0
	var seen map[string]any
	srv := chatServer(t, http.StatusOK, completion("ok", "stop"), &seen)
	zero := float32(0)
	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Temperature: &zero})
	require.NoError(t, err)

	// When: generating
	_, err = c.Generate(context.Background(), "q")

	// Then: the request carries an effectively zero temperature, not the default
	require.NoError(t, err)
	require.Contains(t, seen, "temperature")
	assert.InDelta(t, 0, seen["temperature"], 1e-6)
}

func TestNewClient_RejectsTemperatureOutOfRange(t *testing.T) {
	hot := float32(3)
	_, err := NewClient(Config{APIKey: "sk-test", Temperature: &hot})
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestClient_Generate_LengthStillReturnsContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, completion("partial answer", "length"), nil)

	answer, err := newTestClient(t, srv.URL).Generate(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "partial answer", answer)
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantCat  docerrors.Category
	}{
		{
			name:     "content filter",
			status:   http.StatusOK,
			body:     completion("", "content_filter"),
			wantCode: docerrors.ErrCodeContentFiltered,
			wantCat:  docerrors.CategoryExternal,
		},
		{
			name:     "empty content",
			status:   http.StatusOK,
			body:     completion("   ", "stop"),
			wantCode: docerrors.ErrCodeEmptyGeneration,
			wantCat:  docerrors.CategoryExternal,
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			body:     `{"id":"c1","object":"chat.completion","choices":[]}`,
			wantCode: docerrors.ErrCodeEmptyGeneration,
			wantCat:  docerrors.CategoryExternal,
		},
		{
			name:     "api error payload",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"bad model","type":"invalid_request_error"}}`,
			wantCode: docerrors.ErrCodeServiceRejected,
			wantCat:  docerrors.CategoryExternal,
		},
		{
			name:     "server error",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"message":"overloaded","type":"server_error"}}`,
			wantCode: docerrors.ErrCodeServiceDown,
			wantCat:  docerrors.CategoryExternal,
		},
		{
			name:     "malformed body",
			status:   http.StatusOK,
			body:     `<html>oops</html>`,
			wantCode: docerrors.ErrCodeResponseMalformed,
			wantCat:  docerrors.CategoryParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)

			_, err := newTestClient(t, srv.URL).Generate(context.Background(), "q")

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, docerrors.GetCode(err))
			assert.Equal(t, tt.wantCat, docerrors.GetCategory(err))
		})
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	// Given: an endpoint slower than the client timeout
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	// When: generating
	_, err = c.Generate(context.Background(), "q")

	// Then: the deadline surfaces as a service timeout
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeServiceTimeout, docerrors.GetCode(err))
}

func TestNewClient_Defaults(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Equal(t, docerrors.CategoryConfig, docerrors.GetCategory(err))

	c, err := NewClient(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.config.Timeout)
}

func TestClient_Generate_RejectsEmptyPrompt(t *testing.T) {
	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "  ")
	require.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	// Given: two ranked passages
	results := []search.SearchResult{
		{Chunk: chunk.Chunk{ID: "guide.md:chunk0", Source: "guide.md", Heading: "Install", Text: "run make"}},
		{Chunk: chunk.Chunk{ID: "faq.md:chunk3", Source: "faq.md", Position: 3, Text: "see docs"}},
	}

	// When: building the prompt
	prompt := BuildPrompt("how do I install?", results)

	// Then: passages are numbered in rank order with their origin
	assert.Contains(t, prompt, "[1] (source: guide.md, chunk: 0)\n## Install\nrun make")
	assert.Contains(t, prompt, "[2] (source: faq.md, chunk: 3)\nsee docs")
	assert.Less(t, strings.Index(prompt, "[1]"), strings.Index(prompt, "[2]"))
	assert.Contains(t, prompt, "Question: how do I install?")
}

func TestBuildPrompt_NoResults(t *testing.T) {
	prompt := BuildPrompt("anything?", nil)

	assert.Contains(t, prompt, "No relevant documentation was found")
	assert.Contains(t, prompt, "Question: anything?")
	assert.NotContains(t, prompt, "[1]")
}
