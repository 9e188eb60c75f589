package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := stderrors.New("permission denied")

	// When: wrapping with DocError
	docErr := IOError("cannot read docs/a.md", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, docErr)
	assert.Equal(t, originalErr, stderrors.Unwrap(docErr))
	assert.True(t, stderrors.Is(docErr, originalErr))
}

func TestDocError_Constructors_MapToCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      *DocError
		category Category
	}{
		{"configuration", ConfigurationError("overlap too large", nil), CategoryConfig},
		{"io", IOError("missing", nil), CategoryIO},
		{"external", ExternalServiceError("ollama down", nil), CategoryExternal},
		{"parse", ParseError("bad json", nil), CategoryParse},
		{"index", IndexEngineError("writer failed", nil), CategoryIndex},
		{"integrity", DataIntegrityError("hit without id", nil), CategoryIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.category, GetCategory(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestDocError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with the same code and different messages
	a := New(ErrCodeEmbeddingsMissing, "embeddings not found", nil)
	sentinel := New(ErrCodeEmbeddingsMissing, "", nil)

	// Then: errors.Is matches through wrapping
	assert.True(t, stderrors.Is(fmt.Errorf("query: %w", a), sentinel))
	assert.False(t, stderrors.Is(a, New(ErrCodeIndexOpen, "", nil)))
}

func TestDocError_Error_ReturnsFormattedMessage(t *testing.T) {
	err := New(ErrCodeChunkParams, "chunk_overlap must be smaller than chunk_size", nil)
	assert.Equal(t, "[ERR_102_CHUNK_PARAMS] chunk_overlap must be smaller than chunk_size", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ExternalServiceError("timeout", nil)))
	assert.False(t, IsRetryable(ConfigurationError("bad", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestSeverity_FatalAndWarning(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "corrupt", nil)))
	assert.False(t, IsFatal(IOError("x", nil)))
	assert.Equal(t, SeverityWarning, DataIntegrityError("x", nil).Severity)
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := IndexEngineError("index locked", nil).WithSuggestion("wait for the other run to finish")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index locked")
	assert.Contains(t, out, "Hint: wait for the other run to finish")
	assert.Contains(t, out, "Code: ERR_502_INDEX_WRITE")
	assert.Equal(t, "Error: boom\n", FormatForCLI(stderrors.New("boom")))
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttrs_IncludesDetails(t *testing.T) {
	err := ParseError("bad state", stderrors.New("eof")).WithDetail("path", "index/state.json")

	attrs := LogAttrs(err)

	assert.NotEmpty(t, attrs)
	assert.Len(t, attrs, 6)
}

func TestRetryWithResult_RetriesOnlyRetryable(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, ExternalServiceError("transient", nil)
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, ParseError("bad body", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, ErrCodeStateMalformed, GetCode(err))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, ExternalServiceError("down", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.Contains(t, err.Error(), "failed after 3 retries")
	})
}
