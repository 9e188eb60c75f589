package errors

import (
	stderrors "errors"
	"fmt"
)

// DocError is the structured error type for docrag.
// It carries enough context for logging and for user presentation.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, External, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches another DocError by code, so errors.Is works against sentinels.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigurationError reports invalid chunking, strategy, or other settings.
func ConfigurationError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError reports a filesystem access failure.
func IOError(message string, cause error) *DocError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ParseError reports malformed persisted state or response bodies.
func ParseError(message string, cause error) *DocError {
	return New(ErrCodeStateMalformed, message, cause)
}

// IndexEngineError reports a lexical index writer/reader or schema failure.
func IndexEngineError(message string, cause error) *DocError {
	return New(ErrCodeIndexWrite, message, cause)
}

// ExternalServiceError reports an embedding or generation call failure.
func ExternalServiceError(message string, cause error) *DocError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// DataIntegrityError reports stored data missing a required field.
func DataIntegrityError(message string, cause error) *DocError {
	return New(ErrCodeMissingField, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DocError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DocError anywhere in the chain.
func GetCategory(err error) Category {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Category
	}
	return ""
}
