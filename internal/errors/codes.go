// Package errors provides structured error handling for docrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: External service errors (embedding, generation)
//   - 4XX: Parse errors (persisted state, API bodies)
//   - 5XX: Index engine errors
//   - 6XX: Data integrity errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates invalid settings such as chunk size or strategy.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryExternal indicates a failing embedding or generation service.
	CategoryExternal Category = "EXTERNAL"
	// CategoryParse indicates malformed persisted state or response bodies.
	CategoryParse Category = "PARSE"
	// CategoryIndex indicates lexical index engine failures.
	CategoryIndex Category = "INDEX"
	// CategoryIntegrity indicates stored data missing required fields.
	CategoryIntegrity Category = "INTEGRITY"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Configuration errors (100-199)
	ErrCodeConfigInvalid   = "ERR_101_CONFIG_INVALID"
	ErrCodeChunkParams     = "ERR_102_CHUNK_PARAMS"
	ErrCodeInvalidStrategy = "ERR_103_INVALID_STRATEGY"
	ErrCodeInvalidAlpha    = "ERR_104_INVALID_ALPHA"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileWrite      = "ERR_203_FILE_WRITE"
	ErrCodeDiskFull       = "ERR_204_DISK_FULL"

	// External service errors (300-399)
	ErrCodeEmbeddingFailed   = "ERR_301_EMBEDDING_FAILED"
	ErrCodeGenerationFailed  = "ERR_302_GENERATION_FAILED"
	ErrCodeServiceTimeout    = "ERR_303_SERVICE_TIMEOUT"
	ErrCodeContentFiltered   = "ERR_304_CONTENT_FILTERED"
	ErrCodeEmptyGeneration   = "ERR_305_EMPTY_GENERATION"
	ErrCodeEmbeddingsMissing = "ERR_306_EMBEDDINGS_MISSING"
	ErrCodeServiceRejected   = "ERR_307_SERVICE_REJECTED"
	ErrCodeServiceDown       = "ERR_308_SERVICE_UNAVAILABLE"

	// Parse errors (400-499)
	ErrCodeStateMalformed    = "ERR_401_STATE_MALFORMED"
	ErrCodeSnapshotMalformed = "ERR_402_SNAPSHOT_MALFORMED"
	ErrCodeResponseMalformed = "ERR_403_RESPONSE_MALFORMED"

	// Index engine errors (500-599)
	ErrCodeIndexOpen      = "ERR_501_INDEX_OPEN"
	ErrCodeIndexWrite     = "ERR_502_INDEX_WRITE"
	ErrCodeIndexSearch    = "ERR_503_INDEX_SEARCH"
	ErrCodeSchemaMismatch = "ERR_504_SCHEMA_MISMATCH"
	ErrCodeIndexLocked    = "ERR_505_INDEX_LOCKED"
	ErrCodeCorruptIndex   = "ERR_506_CORRUPT_INDEX"

	// Data integrity errors (600-699)
	ErrCodeMissingField      = "ERR_601_MISSING_FIELD"
	ErrCodeDimensionMismatch = "ERR_602_DIMENSION_MISMATCH"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryIndex
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_INVALID")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryExternal
	case '4':
		return CategoryParse
	case '6':
		return CategoryIntegrity
	default:
		return CategoryIndex
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeSchemaMismatch:
		return SeverityFatal
	case ErrCodeMissingField:
		// Hydration failures skip a single hit.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeServiceTimeout, ErrCodeServiceDown:
		return true
	default:
		return false
	}
}
