// Package preflight runs environment checks before indexing or serving.
//
// Checks cover the corpus directory, write access and free space for the
// index, the configured embedding provider and the state of an existing
// index. A failed required check means docrag cannot operate; anything
// else is reported as a warning.
package preflight

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/index"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status in lower case for JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes what the checks run against.
type Target struct {
	DocsDir            string
	IndexDir           string
	EmbeddingsProvider string
	EmbeddingsHost     string
	APIKey             string
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose   bool
	output    io.Writer
	minFree   uint64
	freeSpace func(path string) (uint64, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:    os.Stdout,
		minFree:   DefaultMinFreeBytes,
		freeSpace: statfsFree,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	results := []CheckResult{c.CheckCorpus(ctx, t.DocsDir)}

	writable := c.CheckWritePermissions(t.IndexDir)
	results = append(results, writable)
	if writable.Status == StatusPass {
		results = append(results, c.CheckDiskSpace(t.IndexDir))
	}

	results = append(results,
		c.CheckEmbeddings(t.EmbeddingsProvider, t.EmbeddingsHost, t.APIKey),
		c.CheckIndex(t.IndexDir),
	)
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "docrag System Check")
	_, _ = fmt.Fprintln(c.output, "===================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckCorpus checks that the docs directory holds supported documents.
func (c *Checker) CheckCorpus(ctx context.Context, dir string) CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
		Details:  dir,
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("docs directory %s not found", dir)
		return result
	}

	count := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && chunk.IsSupported(path) {
			count++
		}
		return nil
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to scan docs directory: %v", err)
		return result
	}

	if count == 0 {
		result.Status = StatusWarn
		result.Message = "no .md, .txt or .html files found"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents", count)
	return result
}

// CheckWritePermissions checks that the index directory can be written,
// creating it if needed.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
		Details:  path,
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}

	f, err := os.CreateTemp(path, ".docrag-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckEmbeddings checks that the configured embedding provider is usable.
// Failures are not required: indexing can still run with --skip-embeddings.
func (c *Checker) CheckEmbeddings(provider, host, apiKey string) CheckResult {
	result := CheckResult{Name: "embeddings"}

	switch strings.ToLower(provider) {
	case "", embed.ProviderStatic:
		result.Status = StatusPass
		result.Message = "static hashing embedder (offline)"
	case embed.ProviderOpenAI:
		if apiKey == "" {
			result.Status = StatusFail
			result.Message = "OPENAI_API_KEY is not set"
			result.Details = "set it in the environment, a .env file or --openai-api-key"
			return result
		}
		result.Status = StatusPass
		result.Message = "OpenAI API key configured"
	case embed.ProviderOllama:
		result.Status = StatusWarn
		result.Message = "Ollama must be running"
		result.Details = host
	default:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unknown provider %q", provider)
	}
	return result
}

// CheckIndex reports whether an index exists and supports semantic search.
func (c *Checker) CheckIndex(indexDir string) CheckResult {
	result := CheckResult{Name: "index", Details: indexDir}

	st, err := index.Inspect(indexDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("index unreadable: %v", err)
		return result
	}

	switch {
	case !st.Built:
		result.Status = StatusWarn
		result.Message = "not built yet, run 'docrag init'"
	case !st.SemanticReady():
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d passages, lexical only", st.Chunks)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d passages, %d embedded", st.Chunks, st.EmbeddedChunks)
	}
	return result
}
