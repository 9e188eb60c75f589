package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/docrag/internal/chunk"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Field names in the lexical schema.
const (
	fieldID       = "id"
	fieldText     = "text"
	fieldSource   = "source"
	fieldHeading  = "heading"
	fieldPosition = "position"
)

// storedFields are loaded for every hit to rebuild the chunk.
var storedFields = []string{fieldID, fieldText, fieldSource, fieldHeading, fieldPosition}

// lexicalDoc is the document structure for Bleve indexing.
type lexicalDoc struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Source   string `json:"source"`
	Heading  string `json:"heading"`
	Position int    `json:"position"`
}

// LexicalIndex wraps Bleve v2 for BM25 ranked retrieval over chunk text.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// validateIndexIntegrity checks if an on-disk Bleve index looks usable.
// Returns nil if valid or absent, an error describing corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// OpenLexicalIndex opens the index at path, creating it if it does not exist.
func OpenLexicalIndex(path string) (*LexicalIndex, error) {
	indexMapping := newIndexMapping()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileWrite,
			fmt.Sprintf("failed to create directory %s", filepath.Dir(path)), err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		slog.Warn("lexical_index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		return nil, docerrors.New(docerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("lexical index at %s is corrupted", path), validErr).
			WithSuggestion("run 'init --force' to rebuild the index")
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, indexMapping)
		if err == nil {
			slog.Debug("lexical_index_created", slog.String("path", path))
		}
	}
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeIndexOpen,
			fmt.Sprintf("failed to open lexical index at %s", path), err).
			WithSuggestion("run 'init --force' to rebuild the index")
	}

	return &LexicalIndex{index: idx, path: path}, nil
}

// NewMemLexicalIndex creates an in-memory index, used in tests.
func NewMemLexicalIndex() (*LexicalIndex, error) {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeIndexOpen, "failed to create in-memory lexical index", err)
	}
	return &LexicalIndex{index: idx}, nil
}

// newIndexMapping builds the chunk schema. Unprefixed query terms target text.
func newIndexMapping() *mapping.IndexMappingImpl {
	keyword := func() *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = true
		fm.Index = true
		fm.IncludeInAll = false
		return fm
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true
	text.Index = true
	text.IncludeTermVectors = true
	text.IncludeInAll = false

	position := bleve.NewNumericFieldMapping()
	position.Store = true
	position.Index = true
	position.DocValues = true
	position.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldID, keyword())
	doc.AddFieldMappingsAt(fieldText, text)
	doc.AddFieldMappingsAt(fieldSource, keyword())
	doc.AddFieldMappingsAt(fieldHeading, keyword())
	doc.AddFieldMappingsAt(fieldPosition, position)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	indexMapping.DefaultField = fieldText
	return indexMapping
}

// Writer returns a buffered writer that flushes every bufferSize operations.
func (l *LexicalIndex) Writer(bufferSize int) (*LexicalWriter, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, docerrors.New(docerrors.ErrCodeIndexWrite, "lexical index is closed", nil)
	}
	if bufferSize <= 0 {
		bufferSize = DefaultWriterBuf
	}
	return &LexicalWriter{owner: l, batch: l.index.NewBatch(), limit: bufferSize}, nil
}

// Search runs a query-string query against the text field and returns up to
// k hits by descending score. A query that fails to parse is sanitized and
// retried once, then run as a match query on the sanitized text.
func (l *LexicalIndex) Search(ctx context.Context, queryStr string, k int) ([]LexicalHit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, docerrors.New(docerrors.ErrCodeIndexSearch, "lexical index is closed", nil)
	}
	if k <= 0 || strings.TrimSpace(queryStr) == "" {
		return []LexicalHit{}, nil
	}

	q, err := parseQuery(queryStr)
	if err != nil {
		sanitized := Sanitize(queryStr)
		slog.Debug("lexical_query_sanitized",
			slog.String("query", queryStr),
			slog.String("sanitized", sanitized),
			slog.String("parse_error", err.Error()))
		q, err = parseQuery(sanitized)
		if err != nil {
			// Reserved syntax such as "::" or a leading "+" survives sanitizing;
			// analyze the text as plain terms instead.
			slog.Debug("lexical_query_match_fallback",
				slog.String("sanitized", sanitized),
				slog.String("parse_error", err.Error()))
			mq := bleve.NewMatchQuery(sanitized)
			mq.SetField(fieldText)
			q = mq
		}
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = storedFields

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeIndexSearch, "lexical search failed", err)
	}

	hits := make([]LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		c, err := hydrate(hit)
		if err != nil {
			slog.Warn("lexical_hit_skipped", docerrors.LogAttrs(err)...)
			continue
		}
		hits = append(hits, LexicalHit{Chunk: c, Score: hit.Score})
	}
	return hits, nil
}

// parseQuery turns a query string into a Bleve query. "*" matches everything.
func parseQuery(s string) (query.Query, error) {
	if strings.TrimSpace(s) == "*" {
		return bleve.NewMatchAllQuery(), nil
	}
	return bleve.NewQueryStringQuery(s).Parse()
}

// Sanitize deletes query-syntax characters, collapses whitespace, and falls
// back to the match-all wildcard when nothing is left. Deleted characters
// join their neighbours: "foo(bar)" becomes "foobar".
func Sanitize(q string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '{', '}', '(', ')', '~', '^', '"', '\'':
			return -1
		}
		return r
	}, q)
	cleaned = chunk.NormalizeWhitespace(cleaned)
	if cleaned == "" {
		return "*"
	}
	return cleaned
}

// hydrate rebuilds a chunk from a hit's stored fields.
func hydrate(hit *search.DocumentMatch) (chunk.Chunk, error) {
	id, _ := hit.Fields[fieldID].(string)
	text, _ := hit.Fields[fieldText].(string)
	source, _ := hit.Fields[fieldSource].(string)
	position, posOK := hit.Fields[fieldPosition].(float64)

	var missing []string
	if id == "" {
		missing = append(missing, fieldID)
	}
	if text == "" {
		missing = append(missing, fieldText)
	}
	if source == "" {
		missing = append(missing, fieldSource)
	}
	if !posOK {
		missing = append(missing, fieldPosition)
	}
	if len(missing) > 0 {
		return chunk.Chunk{}, docerrors.DataIntegrityError(
			fmt.Sprintf("hit %s is missing stored fields: %s", hit.ID, strings.Join(missing, ", ")), nil).
			WithDetail("doc_id", hit.ID)
	}

	// An empty heading may not be stored at all; absence means "".
	heading, _ := hit.Fields[fieldHeading].(string)

	return chunk.Chunk{
		ID:       id,
		Text:     text,
		Source:   source,
		Heading:  heading,
		Position: int(position),
	}, nil
}

// DocCount returns the number of indexed chunks.
func (l *LexicalIndex) DocCount() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, docerrors.New(docerrors.ErrCodeIndexSearch, "lexical index is closed", nil)
	}
	return l.index.DocCount()
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}

// LexicalWriter buffers deletes and adds into Bleve batches.
// Commit flushes whatever is pending; nothing is durable before that.
type LexicalWriter struct {
	owner  *LexicalIndex
	batch  *bleve.Batch
	limit  int
	writes int
}

// Delete queues removal of a chunk by id.
func (w *LexicalWriter) Delete(id string) error {
	w.batch.Delete(id)
	w.writes++
	return w.maybeFlush()
}

// Add queues a chunk for indexing.
func (w *LexicalWriter) Add(c chunk.Chunk) error {
	doc := lexicalDoc{
		ID:       c.ID,
		Text:     c.Text,
		Source:   c.Source,
		Heading:  c.Heading,
		Position: c.Position,
	}
	if err := w.batch.Index(c.ID, doc); err != nil {
		return docerrors.New(docerrors.ErrCodeIndexWrite,
			fmt.Sprintf("failed to index chunk %s", c.ID), err)
	}
	w.writes++
	return w.maybeFlush()
}

// Commit flushes pending operations to the index.
func (w *LexicalWriter) Commit() error {
	return w.flush()
}

// Writes returns the number of delete and add operations issued.
func (w *LexicalWriter) Writes() int {
	return w.writes
}

func (w *LexicalWriter) maybeFlush() error {
	if w.batch.Size() < w.limit {
		return nil
	}
	return w.flush()
}

func (w *LexicalWriter) flush() error {
	if w.batch.Size() == 0 {
		return nil
	}

	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()

	if w.owner.closed {
		return docerrors.New(docerrors.ErrCodeIndexWrite, "lexical index is closed", nil)
	}
	if err := w.owner.index.Batch(w.batch); err != nil {
		return docerrors.New(docerrors.ErrCodeIndexWrite, "failed to commit lexical batch", err)
	}
	w.batch.Reset()
	return nil
}
