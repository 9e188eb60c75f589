// Package chunk turns corpus documents into overlapping token windows.
package chunk

import (
	"fmt"
	"sort"
	"strings"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// window is a half-open token range [start, end).
type window struct {
	start, end int
}

// ValidateParams checks chunk size and overlap.
func ValidateParams(size, overlap int) error {
	if size <= 0 {
		return docerrors.New(docerrors.ErrCodeChunkParams,
			fmt.Sprintf("chunk_size must be positive, got %d", size), nil)
	}
	if overlap < 0 {
		return docerrors.New(docerrors.ErrCodeChunkParams,
			fmt.Sprintf("chunk_overlap must be non-negative, got %d", overlap), nil)
	}
	if overlap >= size {
		return docerrors.New(docerrors.ErrCodeChunkParams,
			fmt.Sprintf("chunk_overlap (%d) must be smaller than chunk_size (%d)", overlap, size), nil).
			WithSuggestion("lower --chunk-overlap or raise --chunk-size")
	}
	return nil
}

// windows slides a size-token window over n tokens, advancing by size-overlap.
// The window that reaches the last token is the final one, so n tokens yield
// ceil((n-overlap)/(size-overlap)) windows when n > overlap.
func windows(n, size, overlap int) []window {
	if n == 0 {
		return nil
	}
	step := size - overlap
	var out []window
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		out = append(out, window{start: start, end: end})
		if end == n {
			break
		}
	}
	return out
}

// Split chunks already-normalized text from a single source.
// Every chunk carries the same heading.
func Split(text, source, heading string, size, overlap int) ([]Chunk, error) {
	var headings []HeadingMark
	if heading != "" {
		headings = []HeadingMark{{Token: 0, Title: heading}}
	}
	return SplitDocument(Document{Path: source, Text: text, Headings: headings}, size, overlap)
}

// SplitDocument chunks a document, tagging each chunk with the heading in
// effect at the chunk's first token. Windows under MinChunkTokens are dropped
// and positions stay gapless.
func SplitDocument(doc Document, size, overlap int) ([]Chunk, error) {
	if err := ValidateParams(size, overlap); err != nil {
		return nil, err
	}

	tokens := strings.Fields(doc.Text)
	var chunks []Chunk
	for _, w := range windows(len(tokens), size, overlap) {
		if w.end-w.start < MinChunkTokens {
			continue
		}
		position := len(chunks)
		chunks = append(chunks, Chunk{
			ID:       ChunkID(doc.Path, position),
			Text:     strings.Join(tokens[w.start:w.end], " "),
			Source:   doc.Path,
			Heading:  headingAt(doc.Headings, w.start),
			Position: position,
		})
	}
	return chunks, nil
}

// ChunkDocuments chunks every document in order.
func ChunkDocuments(docs []Document, size, overlap int) ([]Chunk, error) {
	if err := ValidateParams(size, overlap); err != nil {
		return nil, err
	}
	var all []Chunk
	for _, doc := range docs {
		chunks, err := SplitDocument(doc, size, overlap)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// headingAt returns the title of the last mark at or before token.
func headingAt(marks []HeadingMark, token int) string {
	i := sort.Search(len(marks), func(i int) bool { return marks[i].Token > token })
	if i == 0 {
		return ""
	}
	return marks[i-1].Title
}
