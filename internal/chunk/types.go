package chunk

import "fmt"

// Chunking defaults.
const (
	DefaultChunkSize    = 500 // tokens per window
	DefaultChunkOverlap = 50  // tokens shared between consecutive windows
	MinChunkTokens      = 10  // shorter windows are dropped
)

// Chunk is a retrievable unit of content.
type Chunk struct {
	ID       string `json:"id"`                // "<source>:chunk<position>"
	Text     string `json:"text"`              // whitespace-joined window tokens
	Source   string `json:"source"`            // corpus-relative, slash-separated document path
	Heading  string `json:"heading,omitempty"` // nearest preceding markdown heading
	Position int    `json:"position"`          // ordinal among emitted chunks of Source
}

// ChunkID derives the corpus-unique chunk id from its source and position.
func ChunkID(source string, position int) string {
	return fmt.Sprintf("%s:chunk%d", source, position)
}

// HeadingMark records that the heading Title applies from token index Token onwards.
type HeadingMark struct {
	Token int
	Title string
}

// Document is a normalized corpus document ready for chunking.
type Document struct {
	// Path is relative to the corpus root, with forward slashes.
	Path string
	// Text is the normalized, whitespace-collapsed content.
	Text string
	// Headings are ordered by Token; empty for non-markdown formats.
	Headings []HeadingMark
}
