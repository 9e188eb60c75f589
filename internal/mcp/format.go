package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docrag/internal/search"
)

// maxK caps the passages a single tool call may request.
const maxK = 50

// PassageOutput is one ranked passage in the retrieve tool's structured output.
type PassageOutput struct {
	ID            string  `json:"id" jsonschema:"stable passage identifier"`
	Source        string  `json:"source" jsonschema:"document path relative to the corpus root"`
	Heading       string  `json:"heading,omitempty" jsonschema:"nearest section heading"`
	Position      int     `json:"position" jsonschema:"0-based passage position within the document"`
	Text          string  `json:"text" jsonschema:"passage text"`
	Score         float64 `json:"score" jsonschema:"combined relevance score"`
	LexicalScore  float64 `json:"lexical_score" jsonschema:"raw lexical score, 0 when only found semantically"`
	SemanticScore float64 `json:"semantic_score" jsonschema:"cosine similarity to the query"`
	Explanation   string  `json:"explanation,omitempty" jsonschema:"how the score was computed"`
}

// ToPassageOutput converts a search result to its tool output form.
func ToPassageOutput(r search.SearchResult) PassageOutput {
	return PassageOutput{
		ID:            r.Chunk.ID,
		Source:        r.Chunk.Source,
		Heading:       r.Chunk.Heading,
		Position:      r.Chunk.Position,
		Text:          r.Chunk.Text,
		Score:         r.CombinedScore,
		LexicalScore:  r.LexicalScore,
		SemanticScore: r.SemanticScore,
		Explanation:   r.Explanation,
	}
}

// FormatResults renders ranked passages as markdown for the tool's text content.
func FormatResults(query string, route search.Route, results []search.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No passages found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Passages for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d passage", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (route: %s, α=%.2f)\n\n", route.Kind, route.Alpha)

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s #%d (score: %.3f)\n", i+1, r.Chunk.Source, r.Chunk.Position, r.CombinedScore)
		if r.Chunk.Heading != "" {
			fmt.Fprintf(&sb, "**Section:** %s\n", r.Chunk.Heading)
		}
		sb.WriteString("\n")
		sb.WriteString(r.Chunk.Text)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// clampK ensures k is within bounds.
func clampK(k, defaultVal int) int {
	if k <= 0 {
		return defaultVal
	}
	if k > maxK {
		return maxK
	}
	return k
}
