package generate

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docrag/internal/search"
)

// BuildPrompt numbers each passage with its source and position, then asks the question.
func BuildPrompt(query string, results []search.SearchResult) string {
	var b strings.Builder

	if len(results) == 0 {
		b.WriteString("No relevant documentation was found for this question. ")
		b.WriteString("Answer from general knowledge and say that no documentation context was available.\n\n")
	} else {
		b.WriteString("Here are relevant documentation excerpts to help answer the question:\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] (source: %s, chunk: %d)\n", i+1, r.Chunk.Source, r.Chunk.Position)
			if r.Chunk.Heading != "" {
				fmt.Fprintf(&b, "## %s\n", r.Chunk.Heading)
			}
			b.WriteString(r.Chunk.Text)
			b.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Answer based on the excerpts above. ")
	b.WriteString("If they do not contain enough information, say what is missing.")
	return b.String()
}
