package chunk

import (
	"html"
	"regexp"
	"strings"
)

// Regex patterns for document normalization
var (
	// Matches headers: # Title, ## Title, etc.
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(\r?\n|$)`)

	// Matches script and style elements including their bodies
	scriptStylePattern = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)\s*>`)

	// Matches any remaining tag
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	// Strips trailing #'s from closed ATX headings: ## Title ##
	closingHashes = regexp.MustCompile(`\s+#+\s*$`)
)

// Format identifies how a file's content is normalized.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// formatByExt maps supported file extensions to their format.
var formatByExt = map[string]Format{
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".txt":      FormatText,
	".rst":      FormatText,
}

// FormatForExt returns the format for a file extension (case-insensitive).
func FormatForExt(ext string) (Format, bool) {
	f, ok := formatByExt[strings.ToLower(ext)]
	return f, ok
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize converts raw file content into a Document for the given format.
func Normalize(path, content string, format Format) Document {
	switch format {
	case FormatMarkdown:
		text, headings := normalizeMarkdown(content)
		return Document{Path: path, Text: text, Headings: headings}
	case FormatHTML:
		return Document{Path: path, Text: normalizeHTML(content)}
	default:
		return Document{Path: path, Text: NormalizeWhitespace(content)}
	}
}

// normalizeMarkdown strips markdown syntax and records where each heading
// starts in the resulting token stream.
func normalizeMarkdown(content string) (string, []HeadingMark) {
	content = frontmatterPattern.ReplaceAllString(content, "")

	var tokens []string
	var headings []HeadingMark
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
			continue
		}

		if !inFence {
			if match := headerPattern.FindStringSubmatch(line); match != nil {
				title := stripInline(closingHashes.ReplaceAllString(match[2], ""))
				title = NormalizeWhitespace(title)
				if title != "" {
					headings = append(headings, HeadingMark{Token: len(tokens), Title: title})
				}
				tokens = append(tokens, strings.Fields(title)...)
				continue
			}
			line = stripInline(line)
		}

		tokens = append(tokens, strings.Fields(line)...)
	}

	return strings.Join(tokens, " "), headings
}

// stripInline removes emphasis markers and inline code backticks.
func stripInline(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "*", "")
	return strings.ReplaceAll(line, "`", "")
}

// normalizeHTML strips markup and decodes entities.
func normalizeHTML(content string) string {
	content = scriptStylePattern.ReplaceAllString(content, " ")
	content = tagPattern.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)
	// html.UnescapeString decodes &nbsp; to U+00A0, which strings.Fields treats as space.
	return NormalizeWhitespace(content)
}
