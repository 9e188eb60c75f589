package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/docrag/internal/search"
)

// DefaultSnippetLen caps the passage text shown per result.
const DefaultSnippetLen = 300

// ResultsView renders ranked passages and an optional generated answer.
type ResultsView struct {
	out        io.Writer
	styles     Styles
	snippetLen int
	explain    bool
	plain      bool
}

// NewResultsView creates a view writing to cfg.Output. Colors are used only
// on a terminal without NO_COLOR.
func NewResultsView(cfg Config, explain bool) *ResultsView {
	noColor := cfg.NoColor || DetectNoColor() || !IsTTY(cfg.Output)
	return &ResultsView{
		out:        cfg.Output,
		styles:     GetStyles(noColor),
		snippetLen: DefaultSnippetLen,
		explain:    explain,
		plain:      noColor,
	}
}

// RenderResults writes the result list. An empty list prints a notice.
func (v *ResultsView) RenderResults(query string, route search.Route, results []search.SearchResult) {
	header := fmt.Sprintf("Results for %q", query)
	_, _ = fmt.Fprintln(v.out, v.styles.Header.Render(header))
	_, _ = fmt.Fprintln(v.out, v.styles.Label.Render(fmt.Sprintf("strategy %s, α=%.2f", route.Kind, route.Alpha)))

	if len(results) == 0 {
		_, _ = fmt.Fprintln(v.out, v.styles.Warning.Render("No matching passages."))
		return
	}

	for i, r := range results {
		_, _ = fmt.Fprintln(v.out)
		title := fmt.Sprintf("%d. %s", i+1, r.Chunk.Source)
		if r.Chunk.Heading != "" {
			title += " › " + r.Chunk.Heading
		}
		_, _ = fmt.Fprintf(v.out, "%s  %s\n",
			v.styles.Active.Render(title),
			v.styles.Score.Render(fmt.Sprintf("%.4f", r.CombinedScore)))
		_, _ = fmt.Fprintln(v.out, v.indent(snippet(r.Chunk.Text, v.snippetLen)))
		if v.explain {
			_, _ = fmt.Fprintln(v.out, v.styles.Dim.Render("   "+r.Explanation))
		}
	}
}

// RenderAnswer writes a generated answer in a bordered panel.
func (v *ResultsView) RenderAnswer(answer string) {
	if strings.TrimSpace(answer) == "" {
		return
	}
	_, _ = fmt.Fprintln(v.out)
	_, _ = fmt.Fprintln(v.out, v.styles.Header.Render("Answer"))
	if v.plain {
		_, _ = fmt.Fprintln(v.out, answer)
		return
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1)
	_, _ = fmt.Fprintln(v.out, panel.Render(answer))
}

func (v *ResultsView) indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "   " + l
	}
	return strings.Join(lines, "\n")
}

// snippet collapses whitespace and truncates on a rune boundary.
func snippet(text string, maxLen int) string {
	s := strings.Join(strings.Fields(text), " ")
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "…"
}
