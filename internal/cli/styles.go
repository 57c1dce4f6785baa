package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	docStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const displayWidth = 500

func renderHits(w io.Writer, query string, hits []domain.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d results for: %s", len(hits), query)))
	fmt.Fprintln(w)
	for i, h := range hits {
		fmt.Fprintf(w, "%s %s\n",
			docStyle.Render(fmt.Sprintf("[%d] %s #%d", i+1, h.DocName, h.ChunkID)),
			mutedStyle.Render(fmt.Sprintf("(score: %.4f)", h.Score)))
		fmt.Fprintln(w, usecase.Shorten(h.Text, displayWidth))
		fmt.Fprintln(w)
	}
}

func renderDocuments(w io.Writer, query string, docs []domain.DocumentAggregate) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d documents for: %s", len(docs), query)))
	fmt.Fprintln(w)
	for i, d := range docs {
		fmt.Fprintf(w, "%s %s\n",
			docStyle.Render(fmt.Sprintf("[DOC %d] %s", i+1, d.DocName)),
			mutedStyle.Render(fmt.Sprintf("(score: %.4f)", d.Score)))
		for _, c := range d.Chunks {
			fmt.Fprintf(w, "  • %s\n", usecase.Shorten(c.Text, displayWidth))
		}
		fmt.Fprintln(w)
	}
}

func renderAnswer(w io.Writer, ans *usecase.Answer) {
	fmt.Fprintln(w, answerStyle.Render(strings.TrimSpace(ans.Text)))

	var sources []string
	for _, h := range ans.Hits {
		sources = append(sources, h.DocName)
	}
	for _, d := range ans.Documents {
		sources = append(sources, d.DocName)
	}
	if len(sources) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("Sources: "+strings.Join(uniq(sources), ", ")))
	}
}

func uniq(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
