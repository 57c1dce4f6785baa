package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
)

const (
	DefaultSnippetWidth    = 900
	DefaultMaxContextChars = 8000
	Ellipsis               = "…"
)

// ContextLimits bounds the prompt context built from search hits.
type ContextLimits struct {
	SnippetWidth    int
	MaxContextChars int
}

func (l ContextLimits) withDefaults() ContextLimits {
	if l.SnippetWidth <= 0 {
		l.SnippetWidth = DefaultSnippetWidth
	}
	if l.MaxContextChars <= 0 {
		l.MaxContextChars = DefaultMaxContextChars
	}
	return l
}

// BuildChunkContext renders one line per hit:
//
//	[1 score=0.912345] report.pdf: chunk text
func BuildChunkContext(hits []domain.SearchHit, limits ContextLimits) string {
	limits = limits.withDefaults()

	lines := make([]string, 0, len(hits))
	for i, h := range hits {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%d score=%.6f] ", i+1, h.Score)
		if h.DocName != "" {
			sb.WriteString(h.DocName)
			sb.WriteString(": ")
		}
		sb.WriteString(Shorten(h.Text, limits.SnippetWidth))
		lines = append(lines, sb.String())
	}
	return capChars(strings.Join(lines, "\n"), limits.MaxContextChars)
}

// BuildDocumentContext renders a header per document followed by its
// chunks as bullet lines and a blank separator line.
func BuildDocumentContext(docs []domain.DocumentAggregate, limits ContextLimits) string {
	limits = limits.withDefaults()

	var lines []string
	for i, d := range docs {
		lines = append(lines, fmt.Sprintf("[DOC %d] %s (score=%.6f)", i+1, d.DocName, d.Score))
		for _, c := range d.Chunks {
			lines = append(lines, "• "+Shorten(c.Text, limits.SnippetWidth))
		}
		lines = append(lines, "")
	}
	return capChars(strings.Join(lines, "\n"), limits.MaxContextChars)
}

// Shorten collapses whitespace and, when the result is wider than width
// runes, cuts it at a word boundary so that the text plus the ellipsis fit.
// A first word longer than the width is cut mid-word.
func Shorten(text string, width int) string {
	words := strings.Fields(text)
	joined := strings.Join(words, " ")
	if width <= 0 || utf8.RuneCountInString(joined) <= width {
		return joined
	}

	budget := width - utf8.RuneCountInString(Ellipsis)
	if budget <= 0 {
		return Ellipsis
	}

	var sb strings.Builder
	used := 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		if i > 0 {
			n++
		}
		if used+n > budget {
			if i == 0 {
				sb.WriteString(string([]rune(w)[:budget]))
			}
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
		used += n
	}
	return sb.String() + Ellipsis
}

func capChars(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + Ellipsis
}
