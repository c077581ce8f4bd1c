package editorview

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/theme"
)

// Highlighter tokenises SQL text using chroma and renders it with
// lipgloss styles from the active theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// NewHighlighter creates a Highlighter for the given dialect. Unknown
// dialects fall back to the generic SQL lexer.
func NewHighlighter(dialect string) *Highlighter {
	var l chroma.Lexer
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		l = lexers.Get("PostgreSQL")
	case "mysql":
		l = lexers.Get("MySQL")
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	// Coalesce runs of identical token types so rendering processes
	// fewer, larger chunks.
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// HighlightLine styles a single line of SQL. The input must not contain
// newlines.
func (h *Highlighter) HighlightLine(line string, th *theme.Theme) string {
	if th == nil || line == "" {
		return line
	}

	iter, err := h.lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var b strings.Builder
	b.Grow(len(line) * 2)

	for _, tok := range iter.Tokens() {
		value := strings.TrimSuffix(tok.Value, "\n")
		if value == "" {
			continue
		}
		if style, ok := styleFor(tok.Type, th); ok {
			b.WriteString(style.Render(value))
		} else {
			b.WriteString(th.SQLDefault.Render(value))
		}
	}
	return b.String()
}

func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	case tt == chroma.NameFunction:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	default:
		return lipgloss.Style{}, false
	}
}
