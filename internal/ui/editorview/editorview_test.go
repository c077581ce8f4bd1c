package editorview

import (
	"strings"
	"testing"

	"github.com/pheller/sqlpilot/internal/editor"
	"github.com/pheller/sqlpilot/internal/theme"
)

func newView(text string) (*editor.Editor, Model) {
	ed := editor.New()
	ed.SetText(text)
	m := New(theme.Default(), ed)
	m.SetSize(60, 10)
	return ed, m
}

func TestViewShowsBufferAndLineNumbers(t *testing.T) {
	_, m := newView("SELECT 1\nFROM dual")

	out := m.View()
	if !strings.Contains(out, "SELECT") || !strings.Contains(out, "dual") {
		t.Fatalf("buffer text missing:\n%s", out)
	}
	if !strings.Contains(out, "1") || !strings.Contains(out, "2") {
		t.Fatal("line numbers missing")
	}
	// Rows past the end render a tilde marker.
	if !strings.Contains(out, "~") {
		t.Fatal("empty-row marker missing")
	}
}

func TestCommandLineRendered(t *testing.T) {
	ed, m := newView("SELECT 1")
	ed.HandleKey(":")
	for _, r := range "run" {
		ed.HandleKey(string(r))
	}

	out := m.View()
	if !strings.Contains(out, ":run") {
		t.Fatalf("command line missing:\n%s", out)
	}
}

func TestScrollFollowsCursor(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "SELECT 1"
	}
	ed, m := newView(strings.Join(lines, "\n"))
	m.SetSize(40, 8)

	ed.MoveCursorTo(25, 0)
	m.Sync()

	top, bottom := m.VisibleRange()
	if 25 < top || 25 > bottom {
		t.Fatalf("cursor row 25 outside visible range [%d, %d]", top, bottom)
	}

	ed.MoveCursorTo(0, 0)
	m.Sync()
	top, _ = m.VisibleRange()
	if top != 0 {
		t.Fatalf("top = %d after scrolling back up", top)
	}
}

func TestCursorScreenPosition(t *testing.T) {
	ed, m := newView("SELECT 1")
	ed.MoveCursorTo(0, 4)

	x, y := m.CursorScreenPosition()
	// Border (1) + two-digit gutter (2) + space (1) + col.
	if x != 8 || y != 1 {
		t.Fatalf("position = (%d, %d)", x, y)
	}
}

func TestHighlighterStylesKeywords(t *testing.T) {
	hl := NewHighlighter("postgres")
	th := theme.Default()

	out := hl.HighlightLine("SELECT 'x' FROM t -- note", th)
	if !strings.Contains(out, "SELECT") {
		t.Fatalf("keyword lost: %q", out)
	}
	if !strings.Contains(out, "'x'") {
		t.Fatalf("string lost: %q", out)
	}
	if !strings.Contains(out, "-- note") {
		t.Fatalf("comment lost: %q", out)
	}

	// Plain text passes through untouched when empty.
	if hl.HighlightLine("", th) != "" {
		t.Fatal("empty line mangled")
	}
}

func TestUnknownDialectFallsBack(t *testing.T) {
	hl := NewHighlighter("nosuchdb")
	if hl.lexer == nil {
		t.Fatal("no lexer selected")
	}
	if out := hl.HighlightLine("SELECT 1", theme.Default()); out == "" {
		t.Fatal("fallback lexer produced nothing")
	}
}
