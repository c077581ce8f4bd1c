// Package editorview renders the modal editor buffer: syntax
// highlighted lines, a line number gutter, the cursor, the visual
// selection, and the command line. Key handling lives in the editor
// engine; this component only draws its state.
package editorview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/editor"
	"github.com/pheller/sqlpilot/internal/theme"
)

// Model draws an editor. It holds a reference to the engine rather than
// a copy so the view always reflects the live buffer.
type Model struct {
	th      *theme.Theme
	ed      *editor.Editor
	hl      *Highlighter
	width   int
	height  int
	focused bool
	top     int // first visible buffer row
}

// New creates a view over the given editor engine.
func New(th *theme.Theme, ed *editor.Editor) Model {
	return Model{th: th, ed: ed, hl: NewHighlighter("")}
}

// SetDialect swaps the syntax highlighter, typically after connecting.
func (m *Model) SetDialect(dialect string) {
	m.hl = NewHighlighter(dialect)
}

// SetSize updates the view dimensions including the border.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.scrollIntoView()
}

// Focus gives the editor pane input focus.
func (m *Model) Focus() { m.focused = true }

// Blur removes input focus.
func (m *Model) Blur() { m.focused = false }

// Focused reports whether the pane has input focus.
func (m Model) Focused() bool { return m.focused }

// Sync adjusts the scroll offset after the buffer or cursor changed.
// Call once per processed key.
func (m *Model) Sync() { m.scrollIntoView() }

func (m *Model) scrollIntoView() {
	rows := m.textRows()
	if rows < 1 {
		return
	}
	cur := m.ed.Cursor().Row
	if cur < m.top {
		m.top = cur
	}
	if cur >= m.top+rows {
		m.top = cur - rows + 1
	}
	if m.top < 0 {
		m.top = 0
	}
}

// textRows returns the number of buffer rows visible inside the border,
// reserving one row for the command line when it is active.
func (m Model) textRows() int {
	rows := m.height - 2
	if m.ed.Mode() == editor.ModeCommand {
		rows--
	}
	return rows
}

// View renders the pane.
func (m Model) View() string {
	innerW := m.width - 2
	innerH := m.height - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	lines := m.ed.Lines()
	gutter := len(fmt.Sprintf("%d", len(lines)))
	if gutter < 2 {
		gutter = 2
	}

	cur := m.ed.Cursor()
	sel, hasSel := m.ed.VisualRange()

	rows := m.textRows()
	var b strings.Builder
	for i := 0; i < rows; i++ {
		row := m.top + i
		if i > 0 {
			b.WriteByte('\n')
		}
		if row >= len(lines) {
			b.WriteString(m.th.EditorLineNumber.Render(strings.Repeat(" ", gutter-1) + "~"))
			continue
		}
		b.WriteString(m.th.EditorLineNumber.Render(fmt.Sprintf("%*d ", gutter, row+1)))
		b.WriteString(m.renderLine(lines[row], row, cur, sel, hasSel, innerW-gutter-1))
	}

	if m.ed.Mode() == editor.ModeCommand {
		b.WriteByte('\n')
		b.WriteString(m.th.SQLDefault.Render(":" + m.ed.CommandLine()))
	}

	border := m.th.UnfocusedBorder
	if m.focused {
		border = m.th.FocusedBorder
	}
	return border.Width(innerW).Height(innerH).Render(b.String())
}

// renderLine draws one buffer line. The cursor line and lines inside a
// visual selection are drawn without syntax colors so the cursor and
// selection styling stay intact; all other lines go through chroma.
func (m Model) renderLine(line string, row int, cur editor.Position, sel editor.Range, hasSel bool, maxW int) string {
	runes := []rune(line)
	if maxW > 0 && len(runes) > maxW {
		runes = runes[:maxW]
	}

	cursorHere := m.focused && row == cur.Row
	selStart, selEnd, selHere := selectionSpan(runes, row, sel, hasSel)

	if !cursorHere && !selHere {
		return m.hl.HighlightLine(string(runes), m.th)
	}

	var b strings.Builder
	for col := 0; col <= len(runes); col++ {
		ch := " "
		if col < len(runes) {
			ch = string(runes[col])
		} else if !(cursorHere && cur.Col == col) {
			break
		}

		switch {
		case cursorHere && col == cur.Col:
			b.WriteString(m.th.EditorCursor.Render(ch))
		case selHere && col >= selStart && col < selEnd:
			b.WriteString(m.th.EditorSelection.Render(ch))
		default:
			b.WriteString(m.th.SQLDefault.Render(ch))
		}
	}
	return b.String()
}

// selectionSpan returns the selected column range on row, if any. The
// range from the engine is anchor-to-cursor, so it may run backwards.
func selectionSpan(runes []rune, row int, sel editor.Range, hasSel bool) (int, int, bool) {
	if !hasSel {
		return 0, 0, false
	}
	if sel.End.Row < sel.Start.Row ||
		(sel.End.Row == sel.Start.Row && sel.End.Col < sel.Start.Col) {
		sel.Start, sel.End = sel.End, sel.Start
	}
	if row < sel.Start.Row || row > sel.End.Row {
		return 0, 0, false
	}
	start, end := 0, len(runes)
	if sel.Kind == editor.Charwise {
		if row == sel.Start.Row {
			start = sel.Start.Col
		}
		if row == sel.End.Row {
			end = sel.End.Col + 1 // inclusive end
		}
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		start = end
	}
	return start, end, true
}

// VisibleRange reports the buffer rows currently on screen, for overlay
// placement.
func (m Model) VisibleRange() (top, bottom int) {
	return m.top, m.top + m.textRows() - 1
}

// CursorScreenPosition returns the cursor position in screen cells
// relative to the pane's top-left corner, for popup placement.
func (m Model) CursorScreenPosition() (x, y int) {
	lines := m.ed.Lines()
	gutter := len(fmt.Sprintf("%d", len(lines)))
	if gutter < 2 {
		gutter = 2
	}
	cur := m.ed.Cursor()
	return 1 + gutter + 1 + cur.Col, 1 + cur.Row - m.top
}

var _ = lipgloss.Width
