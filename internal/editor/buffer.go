package editor

import "strings"

// Position is a cursor location. Col counts runes, not bytes, and may
// equal the line length (the append position).
type Position struct {
	Row int
	Col int
}

// Less reports whether p comes before q in buffer order.
func (p Position) Less(q Position) bool {
	if p.Row != q.Row {
		return p.Row < q.Row
	}
	return p.Col < q.Col
}

// Buffer holds the editable text as lines plus a version counter. Every
// mutation bumps the version; completion results are tagged with the
// version they were computed against so stale ones can be dropped.
type Buffer struct {
	lines   [][]rune
	version uint64
}

// NewBuffer creates a buffer from text. An empty text yields one empty line.
func NewBuffer(text string) *Buffer {
	b := &Buffer{}
	b.setLines(text)
	return b
}

func (b *Buffer) setLines(text string) {
	parts := strings.Split(text, "\n")
	b.lines = make([][]rune, len(parts))
	for i, p := range parts {
		b.lines[i] = []rune(p)
	}
}

// Version returns the mutation counter.
func (b *Buffer) Version() uint64 { return b.version }

// Text returns the whole buffer as a string.
func (b *Buffer) Text() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

// Lines returns the buffer content line by line.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	for i, l := range b.lines {
		out[i] = string(l)
	}
	return out
}

// Line returns the line at row, or "" when row is out of range.
func (b *Buffer) Line(row int) string {
	if row < 0 || row >= len(b.lines) {
		return ""
	}
	return string(b.lines[row])
}

// LineLen returns the rune length of the line at row.
func (b *Buffer) LineLen(row int) int {
	if row < 0 || row >= len(b.lines) {
		return 0
	}
	return len(b.lines[row])
}

// LineCount returns the number of lines; never less than 1.
func (b *Buffer) LineCount() int { return len(b.lines) }

// SetText replaces the whole buffer content.
func (b *Buffer) SetText(text string) {
	b.setLines(text)
	b.version++
}

// Clamp forces pos into the valid range. With appendCol the cursor may
// sit one past the last rune (insert mode); without it the cursor sits
// on a rune, or at 0 for an empty line.
func (b *Buffer) Clamp(pos Position, appendCol bool) Position {
	if pos.Row < 0 {
		pos.Row = 0
	}
	if pos.Row >= len(b.lines) {
		pos.Row = len(b.lines) - 1
	}
	max := len(b.lines[pos.Row])
	if !appendCol && max > 0 {
		max--
	}
	if pos.Col < 0 {
		pos.Col = 0
	}
	if pos.Col > max {
		pos.Col = max
	}
	return pos
}

// Insert places text at pos and returns the position just after the
// inserted text. Embedded newlines split the line.
func (b *Buffer) Insert(pos Position, text string) Position {
	pos = b.Clamp(pos, true)
	line := b.lines[pos.Row]
	before := append([]rune{}, line[:pos.Col]...)
	after := append([]rune{}, line[pos.Col:]...)

	parts := strings.Split(text, "\n")
	if len(parts) == 1 {
		b.lines[pos.Row] = append(append(before, []rune(parts[0])...), after...)
		b.version++
		return Position{Row: pos.Row, Col: pos.Col + len([]rune(parts[0]))}
	}

	newLines := make([][]rune, 0, len(b.lines)+len(parts)-1)
	newLines = append(newLines, b.lines[:pos.Row]...)
	newLines = append(newLines, append(before, []rune(parts[0])...))
	for _, mid := range parts[1 : len(parts)-1] {
		newLines = append(newLines, []rune(mid))
	}
	last := []rune(parts[len(parts)-1])
	endCol := len(last)
	newLines = append(newLines, append(last, after...))
	newLines = append(newLines, b.lines[pos.Row+1:]...)
	b.lines = newLines
	b.version++
	return Position{Row: pos.Row + len(parts) - 1, Col: endCol}
}

// InsertLine inserts a new empty line at row and returns its position.
func (b *Buffer) InsertLine(row int) Position {
	if row < 0 {
		row = 0
	}
	if row > len(b.lines) {
		row = len(b.lines)
	}
	newLines := make([][]rune, 0, len(b.lines)+1)
	newLines = append(newLines, b.lines[:row]...)
	newLines = append(newLines, []rune{})
	newLines = append(newLines, b.lines[row:]...)
	b.lines = newLines
	b.version++
	return Position{Row: row, Col: 0}
}

// DeleteRange removes the span and returns the removed text and the
// position where the cursor should land. Inclusive charwise ranges
// include the end rune; linewise ranges remove whole lines.
func (b *Buffer) DeleteRange(r Range) (string, Position) {
	start, end := orderRange(r)
	start = b.Clamp(start, true)
	end = b.Clamp(end, true)

	if r.Kind == Linewise {
		removed := b.deleteLines(start.Row, end.Row)
		pos := b.Clamp(Position{Row: start.Row, Col: 0}, false)
		return removed, pos
	}

	if r.Inclusive && end.Col < len(b.lines[end.Row]) {
		end.Col++
	}
	removed := b.extract(start, end)
	head := append([]rune{}, b.lines[start.Row][:start.Col]...)
	tail := append([]rune{}, b.lines[end.Row][end.Col:]...)
	newLines := make([][]rune, 0, len(b.lines))
	newLines = append(newLines, b.lines[:start.Row]...)
	newLines = append(newLines, append(head, tail...))
	newLines = append(newLines, b.lines[end.Row+1:]...)
	b.lines = newLines
	b.version++
	return removed, b.Clamp(start, false)
}

// Extract returns the text covered by the range without mutating.
func (b *Buffer) Extract(r Range) string {
	start, end := orderRange(r)
	start = b.Clamp(start, true)
	end = b.Clamp(end, true)

	if r.Kind == Linewise {
		parts := make([]string, 0, end.Row-start.Row+1)
		for row := start.Row; row <= end.Row; row++ {
			parts = append(parts, string(b.lines[row]))
		}
		return strings.Join(parts, "\n") + "\n"
	}
	if r.Inclusive && end.Col < len(b.lines[end.Row]) {
		end.Col++
	}
	return b.extract(start, end)
}

func (b *Buffer) extract(start, end Position) string {
	if start.Row == end.Row {
		return string(b.lines[start.Row][start.Col:end.Col])
	}
	var sb strings.Builder
	sb.WriteString(string(b.lines[start.Row][start.Col:]))
	for row := start.Row + 1; row < end.Row; row++ {
		sb.WriteByte('\n')
		sb.WriteString(string(b.lines[row]))
	}
	sb.WriteByte('\n')
	sb.WriteString(string(b.lines[end.Row][:end.Col]))
	return sb.String()
}

// deleteLines removes rows first..last and returns them with a trailing
// newline, the register convention for linewise text.
func (b *Buffer) deleteLines(first, last int) string {
	parts := make([]string, 0, last-first+1)
	for row := first; row <= last; row++ {
		parts = append(parts, string(b.lines[row]))
	}
	newLines := make([][]rune, 0, len(b.lines))
	newLines = append(newLines, b.lines[:first]...)
	newLines = append(newLines, b.lines[last+1:]...)
	if len(newLines) == 0 {
		newLines = [][]rune{{}}
	}
	b.lines = newLines
	b.version++
	return strings.Join(parts, "\n") + "\n"
}

func orderRange(r Range) (Position, Position) {
	if r.End.Less(r.Start) {
		return r.End, r.Start
	}
	return r.Start, r.End
}
