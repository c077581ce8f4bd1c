// Package editor implements a modal, vim-style editing engine over a
// line buffer. It is UI-free: keys go in, buffer mutations and typed
// actions come out, and the TUI layer renders the result.
package editor

import "strings"

// Mode is the editor's input mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeInsert
	ModeCommand
	ModeVisual
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeInsert:
		return "INSERT"
	case ModeCommand:
		return "COMMAND"
	case ModeVisual:
		return "VISUAL"
	default:
		return "?"
	}
}

// ActionType tags what a keypress asks the host to do beyond editing.
type ActionType int

const (
	// ActNone: the key was consumed by the editor.
	ActNone ActionType = iota
	// ActCompletionTrigger: an identifier rune or dot was typed in
	// insert mode; the host should request completions for the current
	// buffer version.
	ActCompletionTrigger
	// ActCompletionDismiss: insert-mode input that invalidates any open
	// completion popup.
	ActCompletionDismiss
	// ActCommand: a command line was submitted; Command holds it
	// without the leading colon.
	ActCommand
)

// Action is the host-visible outcome of a keypress.
type Action struct {
	Type    ActionType
	Command string
}

var actNone = Action{Type: ActNone}

// Editor is the modal editing engine. It owns one buffer, the cursor,
// the undo history and a single unnamed register.
type Editor struct {
	buf     *Buffer
	cursor  Position
	mode    Mode
	history UndoHistory

	// normal-mode pending state
	pendingOp   string // "d", "c" or "y"
	pendingG    bool
	pendingChar string // motion awaiting its char argument
	count       int

	visualStart Position

	register         string
	registerLinewise bool

	cmdline string
}

// New creates an editor with an empty buffer in normal mode.
func New() *Editor {
	return &Editor{buf: NewBuffer("")}
}

// NewWithText creates an editor holding text.
func NewWithText(text string) *Editor {
	return &Editor{buf: NewBuffer(text)}
}

func (e *Editor) Mode() Mode          { return e.mode }
func (e *Editor) Cursor() Position    { return e.cursor }
func (e *Editor) Text() string        { return e.buf.Text() }
func (e *Editor) Lines() []string     { return e.buf.Lines() }
func (e *Editor) Version() uint64     { return e.buf.Version() }
func (e *Editor) CommandLine() string { return e.cmdline }

// VisualRange returns the current selection while in visual mode.
func (e *Editor) VisualRange() (Range, bool) {
	if e.mode != ModeVisual {
		return Range{}, false
	}
	return Range{Start: e.visualStart, End: e.cursor, Kind: Charwise, Inclusive: true}, true
}

// SetText replaces the buffer, resetting cursor and pending state. The
// previous content stays reachable through undo.
func (e *Editor) SetText(text string) {
	e.history.Push(e.buf.Text(), e.cursor)
	e.buf.SetText(text)
	e.cursor = Position{}
	e.clearPending()
}

// ReplaceRange substitutes text for the charwise region on one row and
// leaves the cursor after the inserted text. Completion acceptance uses
// this to swap the partial token for the chosen candidate.
func (e *Editor) ReplaceRange(row, startCol, endCol int, text string) {
	e.pushUndo()
	if endCol > startCol {
		e.buf.DeleteRange(Range{
			Start: Position{Row: row, Col: startCol},
			End:   Position{Row: row, Col: endCol},
			Kind:  Charwise,
		})
	}
	pos := e.buf.Insert(Position{Row: row, Col: startCol}, text)
	e.cursor = e.buf.Clamp(pos, e.mode == ModeInsert)
}

// MoveCursorTo places the cursor, clamping to the buffer.
func (e *Editor) MoveCursorTo(row, col int) {
	e.cursor = e.buf.Clamp(Position{Row: row, Col: col}, e.mode == ModeInsert)
}

func (e *Editor) clearPending() {
	e.pendingOp = ""
	e.pendingG = false
	e.pendingChar = ""
	e.count = 0
}

// HandleKey feeds one key into the engine. Keys use the bubbletea
// string form: single runes, "esc", "enter", "backspace", "ctrl+r".
func (e *Editor) HandleKey(key string) Action {
	switch e.mode {
	case ModeInsert:
		return e.handleInsert(key)
	case ModeCommand:
		return e.handleCommand(key)
	case ModeVisual:
		return e.handleVisual(key)
	default:
		return e.handleNormal(key)
	}
}

// ---------------------------------------------------------------------------
// Normal mode
// ---------------------------------------------------------------------------

func (e *Editor) handleNormal(key string) Action {
	if key == "esc" {
		e.clearPending()
		return actNone
	}

	// A motion waiting for its character argument consumes the next
	// printable key.
	if e.pendingChar != "" {
		if r := soleRune(key); r != 0 {
			e.applyMotion(e.pendingChar, r)
		}
		e.pendingChar = ""
		return actNone
	}

	if e.pendingG {
		e.pendingG = false
		if key == "g" {
			e.applyMotion("gg", 0)
		}
		return actNone
	}

	// Count prefix. "0" with no count pending is the line-start motion.
	if r := soleRune(key); r >= '1' && r <= '9' || (r == '0' && e.count > 0) {
		e.count = e.count*10 + int(r-'0')
		return actNone
	}

	switch key {
	case "i":
		e.enterInsert(e.cursor)
	case "a":
		pos := e.cursor
		if e.buf.LineLen(pos.Row) > 0 {
			pos.Col++
		}
		e.enterInsert(pos)
	case "I":
		e.enterInsert(Position{Row: e.cursor.Row, Col: 0})
	case "A":
		e.enterInsert(Position{Row: e.cursor.Row, Col: e.buf.LineLen(e.cursor.Row)})
	case "o":
		e.pushUndo()
		pos := e.buf.InsertLine(e.cursor.Row + 1)
		e.mode = ModeInsert
		e.cursor = pos
	case "O":
		e.pushUndo()
		pos := e.buf.InsertLine(e.cursor.Row)
		e.mode = ModeInsert
		e.cursor = pos
	case "x":
		e.deleteUnderCursor()
	case "p":
		e.paste(false)
	case "P":
		e.paste(true)
	case "u":
		if text, pos, ok := e.history.Undo(e.buf.Text(), e.cursor); ok {
			e.buf.SetText(text)
			e.cursor = e.buf.Clamp(pos, false)
		}
	case "ctrl+r":
		if text, pos, ok := e.history.Redo(e.buf.Text(), e.cursor); ok {
			e.buf.SetText(text)
			e.cursor = e.buf.Clamp(pos, false)
		}
	case "d", "c", "y":
		if e.pendingOp == key {
			// dd / cc / yy operate on whole lines.
			e.applyOperator(key, "_", 0)
			e.pendingOp = ""
		} else {
			e.pendingOp = key
		}
	case "v":
		e.mode = ModeVisual
		e.visualStart = e.cursor
	case ":":
		e.mode = ModeCommand
		e.cmdline = ""
	case "g":
		e.pendingG = true
	default:
		if _, ok := Motions[key]; ok {
			if CharMotions[key] {
				e.pendingChar = key
				return actNone
			}
			e.applyMotion(key, 0)
		} else {
			e.clearPending()
		}
	}
	return actNone
}

func (e *Editor) enterInsert(pos Position) {
	e.pushUndo()
	e.mode = ModeInsert
	e.cursor = e.buf.Clamp(pos, true)
	e.clearPending()
}

// pushUndo snapshots the buffer before a mutation.
func (e *Editor) pushUndo() {
	e.history.Push(e.buf.Text(), e.cursor)
}

// applyMotion runs a motion, honoring a pending operator and count.
func (e *Editor) applyMotion(name string, arg rune) {
	motion := Motions[name]
	count := e.count
	if count == 0 {
		count = 1
	}

	op := e.pendingOp
	e.pendingOp = ""
	e.count = 0

	lines := e.buf.Lines()
	res := motion(lines, e.cursor.Row, e.cursor.Col, arg)
	if !res.Moved {
		return
	}
	span := res.Span

	if name == "_" {
		// dd/yy/cc with a count take that many lines downward.
		if count > 1 {
			end := span.End.Row + count - 1
			if end > e.buf.LineCount()-1 {
				end = e.buf.LineCount() - 1
			}
			span.End.Row = end
		}
	} else {
		for i := 1; i < count; i++ {
			next := motion(lines, res.Pos.Row, res.Pos.Col, arg)
			if !next.Moved {
				break
			}
			res = next
			// Union of the per-step spans: backward motions emit spans
			// ending at their starting cursor, so extend toward the min
			// start and max end rather than chasing the last step's end.
			if next.Span.Start.Less(span.Start) {
				span.Start = next.Span.Start
			}
			if span.End.Less(next.Span.End) {
				span.End = next.Span.End
			}
			span.Kind = next.Span.Kind
			span.Inclusive = next.Span.Inclusive
		}
	}

	if op == "" {
		e.cursor = e.buf.Clamp(res.Pos, false)
		return
	}

	switch op {
	case "y":
		e.register = e.buf.Extract(span)
		e.registerLinewise = span.Kind == Linewise
		e.cursor = e.buf.Clamp(span.Start, false)
	case "d":
		e.pushUndo()
		removed, pos := e.buf.DeleteRange(span)
		e.register = removed
		e.registerLinewise = span.Kind == Linewise
		e.cursor = pos
	case "c":
		e.pushUndo()
		removed, pos := e.buf.DeleteRange(span)
		e.register = removed
		e.registerLinewise = span.Kind == Linewise
		if span.Kind == Linewise {
			pos = e.buf.InsertLine(span.Start.Row)
		}
		e.mode = ModeInsert
		e.cursor = e.buf.Clamp(pos, true)
	}
}

// applyOperator runs op over the named motion directly (dd/yy/cc path).
func (e *Editor) applyOperator(op, motionName string, arg rune) {
	e.pendingOp = op
	e.applyMotion(motionName, arg)
}

func (e *Editor) deleteUnderCursor() {
	count := e.count
	if count == 0 {
		count = 1
	}
	e.count = 0
	if e.buf.LineLen(e.cursor.Row) == 0 {
		return
	}
	e.pushUndo()
	end := e.cursor.Col + count - 1
	if end > e.buf.LineLen(e.cursor.Row)-1 {
		end = e.buf.LineLen(e.cursor.Row) - 1
	}
	span := Range{Start: e.cursor, End: Position{e.cursor.Row, end}, Kind: Charwise, Inclusive: true}
	removed, pos := e.buf.DeleteRange(span)
	e.register = removed
	e.registerLinewise = false
	e.cursor = pos
}

func (e *Editor) paste(before bool) {
	if e.register == "" {
		return
	}
	e.pushUndo()
	if e.registerLinewise {
		text := strings.TrimSuffix(e.register, "\n")
		row := e.cursor.Row + 1
		if before {
			row = e.cursor.Row
		}
		pos := e.buf.InsertLine(row)
		e.buf.Insert(pos, text)
		e.cursor = Position{Row: row, Col: 0}
		return
	}
	pos := e.cursor
	if !before && e.buf.LineLen(pos.Row) > 0 {
		pos.Col++
	}
	end := e.buf.Insert(pos, e.register)
	e.cursor = e.buf.Clamp(Position{Row: end.Row, Col: end.Col - 1}, false)
}

// ---------------------------------------------------------------------------
// Insert mode
// ---------------------------------------------------------------------------

func (e *Editor) handleInsert(key string) Action {
	switch key {
	case "esc":
		e.mode = ModeNormal
		e.cursor = e.buf.Clamp(Position{Row: e.cursor.Row, Col: e.cursor.Col - 1}, false)
		return Action{Type: ActCompletionDismiss}
	case "enter":
		e.cursor = e.buf.Insert(e.cursor, "\n")
		return Action{Type: ActCompletionDismiss}
	case "backspace":
		e.backspace()
		return Action{Type: ActCompletionTrigger}
	case "tab":
		e.cursor = e.buf.Insert(e.cursor, "    ")
		return Action{Type: ActCompletionDismiss}
	case "space", " ":
		e.cursor = e.buf.Insert(e.cursor, " ")
		return Action{Type: ActCompletionDismiss}
	}

	r := soleRune(key)
	if r == 0 {
		return actNone
	}
	e.cursor = e.buf.Insert(e.cursor, string(r))
	if isWordChar(r) || r == '.' {
		return Action{Type: ActCompletionTrigger}
	}
	return Action{Type: ActCompletionDismiss}
}

func (e *Editor) backspace() {
	if e.cursor.Col > 0 {
		span := Range{
			Start: Position{e.cursor.Row, e.cursor.Col - 1},
			End:   Position{e.cursor.Row, e.cursor.Col},
			Kind:  Charwise,
		}
		_, _ = e.buf.DeleteRange(span)
		e.cursor.Col--
		return
	}
	if e.cursor.Row == 0 {
		return
	}
	// Join with the previous line.
	prevLen := e.buf.LineLen(e.cursor.Row - 1)
	span := Range{
		Start: Position{e.cursor.Row - 1, prevLen},
		End:   Position{e.cursor.Row, 0},
		Kind:  Charwise,
	}
	_, _ = e.buf.DeleteRange(span)
	e.cursor = Position{Row: e.cursor.Row - 1, Col: prevLen}
}

// ---------------------------------------------------------------------------
// Visual mode
// ---------------------------------------------------------------------------

func (e *Editor) handleVisual(key string) Action {
	switch key {
	case "esc", "v":
		e.mode = ModeNormal
		return actNone
	case "d", "x", "c":
		span := Range{Start: e.visualStart, End: e.cursor, Kind: Charwise, Inclusive: true}
		e.pushUndo()
		removed, pos := e.buf.DeleteRange(span)
		e.register = removed
		e.registerLinewise = false
		if key == "c" {
			e.mode = ModeInsert
			e.cursor = e.buf.Clamp(pos, true)
		} else {
			e.mode = ModeNormal
			e.cursor = pos
		}
		return actNone
	case "y":
		span := Range{Start: e.visualStart, End: e.cursor, Kind: Charwise, Inclusive: true}
		e.register = e.buf.Extract(span)
		e.registerLinewise = false
		e.mode = ModeNormal
		start, _ := orderRange(span)
		e.cursor = e.buf.Clamp(start, false)
		return actNone
	}

	if e.pendingChar != "" {
		if r := soleRune(key); r != 0 {
			res := Motions[e.pendingChar](e.buf.Lines(), e.cursor.Row, e.cursor.Col, r)
			if res.Moved {
				e.cursor = e.buf.Clamp(res.Pos, false)
			}
		}
		e.pendingChar = ""
		return actNone
	}
	if e.pendingG {
		e.pendingG = false
		if key == "g" {
			res := Motions["gg"](e.buf.Lines(), e.cursor.Row, e.cursor.Col, 0)
			e.cursor = e.buf.Clamp(res.Pos, false)
		}
		return actNone
	}
	if key == "g" {
		e.pendingG = true
		return actNone
	}
	if motion, ok := Motions[key]; ok {
		if CharMotions[key] {
			e.pendingChar = key
			return actNone
		}
		res := motion(e.buf.Lines(), e.cursor.Row, e.cursor.Col, 0)
		if res.Moved {
			e.cursor = e.buf.Clamp(res.Pos, false)
		}
	}
	return actNone
}

// ---------------------------------------------------------------------------
// Command mode
// ---------------------------------------------------------------------------

func (e *Editor) handleCommand(key string) Action {
	switch key {
	case "esc":
		e.mode = ModeNormal
		e.cmdline = ""
		return actNone
	case "enter":
		cmd := e.cmdline
		e.cmdline = ""
		e.mode = ModeNormal
		if strings.TrimSpace(cmd) == "" {
			return actNone
		}
		return Action{Type: ActCommand, Command: cmd}
	case "backspace":
		if e.cmdline == "" {
			e.mode = ModeNormal
			return actNone
		}
		rs := []rune(e.cmdline)
		e.cmdline = string(rs[:len(rs)-1])
		return actNone
	case "space", " ":
		e.cmdline += " "
		return actNone
	}
	if r := soleRune(key); r != 0 {
		e.cmdline += string(r)
	}
	return actNone
}

// soleRune returns the key's rune when it is a single printable
// character, 0 otherwise.
func soleRune(key string) rune {
	rs := []rune(key)
	if len(rs) != 1 {
		return 0
	}
	return rs[0]
}
