package editor

// undoState is one snapshot of buffer text plus cursor.
type undoState struct {
	text string
	pos  Position
}

const maxUndoDepth = 200

// UndoHistory is a snapshot stack. A state is pushed before each
// mutation; undo swaps the current state onto the redo stack, and any
// new mutation clears the redo stack.
type UndoHistory struct {
	undo []undoState
	redo []undoState
}

// Push records the pre-mutation state and clears redo.
func (h *UndoHistory) Push(text string, pos Position) {
	h.undo = append(h.undo, undoState{text: text, pos: pos})
	if len(h.undo) > maxUndoDepth {
		h.undo = h.undo[len(h.undo)-maxUndoDepth:]
	}
	h.redo = nil
}

// CanUndo reports whether an older state exists.
func (h *UndoHistory) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether an undone state exists.
func (h *UndoHistory) CanRedo() bool { return len(h.redo) > 0 }

// Undo returns the previous state, pushing the current one onto redo.
func (h *UndoHistory) Undo(curText string, curPos Position) (string, Position, bool) {
	if len(h.undo) == 0 {
		return "", Position{}, false
	}
	st := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, undoState{text: curText, pos: curPos})
	return st.text, st.pos, true
}

// Redo returns the most recently undone state, pushing the current one
// back onto undo.
func (h *UndoHistory) Redo(curText string, curPos Position) (string, Position, bool) {
	if len(h.redo) == 0 {
		return "", Position{}, false
	}
	st := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, undoState{text: curText, pos: curPos})
	return st.text, st.pos, true
}
