package editor

import "testing"

func TestMotionBasics(t *testing.T) {
	lines := []string{"SELECT id", "FROM users", ""}

	tests := []struct {
		name   string
		motion string
		row    int
		col    int
		arg    rune
		want   Position
	}{
		{"h moves left", "h", 0, 3, 0, Position{0, 2}},
		{"h clamps at 0", "h", 0, 0, 0, Position{0, 0}},
		{"l moves right", "l", 0, 3, 0, Position{0, 4}},
		{"l clamps at line end", "l", 0, 9, 0, Position{0, 9}},
		{"j moves down", "j", 0, 4, 0, Position{1, 4}},
		{"j clamps at last line", "j", 2, 0, 0, Position{2, 0}},
		{"j clamps col to shorter line", "j", 1, 8, 0, Position{2, 0}},
		{"k moves up", "k", 1, 2, 0, Position{0, 2}},
		{"k clamps at first line", "k", 0, 2, 0, Position{0, 2}},
		{"0 to line start", "0", 0, 5, 0, Position{0, 0}},
		{"$ to line end", "$", 0, 2, 0, Position{0, 9}},
		{"G to last line", "G", 0, 5, 0, Position{2, 0}},
		{"gg to first line", "gg", 2, 0, 0, Position{0, 0}},
		{"w to next word", "w", 0, 0, 0, Position{0, 7}},
		{"w crosses line end", "w", 0, 7, 0, Position{1, 0}},
		{"b to previous word start", "b", 0, 8, 0, Position{0, 7}},
		{"b crosses line start", "b", 1, 0, 0, Position{0, 7}},
		{"e to word end", "e", 0, 0, 0, Position{0, 5}},
		{"f finds char", "f", 0, 0, 'i', Position{0, 7}},
		{"t stops before char", "t", 0, 0, 'i', Position{0, 6}},
		{"F finds char back", "F", 0, 8, 'S', Position{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Motions[tt.motion](lines, tt.row, tt.col, tt.arg)
			if res.Pos != tt.want {
				t.Errorf("%s from (%d,%d) = %v, want %v", tt.motion, tt.row, tt.col, res.Pos, tt.want)
			}
		})
	}
}

// Any motion from any position, including far out of range, must return
// an in-range position and never panic.
func TestMotionClampingNeverErrors(t *testing.T) {
	texts := [][]string{
		{""},
		{"x"},
		{"SELECT * FROM t", "", "WHERE a = 1"},
	}
	positions := []Position{
		{0, 0}, {-5, -5}, {0, 999}, {999, 0}, {999, 999}, {1, 3}, {-1, 2},
	}

	for _, lines := range texts {
		for name, motion := range Motions {
			for _, pos := range positions {
				res := motion(lines, pos.Row, pos.Col, 'x')
				if res.Pos.Row < 0 || res.Pos.Row >= len(lines) {
					t.Fatalf("%s from %v on %q: row %d out of range", name, pos, lines, res.Pos.Row)
				}
				line := []rune(lines[res.Pos.Row])
				if res.Pos.Col < 0 || res.Pos.Col > len(line) {
					t.Fatalf("%s from %v on %q: col %d out of range", name, pos, lines, res.Pos.Col)
				}
			}
		}
	}
}

func TestMotionFindCharMiss(t *testing.T) {
	lines := []string{"SELECT"}
	res := Motions["f"](lines, 0, 0, 'z')
	if res.Moved {
		t.Error("f with absent char should not move")
	}
	if res.Pos != (Position{0, 0}) {
		t.Errorf("pos = %v, want origin", res.Pos)
	}
}

func TestMotionSpans(t *testing.T) {
	lines := []string{"alpha beta", "gamma"}

	// w span is exclusive charwise.
	res := Motions["w"](lines, 0, 0, 0)
	if res.Span.Kind != Charwise || res.Span.Inclusive {
		t.Errorf("w span = %+v, want exclusive charwise", res.Span)
	}
	if res.Span.Start != (Position{0, 0}) || res.Span.End != (Position{0, 6}) {
		t.Errorf("w span = %+v", res.Span)
	}

	// e span is inclusive charwise.
	res = Motions["e"](lines, 0, 0, 0)
	if !res.Span.Inclusive {
		t.Errorf("e span should be inclusive, got %+v", res.Span)
	}

	// j span is linewise over both rows.
	res = Motions["j"](lines, 0, 3, 0)
	if res.Span.Kind != Linewise {
		t.Errorf("j span kind = %v, want Linewise", res.Span.Kind)
	}
	if res.Span.Start.Row != 0 || res.Span.End.Row != 1 {
		t.Errorf("j span rows = %d..%d", res.Span.Start.Row, res.Span.End.Row)
	}

	// _ covers the current line.
	res = Motions["_"](lines, 1, 2, 0)
	if res.Span.Kind != Linewise || res.Span.Start.Row != 1 || res.Span.End.Row != 1 {
		t.Errorf("_ span = %+v", res.Span)
	}
}

func TestMotionWordPunctuation(t *testing.T) {
	lines := []string{"a.b = c"}

	// From "a": w skips the word and the punctuation run, landing on b.
	res := Motions["w"](lines, 0, 0, 0)
	if res.Pos != (Position{0, 2}) {
		t.Errorf("w from a = %v, want (0,2)", res.Pos)
	}
	// From ".": same landing spot.
	res = Motions["w"](lines, 0, 1, 0)
	if res.Pos != (Position{0, 2}) {
		t.Errorf("w from dot = %v, want (0,2)", res.Pos)
	}
	// W treats a.b as one WORD.
	res = Motions["W"](lines, 0, 0, 0)
	if res.Pos != (Position{0, 4}) {
		t.Errorf("W = %v, want (0,4)", res.Pos)
	}
}
