package editor

import "unicode"

// MotionKind distinguishes character spans from whole-line spans.
type MotionKind int

const (
	Charwise MotionKind = iota
	Linewise
)

// Range is the text span a motion covers when paired with an operator.
// Inclusive charwise ranges take the end rune as well.
type Range struct {
	Start     Position
	End       Position
	Kind      MotionKind
	Inclusive bool
}

// MotionResult is a motion's outcome: the new cursor position plus the
// span an operator over the same motion would act on. Moved is false
// when the motion found nothing (f with an absent char), in which case
// operators do nothing.
type MotionResult struct {
	Pos   Position
	Span  Range
	Moved bool
}

// MotionFunc computes a motion over the buffer lines. Motions are pure:
// out-of-range inputs clamp, they never error. arg carries the target
// rune for f/F/t/T and is ignored elsewhere.
type MotionFunc func(lines []string, row, col int, arg rune) MotionResult

// Motions maps motion keys to their implementations. "gg" is the only
// multi-key entry; "_" is the synthetic current-line motion behind
// dd/yy/cc.
var Motions = map[string]MotionFunc{
	"h":  motionLeft,
	"j":  motionDown,
	"k":  motionUp,
	"l":  motionRight,
	"w":  motionWord,
	"W":  motionWORD,
	"b":  motionWordBack,
	"B":  motionWORDBack,
	"e":  motionWordEnd,
	"E":  motionWORDEnd,
	"0":  motionLineStart,
	"$":  motionLineEnd,
	"G":  motionLastLine,
	"gg": motionFirstLine,
	"_":  motionCurrentLine,
	"f":  motionFindChar,
	"F":  motionFindCharBack,
	"t":  motionTillChar,
	"T":  motionTillCharBack,
}

// CharMotions are the motions that consume a following character argument.
var CharMotions = map[string]bool{"f": true, "F": true, "t": true, "T": true}

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func isWORDChar(ch rune) bool {
	return !unicode.IsSpace(ch)
}

// normalize clamps the cursor into the text and returns the rune lines.
func normalize(lines []string, row, col int) ([][]rune, int, int) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	runes := make([][]rune, len(lines))
	for i, l := range lines {
		runes[i] = []rune(l)
	}
	if row < 0 {
		row = 0
	}
	if row > len(runes)-1 {
		row = len(runes) - 1
	}
	if col < 0 {
		col = 0
	}
	if col > len(runes[row]) {
		col = len(runes[row])
	}
	return runes, row, col
}

func motionLeft(lines []string, row, col int, _ rune) MotionResult {
	_, row, col = normalize(lines, row, col)
	newCol := col - 1
	if newCol < 0 {
		newCol = 0
	}
	return MotionResult{
		Pos:   Position{row, newCol},
		Span:  Range{Position{row, newCol}, Position{row, col}, Charwise, false},
		Moved: true,
	}
}

func motionRight(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	newCol := col + 1
	if newCol > len(rs[row]) {
		newCol = len(rs[row])
	}
	return MotionResult{
		Pos:   Position{row, newCol},
		Span:  Range{Position{row, col}, Position{row, newCol}, Charwise, false},
		Moved: true,
	}
}

func motionDown(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	newRow := row + 1
	if newRow > len(rs)-1 {
		newRow = len(rs) - 1
	}
	newCol := col
	if newCol > len(rs[newRow]) {
		newCol = len(rs[newRow])
	}
	return MotionResult{
		Pos:   Position{newRow, newCol},
		Span:  Range{Position{row, 0}, Position{newRow, len(rs[newRow])}, Linewise, false},
		Moved: true,
	}
}

func motionUp(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	newRow := row - 1
	if newRow < 0 {
		newRow = 0
	}
	newCol := col
	if newCol > len(rs[newRow]) {
		newCol = len(rs[newRow])
	}
	return MotionResult{
		Pos:   Position{newRow, newCol},
		Span:  Range{Position{newRow, 0}, Position{row, len(rs[row])}, Linewise, false},
		Moved: true,
	}
}

func motionWord(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	start := Position{row, col}
	line := rs[row]

	for col < len(line) && isWordChar(line[col]) {
		col++
	}
	for col < len(line) && !isWordChar(line[col]) && !unicode.IsSpace(line[col]) {
		col++
	}
	for col < len(line) && unicode.IsSpace(line[col]) {
		col++
	}
	if col >= len(line) && row < len(rs)-1 {
		row++
		col = 0
		line = rs[row]
		for col < len(line) && unicode.IsSpace(line[col]) {
			col++
		}
	}
	end := Position{row, col}
	return MotionResult{Pos: end, Span: Range{start, end, Charwise, false}, Moved: true}
}

func motionWORD(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	start := Position{row, col}
	line := rs[row]

	for col < len(line) && isWORDChar(line[col]) {
		col++
	}
	for col < len(line) && unicode.IsSpace(line[col]) {
		col++
	}
	if col >= len(line) && row < len(rs)-1 {
		row++
		col = 0
		line = rs[row]
		for col < len(line) && unicode.IsSpace(line[col]) {
			col++
		}
	}
	end := Position{row, col}
	return MotionResult{Pos: end, Span: Range{start, end, Charwise, false}, Moved: true}
}

func motionWordBack(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	end := Position{row, col}
	line := rs[row]

	if col == 0 && row > 0 {
		row--
		line = rs[row]
		col = len(line)
	}
	for col > 0 && unicode.IsSpace(line[col-1]) {
		col--
	}
	if col > 0 {
		if isWordChar(line[col-1]) {
			for col > 0 && isWordChar(line[col-1]) {
				col--
			}
		} else {
			for col > 0 && !isWordChar(line[col-1]) && !unicode.IsSpace(line[col-1]) {
				col--
			}
		}
	}
	start := Position{row, col}
	return MotionResult{Pos: start, Span: Range{start, end, Charwise, false}, Moved: true}
}

func motionWORDBack(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	end := Position{row, col}
	line := rs[row]

	if col == 0 && row > 0 {
		row--
		line = rs[row]
		col = len(line)
	}
	for col > 0 && unicode.IsSpace(line[col-1]) {
		col--
	}
	for col > 0 && isWORDChar(line[col-1]) {
		col--
	}
	start := Position{row, col}
	return MotionResult{Pos: start, Span: Range{start, end, Charwise, false}, Moved: true}
}

func motionWordEnd(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	start := Position{row, col}
	line := rs[row]

	if col < len(line) {
		col++
	}
	for col < len(line) && unicode.IsSpace(line[col]) {
		col++
	}
	if col >= len(line) && row < len(rs)-1 {
		row++
		col = 0
		line = rs[row]
		for col < len(line) && unicode.IsSpace(line[col]) {
			col++
		}
	}
	if col < len(line) {
		if isWordChar(line[col]) {
			for col < len(line)-1 && isWordChar(line[col+1]) {
				col++
			}
		} else {
			for col < len(line)-1 && !isWordChar(line[col+1]) && !unicode.IsSpace(line[col+1]) {
				col++
			}
		}
	}
	end := Position{row, col}
	return MotionResult{Pos: end, Span: Range{start, end, Charwise, true}, Moved: true}
}

func motionWORDEnd(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	start := Position{row, col}
	line := rs[row]

	if col < len(line) {
		col++
	}
	for col < len(line) && unicode.IsSpace(line[col]) {
		col++
	}
	if col >= len(line) && row < len(rs)-1 {
		row++
		col = 0
		line = rs[row]
		for col < len(line) && unicode.IsSpace(line[col]) {
			col++
		}
	}
	for col < len(line)-1 && isWORDChar(line[col+1]) {
		col++
	}
	end := Position{row, col}
	return MotionResult{Pos: end, Span: Range{start, end, Charwise, true}, Moved: true}
}

func motionLineStart(lines []string, row, col int, _ rune) MotionResult {
	_, row, col = normalize(lines, row, col)
	return MotionResult{
		Pos:   Position{row, 0},
		Span:  Range{Position{row, 0}, Position{row, col}, Charwise, false},
		Moved: true,
	}
}

func motionLineEnd(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	endCol := len(rs[row])
	return MotionResult{
		Pos:   Position{row, endCol},
		Span:  Range{Position{row, col}, Position{row, endCol}, Charwise, true},
		Moved: true,
	}
}

func motionLastLine(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	last := len(rs) - 1
	return MotionResult{
		Pos:   Position{last, 0},
		Span:  Range{Position{row, 0}, Position{last, len(rs[last])}, Linewise, false},
		Moved: true,
	}
}

func motionFirstLine(lines []string, row, col int, _ rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	return MotionResult{
		Pos:   Position{0, 0},
		Span:  Range{Position{0, 0}, Position{row, len(rs[row])}, Linewise, false},
		Moved: true,
	}
}

// motionCurrentLine spans the whole current line; dd/yy/cc use it.
func motionCurrentLine(lines []string, row, col int, _ rune) MotionResult {
	rs, row, _ := normalize(lines, row, col)
	return MotionResult{
		Pos:   Position{row, 0},
		Span:  Range{Position{row, 0}, Position{row, len(rs[row])}, Linewise, false},
		Moved: true,
	}
}

func motionFindChar(lines []string, row, col int, arg rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	start := Position{row, col}
	if arg == 0 {
		return MotionResult{Pos: start}
	}
	line := rs[row]
	for i := col + 1; i < len(line); i++ {
		if line[i] == arg {
			return MotionResult{
				Pos:   Position{row, i},
				Span:  Range{start, Position{row, i}, Charwise, true},
				Moved: true,
			}
		}
	}
	return MotionResult{Pos: start}
}

func motionFindCharBack(lines []string, row, col int, arg rune) MotionResult {
	rs, row, col := normalize(lines, row, col)
	end := Position{row, col}
	if arg == 0 {
		return MotionResult{Pos: end}
	}
	line := rs[row]
	for i := col - 1; i >= 0; i-- {
		if line[i] == arg {
			return MotionResult{
				Pos:   Position{row, i},
				Span:  Range{Position{row, i}, end, Charwise, true},
				Moved: true,
			}
		}
	}
	return MotionResult{Pos: end}
}

func motionTillChar(lines []string, row, col int, arg rune) MotionResult {
	_, row, col = normalize(lines, row, col)
	start := Position{row, col}
	res := motionFindChar(lines, row, col, arg)
	if res.Moved && res.Pos.Col > col {
		newCol := res.Pos.Col - 1
		return MotionResult{
			Pos:   Position{row, newCol},
			Span:  Range{start, Position{row, newCol}, Charwise, true},
			Moved: true,
		}
	}
	return MotionResult{Pos: start}
}

func motionTillCharBack(lines []string, row, col int, arg rune) MotionResult {
	_, row, col = normalize(lines, row, col)
	end := Position{row, col}
	res := motionFindCharBack(lines, row, col, arg)
	if res.Moved && res.Pos.Col < col {
		newCol := res.Pos.Col + 1
		return MotionResult{
			Pos:   Position{row, newCol},
			Span:  Range{Position{row, newCol}, end, Charwise, true},
			Moved: true,
		}
	}
	return MotionResult{Pos: end}
}
