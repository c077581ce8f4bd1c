package completion

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pheller/sqlpilot/internal/schema"
)

// Kind classifies a completion candidate.
type Kind int

const (
	KindKeyword Kind = iota
	KindFunction
	KindTable
	KindView
	KindColumn
	KindProcedure
)

func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindFunction:
		return "function"
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindColumn:
		return "column"
	case KindProcedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// Candidate is one completion suggestion.
type Candidate struct {
	Label  string
	Kind   Kind
	Detail string
}

// Span is the region of the buffer the accepted candidate replaces.
// Columns are rune offsets within the row; EndCol is exclusive.
type Span struct {
	Row      int
	StartCol int
	EndCol   int
}

// Result holds ranked candidates together with the replace span and the
// buffer version they were computed against. Acceptance must re-verify
// both against the live buffer before editing.
type Result struct {
	Candidates []Candidate
	Span       Span
	Version    uint64
}

const maxCandidates = 50

// Engine produces SQL completion candidates from a schema snapshot and
// dialect keyword lists. All methods are safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	tables     map[string]tableEntry // lowercased name and schema.name keys
	names      []Candidate
	procedures []Candidate
	keywords   []string
	functions  []string
}

type tableEntry struct {
	name    string
	columns []schema.Column
}

// NewEngine creates an engine with keyword and function lists for the
// given dialect. The schema snapshot starts empty, so only static
// keywords match until UpdateSchema is called.
func NewEngine(dialect string) *Engine {
	return &Engine{
		tables:    make(map[string]tableEntry),
		keywords:  KeywordsForDialect(dialect),
		functions: FunctionsForDialect(dialect),
	}
}

// UpdateSchema replaces the engine's schema snapshot.
func (e *Engine) UpdateSchema(databases []schema.Database) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tables = make(map[string]tableEntry)
	e.names = nil
	e.procedures = nil

	for _, db := range databases {
		for _, s := range db.Schemas {
			for _, t := range s.Tables {
				entry := tableEntry{name: t.Name, columns: t.Columns}
				e.tables[strings.ToLower(t.Name)] = entry
				e.tables[strings.ToLower(s.Name+"."+t.Name)] = entry
				e.names = append(e.names, Candidate{Label: t.Name, Kind: KindTable, Detail: s.Name})
			}
			for _, v := range s.Views {
				entry := tableEntry{name: v.Name, columns: v.Columns}
				e.tables[strings.ToLower(v.Name)] = entry
				e.tables[strings.ToLower(s.Name+"."+v.Name)] = entry
				e.names = append(e.names, Candidate{Label: v.Name, Kind: KindView, Detail: s.Name})
			}
			for _, p := range s.Procedures {
				e.procedures = append(e.procedures, Candidate{Label: p.Name, Kind: KindProcedure, Detail: s.Name})
			}
		}
	}
}

// Complete computes candidates for the cursor at (row, col) in lines.
// Context is scoped to the statement containing the cursor, where
// statements are separated by semicolons. The version is carried into
// the result unchanged so acceptance can detect stale candidates.
func (e *Engine) Complete(lines []string, row, col int, version uint64) Result {
	if len(lines) == 0 {
		lines = []string{""}
	}
	if row < 0 {
		row = 0
	}
	if row >= len(lines) {
		row = len(lines) - 1
	}
	cur := []rune(lines[row])
	if col < 0 {
		col = 0
	}
	if col > len(cur) {
		col = len(cur)
	}

	empty := Result{Span: Span{Row: row, StartCol: col, EndCol: col}, Version: version}

	full := []rune(strings.Join(lines, "\n"))
	offset := col
	for i := 0; i < row; i++ {
		offset += len([]rune(lines[i])) + 1
	}

	start, end := statementBounds(full, offset)
	stmtBefore := string(full[start:offset])
	stmtAll := string(full[start:end])

	if insideString(stmtBefore) {
		return empty
	}

	prefix, qualifier := currentToken(cur, col)
	span := Span{Row: row, StartCol: col - len([]rune(prefix)), EndCol: col}

	if qualifier != "" {
		refs := extractTableRefs(stmtAll)
		cands := e.columnsFor(resolveQualifier(qualifier, refs))
		return Result{Candidates: rank(prefix, cands), Span: span, Version: version}
	}

	if prefix == "" {
		return empty
	}

	ctxText := strings.TrimSuffix(stmtBefore, prefix)
	var cands []Candidate
	switch detectContext(ctxText) {
	case contextTable:
		cands = e.tableCandidates()
	case contextProcedure:
		cands = e.procedureCandidates()
	case contextColumn:
		refs := extractTableRefs(stmtAll)
		for _, ref := range refs {
			cands = append(cands, e.columnsFor(ref.name)...)
		}
		cands = append(cands, e.tableCandidates()...)
		cands = append(cands, e.functionCandidates()...)
	default:
		cands = append(cands, e.keywordCandidates()...)
		cands = append(cands, e.functionCandidates()...)
		cands = append(cands, e.tableCandidates()...)
	}

	return Result{Candidates: rank(prefix, cands), Span: span, Version: version}
}

// statementBounds returns the rune offsets delimiting the semicolon
// separated statement containing offset.
func statementBounds(full []rune, offset int) (int, int) {
	start := 0
	for i := 0; i < offset && i < len(full); i++ {
		if full[i] == ';' {
			start = i + 1
		}
	}
	end := len(full)
	for i := offset; i < len(full); i++ {
		if full[i] == ';' {
			end = i
			break
		}
	}
	return start, end
}

// currentToken scans backward from col to find the partial identifier
// being typed and, if it is preceded by a dot, the qualifying name.
func currentToken(line []rune, col int) (prefix, qualifier string) {
	i := col
	for i > 0 && isIdentRune(line[i-1]) {
		i--
	}
	prefix = string(line[i:col])

	if i > 0 && line[i-1] == '.' {
		j := i - 1
		for j > 0 && isIdentRune(line[j-1]) {
			j--
		}
		qualifier = string(line[j : i-1])
	}
	return prefix, qualifier
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// insideString reports whether the cursor sits inside an unterminated
// single or double quoted literal. Doubled quotes escape themselves.
func insideString(before string) bool {
	var quote rune
	runes := []rune(before)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case r == quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			quote = 0
		}
	}
	return quote != 0
}

type contextKind int

const (
	contextGeneral contextKind = iota
	contextTable
	contextColumn
	contextProcedure
)

var tableContextWords = map[string]bool{
	"FROM": true, "JOIN": true, "INTO": true, "UPDATE": true, "TABLE": true,
}

var columnContextWords = map[string]bool{
	"SELECT": true, "WHERE": true, "SET": true, "ON": true, "AND": true,
	"OR": true, "HAVING": true, "BY": true, "DISTINCT": true,
	"WHEN": true, "THEN": true, "ELSE": true,
}

var procContextWords = map[string]bool{
	"EXEC": true, "EXECUTE": true, "CALL": true,
}

// detectContext classifies the text preceding the partial token by its
// last significant word. A trailing comma continues the clause it
// belongs to, so the scan walks backward to the governing keyword.
func detectContext(ctxText string) contextKind {
	tokens := strings.Fields(ctxText)
	if len(tokens) == 0 {
		return contextGeneral
	}

	last := strings.ToUpper(tokens[len(tokens)-1])
	if kind, ok := classifyWord(last); ok {
		return kind
	}

	if strings.HasSuffix(last, ",") {
		for i := len(tokens) - 1; i >= 0; i-- {
			word := strings.ToUpper(strings.TrimRight(tokens[i], ","))
			if kind, ok := classifyWord(word); ok {
				return kind
			}
		}
	}

	return contextGeneral
}

func classifyWord(word string) (contextKind, bool) {
	switch {
	case tableContextWords[word]:
		return contextTable, true
	case columnContextWords[word]:
		return contextColumn, true
	case procContextWords[word]:
		return contextProcedure, true
	}
	return contextGeneral, false
}

type tableRef struct {
	name  string
	alias string
}

var tableRefRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|UPDATE|INTO)\s+([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)?)(?:\s+(?:AS\s+)?([A-Za-z_]\w*))?`)

// reservedAfterRef are words that follow a table reference and must not
// be mistaken for an alias.
var reservedAfterRef = map[string]bool{
	"WHERE": true, "SET": true, "ON": true, "JOIN": true, "LEFT": true,
	"RIGHT": true, "INNER": true, "OUTER": true, "FULL": true,
	"CROSS": true, "NATURAL": true, "GROUP": true, "ORDER": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "VALUES": true, "USING": true,
	"RETURNING": true, "AND": true, "OR": true, "NOT": true,
}

// extractTableRefs finds table references with optional aliases in the
// FROM, JOIN, UPDATE and INSERT INTO clauses of one statement. String
// literals are blanked out first so quoted text cannot contribute refs.
func extractTableRefs(stmt string) []tableRef {
	stmt = blankStrings(stmt)

	var refs []tableRef
	seen := map[string]bool{}
	for _, m := range tableRefRe.FindAllStringSubmatch(stmt, -1) {
		ref := tableRef{name: m[1]}
		if m[2] != "" && !reservedAfterRef[strings.ToUpper(m[2])] {
			ref.alias = m[2]
		}
		key := strings.ToLower(ref.name + "|" + ref.alias)
		if !seen[key] {
			seen[key] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// blankStrings replaces quoted literal contents with spaces, keeping
// offsets stable.
func blankStrings(s string) string {
	runes := []rune(s)
	var quote rune
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			runes[i] = ' '
		}
	}
	return string(runes)
}

// resolveQualifier maps a dot qualifier to a table name, preferring
// aliases declared in the statement over direct table names.
func resolveQualifier(qualifier string, refs []tableRef) string {
	lower := strings.ToLower(qualifier)
	for _, ref := range refs {
		if strings.ToLower(ref.alias) == lower {
			return ref.name
		}
	}
	for _, ref := range refs {
		if strings.ToLower(ref.name) == lower {
			return ref.name
		}
	}
	return qualifier
}

// columnsFor looks up columns for a table or view name, trying the name
// as given and its last path segment.
func (e *Engine) columnsFor(name string) []Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.tables[strings.ToLower(name)]
	if !ok {
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			entry, ok = e.tables[strings.ToLower(name[idx+1:])]
		}
	}
	if !ok {
		return nil
	}

	items := make([]Candidate, 0, len(entry.columns))
	for _, c := range entry.columns {
		detail := c.Type
		if c.IsPK {
			detail += " PK"
		}
		items = append(items, Candidate{
			Label:  c.Name,
			Kind:   KindColumn,
			Detail: entry.name + " " + detail,
		})
	}
	return items
}

func (e *Engine) tableCandidates() []Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Candidate, len(e.names))
	copy(out, e.names)
	return out
}

func (e *Engine) procedureCandidates() []Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Candidate, len(e.procedures))
	copy(out, e.procedures)
	return out
}

func (e *Engine) keywordCandidates() []Candidate {
	items := make([]Candidate, 0, len(e.keywords))
	for _, kw := range e.keywords {
		items = append(items, Candidate{Label: kw, Kind: KindKeyword})
	}
	return items
}

func (e *Engine) functionCandidates() []Candidate {
	items := make([]Candidate, 0, len(e.functions))
	for _, fn := range e.functions {
		items = append(items, Candidate{Label: fn, Kind: KindFunction})
	}
	return items
}

// rank filters candidates by case-insensitive prefix, removes
// case-insensitive duplicates, and orders exact matches first, then
// shorter labels, then alphabetically. The list is capped at
// maxCandidates.
func rank(prefix string, items []Candidate) []Candidate {
	fold := strings.ToLower(prefix)
	seen := map[string]bool{}
	var out []Candidate
	for _, it := range items {
		lower := strings.ToLower(it.Label)
		if fold != "" && !strings.HasPrefix(lower, fold) {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		li := strings.ToLower(out[i].Label)
		lj := strings.ToLower(out[j].Label)
		exactI, exactJ := li == fold, lj == fold
		if exactI != exactJ {
			return exactI
		}
		if len(li) != len(lj) {
			return len(li) < len(lj)
		}
		return li < lj
	})

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}
