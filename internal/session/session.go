package session

import (
	"context"
	"os"
	"sync"
	"unicode"

	"github.com/pheller/sqlpilot/internal/completion"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/editor"
	"github.com/pheller/sqlpilot/internal/schema"
)

// Update reports what one key press changed. The UI reacts to the set
// flags: scheduling a completion computation on CompletionTrigger,
// hiding the popup on CompletionDismiss, dispatching Command when a
// colon command was submitted.
type Update struct {
	BufferChanged     bool
	ModeChanged       bool
	CompletionTrigger bool
	CompletionDismiss bool
	Command           string
}

// CompletionRequest is an immutable snapshot of the editor taken on the
// UI goroutine. Complete can then run on any goroutine; the version
// stamps the result so stale answers are dropped.
type CompletionRequest struct {
	Lines   []string
	Row     int
	Col     int
	Version uint64
}

// Session composes the modal editor, the connection manager, and the
// completion engine around a single query buffer. Editor methods must
// be called from one goroutine (the UI loop); completion results may
// arrive from others and are guarded separately.
type Session struct {
	ed  *editor.Editor
	mgr *conn.Manager

	compMu  sync.Mutex
	comp    *completion.Engine
	last    completion.Result
	hasComp bool

	savedVersion uint64
	file         string
}

// New creates a session with an empty buffer. Until a connection is
// established the completion engine serves static keywords only.
func New(mgr *conn.Manager) *Session {
	return &Session{
		ed:   editor.New(),
		mgr:  mgr,
		comp: completion.NewEngine(""),
	}
}

func (s *Session) Editor() *editor.Editor { return s.ed }
func (s *Session) Manager() *conn.Manager { return s.mgr }

// File returns the path the buffer was last saved to or loaded from.
func (s *Session) File() string { return s.file }

// Dirty reports whether the buffer changed since the last save or load.
func (s *Session) Dirty() bool { return s.ed.Version() != s.savedVersion }

// HandleKey feeds one key to the editor and reports what changed.
func (s *Session) HandleKey(key string) Update {
	prevMode := s.ed.Mode()
	prevVersion := s.ed.Version()

	act := s.ed.HandleKey(key)

	up := Update{
		BufferChanged: s.ed.Version() != prevVersion,
		ModeChanged:   s.ed.Mode() != prevMode,
	}
	switch act.Type {
	case editor.ActCompletionTrigger:
		up.CompletionTrigger = true
	case editor.ActCompletionDismiss:
		up.CompletionDismiss = true
		s.DismissCompletions()
	case editor.ActCommand:
		up.Command = act.Command
	}
	return up
}

// CompletionRequest snapshots the buffer for a background completion.
func (s *Session) CompletionRequest() CompletionRequest {
	cur := s.ed.Cursor()
	return CompletionRequest{
		Lines:   s.ed.Lines(),
		Row:     cur.Row,
		Col:     cur.Col,
		Version: s.ed.Version(),
	}
}

// Complete computes candidates for a snapshot. Safe on any goroutine.
func (s *Session) Complete(req CompletionRequest) completion.Result {
	s.compMu.Lock()
	engine := s.comp
	s.compMu.Unlock()
	return engine.Complete(req.Lines, req.Row, req.Col, req.Version)
}

// SetCompletions installs a computed result unless the buffer has moved
// on. Last request wins: a result stamped with a stale version is
// dropped and the previous popup state is kept.
func (s *Session) SetCompletions(res completion.Result) bool {
	if res.Version != s.ed.Version() {
		return false
	}
	s.compMu.Lock()
	defer s.compMu.Unlock()
	s.last = res
	s.hasComp = len(res.Candidates) > 0
	return true
}

// Completions returns the current candidate set, if any is showing.
func (s *Session) Completions() (completion.Result, bool) {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	return s.last, s.hasComp
}

// DismissCompletions hides the candidate popup.
func (s *Session) DismissCompletions() {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	s.hasComp = false
}

// AcceptCompletion replaces the candidate span with label. The span is
// re-verified against the live buffer: when the span already holds the
// label the accept is idempotent and only moves the cursor; when the
// buffer has changed under the candidates the accept is a silent no-op.
func (s *Session) AcceptCompletion(label string) bool {
	s.compMu.Lock()
	res, ok := s.last, s.hasComp
	s.compMu.Unlock()
	if !ok || label == "" {
		return false
	}

	span := res.Span
	lines := s.ed.Lines()
	if span.Row < 0 || span.Row >= len(lines) {
		return false
	}
	line := []rune(lines[span.Row])
	if span.StartCol < 0 || span.StartCol > len(line) {
		return false
	}

	// Idempotent re-accept: the label is already in place.
	end := span.StartCol + len([]rune(label))
	if end <= len(line) && string(line[span.StartCol:end]) == label {
		if end == len(line) || !isIdentRune(line[end]) {
			s.ed.MoveCursorTo(span.Row, end)
			s.DismissCompletions()
			return true
		}
	}

	if s.ed.Version() != res.Version {
		return false
	}

	s.ed.ReplaceRange(span.Row, span.StartCol, span.EndCol, label)
	s.DismissCompletions()
	return true
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Connect establishes the connection and swaps in a completion engine
// for the driver's dialect. Blocks; run from a goroutine or tea.Cmd.
func (s *Session) Connect(ctx context.Context, driverName string, target driver.Target) error {
	if err := s.mgr.Connect(ctx, driverName, target); err != nil {
		return err
	}
	s.compMu.Lock()
	s.comp = completion.NewEngine(driverName)
	s.hasComp = false
	s.compMu.Unlock()
	return nil
}

// RunQuery executes the buffer. USE statements switch the database
// scope instead of going to the driver as a query.
func (s *Session) RunQuery(ctx context.Context) (*conn.Execution, error) {
	query := s.ed.Text()

	if db, ok := driver.ParseUse(query); ok {
		if err := s.mgr.UseDatabase(ctx, db); err != nil {
			return nil, err
		}
		return &conn.Execution{
			Query:  query,
			Result: &driver.QueryResult{Message: "switched to database " + db},
		}, nil
	}

	return s.mgr.Execute(ctx, query)
}

// LoadCompletionSchema walks the schema cache for the connected
// database and pushes a snapshot into the completion engine. Fetches go
// through the cache, so the explorer and completion share one source
// and per-node dedup applies. Blocks; run from a goroutine or tea.Cmd.
func (s *Session) LoadCompletionSchema(ctx context.Context) error {
	cache := s.mgr.SchemaCache()
	if cache == nil {
		return driver.ErrNotConnected
	}
	current := s.mgr.DatabaseName()

	roots, err := cache.Children(ctx, "")
	if err != nil {
		return err
	}

	var dbs []schema.Database
	for _, dbNode := range roots {
		if current != "" && dbNode.Name != current {
			continue
		}
		db := schema.Database{Name: dbNode.Name}
		schemas, err := cache.Children(ctx, dbNode.Path)
		if err != nil {
			continue
		}
		for _, scNode := range schemas {
			sch := schema.Schema{Name: scNode.Name}
			kids, err := cache.Children(ctx, scNode.Path)
			if err != nil {
				continue
			}
			for _, k := range kids {
				switch k.Kind {
				case schema.KindTable:
					sch.Tables = append(sch.Tables, schema.Table{
						Name:    k.Name,
						Columns: columnSnapshot(ctx, cache, k),
					})
				case schema.KindView:
					sch.Views = append(sch.Views, schema.View{
						Name:    k.Name,
						Columns: columnSnapshot(ctx, cache, k),
					})
				case schema.KindProcedure:
					sch.Procedures = append(sch.Procedures, schema.Procedure{Name: k.Name})
				}
			}
			db.Schemas = append(db.Schemas, sch)
		}
		dbs = append(dbs, db)
	}

	s.compMu.Lock()
	s.comp.UpdateSchema(dbs)
	s.compMu.Unlock()
	return nil
}

func columnSnapshot(ctx context.Context, cache *schema.Cache, table schema.Node) []schema.Column {
	kids, err := cache.Children(ctx, table.Path)
	if err != nil {
		return nil
	}
	var cols []schema.Column
	for _, k := range kids {
		if k.Kind == schema.KindColumn {
			cols = append(cols, schema.Column{Name: k.Name, Type: k.Detail})
		}
	}
	return cols
}

// SaveBuffer writes the buffer to path, or to the remembered file when
// path is empty.
func (s *Session) SaveBuffer(path string) error {
	if path == "" {
		path = s.file
	}
	if path == "" {
		return os.ErrInvalid
	}
	if err := os.WriteFile(path, []byte(s.ed.Text()), 0o644); err != nil {
		return err
	}
	s.file = path
	s.savedVersion = s.ed.Version()
	return nil
}

// LoadBuffer replaces the buffer with the contents of path.
func (s *Session) LoadBuffer(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.ed.SetText(string(data))
	s.file = path
	s.savedVersion = s.ed.Version()
	s.DismissCompletions()
	return nil
}

// Clear empties the buffer. The previous content stays undoable.
func (s *Session) Clear() {
	s.ed.SetText("")
	s.savedVersion = s.ed.Version()
	s.DismissCompletions()
}
