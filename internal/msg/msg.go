// Package msg defines the bubbletea messages exchanged between the app
// model and its panes. Messages produced by background commands carry
// the connection generation or buffer version they were computed
// against so stale results can be dropped on arrival.
package msg

import (
	"time"

	"github.com/pheller/sqlpilot/internal/completion"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/history"
	"github.com/pheller/sqlpilot/internal/schema"
)

// Pane focus targets.
type Pane int

const (
	PaneExplorer Pane = iota
	PaneEditor
	PaneResults
)

// FocusMsg requests a pane focus change.
type FocusMsg struct {
	Pane Pane
}

// ConnectedMsg is sent when a database connection is established.
type ConnectedMsg struct {
	Driver   string
	Display  string // credential-free connection description
	Database string
	Gen      uint64
}

// ConnectErrMsg is sent when a connection attempt fails.
type ConnectErrMsg struct {
	Err error
}

// DisconnectMsg is sent when the connection is closed.
type DisconnectMsg struct{}

// ExplorerNodesMsg delivers lazily fetched children for one tree node.
type ExplorerNodesMsg struct {
	Path  string
	Nodes []schema.Node
	Gen   uint64
}

// ExplorerErrMsg is sent when a tree node fetch fails.
type ExplorerErrMsg struct {
	Path string
	Err  error
	Gen  uint64
}

// SchemaLoadedMsg is sent when the completion snapshot has been
// refreshed from the schema cache.
type SchemaLoadedMsg struct {
	Gen uint64
}

// SchemaErrMsg is sent when the completion snapshot load fails.
type SchemaErrMsg struct {
	Err error
	Gen uint64
}

// CompletionMsg delivers a computed candidate set. The result carries
// the buffer version it was computed against.
type CompletionMsg struct {
	Result completion.Result
}

// QueryStartedMsg is sent when a query begins executing.
type QueryStartedMsg struct {
	Query string
	Gen   uint64
}

// QueryDoneMsg is sent when query execution completes, with either a
// result or an error recorded on the execution.
type QueryDoneMsg struct {
	Exec *conn.Execution
	Err  error
	Gen  uint64
}

// QueryCancelledMsg is sent after a cooperative cancel.
type QueryCancelledMsg struct{}

// StatusMsg updates the status bar text.
type StatusMsg struct {
	Text     string
	IsError  bool
	Duration time.Duration
}

// ClearStatusMsg expires a transient status line.
type ClearStatusMsg struct{}

// ExportRequestMsg requests exporting the current result set.
type ExportRequestMsg struct {
	Format string // csv | json
	Path   string
}

// ExportCompleteMsg is sent when export finishes.
type ExportCompleteMsg struct {
	Path     string
	RowCount int64
}

// ExportErrMsg is sent when export fails.
type ExportErrMsg struct {
	Err error
}

// InsertTextMsg inserts text into the editor buffer.
type InsertTextMsg struct {
	Text string
}

// RefreshSchemaMsg triggers a schema cache refresh.
type RefreshSchemaMsg struct{}

// OpenHistoryMsg opens the query history browser.
type OpenHistoryMsg struct{}

// HistoryLoadedMsg delivers history entries for the browser.
type HistoryLoadedMsg struct {
	Entries []history.Entry
}

// HistoryErrMsg is sent when loading history fails.
type HistoryErrMsg struct {
	Err error
}
