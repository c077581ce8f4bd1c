package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pheller/sqlpilot/internal/audit"
	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/history"
	"github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/ui/results"
	"github.com/pheller/sqlpilot/internal/ui/sidebar"
)

// dispatchCommand executes a submitted colon command.
func (m *Model) dispatchCommand(command string) tea.Cmd {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "run", "r":
		return m.runQueryCmd()

	case "w", "write":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return m.saveBuffer(path)

	case "e", "edit", "open":
		if len(args) == 0 {
			return m.statusCmd("usage: :e <path>", true)
		}
		return m.loadBuffer(args[0])

	case "q", "quit":
		return m.requestQuit()

	case "q!", "quit!":
		m.quitting = true
		return tea.Quit

	case "wq":
		if err := m.sess.SaveBuffer(""); err != nil {
			return m.saveError(err)
		}
		m.quitting = true
		return tea.Quit

	case "clear":
		m.sess.Clear()
		m.edview.Sync()
		return nil

	case "use":
		if len(args) == 0 {
			return m.statusCmd("usage: :use <database>", true)
		}
		return m.useDatabaseCmd(args[0])

	case "refresh":
		return func() tea.Msg { return msg.RefreshSchemaMsg{} }

	case "connect":
		if len(args) > 0 {
			return m.InitialConnect(args[0])
		}
		m.connections.Show()
		return nil

	case "disconnect":
		return m.disconnect()

	case "export":
		if len(args) == 0 {
			return m.statusCmd("usage: :export csv|json [path]", true)
		}
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return m.exportCmd(args[0], path)

	case "history":
		m.historyView.Show()
		return nil

	case "help":
		m.showHelp = true
		return nil

	default:
		return m.statusCmd("unknown command: "+name, true)
	}
}

func (m Model) statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return msg.StatusMsg{Text: text, IsError: isError} }
}

// runQueryCmd starts executing the buffer as one background command,
// stamped with the connection generation.
func (m *Model) runQueryCmd() tea.Cmd {
	query := strings.TrimSpace(m.sess.Editor().Text())
	if query == "" {
		return m.statusCmd("nothing to run", true)
	}
	if m.executing {
		return m.statusCmd("a query is already running", true)
	}
	sess := m.sess
	gen := sess.Manager().Generation()
	return tea.Batch(
		func() tea.Msg { return msg.QueryStartedMsg{Query: query, Gen: gen} },
		func() tea.Msg {
			exec, err := sess.RunQuery(context.Background())
			return msg.QueryDoneMsg{Exec: exec, Err: err, Gen: gen}
		},
	)
}

// finishQuery settles a completed execution: results pane, status bar,
// history and audit records.
func (m *Model) finishQuery(done msg.QueryDoneMsg) []tea.Cmd {
	if done.Gen != m.sess.Manager().Generation() {
		return nil
	}
	m.executing = false
	m.resultsPane.SetLoading(false)

	if done.Err != nil {
		if errors.Is(done.Err, conn.ErrCancelled) {
			// The cancel path already settled the UI.
			return nil
		}
		m.resultsPane.SetError(done.Err)
		m.recordExecution(nil, done.Err)
		return []tea.Cmd{m.statusCmd(conn.Scrub(done.Err.Error()), true)}
	}

	exec := done.Exec
	if exec == nil {
		return nil
	}
	m.resultsPane.SetResult(exec.Result)
	m.recordExecution(exec, nil)

	var cmd tea.Cmd
	m.status, cmd = m.status.Update(done)
	return []tea.Cmd{cmd}
}

func (m *Model) recordExecution(exec *conn.Execution, execErr error) {
	mgr := m.sess.Manager()
	entry := history.Entry{
		Query:        m.lastQuery,
		Driver:       mgr.DriverName(),
		DatabaseName: mgr.DatabaseName(),
		ExecutedAt:   time.Now(),
		IsError:      execErr != nil,
	}
	if exec != nil {
		entry.ExecutionID = exec.ID
		entry.Query = exec.Query
		entry.ExecutedAt = exec.StartedAt
		entry.DurationMS = exec.FinishedAt.Sub(exec.StartedAt).Milliseconds()
		if exec.Result != nil {
			entry.RowCount = exec.Result.RowCount
		}
	}

	if m.hist != nil {
		m.hist.Add(entry)
	}
	m.aud.Record(audit.Entry{
		ExecutionID:  entry.ExecutionID,
		Query:        entry.Query,
		Driver:       entry.Driver,
		DatabaseName: entry.DatabaseName,
		DurationMS:   entry.DurationMS,
		RowCount:     entry.RowCount,
		IsError:      entry.IsError,
	})
}

// connectCmd establishes the connection in the background. The display
// string carries no credential material.
func (m Model) connectCmd(saved config.SavedConnection) tea.Cmd {
	sess := m.sess
	driverName := saved.Driver
	display := saved.DisplayString()
	target := saved.Target()
	return func() tea.Msg {
		if err := sess.Connect(context.Background(), driverName, target); err != nil {
			return msg.ConnectErrMsg{Err: err}
		}
		mgr := sess.Manager()
		return msg.ConnectedMsg{
			Driver:   mgr.DriverName(),
			Display:  display,
			Database: mgr.DatabaseName(),
			Gen:      mgr.Generation(),
		}
	}
}

func (m *Model) disconnect() tea.Cmd {
	if err := m.sess.Manager().Disconnect(); err != nil {
		return m.statusCmd("disconnect: "+conn.Scrub(err.Error()), true)
	}
	m.explorer = sidebar.New(m.th)
	m.resultsPane.Clear()
	m.updateLayout()
	return func() tea.Msg { return msg.DisconnectMsg{} }
}

// useDatabaseCmd switches the database scope and re-announces the
// connection so the explorer and completion snapshot reload.
func (m *Model) useDatabaseCmd(db string) tea.Cmd {
	sess := m.sess
	display := m.display
	return func() tea.Msg {
		mgr := sess.Manager()
		if err := mgr.UseDatabase(context.Background(), db); err != nil {
			return msg.StatusMsg{Text: conn.Scrub(err.Error()), IsError: true}
		}
		return msg.ConnectedMsg{
			Driver:   mgr.DriverName(),
			Display:  display,
			Database: mgr.DatabaseName(),
			Gen:      mgr.Generation(),
		}
	}
}

// probeCmd runs the lightweight post-connect database-list check so a
// broken connection surfaces before the first query does.
func (m Model) probeCmd() tea.Cmd {
	mgr := m.sess.Manager()
	gen := mgr.Generation()
	return func() tea.Msg {
		if _, err := mgr.Probe(context.Background()); err != nil {
			if gen != mgr.Generation() {
				return nil
			}
			return msg.StatusMsg{Text: "probe failed: " + conn.Scrub(err.Error()), IsError: true}
		}
		return nil
	}
}

// loadSchemaCmd refreshes the completion snapshot from the schema cache.
func (m Model) loadSchemaCmd() tea.Cmd {
	sess := m.sess
	gen := sess.Manager().Generation()
	return func() tea.Msg {
		if err := sess.LoadCompletionSchema(context.Background()); err != nil {
			return msg.SchemaErrMsg{Err: err, Gen: gen}
		}
		return msg.SchemaLoadedMsg{Gen: gen}
	}
}

// fetchNodesCmd resolves one explorer node's children through the
// shared schema cache.
func (m Model) fetchNodesCmd(path string) tea.Cmd {
	mgr := m.sess.Manager()
	cache := mgr.SchemaCache()
	gen := mgr.Generation()
	return func() tea.Msg {
		if cache == nil {
			return msg.ExplorerErrMsg{Path: path, Err: driver.ErrNotConnected, Gen: gen}
		}
		nodes, err := cache.Children(context.Background(), path)
		if err != nil {
			return msg.ExplorerErrMsg{Path: path, Err: err, Gen: gen}
		}
		return msg.ExplorerNodesMsg{Path: path, Nodes: nodes, Gen: gen}
	}
}

func (m *Model) exportCmd(format, path string) tea.Cmd {
	if !m.resultsPane.HasRows() {
		return m.statusCmd("no results to export", true)
	}
	if path == "" {
		path = fmt.Sprintf("export_%s.%s", time.Now().Format("20060102_150405"), strings.ToLower(format))
	}
	cols := m.resultsPane.Columns()
	rows := m.resultsPane.Rows()
	return func() tea.Msg {
		n, err := results.Export(path, format, cols, rows)
		if err != nil {
			return msg.ExportErrMsg{Err: err}
		}
		return msg.ExportCompleteMsg{Path: path, RowCount: n}
	}
}

func (m *Model) saveBuffer(path string) tea.Cmd {
	if err := m.sess.SaveBuffer(path); err != nil {
		return m.saveError(err)
	}
	return m.statusCmd("wrote "+m.sess.File(), false)
}

func (m *Model) saveError(err error) tea.Cmd {
	if errors.Is(err, os.ErrInvalid) {
		return m.statusCmd("no file name (use :w <path>)", true)
	}
	return m.statusCmd("write failed: "+err.Error(), true)
}

func (m *Model) loadBuffer(path string) tea.Cmd {
	if err := m.sess.LoadBuffer(path); err != nil {
		return m.statusCmd("open failed: "+err.Error(), true)
	}
	m.edview.Sync()
	m.popup.Dismiss()
	return m.statusCmd("opened "+path, false)
}

func formatRows(n int64) string {
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}
