// Package app composes the panes into the root bubbletea model: the
// schema explorer, the modal query editor, the results pane, the status
// bar, and the modal overlays for connections, history, and confirm
// dialogs. All cross-pane coordination happens here.
package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/audit"
	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/history"
	"github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/session"
	"github.com/pheller/sqlpilot/internal/theme"
	"github.com/pheller/sqlpilot/internal/ui/autocomplete"
	"github.com/pheller/sqlpilot/internal/ui/connmgr"
	"github.com/pheller/sqlpilot/internal/ui/dialog"
	"github.com/pheller/sqlpilot/internal/ui/editorview"
	"github.com/pheller/sqlpilot/internal/ui/historybrowser"
	"github.com/pheller/sqlpilot/internal/ui/results"
	"github.com/pheller/sqlpilot/internal/ui/sidebar"
	"github.com/pheller/sqlpilot/internal/ui/statusbar"
)

type quitConfirmedMsg struct{}

// Model is the root application model.
type Model struct {
	cfg  *config.Config
	th   *theme.Theme
	sess *session.Session
	hist *history.Store
	aud  *audit.Logger

	width         int
	height        int
	explorerWidth int
	editorPct     int // percentage of the main column given to the editor
	showExplorer  bool
	focused       msg.Pane

	explorer    sidebar.Model
	edview      editorview.Model
	popup       autocomplete.Model
	resultsPane results.Model
	status      statusbar.Model
	connections connmgr.Model
	historyView historybrowser.Model
	quitDialog  dialog.Model

	executing bool
	lastQuery string
	display   string
	showHelp  bool
	quitting  bool
}

// New creates the root model. The history store and audit logger may be
// nil when disabled.
func New(cfg *config.Config, th *theme.Theme, sess *session.Session, hist *history.Store, aud *audit.Logger) Model {
	m := Model{
		cfg:  cfg,
		th:   th,
		sess: sess,
		hist: hist,
		aud:  aud,

		explorerWidth: 32,
		editorPct:     50,
		showExplorer:  true,
		focused:       msg.PaneEditor,

		explorer:    sidebar.New(th),
		edview:      editorview.New(th, sess.Editor()),
		popup:       autocomplete.New(th),
		resultsPane: results.New(th),
		status:      statusbar.New(th),
		connections: connmgr.New(th, cfg.Connections),
		historyView: historybrowser.New(th, hist),
	}
	m.edview.Focus()
	m.quitDialog = dialog.New(th, "Unsaved Changes",
		"The query buffer has unsaved changes. Quit anyway?",
		dialog.Button{Label: "Quit", Action: func() tea.Msg { return quitConfirmedMsg{} }},
		dialog.Button{Label: "Cancel", Action: nil},
	)
	return m
}

// ShowConnections opens the connection picker on startup.
func (m *Model) ShowConnections() {
	m.connections.Show()
}

// ConnectTo returns a command connecting to an ad hoc connection built
// from command line flags.
func (m Model) ConnectTo(saved config.SavedConnection) tea.Cmd {
	return m.connectCmd(saved)
}

// InitialConnect returns a command connecting to the named saved
// connection on startup.
func (m Model) InitialConnect(name string) tea.Cmd {
	saved, ok := m.cfg.Connection(name)
	if !ok {
		return m.statusCmd("no saved connection named "+name, true)
	}
	return m.connectCmd(saved)
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles all messages.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(message)
		m.syncEditorStatus()
		return m, cmd

	case quitConfirmedMsg:
		m.quitting = true
		return m, tea.Quit

	case msg.ConnectedMsg:
		m.display = message.Display
		m.status, _ = m.status.Update(message)
		m.edview.SetDialect(message.Driver)
		m.resultsPane.Clear()
		cmds = append(cmds, m.explorer.Reset(message.Gen), m.probeCmd(), m.loadSchemaCmd())

	case msg.ConnectErrMsg:
		cmds = append(cmds, m.statusCmd("connect failed: "+conn.Scrub(message.Err.Error()), true))

	case msg.DisconnectMsg:
		m.status, _ = m.status.Update(message)

	case msg.SchemaLoadedMsg:
		if message.Gen == m.sess.Manager().Generation() {
			cmds = append(cmds, m.statusCmd("schema loaded", false))
		}

	case msg.SchemaErrMsg:
		if message.Gen == m.sess.Manager().Generation() {
			cmds = append(cmds, m.statusCmd("schema load failed: "+conn.Scrub(message.Err.Error()), true))
		}

	case msg.RefreshSchemaMsg:
		mgr := m.sess.Manager()
		mgr.RefreshSchema()
		cmds = append(cmds, m.explorer.Reset(mgr.Generation()), m.loadSchemaCmd())

	case sidebar.FetchMsg:
		cmds = append(cmds, m.fetchNodesCmd(message.Path))

	case msg.ExplorerNodesMsg, msg.ExplorerErrMsg:
		var cmd tea.Cmd
		m.explorer, cmd = m.explorer.Update(message)
		cmds = append(cmds, cmd)
		cmds = append(cmds, m.explorer.PendingFetches()...)

	case msg.InsertTextMsg:
		m.insertQuery(message.Text)
		m.setFocus(msg.PaneEditor)

	case msg.CompletionMsg:
		if m.sess.SetCompletions(message.Result) && len(message.Result.Candidates) > 0 {
			m.popup.Show(message.Result)
		} else {
			m.popup.Dismiss()
		}

	case autocomplete.AcceptedMsg:
		m.sess.AcceptCompletion(message.Label)
		m.edview.Sync()

	case autocomplete.DismissMsg:
		m.sess.DismissCompletions()

	case msg.QueryStartedMsg:
		m.executing = true
		m.lastQuery = message.Query
		m.resultsPane.SetLoading(true)

	case msg.QueryDoneMsg:
		cmds = append(cmds, m.finishQuery(message)...)

	case msg.QueryCancelledMsg:
		m.executing = false
		m.resultsPane.SetLoading(false)
		m.status, _ = m.status.Update(message)

	case msg.ExportCompleteMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg.StatusMsg{
			Text: "exported " + formatRows(message.RowCount) + " to " + message.Path,
		})
		cmds = append(cmds, cmd)

	case msg.ExportErrMsg:
		cmds = append(cmds, m.statusCmd("export failed: "+message.Err.Error(), true))

	case msg.StatusMsg, msg.ClearStatusMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(message)
		cmds = append(cmds, cmd)

	case connmgr.ConnectRequestMsg:
		cmds = append(cmds, m.connectCmd(message.Connection))

	case connmgr.ConnectionsUpdatedMsg:
		m.cfg.Connections = message.Connections
		if err := m.cfg.SaveDefault(); err != nil {
			cmds = append(cmds, m.statusCmd("save config: "+err.Error(), true))
		}

	case historybrowser.SelectQueryMsg:
		m.sess.Editor().SetText(message.Query)
		m.edview.Sync()
		m.setFocus(msg.PaneEditor)

	default:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(message)
		cmds = append(cmds, cmd)
	}

	m.syncEditorStatus()
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(key tea.KeyMsg) (Model, tea.Cmd) {
	// Modal overlays consume keys first.
	if m.quitDialog.Visible() {
		var cmd tea.Cmd
		m.quitDialog, cmd = m.quitDialog.Update(key)
		return m, cmd
	}
	if m.connections.Visible() {
		var cmd tea.Cmd
		m.connections, cmd = m.connections.Update(key)
		return m, cmd
	}
	if m.historyView.Visible() {
		var cmd tea.Cmd
		m.historyView, cmd = m.historyView.Update(key)
		return m, cmd
	}
	if m.showHelp {
		switch key.String() {
		case "f1", "esc", "q", "?":
			m.showHelp = false
		}
		return m, nil
	}

	// The completion popup steals its navigation keys.
	if m.popup.Visible() {
		switch key.String() {
		case "up", "down", "tab", "enter", "esc", "ctrl+p", "ctrl+n":
			var cmd tea.Cmd
			m.popup, cmd = m.popup.Update(key)
			return m, cmd
		}
	}

	if cmd, handled := m.handleGlobalKey(key); handled {
		return m, cmd
	}

	switch m.focused {
	case msg.PaneExplorer:
		var cmd tea.Cmd
		m.explorer, cmd = m.explorer.Update(key)
		return m, cmd
	case msg.PaneResults:
		var cmd tea.Cmd
		m.resultsPane, cmd = m.resultsPane.Update(key)
		return m, cmd
	default:
		return m, m.handleEditorKey(key)
	}
}

func (m *Model) handleGlobalKey(key tea.KeyMsg) (tea.Cmd, bool) {
	s := key.String()

	// While a filter prompt is open its pane owns printable keys.
	if m.focused == msg.PaneExplorer && m.explorer.Filtering() {
		return nil, false
	}
	if m.focused == msg.PaneResults && m.resultsPane.Filtering() {
		return nil, false
	}

	switch s {
	case "ctrl+q":
		return m.requestQuit(), true
	case "ctrl+c":
		if m.executing {
			m.sess.Manager().Cancel()
			return func() tea.Msg { return msg.QueryCancelledMsg{} }, true
		}
		return nil, true
	case "f1":
		m.showHelp = true
		return nil, true
	case "f5":
		return m.runQueryCmd(), true
	case "ctrl+s":
		return m.saveBuffer(""), true
	case "ctrl+o":
		m.connections.Show()
		return nil, true
	case "ctrl+h":
		m.historyView.Show()
		return nil, true
	case "ctrl+b":
		m.showExplorer = !m.showExplorer
		if !m.showExplorer && m.focused == msg.PaneExplorer {
			m.setFocus(msg.PaneEditor)
		}
		m.updateLayout()
		return nil, true
	case "shift+tab":
		m.cycleFocus(-1)
		return nil, true
	case "tab":
		// Tab stays with the editor, where it indents.
		if m.focused != msg.PaneEditor {
			m.cycleFocus(1)
			return nil, true
		}
	case "alt+1":
		m.setFocus(msg.PaneExplorer)
		return nil, true
	case "alt+2":
		m.setFocus(msg.PaneEditor)
		return nil, true
	case "alt+3":
		m.setFocus(msg.PaneResults)
		return nil, true
	}
	return nil, false
}

func (m *Model) handleEditorKey(key tea.KeyMsg) tea.Cmd {
	up := m.sess.HandleKey(key.String())
	m.edview.Sync()

	var cmds []tea.Cmd
	switch {
	case up.Command != "":
		cmds = append(cmds, m.dispatchCommand(up.Command))
	case up.CompletionTrigger:
		req := m.sess.CompletionRequest()
		sess := m.sess
		cmds = append(cmds, func() tea.Msg {
			return msg.CompletionMsg{Result: sess.Complete(req)}
		})
	case up.CompletionDismiss:
		m.popup.Dismiss()
	case up.BufferChanged && m.popup.Visible():
		// Edits that are not identifier input invalidate the popup.
		m.popup.Dismiss()
		m.sess.DismissCompletions()
	}
	return tea.Batch(cmds...)
}

// requestQuit quits immediately with a clean buffer and asks first when
// there are unsaved changes.
func (m *Model) requestQuit() tea.Cmd {
	if !m.sess.Dirty() {
		m.quitting = true
		return tea.Quit
	}
	m.quitDialog.Show()
	return nil
}

// insertQuery puts a generated starter query into the buffer: replacing
// an empty buffer, appended on a fresh line otherwise.
func (m *Model) insertQuery(text string) {
	ed := m.sess.Editor()
	if strings.TrimSpace(ed.Text()) == "" {
		ed.SetText(text)
	} else {
		ed.SetText(ed.Text() + "\n" + text)
	}
	m.edview.Sync()
}

func (m *Model) setFocus(pane msg.Pane) {
	m.explorer.Blur()
	m.edview.Blur()
	m.resultsPane.Blur()

	if pane == msg.PaneExplorer && !m.showExplorer {
		pane = msg.PaneEditor
	}
	m.focused = pane

	switch pane {
	case msg.PaneExplorer:
		m.explorer.Focus()
	case msg.PaneResults:
		m.resultsPane.Focus()
	default:
		m.edview.Focus()
	}
}

func (m *Model) cycleFocus(direction int) {
	panes := []msg.Pane{msg.PaneEditor, msg.PaneResults}
	if m.showExplorer {
		panes = []msg.Pane{msg.PaneExplorer, msg.PaneEditor, msg.PaneResults}
	}
	current := 0
	for i, p := range panes {
		if p == m.focused {
			current = i
			break
		}
	}
	next := (current + direction + len(panes)) % len(panes)
	m.setFocus(panes[next])
}

func (m *Model) syncEditorStatus() {
	ed := m.sess.Editor()
	cur := ed.Cursor()
	m.status.SetEditorState(ed.Mode(), cur.Row+1, cur.Col+1, m.sess.Dirty())
}

func (m *Model) updateLayout() {
	m.status.SetSize(m.width)
	m.connections.SetSize(m.width, m.height)
	m.historyView.SetSize(m.width, m.height)
	m.quitDialog.SetSize(m.width, m.height)

	mainWidth := m.width
	if m.showExplorer {
		mainWidth -= m.explorerWidth
	}
	mainHeight := m.height - 1 // status bar
	if mainHeight < 2 {
		mainHeight = 2
	}

	editorH := mainHeight * m.editorPct / 100
	if editorH < 3 {
		editorH = 3
	}
	resultsH := mainHeight - editorH
	if resultsH < 3 {
		resultsH = 3
	}

	m.explorer.SetSize(m.explorerWidth, mainHeight)
	m.edview.SetSize(mainWidth, editorH)
	m.resultsPane.SetSize(mainWidth, resultsH)
}

// View renders the full screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	editorView := m.edview.View()
	if m.popup.Visible() {
		x, y := m.edview.CursorScreenPosition()
		editorView = overlayAt(editorView, m.popup.View(), x, y+1)
	}

	main := lipgloss.JoinVertical(lipgloss.Left, editorView, m.resultsPane.View())

	var content string
	if m.showExplorer {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.explorer.View(), main)
	} else {
		content = main
	}

	view := lipgloss.JoinVertical(lipgloss.Left, content, m.status.View())

	switch {
	case m.quitDialog.Visible():
		view = m.quitDialog.Overlay(view)
	case m.connections.Visible():
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.connections.View())
	case m.historyView.Visible():
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.historyView.View())
	case m.showHelp:
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderHelp())
	}
	return view
}

// overlayAt splices overlay into background at the given cell, clipping
// at the background's edges.
func overlayAt(background, overlay string, x, y int) string {
	bgLines := strings.Split(background, "\n")
	ovLines := strings.Split(overlay, "\n")

	// Flip above the anchor when the popup would fall off the bottom.
	if y+len(ovLines) > len(bgLines) && y-1-len(ovLines) >= 0 {
		y = y - 1 - len(ovLines)
	}

	for i, ovLine := range ovLines {
		row := y + i
		if row < 0 || row >= len(bgLines) {
			continue
		}
		lineRunes := []rune(bgLines[row])
		var prefix string
		if x < len(lineRunes) {
			prefix = string(lineRunes[:x])
		} else {
			prefix = bgLines[row] + strings.Repeat(" ", x-len(lineRunes))
		}
		var suffix string
		endX := x + lipgloss.Width(ovLine)
		if endX < len(lineRunes) {
			suffix = string(lineRunes[endX:])
		}
		bgLines[row] = prefix + ovLine + suffix
	}
	return strings.Join(bgLines, "\n")
}

func (m Model) renderHelp() string {
	th := m.th
	line := func(key, desc string) string {
		return "  " + th.CompletionKind.Render(padKey(key)) + "  " + desc
	}

	var b strings.Builder
	b.WriteString(th.DialogTitle.Render("  sqlpilot  "))
	b.WriteString("\n\n")

	b.WriteString(th.StatusBarSection.Render("  Query"))
	b.WriteString("\n")
	b.WriteString(line("F5 / :run", "execute the buffer") + "\n")
	b.WriteString(line("Ctrl+C", "cancel a running query") + "\n")
	b.WriteString(line(":export csv <path>", "export results") + "\n\n")

	b.WriteString(th.StatusBarSection.Render("  Editor"))
	b.WriteString("\n")
	b.WriteString(line("i a o O", "enter insert mode") + "\n")
	b.WriteString(line("v", "visual selection") + "\n")
	b.WriteString(line(":w :e :q", "save, open, quit") + "\n")
	b.WriteString(line("Ctrl+S", "save buffer") + "\n\n")

	b.WriteString(th.StatusBarSection.Render("  Navigation"))
	b.WriteString("\n")
	b.WriteString(line("Tab / Shift+Tab", "cycle panes") + "\n")
	b.WriteString(line("Alt+1 / 2 / 3", "explorer, editor, results") + "\n")
	b.WriteString(line("Ctrl+B", "toggle explorer") + "\n\n")

	b.WriteString(th.StatusBarSection.Render("  Application"))
	b.WriteString("\n")
	b.WriteString(line("Ctrl+O", "connections") + "\n")
	b.WriteString(line("Ctrl+H", "query history") + "\n")
	b.WriteString(line(":use <db>", "switch database") + "\n")
	b.WriteString(line(":refresh", "reload schema") + "\n")
	b.WriteString(line("Ctrl+Q", "quit") + "\n\n")

	b.WriteString(th.MutedText.Render("  press esc to close"))
	return th.DialogBorder.Render(b.String())
}

func padKey(s string) string {
	if len(s) >= 18 {
		return s
	}
	return s + strings.Repeat(" ", 18-len(s))
}
