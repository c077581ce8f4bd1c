// Package connmgr implements the saved-connection picker and editor
// modal. Picking a connection emits a request; the app owns the actual
// connect through the connection manager.
package connmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/theme"
)

// State tracks the connection manager screen.
type State int

const (
	StateList State = iota
	StateForm
	StateTesting
)

// ConnectRequestMsg is sent when the user picks a connection.
type ConnectRequestMsg struct {
	Connection config.SavedConnection
}

// ConnectionsUpdatedMsg is sent when saved connections are modified so
// the app can persist them.
type ConnectionsUpdatedMsg struct {
	Connections []config.SavedConnection
}

const (
	fieldName = iota
	fieldDriver
	fieldAuth
	fieldHost
	fieldPort
	fieldUser
	fieldPassword
	fieldToken
	fieldDatabase
	fieldFile
	fieldDSN
	fieldCount
)

// Model is the connection manager modal.
type Model struct {
	th          *theme.Theme
	state       State
	connections []config.SavedConnection
	cursor      int
	visible     bool
	width       int
	height      int

	inputs    []textinput.Model
	formFocus int
	editing   int // index being edited, -1 for new
	message   string
	isError   bool
}

// New creates a connection manager over the saved connections.
func New(th *theme.Theme, connections []config.SavedConnection) Model {
	m := Model{th: th, connections: connections, editing: -1}
	m.initForm()
	return m
}

func (m *Model) initForm() {
	m.inputs = make([]textinput.Model, fieldCount)

	labels := []string{"Name", "Driver", "Auth", "Host", "Port", "User", "Password", "Token", "Database", "File", "DSN"}
	placeholders := []string{
		"my-database",
		"postgres|mysql|sqlite|duckdb",
		"integrated|password|token",
		"localhost",
		"5432",
		"",
		"",
		"",
		"",
		"/path/to/db.sqlite",
		"postgres://host:5432/db",
	}

	for i := range m.inputs {
		t := textinput.New()
		t.Prompt = labels[i] + ": "
		t.Placeholder = placeholders[i]
		if i == fieldPassword || i == fieldToken {
			t.EchoMode = textinput.EchoPassword
		}
		t.Width = 40
		m.inputs[i] = t
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles connection manager messages.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch m.state {
	case StateList:
		return m.updateList(message)
	case StateForm:
		return m.updateForm(message)
	case StateTesting:
		return m.updateTesting(message)
	}
	return m, nil
}

func (m Model) updateList(message tea.Msg) (Model, tea.Cmd) {
	key, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.connections) {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.connections) {
			picked := m.connections[m.cursor]
			m.visible = false
			return m, func() tea.Msg { return ConnectRequestMsg{Connection: picked} }
		}
		// Cursor on the "new connection" row.
		m.state = StateForm
		m.editing = -1
		m.clearForm()
		m.inputs[0].Focus()
		return m, textinput.Blink
	case "n":
		m.state = StateForm
		m.editing = -1
		m.clearForm()
		m.inputs[0].Focus()
		return m, textinput.Blink
	case "e":
		if m.cursor < len(m.connections) {
			m.state = StateForm
			m.editing = m.cursor
			m.loadIntoForm(m.connections[m.cursor])
			m.inputs[0].Focus()
			return m, textinput.Blink
		}
	case "d":
		if m.cursor < len(m.connections) {
			m.connections = append(m.connections[:m.cursor], m.connections[m.cursor+1:]...)
			if m.cursor >= len(m.connections) && m.cursor > 0 {
				m.cursor--
			}
			return m, m.connectionsUpdated()
		}
	case "esc", "q":
		m.visible = false
	}
	return m, nil
}

func (m Model) updateForm(message tea.Msg) (Model, tea.Cmd) {
	if key, ok := message.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = StateList
			return m, nil
		case "tab", "down":
			m.inputs[m.formFocus].Blur()
			m.formFocus = (m.formFocus + 1) % fieldCount
			m.inputs[m.formFocus].Focus()
			return m, textinput.Blink
		case "shift+tab", "up":
			m.inputs[m.formFocus].Blur()
			m.formFocus--
			if m.formFocus < 0 {
				m.formFocus = fieldCount - 1
			}
			m.inputs[m.formFocus].Focus()
			return m, textinput.Blink
		case "ctrl+s":
			saved := m.formToConnection()
			if m.editing >= 0 && m.editing < len(m.connections) {
				m.connections[m.editing] = saved
			} else {
				m.connections = append(m.connections, saved)
			}
			m.state = StateList
			return m, m.connectionsUpdated()
		case "ctrl+t":
			m.state = StateTesting
			return m, testConnection(m.formToConnection())
		}
	}

	var cmd tea.Cmd
	m.inputs[m.formFocus], cmd = m.inputs[m.formFocus].Update(message)
	return m, cmd
}

func (m Model) updateTesting(message tea.Msg) (Model, tea.Cmd) {
	switch message := message.(type) {
	case testResultMsg:
		if message.err != nil {
			m.message = "connection failed: " + conn.Scrub(message.err.Error())
			m.isError = true
		} else {
			m.message = "connection successful"
			m.isError = false
		}
		m.state = StateForm
	case tea.KeyMsg:
		if message.String() == "esc" {
			m.state = StateForm
		}
	}
	return m, nil
}

type testResultMsg struct{ err error }

func testConnection(saved config.SavedConnection) tea.Cmd {
	return func() tea.Msg {
		d, ok := driver.Lookup(saved.Driver)
		if !ok {
			return testResultMsg{err: fmt.Errorf("unknown driver %q", saved.Driver)}
		}
		ctx := context.Background()
		c, err := d.Connect(ctx, saved.Target())
		if err != nil {
			return testResultMsg{err: err}
		}
		err = c.Ping(ctx)
		c.Close()
		return testResultMsg{err: err}
	}
}

func (m Model) connectionsUpdated() tea.Cmd {
	conns := make([]config.SavedConnection, len(m.connections))
	copy(conns, m.connections)
	return func() tea.Msg { return ConnectionsUpdatedMsg{Connections: conns} }
}

// View renders the connection manager.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	switch m.state {
	case StateList:
		return m.viewList()
	case StateForm:
		return m.viewForm()
	case StateTesting:
		return m.th.DialogBorder.Render("\n  testing connection...\n")
	}
	return ""
}

func (m Model) viewList() string {
	th := m.th
	title := th.DialogTitle.Render("  Connections  ")

	var lines []string
	for i, saved := range m.connections {
		line := fmt.Sprintf("  %s  (%s)", saved.Name, saved.DisplayString())
		if i == m.cursor {
			lines = append(lines, th.ExplorerSelected.Render(line))
		} else {
			lines = append(lines, "  "+line)
		}
	}

	newLine := "  + new connection"
	if m.cursor == len(m.connections) {
		lines = append(lines, th.ExplorerSelected.Render(newLine))
	} else {
		lines = append(lines, "  "+newLine)
	}

	help := th.MutedText.Render("  enter:connect  n:new  e:edit  d:delete  esc:close")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		strings.Join(lines, "\n"),
		"",
		help,
	)
	return th.DialogBorder.Width(m.dialogWidth()).Render(content)
}

func (m Model) viewForm() string {
	th := m.th
	title := "  New Connection  "
	if m.editing >= 0 {
		title = "  Edit Connection  "
	}

	var lines []string
	lines = append(lines, th.DialogTitle.Render(title), "")
	for i := range m.inputs {
		lines = append(lines, "  "+m.inputs[i].View())
	}

	if m.message != "" {
		style := th.SuccessText
		if m.isError {
			style = th.ErrorText
		}
		lines = append(lines, "", style.Render("  "+m.message))
	}

	lines = append(lines, "", th.MutedText.Render("  ctrl+s:save  ctrl+t:test  esc:back"))
	return th.DialogBorder.Width(m.dialogWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) dialogWidth() int {
	w := 60
	if m.width > 0 && w > m.width-4 {
		w = m.width - 4
	}
	return w
}

func (m *Model) clearForm() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.formFocus = 0
	m.message = ""
}

func (m *Model) loadIntoForm(saved config.SavedConnection) {
	m.inputs[fieldName].SetValue(saved.Name)
	m.inputs[fieldDriver].SetValue(saved.Driver)
	m.inputs[fieldAuth].SetValue(saved.Auth)
	m.inputs[fieldHost].SetValue(saved.Host)
	if saved.Port > 0 {
		m.inputs[fieldPort].SetValue(fmt.Sprintf("%d", saved.Port))
	}
	m.inputs[fieldUser].SetValue(saved.User)
	m.inputs[fieldPassword].SetValue(saved.Password)
	m.inputs[fieldToken].SetValue(saved.Token)
	m.inputs[fieldDatabase].SetValue(saved.Database)
	m.inputs[fieldFile].SetValue(saved.File)
	m.inputs[fieldDSN].SetValue(saved.DSN)
	m.formFocus = 0
	m.message = ""
}

func (m Model) formToConnection() config.SavedConnection {
	port := 0
	fmt.Sscanf(m.inputs[fieldPort].Value(), "%d", &port)
	return config.SavedConnection{
		Name:     m.inputs[fieldName].Value(),
		Driver:   m.inputs[fieldDriver].Value(),
		Auth:     m.inputs[fieldAuth].Value(),
		Host:     m.inputs[fieldHost].Value(),
		Port:     port,
		User:     m.inputs[fieldUser].Value(),
		Password: m.inputs[fieldPassword].Value(),
		Token:    m.inputs[fieldToken].Value(),
		Database: m.inputs[fieldDatabase].Value(),
		File:     m.inputs[fieldFile].Value(),
		DSN:      m.inputs[fieldDSN].Value(),
	}
}

// Show opens the connection list.
func (m *Model) Show() {
	m.visible = true
	m.state = StateList
	m.cursor = 0
}

// Hide closes the modal.
func (m *Model) Hide() {
	m.visible = false
}

// Visible reports whether the modal is open.
func (m Model) Visible() bool { return m.visible }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Connections returns the current saved connections.
func (m Model) Connections() []config.SavedConnection {
	return m.connections
}

// SetConnections replaces the saved connections list.
func (m *Model) SetConnections(conns []config.SavedConnection) {
	m.connections = conns
}
