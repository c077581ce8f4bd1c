package statusbar

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/editor"
	appmsg "github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/theme"
)

// Model is the status bar: mode indicator on the left, connection and
// transient messages in the middle, cursor position on the right.
type Model struct {
	th    *theme.Theme
	width int

	driver    string
	display   string
	database  string
	connected bool

	mode       editor.Mode
	cursorLine int
	cursorCol  int
	dirty      bool

	queryTime time.Duration
	rowCount  int64
	message   string
	isError   bool
}

// New creates a status bar.
func New(th *theme.Theme) Model {
	return Model{th: th, rowCount: -1}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func clearAfter() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return appmsg.ClearStatusMsg{}
	})
}

// Update handles status bar messages.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	switch message := message.(type) {
	case appmsg.ConnectedMsg:
		m.driver = message.Driver
		m.display = message.Display
		m.database = message.Database
		m.connected = true
		m.message = ""
		m.isError = false

	case appmsg.DisconnectMsg:
		m.connected = false
		m.driver = ""
		m.display = ""
		m.database = ""

	case appmsg.QueryDoneMsg:
		if message.Err != nil {
			m.message = message.Err.Error()
			m.isError = true
			return m, clearAfter()
		}
		if message.Exec != nil && message.Exec.Result != nil {
			res := message.Exec.Result
			m.queryTime = message.Exec.FinishedAt.Sub(message.Exec.StartedAt)
			m.rowCount = res.RowCount
			if res.Message != "" {
				m.message = res.Message
				m.isError = false
			}
		}
		return m, clearAfter()

	case appmsg.QueryCancelledMsg:
		m.message = "cancelled"
		m.isError = false
		return m, clearAfter()

	case appmsg.StatusMsg:
		m.message = message.Text
		m.isError = message.IsError
		if message.Duration > 0 {
			m.queryTime = message.Duration
		}
		return m, clearAfter()

	case appmsg.ClearStatusMsg:
		m.queryTime = 0
		m.rowCount = -1
		m.message = ""
		m.isError = false
	}

	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	th := m.th

	left := m.modeStyle().Render(m.mode.String())
	if m.connected {
		target := m.display
		if m.database != "" {
			target = fmt.Sprintf("%s [%s]", m.display, m.database)
		}
		left += th.StatusBarSection.Render(target)
	} else {
		left += th.StatusBarSection.Render("disconnected")
	}

	var center string
	switch {
	case m.message != "" && m.isError:
		center = th.StatusBarError.Render(truncate(m.message, m.width/2))
	case m.message != "":
		center = th.StatusBarSuccess.Render(m.message)
	case m.queryTime > 0:
		center = th.StatusBarSection.Render(formatDuration(m.queryTime))
		if m.rowCount >= 0 {
			center += th.StatusBarSection.Render(formatCount(m.rowCount) + " rows")
		}
	}

	var right string
	if m.dirty {
		right = th.StatusBarSection.Render("[+]")
	}
	right += th.StatusBarSection.Render(fmt.Sprintf("%d:%d", m.cursorLine, m.cursorCol))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	leftGap := gap / 2

	bar := left +
		m.th.StatusBar.Render(strings.Repeat(" ", leftGap)) +
		center +
		m.th.StatusBar.Render(strings.Repeat(" ", gap-leftGap)) +
		right

	return th.StatusBar.Width(m.width).Render(bar)
}

func (m Model) modeStyle() lipgloss.Style {
	switch m.mode {
	case editor.ModeInsert:
		return m.th.ModeInsert
	case editor.ModeVisual:
		return m.th.ModeVisual
	case editor.ModeCommand:
		return m.th.ModeCommand
	default:
		return m.th.ModeNormal
	}
}

// SetSize sets the status bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// SetEditorState updates the mode indicator and cursor position.
func (m *Model) SetEditorState(mode editor.Mode, line, col int, dirty bool) {
	m.mode = mode
	m.cursorLine = line
	m.cursorCol = col
	m.dirty = dirty
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
