// Package dialog implements a reusable modal confirmation dialog with
// a button row, used for destructive actions like quitting with an
// unsaved buffer.
package dialog

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/theme"
)

// Button is a dialog button with the message its selection produces.
type Button struct {
	Label  string
	Action func() tea.Msg
}

// Model is a modal dialog.
type Model struct {
	th       *theme.Theme
	title    string
	body     string
	buttons  []Button
	active   int
	visible  bool
	width    int
	maxWidth int
}

// New creates a dialog with the given buttons. The first button starts
// active.
func New(th *theme.Theme, title, body string, buttons ...Button) Model {
	return Model{th: th, title: title, body: body, buttons: buttons, maxWidth: 60}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles dialog key messages.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	key, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "shift+tab", "h":
		if m.active > 0 {
			m.active--
		}
	case "right", "tab", "l":
		if m.active < len(m.buttons)-1 {
			m.active++
		}
	case "enter":
		if m.active < len(m.buttons) && m.buttons[m.active].Action != nil {
			m.visible = false
			return m, m.buttons[m.active].Action
		}
	case "esc":
		m.visible = false
	}
	return m, nil
}

// View renders the dialog box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	th := m.th

	title := th.DialogTitle.Render(m.title)
	body := lipgloss.NewStyle().Width(m.maxWidth - 4).Render(m.body)

	var btns []string
	for i, btn := range m.buttons {
		style := th.DialogButton
		if i == m.active {
			style = th.DialogButtonActive
		}
		btns = append(btns, style.Render(" "+btn.Label+" "))
	}
	buttonRow := lipgloss.JoinHorizontal(lipgloss.Center, btns...)
	buttonRow = lipgloss.NewStyle().Width(m.maxWidth - 4).Align(lipgloss.Center).Render(buttonRow)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		body,
		"",
		buttonRow,
	)
	return th.DialogBorder.Render(content)
}

// Show opens the dialog with the first button active.
func (m *Model) Show() {
	m.visible = true
	m.active = 0
}

// Hide closes the dialog.
func (m *Model) Hide() {
	m.visible = false
}

// Visible reports whether the dialog is open.
func (m Model) Visible() bool { return m.visible }

// SetSize sets the available space for centering.
func (m *Model) SetSize(width, height int) {
	m.width = width
	if m.maxWidth > width-4 {
		m.maxWidth = width - 4
	}
}

// Overlay renders the dialog centered over the background content.
func (m Model) Overlay(background string) string {
	if !m.visible {
		return background
	}

	box := m.View()
	bgLines := strings.Split(background, "\n")
	boxLines := strings.Split(box, "\n")
	boxW := lipgloss.Width(box)

	startY := (len(bgLines) - len(boxLines)) / 2
	startX := (m.width - boxW) / 2
	if startY < 0 {
		startY = 0
	}
	if startX < 0 {
		startX = 0
	}

	for i, boxLine := range boxLines {
		y := startY + i
		if y >= len(bgLines) {
			break
		}
		lineRunes := []rune(bgLines[y])
		var prefix string
		if startX < len(lineRunes) {
			prefix = string(lineRunes[:startX])
		} else {
			prefix = bgLines[y] + strings.Repeat(" ", startX-len(lineRunes))
		}
		var suffix string
		endX := startX + lipgloss.Width(boxLine)
		if endX < len(lineRunes) {
			suffix = string(lineRunes[endX:])
		}
		bgLines[y] = prefix + boxLine + suffix
	}
	return strings.Join(bgLines, "\n")
}
