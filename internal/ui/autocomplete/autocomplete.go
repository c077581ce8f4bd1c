package autocomplete

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pheller/sqlpilot/internal/completion"
	"github.com/pheller/sqlpilot/internal/theme"
)

const maxVisible = 8

// AcceptedMsg is sent when a candidate is accepted.
type AcceptedMsg struct {
	Label string
}

// DismissMsg is sent when the popup is dismissed.
type DismissMsg struct{}

// Model is the completion popup overlay. It only renders the candidate
// set and tracks the selection; span replacement happens in the
// session, which re-verifies the result against the live buffer.
type Model struct {
	th       *theme.Theme
	result   completion.Result
	selected int
	visible  bool
	width    int
}

// New creates a completion popup.
func New(th *theme.Theme) Model {
	return Model{th: th, width: 40}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles popup navigation while visible.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	key, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "ctrl+p":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "ctrl+n":
		if m.selected < len(m.result.Candidates)-1 {
			m.selected++
		}
	case "tab", "enter":
		if m.selected < len(m.result.Candidates) {
			label := m.result.Candidates[m.selected].Label
			m.visible = false
			return m, func() tea.Msg { return AcceptedMsg{Label: label} }
		}
	case "esc":
		m.visible = false
		return m, func() tea.Msg { return DismissMsg{} }
	}

	return m, nil
}

// View renders the popup.
func (m Model) View() string {
	if !m.visible || len(m.result.Candidates) == 0 {
		return ""
	}
	th := m.th

	visible := m.result.Candidates
	offset := 0
	if len(visible) > maxVisible {
		if m.selected >= maxVisible {
			offset = m.selected - maxVisible + 1
		}
		end := offset + maxVisible
		if end > len(visible) {
			end = len(visible)
		}
		visible = visible[offset:end]
	}

	var lines []string
	for i, cand := range visible {
		idx := offset + i
		label := kindTag(cand.Kind) + " " + cand.Label
		if cand.Detail != "" {
			label += "  " + cand.Detail
		}
		if lipgloss.Width(label) > m.width-2 {
			label = label[:m.width-5] + "..."
		}
		for lipgloss.Width(label) < m.width-2 {
			label += " "
		}

		if idx == m.selected {
			lines = append(lines, th.CompletionSelected.Render(label))
		} else {
			lines = append(lines, th.CompletionItem.Render(label))
		}
	}

	return th.CompletionBorder.Render(strings.Join(lines, "\n"))
}

// Show installs a new candidate set and resets the selection.
func (m *Model) Show(res completion.Result) {
	m.result = res
	m.selected = 0
	m.visible = len(res.Candidates) > 0
}

// Dismiss hides the popup.
func (m *Model) Dismiss() {
	m.visible = false
}

// Visible reports whether the popup is shown.
func (m Model) Visible() bool {
	return m.visible
}

// Selected returns the currently highlighted candidate label.
func (m Model) Selected() (string, bool) {
	if !m.visible || m.selected >= len(m.result.Candidates) {
		return "", false
	}
	return m.result.Candidates[m.selected].Label, true
}

func kindTag(k completion.Kind) string {
	switch k {
	case completion.KindTable:
		return "T"
	case completion.KindView:
		return "V"
	case completion.KindColumn:
		return "C"
	case completion.KindKeyword:
		return "K"
	case completion.KindFunction:
		return "F"
	case completion.KindProcedure:
		return "P"
	default:
		return " "
	}
}
