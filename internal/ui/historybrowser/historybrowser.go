// Package historybrowser implements the query history modal: recent
// executions, starred favorites, live fuzzy filtering, and recall into
// the editor buffer.
package historybrowser

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/pheller/sqlpilot/internal/history"
	"github.com/pheller/sqlpilot/internal/theme"
)

const loadLimit = 200

// SelectQueryMsg is sent when the user picks a history entry.
type SelectQueryMsg struct {
	Query string
}

// Model is the history browser modal.
type Model struct {
	th          *theme.Theme
	store       *history.Store
	entries     []history.Entry
	starred     map[string]bool
	showStarred bool
	cursor      int
	offset      int
	visible     bool
	width       int
	height      int
	search      textinput.Model
}

// New creates a history browser over the given store. A nil store
// renders an empty browser.
func New(th *theme.Theme, store *history.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "search queries..."
	ti.Prompt = "  > "
	ti.Width = 50
	return Model{th: th, store: store, search: ti}
}

// Show opens the browser and loads recent entries.
func (m *Model) Show() {
	m.visible = true
	m.cursor = 0
	m.offset = 0
	m.showStarred = false
	m.search.SetValue("")
	m.search.Focus()
	m.loadEntries()
}

// Hide closes the browser.
func (m *Model) Hide() {
	m.visible = false
	m.search.Blur()
}

// Visible reports whether the browser is open.
func (m Model) Visible() bool { return m.visible }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles history browser messages.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	key, ok := message.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(message)
		return m, cmd
	}

	switch key.String() {
	case "esc", "ctrl+h":
		m.Hide()
		return m, nil
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
			m.ensureVisible()
		}
		return m, nil
	case "pgup":
		m.cursor -= m.visibleCount()
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()
		return m, nil
	case "pgdown":
		m.cursor += m.visibleCount()
		if m.cursor >= len(m.entries) {
			m.cursor = len(m.entries) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()
		return m, nil
	case "enter":
		if m.cursor < len(m.entries) {
			query := m.entries[m.cursor].Query
			m.Hide()
			return m, func() tea.Msg { return SelectQueryMsg{Query: query} }
		}
		return m, nil
	case "tab":
		m.showStarred = !m.showStarred
		m.cursor = 0
		m.offset = 0
		m.loadEntries()
		return m, nil
	case "ctrl+s":
		if m.store != nil && m.cursor < len(m.entries) {
			e := m.entries[m.cursor]
			m.store.ToggleStar(history.StarredQuery{
				Query:        e.Query,
				Driver:       e.Driver,
				DatabaseName: e.DatabaseName,
			})
			m.loadEntries()
			if m.cursor >= len(m.entries) && m.cursor > 0 {
				m.cursor = len(m.entries) - 1
			}
			m.ensureVisible()
		}
		return m, nil
	}

	// Everything else edits the search input.
	prevVal := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(key)
	if m.search.Value() != prevVal {
		m.cursor = 0
		m.offset = 0
		m.loadEntries()
	}
	return m, cmd
}

// View renders the browser.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	th := m.th
	w := m.dialogWidth()

	heading := "  Query History  "
	if m.showStarred {
		heading = "  Starred Queries  "
	}
	title := th.DialogTitle.Render(heading)
	searchView := "  " + m.search.View()

	visible := m.visibleCount()
	end := m.offset + visible
	if end > len(m.entries) {
		end = len(m.entries)
	}

	var lines []string
	for i := m.offset; i < end; i++ {
		e := m.entries[i]
		line := m.formatEntry(e, w-6)
		switch {
		case i == m.cursor:
			lines = append(lines, th.ExplorerSelected.Render(line))
		case e.IsError:
			lines = append(lines, th.ErrorText.Render("  "+line))
		default:
			lines = append(lines, "  "+line)
		}
	}
	if len(m.entries) == 0 {
		empty := "  no history entries"
		if m.showStarred {
			empty = "  no starred queries"
		}
		lines = append(lines, th.MutedText.Render(empty))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		searchView,
		"",
		strings.Join(lines, "\n"),
		"",
		th.MutedText.Render(fmt.Sprintf("  %d entries", len(m.entries))),
		th.MutedText.Render("  enter:recall  ctrl+s:star  tab:starred  esc:close"),
	)
	return th.DialogBorder.Width(w).Render(content)
}

func (m Model) dialogWidth() int {
	w := 80
	if m.width > 0 && w > m.width-4 {
		w = m.width - 4
	}
	return w
}

func (m Model) visibleCount() int {
	avail := m.height - 8
	if avail < 3 {
		avail = 3
	}
	return avail
}

func (m *Model) ensureVisible() {
	visible := m.visibleCount()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m *Model) loadEntries() {
	if m.store == nil {
		m.entries = nil
		m.starred = nil
		return
	}

	favs, err := m.store.Starred("", "")
	if err != nil {
		favs = nil
	}
	m.starred = make(map[string]bool, len(favs))
	for _, q := range favs {
		m.starred[starKey(q.Query, q.Driver, q.DatabaseName)] = true
	}

	var recent []history.Entry
	if m.showStarred {
		for _, q := range favs {
			recent = append(recent, history.Entry{
				Query:        q.Query,
				Driver:       q.Driver,
				DatabaseName: q.DatabaseName,
				ExecutedAt:   q.StarredAt,
			})
		}
	} else {
		recent, err = m.store.Recent(loadLimit)
		if err != nil {
			m.entries = nil
			return
		}
	}

	text := m.search.Value()
	if text == "" {
		m.entries = recent
		return
	}

	// Fuzzy-rank the recent window by query text; best match first.
	queries := make([]string, len(recent))
	for i, e := range recent {
		queries[i] = e.Query
	}
	matches := fuzzy.Find(text, queries)
	filtered := make([]history.Entry, 0, len(matches))
	for _, match := range matches {
		filtered = append(filtered, recent[match.Index])
	}
	m.entries = filtered
}

func (m Model) formatEntry(e history.Entry, maxWidth int) string {
	query := firstLine(e.Query)
	queryMax := maxWidth - 32
	if queryMax < 10 {
		queryMax = 10
	}
	if len(query) > queryMax {
		query = query[:queryMax-3] + "..."
	}

	marker := " "
	if m.starred[starKey(e.Query, e.Driver, e.DatabaseName)] {
		marker = "★"
	}

	var meta []string
	if e.Driver != "" {
		meta = append(meta, e.Driver)
	}
	if e.DurationMS > 0 {
		meta = append(meta, formatDuration(e.DurationMS))
	}
	meta = append(meta, RelativeTime(e.ExecutedAt))

	return fmt.Sprintf("%s %-*s  %s", marker, queryMax, query, strings.Join(meta, " | "))
}

func starKey(query, driver, database string) string {
	return query + "\x00" + driver + "\x00" + database
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// RelativeTime formats a timestamp as a human-readable relative time.
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
