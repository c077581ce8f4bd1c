// Package results renders query results: a virtualized table for
// SELECTs, status text for everything else, and CSV/JSON export of the
// buffered rows. "/" filters the buffered rows in place.
package results

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/theme"
)

// Model is the results pane.
type Model struct {
	th        *theme.Theme
	table     table.Model
	columns   []driver.ColumnMeta
	tableCols []table.Column
	rows      [][]string // full buffered result
	view      [][]string // rows after the filter, in result order
	totalRows int64
	truncated bool
	viewTop   int
	width     int
	height    int
	focused   bool
	loading   bool
	filtering bool
	filter    string
	message   string
	queryTime time.Duration
	err       error
}

// New creates an empty results pane.
func New(th *theme.Theme) Model {
	t := table.New(
		table.WithFocused(false),
		table.WithHeight(10),
	)
	return Model{th: th, table: t, totalRows: -1}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key navigation while focused.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	if key, ok := message.(tea.KeyMsg); ok {
		if next, handled := m.handleFilterKey(key.String()); handled {
			return next, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(message)
	m.updateViewTop()
	return m, cmd
}

func (m Model) handleFilterKey(key string) (Model, bool) {
	if m.filtering {
		switch key {
		case "esc":
			m.filtering = false
			m.filter = ""
			m.applyFilter()
		case "enter":
			m.filtering = false
		case "backspace":
			if len(m.filter) > 0 {
				m.filter = m.filter[:len(m.filter)-1]
				m.applyFilter()
			}
		default:
			if len(key) == 1 {
				m.filter += key
				m.applyFilter()
			}
		}
		return m, true
	}

	switch key {
	case "/":
		if len(m.rows) > 0 {
			m.filtering = true
			m.filter = ""
			m.applyFilter()
		}
		return m, true
	case "esc":
		if m.filter != "" {
			m.filter = ""
			m.applyFilter()
			return m, true
		}
	}
	return m, false
}

// applyFilter fuzzy-matches the filter text against each row's joined
// cell text, keeping matches in result order.
func (m *Model) applyFilter() {
	if m.filter == "" {
		m.view = m.rows
	} else {
		joined := make([]string, len(m.rows))
		for i, row := range m.rows {
			joined[i] = strings.Join(row, "\t")
		}
		idx := make([]int, 0, len(m.rows))
		for _, match := range fuzzy.Find(m.filter, joined) {
			idx = append(idx, match.Index)
		}
		sort.Ints(idx)
		view := make([][]string, len(idx))
		for i, j := range idx {
			view[i] = m.rows[j]
		}
		m.view = view
	}

	tableRows := make([]table.Row, len(m.view))
	for i, row := range m.view {
		tableRows[i] = table.Row(row)
	}
	m.table.SetRows(tableRows)
	m.table.SetCursor(0)
	m.viewTop = 0
}

// Filtering reports whether filter input is active, so the app routes
// keys here instead of to global bindings.
func (m Model) Filtering() bool { return m.filtering }

// SetResult loads a completed query result.
func (m *Model) SetResult(result *driver.QueryResult) {
	m.err = nil
	m.loading = false
	m.queryTime = result.Duration
	m.truncated = result.Truncated
	m.viewTop = 0
	m.filtering = false
	m.filter = ""

	if !result.IsSelect {
		m.message = result.Message
		m.columns = nil
		m.rows = nil
		m.view = nil
		m.totalRows = result.RowCount
		m.table.SetRows(nil)
		m.table.SetColumns(nil)
		return
	}

	m.message = ""
	m.columns = result.Columns
	m.rows = result.Rows
	m.view = result.Rows
	m.totalRows = result.RowCount
	if m.totalRows < 0 {
		m.totalRows = int64(len(result.Rows))
	}
	m.rebuildTable()
}

// Clear empties the pane.
func (m *Model) Clear() {
	m.err = nil
	m.loading = false
	m.message = ""
	m.columns = nil
	m.rows = nil
	m.view = nil
	m.totalRows = -1
	m.truncated = false
	m.filtering = false
	m.filter = ""
	m.queryTime = 0
	m.table.SetRows(nil)
	m.table.SetColumns(nil)
}

// SetLoading flips the executing indicator.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.err = nil
		m.message = ""
	}
}

// SetError shows a query failure.
func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
}

// SetSize updates the pane dimensions.
func (m *Model) SetSize(w, h int) {
	if m.width == w && m.height == h {
		return
	}
	m.width = w
	m.height = h

	innerW := w - 2
	if innerW < 0 {
		innerW = 0
	}
	innerH := h - 3
	if innerH < 1 {
		innerH = 1
	}
	m.table.SetWidth(innerW)
	m.table.SetHeight(innerH)

	if len(m.columns) > 0 {
		m.tableCols = autoSizeColumns(m.columns, m.rows, m.contentWidth())
		m.table.SetColumns(m.tableCols)
	}
}

// Focus gives the pane keyboard focus.
func (m *Model) Focus() {
	m.focused = true
	m.table.Focus()
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.focused = false
	m.table.Blur()
}

// Focused reports whether the pane has focus.
func (m Model) Focused() bool { return m.focused }

// Columns returns the current column metadata, for export.
func (m Model) Columns() []driver.ColumnMeta { return m.columns }

// Rows returns the buffered rows, for export.
func (m Model) Rows() [][]string { return m.rows }

// HasRows reports whether there is anything to export.
func (m Model) HasRows() bool { return len(m.rows) > 0 }

// View renders the pane.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := m.th

	contentHeight := m.height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}

	switch {
	case m.loading && len(m.rows) == 0:
		return m.wrapBorder(th.MutedText.Render("  executing..."), contentHeight)
	case m.err != nil:
		return m.wrapBorder(th.ErrorText.Render("  "+m.err.Error()), contentHeight)
	case m.message != "" && len(m.rows) == 0:
		return m.wrapBorder(th.SuccessText.Render("  "+m.message), contentHeight)
	case len(m.columns) == 0 && len(m.rows) == 0:
		return m.wrapBorder(th.MutedText.Render("  no results, :run executes the buffer"), contentHeight)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, m.renderTable(), m.buildFooter())
	return m.wrapBorder(content, 0)
}

func (m *Model) rebuildTable() {
	m.tableCols = autoSizeColumns(m.columns, m.rows, m.contentWidth())
	m.table.SetColumns(m.tableCols)

	tableRows := make([]table.Row, len(m.view))
	for i, row := range m.view {
		tableRows[i] = table.Row(row)
	}
	m.table.SetRows(tableRows)
	m.table.SetCursor(0)
}

func (m *Model) contentWidth() int {
	w := m.width - 2
	if w < 10 {
		w = 10
	}
	return w
}

func (m Model) visibleDataHeight() int {
	h := m.height - 5 // borders, footer, header, header rule
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) updateViewTop() {
	cursor := m.table.Cursor()
	visH := m.visibleDataHeight()
	if cursor < m.viewTop {
		m.viewTop = cursor
	}
	if cursor >= m.viewTop+visH {
		m.viewTop = cursor - visH + 1
	}
	if m.viewTop < 0 {
		m.viewTop = 0
	}
}

func (m Model) renderTable() string {
	if len(m.tableCols) == 0 {
		return ""
	}
	th := m.th
	contentW := m.contentWidth()
	visH := m.visibleDataHeight()

	var sb strings.Builder
	sb.WriteString(m.renderHeader(contentW))
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("─", contentW))
	sb.WriteByte('\n')

	cursor := m.table.Cursor()
	for i := 0; i < visH; i++ {
		rowIdx := m.viewTop + i
		if rowIdx >= len(m.view) {
			sb.WriteString(strings.Repeat(" ", contentW))
		} else {
			sb.WriteString(m.renderDataRow(th, rowIdx, rowIdx == cursor, contentW))
		}
		if i < visH-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m Model) renderHeader(totalWidth int) string {
	th := m.th
	var sb strings.Builder
	used := 0
	for _, col := range m.tableCols {
		text := padRight(runewidth.Truncate(col.Title, col.Width, "…"), col.Width+2)
		sb.WriteString(th.ResultsHeader.Render(text))
		used += col.Width + 2
	}
	if used < totalWidth {
		sb.WriteString(th.ResultsHeader.Render(strings.Repeat(" ", totalWidth-used)))
	}
	return sb.String()
}

func (m Model) renderDataRow(th *theme.Theme, rowIdx int, selected bool, totalWidth int) string {
	row := m.view[rowIdx]
	var sb strings.Builder
	used := 0
	for j, col := range m.tableCols {
		var val string
		if j < len(row) {
			val = row[j]
		}

		style := th.ResultsCell
		switch {
		case selected:
			style = th.ResultsSelectedRow
		case val == "NULL":
			style = th.ResultsNull
		}

		text := padRight(runewidth.Truncate(val, col.Width, "…"), col.Width+2)
		sb.WriteString(style.Render(text))
		used += col.Width + 2
	}
	if used < totalWidth {
		fill := th.ResultsCell
		if selected {
			fill = th.ResultsSelectedRow
		}
		sb.WriteString(fill.Render(strings.Repeat(" ", totalWidth-used)))
	}
	return sb.String()
}

func padRight(s string, w int) string {
	sw := runewidth.StringWidth(s)
	if sw >= w {
		return s
	}
	return s + strings.Repeat(" ", w-sw)
}

func (m Model) buildFooter() string {
	var parts []string
	switch {
	case m.filtering || m.filter != "":
		parts = append(parts, "/"+m.filter, fmt.Sprintf("%d of %d rows", len(m.view), len(m.rows)))
	case m.totalRows >= 0:
		parts = append(parts, fmt.Sprintf("%d rows", m.totalRows))
	}
	if m.truncated {
		parts = append(parts, "truncated")
	}
	if m.queryTime > 0 {
		parts = append(parts, formatDuration(m.queryTime))
	}
	if m.loading {
		parts = append(parts, "loading...")
	}
	if len(parts) == 0 {
		return ""
	}
	return m.th.MutedText.Render("  " + strings.Join(parts, " | "))
}

func (m Model) wrapBorder(content string, minHeight int) string {
	border := m.th.UnfocusedBorder
	if m.focused {
		border = m.th.FocusedBorder
	}

	innerW := m.width - 2
	if innerW < 0 {
		innerW = 0
	}
	style := border.Width(innerW)
	if minHeight > 0 {
		style = style.Height(minHeight)
	}
	return style.Render(content)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d us", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%.1f min", d.Minutes())
	}
}

// autoSizeColumns calculates column widths from header names and a
// sample of the data, scaling down proportionally when the total
// exceeds the available width.
func autoSizeColumns(cols []driver.ColumnMeta, rows [][]string, maxWidth int) []table.Column {
	if len(cols) == 0 {
		return nil
	}
	numCols := len(cols)

	widths := make([]int, numCols)
	for i, c := range cols {
		widths[i] = len(c.Name)
		if widths[i] < 4 {
			widths[i] = 4
		}
	}

	sampleSize := len(rows)
	if sampleSize > 100 {
		sampleSize = 100
	}
	for i := 0; i < sampleSize; i++ {
		for j := 0; j < numCols && j < len(rows[i]); j++ {
			if l := len(rows[i][j]); l > widths[j] {
				widths[j] = l
			}
		}
	}

	const maxColWidth = 50
	for i := range widths {
		if widths[i] > maxColWidth {
			widths[i] = maxColWidth
		}
	}

	paddingWidth := numCols * 2
	totalDesired := paddingWidth
	for _, w := range widths {
		totalDesired += w
	}

	available := maxWidth - paddingWidth
	if available < numCols {
		available = numCols
	}
	if totalDesired > maxWidth {
		totalColWidth := totalDesired - paddingWidth
		for i := range widths {
			widths[i] = (widths[i] * available) / totalColWidth
			if widths[i] < 2 {
				widths[i] = 2
			}
		}
	}

	tableCols := make([]table.Column, numCols)
	for i, c := range cols {
		tableCols[i] = table.Column{Title: c.Name, Width: widths[i]}
	}
	return tableCols
}
