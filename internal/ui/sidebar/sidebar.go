// Package sidebar implements the schema explorer: a lazily loaded tree
// over the metadata cache with fuzzy filtering. Expanding an unloaded
// node emits a fetch request; children arrive later as messages stamped
// with the connection generation.
package sidebar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	appmsg "github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/schema"
	"github.com/pheller/sqlpilot/internal/theme"
)

// FetchMsg asks the app to load children for a tree node.
type FetchMsg struct {
	Path string
}

type treeNode struct {
	node     schema.Node
	depth    int
	expanded bool
	loaded   bool
	loading  bool
	children []*treeNode
	err      error
}

// Model is the schema explorer pane.
type Model struct {
	th      *theme.Theme
	roots   []*treeNode
	flat    []*treeNode
	cursor  int
	offset  int
	width   int
	height  int
	focused bool
	gen     uint64

	filtering bool
	filter    string
	matches   map[*treeNode]bool
}

// New creates an explorer pane.
func New(th *theme.Theme) Model {
	return Model{th: th}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Reset clears the tree, typically on connect or refresh. The
// generation stamps subsequent fetches so results from a previous
// connection are ignored.
func (m *Model) Reset(gen uint64) tea.Cmd {
	m.roots = nil
	m.flat = nil
	m.cursor = 0
	m.offset = 0
	m.gen = gen
	m.filtering = false
	m.filter = ""
	m.matches = nil
	return fetch("")
}

func fetch(path string) tea.Cmd {
	return func() tea.Msg { return FetchMsg{Path: path} }
}

// Update handles explorer messages.
func (m Model) Update(message tea.Msg) (Model, tea.Cmd) {
	switch message := message.(type) {
	case appmsg.ExplorerNodesMsg:
		if message.Gen != m.gen {
			return m, nil
		}
		m.attach(message.Path, message.Nodes, nil)
		m.flatten()

	case appmsg.ExplorerErrMsg:
		if message.Gen != m.gen {
			return m, nil
		}
		m.attach(message.Path, nil, message.Err)
		m.flatten()

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(message.String())
	}

	return m, nil
}

func (m Model) handleKey(key string) (Model, tea.Cmd) {
	if m.filtering {
		switch key {
		case "esc":
			m.filtering = false
			m.filter = ""
			m.matches = nil
			m.flatten()
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
		return m, nil
	}

	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}
	case "down", "j":
		if m.cursor < len(m.flat)-1 {
			m.cursor++
			m.ensureVisible()
		}
	case "enter", "right", "l", "space":
		return m.toggleOrSelect()
	case "left", "h":
		if m.cursor < len(m.flat) {
			node := m.flat[m.cursor]
			if node.expanded {
				node.expanded = false
				m.flatten()
			}
		}
	case "g", "home":
		m.cursor = 0
		m.offset = 0
	case "G", "end":
		m.cursor = len(m.flat) - 1
		m.ensureVisible()
	case "/":
		m.filtering = true
		m.filter = ""
	}
	return m, nil
}

// toggleOrSelect expands or collapses the current node. Tables and
// views emit a starter query; unloaded nodes request their children.
func (m *Model) toggleOrSelect() (Model, tea.Cmd) {
	if m.cursor >= len(m.flat) {
		return *m, nil
	}
	node := m.flat[m.cursor]

	if node.node.Leaf {
		return *m, nil
	}

	if node.expanded {
		node.expanded = false
		m.flatten()
		return *m, nil
	}

	switch node.node.Kind {
	case schema.KindTable, schema.KindView:
		// Expand the columns and drop a starter query in the editor.
		cmds := []tea.Cmd{insertQueryCmd(node.node)}
		node.expanded = true
		if !node.loaded && !node.loading {
			node.loading = true
			cmds = append(cmds, fetch(node.node.Path))
		}
		m.flatten()
		return *m, tea.Batch(cmds...)
	}

	node.expanded = true
	if !node.loaded && !node.loading {
		node.loading = true
		m.flatten()
		return *m, fetch(node.node.Path)
	}
	m.flatten()
	return *m, nil
}

func insertQueryCmd(n schema.Node) tea.Cmd {
	segs := strings.Split(n.Path, "/")
	name := quoteIdentifier(n.Name)
	// Qualify with the schema segment when it is meaningful.
	if len(segs) >= 3 && segs[1] != "public" && segs[1] != "main" && segs[1] != "" {
		name = quoteIdentifier(segs[1]) + "." + name
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 100;", name)
	return func() tea.Msg { return appmsg.InsertTextMsg{Text: query} }
}

// attach installs fetched children under the node at path.
func (m *Model) attach(path string, nodes []schema.Node, err error) {
	if path == "" {
		m.roots = nil
		for _, n := range nodes {
			m.roots = append(m.roots, &treeNode{node: n, expanded: len(nodes) == 1})
		}
		// A single database auto-expands and needs its children.
		return
	}

	target := m.find(path)
	if target == nil {
		return
	}
	target.loaded = true
	target.loading = false
	target.err = err
	target.children = nil
	for _, n := range nodes {
		target.children = append(target.children, &treeNode{node: n, depth: target.depth + 1})
	}
}

func (m *Model) find(path string) *treeNode {
	var walk func(nodes []*treeNode) *treeNode
	walk = func(nodes []*treeNode) *treeNode {
		for _, n := range nodes {
			if n.node.Path == path {
				return n
			}
			if found := walk(n.children); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(m.roots)
}

// PendingFetches returns paths of auto-expanded nodes that still need
// their children loaded.
func (m *Model) PendingFetches() []tea.Cmd {
	var cmds []tea.Cmd
	var walk func(nodes []*treeNode)
	walk = func(nodes []*treeNode) {
		for _, n := range nodes {
			if n.expanded && !n.loaded && !n.loading {
				n.loading = true
				cmds = append(cmds, fetch(n.node.Path))
			}
			walk(n.children)
		}
	}
	walk(m.roots)
	return cmds
}

func (m *Model) flatten() {
	m.flat = nil
	var walk func(nodes []*treeNode)
	walk = func(nodes []*treeNode) {
		for _, n := range nodes {
			if m.matches == nil || m.matches[n] {
				m.flat = append(m.flat, n)
			}
			if n.expanded {
				walk(n.children)
			}
		}
	}
	walk(m.roots)

	if m.cursor >= len(m.flat) {
		m.cursor = len(m.flat) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// applyFilter fuzzy-matches loaded node names against the filter text.
// Ancestors of a match stay visible so the tree keeps its shape.
func (m *Model) applyFilter() {
	if m.filter == "" {
		m.matches = nil
		m.flatten()
		return
	}

	var all []*treeNode
	var names []string
	var walk func(nodes []*treeNode)
	walk = func(nodes []*treeNode) {
		for _, n := range nodes {
			all = append(all, n)
			names = append(names, n.node.Name)
			if n.expanded {
				walk(n.children)
			}
		}
	}
	walk(m.roots)

	m.matches = make(map[*treeNode]bool)
	for _, match := range fuzzy.Find(m.filter, names) {
		n := all[match.Index]
		m.matches[n] = true
		for p := m.find(n.node.Parent); p != nil; p = m.find(p.node.Parent) {
			m.matches[p] = true
		}
	}
	m.flatten()
}

// View renders the explorer.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := m.th

	innerW := m.width - 2
	innerH := m.height - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	title := " Explorer "
	if m.filtering || m.filter != "" {
		title = " /" + m.filter + " "
	}
	titleLine := th.ExplorerTitle.Width(innerW).Render(title)

	if len(m.flat) == 0 {
		content := titleLine + "\n\n  No schema loaded.\n  :connect <name>"
		return m.borderStyle().Width(innerW).Height(innerH).Render(content)
	}

	contentHeight := innerH - 1
	if contentHeight < 1 {
		contentHeight = 1
	}
	end := m.offset + contentHeight
	if end > len(m.flat) {
		end = len(m.flat)
	}

	var lines []string
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderNode(m.flat[i], i == m.cursor))
	}

	content := titleLine + "\n" + strings.Join(lines, "\n")
	return m.borderStyle().Width(innerW).Height(innerH).Render(content)
}

func (m Model) renderNode(n *treeNode, selected bool) string {
	th := m.th
	indent := strings.Repeat("  ", n.depth)

	marker := "  "
	switch {
	case n.node.Leaf:
	case n.loading:
		marker = "… "
	case n.expanded:
		marker = "▼ "
	default:
		marker = "▶ "
	}

	label := n.node.Name
	if n.node.Detail != "" {
		label += " " + n.node.Detail
	}
	if n.err != nil {
		label += " (error)"
	}

	line := indent + marker + label
	maxW := m.width - 4
	if len(line) > maxW && maxW > 1 {
		line = line[:maxW-1] + "…"
	}
	for lipgloss.Width(line) < maxW {
		line += " "
	}

	if selected {
		return th.ExplorerSelected.Render(line)
	}

	switch n.node.Kind {
	case schema.KindDatabase:
		return th.ExplorerDatabase.Render(line)
	case schema.KindSchema:
		return th.ExplorerSchema.Render(line)
	case schema.KindTable:
		return th.ExplorerTable.Render(line)
	case schema.KindView:
		return th.ExplorerView.Render(line)
	case schema.KindProcedure:
		return th.ExplorerProc.Render(line)
	case schema.KindColumn, schema.KindParameter:
		return th.ExplorerColumn.Render(line)
	default:
		return th.ExplorerDetail.Render(line)
	}
}

func (m Model) borderStyle() lipgloss.Style {
	if m.focused {
		return m.th.FocusedBorder
	}
	return m.th.UnfocusedBorder
}

func (m *Model) ensureVisible() {
	contentHeight := m.height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+contentHeight {
		m.offset = m.cursor - contentHeight + 1
	}
}

// SetSize sets the explorer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Focus focuses the explorer.
func (m *Model) Focus() { m.focused = true }

// Blur unfocuses the explorer.
func (m *Model) Blur() { m.focused = false }

// Focused reports whether the explorer is focused.
func (m Model) Focused() bool { return m.focused }

// Filtering reports whether filter input is active, so the app routes
// keys here instead of to global bindings.
func (m Model) Filtering() bool { return m.filtering }

// quoteIdentifier wraps a SQL identifier in double quotes, doubling any
// embedded quotes.
func quoteIdentifier(s string) string {
	if !strings.ContainsAny(s, `" .-`) && strings.ToLower(s) == s {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
