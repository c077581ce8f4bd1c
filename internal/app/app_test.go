package app

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/session"
	"github.com/pheller/sqlpilot/internal/theme"
	"github.com/pheller/sqlpilot/internal/ui/sidebar"
)

func newTestApp() Model {
	sess := session.New(conn.NewManager(conn.Options{}))
	m := New(config.DefaultConfig(), theme.Default(), sess, nil, nil)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model.(Model)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+q":
		return tea.KeyMsg{Type: tea.KeyCtrlQ}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m Model, keys string) (Model, []tea.Msg) {
	t.Helper()
	var out []tea.Msg
	for _, r := range keys {
		model, cmd := m.Update(keyMsg(string(r)))
		m = model.(Model)
		out = append(out, collect(cmd)...)
	}
	return m, out
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	message := cmd()
	if batch, ok := message.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if message == nil {
		return nil
	}
	return []tea.Msg{message}
}

func TestInitialViewRenders(t *testing.T) {
	m := newTestApp()
	out := m.View()
	for _, want := range []string{"NORMAL", "disconnected", "no results"} {
		if !strings.Contains(out, want) {
			t.Fatalf("%q missing from view", want)
		}
	}
}

func TestInsertModeTypesIntoBuffer(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, "i")
	m, _ = press(t, m, "select")

	if got := m.sess.Editor().Text(); got != "select" {
		t.Fatalf("buffer = %q", got)
	}
	if !strings.Contains(m.View(), "INSERT") {
		t.Fatal("mode indicator not updated")
	}
}

func TestTypingProducesCompletionPopup(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, "i")
	m, msgs := press(t, m, "se")

	var compMsg *msg.CompletionMsg
	for _, message := range msgs {
		if cm, ok := message.(msg.CompletionMsg); ok {
			compMsg = &cm
		}
	}
	if compMsg == nil {
		t.Fatal("no completion message from typing")
	}
	if len(compMsg.Result.Candidates) == 0 {
		t.Fatal("no candidates for prefix se")
	}

	model, _ := m.Update(*compMsg)
	m = model.(Model)
	if !m.popup.Visible() {
		t.Fatal("popup not shown")
	}
}

func TestAcceptCompletionReplacesPrefix(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, "i")
	m, msgs := press(t, m, "se")

	for _, message := range msgs {
		if cm, ok := message.(msg.CompletionMsg); ok {
			model, _ := m.Update(cm)
			m = model.(Model)
		}
	}
	if !m.popup.Visible() {
		t.Fatal("popup not shown")
	}
	label, ok := m.popup.Selected()
	if !ok {
		t.Fatal("no selected candidate")
	}

	model, cmd := m.Update(keyMsg("tab"))
	m = model.(Model)
	for _, message := range collect(cmd) {
		model, _ := m.Update(message)
		m = model.(Model)
	}

	if got := m.sess.Editor().Text(); got != label {
		t.Fatalf("buffer = %q, want %q", got, label)
	}
	if m.popup.Visible() {
		t.Fatal("popup still open after accept")
	}
}

func TestRunCommandWithEmptyBuffer(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, ":run")
	model, cmd := m.Update(keyMsg("enter"))
	m = model.(Model)

	var status *msg.StatusMsg
	for _, message := range collect(cmd) {
		if sm, ok := message.(msg.StatusMsg); ok {
			status = &sm
		}
	}
	if status == nil || !status.IsError || !strings.Contains(status.Text, "nothing to run") {
		t.Fatalf("status = %+v", status)
	}
	_ = m
}

func TestUnknownCommandReportsError(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, ":frobnicate")
	_, cmd := m.Update(keyMsg("enter"))

	var status *msg.StatusMsg
	for _, message := range collect(cmd) {
		if sm, ok := message.(msg.StatusMsg); ok {
			status = &sm
		}
	}
	if status == nil || !strings.Contains(status.Text, "unknown command") {
		t.Fatalf("status = %+v", status)
	}
}

func TestFetchWithoutConnectionErrors(t *testing.T) {
	m := newTestApp()
	model, cmd := m.Update(sidebar.FetchMsg{Path: ""})
	m = model.(Model)
	if cmd == nil {
		t.Fatal("no fetch command")
	}
	msgs := collect(cmd)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", msgs)
	}
	if _, ok := msgs[0].(msg.ExplorerErrMsg); !ok {
		t.Fatalf("msg = %#v", msgs[0])
	}
	_ = m
}

func TestDirtyQuitAsksFirst(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, "i")
	m, _ = press(t, m, "x")
	model, _ := m.Update(keyMsg("esc"))
	m = model.(Model)

	model, cmd := m.Update(keyMsg("ctrl+q"))
	m = model.(Model)
	if cmd != nil {
		t.Fatal("quit should be deferred to the dialog")
	}
	if !m.quitDialog.Visible() {
		t.Fatal("quit dialog not shown")
	}
}

func TestCleanQuitIsImmediate(t *testing.T) {
	m := newTestApp()
	_, cmd := m.Update(keyMsg("ctrl+q"))
	if cmd == nil {
		t.Fatal("no quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("msg = %#v", cmd())
	}
}

func TestInsertTextMsgFillsEmptyBuffer(t *testing.T) {
	m := newTestApp()
	model, _ := m.Update(msg.InsertTextMsg{Text: "SELECT * FROM users LIMIT 100;"})
	m = model.(Model)

	if got := m.sess.Editor().Text(); got != "SELECT * FROM users LIMIT 100;" {
		t.Fatalf("buffer = %q", got)
	}
	if m.focused != msg.PaneEditor {
		t.Fatal("focus did not move to the editor")
	}
}

func TestTabCyclesFocusOutsideEditor(t *testing.T) {
	m := newTestApp()
	m.setFocus(msg.PaneResults)

	model, _ := m.Update(keyMsg("tab"))
	m = model.(Model)
	if m.focused != msg.PaneExplorer {
		t.Fatalf("focused = %v", m.focused)
	}

	// Tab from the editor indents instead of cycling.
	m.setFocus(msg.PaneEditor)
	model, _ = m.Update(keyMsg("tab"))
	m = model.(Model)
	if m.focused != msg.PaneEditor {
		t.Fatal("tab moved focus away from the editor")
	}
}

func TestStaleQueryDoneDropped(t *testing.T) {
	m := newTestApp()
	m.executing = true
	model, _ := m.Update(msg.QueryDoneMsg{Gen: 99})
	m = model.(Model)
	if !m.executing {
		t.Fatal("stale completion settled the execution")
	}
}

func TestHistoryCommandOpensBrowser(t *testing.T) {
	m := newTestApp()
	m, _ = press(t, m, ":history")
	model, _ := m.Update(keyMsg("enter"))
	m = model.(Model)
	if !m.historyView.Visible() {
		t.Fatal("history browser not shown")
	}
}
