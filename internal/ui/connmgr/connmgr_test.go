package connmgr

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/theme"
)

func saved() []config.SavedConnection {
	return []config.SavedConnection{
		{Name: "prod", Driver: "postgres", Host: "db.example.com", Port: 5432, Database: "app"},
		{Name: "local", Driver: "sqlite", File: "/tmp/app.db"},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestPickEmitsConnectRequest(t *testing.T) {
	m := New(theme.Default(), saved())
	m.Show()

	m, _ = m.Update(keyMsg("j"))
	m, cmd := m.Update(keyMsg("enter"))
	if cmd == nil {
		t.Fatal("no command from pick")
	}
	req, ok := cmd().(ConnectRequestMsg)
	if !ok || req.Connection.Name != "local" {
		t.Fatalf("msg = %#v", cmd())
	}
	if m.Visible() {
		t.Fatal("modal still open after pick")
	}
}

func TestListShowsNoCredentials(t *testing.T) {
	conns := saved()
	conns[0].Password = "hunter2"
	m := New(theme.Default(), conns)
	m.Show()
	m.SetSize(100, 40)

	if strings.Contains(m.View(), "hunter2") {
		t.Fatal("password leaked into the list view")
	}
}

func TestDeleteEmitsUpdate(t *testing.T) {
	m := New(theme.Default(), saved())
	m.Show()

	m, cmd := m.Update(keyMsg("d"))
	if cmd == nil {
		t.Fatal("no command from delete")
	}
	upd, ok := cmd().(ConnectionsUpdatedMsg)
	if !ok || len(upd.Connections) != 1 || upd.Connections[0].Name != "local" {
		t.Fatalf("msg = %#v", cmd())
	}
}

func TestNewConnectionForm(t *testing.T) {
	m := New(theme.Default(), nil)
	m.Show()

	m, _ = m.Update(keyMsg("n"))
	for _, r := range "staging" {
		m, _ = m.Update(keyMsg(string(r)))
	}
	m, _ = m.Update(keyMsg("tab"))
	for _, r := range "mysql" {
		m, _ = m.Update(keyMsg(string(r)))
	}

	m, cmd := m.Update(keyMsg("ctrl+s"))
	if cmd == nil {
		t.Fatal("no command from save")
	}
	upd := cmd().(ConnectionsUpdatedMsg)
	if len(upd.Connections) != 1 {
		t.Fatalf("connections = %+v", upd.Connections)
	}
	if c := upd.Connections[0]; c.Name != "staging" || c.Driver != "mysql" {
		t.Fatalf("saved = %+v", c)
	}
}

func TestEscClosesList(t *testing.T) {
	m := New(theme.Default(), saved())
	m.Show()

	m, _ = m.Update(keyMsg("esc"))
	if m.Visible() {
		t.Fatal("esc did not close the modal")
	}
}

func TestUnknownDriverTestFails(t *testing.T) {
	cmd := testConnection(config.SavedConnection{Driver: "nosuchdriver"})
	res := cmd().(testResultMsg)
	if res.err == nil {
		t.Fatal("no error for unknown driver")
	}
}
