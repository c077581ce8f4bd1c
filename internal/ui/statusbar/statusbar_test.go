package statusbar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/editor"
	appmsg "github.com/pheller/sqlpilot/internal/msg"
	"github.com/pheller/sqlpilot/internal/theme"
)

func TestDisconnectedByDefault(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(80)

	if !strings.Contains(m.View(), "disconnected") {
		t.Fatalf("view = %q", m.View())
	}
}

func TestConnectedShowsTarget(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(100)

	m, _ = m.Update(appmsg.ConnectedMsg{
		Driver:   "postgres",
		Display:  "postgres://db.example.com:5432/app",
		Database: "app",
	})

	out := m.View()
	if !strings.Contains(out, "postgres://db.example.com:5432/app") {
		t.Fatalf("view = %q", out)
	}

	m, _ = m.Update(appmsg.DisconnectMsg{})
	if !strings.Contains(m.View(), "disconnected") {
		t.Fatal("disconnect not reflected")
	}
}

func TestModeIndicator(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(80)

	m.SetEditorState(editor.ModeInsert, 3, 7, true)
	out := m.View()
	if !strings.Contains(out, "INSERT") {
		t.Fatalf("view = %q", out)
	}
	if !strings.Contains(out, "3:7") {
		t.Fatal("cursor position missing")
	}
	if !strings.Contains(out, "[+]") {
		t.Fatal("dirty marker missing")
	}
}

func TestQueryDoneShowsRowCount(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(100)

	start := time.Now()
	m, cmd := m.Update(appmsg.QueryDoneMsg{
		Exec: &conn.Execution{
			StartedAt:  start,
			FinishedAt: start.Add(42 * time.Millisecond),
			Result:     &driver.QueryResult{RowCount: 1500},
		},
	})
	if cmd == nil {
		t.Fatal("no clear timer scheduled")
	}

	out := m.View()
	if !strings.Contains(out, "1.5k rows") {
		t.Fatalf("view = %q", out)
	}
	if !strings.Contains(out, "42ms") {
		t.Fatalf("duration missing: %q", out)
	}
}

func TestQueryErrorShown(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(120)

	m, _ = m.Update(appmsg.QueryDoneMsg{Err: errors.New("syntax error near FROM")})
	if !strings.Contains(m.View(), "syntax error near FROM") {
		t.Fatalf("view = %q", m.View())
	}

	m, _ = m.Update(appmsg.ClearStatusMsg{})
	if strings.Contains(m.View(), "syntax error") {
		t.Fatal("error not cleared")
	}
}

func TestStatusMessage(t *testing.T) {
	m := New(theme.Default())
	m.SetSize(80)

	m, _ = m.Update(appmsg.StatusMsg{Text: "saved query.sql"})
	if !strings.Contains(m.View(), "saved query.sql") {
		t.Fatalf("view = %q", m.View())
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatDuration(500 * time.Microsecond); got != "500µs" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := formatDuration(2500 * time.Millisecond); got != "2.5s" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := formatCount(999); got != "999" {
		t.Fatalf("formatCount = %q", got)
	}
	if got := formatCount(2_500_000); got != "2.5M" {
		t.Fatalf("formatCount = %q", got)
	}
	if got := truncate("hello world", 8); got != "hello..." {
		t.Fatalf("truncate = %q", got)
	}
}
