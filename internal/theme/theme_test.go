package theme

import (
	"sort"
	"testing"
)

func TestThemesAllRegistered(t *testing.T) {
	expected := []string{"default", "light", "monokai"}
	for _, name := range expected {
		if _, ok := Themes[name]; !ok {
			t.Errorf("expected theme %q to be registered", name)
		}
	}
}

func TestThemeNamesMatch(t *testing.T) {
	for name, th := range Themes {
		if th.Name != name {
			t.Errorf("theme registered as %q has Name=%q", name, th.Name)
		}
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if d == nil {
		t.Fatal("Default() returned nil")
	}
	if d.Name != "default" {
		t.Errorf("Default().Name = %q, want %q", d.Name, "default")
	}
}

func TestGetExistingTheme(t *testing.T) {
	for _, name := range []string{"default", "light", "monokai"} {
		t.Run(name, func(t *testing.T) {
			th := Get(name)
			if th == nil {
				t.Fatalf("Get(%q) returned nil", name)
			}
			if th.Name != name {
				t.Errorf("Get(%q).Name = %q", name, th.Name)
			}
		})
	}
}

func TestGetUnknownFallsBackToDefault(t *testing.T) {
	for _, name := range []string{"nonexistent", ""} {
		th := Get(name)
		if th == nil {
			t.Fatalf("Get(%q) returned nil", name)
		}
		if th.Name != "default" {
			t.Errorf("Get(%q).Name = %q, want default", name, th.Name)
		}
	}
}

func TestNames(t *testing.T) {
	names := Names()
	sort.Strings(names)
	want := []string{"default", "light", "monokai"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestStylesInitialized(t *testing.T) {
	for name, th := range Themes {
		t.Run(name, func(t *testing.T) {
			pairs := []struct {
				label string
				out   string
			}{
				{"SQLKeyword", th.SQLKeyword.Render("SELECT")},
				{"SQLString", th.SQLString.Render("'hello'")},
				{"SQLComment", th.SQLComment.Render("-- note")},
				{"ModeNormal", th.ModeNormal.Render("NORMAL")},
				{"ModeInsert", th.ModeInsert.Render("INSERT")},
				{"ModeVisual", th.ModeVisual.Render("VISUAL")},
				{"ModeCommand", th.ModeCommand.Render("COMMAND")},
				{"StatusBar", th.StatusBar.Render("status")},
				{"StatusBarError", th.StatusBarError.Render("err")},
				{"ExplorerSelected", th.ExplorerSelected.Render("sel")},
				{"CompletionItem", th.CompletionItem.Render("item")},
				{"CompletionSelected", th.CompletionSelected.Render("sel")},
				{"ResultsHeader", th.ResultsHeader.Render("hdr")},
				{"ResultsNull", th.ResultsNull.Render("NULL")},
				{"DialogBorder", th.DialogBorder.Render("dlg")},
				{"FocusedBorder", th.FocusedBorder.Render("focused")},
				{"ErrorText", th.ErrorText.Render("error")},
				{"MutedText", th.MutedText.Render("muted")},
			}
			for _, p := range pairs {
				if p.out == "" {
					t.Errorf("%s: %s rendered empty", name, p.label)
				}
			}
		})
	}
}

func TestThemesAreDistinct(t *testing.T) {
	d := Themes["default"]
	l := Themes["light"]
	m := Themes["monokai"]

	if d == l || d == m || l == m {
		t.Error("themes share a pointer")
	}
}
