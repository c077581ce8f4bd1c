// Package theme provides the styling system for the sqlpilot terminal
// UI. Every visual element references a lipgloss.Style held in a Theme
// struct; themes are built from a small color palette so the whole
// look-and-feel can be swapped at runtime.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds lipgloss.Style values for every UI element.
type Theme struct {
	Name string

	// Schema explorer
	ExplorerBorder   lipgloss.Style
	ExplorerTitle    lipgloss.Style
	ExplorerDatabase lipgloss.Style
	ExplorerSchema   lipgloss.Style
	ExplorerTable    lipgloss.Style
	ExplorerView     lipgloss.Style
	ExplorerProc     lipgloss.Style
	ExplorerColumn   lipgloss.Style
	ExplorerDetail   lipgloss.Style
	ExplorerSelected lipgloss.Style

	// Editor
	EditorBorder     lipgloss.Style
	EditorLineNumber lipgloss.Style
	EditorCursor     lipgloss.Style
	EditorSelection  lipgloss.Style

	// Mode indicator in the status bar
	ModeNormal  lipgloss.Style
	ModeInsert  lipgloss.Style
	ModeVisual  lipgloss.Style
	ModeCommand lipgloss.Style

	// SQL syntax highlighting
	SQLKeyword  lipgloss.Style
	SQLString   lipgloss.Style
	SQLNumber   lipgloss.Style
	SQLComment  lipgloss.Style
	SQLFunction lipgloss.Style
	SQLDefault  lipgloss.Style

	// Results table
	ResultsBorder      lipgloss.Style
	ResultsHeader      lipgloss.Style
	ResultsCell        lipgloss.Style
	ResultsSelectedRow lipgloss.Style
	ResultsNull        lipgloss.Style

	// Status bar
	StatusBar        lipgloss.Style
	StatusBarSection lipgloss.Style
	StatusBarError   lipgloss.Style
	StatusBarSuccess lipgloss.Style

	// Completion popup
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
	CompletionKind     lipgloss.Style
	CompletionBorder   lipgloss.Style

	// Dialogs
	DialogBorder       lipgloss.Style
	DialogTitle        lipgloss.Style
	DialogButton       lipgloss.Style
	DialogButtonActive lipgloss.Style

	// General
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	ErrorText       lipgloss.Style
	SuccessText     lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// palette is the minimal color set a theme is built from.
type palette struct {
	name string

	fg     string // primary text
	bg     string // panel background
	muted  string // secondary text, line numbers, NULL cells
	border string // unfocused borders
	accent string // titles, keywords, focused borders
	green  string // tables, success
	yellow string // databases, functions, warnings
	purple string // views, numbers
	cyan   string // schemas, identifiers
	orange string // string literals
	red    string // errors
	selBg  string // selection background
	barBg  string // status bar background
	barFg  string // status bar text
}

func build(p palette) *Theme {
	border := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(p.border))
	focused := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(p.accent))
	selected := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(p.fg)).
		Background(lipgloss.Color(p.selBg))
	mode := func(bg string) lipgloss.Style {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.bg)).
			Background(lipgloss.Color(bg)).
			Padding(0, 1)
	}

	return &Theme{
		Name: p.name,

		ExplorerBorder: border,
		ExplorerTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.accent)).
			PaddingLeft(1),
		ExplorerDatabase: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.yellow)),
		ExplorerSchema: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.cyan)),
		ExplorerTable: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.green)),
		ExplorerView: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.purple)),
		ExplorerProc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.orange)),
		ExplorerColumn: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.fg)),
		ExplorerDetail: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.muted)).
			Italic(true),
		ExplorerSelected: selected,

		EditorBorder: border,
		EditorLineNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.muted)),
		EditorCursor: lipgloss.NewStyle().
			Reverse(true),
		EditorSelection: lipgloss.NewStyle().
			Background(lipgloss.Color(p.selBg)),

		ModeNormal:  mode(p.accent),
		ModeInsert:  mode(p.green),
		ModeVisual:  mode(p.purple),
		ModeCommand: mode(p.yellow),

		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.accent)),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.orange)),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.purple)),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(p.muted)),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.yellow)),
		SQLDefault: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.fg)),

		ResultsBorder: border,
		ResultsHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.accent)).
			Background(lipgloss.Color(p.bg)),
		ResultsCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.fg)),
		ResultsSelectedRow: selected,
		ResultsNull: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(p.muted)),

		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.barFg)).
			Background(lipgloss.Color(p.barBg)),
		StatusBarSection: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.barFg)).
			Background(lipgloss.Color(p.barBg)).
			Padding(0, 1),
		StatusBarError: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.bg)).
			Background(lipgloss.Color(p.red)).
			Padding(0, 1),
		StatusBarSuccess: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.bg)).
			Background(lipgloss.Color(p.green)).
			Padding(0, 1),

		CompletionItem: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.fg)).
			Background(lipgloss.Color(p.bg)).
			Padding(0, 1),
		CompletionSelected: selected.Padding(0, 1),
		CompletionKind: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.muted)).
			Background(lipgloss.Color(p.bg)).
			Italic(true),
		CompletionBorder: focused,

		DialogBorder: focused.Padding(1, 2),
		DialogTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.accent)),
		DialogButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.fg)).
			Background(lipgloss.Color(p.border)).
			Padding(0, 2),
		DialogButtonActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.bg)).
			Background(lipgloss.Color(p.accent)).
			Padding(0, 2),

		FocusedBorder:   focused,
		UnfocusedBorder: border,
		ErrorText: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.red)),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.green)),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.yellow)),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.muted)),
	}
}

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": build(palette{
		name:   "default",
		fg:     "#D4D4D4",
		bg:     "#1E1E1E",
		muted:  "#808080",
		border: "#3C3C3C",
		accent: "#569CD6",
		green:  "#6A9955",
		yellow: "#DCDCAA",
		purple: "#C586C0",
		cyan:   "#9CDCFE",
		orange: "#CE9178",
		red:    "#F44747",
		selBg:  "#264F78",
		barBg:  "#007ACC",
		barFg:  "#FFFFFF",
	}),
	"light": build(palette{
		name:   "light",
		fg:     "#1E1E1E",
		bg:     "#F3F3F3",
		muted:  "#A0A0A0",
		border: "#D4D4D4",
		accent: "#0451A5",
		green:  "#16825D",
		yellow: "#795E26",
		purple: "#AF00DB",
		cyan:   "#001080",
		orange: "#A31515",
		red:    "#E51400",
		selBg:  "#0060C0",
		barBg:  "#0060C0",
		barFg:  "#FFFFFF",
	}),
	"monokai": build(palette{
		name:   "monokai",
		fg:     "#F8F8F2",
		bg:     "#272822",
		muted:  "#75715E",
		border: "#49483E",
		accent: "#F92672",
		green:  "#A6E22E",
		yellow: "#E6DB74",
		purple: "#AE81FF",
		cyan:   "#66D9EF",
		orange: "#FD971F",
		red:    "#F92672",
		selBg:  "#49483E",
		barBg:  "#3E3D32",
		barFg:  "#F8F8F2",
	}),
}

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name, falling back to the default
// theme when no theme with that name exists.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names returns the available theme names.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	return names
}
