// Package theme holds the lipgloss styles schemadoc uses for console output:
// log level tags, progress bar colours and SQL syntax highlighting.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds lipgloss.Style values for every styled element of the console.
type Theme struct {
	Name string

	// Log levels
	LevelInfo     lipgloss.Style
	LevelDebug    lipgloss.Style
	LevelWarning  lipgloss.Style
	LevelError    lipgloss.Style
	LevelCritical lipgloss.Style

	// Progress bar fill colours
	ProgressFull  string
	ProgressEmpty string

	// SQL Syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// General
	DatabaseName lipgloss.Style
	MutedText    lipgloss.Style
}

// ---------------------------------------------------------------------------
// Theme definitions
// ---------------------------------------------------------------------------

// newDefaultTheme builds the Default dark theme.
func newDefaultTheme() *Theme {
	return &Theme{
		Name: "default",

		LevelInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7D7")),
		LevelDebug: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C586C0")),
		LevelWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCDC00")),
		LevelError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F44747")),
		LevelCritical: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000")),

		ProgressFull:  "#569CD6",
		ProgressEmpty: "#3C3C3C",

		// SQL Syntax highlighting
		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#569CD6")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CE9178")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B5CEA8")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#6A9955")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCDCAA")),
		SQLType: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4EC9B0")),
		SQLIdentifier: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CDCFE")),

		DatabaseName: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#DCDCAA")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")),
	}
}

// newLightTheme builds a light theme for bright terminals.
func newLightTheme() *Theme {
	return &Theme{
		Name: "light",

		LevelInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0087AF")),
		LevelDebug: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AF00DB")),
		LevelWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BF8803")),
		LevelError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E51400")),
		LevelCritical: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#C00000")),

		ProgressFull:  "#0451A5",
		ProgressEmpty: "#D4D4D4",

		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0000FF")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A31515")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#098658")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#008000")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#795E26")),
		SQLType: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#267F99")),
		SQLIdentifier: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#001080")),

		DatabaseName: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#795E26")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")),
	}
}

// newMonokaiTheme builds a Monokai-inspired dark theme.
func newMonokaiTheme() *Theme {
	return &Theme{
		Name: "monokai",

		LevelInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#66D9EF")),
		LevelDebug: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AE81FF")),
		LevelWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6DB74")),
		LevelError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F92672")),
		LevelCritical: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0040")),

		ProgressFull:  "#A6E22E",
		ProgressEmpty: "#49483E",

		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F92672")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6DB74")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AE81FF")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#75715E")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F92672")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E22E")),
		SQLType: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#66D9EF")).
			Italic(true),
		SQLIdentifier: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")),

		DatabaseName: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E6DB74")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#75715E")),
	}
}

// ---------------------------------------------------------------------------
// Registry and accessors
// ---------------------------------------------------------------------------

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
}

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}
