// Package style provides terminal styling for CLI output.
// Lipgloss degrades to plain text automatically when stdout is not a
// terminal or NO_COLOR is set, so callers can render unconditionally.
package style

import "github.com/charmbracelet/lipgloss"

// Core styles used across commands.
var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Common output prefixes.
var (
	CheckPrefix   = Success.Render("✓")
	CrossPrefix   = Error.Render("✗")
	WarningPrefix = Warning.Render("⚠")
	ArrowPrefix   = Dim.Render("→")
)
