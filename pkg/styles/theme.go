// Package styles holds the lipgloss styles shared by console output.
package styles

import "github.com/charmbracelet/lipgloss"

// Adaptive colors keep messages readable on light and dark terminals.
var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#BDC3C7", Dark: "#44475A"}
)

var (
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Info    = lipgloss.NewStyle().Foreground(ColorInfo)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	Verbose = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)

	FilePath   = lipgloss.NewStyle().Bold(true)
	LineNumber = lipgloss.NewStyle().Foreground(ColorMuted)
	Highlight  = lipgloss.NewStyle().Foreground(ColorError).Underline(true)

	TableHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)
	TableCell   = lipgloss.NewStyle()
	TableTotal  = lipgloss.NewStyle().Bold(true)
	TableBorder = lipgloss.NewStyle().Foreground(ColorBorder)
)
