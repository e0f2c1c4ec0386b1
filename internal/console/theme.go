package console

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the console.
type Theme struct {
	Title        lipgloss.Style
	Status       lipgloss.Style
	Outgoing     lipgloss.Style
	Reply        lipgloss.Style
	Notification lipgloss.Style
	System       lipgloss.Style
	Frame        lipgloss.Style
	Help         lipgloss.Style
	Primary      lipgloss.Color
	Muted        lipgloss.Color
	Border       lipgloss.Color
}

// Default is the default theme.
var Default = Theme{
	// Colors
	Primary: lipgloss.Color("#7c3aed"),
	Muted:   lipgloss.Color("#737373"),
	Border:  lipgloss.Color("#404040"),

	// Text styles
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")).
		Background(lipgloss.Color("#7c3aed")).
		Padding(0, 1),
	Status: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	Outgoing: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a78bfa")).
		Bold(true),
	Reply: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#fafafa")),
	Notification: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f59e0b")),
	System: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")).
		Italic(true),
	Help: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")),

	// Component styles
	Frame: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")),
}
