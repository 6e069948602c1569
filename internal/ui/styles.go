package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorAccent  = lipgloss.Color("#FFD700")
	colorSuccess = lipgloss.Color("#00E676")
	colorDanger  = lipgloss.Color("#FF5252")
	colorMuted   = lipgloss.Color("#8C8C8C")
)

// Status icons.
const (
	iconDone   = "✓"
	iconFailed = "✗"
	iconWarn   = "⚠"
	iconItem   = "◆"
	iconBridge = "⇄"
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleHeading = lipgloss.NewStyle().Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleDanger  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	styleCode    = lipgloss.NewStyle().Foreground(colorPrimary)
	styleBanner  = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2)
)
