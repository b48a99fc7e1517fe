package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple

	// Status colors
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Change state colors
	ColorNew       = lipgloss.Color("#10B981") // Green
	ColorMerged    = lipgloss.Color("#8B5CF6") // Purple
	ColorAbandoned = lipgloss.Color("#6B7280") // Gray

	// Text colors
	ColorTextMuted  = lipgloss.Color("#9CA3AF") // Gray
	ColorTextBright = lipgloss.Color("#FFFFFF") // White
)

// Message styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)
)

// Text styles
var (
	BoldStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTextBright)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)
)

// Status styles for change states
var (
	StatusNewStyle = lipgloss.NewStyle().
			Foreground(ColorNew).
			Bold(true)

	StatusMergedStyle = lipgloss.NewStyle().
				Foreground(ColorMerged).
				Bold(true)

	StatusAbandonedStyle = lipgloss.NewStyle().
				Foreground(ColorAbandoned)
)

// GetStatusStyle returns the appropriate style for a review state
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case "NEW":
		return StatusNewStyle
	case "MERGED", "SUBMITTED":
		return StatusMergedStyle
	case "ABANDONED":
		return StatusAbandonedStyle
	default:
		return DimStyle
	}
}
