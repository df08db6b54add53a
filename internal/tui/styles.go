package tui

import (
	"github.com/charmbracelet/lipgloss"

	"weekly-menu-planner/internal/selector"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fde68a"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#94a3b8"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	previewStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#bae6fd")).
			PaddingLeft(2)

	progressFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0"))
	progressEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("#52525b"))
)

func noteStyle(l selector.Level) lipgloss.Style {
	switch l {
	case selector.LevelSuccess:
		return successStyle
	case selector.LevelWarning:
		return warningStyle
	case selector.LevelError:
		return errorStyle
	default:
		return accentStyle
	}
}
