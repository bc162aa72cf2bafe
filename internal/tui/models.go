package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/chis/regman/internal/registry"
)

// Shared color scheme
var (
	// Status colors
	ColorSuccess = lipgloss.Color("42")  // Green
	ColorWarning = lipgloss.Color("226") // Yellow
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("39")  // Blue
	ColorMuted   = lipgloss.Color("240") // Gray

	// UI element colors
	ColorSelected   = lipgloss.Color("212") // Pink
	ColorUnselected = lipgloss.Color("250") // Light gray
	ColorTitle      = lipgloss.Color("212") // Pink
)

// Shared styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTitle).
			MarginBottom(1)

	// Status badge styles
	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true)

	SuccessBadge = BadgeStyle.
			Background(ColorSuccess).
			Foreground(lipgloss.Color("0"))

	WarningBadge = BadgeStyle.
			Background(ColorWarning).
			Foreground(lipgloss.Color("0"))

	ErrorBadge = BadgeStyle.
			Background(ColorError).
			Foreground(lipgloss.Color("255"))

	InfoBadge = BadgeStyle.
			Background(ColorInfo).
			Foreground(lipgloss.Color("255"))

	// Menu item styles
	MenuKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSelected).
			Bold(true)

	MenuItemStyle = lipgloss.NewStyle().
			Foreground(ColorUnselected)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// Help text style
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)
)

// kindBadge returns a styled badge for a registry error kind.
// Not-found kinds are warnings, the rest are errors.
func kindBadge(kind registry.ErrorKind) string {
	switch kind {
	case registry.RepositoryNotFound, registry.TagNotFound:
		return WarningBadge.Render(kind.String())
	case 0:
		return ErrorBadge.Render("ERROR")
	default:
		return ErrorBadge.Render(kind.String())
	}
}

// formatMenuItem formats a numbered menu line
func formatMenuItem(key, label string) string {
	return fmt.Sprintf("%s %s", MenuKeyStyle.Render(key+"."), MenuItemStyle.Render(label))
}

// formatHelpLine formats a help line showing keybindings
func formatHelpLine(keys, description string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(ColorInfo).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(ColorMuted)

	return fmt.Sprintf("%s %s", keyStyle.Render(keys), descStyle.Render(description))
}

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         string
	Description string
}

// formatHelp formats multiple keybindings as a help footer
func formatHelp(bindings []KeyBinding) string {
	lines := make([]string, len(bindings))
	for i, binding := range bindings {
		lines[i] = formatHelpLine(binding.Key, binding.Description)
	}
	return HelpStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
