package tui

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	Accent      lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Footer      lipgloss.Style
	InputBox    lipgloss.Style
	InputBoxF   lipgloss.Style
	Spinner     lipgloss.Style

	RoleYou lipgloss.Style
	RoleAI  lipgloss.Style
	RoleErr lipgloss.Style

	SessionActive lipgloss.Style
	SessionItem   lipgloss.Style
	SessionMeta   lipgloss.Style
}

func NewTheme() Theme {
	t := Theme{
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1A1A2E", Dark: "#EDEDF2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#8B8FA3"},
		Accent:      lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"},
		Error:       lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"},
		Border:      lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#3F3F5A"},
	}

	t.Pane = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.PaneFocused = t.Pane.BorderForeground(t.Accent)
	t.PaneTitle = lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.InputBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.InputBoxF = t.InputBox.BorderForeground(t.Accent)
	t.Spinner = lipgloss.NewStyle().Foreground(t.Accent)

	t.RoleYou = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.RoleAI = lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true)
	t.RoleErr = lipgloss.NewStyle().Foreground(t.Error).Bold(true)

	t.SessionActive = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.SessionItem = lipgloss.NewStyle().Foreground(t.TextPrimary)
	t.SessionMeta = lipgloss.NewStyle().Foreground(t.TextMuted)
	return t
}
