package tui

import (
	"fmt"
	"strings"

	"hugg-cli/internal/app"

	"github.com/charmbracelet/lipgloss"
)

// renderMessages lays out the timeline for the chat viewport. Pure except for
// lipgloss styling so it stays testable.
func renderMessages(theme Theme, messages []app.Message, width int, spinnerFrame string) string {
	if len(messages) == 0 {
		return theme.SessionMeta.Render("No messages yet. Say something.")
	}

	body := lipgloss.NewStyle().Width(max(10, width))
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(messageHeader(theme, msg))
		b.WriteString("\n")
		content := msg.Content
		if msg.Status == app.StatusLoading && spinnerFrame != "" {
			content = spinnerFrame + " " + content
		}
		b.WriteString(body.Render(content))
		b.WriteString("\n")
	}
	return b.String()
}

func messageHeader(theme Theme, msg app.Message) string {
	stamp := theme.SessionMeta.Render(msg.Timestamp.Local().Format("15:04"))
	switch {
	case msg.Status == app.StatusError:
		return theme.RoleErr.Render("Hugg (failed)") + " " + stamp
	case msg.Role == app.RoleUser:
		return theme.RoleYou.Render("You") + " " + stamp
	default:
		return theme.RoleAI.Render("Hugg") + " " + stamp
	}
}

// renderSessions lays out the sidebar. selected is the highlighted row, which
// may differ from the active session while the user is browsing.
func renderSessions(theme Theme, sessions []app.ChatSession, activeID string, selected int, width int, hasMore bool) string {
	if len(sessions) == 0 {
		return theme.SessionMeta.Render("No chats yet.")
	}

	var b strings.Builder
	for i, session := range sessions {
		title := truncateTitle(session.Title, max(8, width-4))
		line := "  " + title
		if session.ID == activeID {
			line = "• " + title
		}
		style := theme.SessionItem
		if session.ID == activeID {
			style = theme.SessionActive
		}
		if i == selected {
			line = "> " + line[2:]
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		b.WriteString(theme.SessionMeta.Render(fmt.Sprintf("    %d msgs", session.MessageCount)))
		b.WriteString("\n")
	}
	if hasMore {
		b.WriteString(theme.SessionMeta.Render("  … more"))
	}
	return b.String()
}

func truncateTitle(title string, width int) string {
	if title == "" {
		title = app.DefaultSessionTitle
	}
	runes := []rune(title)
	if len(runes) <= width {
		return title
	}
	if width <= 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
