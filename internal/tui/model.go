package tui

import (
	"context"
	"strings"
	"time"

	"hugg-cli/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
	focusChat
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// RefreshMsg asks the model to re-snapshot the stores. The application sends
// it when state changes outside a user intent (async titling, token expiry).
type RefreshMsg struct{}

type intentDoneMsg struct{ err error }

type olderLoadedMsg struct{ err error }

type spinMsg struct{}

// Model is the presentation collaborator: it renders store snapshots and
// dispatches user intents into the application. It owns scroll restoration
// after older history is prepended; the engine only guarantees ordering.
type Model struct {
	app   *app.Application
	theme Theme
	keys  keyMap

	width  int
	height int
	ready  bool

	focus      focusArea
	sidebarSel int
	renaming   bool
	statusText string
	spinnerPos int

	sessions []app.ChatSession
	messages []app.Message
	moreSess bool

	input  textarea.Model
	chatVP viewport.Model
}

func New(application *app.Application) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask Hugg something…"
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	return &Model{
		app:        application,
		theme:      NewTheme(),
		keys:       defaultKeyMap(),
		width:      100,
		height:     30,
		focus:      focusInput,
		statusText: "Connecting…",
		input:      ta,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.bootstrapCmd(), spinTick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatW, chatH := m.chatSize()
		if !m.ready {
			m.chatVP = viewport.New(chatW, chatH)
			m.ready = true
		} else {
			m.chatVP.Width = chatW
			m.chatVP.Height = chatH
		}
		m.input.SetWidth(max(10, m.width-m.sidebarWidth()-8))
		m.refreshViewport(true)
		return m, nil

	case RefreshMsg:
		m.snapshot()
		m.refreshViewport(false)
		return m, nil

	case intentDoneMsg:
		m.snapshot()
		m.refreshViewport(true)
		if msg.err != nil {
			m.statusText = "Request failed; try again"
		} else {
			m.statusText = "Ready"
		}
		return m, nil

	case olderLoadedMsg:
		before := m.chatVP.TotalLineCount()
		m.snapshot()
		m.refreshViewport(false)
		if added := m.chatVP.TotalLineCount() - before; added > 0 {
			// Keep the previously visible message under the cursor.
			m.chatVP.SetYOffset(m.chatVP.YOffset + added)
		}
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.sending() {
			// The pipeline appended the optimistic entries from the
			// command goroutine; pick them up mid-flight.
			m.snapshot()
			m.refreshViewport(true)
		}
		return m, spinTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.FocusNext):
		m.cycleFocus()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, m.intentCmd(func(ctx context.Context) error {
			return m.app.NewChat(ctx)
		})

	case key.Matches(msg, m.keys.DeleteChat):
		if len(m.sessions) == 0 {
			return m, nil
		}
		target := m.sessions[min(m.sidebarSel, len(m.sessions)-1)].ID
		return m, m.intentCmd(func(ctx context.Context) error {
			return m.app.DeleteChat(ctx, target)
		})

	case key.Matches(msg, m.keys.Rename):
		m.renaming = true
		m.focus = focusInput
		m.input.Reset()
		m.input.Placeholder = "New title…"
		m.input.Focus()
		return m, nil

	case key.Matches(msg, m.keys.ClearChat):
		return m, m.intentCmd(func(ctx context.Context) error {
			return m.app.ClearHistory(ctx)
		})

	case key.Matches(msg, m.keys.Enter):
		return m.onEnter()
	}

	switch m.focus {
	case focusSidebar:
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.sidebarSel > 0 {
				m.sidebarSel--
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.sidebarSel++
			if m.sidebarSel >= len(m.sessions) {
				m.sidebarSel = max(0, len(m.sessions)-1)
				if m.moreSess {
					return m, m.intentCmd(func(ctx context.Context) error {
						return m.app.LoadMoreSessions(ctx)
					})
				}
			}
			return m, nil
		}

	case focusChat:
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.chatVP.AtTop() {
				return m, m.loadOlderCmd()
			}
			m.chatVP.LineUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.chatVP.LineDown(1)
			return m, nil
		}
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) onEnter() (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusSidebar:
		if len(m.sessions) == 0 {
			return m, nil
		}
		target := m.sessions[min(m.sidebarSel, len(m.sessions)-1)].ID
		return m, m.intentCmd(func(ctx context.Context) error {
			return m.app.SelectChat(ctx, target)
		})

	case focusInput:
		val := strings.TrimSpace(m.input.Value())
		if val == "" {
			return m, nil
		}
		m.input.Reset()

		if m.renaming {
			m.renaming = false
			m.input.Placeholder = "Ask Hugg something…"
			target := m.app.Sessions.ActiveID()
			return m, m.intentCmd(func(ctx context.Context) error {
				return m.app.RenameChat(ctx, target, val)
			})
		}

		m.statusText = "Hugg is thinking…"
		return m, m.intentCmd(func(ctx context.Context) error {
			m.app.Send(ctx, val)
			return nil
		})
	}
	return m, nil
}

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}

	sidebarStyle := m.theme.Pane
	chatStyle := m.theme.Pane
	inputStyle := m.theme.InputBox
	switch m.focus {
	case focusSidebar:
		sidebarStyle = m.theme.PaneFocused
	case focusChat:
		chatStyle = m.theme.PaneFocused
	case focusInput:
		inputStyle = m.theme.InputBoxF
	}

	sidebar := sidebarStyle.
		Width(m.sidebarWidth()).
		Height(m.chatVP.Height).
		Render(m.theme.PaneTitle.Render("Chats") + "\n" +
			renderSessions(m.theme, m.sessions, m.app.Sessions.ActiveID(), m.sidebarSel, m.sidebarWidth(), m.moreSess))

	chat := chatStyle.
		Width(m.chatVP.Width + 2).
		Height(m.chatVP.Height).
		Render(m.chatVP.View())

	top := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat)
	input := inputStyle.Width(m.width - 4).Render(m.input.View())
	footer := m.theme.Footer.Render(m.statusText + "  ·  " + footerHelp)

	return lipgloss.JoinVertical(lipgloss.Left, top, input, footer)
}

func (m *Model) snapshot() {
	m.sessions = m.app.Sessions.Sessions()
	_, m.moreSess = m.app.Sessions.Cursor()
	m.messages = m.app.Messages.Messages()
	if m.sidebarSel >= len(m.sessions) {
		m.sidebarSel = max(0, len(m.sessions)-1)
	}
}

func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	frame := ""
	if m.sending() {
		frame = m.theme.Spinner.Render(spinnerFrames[m.spinnerPos])
	}
	m.chatVP.SetContent(renderMessages(m.theme, m.messages, m.chatVP.Width, frame))
	if gotoBottom {
		m.chatVP.GotoBottom()
	}
}

func (m *Model) sending() bool {
	active := m.app.Sessions.ActiveID()
	return active != "" && m.app.Sender.InFlight(active)
}

func (m *Model) cycleFocus() {
	switch m.focus {
	case focusInput:
		m.focus = focusSidebar
		m.input.Blur()
	case focusSidebar:
		m.focus = focusChat
	default:
		m.focus = focusInput
		m.input.Focus()
	}
}

func (m *Model) sidebarWidth() int {
	w := m.width / 4
	if w < 24 {
		w = 24
	}
	return w
}

func (m *Model) chatSize() (int, int) {
	return max(20, m.width-m.sidebarWidth()-8), max(5, m.height-6)
}

func (m *Model) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*m.app.Config.Timeout())
		defer cancel()
		return intentDoneMsg{err: m.app.Bootstrap(ctx)}
	}
}

func (m *Model) intentCmd(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*m.app.Config.Timeout())
		defer cancel()
		return intentDoneMsg{err: fn(ctx)}
	}
}

func (m *Model) loadOlderCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.app.Config.Timeout())
		defer cancel()
		return olderLoadedMsg{err: m.app.LoadOlderMessages(ctx)}
	}
}

func spinTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return spinMsg{} })
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
