package app

import (
	"context"
	"strings"
	"time"
)

const (
	thinkingMarker    = "Hugg is thinking…"
	sendFailureNotice = "Something went wrong while generating a response. Please try again."
)

// SendPipeline appends the user's message and an assistant placeholder,
// issues the inference call and resolves the placeholder by identity. One
// send may be in flight per session; a second Send during that window is a
// no-op.
type SendPipeline struct {
	client   *BackendClient
	sessions *SessionStore
	messages *MessageStore
	flights  *FlightGuard
	titles   *TitleCoordinator
	log      *Logger
}

func NewSendPipeline(client *BackendClient, sessions *SessionStore, messages *MessageStore, flights *FlightGuard, titles *TitleCoordinator, log *Logger) *SendPipeline {
	return &SendPipeline{
		client:   client,
		sessions: sessions,
		messages: messages,
		flights:  flights,
		titles:   titles,
		log:      log,
	}
}

// Send runs one optimistic exchange on the active session. Empty or
// whitespace-only prompts are rejected silently before any network call. A
// failed inference resolves the placeholder into a terminal error entry and
// is never retried automatically.
func (p *SendPipeline) Send(ctx context.Context, prompt string) {
	if strings.TrimSpace(prompt) == "" {
		return
	}
	sessionID := p.messages.SessionID()
	if sessionID == "" {
		return
	}

	_, _ = p.flights.TryDo("send:"+sessionID, func() error {
		// Snapshot before the send; the auto-title gate is evaluated
		// against this, not against post-send state.
		snapshot, _ := p.sessions.Get(sessionID)

		if _, ok := p.messages.Append(sessionID, RoleUser, prompt, StatusSent); !ok {
			return nil
		}
		placeholderID, ok := p.messages.Append(sessionID, RoleAssistant, thinkingMarker, StatusLoading)
		if !ok {
			return nil
		}

		response, err := p.client.SendPrompt(ctx, sessionID, prompt)
		if err != nil {
			p.log.Error("inference request failed", map[string]interface{}{
				"session": sessionID, "error": err.Error(),
			})
			p.messages.UpdateByID(placeholderID, sendFailureNotice, StatusError)
			return nil
		}

		p.messages.UpdateByID(placeholderID, response, StatusSent)
		p.refreshSessionMeta(sessionID, prompt)

		go p.titles.MaybeGenerate(context.WithoutCancel(ctx), snapshot, prompt, response)
		return nil
	})
}

// InFlight reports whether a send is pending for the session.
func (p *SendPipeline) InFlight(sessionID string) bool {
	return p.flights.InFlight("send:" + sessionID)
}

// refreshSessionMeta bumps the session's summary so it sorts to the top of
// the list; the next list fetch picks up the server's authoritative values.
func (p *SendPipeline) refreshSessionMeta(sessionID, prompt string) {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		session = ChatSession{ID: sessionID, Title: DefaultSessionTitle, CreatedAt: time.Now().UTC()}
	}
	session.UpdatedAt = time.Now().UTC()
	session.MessageCount += 2
	session.LastMessagePreview = prompt
	p.sessions.Upsert(session)
}
