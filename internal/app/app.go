package app

import (
	"context"
	"errors"
	"time"
)

// Application composes the stores, synchronizers and pipelines around one
// backend client. The presentation layer dispatches user intents through its
// methods and renders snapshots taken from the stores.
type Application struct {
	Config   Config
	Logger   *Logger
	Client   *BackendClient
	Tokens   *StaticTokenSource
	Flights  *FlightGuard
	Sessions *SessionStore
	Messages *MessageStore

	SessionSync *SessionSync
	Timeline    *TimelineSync
	Sender      *SendPipeline
	Titles      *TitleCoordinator
	Init        *Bootstrapper

	// OnChange fires when state mutates outside a user intent (async
	// titling, token expiry) so the UI can re-render.
	OnChange func()
}

func NewApplication(cfg Config) *Application {
	logger := NewLogger(DefaultLogWriter())
	tokens := NewStaticTokenSource(cfg.APIToken, cfg.UserID)
	client := NewBackendClient(cfg.BackendURL, tokens, cfg.Timeout())

	flights := NewFlightGuard()
	sessions := NewSessionStore(DefaultTitledSetPath())
	messages := NewMessageStore(cfg.HistoryPageSize)

	sessionSync := NewSessionSync(client, sessions, flights, logger, cfg.SessionPageSize)
	timeline := NewTimelineSync(client, messages, sessions, flights, logger, cfg.HistoryPageSize)
	titles := NewTitleCoordinator(client, sessions, sessionSync, logger)
	sender := NewSendPipeline(client, sessions, messages, flights, titles, logger)
	boot := NewBootstrapper(flights, sessions, messages, sessionSync, timeline, client, logger)

	a := &Application{
		Config:      cfg,
		Logger:      logger,
		Client:      client,
		Tokens:      tokens,
		Flights:     flights,
		Sessions:    sessions,
		Messages:    messages,
		SessionSync: sessionSync,
		Timeline:    timeline,
		Sender:      sender,
		Titles:      titles,
		Init:        boot,
	}

	client.OnAuthExpired = func() {
		tokens.Clear()
		logger.Warn("bearer token expired", nil)
		a.notify()
	}
	titles.OnChange = func() { a.notify() }
	return a
}

func (a *Application) notify() {
	if a.OnChange != nil {
		a.OnChange()
	}
}

// Bootstrap runs the once-per-user initialization sequence.
func (a *Application) Bootstrap(ctx context.Context) error {
	return a.Init.Run(ctx, a.Tokens.UserID())
}

// SelectChat makes sessionID the active session and loads its history. A
// history fetch rejected with 403 means the session does not belong to this
// user; recovery is a fresh session.
func (a *Application) SelectChat(ctx context.Context, sessionID string) error {
	err := a.Timeline.Activate(ctx, sessionID)
	if errors.Is(err, ErrForbidden) {
		a.Logger.Warn("session not owned by user, starting fresh", map[string]interface{}{
			"session": sessionID,
		})
		a.Sessions.Remove(sessionID)
		return a.NewChat(ctx)
	}
	return err
}

// NewChat creates a session with the default title and makes it active.
func (a *Application) NewChat(ctx context.Context) error {
	created, err := a.Client.CreateSession(ctx, DefaultSessionTitle)
	if err != nil {
		a.Logger.Error("failed to create session", map[string]interface{}{"error": err.Error()})
		return err
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	a.Sessions.Upsert(created)
	return a.Timeline.Activate(ctx, created.ID)
}

// DeleteChat removes the session. When the active session is deleted the
// most recent remaining one takes over, or a fresh session is created.
func (a *Application) DeleteChat(ctx context.Context, sessionID string) error {
	if err := a.Client.DeleteSession(ctx, sessionID); err != nil {
		a.Logger.Error("failed to delete session", map[string]interface{}{
			"session": sessionID, "error": err.Error(),
		})
		return err
	}
	wasActive := a.Sessions.ActiveID() == sessionID
	a.Sessions.Remove(sessionID)
	if !wasActive {
		return nil
	}
	if remaining := a.Sessions.Sessions(); len(remaining) > 0 {
		return a.SelectChat(ctx, remaining[0].ID)
	}
	return a.NewChat(ctx)
}

// RenameChat persists a new title. Empty titles are rejected silently before
// any network call; a manual rename marks the session titled so auto-titling
// never overwrites it.
func (a *Application) RenameChat(ctx context.Context, sessionID, title string) error {
	if title == "" {
		return nil
	}
	if err := a.Client.RenameSession(ctx, sessionID, title); err != nil {
		a.Logger.Error("failed to rename session", map[string]interface{}{
			"session": sessionID, "error": err.Error(),
		})
		return err
	}
	if session, ok := a.Sessions.Get(sessionID); ok {
		session.Title = title
		a.Sessions.Upsert(session)
	}
	a.Sessions.MarkTitled(sessionID)
	return nil
}

// ClearHistory wipes the active session's messages server-side and reloads
// the (now empty) timeline.
func (a *Application) ClearHistory(ctx context.Context) error {
	sessionID := a.Sessions.ActiveID()
	if sessionID == "" {
		return nil
	}
	if err := a.Client.ClearHistory(ctx, sessionID); err != nil {
		a.Logger.Error("failed to clear history", map[string]interface{}{
			"session": sessionID, "error": err.Error(),
		})
		return err
	}
	if session, ok := a.Sessions.Get(sessionID); ok {
		session.MessageCount = 0
		session.LastMessagePreview = ""
		a.Sessions.Upsert(session)
	}
	return a.Timeline.Activate(ctx, sessionID)
}

// Send runs the optimistic send pipeline against the active session.
func (a *Application) Send(ctx context.Context, prompt string) {
	a.Sender.Send(ctx, prompt)
}

// LoadOlderMessages pages further back into the active session's history.
func (a *Application) LoadOlderMessages(ctx context.Context) error {
	return a.Timeline.LoadOlder(ctx)
}

// LoadMoreSessions pages further down the session list.
func (a *Application) LoadMoreSessions(ctx context.Context) error {
	return a.SessionSync.LoadMore(ctx)
}

// Logout clears the guard, both stores and the local token state.
func (a *Application) Logout() {
	a.Init.Reset()
	a.Tokens.Clear()
	a.Logger.Info("logged out", nil)
}
