package app

import (
	"context"
	"strings"
)

const (
	titleMaxLen     = 50
	titleTruncateAt = 47
	titleMinCut     = 30
)

// FallbackTitle derives a session title from the first user message when the
// suggestion service cannot produce one. Whitespace runs collapse to single
// spaces; anything longer than 50 characters is cut at the last word boundary
// inside the first 47 characters, unless that boundary would leave an overly
// short title, in which case the cut is mid-word at exactly 47.
func FallbackTitle(firstMessage string) string {
	collapsed := strings.Join(strings.Fields(firstMessage), " ")
	runes := []rune(collapsed)
	if len(runes) <= titleMaxLen {
		return collapsed
	}

	head := runes[:titleTruncateAt]
	cut := titleTruncateAt
	for i := len(head) - 1; i >= 0; i-- {
		if head[i] == ' ' {
			if i > titleMinCut {
				cut = i
			}
			break
		}
	}
	return string(head[:cut]) + "…"
}

// TitleCoordinator triggers title generation at most once per eligible
// session and persists the result through the rename operation.
type TitleCoordinator struct {
	client   *BackendClient
	sessions *SessionStore
	sync     *SessionSync
	log      *Logger

	// OnChange fires after a title is persisted so the presentation layer
	// can re-render; titling runs off the send pipeline's path.
	OnChange func()
}

func NewTitleCoordinator(client *BackendClient, sessions *SessionStore, sync *SessionSync, log *Logger) *TitleCoordinator {
	return &TitleCoordinator{client: client, sessions: sessions, sync: sync, log: log}
}

// Eligible evaluates the auto-title gate against the snapshot taken before
// the send. Best effort: a false negative just skips titling; double titling
// is prevented by the titled-set, not by this check.
func (t *TitleCoordinator) Eligible(snapshot ChatSession) bool {
	if snapshot.ID == "" {
		return false
	}
	if t.sessions.IsTitled(snapshot.ID) {
		return false
	}
	return snapshot.Title == DefaultSessionTitle && snapshot.MessageCount == 0
}

// MaybeGenerate runs the titling attempt for the session's first exchange.
// Call it from its own goroutine; it never blocks the send pipeline.
func (t *TitleCoordinator) MaybeGenerate(ctx context.Context, snapshot ChatSession, firstMessage, assistantMessage string) {
	if !t.Eligible(snapshot) {
		return
	}

	title, _, err := t.client.SuggestTitle(ctx, firstMessage, assistantMessage)
	if err != nil || strings.TrimSpace(title) == "" {
		if err != nil {
			t.log.Warn("title suggestion failed, using fallback", map[string]interface{}{
				"session": snapshot.ID, "error": err.Error(),
			})
		}
		title = FallbackTitle(firstMessage)
	}
	if title == "" {
		return
	}

	if err := t.client.RenameSession(ctx, snapshot.ID, title); err != nil {
		// Leave the session out of the titled-set so a later send retries.
		t.log.Error("failed to persist generated title", map[string]interface{}{
			"session": snapshot.ID, "error": err.Error(),
		})
		return
	}

	t.sessions.MarkTitled(snapshot.ID)
	if session, ok := t.sessions.Get(snapshot.ID); ok {
		session.Title = title
		t.sessions.Upsert(session)
	}
	if err := t.sync.LoadInitial(ctx); err != nil {
		t.log.Warn("session refresh after titling failed", map[string]interface{}{
			"session": snapshot.ID, "error": err.Error(),
		})
	}
	if t.OnChange != nil {
		t.OnChange()
	}
}
