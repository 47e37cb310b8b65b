package app

import "context"

// TimelineSync keeps the MessageStore consistent with the backend's paginated
// history for whichever session is active. Responses are applied keyed by the
// session id they were issued for; if the active session changed mid-fetch
// the stale page is discarded by the store.
type TimelineSync struct {
	client   *BackendClient
	messages *MessageStore
	sessions *SessionStore
	flights  *FlightGuard
	log      *Logger
	pageSize int
}

func NewTimelineSync(client *BackendClient, messages *MessageStore, sessions *SessionStore, flights *FlightGuard, log *Logger, pageSize int) *TimelineSync {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &TimelineSync{client: client, messages: messages, sessions: sessions, flights: flights, log: log, pageSize: pageSize}
}

// Activate points the timeline at sessionID, invalidates the previous state
// and performs the initial history fetch. A 403 propagates as ErrForbidden so
// the caller can recover by starting a fresh session.
func (t *TimelineSync) Activate(ctx context.Context, sessionID string) error {
	t.sessions.SetActiveID(sessionID)
	t.messages.ResetFor(sessionID)

	var loadErr error
	_, _ = t.flights.TryDo("history.initial:"+sessionID, func() error {
		t.messages.SetLoading(true)
		defer t.messages.SetLoading(false)

		page, err := t.client.FetchHistory(ctx, sessionID, t.pageSize, "")
		if err != nil {
			t.log.Error("failed to load history", map[string]interface{}{
				"session": sessionID, "error": err.Error(),
			})
			loadErr = err
			return err
		}

		hasMore := effectiveHasMore(page.HasMore, len(page.History), t.pageSize)
		if !t.messages.SetInitial(sessionID, page.History, page.NextCursor, hasMore) {
			t.log.Warn("discarding history for inactive session", map[string]interface{}{
				"session": sessionID,
			})
		}
		return nil
	})
	return loadErr
}

// LoadOlder prepends the next-older history page. It is a no-op while the
// initial load or another pagination fetch is in flight, once history is
// exhausted, or when no cursor is available: after a null final cursor there
// is no older page even if local appends flipped hasMore back on, and an
// empty cursor would fetch the newest page again. Scroll-position restoration
// after the prepend belongs to the presentation layer.
func (t *TimelineSync) LoadOlder(ctx context.Context) error {
	sessionID := t.messages.SessionID()
	if sessionID == "" {
		return nil
	}
	if t.messages.Loading() || t.messages.Paginating() {
		return nil
	}
	cursor, hasMore := t.messages.Cursor()
	if !hasMore || cursor == "" {
		return nil
	}

	var loadErr error
	_, _ = t.flights.TryDo("history.older:"+sessionID, func() error {
		t.messages.SetPaginating(true)
		defer t.messages.SetPaginating(false)

		page, err := t.client.FetchHistory(ctx, sessionID, t.pageSize, cursor)
		if err != nil {
			t.log.Error("failed to load older history", map[string]interface{}{
				"session": sessionID, "error": err.Error(),
			})
			loadErr = err
			return err
		}

		nextHasMore := effectiveHasMore(page.HasMore, len(page.History), t.pageSize)
		if _, ok := t.messages.PrependOlder(sessionID, page.History, page.NextCursor, nextHasMore); !ok {
			t.log.Warn("discarding older history for inactive session", map[string]interface{}{
				"session": sessionID,
			})
		}
		return nil
	})
	return loadErr
}
