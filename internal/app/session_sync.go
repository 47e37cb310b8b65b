package app

import "context"

const sessionsFlightKey = "sessions"

// SessionSync keeps the SessionStore consistent with the backend's paginated
// session list.
type SessionSync struct {
	client   *BackendClient
	store    *SessionStore
	flights  *FlightGuard
	log      *Logger
	pageSize int
}

func NewSessionSync(client *BackendClient, store *SessionStore, flights *FlightGuard, log *Logger, pageSize int) *SessionSync {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &SessionSync{client: client, store: store, flights: flights, log: log, pageSize: pageSize}
}

// LoadInitial fetches page one and replaces the store's list. A rejected
// request leaves state untouched; the caller may simply invoke it again.
func (s *SessionSync) LoadInitial(ctx context.Context) error {
	var loadErr error
	_, _ = s.flights.TryDo(sessionsFlightKey, func() error {
		s.store.SetLoading(true)
		defer s.store.SetLoading(false)

		page, err := s.client.ListSessions(ctx, s.pageSize, "")
		if err != nil {
			s.log.Error("failed to load sessions", map[string]interface{}{"error": err.Error()})
			loadErr = err
			return err
		}

		s.store.SetSessions(page.Sessions)
		s.store.SetCursor(page.NextCursor, effectiveHasMore(page.HasMore, len(page.Sessions), s.pageSize))
		s.markTitled(page.Sessions)
		return nil
	})
	return loadErr
}

// LoadMore appends the next page. It is a no-op while a list fetch is in
// flight, when the backend said there is nothing more, or when no cursor is
// available.
func (s *SessionSync) LoadMore(ctx context.Context) error {
	if s.store.Loading() {
		return nil
	}
	cursor, hasMore := s.store.Cursor()
	if !hasMore || cursor == "" {
		return nil
	}

	var loadErr error
	_, _ = s.flights.TryDo(sessionsFlightKey, func() error {
		s.store.SetLoading(true)
		defer s.store.SetLoading(false)

		page, err := s.client.ListSessions(ctx, s.pageSize, cursor)
		if err != nil {
			s.log.Error("failed to load more sessions", map[string]interface{}{"error": err.Error()})
			loadErr = err
			return err
		}

		s.store.AppendSessions(page.Sessions)
		s.store.SetCursor(page.NextCursor, effectiveHasMore(page.HasMore, len(page.Sessions), s.pageSize))
		s.markTitled(page.Sessions)
		return nil
	})
	return loadErr
}

// markTitled records every fetched session that already carries a non-default
// title, keeping auto-titling idempotent across restarts.
func (s *SessionSync) markTitled(list []ChatSession) {
	for _, session := range list {
		if session.Title != "" && session.Title != DefaultSessionTitle {
			s.store.MarkTitled(session.ID)
		}
	}
}

// effectiveHasMore treats a short page as end-of-data regardless of what the
// server claimed.
func effectiveHasMore(serverHasMore bool, got, limit int) bool {
	if got < limit {
		return false
	}
	return serverHasMore
}
