package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// SessionStore owns the session list, the active session pointer, the cursor
// bookkeeping for the list and the titled-set. All mutation goes through its
// methods; the list handed out is always a copy sorted by UpdatedAt
// descending.
type SessionStore struct {
	mu sync.RWMutex

	sessions []ChatSession
	activeID string

	cursor  string
	hasMore bool
	loading bool

	titled     map[string]struct{}
	titledPath string
}

func NewSessionStore(titledPath string) *SessionStore {
	store := &SessionStore{
		titled:     make(map[string]struct{}),
		titledPath: titledPath,
	}
	store.loadTitled()
	return store
}

// SetSessions replaces the whole list and resets the cursor. The incoming
// page is sorted most-recently-updated first.
func (s *SessionStore) SetSessions(list []ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sortSessions(list)
	s.cursor = ""
}

// AppendSessions merges a later page into the list, dropping any id already
// present. Calling it repeatedly with overlapping pages never duplicates.
func (s *SessionStore) AppendSessions(list []ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.sessions))
	for _, session := range s.sessions {
		seen[session.ID] = struct{}{}
	}
	for _, session := range list {
		if _, dup := seen[session.ID]; dup {
			continue
		}
		seen[session.ID] = struct{}{}
		s.sessions = append(s.sessions, session)
	}
	s.sessions = sortSessions(s.sessions)
}

// Upsert replaces the stored summary for session.ID, or inserts it.
func (s *SessionStore) Upsert(session ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == session.ID {
			s.sessions[i] = session
			s.sessions = sortSessions(s.sessions)
			return
		}
	}
	s.sessions = sortSessions(append(s.sessions, session))
}

// Remove drops the session from the list and from the titled-set. If it was
// active, the active pointer clears.
func (s *SessionStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, session := range s.sessions {
		if session.ID != sessionID {
			kept = append(kept, session)
		}
	}
	s.sessions = kept
	if s.activeID == sessionID {
		s.activeID = ""
	}
	if _, ok := s.titled[sessionID]; ok {
		delete(s.titled, sessionID)
		s.saveTitledLocked()
	}
}

func (s *SessionStore) Sessions() []ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *SessionStore) Get(sessionID string) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.ID == sessionID {
			return session, true
		}
	}
	return ChatSession{}, false
}

func (s *SessionStore) SetActiveID(sessionID string) {
	s.mu.Lock()
	s.activeID = sessionID
	s.mu.Unlock()
}

func (s *SessionStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *SessionStore) SetCursor(cursor string, hasMore bool) {
	s.mu.Lock()
	s.cursor = cursor
	s.hasMore = hasMore
	s.mu.Unlock()
}

func (s *SessionStore) Cursor() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.hasMore
}

func (s *SessionStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *SessionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// MarkTitled records that the session's title is no longer the default and
// must not be auto-overwritten. The set is persisted immediately.
func (s *SessionStore) MarkTitled(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.titled[sessionID]; ok {
		return
	}
	s.titled[sessionID] = struct{}{}
	s.saveTitledLocked()
}

func (s *SessionStore) IsTitled(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.titled[sessionID]
	return ok
}

// Reset returns the store to its initial state (logout). The titled-set file
// stays on disk; titles already persisted server-side remain valid across
// logins.
func (s *SessionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.activeID = ""
	s.cursor = ""
	s.hasMore = false
	s.loading = false
}

// loadTitled rehydrates the titled-set from its file. The persisted form is
// an ordered slice of ids; duplicates and blanks in corrupt data are dropped.
func (s *SessionStore) loadTitled() {
	if s.titledPath == "" {
		return
	}
	data, err := os.ReadFile(s.titledPath)
	if err != nil {
		return
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		s.titled[id] = struct{}{}
	}
}

func (s *SessionStore) saveTitledLocked() {
	if s.titledPath == "" {
		return
	}
	ids := make([]string, 0, len(s.titled))
	for id := range s.titled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	payload, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.titledPath), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(s.titledPath, payload, 0o644)
}

func sortSessions(list []ChatSession) []ChatSession {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list
}
