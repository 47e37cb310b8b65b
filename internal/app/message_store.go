package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageStore owns the ordered timeline of the single active session plus
// its pagination bookkeeping. Every write is keyed by session id so a
// response that arrives after the user switched chats is discarded instead of
// being applied to the wrong timeline. The timeline is kept oldest-to-newest.
type MessageStore struct {
	mu sync.RWMutex

	sessionID string
	messages  []Message

	cursor     string
	hasMore    bool
	loading    bool
	paginating bool

	loadedCount int
	sentCount   int
	pageSize    int
}

func NewMessageStore(pageSize int) *MessageStore {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &MessageStore{pageSize: pageSize}
}

// ResetFor invalidates the timeline and cursor state and points the store at
// a new session.
func (s *MessageStore) ResetFor(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.messages = nil
	s.cursor = ""
	s.hasMore = false
	s.loading = false
	s.paginating = false
	s.loadedCount = 0
	s.sentCount = 0
}

func (s *MessageStore) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *MessageStore) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SetInitial installs the first history page for sessionID. It reports false
// without mutating anything when the store has since been pointed at a
// different session.
func (s *MessageStore) SetInitial(sessionID string, page []Message, cursor string, hasMore bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != s.sessionID {
		return false
	}
	seen := make(map[int64]struct{}, len(page))
	msgs := make([]Message, 0, len(page))
	for _, msg := range page {
		key := msg.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Status == "" {
			msg.Status = StatusSent
		}
		msgs = append(msgs, msg)
	}
	sortMessages(msgs)
	s.messages = msgs
	s.cursor = cursor
	s.hasMore = hasMore
	s.loadedCount = len(msgs)
	s.sentCount = 0
	return true
}

// PrependOlder merges an older history page in front of the timeline,
// dropping entries whose timestamp is already present. It returns how many
// messages were genuinely new, and false when the page belongs to a session
// that is no longer active.
func (s *MessageStore) PrependOlder(sessionID string, page []Message, cursor string, hasMore bool) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != s.sessionID {
		return 0, false
	}

	present := make(map[int64]struct{}, len(s.messages))
	for _, msg := range s.messages {
		present[msg.Timestamp.UnixNano()] = struct{}{}
	}

	fresh := make([]Message, 0, len(page))
	for _, msg := range page {
		key := msg.Timestamp.UnixNano()
		if _, dup := present[key]; dup {
			continue
		}
		present[key] = struct{}{}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Status == "" {
			msg.Status = StatusSent
		}
		fresh = append(fresh, msg)
	}
	sortMessages(fresh)

	s.messages = append(fresh, s.messages...)
	s.cursor = cursor
	s.hasMore = hasMore
	if len(fresh) == 0 {
		// Nothing genuinely new means history is exhausted.
		s.hasMore = false
	}
	s.loadedCount += len(fresh)
	return len(fresh), true
}

// Append adds a message to the end of the timeline and returns its identity
// token. The caller resolves pending entries through UpdateByID rather than
// assuming the placeholder stayed last.
func (s *MessageStore) Append(sessionID string, role Role, content string, status MessageStatus) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != s.sessionID {
		return "", false
	}
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Status:    status,
	}
	s.messages = append(s.messages, msg)
	s.sentCount++
	s.noteOverflowLocked()
	return msg.ID, true
}

// UpdateByID rewrites the content and status of one message in place.
func (s *MessageStore) UpdateByID(id, content string, status MessageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Content = content
			s.messages[i].Status = status
			return true
		}
	}
	return false
}

func (s *MessageStore) Cursor() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.hasMore
}

func (s *MessageStore) SetHasMore(hasMore bool) {
	s.mu.Lock()
	s.hasMore = hasMore
	s.mu.Unlock()
}

func (s *MessageStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *MessageStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *MessageStore) SetPaginating(paginating bool) {
	s.mu.Lock()
	s.paginating = paginating
	s.mu.Unlock()
}

func (s *MessageStore) Paginating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paginating
}

// Reset returns the store to its initial state (logout).
func (s *MessageStore) Reset() {
	s.ResetFor("")
}

// noteOverflowLocked flips hasMore back on once locally appended exchanges
// push the in-memory timeline past one page, so the load-older affordance can
// appear without an extra round trip.
func (s *MessageStore) noteOverflowLocked() {
	if !s.hasMore && s.loadedCount+s.sentCount > s.pageSize {
		s.hasMore = true
	}
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
