package app

import "sync"

// StaticTokenSource is the simplest identity collaborator: a fixed bearer
// token and user id taken from config or environment. Clear drops the local
// token state after the transport reports a 401.
type StaticTokenSource struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func NewStaticTokenSource(token, userID string) *StaticTokenSource {
	return &StaticTokenSource{token: token, userID: userID}
}

func (s *StaticTokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *StaticTokenSource) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *StaticTokenSource) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
