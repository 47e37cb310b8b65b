package app

import "time"

const DefaultSessionTitle = "New Chat"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageStatus string

const (
	StatusSent    MessageStatus = "sent"
	StatusLoading MessageStatus = "loading"
	StatusError   MessageStatus = "error"
)

// ChatSession is the summary of one persisted conversation.
type ChatSession struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
}

// Message is one timeline entry of the active session. ID is assigned
// locally at insertion time so pending entries can be updated by identity
// rather than by position. Timestamp is the natural key used to deduplicate
// history pages within a session.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
}

// SessionPage is one page of the session list as returned by the backend.
type SessionPage struct {
	Sessions   []ChatSession `json:"sessions"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
	TotalCount int           `json:"total_count,omitempty"`
}

// HistoryPage is one page of message history, oldest-to-newest within the page.
type HistoryPage struct {
	History    []Message `json:"history"`
	NextCursor string    `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
	TotalCount int       `json:"total_count,omitempty"`
}
