package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAuthExpired tags 401-class rejections. The client surfaces it and
	// clears nothing itself; re-authentication is the identity provider's job.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrForbidden tags 403-class rejections, i.e. the session does not
	// belong to the current user.
	ErrForbidden = errors.New("forbidden")
)

// APIError is the tagged rejection for any non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrAuthExpired
	case http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}

// TokenSource supplies the opaque bearer token and the user identifier. The
// client only reads from it; credential logic lives with the identity
// provider collaborator.
type TokenSource interface {
	Token() string
	UserID() string
}

// BackendClient talks to the Hugg inference backend. Every request carries
// the bearer token, the user-id header and a fresh X-Request-ID.
type BackendClient struct {
	BaseURL string
	Tokens  TokenSource
	HTTP    *http.Client

	// OnAuthExpired fires once per 401 rejection so the identity provider
	// can start re-authentication.
	OnAuthExpired func()
}

func NewBackendClient(baseURL string, tokens TokenSource, timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Tokens:  tokens,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// request executes one backend call. body is marshalled as JSON when non-nil,
// params become the query string, extra headers are applied last. A non-2xx
// response is returned as *APIError; out is decoded only on success.
func (c *BackendClient) request(ctx context.Context, method, path string, body interface{}, params url.Values, headers map[string]string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Tokens != nil {
		if token := c.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if userID := c.Tokens.UserID(); userID != "" {
			req.Header.Set("user-id", userID)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		if resp.StatusCode == http.StatusUnauthorized && c.OnAuthExpired != nil {
			c.OnAuthExpired()
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid backend response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

// CreateSession provisions a new conversation and returns its id and title.
func (c *BackendClient) CreateSession(ctx context.Context, title string) (ChatSession, error) {
	if title == "" {
		title = DefaultSessionTitle
	}
	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	err := c.request(ctx, http.MethodPost, "/chat/sessions", map[string]string{"title": title}, nil, nil, &out)
	if err != nil {
		return ChatSession{}, err
	}
	return ChatSession{ID: out.ID, Title: out.Title}, nil
}

// ListSessions fetches one page of the session list. An empty cursor means
// "from the start".
func (c *BackendClient) ListSessions(ctx context.Context, limit int, cursor string) (SessionPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	var page SessionPage
	if err := c.request(ctx, http.MethodGet, "/chat/sessions", nil, params, nil, &page); err != nil {
		return SessionPage{}, err
	}
	return page, nil
}

// RenameSession persists a new title for the session.
func (c *BackendClient) RenameSession(ctx context.Context, sessionID, title string) error {
	path := "/chat/sessions/" + url.PathEscape(sessionID) + "/title"
	return c.request(ctx, http.MethodPatch, path, map[string]string{"title": title}, nil, nil, nil)
}

// DeleteSession removes the session and its history.
func (c *BackendClient) DeleteSession(ctx context.Context, sessionID string) error {
	path := "/chat/sessions/" + url.PathEscape(sessionID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, nil, nil)
}

// SendPrompt submits the user prompt for the session and returns the
// assistant's reply text.
func (c *BackendClient) SendPrompt(ctx context.Context, sessionID, prompt string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	headers := map[string]string{"chat-id": sessionID}
	err := c.request(ctx, http.MethodPost, "/chat/prompt", map[string]string{"prompt": prompt}, nil, headers, &out)
	if err != nil {
		return "", err
	}
	return out.Response, nil
}

// FetchHistory fetches one page of the session's message history.
func (c *BackendClient) FetchHistory(ctx context.Context, sessionID string, limit int, cursor string) (HistoryPage, error) {
	params := url.Values{}
	params.Set("chat_id", sessionID)
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	var page HistoryPage
	if err := c.request(ctx, http.MethodGet, "/chat/history", nil, params, nil, &page); err != nil {
		return HistoryPage{}, err
	}
	return page, nil
}

// ClearHistory removes every message from the session but keeps the session.
func (c *BackendClient) ClearHistory(ctx context.Context, sessionID string) error {
	params := url.Values{}
	params.Set("chat_id", sessionID)
	return c.request(ctx, http.MethodDelete, "/chat/history/clear", nil, params, nil, nil)
}

// SuggestTitle asks the backend for a short title based on the first
// exchange. fallback reports whether the backend itself already fell back.
func (c *BackendClient) SuggestTitle(ctx context.Context, firstMessage, assistantMessage string) (title string, fallback bool, err error) {
	var out struct {
		Title    string `json:"title"`
		Fallback bool   `json:"fallback"`
	}
	body := map[string]string{
		"first_message":     firstMessage,
		"assistant_message": assistantMessage,
	}
	if err := c.request(ctx, http.MethodPost, "/chat/generate-title", body, nil, nil, &out); err != nil {
		return "", false, err
	}
	return out.Title, out.Fallback, nil
}
