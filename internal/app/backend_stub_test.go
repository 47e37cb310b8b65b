package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubBackend is an in-memory stand-in for the Hugg inference backend. It
// speaks the same wire surface (cursor pagination, chat-id headers) and lets
// tests inject delays and failures.
type stubBackend struct {
	mu       sync.Mutex
	sessions []ChatSession
	history  map[string][]Message
	nextID   int

	listCalls   int32
	histCalls   int32
	promptCalls int32
	titleCalls  int32

	promptDelay  time.Duration
	historyDelay map[string]time.Duration

	failList    bool
	failPrompt  bool
	failTitle   bool
	failRename  bool
	forbidden   map[string]bool
	titleResult string

	server *httptest.Server
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	b := &stubBackend{
		history:      make(map[string][]Message),
		historyDelay: make(map[string]time.Duration),
		forbidden:    make(map[string]bool),
		titleResult:  "Suggested Title",
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *stubBackend) url() string { return b.server.URL }

func (b *stubBackend) addSession(id, title string, updated time.Time, msgs ...Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append(b.sessions, ChatSession{
		ID: id, Title: title, UpdatedAt: updated, CreatedAt: updated,
		MessageCount: len(msgs),
	})
	b.history[id] = msgs
}

func (b *stubBackend) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/chat/sessions":
		b.handleList(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/chat/sessions":
		b.handleCreate(w, r)
	case r.Method == http.MethodDelete && r.URL.Path == "/chat/history/clear":
		b.handleClear(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/chat/history":
		b.handleHistory(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/chat/prompt":
		b.handlePrompt(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/chat/generate-title":
		b.handleTitle(w, r)
	case r.Method == http.MethodPatch:
		b.handleRename(w, r)
	case r.Method == http.MethodDelete:
		b.handleDelete(w, r)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

func (b *stubBackend) handleList(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.listCalls, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failList {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("cursor"))

	list := sortSessions(append([]ChatSession(nil), b.sessions...))
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	page := []ChatSession{}
	if offset < len(list) {
		page = list[offset:end]
	}
	writeJSON(w, map[string]interface{}{
		"sessions":    page,
		"next_cursor": strconv.Itoa(end),
		"has_more":    end < len(list),
		"total_count": len(list),
	})
}

func (b *stubBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("srv-%d", b.nextID)
	b.sessions = append(b.sessions, ChatSession{
		ID: id, Title: req.Title,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	b.history[id] = nil
	b.mu.Unlock()
	writeJSON(w, map[string]string{"id": id, "title": req.Title})
}

func (b *stubBackend) handleHistory(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.histCalls, 1)
	chatID := r.URL.Query().Get("chat_id")

	b.mu.Lock()
	delay := b.historyDelay[chatID]
	forbidden := b.forbidden[chatID]
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if forbidden {
		http.Error(w, `{"detail":"Unauthorized: You do not own this chat session"}`, http.StatusForbidden)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	delivered, _ := strconv.Atoi(r.URL.Query().Get("cursor"))

	msgs := b.history[chatID]
	end := len(msgs) - delivered
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := msgs[start:end]
	writeJSON(w, map[string]interface{}{
		"history":     page,
		"next_cursor": strconv.Itoa(delivered + len(page)),
		"has_more":    start > 0,
		"total_count": len(msgs),
	})
}

func (b *stubBackend) handlePrompt(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.promptCalls, 1)
	if b.promptDelay > 0 {
		time.Sleep(b.promptDelay)
	}
	b.mu.Lock()
	fail := b.failPrompt
	b.mu.Unlock()
	if fail {
		http.Error(w, `{"error":"LLM_INFERENCE_FAILED"}`, http.StatusInternalServerError)
		return
	}
	if r.Header.Get("chat-id") == "" {
		http.Error(w, `{"detail":"Missing 'chat-id' header."}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"response": "stub answer"})
}

func (b *stubBackend) handleTitle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.titleCalls, 1)
	b.mu.Lock()
	fail := b.failTitle
	title := b.titleResult
	b.mu.Unlock()
	if fail {
		http.Error(w, `{"error":"title generation failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"title": title, "fallback": false})
}

func (b *stubBackend) handleRename(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRename {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	for i := range b.sessions {
		if "/chat/sessions/"+b.sessions[i].ID+"/title" == r.URL.Path {
			b.sessions[i].Title = req.Title
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *stubBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if "/chat/sessions/"+s.ID != r.URL.Path {
			kept = append(kept, s)
		}
	}
	b.sessions = kept
	w.WriteHeader(http.StatusNoContent)
}

func (b *stubBackend) handleClear(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	b.mu.Lock()
	b.history[chatID] = nil
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// newTestApp wires an Application against the stub with quiet logging and a
// throwaway titled-set file.
func newTestApp(t *testing.T, backend *stubBackend) *Application {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BackendURL = backend.url()
	cfg.APIToken = "test-token"
	cfg.UserID = "user-1"

	logger := NewLogger(nil)
	tokens := NewStaticTokenSource(cfg.APIToken, cfg.UserID)
	client := NewBackendClient(cfg.BackendURL, tokens, cfg.Timeout())
	flights := NewFlightGuard()
	sessions := NewSessionStore("")
	messages := NewMessageStore(cfg.HistoryPageSize)
	sessionSync := NewSessionSync(client, sessions, flights, logger, cfg.SessionPageSize)
	timeline := NewTimelineSync(client, messages, sessions, flights, logger, cfg.HistoryPageSize)
	titles := NewTitleCoordinator(client, sessions, sessionSync, logger)
	sender := NewSendPipeline(client, sessions, messages, flights, titles, logger)
	boot := NewBootstrapper(flights, sessions, messages, sessionSync, timeline, client, logger)

	return &Application{
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
}
