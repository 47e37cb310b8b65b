package app

import (
	"context"
	"sync"
)

const bootstrapFlightKey = "bootstrap"

// Bootstrapper gates the "load the user's sessions and pick one" sequence so
// its network side effects run exactly once per authenticated user per login,
// no matter how many triggers fire. Triggers arriving while a run is in
// flight share its result instead of starting another.
type Bootstrapper struct {
	mu         sync.Mutex
	done       bool
	lastUserID string

	flights  *FlightGuard
	sessions *SessionStore
	messages *MessageStore
	sync     *SessionSync
	timeline *TimelineSync
	client   *BackendClient
	log      *Logger
}

func NewBootstrapper(flights *FlightGuard, sessions *SessionStore, messages *MessageStore, sessionSync *SessionSync, timeline *TimelineSync, client *BackendClient, log *Logger) *Bootstrapper {
	return &Bootstrapper{
		flights:  flights,
		sessions: sessions,
		messages: messages,
		sync:     sessionSync,
		timeline: timeline,
		client:   client,
		log:      log,
	}
}

// Run bootstraps sessions for userID. Once it has succeeded for a user id,
// later triggers for the same id return immediately; concurrent triggers
// await the single in-flight run. A failed run clears the record so the next
// trigger retries.
func (b *Bootstrapper) Run(ctx context.Context, userID string) error {
	b.mu.Lock()
	if b.done && b.lastUserID == userID {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	// Keyed per user so a trigger for another principal never joins a run
	// that loads someone else's sessions.
	err := b.flights.Do(bootstrapFlightKey+":"+userID, func() error {
		return b.bootstrap(ctx, userID)
	})

	b.mu.Lock()
	if err == nil {
		b.done = true
		b.lastUserID = userID
	} else {
		b.done = false
		b.lastUserID = ""
	}
	b.mu.Unlock()
	return err
}

// Reset clears the guard and both stores back to their initial values
// (logout).
func (b *Bootstrapper) Reset() {
	b.mu.Lock()
	b.done = false
	b.lastUserID = ""
	b.mu.Unlock()
	b.sessions.Reset()
	b.messages.Reset()
}

func (b *Bootstrapper) bootstrap(ctx context.Context, userID string) error {
	b.log.Info("bootstrapping sessions", map[string]interface{}{"user": userID})

	if err := b.sync.LoadInitial(ctx); err != nil {
		return err
	}

	list := b.sessions.Sessions()
	if len(list) > 0 {
		// List is sorted most-recently-updated first.
		return b.timeline.Activate(ctx, list[0].ID)
	}

	created, err := b.client.CreateSession(ctx, DefaultSessionTitle)
	if err != nil {
		b.log.Error("failed to create first session", map[string]interface{}{"error": err.Error()})
		return err
	}
	if err := b.timeline.Activate(ctx, created.ID); err != nil {
		return err
	}
	// Re-fetch so the list carries the server-assigned metadata.
	return b.sync.LoadInitial(ctx)
}
