package app

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// FlightGuard serializes idempotent async operations by key. Do shares one
// in-flight execution among concurrent callers (bootstrap wants every trigger
// to observe the same result); TryDo runs the function only when the key is
// idle and reports false otherwise (pagination and send want later triggers
// to be plain no-ops).
type FlightGuard struct {
	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewFlightGuard() *FlightGuard {
	return &FlightGuard{inFlight: make(map[string]struct{})}
}

// Do executes fn once per key; callers arriving while fn runs receive the
// same result. The key is forgotten once fn settles so a later cycle starts
// fresh.
func (g *FlightGuard) Do(key string, fn func() error) error {
	g.mark(key)
	_, err, _ := g.group.Do(key, func() (interface{}, error) {
		defer g.unmark(key)
		return nil, fn()
	})
	g.group.Forget(key)
	return err
}

// TryDo executes fn only if no execution for key is in flight. It returns
// false without running fn when one is.
func (g *FlightGuard) TryDo(key string, fn func() error) (bool, error) {
	g.mu.Lock()
	if _, busy := g.inFlight[key]; busy {
		g.mu.Unlock()
		return false, nil
	}
	g.inFlight[key] = struct{}{}
	g.mu.Unlock()

	defer g.unmark(key)
	return true, fn()
}

// InFlight reports whether an execution for key is currently running.
func (g *FlightGuard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[key]
	return busy
}

func (g *FlightGuard) mark(key string) {
	g.mu.Lock()
	g.inFlight[key] = struct{}{}
	g.mu.Unlock()
}

func (g *FlightGuard) unmark(key string) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}
