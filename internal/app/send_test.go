package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// activateExisting points the app at a session that already carries a real
// title so the auto-title path stays quiet.
func activateExisting(t *testing.T, application *Application, backend *stubBackend, id string) {
	t.Helper()
	backend.addSession(id, "Already titled", time.Now().UTC())
	if err := application.SelectChat(context.Background(), id); err != nil {
		t.Fatalf("SelectChat: %v", err)
	}
	if err := application.SessionSync.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
}

func TestSendPipeline_OptimisticExchange(t *testing.T) {
	backend := newStubBackend(t)
	application := newTestApp(t, backend)
	activateExisting(t, application, backend, "s1")

	application.Send(context.Background(), "hello there")

	msgs := application.Messages.Messages()
	if len(msgs) != 2 {
		t.Fatalf("timeline has %d entries, want user + assistant", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello there" || msgs[0].Status != StatusSent {
		t.Fatalf("user entry wrong: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "stub answer" || msgs[1].Status != StatusSent {
		t.Fatalf("assistant entry not resolved: %+v", msgs[1])
	}

	session, ok := application.Sessions.Get("s1")
	if !ok {
		t.Fatal("session vanished from the list")
	}
	if session.LastMessagePreview != "hello there" {
		t.Fatalf("preview = %q, want the prompt", session.LastMessagePreview)
	}
	if got := atomic.LoadInt32(&backend.titleCalls); got != 0 {
		t.Fatalf("titling ran for an already-titled session: %d calls", got)
	}
}

func TestSendPipeline_FailureResolvesPlaceholderInPlace(t *testing.T) {
	backend := newStubBackend(t)
	backend.failPrompt = true
	application := newTestApp(t, backend)
	activateExisting(t, application, backend, "s1")

	application.Send(context.Background(), "doomed prompt")

	msgs := application.Messages.Messages()
	if len(msgs) != 2 {
		t.Fatalf("timeline has %d entries, want 2", len(msgs))
	}
	if msgs[0].Content != "doomed prompt" || msgs[0].Status != StatusSent {
		t.Fatalf("user entry must survive the failure: %+v", msgs[0])
	}
	if msgs[1].Status != StatusError || msgs[1].Content != sendFailureNotice {
		t.Fatalf("placeholder not resolved into an error entry: %+v", msgs[1])
	}

	// The pipeline is usable again right away.
	backend.mu.Lock()
	backend.failPrompt = false
	backend.mu.Unlock()
	application.Send(context.Background(), "second try")
	if got := application.Messages.Len(); got != 4 {
		t.Fatalf("timeline has %d entries after retry, want 4", got)
	}
}

func TestSendPipeline_BlankPromptIsSilentNoop(t *testing.T) {
	backend := newStubBackend(t)
	application := newTestApp(t, backend)
	activateExisting(t, application, backend, "s1")

	application.Send(context.Background(), "   \n\t ")

	if application.Messages.Len() != 0 {
		t.Fatal("blank prompt appended to the timeline")
	}
	if got := atomic.LoadInt32(&backend.promptCalls); got != 0 {
		t.Fatalf("blank prompt hit the network: %d calls", got)
	}
}

func TestSendPipeline_NoActiveSessionIsSilentNoop(t *testing.T) {
	backend := newStubBackend(t)
	application := newTestApp(t, backend)

	application.Send(context.Background(), "hello?")

	if got := atomic.LoadInt32(&backend.promptCalls); got != 0 {
		t.Fatalf("send without a session hit the network: %d calls", got)
	}
}

func TestSendPipeline_SecondSendDuringFlightIsNoop(t *testing.T) {
	backend := newStubBackend(t)
	backend.promptDelay = 150 * time.Millisecond
	application := newTestApp(t, backend)
	activateExisting(t, application, backend, "s1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		application.Send(context.Background(), "first")
	}()

	waitFor(t, func() bool { return application.Sender.InFlight("s1") })
	application.Send(context.Background(), "second while busy")
	<-done

	if got := atomic.LoadInt32(&backend.promptCalls); got != 1 {
		t.Fatalf("prompt calls = %d, want 1", got)
	}
	msgs := application.Messages.Messages()
	if len(msgs) != 2 {
		t.Fatalf("timeline has %d entries, want just the first exchange", len(msgs))
	}
	if msgs[0].Content != "first" {
		t.Fatalf("surviving prompt = %q, want %q", msgs[0].Content, "first")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
