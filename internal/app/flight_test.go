package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlightGuard_TryDoSkipsWhileBusy(t *testing.T) {
	guard := NewFlightGuard()
	release := make(chan struct{})
	started := make(chan struct{})

	var runs int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ran, _ := guard.TryDo("key", func() error {
			atomic.AddInt32(&runs, 1)
			close(started)
			<-release
			return nil
		})
		if !ran {
			t.Error("first TryDo should run")
		}
	}()

	<-started
	ran, err := guard.TryDo("key", func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	if ran || err != nil {
		t.Fatalf("second TryDo ran=%v err=%v, want no-op", ran, err)
	}
	if !guard.InFlight("key") {
		t.Fatal("InFlight should report busy")
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("function ran %d times, want 1", got)
	}
	if guard.InFlight("key") {
		t.Fatal("key still marked in flight after completion")
	}

	// A later cycle starts fresh.
	ran, _ = guard.TryDo("key", func() error { return nil })
	if !ran {
		t.Fatal("TryDo should run again once idle")
	}
}

func TestFlightGuard_DoSharesInFlightExecution(t *testing.T) {
	guard := NewFlightGuard()
	release := make(chan struct{})
	started := make(chan struct{})

	var runs int32
	fn := func() error {
		atomic.AddInt32(&runs, 1)
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = guard.Do("boot", fn)
	}()
	<-started

	// Two more triggers arrive while the first run is pending.
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_ = guard.Do("boot", fn)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("function ran %d times, want 1 shared execution", got)
	}
}

func TestFlightGuard_IndependentKeysDoNotBlock(t *testing.T) {
	guard := NewFlightGuard()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = guard.TryDo("a", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ran, _ := guard.TryDo("b", func() error { return nil })
	if !ran {
		t.Fatal("independent key should not be blocked")
	}
}
