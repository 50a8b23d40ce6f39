package logging

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(Entry{Message: "ready"})

	select {
	case got := <-ch:
		if got.Message != "ready" {
			t.Fatalf("expected message ready, got %q", got.Message)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for entry")
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(Entry{Message: "first"})
	hub.Broadcast(Entry{Message: "second"})

	got := <-ch
	if got.Message != "first" {
		t.Fatalf("expected first entry, got %q", got.Message)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second entry dropped, got %q", extra.Message)
	default:
	}
}

func TestHubCloseClosesSubscribers(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe(1)
	hub.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed")
	}
	// closing twice is fine
	hub.Close()
}

func TestSubscribeAfterClose(t *testing.T) {
	hub := NewHub()
	hub.Close()
	ch, cancel := hub.Subscribe(1)
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel from closed hub")
	}
}
