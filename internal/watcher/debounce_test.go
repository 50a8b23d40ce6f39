package watcher

import (
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestDebouncerCoalescesEvents(t *testing.T) {
	debouncer := newDebouncer(25 * time.Millisecond)
	defer debouncer.stop()

	flushed := make(chan Event, 2)
	flush := func(path string) {
		if event, ok := debouncer.pop(path); ok {
			flushed <- event
		}
	}

	coalesced := debouncer.schedule("path", Event{Path: "path", Op: fsnotify.Create}, flush)
	if coalesced {
		t.Fatal("expected the first event to start a fresh window")
	}
	coalesced = debouncer.schedule("path", Event{Path: "path", Op: fsnotify.Write}, flush)
	if !coalesced {
		t.Fatal("expected the second event to be coalesced")
	}

	select {
	case event := <-flushed:
		if !event.Op.Has(fsnotify.Create) || !event.Op.Has(fsnotify.Write) {
			t.Fatalf("expected unioned ops, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}

	select {
	case <-flushed:
		t.Fatal("expected a single flush for the burst")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerTracksPathsIndependently(t *testing.T) {
	debouncer := newDebouncer(10 * time.Millisecond)
	defer debouncer.stop()

	flushed := make(chan string, 2)
	flush := func(path string) {
		if _, ok := debouncer.pop(path); ok {
			flushed <- path
		}
	}

	debouncer.schedule("a", Event{Path: "a"}, flush)
	debouncer.schedule("b", Event{Path: "b"}, flush)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case path := <-flushed:
			seen[path] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for flushes")
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected both paths to flush, got %v", seen)
	}
}

func TestDebouncerStopCancelsTimers(t *testing.T) {
	debouncer := newDebouncer(20 * time.Millisecond)

	flushed := make(chan string, 1)
	debouncer.schedule("path", Event{Path: "path"}, func(path string) {
		flushed <- path
	})
	debouncer.stop()

	select {
	case <-flushed:
		t.Fatal("expected stop to cancel the pending flush")
	case <-time.After(100 * time.Millisecond):
	}
}
