package terminal

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScrollbackTracksLinesAndCarry(t *testing.T) {
	scroll := NewScrollback(10)

	scroll.Append([]byte("hello"))
	assertLines(t, scroll.Lines(), []string{"hello"})

	scroll.Append([]byte(" world\nnext\npartial"))
	assertLines(t, scroll.Lines(), []string{"hello world", "next", "partial"})
}

func TestScrollbackCompleteChunkAddsNoBlankLine(t *testing.T) {
	scroll := NewScrollback(10)
	scroll.Append([]byte("one\n"))
	scroll.Append([]byte("two\n"))
	assertLines(t, scroll.Lines(), []string{"one", "two"})
}

func TestScrollbackDropsOldLines(t *testing.T) {
	scroll := NewScrollback(2)
	scroll.Append([]byte("one\ntwo\nthree\n"))
	assertLines(t, scroll.Lines(), []string{"two", "three"})
}

func TestScrollbackCollapsesRedraws(t *testing.T) {
	scroll := NewScrollback(10)
	scroll.Append([]byte("⠙ loading\r⠹ loading\r>>> ready\ndone"))
	assertLines(t, scroll.Lines(), []string{">>> ready", "done"})
}

func TestScrollbackHandlesCRLF(t *testing.T) {
	scroll := NewScrollback(10)
	scroll.Append([]byte("first\r\nsecond\r\n"))
	assertLines(t, scroll.Lines(), []string{"first", "second"})
}

func TestScrollbackRedrawInCarry(t *testing.T) {
	scroll := NewScrollback(10)
	scroll.Append([]byte("⠙ thinking\r>>> Send a message"))
	assertLines(t, scroll.Lines(), []string{">>> Send a message"})
}

func TestScrollbackIgnoresEmptyAppend(t *testing.T) {
	scroll := NewScrollback(5)
	scroll.Append(nil)
	if lines := scroll.Lines(); len(lines) != 0 {
		t.Fatalf("expected no lines, got %v", lines)
	}
}

func TestScrollbackConcurrentAccessDoesNotBlock(t *testing.T) {
	scroll := NewScrollback(10)
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scroll.Append([]byte(strings.Repeat("x", i%5) + "\n"))
		}(i)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for concurrent append")
	}
}
