package event

import (
	"context"
	"testing"
	"time"
)

func newTestBus(t *testing.T, opts BusOptions) *Bus[Event] {
	t.Helper()
	bus := NewBus[Event](context.Background(), opts)
	t.Cleanup(bus.Close)
	return bus
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := newTestBus(t, BusOptions{})
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(NewAgentReady("c1", "him", "gemma3:4b"))

	got := ReceiveWithTimeout(t, ch, time.Second)
	ready, ok := got.(AgentReady)
	if !ok {
		t.Fatalf("expected AgentReady, got %T", got)
	}
	if ready.Agent != "him" || ready.Model != "gemma3:4b" {
		t.Fatalf("unexpected event payload: %+v", ready)
	}
}

func TestBusSubscribeTypesFilters(t *testing.T) {
	bus := newTestBus(t, BusOptions{})
	ch, cancel := bus.SubscribeTypes(TypeMessagePosted)
	defer cancel()

	bus.Publish(NewAgentReady("c1", "him", "gemma3:4b"))
	bus.Publish(NewMessagePosted("c1", 1, "him", "👨 Him", "hey!", 0))

	got := ReceiveWithTimeout(t, ch, time.Second)
	if got.Type() != TypeMessagePosted {
		t.Fatalf("expected message_posted, got %q", got.Type())
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected no further events, got %q", extra.Type())
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := newTestBus(t, BusOptions{SubscriberBufferSize: 1})
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(NewTurnSkipped("c1", "her", "empty"))
	bus.Publish(NewTurnSkipped("c1", "her", "duplicate"))

	first := ReceiveWithTimeout(t, ch, time.Second)
	skipped, ok := first.(TurnSkipped)
	if !ok || skipped.Reason != "empty" {
		t.Fatalf("expected first event kept, got %+v", first)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second event dropped, got %+v", extra)
	default:
	}
}

func TestBusHistoryReplay(t *testing.T) {
	bus := newTestBus(t, BusOptions{HistorySize: 2})

	bus.Publish(NewMessagePosted("c1", 1, "him", "👨 Him", "one", 0))
	bus.Publish(NewMessagePosted("c1", 2, "her", "👩 Her", "two", 0))
	bus.Publish(NewMessagePosted("c1", 3, "him", "👨 Him", "three", 0))

	history := bus.History()
	if len(history) != 2 {
		t.Fatalf("expected history of 2, got %d", len(history))
	}
	first, ok := history[0].(MessagePosted)
	if !ok || first.Seq != 2 {
		t.Fatalf("expected oldest retained seq 2, got %+v", history[0])
	}

	var seqs []int
	for _, ev := range bus.Tail(2) {
		seqs = append(seqs, ev.(MessagePosted).Seq)
	}
	if len(seqs) != 2 || seqs[0] != 2 || seqs[1] != 3 {
		t.Fatalf("expected tail [2 3], got %v", seqs)
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus[Event](context.Background(), BusOptions{})
	ch, _ := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel closed")
	}
	// publishing after close is a no-op
	bus.Publish(NewAgentReady("c1", "him", "gemma3:4b"))
}

func TestBusCancelledContextCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[Event](ctx, BusOptions{})
	ch, _ := bus.Subscribe()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus to close")
	}
}

func TestBusMaxSubscribers(t *testing.T) {
	bus := newTestBus(t, BusOptions{MaxSubscribers: 1})
	_, cancel := bus.Subscribe()
	defer cancel()

	ch, cancel2 := bus.Subscribe()
	defer cancel2()
	if _, ok := <-ch; ok {
		t.Fatal("expected over-limit subscription to be refused")
	}
}

func TestBusNilEventIgnored(t *testing.T) {
	bus := newTestBus(t, BusOptions{HistorySize: 4})
	bus.Publish(nil)
	if got := bus.History(); len(got) != 0 {
		t.Fatalf("expected nil event ignored, got %v", got)
	}
}
