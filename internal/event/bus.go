package event

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"duet/internal/buffer"
	"duet/internal/logging"
	"duet/internal/metrics"
)

const defaultSubscriberBufferSize = 128
const defaultDropWarningThreshold = 0.01
const defaultDropWarningInterval = 30 * time.Second

type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	MaxSubscribers       int
	HistorySize          int
	DropWarningThreshold float64
	DropWarningInterval  time.Duration
	Registry             *metrics.Registry
	Logger               *logging.Logger
}

// Bus fans events out to subscribers without blocking the publisher. Slow
// subscribers lose events; drops are counted and surfaced through metrics
// and a rate-limited warning.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	registry    *metrics.Registry
	log         *logging.Logger
	history     *buffer.Ring[T]
	published   atomic.Int64
	dropped     atomic.Int64
	lastWarning atomic.Int64
}

type subscription[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
}

func NewBus[T any](ctx context.Context, opts BusOptions) *Bus[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.SubscriberBufferSize <= 0 {
		opts.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	if opts.DropWarningThreshold <= 0 {
		opts.DropWarningThreshold = defaultDropWarningThreshold
	}
	if opts.DropWarningInterval <= 0 {
		opts.DropWarningInterval = defaultDropWarningInterval
	}
	bus := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     opts,
		registry:    opts.Registry,
		log:         opts.Logger,
	}
	if opts.HistorySize > 0 {
		bus.history = buffer.NewRing[T](opts.HistorySize)
	}
	if bus.registry == nil {
		bus.registry = metrics.Default
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			bus.Close()
		}()
	}
	return bus
}

func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.SubscribeFiltered(nil)
}

func (b *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	if b == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan T, b.options.SubscriberBufferSize)
	id := atomic.AddUint64(&b.nextSubID, 1)

	b.mu.Lock()
	if b.closed || (b.options.MaxSubscribers > 0 && len(b.subscribers) >= b.options.MaxSubscribers) {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subscribers[id] = subscription[T]{id: id, ch: ch, filter: filter}
	count := len(b.subscribers)
	b.mu.Unlock()

	b.setSubscriberCount(count)
	return ch, func() { b.removeSubscriber(id) }
}

// SubscribeTypes delivers only events whose Type matches one of the given
// names. Requires T to satisfy Event.
func (b *Bus[T]) SubscribeTypes(eventTypes ...string) (<-chan T, func()) {
	typeSet := make(map[string]struct{}, len(eventTypes))
	for _, eventType := range eventTypes {
		if eventType != "" {
			typeSet[eventType] = struct{}{}
		}
	}
	if len(typeSet) == 0 {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}
	return b.SubscribeFiltered(func(ev T) bool {
		typed, ok := any(ev).(Event)
		if !ok {
			return false
		}
		_, matched := typeSet[typed.Type()]
		return matched
	})
}

func (b *Bus[T]) Publish(ev T) {
	if b == nil || isNil(ev) {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.history != nil {
		b.history.Add(ev)
	}
	subscribers := make([]subscription[T], 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub)
	}
	b.mu.Unlock()

	eventType := b.eventType(ev)
	b.published.Add(1)
	if b.registry != nil {
		b.registry.IncEventPublished(b.busName(), eventType)
	}
	if b.log != nil {
		b.log.Debug("event published", map[string]string{"bus": b.busName(), "event": eventType})
	}

	for _, sub := range subscribers {
		if !b.filterAllows(sub, ev) {
			continue
		}
		delivered := b.safeSend(sub, ev)
		if !delivered {
			b.dropped.Add(1)
			if b.registry != nil {
				b.registry.IncEventDropped(b.busName(), eventType)
			}
			b.maybeWarnDropRate()
		}
	}
}

func (b *Bus[T]) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		subscribers := b.subscribers
		b.subscribers = make(map[uint64]subscription[T])
		b.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
		b.setSubscriberCount(0)
	})
}

// Tail returns the newest count history entries in order. Late websocket
// joiners catch up from it before going live.
func (b *Bus[T]) Tail(count int) []T {
	return b.historyTail(count)
}

// History returns a copy of the stored event history in order.
func (b *Bus[T]) History() []T {
	return b.historyTail(0)
}

func (b *Bus[T]) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus[T]) historyTail(count int) []T {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.history == nil {
		return nil
	}
	if count <= 0 {
		return b.history.List()
	}
	return b.history.Tail(count)
}

func (b *Bus[T]) safeSend(sub subscription[T], ev T) (delivered bool) {
	defer func() {
		if recover() != nil {
			b.removeSubscriber(sub.id)
			delivered = false
		}
	}()
	select {
	case sub.ch <- ev:
		return true
	default:
		return false
	}
}

func (b *Bus[T]) removeSubscriber(id uint64) {
	if b == nil {
		return
	}
	var ch chan T
	count := -1
	b.mu.Lock()
	if existing, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		ch = existing.ch
		count = len(b.subscribers)
	}
	b.mu.Unlock()

	if ch != nil {
		close(ch)
	}
	if count >= 0 {
		b.setSubscriberCount(count)
	}
}

func (b *Bus[T]) filterAllows(sub subscription[T], ev T) (allowed bool) {
	if sub.filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			if b.log != nil {
				b.log.Warn("subscriber filter panicked", map[string]string{"bus": b.busName()})
			}
			b.removeSubscriber(sub.id)
			allowed = false
		}
	}()
	return sub.filter(ev)
}

func (b *Bus[T]) setSubscriberCount(count int) {
	if b.registry == nil {
		return
	}
	b.registry.SetEventSubscribers(b.busName(), count)
}

func (b *Bus[T]) busName() string {
	if b.options.Name == "" {
		return "event_bus"
	}
	return b.options.Name
}

func (b *Bus[T]) eventType(ev T) string {
	typed, ok := any(ev).(Event)
	if !ok || typed.Type() == "" {
		return "unknown"
	}
	return typed.Type()
}

func (b *Bus[T]) maybeWarnDropRate() {
	published := b.published.Load()
	dropped := b.dropped.Load()
	if published == 0 || dropped == 0 {
		return
	}
	rate := float64(dropped) / float64(published)
	if rate < b.options.DropWarningThreshold {
		return
	}
	now := time.Now()
	lastNanos := b.lastWarning.Load()
	if lastNanos > 0 && now.Sub(time.Unix(0, lastNanos)) < b.options.DropWarningInterval {
		return
	}
	if !b.lastWarning.CompareAndSwap(lastNanos, now.UnixNano()) {
		return
	}
	if b.log != nil {
		b.log.Warn("event drop rate high", map[string]string{
			"bus":       b.busName(),
			"dropped":   itoa(dropped),
			"published": itoa(published),
		})
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func isNil[T any](value T) bool {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
