package buffer

// Ring is a fixed-capacity buffer that discards the oldest entries once
// full. It backs the log buffer, the event history, and pane snapshots.
type Ring[T any] struct {
	slots []T
	head  int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

func (r *Ring[T]) Add(entry T) {
	if r == nil || len(r.slots) == 0 {
		return
	}
	if r.size < len(r.slots) {
		r.slots[(r.head+r.size)%len(r.slots)] = entry
		r.size++
		return
	}
	r.slots[r.head] = entry
	r.head = (r.head + 1) % len(r.slots)
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	return r.size
}

func (r *Ring[T]) Cap() int {
	if r == nil {
		return 0
	}
	return len(r.slots)
}

// Last returns the most recently added entry.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r == nil || r.size == 0 {
		return zero, false
	}
	return r.slots[(r.head+r.size-1)%len(r.slots)], true
}

// List returns the live entries oldest first.
func (r *Ring[T]) List() []T {
	return r.Tail(r.Len())
}

// Tail returns up to n of the newest entries, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if r == nil || r.size == 0 || n <= 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	first := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.slots[(r.head+first+i)%len(r.slots)]
	}
	return out
}
