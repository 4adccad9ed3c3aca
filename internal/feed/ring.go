package feed

// history is a fixed-capacity ring over the most recent items. When full,
// a push evicts the oldest entry. Not safe for concurrent use; callers
// hold the owning feed's lock.
type history[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

// newHistory creates a ring with the given capacity.
func newHistory[T any](capacity int) *history[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &history[T]{
		buf: make([]T, capacity),
	}
}

// push adds item as the newest entry, evicting the oldest when full.
func (h *history[T]) push(item T) {
	h.buf[h.head] = item
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// items returns the entries newest first.
func (h *history[T]) items() []T {
	out := make([]T, 0, h.count)
	for i := 0; i < h.count; i++ {
		idx := (h.head - 1 - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}

// contains reports whether pred holds for any entry.
func (h *history[T]) contains(pred func(T) bool) bool {
	for i := 0; i < h.count; i++ {
		idx := (h.head - 1 - i + len(h.buf)) % len(h.buf)
		if pred(h.buf[idx]) {
			return true
		}
	}
	return false
}

// len returns the number of entries.
func (h *history[T]) len() int {
	return h.count
}
