package data

import (
	"sync"
)

// Window bounded FIFO buffer; the oldest item is evicted once maxSize is exceeded.
// A maxSize of 0 or less means unbounded.
type Window[T any] struct {
	items   []T
	maxSize int
	mutex   sync.RWMutex
}

// NewWindow creates a window holding at most maxSize items
func NewWindow[T any](maxSize int) *Window[T] {
	capacity := maxSize
	if capacity <= 0 {
		capacity = 64
	}
	return &Window[T]{
		items:   make([]T, 0, capacity),
		maxSize: maxSize,
	}
}

// Push appends an item, evicting from the front when full
func (w *Window[T]) Push(item T) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.items = append(w.items, item)

	if w.maxSize > 0 && len(w.items) > w.maxSize {
		// Keep only the most recent maxSize items
		copy(w.items, w.items[len(w.items)-w.maxSize:])
		w.items = w.items[:w.maxSize]
	}
}

// Items returns a copy, oldest first
func (w *Window[T]) Items() []T {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	items := make([]T, len(w.items))
	copy(items, w.items)
	return items
}

// Reversed returns a copy, newest first
func (w *Window[T]) Reversed() []T {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	items := make([]T, len(w.items))
	for i, item := range w.items {
		items[len(w.items)-1-i] = item
	}
	return items
}

// Latest returns the newest item
func (w *Window[T]) Latest() (T, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	var zero T
	if len(w.items) == 0 {
		return zero, false
	}
	return w.items[len(w.items)-1], true
}

// Clear empties the window
func (w *Window[T]) Clear() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	var zero T
	for i := range w.items {
		w.items[i] = zero
	}
	w.items = w.items[:0]
}

// Size returns the number of buffered items
func (w *Window[T]) Size() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.items)
}

// Cap returns the configured bound, 0 when unbounded
func (w *Window[T]) Cap() int {
	if w.maxSize < 0 {
		return 0
	}
	return w.maxSize
}
