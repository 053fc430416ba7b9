package logger

import "sync"

// RingBuffer keeps the most recent items up to a fixed capacity.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewRingBuffer creates a ring buffer holding at most capacity items.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// Push appends item, dropping the oldest one when full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = item
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

// GetAll returns the buffered items, oldest first.
func (r *RingBuffer[T]) GetAll() []T {
	return r.Select(nil, 0)
}

// Select returns buffered items accepted by keep, oldest first. A positive
// limit keeps only the newest limit matches. A nil keep accepts everything.
func (r *RingBuffer[T]) Select(keep func(T) bool, limit int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []T
	if r.full {
		ordered = append(ordered, r.items[r.next:]...)
	}
	ordered = append(ordered, r.items[:r.next]...)

	result := make([]T, 0, len(ordered))
	for _, item := range ordered {
		if keep == nil || keep(item) {
			result = append(result, item)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// Len returns the number of buffered items.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.items)
	}
	return r.next
}
