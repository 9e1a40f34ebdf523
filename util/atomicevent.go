package util

import (
	"sync"
)

// AtomicEvent holds the latest value of a stream and signals that a new one
// arrived. Older values are overwritten, so a slow reader only ever sees the
// newest.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	seq    uint64
	notify chan struct{} // capacity 1
}

// NewAtomicEvent creates a new AtomicEvent instance.
func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send stores event as the latest value. It never blocks.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value = event
	ae.seq++

	select {
	case ae.notify <- struct{}{}:
	default:
		// notification already pending
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest value.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// Snapshot returns the latest value together with the number of values sent
// so far. A count of zero means Value is still the zero value of T.
func (ae *AtomicEvent[T]) Snapshot() (T, uint64) {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value, ae.seq
}

// HasPending reports whether a notification is waiting to be consumed.
func (ae *AtomicEvent[T]) HasPending() bool {
	return len(ae.notify) > 0
}
