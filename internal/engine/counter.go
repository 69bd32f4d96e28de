package engine

import (
	"sync/atomic"

	"github.com/roach88/probelog/internal/event"
)

// Counter hands out sequence indices.
//
// Every event draws its index from the Counter at creation, so indices are
// strictly increasing in creation order and never reused. The Counter is an
// explicit dependency rather than a global so tests can start it anywhere.
//
// Thread-safety: Counter is safe for concurrent use (atomic operations).
type Counter struct {
	next atomic.Uint64
}

// NewCounter creates a counter whose first index is event.InitialIndex.
func NewCounter() *Counter {
	return NewCounterAt(event.InitialIndex)
}

// NewCounterAt creates a counter whose first index is start.
func NewCounterAt(start uint64) *Counter {
	c := &Counter{}
	c.next.Store(start)
	return c
}

// Next returns the next index and advances the counter.
// Calls are linearizable: each call returns a unique value.
func (c *Counter) Next() uint64 {
	return c.next.Add(1) - 1
}

// Peek returns the index the next call to Next will return.
func (c *Counter) Peek() uint64 {
	return c.next.Load()
}
