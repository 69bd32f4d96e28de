package engine

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/probelog/internal/event"
)

// eventQueue is an unbounded multi-producer single-consumer FIFO.
//
// Producers never block each other: Enqueue is one atomic swap plus one store.
// Only the engine's Run goroutine may call TryDequeue.
//
// A published node becomes visible to the consumer only once its link is
// stored, so an Enqueue racing with Close is tracked by the inflight counter.
// The final drain waits for inflight to reach zero before declaring the queue
// empty, which guarantees that every Enqueue that returned true is delivered.
type eventQueue struct {
	head atomic.Pointer[node] // producers swap here
	tail *node                // consumer only; stub node

	length   atomic.Int64
	inflight atomic.Int64
	closed   atomic.Bool

	signal    chan struct{} // buffered, size 1; never closed
	done      chan struct{} // closed by Close
	closeOnce sync.Once
}

type node struct {
	next atomic.Pointer[node]
	ev   event.Event
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	stub := &node{}
	q := &eventQueue{
		tail:   stub,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	q.head.Store(stub)
	return q
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(ev event.Event) bool {
	q.inflight.Add(1)
	defer q.inflight.Add(-1)

	if q.closed.Load() {
		return false
	}

	n := &node{ev: ev}
	prev := q.head.Swap(n)
	prev.next.Store(n)
	q.length.Add(1)

	// Non-blocking: a buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
// Returns (nil, false) when no linked node is available.
// Consumer only.
func (q *eventQueue) TryDequeue() (event.Event, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return nil, false
	}

	ev := next.ev
	// The dequeued node becomes the new stub; drop its payload for GC.
	next.ev = nil
	q.tail = next
	q.length.Add(-1)
	return ev, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed returns a channel closed once Close has been called.
func (q *eventQueue) Closed() <-chan struct{} {
	return q.done
}

// Len returns the number of linked events waiting.
func (q *eventQueue) Len() int {
	return int(q.length.Load())
}

// Drained reports whether the queue is closed, empty, and has no Enqueue
// still in progress. Consumer only.
func (q *eventQueue) Drained() bool {
	return q.closed.Load() && q.inflight.Load() == 0 && q.tail.next.Load() == nil
}

// Close stops accepting events. Events already enqueued remain available.
func (q *eventQueue) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}
