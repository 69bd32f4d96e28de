package engine

import (
	"container/heap"

	"github.com/roach88/probelog/internal/event"
)

// reorderHeap parks events that arrived ahead of their turn.
// Owned by the Run goroutine; not safe for concurrent use.
type reorderHeap []event.Event

func (h reorderHeap) Len() int           { return len(h) }
func (h reorderHeap) Less(i, j int) bool { return h[i].Index() < h[j].Index() }
func (h reorderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *reorderHeap) Push(x any) {
	*h = append(*h, x.(event.Event))
}

func (h *reorderHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// park adds e to the heap.
func (h *reorderHeap) park(e event.Event) {
	heap.Push(h, e)
}

// peek returns the lowest-indexed parked event.
func (h reorderHeap) peek() (event.Event, bool) {
	if len(h) == 0 {
		return nil, false
	}
	return h[0], true
}

// pop removes the lowest-indexed parked event.
func (h *reorderHeap) pop() event.Event {
	return heap.Pop(h).(event.Event)
}
