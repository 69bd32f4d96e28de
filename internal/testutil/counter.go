package testutil

import "sync"

// DeterministicCounter is a resettable index source for tests.
//
// Unlike engine.Counter it can be reset between runs and told to skip or
// repeat indices, which is how tests simulate a lost or duplicated event.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicCounter struct {
	mu     sync.Mutex
	next   uint64
	repeat bool
}

// NewDeterministicCounter creates a counter whose first index is 0.
func NewDeterministicCounter() *DeterministicCounter {
	return &DeterministicCounter{}
}

// Next returns the next index and advances the counter.
func (c *DeterministicCounter) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.repeat {
		c.repeat = false
		return c.next - 1
	}
	idx := c.next
	c.next++
	return idx
}

// Peek returns the index Next will return, without advancing.
func (c *DeterministicCounter) Peek() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.repeat {
		return c.next - 1
	}
	return c.next
}

// Skip burns n indices, leaving a gap in the sequence.
func (c *DeterministicCounter) Skip(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next += n
}

// RepeatLast makes the next call to Next return the previous index again.
// Has no effect before the first call to Next.
func (c *DeterministicCounter) RepeatLast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next > 0 {
		c.repeat = true
	}
}

// Reset returns the counter to 0.
func (c *DeterministicCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
	c.repeat = false
}
