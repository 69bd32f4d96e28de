package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/probelog/internal/event"
)

func TestCounter_NewCounter(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, event.InitialIndex, c.Peek(), "new counter should start at the initial index")
}

func TestCounter_NewCounterAt(t *testing.T) {
	c := NewCounterAt(100)
	assert.Equal(t, uint64(100), c.Peek())
	assert.Equal(t, uint64(100), c.Next())
	assert.Equal(t, uint64(101), c.Peek())
}

func TestCounter_Next_GetAndIncrement(t *testing.T) {
	c := NewCounter()

	// First call returns the initial index itself
	assert.Equal(t, uint64(0), c.Next())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())

	assert.Equal(t, uint64(3), c.Peek())
}

func TestCounter_ThreadSafe(t *testing.T) {
	c := NewCounter()
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	indices := make(chan uint64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				indices <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(indices)

	seen := make(map[uint64]bool)
	for idx := range indices {
		assert.False(t, seen[idx], "index %d handed out twice", idx)
		seen[idx] = true
	}

	// Contiguous: exactly 0..N-1
	assert.Len(t, seen, goroutines*callsPerGoroutine)
	for i := uint64(0); i < goroutines*callsPerGoroutine; i++ {
		assert.True(t, seen[i], "index %d never handed out", i)
	}
}
