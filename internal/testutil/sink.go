package testutil

import (
	"bytes"
	"errors"
	"sync"
)

// ErrSinkFailed is returned by FailingWriter once its budget is spent.
var ErrSinkFailed = errors.New("testutil: sink failed")

// FailingWriter accepts Budget bytes and then fails every write.
type FailingWriter struct {
	mu      sync.Mutex
	Budget  int
	written bytes.Buffer
}

// NewFailingWriter returns a writer that fails after budget bytes.
func NewFailingWriter(budget int) *FailingWriter {
	return &FailingWriter{Budget: budget}
}

// Write implements io.Writer. A write that would cross the budget writes
// nothing and fails.
func (w *FailingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written.Len()+len(p) > w.Budget {
		return 0, ErrSinkFailed
	}
	return w.written.Write(p)
}

// Bytes returns a copy of what was accepted.
func (w *FailingWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.written.Bytes())
}

// SyncBuffer is a bytes.Buffer safe to read while another goroutine writes.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Bytes returns a copy of the contents.
func (b *SyncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Len returns the number of bytes written.
func (b *SyncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
