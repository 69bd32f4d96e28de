package tracefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/roach88/probelog/internal/codec"
	"github.com/roach88/probelog/internal/event"
)

const readBufferSize = 64 * 1024

// Reader yields the events of a trace one record at a time.
//
// Once Next returns an error (io.EOF included) every later call returns the
// same error. A FormatError leaves previously returned events valid.
type Reader struct {
	dec    *codec.Decoder
	closer io.Closer
	err    error
	count  int
}

// NewReader returns a Reader over r, which must be positioned at a record
// boundary.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: codec.NewDecoder(bufio.NewReaderSize(r, readBufferSize))}
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next event, or io.EOF when the trace ends cleanly.
func (r *Reader) Next() (event.Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	e, err := r.dec.Decode()
	if err != nil {
		r.err = err
		return nil, err
	}
	r.count++
	return e, nil
}

// All returns an iterator over the remaining events. Iteration stops after
// the first error, which is yielded with a nil event; a clean end of trace
// yields nothing.
func (r *Reader) All() iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for {
			e, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int64 {
	return r.dec.Offset()
}

// Count returns the number of events returned so far.
func (r *Reader) Count() int {
	return r.count
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
