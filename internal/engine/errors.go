package engine

import (
	"errors"
	"fmt"
)

// EngineFatalError reports a sink write or flush failure.
//
// The stream position after a failed write is unknown, so nothing more can be
// written safely. The engine stops at once; the owning process is expected to
// terminate.
type EngineFatalError struct {
	// Index is the event being written, valid when Op is "write".
	Index uint64

	// Op is "write" or "flush".
	Op string

	// Err is the sink's error.
	Err error
}

// Error implements the error interface.
func (e *EngineFatalError) Error() string {
	if e.Op == "write" {
		return fmt.Sprintf("engine fatal: write index %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("engine fatal: %s: %v", e.Op, e.Err)
}

// Unwrap returns the sink's error.
func (e *EngineFatalError) Unwrap() error {
	return e.Err
}

// OrderingStallError reports that the final flush could not write every
// parked event.
//
// It means a producer published a duplicate index or an index was drawn and
// never published.
type OrderingStallError struct {
	// Index is the next index expected and never seen. It is set only when
	// Pending > 0; a stall caused only by stale indices leaves it zero.
	Index uint64

	// Pending is the number of events left parked behind Index.
	Pending int

	// Stale lists indices that arrived after their slot had been written.
	Stale []uint64
}

// Error implements the error interface.
func (e *OrderingStallError) Error() string {
	if e.Pending == 0 && len(e.Stale) > 0 {
		return fmt.Sprintf("ordering stall: %d stale or duplicate indices (first %d)", len(e.Stale), e.Stale[0])
	}
	return fmt.Sprintf("ordering stall: index %d never arrived (%d pending)", e.Index, e.Pending)
}

// IsFatalError returns true if err is or wraps an *EngineFatalError.
func IsFatalError(err error) bool {
	var fe *EngineFatalError
	return errors.As(err, &fe)
}

// IsStallError returns true if err is or wraps an *OrderingStallError.
func IsStallError(err error) bool {
	var se *OrderingStallError
	return errors.As(err, &se)
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("engine: already running")
