package store

import (
	"context"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/probelog/internal/event"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun registers a run started at a fixed time.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	started := time.UnixMilli(1_700_000_000_000)
	if err := s.CreateRun(context.Background(), id, "/tmp/"+id+".trace", started); err != nil {
		t.Fatalf("CreateRun(%s) failed: %v", id, err)
	}
}

// eventsOf yields events as a trace reader would, followed by err if non-nil.
func eventsOf(err error, events ...event.Event) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for _, e := range events {
			if !yield(e, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func mustCall(t *testing.T, seq uint64, location string, static bool, args ...event.Value) event.Event {
	t.Helper()
	e, err := event.NewMethodCall(seq, location, static, args...)
	if err != nil {
		t.Fatalf("NewMethodCall: %v", err)
	}
	return e
}

func mustStore(t *testing.T, seq uint64, class, name string, v event.Value) event.Event {
	t.Helper()
	e, err := event.NewVariableStore(seq, class, int32(seq+10), name, v)
	if err != nil {
		t.Fatalf("NewVariableStore: %v", err)
	}
	return e
}

func mustArrayStore(t *testing.T, seq uint64, class string, id event.IdentityTag, idx int32, v event.Value) event.Event {
	t.Helper()
	e, err := event.NewArrayStore(seq, class, int32(seq+10), id, idx, v)
	if err != nil {
		t.Fatalf("NewArrayStore: %v", err)
	}
	return e
}
