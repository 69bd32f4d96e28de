package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/probelog/internal/event"
)

// RunState summarises the stored events of a run for gap analysis.
type RunState struct {
	Run        Run
	Events     int
	ByKind     map[string]int
	FirstIndex uint64
	LastIndex  uint64
	Missing    uint64 // Indices between 0 and LastIndex with no stored event
	IsComplete bool   // True if at least one event exists and Missing is zero
}

// GetRunState retrieves the stored state of a run.
// Counts are computed in SQL so large runs are not loaded into memory.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{
		Run:    run,
		ByKind: make(map[string]int),
	}

	var first, last sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(seq), MAX(seq)
		FROM events
		WHERE run_id = ?
	`, runID).Scan(&state.Events, &first, &last)
	if err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	if state.Events == 0 {
		return state, nil
	}
	state.FirstIndex = uint64(first.Int64)
	state.LastIndex = uint64(last.Int64)
	state.Missing = state.LastIndex + 1 - uint64(state.Events)

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		WHERE run_id = ?
		GROUP BY kind
	`, runID)
	if err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, n int
		if err := rows.Scan(&kind, &n); err != nil {
			return state, fmt.Errorf("get run state: scan: %w", err)
		}
		state.ByKind[event.EventKind(kind).String()] = n
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}

	state.IsComplete = state.Missing == 0
	return state, nil
}
