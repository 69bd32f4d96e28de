package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a capture run.
type RunStatus string

const (
	// RunActive is a run whose pipeline has not shut down.
	RunActive RunStatus = "active"

	// RunComplete is a run that shut down with every event written.
	RunComplete RunStatus = "complete"

	// RunStalled is a run whose final flush reported a missing index.
	RunStalled RunStatus = "stalled"

	// RunFailed is a run stopped by a sink failure.
	RunFailed RunStatus = "failed"

	// RunImported is a trace registered after the fact.
	RunImported RunStatus = "imported"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is one catalog row.
type Run struct {
	ID            string     `json:"id"`
	TracePath     string     `json:"trace_path"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        RunStatus  `json:"status"`
	EventsWritten uint64     `json:"events_written"`
	LastIndex     *uint64    `json:"last_index,omitempty"`
}

// CreateRun inserts a new active run.
func (s *Store) CreateRun(ctx context.Context, id, tracePath string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, trace_path, started_at, status)
		VALUES (?, ?, ?, ?)
	`, id, tracePath, startedAt.UnixMilli(), string(RunActive))
	if err != nil {
		return fmt.Errorf("create run %s: %w", id, err)
	}
	return nil
}

// FinishRun records a run's final status and counts.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, eventsWritten uint64, finishedAt time.Time) error {
	var lastIndex any
	if eventsWritten > 0 {
		lastIndex = int64(eventsWritten - 1)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, events_written = ?, last_index = ?, finished_at = ?
		WHERE id = ?
	`, string(status), int64(eventsWritten), lastIndex, finishedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trace_path, started_at, finished_at, status, events_written, last_index
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns every run, newest first.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_path, started_at, finished_at, status, events_written, last_index
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
		written    int64
		lastIndex  sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.TracePath, &startedAt, &finishedAt, &status, &written, &lastIndex); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Status = RunStatus(status)
	run.StartedAt = time.UnixMilli(startedAt)
	run.EventsWritten = uint64(written)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}
	if lastIndex.Valid {
		idx := uint64(lastIndex.Int64)
		run.LastIndex = &idx
	}
	return run, nil
}
