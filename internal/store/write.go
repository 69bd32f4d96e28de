package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"math"

	"github.com/roach88/probelog/internal/event"
)

// eventRow is the column form of one event.
type eventRow struct {
	seq           int64
	kind          int
	className     string
	lineNumber    int32
	name          string
	isStatic      bool
	arrayIdentity sql.NullInt64
	arrayIndex    sql.NullInt64
	payload       string
}

func toRow(e event.Event) (eventRow, error) {
	if e.Index() > math.MaxInt64 {
		return eventRow{}, fmt.Errorf("index %d exceeds the catalog's signed 64-bit range", e.Index())
	}

	row := eventRow{seq: int64(e.Index()), kind: int(e.Kind())}
	var values []event.Value

	switch ev := e.(type) {
	case *event.MethodCall:
		row.name = ev.Location
		row.isStatic = ev.IsStatic
		values = ev.Arguments
	case *event.VariableStore:
		row.className = ev.ClassName
		row.lineNumber = ev.LineNumber
		row.name = ev.VariableName
		values = []event.Value{ev.Value}
	case *event.ArrayStore:
		row.className = ev.ClassName
		row.lineNumber = ev.LineNumber
		row.name = ev.ClassName
		row.arrayIdentity = sql.NullInt64{Int64: int64(ev.ArrayIdentity), Valid: true}
		row.arrayIndex = sql.NullInt64{Int64: int64(ev.ArrayIndex), Valid: true}
		values = []event.Value{ev.Value}
	default:
		return eventRow{}, fmt.Errorf("unsupported event type %T", e)
	}

	payload, err := marshalValues(values)
	if err != nil {
		return eventRow{}, fmt.Errorf("index %d: %w", e.Index(), err)
	}
	row.payload = payload
	return row, nil
}

// ImportTrace stores every event yielded by events under runID in a single
// transaction and returns the number of newly inserted events.
// Uses ON CONFLICT DO NOTHING for idempotency - importing the same trace
// twice inserts nothing the second time.
//
// The first error yielded by events aborts the import and rolls back.
// The run must already exist (foreign key constraint).
func (s *Store) ImportTrace(ctx context.Context, runID string, events iter.Seq2[event.Event, error]) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import trace: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, class_name, line_number, name, name_key, is_static, array_identity, array_index, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("import trace: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for e, err := range events {
		if err != nil {
			return 0, fmt.Errorf("import trace: read: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("import trace: %w", err)
		}

		row, err := toRow(e)
		if err != nil {
			return 0, fmt.Errorf("import trace: %w", err)
		}

		result, err := stmt.ExecContext(ctx,
			runID,
			row.seq,
			row.kind,
			row.className,
			row.lineNumber,
			row.name,
			nameKey(row.name),
			row.isStatic,
			row.arrayIdentity,
			row.arrayIndex,
			row.payload,
		)
		if err != nil {
			return 0, fmt.Errorf("import trace: insert index %d: %w", row.seq, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("import trace: rows affected: %w", err)
		}
		inserted += int(n)
	}

	// Counts come from the table so repeated imports stay consistent.
	_, err = tx.ExecContext(ctx, `
		UPDATE runs
		SET events_written = (SELECT COUNT(*) FROM events WHERE run_id = ?),
		    last_index = (SELECT MAX(seq) FROM events WHERE run_id = ?)
		WHERE id = ?
	`, runID, runID, runID)
	if err != nil {
		return 0, fmt.Errorf("import trace: update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import trace: commit: %w", err)
	}

	return inserted, nil
}
