package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/probelog/internal/event"
)

// EventFilter narrows ReadEvents. Zero fields match everything.
type EventFilter struct {
	// Kind restricts results to one record kind.
	Kind event.EventKind

	// Name matches events whose name contains Name, ignoring case.
	Name string

	// FromIndex skips events with a smaller index.
	FromIndex uint64

	// Limit caps the number of returned events.
	Limit int
}

// ReadEvents returns the events of a run matching filter, ordered by index.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, runID string, filter EventFilter) ([]event.Event, error) {
	var (
		query strings.Builder
		args  = []any{runID}
	)

	query.WriteString(`
		SELECT seq, kind, class_name, line_number, name, is_static, array_identity, array_index, payload
		FROM events
		WHERE run_id = ?`)

	if filter.Kind != 0 {
		if !filter.Kind.Valid() {
			return nil, fmt.Errorf("read events: unknown kind %d", filter.Kind)
		}
		query.WriteString(" AND kind = ?")
		args = append(args, int(filter.Kind))
	}
	if filter.Name != "" {
		query.WriteString(" AND instr(name_key, ?) > 0")
		args = append(args, nameKey(filter.Name))
	}
	if filter.FromIndex > 0 {
		if filter.FromIndex > 1<<63-1 {
			return []event.Event{}, nil
		}
		query.WriteString(" AND seq >= ?")
		args = append(args, int64(filter.FromIndex))
	}
	query.WriteString(" ORDER BY seq ASC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row scanner) (event.Event, error) {
	var (
		r    eventRow
		kind int
	)
	if err := row.Scan(
		&r.seq,
		&kind,
		&r.className,
		&r.lineNumber,
		&r.name,
		&r.isStatic,
		&r.arrayIdentity,
		&r.arrayIndex,
		&r.payload,
	); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	values, err := unmarshalValues(r.payload)
	if err != nil {
		return nil, fmt.Errorf("scan event %d: %w", r.seq, err)
	}

	seq := uint64(r.seq)
	switch event.EventKind(kind) {
	case event.KindMethodCall:
		return &event.MethodCall{
			Seq:       seq,
			Location:  r.name,
			IsStatic:  r.isStatic,
			Arguments: values,
		}, nil
	case event.KindVariableStore:
		v, err := single(values, seq)
		if err != nil {
			return nil, err
		}
		return &event.VariableStore{
			Seq:          seq,
			ClassName:    r.className,
			LineNumber:   r.lineNumber,
			VariableName: r.name,
			Value:        v,
		}, nil
	case event.KindArrayStore:
		v, err := single(values, seq)
		if err != nil {
			return nil, err
		}
		return &event.ArrayStore{
			Seq:           seq,
			ClassName:     r.className,
			LineNumber:    r.lineNumber,
			ArrayIdentity: event.IdentityTag(uint32(nullInt(r.arrayIdentity))),
			ArrayIndex:    int32(nullInt(r.arrayIndex)),
			Value:         v,
		}, nil
	default:
		return nil, fmt.Errorf("scan event %d: unknown kind %d", seq, kind)
	}
}

func single(values []event.Value, seq uint64) (event.Value, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("scan event %d: want 1 value, got %d", seq, len(values))
	}
	return values[0], nil
}

func nullInt(n sql.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}
