package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

const (
	insertEventSQL = `INSERT INTO event_log (id, occurred_at, kind, type, name, description) VALUES (?, ?, ?, ?, ?, ?)`

	selectEventsSQL = `SELECT id, occurred_at, kind, type, name, description FROM event_log ORDER BY occurred_at DESC, id LIMIT ?`

	// DefaultEventLimit caps List when no positive limit is given.
	DefaultEventLimit = 100

	// MaxEventLimit is the largest page List returns.
	MaxEventLimit = 1000
)

// EventRepository appends to and lists the event_log table.
type EventRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewEventRepository creates a repository over an open database.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{
		db:  db,
		now: time.Now,
	}
}

// Append inserts all events in one transaction. Empty IDs and timestamps are filled in.
func (r *EventRepository) Append(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	now := r.now().UTC()

	for i := range events {
		event := &events[i]

		if event.ID == "" {
			event.ID = uuid.NewString()
		}

		if event.OccurredAt.IsZero() {
			event.OccurredAt = now
		}

		_, err = tx.ExecContext(ctx, insertEventSQL,
			event.ID,
			event.OccurredAt.UTC(),
			event.Kind,
			event.Type,
			event.Name,
			event.Description,
		)
		if err != nil {
			return fmt.Errorf("insert event %q: %w", event.Type, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}

	return nil
}

// List returns the newest events first, at most MaxEventLimit of them.
func (r *EventRepository) List(ctx context.Context, limit int) ([]domain.Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultEventLimit
	case limit > MaxEventLimit:
		limit = MaxEventLimit
	}

	rows, err := r.db.QueryContext(ctx, selectEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var events []domain.Event

	for rows.Next() {
		var event domain.Event
		if err = rows.Scan(&event.ID, &event.OccurredAt, &event.Kind, &event.Type, &event.Name, &event.Description); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.OccurredAt = event.OccurredAt.UTC()
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
