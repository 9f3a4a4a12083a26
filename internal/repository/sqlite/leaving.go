package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

const (
	leavingRowID = 1

	selectLeavingSQL = `SELECT mode, updated_time FROM leaving_mode WHERE id = ?`

	markLeftSQL = `UPDATE leaving_mode SET mode = ? WHERE id = ?`

	beginLeavingSQL = `
		INSERT INTO leaving_mode (id, mode, updated_time) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mode=excluded.mode, updated_time=excluded.updated_time
	`
)

// LeavingRepository persists the single leaving_mode row.
type LeavingRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLeavingRepository creates a repository over an open database.
func NewLeavingRepository(db *sql.DB) *LeavingRepository {
	return &LeavingRepository{
		db:  db,
		now: time.Now,
	}
}

// Window returns the current mode and the time since it was set.
// A missing row reads as an expired window.
func (r *LeavingRepository) Window(ctx context.Context) (domain.LeavingWindow, error) {
	var (
		mode    string
		updated time.Time
	)

	err := r.db.QueryRowContext(ctx, selectLeavingSQL, leavingRowID).Scan(&mode, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LeavingWindow{Mode: domain.ModeLeft}, nil
		}

		return domain.LeavingWindow{}, fmt.Errorf("select leaving mode: %w", err)
	}

	return domain.LeavingWindow{
		Mode:    mode,
		Elapsed: r.now().Sub(updated),
	}, nil
}

// MarkLeft advances the mode to "left" without touching the timestamp.
func (r *LeavingRepository) MarkLeft(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, markLeftSQL, domain.ModeLeft, leavingRowID); err != nil {
		return fmt.Errorf("mark left: %w", err)
	}

	return nil
}

// BeginLeaving opens a new leaving window starting now.
func (r *LeavingRepository) BeginLeaving(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, beginLeavingSQL, leavingRowID, domain.ModeLeaving, r.now().UTC())
	if err != nil {
		return fmt.Errorf("begin leaving: %w", err)
	}

	return nil
}
