package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

const (
	selectSensorsSQL = `SELECT name, status, updated_time, enabled, type, dismiss, verbose FROM sensor_status ORDER BY name`

	upsertSensorSQL = `
		INSERT INTO sensor_status (name, type, status, enabled, dismiss, verbose, updated_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type=excluded.type,
			status=excluded.status,
			enabled=excluded.enabled,
			dismiss=excluded.dismiss,
			verbose=excluded.verbose,
			updated_time=excluded.updated_time
	`
)

// SensorRepository reads and writes the sensor_status table.
type SensorRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSensorRepository creates a repository over an open database.
func NewSensorRepository(db *sql.DB) *SensorRepository {
	return &SensorRepository{
		db:  db,
		now: time.Now,
	}
}

// Snapshot returns every sensor row. A row with a NULL type, status, enabled
// or dismiss column fails the whole snapshot with domain.ErrMalformedReading.
func (r *SensorRepository) Snapshot(ctx context.Context) ([]domain.SensorReading, error) {
	rows, err := r.db.QueryContext(ctx, selectSensorsSQL)
	if err != nil {
		return nil, fmt.Errorf("select sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	readings := make([]domain.SensorReading, 0, 16)

	for rows.Next() {
		var (
			name       string
			status     sql.NullInt64
			updated    sql.NullTime
			enabled    sql.NullBool
			sensorType sql.NullString
			dismiss    sql.NullBool
			verbose    sql.NullString
		)

		if err = rows.Scan(&name, &status, &updated, &enabled, &sensorType, &dismiss, &verbose); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		if !status.Valid || !enabled.Valid || !sensorType.Valid || !dismiss.Valid {
			return nil, fmt.Errorf("%w: sensor %q has NULL fields", domain.ErrMalformedReading, name)
		}

		reading := domain.SensorReading{
			Name:      name,
			Type:      sensorType.String,
			Enabled:   enabled.Bool,
			Status:    int(status.Int64),
			Dismiss:   dismiss.Bool,
			Verbose:   verbose.String,
			UpdatedAt: updated.Time.UTC(),
		}

		if err = reading.Validate(); err != nil {
			return nil, err
		}

		readings = append(readings, reading)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	return readings, nil
}

// Upsert stores the latest report of a sensor.
func (r *SensorRepository) Upsert(ctx context.Context, reading *domain.SensorReading) error {
	if err := reading.Validate(); err != nil {
		return err
	}

	updated := reading.UpdatedAt
	if updated.IsZero() {
		updated = r.now()
	}

	_, err := r.db.ExecContext(ctx, upsertSensorSQL,
		reading.Name,
		reading.Type,
		reading.Status,
		reading.Enabled,
		reading.Dismiss,
		reading.Verbose,
		updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert sensor %q: %w", reading.Name, err)
	}

	return nil
}
