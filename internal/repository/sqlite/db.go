package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver.
)

const driverName = "sqlite"

const schemaSensorStatus = `
CREATE TABLE IF NOT EXISTS sensor_status (
    name TEXT PRIMARY KEY,
    type TEXT,
    status INTEGER,
    enabled BOOLEAN,
    dismiss BOOLEAN,
    verbose TEXT,
    updated_time TIMESTAMP
);
`

const schemaLeavingMode = `
CREATE TABLE IF NOT EXISTS leaving_mode (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    mode TEXT NOT NULL,
    updated_time TIMESTAMP NOT NULL
);
`

const schemaEventLog = `
CREATE TABLE IF NOT EXISTS event_log (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    kind TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL
);
`

const seedLeavingModeSQL = `INSERT OR IGNORE INTO leaving_mode (id, mode, updated_time) VALUES (1, 'left', ?)`

// Open opens or creates the database file and ensures tables exist.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One connection: writers serialize anyway and pragmas stay per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err = db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err = ensureSchema(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaSensorStatus,
		schemaLeavingMode,
		schemaEventLog,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if _, err = tx.ExecContext(ctx, seedLeavingModeSQL, time.Now().UTC()); err != nil {
		return fmt.Errorf("seed leaving mode: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	return nil
}
