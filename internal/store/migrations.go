package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Sessions table",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Record the serving process on each session",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    endpoint        TEXT NOT NULL,
    connected_at    INTEGER NOT NULL,
    disconnected_at INTEGER,
    messages        INTEGER NOT NULL DEFAULT 0,
    close_reason    TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_connected ON sessions(connected_at);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_sessions_connected;
DROP TABLE IF EXISTS sessions;
`

const migrationV2Up = `
ALTER TABLE sessions ADD COLUMN server_pid INTEGER NOT NULL DEFAULT 0;
`

const migrationV2Down = `
ALTER TABLE sessions DROP COLUMN server_pid;
`

// LatestVersion is the schema version after all migrations.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// MigrateDB applies all pending migrations to the database.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.Version, time.Now().UnixNano(), m.Description,
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// rollbackMigration rolls back the last applied migration.
func rollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to roll back")
	}

	var m *Migration
	for i := range migrations {
		if migrations[i].Version == current {
			m = &migrations[i]
			break
		}
	}
	if m == nil {
		return fmt.Errorf("migration %d not found", current)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Down); err != nil {
		return fmt.Errorf("roll back migration %d: %w", current, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", current); err != nil {
		return fmt.Errorf("remove migration record: %w", err)
	}
	return tx.Commit()
}
