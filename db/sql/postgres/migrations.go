package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReminderSchema creates the reminders table. The partial unique index is what
// keeps at most one pending reminder per fixture.
var ReminderSchema = []string{
	`CREATE TABLE IF NOT EXISTS reminders (
    id UUID PRIMARY KEY,
    fixture_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    fire_at TIMESTAMPTZ NOT NULL,
    mechanism TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reminders_one_pending_per_fixture
    ON reminders (fixture_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS reminders_pending_fire_at
    ON reminders (fire_at) WHERE status = 'pending'`,
}

// ApplyMigrations executes the statements in order inside one transaction.
// Empty statements are skipped.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) (err error) {
	if db == nil {
		return errors.New("postgres: db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate statement %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres: migrate commit: %w", err)
	}
	return nil
}
