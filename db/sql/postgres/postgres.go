// Package postgres persists reminders in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
)

// Connect opens the database and, unless WithoutMigrations is given, ensures
// the reminder schema exists.
func Connect(ctx context.Context, opts ...Option) (*sql.DB, error) {
	db, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if buildOptions(opts).SkipMigrations {
		return db, nil
	}
	if err := ApplyMigrations(ctx, db, ReminderSchema...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
