package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Mc-ouma/LivPredApp-sub001/notify"
)

const reminderColumns = `id, fixture_id, title, body, fire_at, mechanism, status, reason, created_at, updated_at`

// ReminderRepository is the PostgreSQL notify.Store.
type ReminderRepository struct {
	db *sql.DB
}

var _ notify.Store = (*ReminderRepository)(nil)

// NewReminderRepository wraps an existing *sql.DB connection.
func NewReminderRepository(db *sql.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Save(ctx context.Context, rem notify.Reminder) error {
	const query = `INSERT INTO reminders (` + reminderColumns + `)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		rem.ID,
		rem.FixtureID,
		rem.Title,
		rem.Body,
		rem.FireAt.UTC(),
		rem.Mechanism.String(),
		rem.Status.String(),
		rem.Reason,
		rem.CreatedAt.UTC(),
		rem.UpdatedAt.UTC(),
	)
	return translateReminderError(err)
}

func (r *ReminderRepository) Get(ctx context.Context, id uuid.UUID) (notify.Reminder, error) {
	const query = `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notify.Reminder{}, notify.ErrNotFound
		}
		return notify.Reminder{}, translateReminderError(err)
	}
	return rem, nil
}

// UpdateStatus moves a reminder from one status to another only when the row
// still holds from.
func (r *ReminderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to notify.Status, reason string, at time.Time) error {
	if !from.CanTransition(to) {
		return notify.ErrInvalidTransition
	}
	const query = `UPDATE reminders SET status = $3, reason = $4, updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from.String(), to.String(), reason, at.UTC())
	if err != nil {
		return translateReminderError(err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	return r.missedUpdate(ctx, id)
}

// UpdateMechanism records the path a pending reminder is now registered on.
func (r *ReminderRepository) UpdateMechanism(ctx context.Context, id uuid.UUID, mech notify.Mechanism, at time.Time) error {
	const query = `UPDATE reminders SET mechanism = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, mech.String(), at.UTC(), notify.StatusPending.String())
	if err != nil {
		return translateReminderError(err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	return r.missedUpdate(ctx, id)
}

// Supersede cancels the old reminder and inserts next in one transaction, so
// the one-pending-per-fixture index never sees both or neither.
func (r *ReminderRepository) Supersede(ctx context.Context, oldID uuid.UUID, next notify.Reminder, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translateReminderError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const cancel = `UPDATE reminders SET status = $3, reason = $4, updated_at = $5 WHERE id = $1 AND status = $2`
	if _, err = tx.ExecContext(ctx, cancel, oldID,
		notify.StatusPending.String(), notify.StatusCancelled.String(), notify.ReasonSuperseded, at.UTC(),
	); err != nil {
		return translateReminderError(err)
	}
	const insert = `INSERT INTO reminders (` + reminderColumns + `)
                    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err = tx.ExecContext(ctx, insert,
		next.ID,
		next.FixtureID,
		next.Title,
		next.Body,
		next.FireAt.UTC(),
		next.Mechanism.String(),
		next.Status.String(),
		next.Reason,
		next.CreatedAt.UTC(),
		next.UpdatedAt.UTC(),
	); err != nil {
		return translateReminderError(err)
	}
	if err = tx.Commit(); err != nil {
		return translateReminderError(err)
	}
	return nil
}

// missedUpdate explains a guarded UPDATE that touched no rows.
func (r *ReminderRepository) missedUpdate(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return translateReminderError(err)
	}
	if !exists {
		return notify.ErrNotFound
	}
	return notify.ErrInvalidTransition
}

// ListPending returns pending reminders ordered by fire time.
func (r *ReminderRepository) ListPending(ctx context.Context) ([]notify.Reminder, error) {
	const query = `SELECT ` + reminderColumns + ` FROM reminders WHERE status = $1 ORDER BY fire_at`
	rows, err := r.db.QueryContext(ctx, query, notify.StatusPending.String())
	if err != nil {
		return nil, translateReminderError(err)
	}
	defer rows.Close()

	var out []notify.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, translateReminderError(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (notify.Reminder, error) {
	var (
		rem       notify.Reminder
		mechanism string
		status    string
	)
	err := row.Scan(
		&rem.ID,
		&rem.FixtureID,
		&rem.Title,
		&rem.Body,
		&rem.FireAt,
		&mechanism,
		&status,
		&rem.Reason,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return notify.Reminder{}, err
	}
	if rem.Mechanism, err = notify.ParseMechanism(mechanism); err != nil {
		return notify.Reminder{}, fmt.Errorf("postgres: reminder %s: %w", rem.ID, err)
	}
	if rem.Status, err = notify.ParseStatus(status); err != nil {
		return notify.Reminder{}, fmt.Errorf("postgres: reminder %s: %w", rem.ID, err)
	}
	return rem, nil
}

func translateReminderError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return notify.ErrDuplicate
		case "22P02":
			return notify.ErrNotFound
		}
	}
	return err
}
