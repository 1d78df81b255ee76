package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Mc-ouma/LivPredApp-sub001/notify"
)

var testColumns = []string{"id", "fixture_id", "title", "body", "fire_at", "mechanism", "status", "reason", "created_at", "updated_at"}

func newMockRepository(t *testing.T) (*ReminderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewReminderRepository(db), mock
}

func sampleReminder() notify.Reminder {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return notify.Reminder{
		ID:        uuid.MustParse("6f1c2d9e-0b55-4d86-9c5a-4f3a3c1e2b10"),
		FixtureID: 1001,
		Title:     "Arsenal vs Chelsea",
		Body:      "Kick-off in 15 minutes",
		FireAt:    now.Add(2 * time.Hour),
		Mechanism: notify.ExactAlarm,
		Status:    notify.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func reminderRow(rows *sqlmock.Rows, r notify.Reminder) *sqlmock.Rows {
	return rows.AddRow(r.ID.String(), r.FixtureID, r.Title, r.Body, r.FireAt, r.Mechanism.String(), r.Status.String(), r.Reason, r.CreatedAt, r.UpdatedAt)
}

func TestReminderRepositorySave(t *testing.T) {
	repo, mock := newMockRepository(t)
	rem := sampleReminder()

	mock.ExpectExec("INSERT INTO reminders").
		WithArgs(rem.ID, rem.FixtureID, rem.Title, rem.Body, rem.FireAt, "exact_alarm", "pending", "", rem.CreatedAt, rem.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), rem); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestReminderRepositorySaveDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("INSERT INTO reminders").WillReturnError(&pq.Error{Code: "23505"})

	if err := repo.Save(context.Background(), sampleReminder()); !errors.Is(err, notify.ErrDuplicate) {
		t.Fatalf("Save() error = %v, want %v", err, notify.ErrDuplicate)
	}
}

func TestReminderRepositoryGet(t *testing.T) {
	repo, mock := newMockRepository(t)
	rem := sampleReminder()
	rem.Mechanism = notify.DeferredWork

	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE id").
		WithArgs(rem.ID).
		WillReturnRows(reminderRow(sqlmock.NewRows(testColumns), rem))

	got, err := repo.Get(context.Background(), rem.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != rem.ID || got.FixtureID != 1001 {
		t.Fatalf("Get() = %+v", got)
	}
	if got.Mechanism != notify.DeferredWork || got.Status != notify.StatusPending {
		t.Fatalf("Get() mechanism/status = %v/%v", got.Mechanism, got.Status)
	}
	if !got.FireAt.Equal(rem.FireAt) {
		t.Fatalf("Get() fire_at = %v, want %v", got.FireAt, rem.FireAt)
	}
}

func TestReminderRepositoryGetMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE id").WillReturnRows(sqlmock.NewRows(testColumns))

	if _, err := repo.Get(context.Background(), uuid.New()); !errors.Is(err, notify.ErrNotFound) {
		t.Fatalf("Get() error = %v, want %v", err, notify.ErrNotFound)
	}
}

func TestReminderRepositoryGetRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepository(t)
	rem := sampleReminder()

	rows := sqlmock.NewRows(testColumns).
		AddRow(rem.ID.String(), rem.FixtureID, rem.Title, rem.Body, rem.FireAt, "exact_alarm", "snoozed", "", rem.CreatedAt, rem.UpdatedAt)
	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE id").WillReturnRows(rows)

	if _, err := repo.Get(context.Background(), rem.ID); err == nil {
		t.Fatal("Get() expected error for unknown status")
	}
}

func TestReminderRepositoryUpdateStatus(t *testing.T) {
	repo, mock := newMockRepository(t)
	rem := sampleReminder()
	at := rem.CreatedAt.Add(time.Minute)

	mock.ExpectExec("UPDATE reminders SET status").
		WithArgs(rem.ID, "pending", "cancelled", notify.ReasonSuperseded, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), rem.ID, notify.StatusPending, notify.StatusCancelled, notify.ReasonSuperseded, at); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
}

func TestReminderRepositoryUpdateStatusLostRace(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE reminders SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(context.Background(), id, notify.StatusPending, notify.StatusFired, "", time.Now())
	if !errors.Is(err, notify.ErrInvalidTransition) {
		t.Fatalf("UpdateStatus() error = %v, want %v", err, notify.ErrInvalidTransition)
	}
}

func TestReminderRepositoryUpdateStatusMissing(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE reminders SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatus(context.Background(), id, notify.StatusPending, notify.StatusFired, "", time.Now())
	if !errors.Is(err, notify.ErrNotFound) {
		t.Fatalf("UpdateStatus() error = %v, want %v", err, notify.ErrNotFound)
	}
}

func TestReminderRepositoryUpdateStatusRejectsTerminalMoves(t *testing.T) {
	repo, _ := newMockRepository(t)

	err := repo.UpdateStatus(context.Background(), uuid.New(), notify.StatusFired, notify.StatusCancelled, "", time.Now())
	if !errors.Is(err, notify.ErrInvalidTransition) {
		t.Fatalf("UpdateStatus() error = %v, want %v", err, notify.ErrInvalidTransition)
	}
}

func TestReminderRepositoryUpdateMechanism(t *testing.T) {
	repo, mock := newMockRepository(t)
	rem := sampleReminder()
	at := rem.CreatedAt.Add(time.Hour)

	mock.ExpectExec("UPDATE reminders SET mechanism").
		WithArgs(rem.ID, "deferred_work", at, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateMechanism(context.Background(), rem.ID, notify.DeferredWork, at); err != nil {
		t.Fatalf("UpdateMechanism() error = %v", err)
	}
}

func TestReminderRepositoryUpdateMechanismNotPending(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE reminders SET mechanism").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateMechanism(context.Background(), id, notify.DeferredWork, time.Now())
	if !errors.Is(err, notify.ErrInvalidTransition) {
		t.Fatalf("UpdateMechanism() error = %v, want %v", err, notify.ErrInvalidTransition)
	}
}

func TestReminderRepositorySupersede(t *testing.T) {
	repo, mock := newMockRepository(t)
	oldID := uuid.New()
	next := sampleReminder()
	at := next.CreatedAt

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders SET status").
		WithArgs(oldID, "pending", "cancelled", notify.ReasonSuperseded, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reminders").
		WithArgs(next.ID, next.FixtureID, next.Title, next.Body, next.FireAt, "exact_alarm", "pending", "", next.CreatedAt, next.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Supersede(context.Background(), oldID, next, at); err != nil {
		t.Fatalf("Supersede() error = %v", err)
	}
}

func TestReminderRepositorySupersedeRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	next := sampleReminder()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reminders").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Supersede(context.Background(), uuid.New(), next, next.CreatedAt)
	if !errors.Is(err, notify.ErrDuplicate) {
		t.Fatalf("Supersede() error = %v, want %v", err, notify.ErrDuplicate)
	}
}

func TestReminderRepositoryListPending(t *testing.T) {
	repo, mock := newMockRepository(t)
	first := sampleReminder()
	second := sampleReminder()
	second.ID = uuid.New()
	second.FixtureID = 1002
	second.FireAt = first.FireAt.Add(time.Hour)

	rows := sqlmock.NewRows(testColumns)
	reminderRow(rows, first)
	reminderRow(rows, second)
	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE status = (.+) ORDER BY fire_at").
		WithArgs("pending").
		WillReturnRows(rows)

	got, err := repo.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(got) != 2 || got[0].FixtureID != 1001 || got[1].FixtureID != 1002 {
		t.Fatalf("ListPending() = %+v", got)
	}
}

func TestApplyMigrationsRunsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reminders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := ApplyMigrations(context.Background(), db, ReminderSchema...); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	if err := ApplyMigrations(context.Background(), db, "", "CREATE TABLE t (id int)", "CREATE INDEX i ON t (id)"); err == nil {
		t.Fatal("ApplyMigrations() expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsNilDB(t *testing.T) {
	if err := ApplyMigrations(context.Background(), nil); err == nil {
		t.Fatal("ApplyMigrations(nil) expected error")
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("Open() error = %v, want %v", err, ErrMissingDSN)
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	cfg := buildOptions([]Option{
		WithDSN(""),
		WithMaxOpenConns(0),
		WithMaxIdleConns(-1),
		WithConnMaxLifetime(0),
		WithPingTimeout(-time.Second),
		nil,
	})
	def := defaultOptions()
	if cfg != def {
		t.Fatalf("buildOptions() = %+v, want defaults %+v", cfg, def)
	}

	cfg = buildOptions([]Option{WithDSN("postgres://x"), WithMaxOpenConns(3), WithoutMigrations()})
	if cfg.DSN != "postgres://x" || cfg.MaxOpenConns != 3 || !cfg.SkipMigrations {
		t.Fatalf("buildOptions() = %+v", cfg)
	}
}
