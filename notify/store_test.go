package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingReminder(fixtureID int) Reminder {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return Reminder{
		ID:        uuid.New(),
		FixtureID: fixtureID,
		FireAt:    now.Add(time.Hour),
		Mechanism: ExactAlarm,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreSupersedeSwapsPendingReminder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	old := pendingReminder(1001)
	require.NoError(t, store.Save(ctx, old))

	next := pendingReminder(1001)
	at := old.CreatedAt.Add(time.Minute)
	require.NoError(t, store.Supersede(ctx, old.ID, next, at))

	got, err := store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, ReasonSuperseded, got.Reason)
	assert.Equal(t, at, got.UpdatedAt)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, next.ID, pending[0].ID)
}

func TestMemoryStoreSupersedeIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	old := pendingReminder(1001)
	taken := pendingReminder(2002)
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, taken))

	next := pendingReminder(1001)
	next.ID = taken.ID
	assert.ErrorIs(t, store.Supersede(ctx, old.ID, next, time.Now()), ErrDuplicate)
	got, err := store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestMemoryStoreUpdateMechanism(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	r := pendingReminder(1001)
	require.NoError(t, store.Save(ctx, r))

	require.NoError(t, store.UpdateMechanism(ctx, r.ID, DeferredWork, r.CreatedAt))
	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, DeferredWork, got.Mechanism)

	require.NoError(t, store.UpdateStatus(ctx, r.ID, StatusPending, StatusFired, "", r.CreatedAt))
	assert.ErrorIs(t, store.UpdateMechanism(ctx, r.ID, ExactAlarm, r.CreatedAt), ErrInvalidTransition)
	assert.ErrorIs(t, store.UpdateMechanism(ctx, uuid.New(), ExactAlarm, r.CreatedAt), ErrNotFound)
}
