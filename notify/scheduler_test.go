package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend captures registrations so tests can fire them by hand.
type recordingBackend struct {
	mech Mechanism
	err  error

	mu        sync.Mutex
	fires     map[uuid.UUID]func()
	scheduled []uuid.UUID
	cancelled []uuid.UUID
}

func newRecordingBackend(m Mechanism) *recordingBackend {
	return &recordingBackend{mech: m, fires: map[uuid.UUID]func(){}}
}

func (b *recordingBackend) Mechanism() Mechanism { return b.mech }

func (b *recordingBackend) Schedule(_ context.Context, r Reminder, fire func()) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fires[r.ID] = fire
	b.scheduled = append(b.scheduled, r.ID)
	return nil
}

func (b *recordingBackend) Cancel(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.fires[id]; !ok {
		return ErrNotScheduled
	}
	delete(b.fires, id)
	b.cancelled = append(b.cancelled, id)
	return nil
}

func (b *recordingBackend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fires)
}

func (b *recordingBackend) fire(id uuid.UUID) {
	b.mu.Lock()
	f := b.fires[id]
	b.mu.Unlock()
	f()
}

func (b *recordingBackend) cancelledIDs() []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uuid.UUID(nil), b.cancelled...)
}

type captureSender struct {
	mu   sync.Mutex
	sent []Reminder
}

func (s *captureSender) Send(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, r)
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// flakyStore fails selected writes on top of a MemoryStore.
type flakyStore struct {
	*MemoryStore

	mu           sync.Mutex
	supersedeErr error
	firedFails   int
}

func (f *flakyStore) Supersede(ctx context.Context, oldID uuid.UUID, next Reminder, at time.Time) error {
	f.mu.Lock()
	err := f.supersedeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.Supersede(ctx, oldID, next, at)
}

func (f *flakyStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason string, at time.Time) error {
	f.mu.Lock()
	if to == StatusFired && f.firedFails > 0 {
		f.firedFails--
		f.mu.Unlock()
		return errors.New("db down")
	}
	f.mu.Unlock()
	return f.MemoryStore.UpdateStatus(ctx, id, from, to, reason, at)
}

type harness struct {
	sched    *Scheduler
	exact    *recordingBackend
	deferred *recordingBackend
	store    *MemoryStore
	sender   *captureSender
	grant    *bool
	now      time.Time
}

func newHarness(t *testing.T, exactGranted bool) *harness {
	t.Helper()
	h := &harness{
		exact:    newRecordingBackend(ExactAlarm),
		deferred: newRecordingBackend(DeferredWork),
		store:    NewMemoryStore(),
		sender:   &captureSender{},
		grant:    &exactGranted,
		now:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	h.sched = h.build(h.store)
	return h
}

// build returns a scheduler over the harness backends, as a restarted
// process would get.
func (h *harness) build(store Store) *Scheduler {
	log, _ := logtest.NewNullLogger()
	return NewScheduler(
		WithCapability(CapabilityFunc(func() bool { return *h.grant })),
		WithExactBackend(h.exact),
		WithDeferredBackend(h.deferred),
		WithStore(store),
		WithSender(h.sender),
		WithLogger(log),
		WithClock(func() time.Time { return h.now }),
	)
}

func (h *harness) request(fixtureID int) Request {
	return Request{FixtureID: fixtureID, Title: "Arsenal vs Chelsea", FireAt: h.now.Add(2 * time.Hour)}
}

func (h *harness) status(t *testing.T, id uuid.UUID) Reminder {
	t.Helper()
	r, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestScheduleUsesExactAlarmWhenGranted(t *testing.T) {
	h := newHarness(t, true)

	handle, err := h.sched.Schedule(context.Background(), h.request(1001))
	require.NoError(t, err)

	assert.Equal(t, ExactAlarm, handle.Mechanism)
	assert.Equal(t, 1, h.exact.Pending())
	assert.Equal(t, 0, h.deferred.Pending())
	assert.Equal(t, StatusPending, h.status(t, handle.ID).Status)
}

func TestScheduleFallsBackToDeferredWithoutCapability(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	handle, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)
	assert.Equal(t, DeferredWork, handle.Mechanism)
	assert.Equal(t, 0, h.exact.Pending())

	require.NoError(t, h.sched.Cancel(ctx, 1001))

	assert.Equal(t, []uuid.UUID{handle.ID}, h.deferred.cancelledIDs(), "deferred request is the one cancelled")
	assert.Empty(t, h.exact.cancelledIDs(), "no alarm is touched")
	r := h.status(t, handle.ID)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, ReasonCancelled, r.Reason)
}

func TestScheduleFallsBackWhenExactBackendRefuses(t *testing.T) {
	h := newHarness(t, true)
	h.exact.err = errors.New("alarm quota exhausted")

	handle, err := h.sched.Schedule(context.Background(), h.request(1001))
	require.NoError(t, err)

	assert.Equal(t, DeferredWork, handle.Mechanism)
	assert.Equal(t, DeferredWork, h.status(t, handle.ID).Mechanism)
	assert.Equal(t, 1, h.deferred.Pending())
}

func TestRescheduleCancelsPreviousOnItsOwnMechanism(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	first, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)
	require.Equal(t, ExactAlarm, first.Mechanism)

	*h.grant = false
	second, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)
	require.Equal(t, DeferredWork, second.Mechanism)

	assert.Equal(t, []uuid.UUID{first.ID}, h.exact.cancelledIDs())
	assert.Empty(t, h.deferred.cancelledIDs())

	old := h.status(t, first.ID)
	assert.Equal(t, StatusCancelled, old.Status)
	assert.Equal(t, ReasonSuperseded, old.Reason)

	active, ok := h.sched.Active(1001)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	assert.ErrorIs(t, first.Cancel(ctx), ErrNotScheduled, "a superseded handle cannot cancel its successor")
	require.NoError(t, h.sched.Cancel(ctx, 1001))
	assert.Equal(t, []uuid.UUID{second.ID}, h.deferred.cancelledIDs())
}

func TestScheduleRejectsElapsedFireTime(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.sched.Schedule(context.Background(), Request{FixtureID: 1, FireAt: h.now})
	assert.ErrorIs(t, err, ErrFireTimeElapsed)

	_, err = h.sched.Schedule(context.Background(), Request{FixtureID: 0, FireAt: h.now.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFireTransitionsExactlyOnce(t *testing.T) {
	h := newHarness(t, true)

	handle, err := h.sched.Schedule(context.Background(), h.request(1001))
	require.NoError(t, err)

	h.exact.fire(handle.ID)
	h.exact.fire(handle.ID)

	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, StatusFired, h.status(t, handle.ID).Status)
	_, ok := h.sched.Active(1001)
	assert.False(t, ok)
	assert.ErrorIs(t, h.sched.Cancel(context.Background(), 1001), ErrNotScheduled, "fired is terminal")
}

func TestStaleFireIsIgnored(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	first, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)
	fireFirst := h.exact.fires[first.ID]

	second, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)

	fireFirst()

	assert.Zero(t, h.sender.count())
	assert.Equal(t, StatusCancelled, h.status(t, first.ID).Status)
	assert.Equal(t, StatusPending, h.status(t, second.ID).Status)
}

func TestCancelUnknownFixture(t *testing.T) {
	h := newHarness(t, true)
	assert.ErrorIs(t, h.sched.Cancel(context.Background(), 7), ErrNotScheduled)
}

func TestListOrdersByFireTime(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	late := h.request(1)
	late.FireAt = h.now.Add(3 * time.Hour)
	early := h.request(2)
	early.FireAt = h.now.Add(time.Hour)

	_, err := h.sched.Schedule(ctx, late)
	require.NoError(t, err)
	_, err = h.sched.Schedule(ctx, early)
	require.NoError(t, err)

	list := h.sched.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].FixtureID)
	assert.Equal(t, 1, list[1].FixtureID)
}

func TestRestoreReregistersPendingReminders(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	due := Reminder{ID: uuid.New(), FixtureID: 10, FireAt: h.now.Add(-time.Minute), Mechanism: ExactAlarm, Status: StatusPending}
	later := Reminder{ID: uuid.New(), FixtureID: 11, FireAt: h.now.Add(time.Hour), Mechanism: DeferredWork, Status: StatusPending}
	done := Reminder{ID: uuid.New(), FixtureID: 12, FireAt: h.now.Add(time.Hour), Mechanism: DeferredWork, Status: StatusFired}
	for _, r := range []Reminder{due, later, done} {
		require.NoError(t, h.store.Save(ctx, r))
	}

	n, err := h.sched.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, h.deferred.Pending(), "exact reminders move to deferred once the grant is gone")

	n, err = h.sched.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "restoring twice is a no-op")
	assert.Equal(t, DeferredWork, h.status(t, due.ID).Mechanism, "the stored mechanism follows the path in use")

	h.deferred.fire(due.ID)
	assert.Equal(t, StatusFired, h.status(t, due.ID).Status)
}

func TestFailedRescheduleKeepsPreviousReminder(t *testing.T) {
	h := newHarness(t, true)
	store := &flakyStore{MemoryStore: h.store}
	h.sched = h.build(store)
	ctx := context.Background()

	first, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)

	store.supersedeErr = errors.New("db down")
	_, err = h.sched.Schedule(ctx, h.request(1001))
	require.Error(t, err)

	h.exact.err = errors.New("alarm quota exhausted")
	h.deferred.err = errors.New("queue full")
	_, err = h.sched.Schedule(ctx, h.request(1001))
	require.Error(t, err)

	active, ok := h.sched.Active(1001)
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, StatusPending, h.status(t, first.ID).Status)
	assert.Equal(t, 1, h.exact.Pending(), "only the original alarm is left registered")

	h.exact.fire(first.ID)
	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, StatusFired, h.status(t, first.ID).Status)
}

func TestRestorePersistsMechanismSwitch(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	handle, err := h.sched.Schedule(ctx, h.request(1001))
	require.NoError(t, err)
	require.Equal(t, ExactAlarm, handle.Mechanism)

	*h.grant = false
	restarted := h.build(h.store)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, ok := restarted.Active(1001)
	require.True(t, ok)
	assert.Equal(t, DeferredWork, active.Mechanism)
	assert.Equal(t, DeferredWork, h.status(t, handle.ID).Mechanism)
}

func TestFireRetriesWhenStatusWriteFails(t *testing.T) {
	h := newHarness(t, true)
	store := &flakyStore{MemoryStore: h.store, firedFails: 1}
	h.sched = h.build(store)

	handle, err := h.sched.Schedule(context.Background(), h.request(1001))
	require.NoError(t, err)

	h.exact.fire(handle.ID)
	assert.Zero(t, h.sender.count())
	active, ok := h.sched.Active(1001)
	require.True(t, ok, "reminder stays active until its status is stored")
	assert.Equal(t, DeferredWork, active.Mechanism)
	assert.Equal(t, DeferredWork, h.status(t, handle.ID).Mechanism)
	assert.Equal(t, 1, h.deferred.Pending())

	h.deferred.fire(handle.ID)
	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, StatusFired, h.status(t, handle.ID).Status)
	_, ok = h.sched.Active(1001)
	assert.False(t, ok)
}

func TestSchedulerWithRealBackends(t *testing.T) {
	sender := &captureSender{}
	log, _ := logtest.NewNullLogger()
	queue := NewDeferredQueue(WithQueueLogger(log))
	sched := NewScheduler(
		WithCapability(StaticCapability(true)),
		WithDeferredBackend(queue),
		WithSender(sender),
		WithLogger(log),
	)

	_, err := sched.Schedule(context.Background(), Request{FixtureID: 1, Title: "soon", FireAt: time.Now().Add(30 * time.Millisecond)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, queue.Pending())
}

func TestSchedulerMetrics(t *testing.T) {
	h := newHarness(t, true)
	h.exact.err = errors.New("refused")
	fallbacks := testutil.ToFloat64(fallbackTotal)
	delivered := testutil.ToFloat64(firedTotal.WithLabelValues("deferred_work", "delivered"))

	handle, err := h.sched.Schedule(context.Background(), h.request(1001))
	require.NoError(t, err)
	h.deferred.fire(handle.ID)

	assert.Equal(t, fallbacks+1, testutil.ToFloat64(fallbackTotal))
	assert.Equal(t, delivered+1, testutil.ToFloat64(firedTotal.WithLabelValues("deferred_work", "delivered")))
}
