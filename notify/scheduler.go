package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

// Request asks for a reminder about a fixture at FireAt.
type Request struct {
	FixtureID int
	Title     string
	Body      string
	FireAt    time.Time
}

// Handle identifies a registered reminder. Cancel only affects this
// reminder; if it was superseded the call reports ErrNotScheduled.
type Handle struct {
	ID        uuid.UUID `json:"id"`
	FixtureID int       `json:"fixture_id"`
	Mechanism Mechanism `json:"mechanism"`
	FireAt    time.Time `json:"fire_at"`

	s *Scheduler
}

func (h Handle) Cancel(ctx context.Context) error {
	if h.s == nil {
		return ErrNotScheduled
	}
	return h.s.cancel(ctx, h.FixtureID, h.ID, ReasonCancelled)
}

type schedulerConfig struct {
	capability  Capability
	exact       Backend
	deferred    Backend
	store       Store
	sender      Sender
	log         logrus.FieldLogger
	now         func() time.Time
	sendTimeout time.Duration
}

type SchedulerOption func(*schedulerConfig)

func WithCapability(c Capability) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if c != nil {
			cfg.capability = c
		}
	}
}

func WithExactBackend(b Backend) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if b != nil {
			cfg.exact = b
		}
	}
}

func WithDeferredBackend(b Backend) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if b != nil {
			cfg.deferred = b
		}
	}
}

func WithStore(s Store) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if s != nil {
			cfg.store = s
		}
	}
}

func WithSender(s Sender) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if s != nil {
			cfg.sender = s
		}
	}
}

func WithLogger(log logrus.FieldLogger) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithSendTimeout bounds delivery of a fired reminder.
func WithSendTimeout(d time.Duration) SchedulerOption {
	return func(cfg *schedulerConfig) {
		if d > 0 {
			cfg.sendTimeout = d
		}
	}
}

// Scheduler picks the delivery mechanism for each reminder and remembers
// which one it used per fixture, so cancellation always targets the path
// that was actually taken.
type Scheduler struct {
	capability  Capability
	backends    map[Mechanism]Backend
	store       Store
	sender      Sender
	log         logrus.FieldLogger
	now         func() time.Time
	sendTimeout time.Duration

	mu     sync.Mutex
	active map[int]Reminder
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	cfg := schedulerConfig{
		capability:  StaticCapability(true),
		store:       NewMemoryStore(),
		log:         logrus.StandardLogger(),
		now:         time.Now,
		sendTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.exact == nil {
		cfg.exact = NewAlarmClock()
	}
	if cfg.deferred == nil {
		cfg.deferred = NewDeferredQueue(WithQueueLogger(cfg.log))
	}
	if cfg.sender == nil {
		cfg.sender = LogSender{Log: cfg.log}
	}
	return &Scheduler{
		capability:  cfg.capability,
		backends:    map[Mechanism]Backend{ExactAlarm: cfg.exact, DeferredWork: cfg.deferred},
		store:       cfg.store,
		sender:      cfg.sender,
		log:         logging.Component(cfg.log, "notify.scheduler"),
		now:         cfg.now,
		sendTimeout: cfg.sendTimeout,
		active:      make(map[int]Reminder),
	}
}

// Schedule registers a reminder, superseding any pending one for the same
// fixture. The exact path is used when the capability grants it; otherwise,
// or when the exact backend refuses, the deferred path is used. The previous
// reminder is only retired once its successor is registered and stored, so a
// failed reschedule leaves it in place.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (Handle, error) {
	if req.FixtureID <= 0 {
		return Handle{}, fmt.Errorf("%w: fixture id %d", ErrInvalidRequest, req.FixtureID)
	}
	now := s.now()
	if !req.FireAt.After(now) {
		return Handle{}, fmt.Errorf("%w: %s", ErrFireTimeElapsed, req.FireAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := Reminder{
		ID:        uuid.New(),
		FixtureID: req.FixtureID,
		Title:     req.Title,
		Body:      req.Body,
		FireAt:    req.FireAt,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mech, err := s.register(ctx, r, s.preferred())
	if err != nil {
		return Handle{}, err
	}
	r.Mechanism = mech

	prev, superseding := s.active[req.FixtureID]
	if superseding {
		err = s.store.Supersede(ctx, prev.ID, r, now)
	} else {
		err = s.store.Save(ctx, r)
	}
	if err != nil {
		_ = s.backends[mech].Cancel(ctx, r.ID)
		return Handle{}, fmt.Errorf("notify: save reminder: %w", err)
	}
	if superseding {
		s.release(ctx, prev, ReasonSuperseded)
	}
	s.active[r.FixtureID] = r
	scheduledTotal.WithLabelValues(mech.String()).Inc()
	s.log.WithFields(logrus.Fields{
		"fixture_id":  r.FixtureID,
		"reminder_id": r.ID.String(),
		"mechanism":   mech.String(),
		"fire_at":     r.FireAt.Format(time.RFC3339),
	}).Info("reminder scheduled")

	return s.handle(r), nil
}

func (s *Scheduler) preferred() Mechanism {
	if s.capability.CanScheduleExact() {
		return ExactAlarm
	}
	return DeferredWork
}

// register puts r on mech, falling back from exact to deferred on failure.
// Callers hold s.mu.
func (s *Scheduler) register(ctx context.Context, r Reminder, mech Mechanism) (Mechanism, error) {
	fire := s.fireFunc(r.FixtureID, r.ID)
	err := s.backends[mech].Schedule(ctx, r, fire)
	if err == nil {
		return mech, nil
	}
	if mech != ExactAlarm || ctx.Err() != nil {
		return 0, fmt.Errorf("notify: schedule %s: %w", mech, err)
	}
	fallbackTotal.Inc()
	s.log.WithError(err).WithField("fixture_id", r.FixtureID).Warn("exact alarm refused, falling back to deferred work")
	if err := s.backends[DeferredWork].Schedule(ctx, r, fire); err != nil {
		return 0, fmt.Errorf("notify: schedule %s: %w", DeferredWork, err)
	}
	return DeferredWork, nil
}

// retire cancels r on the mechanism it was registered with and records the
// reason. Callers hold s.mu.
func (s *Scheduler) retire(ctx context.Context, r Reminder, reason string) error {
	if err := s.backends[r.Mechanism].Cancel(ctx, r.ID); err != nil && !errors.Is(err, ErrNotScheduled) {
		return fmt.Errorf("notify: cancel %s: %w", r.Mechanism, err)
	}
	delete(s.active, r.FixtureID)
	if err := s.store.UpdateStatus(ctx, r.ID, StatusPending, StatusCancelled, reason, s.now()); err != nil {
		s.log.WithError(err).WithField("reminder_id", r.ID.String()).Warn("could not record cancellation")
	}
	s.cancelled(r, reason)
	return nil
}

// release takes a reminder whose cancellation is already stored off its
// backend. A late callback is harmless because fire checks the active id.
// Callers hold s.mu.
func (s *Scheduler) release(ctx context.Context, r Reminder, reason string) {
	if err := s.backends[r.Mechanism].Cancel(ctx, r.ID); err != nil && !errors.Is(err, ErrNotScheduled) {
		s.log.WithError(err).WithField("reminder_id", r.ID.String()).Warn("superseded reminder still registered")
	}
	s.cancelled(r, reason)
}

func (s *Scheduler) cancelled(r Reminder, reason string) {
	cancelledTotal.WithLabelValues(r.Mechanism.String(), reason).Inc()
	s.log.WithFields(logrus.Fields{
		"fixture_id":  r.FixtureID,
		"reminder_id": r.ID.String(),
		"mechanism":   r.Mechanism.String(),
		"reason":      reason,
	}).Info("reminder cancelled")
}

// Cancel cancels the pending reminder for fixtureID on whichever mechanism it
// was registered with.
func (s *Scheduler) Cancel(ctx context.Context, fixtureID int) error {
	return s.cancel(ctx, fixtureID, uuid.Nil, ReasonCancelled)
}

func (s *Scheduler) cancel(ctx context.Context, fixtureID int, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[fixtureID]
	if !ok || (id != uuid.Nil && r.ID != id) {
		return ErrNotScheduled
	}
	return s.retire(ctx, r, reason)
}

func (s *Scheduler) fireFunc(fixtureID int, id uuid.UUID) func() {
	return func() { s.fire(fixtureID, id) }
}

// fire moves the reminder to Fired exactly once and delivers it. Callbacks for
// reminders that were cancelled or superseded are ignored. The reminder stays
// active until the status write succeeds; a failed write is retried on the
// deferred path.
func (s *Scheduler) fire(fixtureID int, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	s.mu.Lock()
	r, ok := s.active[fixtureID]
	if !ok || r.ID != id {
		s.mu.Unlock()
		s.log.WithField("reminder_id", id.String()).Debug("stale reminder callback ignored")
		return
	}
	now := s.now()
	err := s.store.UpdateStatus(ctx, id, StatusPending, StatusFired, "", now)
	switch {
	case err == nil:
		delete(s.active, fixtureID)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
		delete(s.active, fixtureID)
		s.mu.Unlock()
		s.log.WithError(err).WithField("reminder_id", id.String()).Warn("reminder not fired")
		return
	default:
		s.retryFire(ctx, r, err)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	r.Status = StatusFired
	r.UpdatedAt = now

	entry := s.log.WithFields(logrus.Fields{
		"fixture_id":  r.FixtureID,
		"reminder_id": r.ID.String(),
		"mechanism":   r.Mechanism.String(),
	})
	if err := s.sender.Send(ctx, r); err != nil {
		firedTotal.WithLabelValues(r.Mechanism.String(), "send_failed").Inc()
		entry.WithError(err).Warn("reminder fired but delivery failed")
		return
	}
	firedTotal.WithLabelValues(r.Mechanism.String(), "delivered").Inc()
	entry.Info("reminder fired")
}

// retryFire puts a due reminder whose fired status could not be stored back
// on the deferred path so the next sweep tries again. Callers hold s.mu.
func (s *Scheduler) retryFire(ctx context.Context, r Reminder, cause error) {
	firedTotal.WithLabelValues(r.Mechanism.String(), "store_failed").Inc()
	entry := s.log.WithError(cause).WithFields(logrus.Fields{
		"fixture_id":  r.FixtureID,
		"reminder_id": r.ID.String(),
	})
	if err := s.backends[DeferredWork].Schedule(ctx, r, s.fireFunc(r.FixtureID, r.ID)); err != nil {
		delete(s.active, r.FixtureID)
		entry.WithField("retry_error", err.Error()).Error("reminder dropped until restore, status write failed")
		return
	}
	entry.Error("reminder status write failed, retrying on deferred work")
	if r.Mechanism != DeferredWork {
		r.Mechanism = DeferredWork
		s.active[r.FixtureID] = r
		s.persistMechanism(ctx, r)
	}
}

// persistMechanism records the path r is registered on. Callers hold s.mu.
func (s *Scheduler) persistMechanism(ctx context.Context, r Reminder) {
	if err := s.store.UpdateMechanism(ctx, r.ID, r.Mechanism, s.now()); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"reminder_id": r.ID.String(),
			"mechanism":   r.Mechanism.String(),
		}).Warn("could not record mechanism change")
	}
}

// Active returns the pending reminder for fixtureID.
func (s *Scheduler) Active(fixtureID int) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[fixtureID]
	return r, ok
}

// List returns every pending reminder ordered by fire time.
func (s *Scheduler) List() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.active))
	for _, r := range s.active {
		out = append(out, r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// Restore re-registers pending reminders from the store, typically at
// startup. Reminders whose fire time has passed are registered with no delay
// and fire on their mechanism's next tick. It returns how many were restored.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: list pending: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, r := range pending {
		if cur, ok := s.active[r.FixtureID]; ok && cur.ID == r.ID {
			continue
		}
		mech := r.Mechanism
		if mech == ExactAlarm && !s.capability.CanScheduleExact() {
			mech = DeferredWork
		}
		if _, ok := s.backends[mech]; !ok {
			mech = s.preferred()
		}
		used, err := s.register(ctx, r, mech)
		if err != nil {
			return restored, err
		}
		if used != r.Mechanism {
			r.Mechanism = used
			r.UpdatedAt = s.now()
			s.persistMechanism(ctx, r)
		}
		s.active[r.FixtureID] = r
		restored++
	}
	if restored > 0 {
		s.log.WithField("restored", restored).Info("pending reminders restored")
	}
	return restored, nil
}

func (s *Scheduler) handle(r Reminder) Handle {
	return Handle{ID: r.ID, FixtureID: r.FixtureID, Mechanism: r.Mechanism, FireAt: r.FireAt, s: s}
}
