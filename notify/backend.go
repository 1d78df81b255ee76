package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

// Backend registers a reminder on one delivery mechanism. Schedule must never
// invoke fire synchronously. Cancel returns ErrNotScheduled when the id is not
// (or no longer) registered.
type Backend interface {
	Mechanism() Mechanism
	Schedule(ctx context.Context, r Reminder, fire func()) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Pending() int
}

// AlarmClock is the exact path: one timer per reminder, firing at FireAt.
type AlarmClock struct {
	now func() time.Time

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

var _ Backend = (*AlarmClock)(nil)

func NewAlarmClock() *AlarmClock {
	return &AlarmClock{now: time.Now, timers: make(map[uuid.UUID]*time.Timer)}
}

func (a *AlarmClock) Mechanism() Mechanism { return ExactAlarm }

func (a *AlarmClock) Schedule(ctx context.Context, r Reminder, fire func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := a.timers[r.ID]; ok {
		old.Stop()
	}
	id := r.ID
	a.timers[id] = time.AfterFunc(r.Delay(a.now()), func() {
		a.mu.Lock()
		delete(a.timers, id)
		a.mu.Unlock()
		fire()
	})
	return nil
}

func (a *AlarmClock) Cancel(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.timers[id]
	if !ok {
		return ErrNotScheduled
	}
	delete(a.timers, id)
	if !t.Stop() {
		return ErrNotScheduled
	}
	return nil
}

func (a *AlarmClock) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// DefaultSweepInterval is how often DeferredQueue looks for due work.
const DefaultSweepInterval = 30 * time.Second

type queueConfig struct {
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

type QueueOption func(*queueConfig)

func WithSweepInterval(d time.Duration) QueueOption {
	return func(c *queueConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(c *queueConfig) {
		if now != nil {
			c.now = now
		}
	}
}

func WithQueueLogger(log logrus.FieldLogger) QueueOption {
	return func(c *queueConfig) {
		if log != nil {
			c.log = log
		}
	}
}

type deferredJob struct {
	id    uuid.UUID
	runAt time.Time
	fire  func()
}

// DeferredQueue is the fallback path: work is enqueued with a computed delay
// and run by a periodic sweep, so delivery may lag FireAt by up to one sweep
// interval.
type DeferredQueue struct {
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger

	mu   sync.Mutex
	jobs map[uuid.UUID]deferredJob
}

var _ Backend = (*DeferredQueue)(nil)

func NewDeferredQueue(opts ...QueueOption) *DeferredQueue {
	cfg := queueConfig{interval: DefaultSweepInterval, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &DeferredQueue{
		interval: cfg.interval,
		now:      cfg.now,
		log:      logging.Component(cfg.log, "notify.deferred"),
		jobs:     make(map[uuid.UUID]deferredJob),
	}
}

func (q *DeferredQueue) Mechanism() Mechanism { return DeferredWork }

// Schedule enqueues the reminder to run once now+delay has passed.
func (q *DeferredQueue) Schedule(ctx context.Context, r Reminder, fire func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := q.now()
	job := deferredJob{id: r.ID, runAt: now.Add(r.Delay(now)), fire: fire}
	q.mu.Lock()
	q.jobs[r.ID] = job
	q.mu.Unlock()
	return nil
}

func (q *DeferredQueue) Cancel(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[id]; !ok {
		return ErrNotScheduled
	}
	delete(q.jobs, id)
	return nil
}

func (q *DeferredQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Sweep runs every job that is due, oldest first, and returns how many ran.
func (q *DeferredQueue) Sweep() int {
	now := q.now()
	q.mu.Lock()
	var due []deferredJob
	for id, job := range q.jobs {
		if !job.runAt.After(now) {
			due = append(due, job)
			delete(q.jobs, id)
		}
	}
	q.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].runAt.Before(due[j].runAt) })
	for _, job := range due {
		job.fire()
	}
	if len(due) > 0 {
		q.log.WithField("ran", len(due)).Debug("deferred work swept")
	}
	return len(due)
}

// Start sweeps on a cron schedule until ctx is cancelled.
func (q *DeferredQueue) Start(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(q.log)))
	spec := fmt.Sprintf("@every %s", q.interval)
	if _, err := c.AddFunc(spec, func() { q.Sweep() }); err != nil {
		return fmt.Errorf("notify: sweep schedule %q: %w", spec, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
