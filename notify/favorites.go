package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

// ErrMatchStarted is returned when favoriting a match that already kicked off.
var ErrMatchStarted = errors.New("notify: match already started")

// DefaultLeadTime is how long before kickoff a favorite's reminder fires.
const DefaultLeadTime = 15 * time.Minute

// Match is the minimum the favorites service needs to know about a fixture.
type Match struct {
	FixtureID int       `json:"fixture_id"`
	Title     string    `json:"title"`
	Kickoff   time.Time `json:"kickoff"`
}

// MatchLookup resolves a fixture id to its match.
type MatchLookup func(ctx context.Context, fixtureID int) (Match, error)

type Favorite struct {
	Match    Match     `json:"match"`
	AddedAt  time.Time `json:"added_at"`
	Reminder *Handle   `json:"reminder,omitempty"`
}

// Favorites ties favoriting a match to its reminder: adding schedules one at
// kickoff minus the lead time, removing cancels it.
type Favorites struct {
	sched  *Scheduler
	lookup MatchLookup
	lead   time.Duration
	now    func() time.Time
	log    logrus.FieldLogger

	mu  sync.Mutex
	set map[int]Favorite

	fixtures keyedMutex
}

// keyedMutex serializes work per fixture id. Entries are dropped once no
// caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id int) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func NewFavorites(sched *Scheduler, lookup MatchLookup, lead time.Duration) *Favorites {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return &Favorites{
		sched:  sched,
		lookup: lookup,
		lead:   lead,
		now:    sched.now,
		log:    logging.Component(sched.log, "notify.favorites"),
		set:    make(map[int]Favorite),
	}
}

// Add favorites a fixture. Favoriting again reschedules the reminder, which
// picks up kickoff changes. When the lead window already started the match
// is still favorited but no reminder is scheduled. Add and Remove for the same
// fixture never interleave.
func (f *Favorites) Add(ctx context.Context, fixtureID int) (Favorite, error) {
	defer f.fixtures.lock(fixtureID)()

	m, err := f.lookup(ctx, fixtureID)
	if err != nil {
		return Favorite{}, fmt.Errorf("notify: lookup fixture %d: %w", fixtureID, err)
	}
	now := f.now()
	if !m.Kickoff.After(now) {
		return Favorite{}, fmt.Errorf("%w: %s", ErrMatchStarted, m.Title)
	}

	fav := Favorite{Match: m, AddedAt: now}
	fireAt := m.Kickoff.Add(-f.lead)
	if fireAt.After(now) {
		h, err := f.sched.Schedule(ctx, Request{
			FixtureID: fixtureID,
			Title:     m.Title,
			Body:      fmt.Sprintf("Kick-off at %s", m.Kickoff.Format("15:04 MST")),
			FireAt:    fireAt,
		})
		if err != nil {
			return Favorite{}, err
		}
		fav.Reminder = &h
	} else {
		if err := f.sched.Cancel(ctx, fixtureID); err != nil && !errors.Is(err, ErrNotScheduled) {
			return Favorite{}, err
		}
		f.log.WithField("fixture_id", fixtureID).Info("favorited inside lead window, no reminder")
	}

	f.mu.Lock()
	f.set[fixtureID] = fav
	f.mu.Unlock()
	return fav, nil
}

// Remove un-favorites a fixture and cancels its reminder. Removing a fixture
// that is not a favorite is a no-op.
func (f *Favorites) Remove(ctx context.Context, fixtureID int) error {
	defer f.fixtures.lock(fixtureID)()

	f.mu.Lock()
	delete(f.set, fixtureID)
	f.mu.Unlock()

	if err := f.sched.Cancel(ctx, fixtureID); err != nil && !errors.Is(err, ErrNotScheduled) {
		return err
	}
	return nil
}

// List returns favorites ordered by kickoff.
func (f *Favorites) List() []Favorite {
	f.mu.Lock()
	out := make([]Favorite, 0, len(f.set))
	for _, fav := range f.set {
		out = append(out, fav)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Match.Kickoff.Before(out[j].Match.Kickoff) })
	return out
}

// Restore rebuilds the favorite set from the scheduler's pending reminders,
// typically right after Scheduler.Restore. Matches that can no longer be
// looked up are rebuilt from the reminder itself.
func (f *Favorites) Restore(ctx context.Context) int {
	restored := 0
	for _, r := range f.sched.List() {
		m, err := f.lookup(ctx, r.FixtureID)
		if err != nil {
			f.log.WithError(err).WithField("fixture_id", r.FixtureID).Warn("favorite lookup failed, using reminder data")
			m = Match{FixtureID: r.FixtureID, Title: r.Title, Kickoff: r.FireAt.Add(f.lead)}
		}
		h := f.sched.handle(r)
		f.mu.Lock()
		f.set[r.FixtureID] = Favorite{Match: m, AddedAt: r.CreatedAt, Reminder: &h}
		f.mu.Unlock()
		restored++
	}
	return restored
}

// Has reports whether fixtureID is a favorite.
func (f *Favorites) Has(fixtureID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.set[fixtureID]
	return ok
}
