package football

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Mc-ouma/LivPredApp-sub001/aggregate"
	"github.com/Mc-ouma/LivPredApp-sub001/cache"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

// TTLs sets how long each kind of data stays fresh.
type TTLs struct {
	Fixtures  time.Duration `yaml:"fixtures"`
	Details   time.Duration `yaml:"details"`
	Team      time.Duration `yaml:"team"`
	Standings time.Duration `yaml:"standings"`
}

// DefaultTTLs: fixture lists change rarely within a day, match details
// (lineups, events) move faster.
func DefaultTTLs() TTLs {
	return TTLs{
		Fixtures:  12 * time.Hour,
		Details:   30 * time.Minute,
		Team:      6 * time.Hour,
		Standings: 6 * time.Hour,
	}
}

func (t TTLs) withDefaults() TTLs {
	def := DefaultTTLs()
	if t.Fixtures <= 0 {
		t.Fixtures = def.Fixtures
	}
	if t.Details <= 0 {
		t.Details = def.Details
	}
	if t.Team <= 0 {
		t.Team = def.Team
	}
	if t.Standings <= 0 {
		t.Standings = def.Standings
	}
	return t
}

type repoConfig struct {
	agg      *aggregate.Aggregator
	log      logrus.FieldLogger
	ttls     TTLs
	l2       cache.Store
	l2Prefix string
	now      func() time.Time
	leagues  []Competition
	timezone string
	h2hLast  int
	recent   int
}

type RepositoryOption func(*repoConfig)

func WithAggregator(a *aggregate.Aggregator) RepositoryOption {
	return func(c *repoConfig) { c.agg = a }
}

func WithRepositoryLogger(log logrus.FieldLogger) RepositoryOption {
	return func(c *repoConfig) {
		if log != nil {
			c.log = log
		}
	}
}

func WithTTLs(ttls TTLs) RepositoryOption {
	return func(c *repoConfig) { c.ttls = ttls }
}

// WithSecondLevel backs every in-process cache with store so entries survive
// restarts and are shared between replicas.
func WithSecondLevel(store cache.Store, prefix string) RepositoryOption {
	return func(c *repoConfig) {
		c.l2 = store
		c.l2Prefix = prefix
	}
}

func WithClock(now func() time.Time) RepositoryOption {
	return func(c *repoConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLeagues replaces DefaultLeagues as the set of known competitions.
func WithLeagues(leagues ...Competition) RepositoryOption {
	return func(c *repoConfig) {
		if len(leagues) > 0 {
			c.leagues = append([]Competition(nil), leagues...)
		}
	}
}

// WithTimezone asks the API to render kickoff times in tz.
func WithTimezone(tz string) RepositoryOption {
	return func(c *repoConfig) { c.timezone = tz }
}

// tier is one cached resource kind: an in-process TTL map with an optional
// second-level store behind it.
type tier[V any] struct {
	mem   *cache.TTL[V]
	l2    *cache.Codec[cache.Entry[V]]
	empty func(V) bool
}

func newTier[V any](cfg repoConfig, name string, ttl time.Duration, empty func(V) bool) tier[V] {
	t := tier[V]{
		mem:   cache.NewTTL[V](name, ttl, cache.WithClock(cfg.now), cache.WithTTLLogger(cfg.log)),
		empty: empty,
	}
	if cfg.l2 != nil {
		t.l2 = cache.NewCodec[cache.Entry[V]](cfg.l2, cfg.l2Prefix)
	}
	return t
}

func (t tier[V]) result(v V) aggregate.Result[V] {
	if t.empty != nil && t.empty(v) {
		return aggregate.Empty[V]()
	}
	return aggregate.Success(v)
}

func (t tier[V]) l2Key(key string) string { return t.mem.Name() + ":" + key }

// Repository serves fixtures, match details, teams and standings through
// per-kind TTL caches, fanning out to the remote API on a miss.
type Repository struct {
	api      API
	agg      *aggregate.Aggregator
	log      logrus.FieldLogger
	now      func() time.Time
	leagues  []Competition
	timezone string
	h2hLast  int
	recent   int

	fixtures  tier[[]Fixture]
	details   tier[FixtureDetails]
	teams     tier[TeamOverview]
	standings tier[[][]Standing]
	matches   *cache.TTL[Fixture]

	flights singleflight.Group
}

func NewRepository(api API, opts ...RepositoryOption) *Repository {
	cfg := repoConfig{
		log:     logrus.StandardLogger(),
		now:     time.Now,
		leagues: DefaultLeagues,
		h2hLast: 5,
		recent:  5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.ttls = cfg.ttls.withDefaults()
	if cfg.agg == nil {
		cfg.agg = aggregate.New(aggregate.WithLogger(cfg.log))
	}

	return &Repository{
		api:      api,
		agg:      cfg.agg,
		log:      logging.Component(cfg.log, "football.repository"),
		now:      cfg.now,
		leagues:  cfg.leagues,
		timezone: cfg.timezone,
		h2hLast:  cfg.h2hLast,
		recent:   cfg.recent,

		fixtures:  newTier(cfg, "fixtures", cfg.ttls.Fixtures, func(v []Fixture) bool { return len(v) == 0 }),
		details:   newTier[FixtureDetails](cfg, "fixture_details", cfg.ttls.Details, nil),
		teams:     newTier[TeamOverview](cfg, "teams", cfg.ttls.Team, nil),
		standings: newTier(cfg, "standings", cfg.ttls.Standings, standingsEmpty),
		matches:   cache.NewTTL[Fixture]("matches", cfg.ttls.Fixtures, cache.WithClock(cfg.now), cache.WithTTLLogger(cfg.log)),
	}
}

func standingsEmpty(groups [][]Standing) bool {
	for _, g := range groups {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// Leagues lists the competitions this repository knows by code.
func (r *Repository) Leagues() []Competition { return append([]Competition(nil), r.leagues...) }

// load serves key from the caches unless refresh is set, otherwise runs fetch
// once for all concurrent callers and caches a non-error result.
func load[V any](ctx context.Context, r *Repository, t tier[V], key string, refresh bool, fetch func(context.Context) aggregate.Result[V]) aggregate.Result[V] {
	if err := ctx.Err(); err != nil {
		return aggregate.Failure[V](err)
	}
	log := r.log.WithFields(logrus.Fields{"cache": t.mem.Name(), "key": key})

	if !refresh {
		if v, ok := t.mem.Get(key); ok {
			return t.result(v)
		}
		if t.l2 != nil {
			ent, found, err := t.l2.Load(ctx, t.l2Key(key))
			switch {
			case err != nil:
				log.WithError(err).Warn("second-level cache read failed")
			case found && t.mem.Restore(ent):
				log.Debug("restored from second-level cache")
				return t.result(ent.Value)
			}
		}
	}

	ch := r.flights.DoChan(t.mem.Name()+"|"+key, func() (any, error) {
		res := fetch(context.WithoutCancel(ctx))
		if res.IsError() {
			return res, nil
		}
		t.mem.Put(key, res.Data)
		if t.l2 != nil {
			ent := cache.Entry[V]{Key: key, Value: res.Data, FetchedAt: r.now()}
			if err := t.l2.Save(context.WithoutCancel(ctx), t.l2Key(key), ent, t.mem.TTL()); err != nil {
				log.WithError(err).Warn("second-level cache write failed")
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return aggregate.Failure[V](ctx.Err())
	case out := <-ch:
		return out.Val.(aggregate.Result[V])
	}
}

func (r *Repository) remember(fixtures ...Fixture) {
	for _, f := range fixtures {
		if f.ID() != 0 {
			r.matches.Put(strconv.Itoa(f.ID()), f)
		}
	}
}

// Fixtures returns one league's fixtures for a day, cached under a key such as
// "epl_2024-01-01". league is a code or numeric API id.
func (r *Repository) Fixtures(ctx context.Context, league string, date time.Time) aggregate.Result[[]Fixture] {
	return r.fixtureList(ctx, league, date, false)
}

// RefreshFixtures is Fixtures without the cache read.
func (r *Repository) RefreshFixtures(ctx context.Context, league string, date time.Time) aggregate.Result[[]Fixture] {
	return r.fixtureList(ctx, league, date, true)
}

func (r *Repository) fixtureList(ctx context.Context, league string, date time.Time, refresh bool) aggregate.Result[[]Fixture] {
	comp, ok := LookupLeague(league, r.leagues)
	if !ok {
		return aggregate.Failure[[]Fixture](fmt.Errorf("%w: %q", ErrUnknownLeague, league))
	}
	key := cache.DayKey(comp.Code, date)
	return load(ctx, r, r.fixtures, key, refresh, func(ctx context.Context) aggregate.Result[[]Fixture] {
		res := aggregate.Flatten(ctx, r.agg, "fixtures", func(ctx context.Context) ([]Fixture, error) {
			return r.api.Fixtures(ctx, FixtureQuery{
				League:   comp.ID,
				Season:   SeasonFor(date),
				Date:     date,
				Timezone: r.timezone,
			})
		})
		if res.IsSuccess() {
			r.remember(res.Data...)
		}
		return res
	})
}

// Day fans out over several leagues for one date and concatenates their
// fixtures in league order. No leagues means every known league. Any league
// failing fails the whole day.
func (r *Repository) Day(ctx context.Context, date time.Time, leagues ...string) aggregate.Result[[]Fixture] {
	if len(leagues) == 0 {
		for _, c := range r.leagues {
			leagues = append(leagues, c.Code)
		}
	}
	fetches := make([]aggregate.Fetch[[]Fixture], len(leagues))
	for i, code := range leagues {
		i, code := i, code
		fetches[i] = func(ctx context.Context) ([]Fixture, error) {
			return r.Fixtures(ctx, code, date).Unwrap()
		}
	}
	return aggregate.Flatten(ctx, r.agg, "day", fetches...)
}

// FixtureDetails fans out to the fixture (then its head-to-head), prediction,
// statistics, lineups and events endpoints. A missing prediction is not a
// failure.
func (r *Repository) FixtureDetails(ctx context.Context, fixtureID int) aggregate.Result[FixtureDetails] {
	return r.fixtureDetails(ctx, fixtureID, false)
}

func (r *Repository) RefreshFixtureDetails(ctx context.Context, fixtureID int) aggregate.Result[FixtureDetails] {
	return r.fixtureDetails(ctx, fixtureID, true)
}

func (r *Repository) fixtureDetails(ctx context.Context, id int, refresh bool) aggregate.Result[FixtureDetails] {
	key := cache.Key("fixture_details", map[string]string{"fixture": strconv.Itoa(id)})
	return load(ctx, r, r.details, key, refresh, func(ctx context.Context) aggregate.Result[FixtureDetails] {
		var d FixtureDetails
		return aggregate.Gather(ctx, r.agg, "fixture_details", func() (FixtureDetails, bool) { return d, true },
			func(ctx context.Context) error {
				f, err := r.api.Fixture(ctx, id)
				if err != nil {
					return err
				}
				d.Fixture = f
				r.remember(f)
				h2h, err := r.api.HeadToHead(ctx, f.Teams.Home.ID, f.Teams.Away.ID, r.h2hLast)
				if err != nil {
					return err
				}
				d.HeadToHead = h2h
				return nil
			},
			func(ctx context.Context) error {
				p, err := r.api.Prediction(ctx, id)
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				d.Prediction = &p
				return nil
			},
			func(ctx context.Context) (err error) {
				d.Statistics, err = r.api.FixtureStatistics(ctx, id)
				return err
			},
			func(ctx context.Context) (err error) {
				d.Lineups, err = r.api.Lineups(ctx, id)
				return err
			},
			func(ctx context.Context) (err error) {
				d.Events, err = r.api.Events(ctx, id)
				return err
			},
		)
	})
}

// Team combines team info, season statistics and recent fixtures. A zero
// season means the current one.
func (r *Repository) Team(ctx context.Context, teamID, league, season int) aggregate.Result[TeamOverview] {
	return r.team(ctx, teamID, league, season, false)
}

func (r *Repository) RefreshTeam(ctx context.Context, teamID, league, season int) aggregate.Result[TeamOverview] {
	return r.team(ctx, teamID, league, season, true)
}

func (r *Repository) team(ctx context.Context, teamID, league, season int, refresh bool) aggregate.Result[TeamOverview] {
	if season == 0 {
		season = SeasonFor(r.now())
	}
	key := cache.Key("team", map[string]string{
		"team":   strconv.Itoa(teamID),
		"league": strconv.Itoa(league),
		"season": strconv.Itoa(season),
	})
	return load(ctx, r, r.teams, key, refresh, func(ctx context.Context) aggregate.Result[TeamOverview] {
		var o TeamOverview
		return aggregate.Gather(ctx, r.agg, "team", func() (TeamOverview, bool) { return o, true },
			func(ctx context.Context) (err error) {
				o.Info, err = r.api.Team(ctx, teamID)
				return err
			},
			func(ctx context.Context) (err error) {
				o.Statistics, err = r.api.TeamStatistics(ctx, league, season, teamID)
				return err
			},
			func(ctx context.Context) (err error) {
				o.Recent, err = r.api.TeamFixtures(ctx, teamID, season, r.recent)
				return err
			},
		)
	})
}

// Standings returns the league table groups; a table with no rows is Empty.
func (r *Repository) Standings(ctx context.Context, league string, season int) aggregate.Result[[][]Standing] {
	return r.standingsFor(ctx, league, season, false)
}

func (r *Repository) RefreshStandings(ctx context.Context, league string, season int) aggregate.Result[[][]Standing] {
	return r.standingsFor(ctx, league, season, true)
}

func (r *Repository) standingsFor(ctx context.Context, league string, season int, refresh bool) aggregate.Result[[][]Standing] {
	comp, ok := LookupLeague(league, r.leagues)
	if !ok {
		return aggregate.Failure[[][]Standing](fmt.Errorf("%w: %q", ErrUnknownLeague, league))
	}
	if season == 0 {
		season = SeasonFor(r.now())
	}
	key := cache.Key("standings", map[string]string{
		"league": strconv.Itoa(comp.ID),
		"season": strconv.Itoa(season),
	})
	return load(ctx, r, r.standings, key, refresh, func(ctx context.Context) aggregate.Result[[][]Standing] {
		return aggregate.Merge(ctx, r.agg, "standings", func(parts [][][]Standing) ([][]Standing, bool) {
			return parts[0], !standingsEmpty(parts[0])
		}, func(ctx context.Context) ([][]Standing, error) {
			return r.api.Standings(ctx, comp.ID, season)
		})
	})
}

// Match returns a fixture by id, preferring fixtures already seen in lists or
// details.
func (r *Repository) Match(ctx context.Context, fixtureID int) (Fixture, error) {
	if f, ok := r.matches.Get(strconv.Itoa(fixtureID)); ok {
		return f, nil
	}
	f, err := r.api.Fixture(ctx, fixtureID)
	if err != nil {
		return Fixture{}, err
	}
	r.remember(f)
	return f, nil
}

// Purge drops expired entries from every in-process cache.
func (r *Repository) Purge() int {
	return r.fixtures.mem.Purge() +
		r.details.mem.Purge() +
		r.teams.mem.Purge() +
		r.standings.mem.Purge() +
		r.matches.Purge()
}
