// Package api exposes fixtures, team overviews, standings and favorites over
// HTTP. Every read renders an aggregate result with its state tag.
package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/aggregate"
	"github.com/Mc-ouma/LivPredApp-sub001/football"
	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
	"github.com/Mc-ouma/LivPredApp-sub001/notify"
)

// Football is the read side served by the API; *football.Repository
// implements it.
type Football interface {
	Leagues() []football.Competition
	Fixtures(ctx context.Context, league string, date time.Time) aggregate.Result[[]football.Fixture]
	RefreshFixtures(ctx context.Context, league string, date time.Time) aggregate.Result[[]football.Fixture]
	Day(ctx context.Context, date time.Time, leagues ...string) aggregate.Result[[]football.Fixture]
	FixtureDetails(ctx context.Context, fixtureID int) aggregate.Result[football.FixtureDetails]
	RefreshFixtureDetails(ctx context.Context, fixtureID int) aggregate.Result[football.FixtureDetails]
	Team(ctx context.Context, teamID, league, season int) aggregate.Result[football.TeamOverview]
	RefreshTeam(ctx context.Context, teamID, league, season int) aggregate.Result[football.TeamOverview]
	Standings(ctx context.Context, league string, season int) aggregate.Result[[][]football.Standing]
	RefreshStandings(ctx context.Context, league string, season int) aggregate.Result[[][]football.Standing]
}

// Favorites is implemented by *notify.Favorites.
type Favorites interface {
	Add(ctx context.Context, fixtureID int) (notify.Favorite, error)
	Remove(ctx context.Context, fixtureID int) error
	List() []notify.Favorite
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Option func(*Handler)

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		if g != nil {
			h.gatherer = g
		}
	}
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

type Handler struct {
	football  Football
	favorites Favorites
	log       logrus.FieldLogger
	now       func() time.Time
	gatherer  prometheus.Gatherer
	checks    map[string]HealthCheck
}

func New(fb Football, favs Favorites, opts ...Option) *Handler {
	h := &Handler{
		football:  fb,
		favorites: favs,
		log:       logrus.StandardLogger(),
		now:       time.Now,
		gatherer:  prometheus.DefaultGatherer,
		checks:    make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts every route on app. It has the httpx.RouteRegistrar shape.
func (h *Handler) Register(app *httpx.App) {
	app.GET("/healthz", h.health)
	app.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	httpx.NewRouter(app, "/v1").
		GET("/leagues", h.leagues).
		GET("/fixtures", h.fixtures).
		GET("/fixtures/:id", h.fixtureDetails).
		GET("/teams/:id", h.team).
		GET("/standings", h.standings).
		GET("/favorites", h.listFavorites).
		PUT("/favorites/:fixtureID", h.addFavorite).
		DELETE("/favorites/:fixtureID", h.removeFavorite)
}

// MatchLookup adapts a fixture source such as *football.Repository to the
// lookup Favorites needs.
func MatchLookup(src interface {
	Match(ctx context.Context, fixtureID int) (football.Fixture, error)
}) notify.MatchLookup {
	return func(ctx context.Context, fixtureID int) (notify.Match, error) {
		f, err := src.Match(ctx, fixtureID)
		if err != nil {
			return notify.Match{}, err
		}
		return notify.Match{FixtureID: f.ID(), Title: f.Title(), Kickoff: f.Kickoff()}, nil
	}
}
