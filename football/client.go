// Package football fetches fixtures, predictions, standings and team data
// from the API-Football v3 REST API and caches them for the service.
package football

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

const DefaultBaseURL = "https://v3.football.api-sports.io"

// API is the set of remote calls the Repository depends on.
type API interface {
	Fixtures(ctx context.Context, q FixtureQuery) ([]Fixture, error)
	Fixture(ctx context.Context, id int) (Fixture, error)
	Prediction(ctx context.Context, fixtureID int) (Prediction, error)
	HeadToHead(ctx context.Context, home, away, last int) ([]Fixture, error)
	FixtureStatistics(ctx context.Context, fixtureID int) ([]FixtureStatistics, error)
	Lineups(ctx context.Context, fixtureID int) ([]Lineup, error)
	Events(ctx context.Context, fixtureID int) ([]Event, error)
	Standings(ctx context.Context, league, season int) ([][]Standing, error)
	Team(ctx context.Context, id int) (TeamInfo, error)
	TeamStatistics(ctx context.Context, league, season, team int) (TeamStatistics, error)
	TeamFixtures(ctx context.Context, team, season, last int) ([]Fixture, error)
}

type Options struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Retries       int
	Logger        logrus.FieldLogger
}

type Option func(*Options)

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

func WithBaseURL(url string) Option { return func(o *Options) { o.BaseURL = url } }

func WithAPIKey(key string) Option { return func(o *Options) { o.APIKey = key } }

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// WithRateLimit caps outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.RatePerSecond = rps
		o.Burst = burst
	}
}

// WithRetries retries transport failures and 5xx responses.
func WithRetries(n int) Option { return func(o *Options) { o.Retries = n } }

func WithLogger(log logrus.FieldLogger) Option { return func(o *Options) { o.Logger = log } }

// Client is the typed API-Football client.
type Client struct {
	http    *httpx.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

var _ API = (*Client)(nil)

func NewClient(opts ...Option) *Client {
	var cfg Options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg = cfg.withDefaults()

	httpOpts := []httpx.ClientOption{
		httpx.WithBaseURL(cfg.BaseURL),
		httpx.WithClientTimeout(cfg.Timeout),
		httpx.WithHeaders(map[string]string{
			"Accept":          "application/json",
			"x-apisports-key": cfg.APIKey,
		}),
	}
	if cfg.Retries > 0 {
		httpOpts = append(httpOpts, httpx.WithRetry(cfg.Retries, 500*time.Millisecond))
	}

	return &Client{
		http:    httpx.NewClient(httpOpts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:     logging.Component(cfg.Logger, "football.client"),
	}
}

// FixtureQuery selects fixtures; zero fields are omitted from the request.
type FixtureQuery struct {
	ID       int
	League   int
	Season   int
	Team     int
	Date     time.Time
	Last     int
	Next     int
	Live     bool
	Timezone string
}

func (q FixtureQuery) params() map[string]string {
	p := map[string]string{}
	setInt(p, "id", q.ID)
	setInt(p, "league", q.League)
	setInt(p, "season", q.Season)
	setInt(p, "team", q.Team)
	setInt(p, "last", q.Last)
	setInt(p, "next", q.Next)
	if !q.Date.IsZero() {
		p["date"] = q.Date.Format(time.DateOnly)
	}
	if q.Live {
		p["live"] = "all"
	}
	if q.Timezone != "" {
		p["timezone"] = q.Timezone
	}
	return p
}

func setInt(p map[string]string, k string, v int) {
	if v != 0 {
		p[k] = strconv.Itoa(v)
	}
}

// get calls endpoint and unwraps the envelope's response field.
func get[T any](ctx context.Context, c *Client, endpoint string, params map[string]string) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("football: %s: %w", endpoint, err)
	}

	start := time.Now()
	resp, err := c.http.Get(ctx, endpoint, nil, httpx.WithQuery(params))
	entry := c.log.WithFields(logrus.Fields{"endpoint": endpoint, "params": params, "elapsed": time.Since(start).String()})
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) {
			entry.WithField("status", se.Code).Warn("api call rejected")
			return zero, &APIError{Endpoint: endpoint, StatusCode: se.Code, Body: se.Body}
		}
		entry.WithError(err).Warn("api call failed")
		return zero, fmt.Errorf("football: %s: %w", endpoint, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		entry.WithError(err).Warn("api response undecodable")
		return zero, fmt.Errorf("%w: %s: %w", ErrDecode, endpoint, err)
	}
	if msgs := env.errorMessages(); len(msgs) > 0 {
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Messages: msgs}
		entry.WithError(apiErr).Warn("api reported errors")
		return zero, apiErr
	}
	entry.WithField("results", env.Results).Debug("api call ok")
	return env.Response, nil
}

func first[T any](items []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

func (c *Client) Fixtures(ctx context.Context, q FixtureQuery) ([]Fixture, error) {
	return get[[]Fixture](ctx, c, "/fixtures", q.params())
}

// Fixture returns a single fixture or ErrNotFound.
func (c *Client) Fixture(ctx context.Context, id int) (Fixture, error) {
	return first[Fixture](c.Fixtures(ctx, FixtureQuery{ID: id}))
}

func (c *Client) Prediction(ctx context.Context, fixtureID int) (Prediction, error) {
	return first[Prediction](get[[]Prediction](ctx, c, "/predictions", map[string]string{"fixture": strconv.Itoa(fixtureID)}))
}

func (c *Client) HeadToHead(ctx context.Context, home, away, last int) ([]Fixture, error) {
	p := map[string]string{"h2h": fmt.Sprintf("%d-%d", home, away)}
	setInt(p, "last", last)
	return get[[]Fixture](ctx, c, "/fixtures/headtohead", p)
}

func (c *Client) FixtureStatistics(ctx context.Context, fixtureID int) ([]FixtureStatistics, error) {
	return get[[]FixtureStatistics](ctx, c, "/fixtures/statistics", map[string]string{"fixture": strconv.Itoa(fixtureID)})
}

func (c *Client) Lineups(ctx context.Context, fixtureID int) ([]Lineup, error) {
	return get[[]Lineup](ctx, c, "/fixtures/lineups", map[string]string{"fixture": strconv.Itoa(fixtureID)})
}

func (c *Client) Events(ctx context.Context, fixtureID int) ([]Event, error) {
	return get[[]Event](ctx, c, "/fixtures/events", map[string]string{"fixture": strconv.Itoa(fixtureID)})
}

// Standings returns the table groups for a league season; most leagues have
// exactly one group.
func (c *Client) Standings(ctx context.Context, league, season int) ([][]Standing, error) {
	items, err := get[[]standingsItem](ctx, c, "/standings", map[string]string{
		"league": strconv.Itoa(league),
		"season": strconv.Itoa(season),
	})
	if err != nil {
		return nil, err
	}
	var groups [][]Standing
	for _, it := range items {
		groups = append(groups, it.League.Standings...)
	}
	return groups, nil
}

func (c *Client) Team(ctx context.Context, id int) (TeamInfo, error) {
	return first[TeamInfo](get[[]TeamInfo](ctx, c, "/teams", map[string]string{"id": strconv.Itoa(id)}))
}

func (c *Client) TeamStatistics(ctx context.Context, league, season, team int) (TeamStatistics, error) {
	return get[TeamStatistics](ctx, c, "/teams/statistics", map[string]string{
		"league": strconv.Itoa(league),
		"season": strconv.Itoa(season),
		"team":   strconv.Itoa(team),
	})
}

func (c *Client) TeamFixtures(ctx context.Context, team, season, last int) ([]Fixture, error) {
	return c.Fixtures(ctx, FixtureQuery{Team: team, Season: season, Last: last})
}
