package football

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/aggregate"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

// DefaultPreloadSchedule refreshes fixture lists a few times per day.
const DefaultPreloadSchedule = "@every 6h"

type preloadConfig struct {
	leagues  []string
	days     int
	schedule string
	log      logrus.FieldLogger
	now      func() time.Time
}

type PreloadOption func(*preloadConfig)

// WithPreloadLeagues limits warming to the given league codes.
func WithPreloadLeagues(codes ...string) PreloadOption {
	return func(c *preloadConfig) {
		if len(codes) > 0 {
			c.leagues = append([]string(nil), codes...)
		}
	}
}

// WithPreloadDays warms today plus n-1 following days.
func WithPreloadDays(n int) PreloadOption {
	return func(c *preloadConfig) {
		if n > 0 {
			c.days = n
		}
	}
}

// WithPreloadSchedule sets the cron spec, e.g. "@every 1h" or "0 */6 * * *".
func WithPreloadSchedule(spec string) PreloadOption {
	return func(c *preloadConfig) {
		if spec != "" {
			c.schedule = spec
		}
	}
}

func WithPreloadLogger(log logrus.FieldLogger) PreloadOption {
	return func(c *preloadConfig) {
		if log != nil {
			c.log = log
		}
	}
}

func WithPreloadClock(now func() time.Time) PreloadOption {
	return func(c *preloadConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Preloader keeps fixture lists warm so the first request of the day is a
// cache hit. Failures are logged and never stop the schedule.
type Preloader struct {
	repo     *Repository
	leagues  []string
	days     int
	schedule string
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPreloader(repo *Repository, opts ...PreloadOption) *Preloader {
	cfg := preloadConfig{
		days:     2,
		schedule: DefaultPreloadSchedule,
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.leagues) == 0 {
		for _, c := range repo.Leagues() {
			cfg.leagues = append(cfg.leagues, c.Code)
		}
	}
	return &Preloader{
		repo:     repo,
		leagues:  cfg.leagues,
		days:     cfg.days,
		schedule: cfg.schedule,
		log:      logging.Component(cfg.log, "football.preload"),
		now:      cfg.now,
	}
}

// Warm refreshes every configured league for each preload day. It returns
// how many lists were warmed and the joined failures.
func (p *Preloader) Warm(ctx context.Context) (int, error) {
	today := p.now().UTC().Truncate(24 * time.Hour)

	type job struct {
		league string
		day    time.Time
	}
	var jobs []job
	for d := 0; d < p.days; d++ {
		for _, code := range p.leagues {
			jobs = append(jobs, job{league: code, day: today.AddDate(0, 0, d)})
		}
	}

	errs := make([]error, len(jobs))
	tasks := make([]aggregate.Task, len(jobs))
	for i, j := range jobs {
		i, j := i, j
		tasks[i] = func(ctx context.Context) error {
			res := p.repo.RefreshFixtures(ctx, j.league, j.day)
			if res.IsError() {
				errs[i] = fmt.Errorf("%s %s: %w", j.league, j.day.Format(time.DateOnly), res.Err)
			}
			// never fail the join; one league must not cancel the others
			return nil
		}
	}
	_ = aggregate.Join(ctx, tasks...)

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	warmed := len(jobs) - failed
	entry := p.log.WithFields(logrus.Fields{"warmed": warmed, "failed": failed})
	if failed > 0 {
		entry.WithError(errors.Join(errs...)).Warn("preload finished with failures")
	} else {
		entry.Info("preload finished")
	}
	return warmed, errors.Join(errs...)
}

// Start runs Warm on the configured schedule until ctx is cancelled. Expired
// cache entries are purged after each run.
func (p *Preloader) Start(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(p.log)))
	if _, err := c.AddFunc(p.schedule, func() {
		_, _ = p.Warm(ctx)
		if n := p.repo.Purge(); n > 0 {
			p.log.WithField("purged", n).Debug("expired cache entries dropped")
		}
	}); err != nil {
		return fmt.Errorf("football: preload schedule %q: %w", p.schedule, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
