package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/aggregate"
	"github.com/Mc-ouma/LivPredApp-sub001/cache/redis"
	"github.com/Mc-ouma/LivPredApp-sub001/db/sql/postgres"
	"github.com/Mc-ouma/LivPredApp-sub001/football"
	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/api"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/config"
	"github.com/Mc-ouma/LivPredApp-sub001/notify"
)

// closers are run in reverse order of acquisition.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// footballStack is the upstream client, its caches and the preloader.
type footballStack struct {
	repo      *football.Repository
	preloader *football.Preloader
	checks    map[string]api.HealthCheck
	closers
}

func newFootball(ctx context.Context, cfg config.Config, log *logrus.Logger) (*footballStack, error) {
	fs := &footballStack{checks: make(map[string]api.HealthCheck)}

	client := football.NewClient(
		football.WithBaseURL(cfg.API.BaseURL),
		football.WithAPIKey(cfg.API.Key),
		football.WithTimeout(cfg.API.Timeout),
		football.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
		football.WithRetries(cfg.API.Retries),
		football.WithLogger(log),
	)

	opts := []football.RepositoryOption{
		football.WithAggregator(aggregate.New(
			aggregate.WithLogger(log),
			aggregate.WithTimeout(cfg.API.AggregateTimeout),
		)),
		football.WithRepositoryLogger(log),
		football.WithTTLs(cfg.Cache.TTLs),
		football.WithTimezone(cfg.API.Timezone),
	}
	if cfg.Cache.Backend == config.CacheRedis {
		store := redis.NewStore(cfg.Cache.Redis)
		fs.closers = append(fs.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Cache.Redis.Addr, err)
		}
		opts = append(opts, football.WithSecondLevel(store, cfg.Cache.Prefix))
		fs.checks["redis"] = store.Ping
	}
	fs.repo = football.NewRepository(client, opts...)

	fs.preloader = football.NewPreloader(fs.repo,
		football.WithPreloadLeagues(cfg.Preload.Leagues...),
		football.WithPreloadDays(cfg.Preload.Days),
		football.WithPreloadSchedule(cfg.Preload.Schedule),
		football.WithPreloadLogger(log),
	)
	return fs, nil
}

type service struct {
	cfg       config.Config
	log       *logrus.Logger
	football  *footballStack
	queue     *notify.DeferredQueue
	scheduler *notify.Scheduler
	favorites *notify.Favorites
	server    *httpx.Server
	closers
}

func newService(ctx context.Context, cfg config.Config, log *logrus.Logger) (*service, error) {
	fb, err := newFootball(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	svc := &service{cfg: cfg, log: log, football: fb, closers: closers{fb.Close}}

	store, db, err := svc.reminderStore(ctx)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}

	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.Reminders.WebhookURL != "" {
		sender = notify.MultiSender{sender, notify.NewWebhookSender(cfg.Reminders.WebhookURL, cfg.Reminders.WebhookToken, cfg.Reminders.SendTimeout)}
	}

	svc.queue = notify.NewDeferredQueue(
		notify.WithSweepInterval(cfg.Reminders.SweepInterval),
		notify.WithQueueLogger(log),
	)
	svc.scheduler = notify.NewScheduler(
		notify.WithCapability(notify.StaticCapability(cfg.Reminders.ExactAlarms)),
		notify.WithDeferredBackend(svc.queue),
		notify.WithStore(store),
		notify.WithSender(sender),
		notify.WithLogger(log),
		notify.WithSendTimeout(cfg.Reminders.SendTimeout),
	)
	svc.favorites = notify.NewFavorites(svc.scheduler, api.MatchLookup(fb.repo), cfg.Reminders.LeadTime)

	apiOpts := []api.Option{api.WithLogger(log)}
	for name, check := range fb.checks {
		apiOpts = append(apiOpts, api.WithHealthCheck(name, check))
	}
	if db != nil {
		apiOpts = append(apiOpts, api.WithHealthCheck("postgres", db.PingContext))
	}
	handler := api.New(fb.repo, svc.favorites, apiOpts...)

	serverOpts := []httpx.ServerOption{
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithLogger(log),
		httpx.AppendMiddlewares(httpx.RequestIDMiddleware()),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := httpx.DefaultCORSConfig
		cors.AllowOrigins = cfg.Server.CORSOrigins
		serverOpts = append(serverOpts, httpx.WithCORS(&cors))
	}
	svc.server = httpx.NewServer(serverOpts...)
	svc.server.RegisterRoutes(handler.Register)
	return svc, nil
}

// reminderStore uses Postgres when a DSN is configured; the returned db is nil
// otherwise.
func (s *service) reminderStore(ctx context.Context) (notify.Store, *sql.DB, error) {
	pg := s.cfg.Postgres
	if pg.DSN == "" {
		s.log.Info("no postgres dsn, reminders are kept in memory")
		return notify.NewMemoryStore(), nil, nil
	}
	db, err := postgres.Connect(ctx,
		postgres.WithDSN(pg.DSN),
		postgres.WithMaxOpenConns(pg.MaxOpenConns),
		postgres.WithMaxIdleConns(pg.MaxIdleConns),
		postgres.WithConnMaxLifetime(pg.ConnMaxLifetime),
	)
	if err != nil {
		return nil, nil, err
	}
	s.closers = append(s.closers, db.Close)
	return postgres.NewReminderRepository(db), db, nil
}

// Run restores reminders, starts background work and serves until ctx ends.
func (s *service) Run(ctx context.Context) error {
	if err := s.queue.Start(ctx); err != nil {
		return err
	}
	restored, err := s.scheduler.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore reminders: %w", err)
	}
	favorites := s.favorites.Restore(ctx)
	s.log.WithFields(logrus.Fields{"reminders": restored, "favorites": favorites}).Info("state restored")

	if s.cfg.Preload.Enabled {
		if err := s.football.preloader.Start(ctx); err != nil {
			return err
		}
		go func() {
			if _, err := s.football.preloader.Warm(ctx); err != nil {
				s.log.WithError(err).Warn("initial preload incomplete")
			}
		}()
	}

	s.log.WithField("address", s.cfg.Server.Address).Info("livpredd listening")
	return ignoreCanceled(s.server.Start(ctx, httpx.WithShutdownTimeout(s.cfg.Server.ShutdownTimeout)))
}
