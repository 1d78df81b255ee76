// Package config loads the livpredd service configuration from YAML with
// environment overrides for secrets and endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mc-ouma/LivPredApp-sub001/cache/redis"
	"github.com/Mc-ouma/LivPredApp-sub001/football"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvAPIKey       = "LIVPRED_API_KEY"
	EnvPostgresDSN  = "LIVPRED_POSTGRES_DSN"
	EnvRedisAddr    = "LIVPRED_REDIS_ADDR"
	EnvLogLevel     = "LIVPRED_LOG_LEVEL"
	EnvWebhookToken = "LIVPRED_WEBHOOK_TOKEN"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Server    Server    `yaml:"server"`
	API       API       `yaml:"api"`
	Cache     Cache     `yaml:"cache"`
	Reminders Reminders `yaml:"reminders"`
	Postgres  Postgres  `yaml:"postgres"`
	Preload   Preload   `yaml:"preload"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string `yaml:"cors_origins"`
}

// API describes the upstream football data provider.
type API struct {
	BaseURL           string        `yaml:"base_url"`
	Key               string        `yaml:"key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Retries           int           `yaml:"retries"`
	Timezone          string        `yaml:"timezone"`
	// AggregateTimeout bounds one fan-out such as fixture details.
	AggregateTimeout time.Duration `yaml:"aggregate_timeout"`
}

type Cache struct {
	Backend string        `yaml:"backend"`
	TTLs    football.TTLs `yaml:"ttls"`
	Prefix  string        `yaml:"prefix"`
	Redis   redis.Options `yaml:"redis"`
}

type Reminders struct {
	LeadTime      time.Duration `yaml:"lead_time"`
	ExactAlarms   bool          `yaml:"exact_alarms"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookToken  string        `yaml:"webhook_token"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

// Postgres is optional. Without a DSN reminders live in memory only.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Preload struct {
	Enabled  bool     `yaml:"enabled"`
	Leagues  []string `yaml:"leagues"`
	Days     int      `yaml:"days"`
	Schedule string   `yaml:"schedule"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that runs without any external services
// apart from the football API itself.
func Default() Config {
	return Config{
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: API{
			BaseURL:           football.DefaultBaseURL,
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			Retries:           2,
			Timezone:          "UTC",
			AggregateTimeout:  30 * time.Second,
		},
		Cache: Cache{
			Backend: CacheMemory,
			TTLs:    football.DefaultTTLs(),
			Prefix:  "livpred",
		},
		Reminders: Reminders{
			LeadTime:      15 * time.Minute,
			ExactAlarms:   true,
			SweepInterval: 15 * time.Second,
			SendTimeout:   10 * time.Second,
		},
		Postgres: Postgres{
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Preload: Preload{
			Enabled:  true,
			Leagues:  []string{"epl", "laliga", "seriea", "bundesliga", "ligue1"},
			Days:     2,
			Schedule: football.DefaultPreloadSchedule,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from lookup, usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.API.Key = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		c.Postgres.DSN = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = CacheRedis
	}
	if v, ok := lookup(EnvWebhookToken); ok && v != "" {
		c.Reminders.WebhookToken = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.Server.Address == "" {
		add("server.address is required")
	}
	if c.API.BaseURL == "" {
		add("api.base_url is required")
	}
	if c.API.Key == "" {
		add("api.key is required (or set %s)", EnvAPIKey)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second must not be negative")
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required for the redis backend")
		}
	default:
		add("cache.backend %q must be %q or %q", c.Cache.Backend, CacheMemory, CacheRedis)
	}
	ttls := c.Cache.TTLs
	if ttls.Fixtures <= 0 || ttls.Details <= 0 || ttls.Team <= 0 || ttls.Standings <= 0 {
		add("cache.ttls must all be positive")
	}
	if c.Reminders.LeadTime < 0 {
		add("reminders.lead_time must not be negative")
	}
	if c.Reminders.SweepInterval <= 0 {
		add("reminders.sweep_interval must be positive")
	}
	if c.Preload.Enabled {
		if len(c.Preload.Leagues) == 0 {
			add("preload.leagues is empty")
		}
		for _, code := range c.Preload.Leagues {
			if _, ok := football.LookupLeague(code, football.DefaultLeagues); !ok {
				add("preload.leagues: unknown league %q", code)
			}
		}
		if c.Preload.Schedule == "" {
			add("preload.schedule is required")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
