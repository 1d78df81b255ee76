package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL applies when a TTL cache is built without a positive duration.
const DefaultTTL = 12 * time.Hour

// Entry is a value together with the instant it was fetched. Entries are
// replaced wholesale by Put and never modified once stored.
type Entry[V any] struct {
	Key       string
	Value     V
	FetchedAt time.Time
}

// Age reports how long ago the entry was fetched.
func (e Entry[V]) Age(now time.Time) time.Duration { return now.Sub(e.FetchedAt) }

// ValidAt reports whether the entry is still fresh for ttl at now.
func (e Entry[V]) ValidAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// TTLOption customizes a TTL cache.
type TTLOption func(*ttlConfig)

type ttlConfig struct {
	now func() time.Time
	log logrus.FieldLogger
}

// WithClock overrides the time source used to stamp and check entries.
func WithClock(now func() time.Time) TTLOption {
	return func(c *ttlConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTTLLogger attaches a logger for debug-level hit/miss tracing.
func WithTTLLogger(log logrus.FieldLogger) TTLOption {
	return func(c *ttlConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// TTL is an in-process map from composite keys to fetched values. A value is
// returned only while now - FetchedAt < ttl; anything older reads as a miss so
// the caller refetches. There is no eviction beyond expiry.
type TTL[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time
	log  logrus.FieldLogger

	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewTTL builds a named TTL cache. The name labels metrics and log lines.
func NewTTL[V any](name string, ttl time.Duration, opts ...TTLOption) *TTL[V] {
	cfg := ttlConfig{now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[V]{
		name:    name,
		ttl:     ttl,
		now:     cfg.now,
		log:     cfg.log.WithField("cache", name),
		entries: make(map[string]Entry[V]),
	}
}

// Name returns the cache label.
func (c *TTL[V]) Name() string { return c.name }

// TTL returns the freshness window.
func (c *TTL[V]) TTL() time.Duration { return c.ttl }

// Get returns the cached value if present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	ent, ok := c.Entry(key)
	if !ok {
		var zero V
		return zero, false
	}
	return ent.Value, true
}

// Entry is like Get but exposes the fetch timestamp.
func (c *TTL[V]) Entry(key string) (Entry[V], bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		lookups.WithLabelValues(c.name, "miss").Inc()
		c.log.WithField("key", key).Debug("cache miss")
		return Entry[V]{}, false
	}
	now := c.now()
	if !ent.ValidAt(now, c.ttl) {
		c.dropIfUnchanged(key, ent.FetchedAt)
		lookups.WithLabelValues(c.name, "expired").Inc()
		c.log.WithField("key", key).WithField("age", ent.Age(now).String()).Debug("cache entry expired")
		return Entry[V]{}, false
	}
	lookups.WithLabelValues(c.name, "hit").Inc()
	return ent, true
}

// Put stores value under key stamped with the current time, replacing any
// previous entry.
func (c *TTL[V]) Put(key string, value V) {
	ent := Entry[V]{Key: key, Value: value, FetchedAt: c.now()}
	c.mu.Lock()
	c.entries[key] = ent
	size := len(c.entries)
	c.mu.Unlock()
	entries.WithLabelValues(c.name).Set(float64(size))
}

// Restore stores ent keeping its original FetchedAt, so an entry read back
// from a second-level store expires when it would have originally. Entries
// already stale are ignored and Restore reports false.
func (c *TTL[V]) Restore(ent Entry[V]) bool {
	if !ent.ValidAt(c.now(), c.ttl) {
		return false
	}
	c.mu.Lock()
	if cur, ok := c.entries[ent.Key]; ok && cur.FetchedAt.After(ent.FetchedAt) {
		c.mu.Unlock()
		return true
	}
	c.entries[ent.Key] = ent
	size := len(c.entries)
	c.mu.Unlock()
	entries.WithLabelValues(c.name).Set(float64(size))
	return true
}

// Invalidate removes key regardless of its age.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()
	entries.WithLabelValues(c.name).Set(float64(size))
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for key, ent := range c.entries {
		if !ent.ValidAt(now, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()
	entries.WithLabelValues(c.name).Set(float64(size))
	return removed
}

// Len counts stored entries, expired ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// dropIfUnchanged deletes an expired entry unless a concurrent Put already
// replaced it.
func (c *TTL[V]) dropIfUnchanged(key string, fetchedAt time.Time) {
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.FetchedAt.Equal(fetchedAt) {
		delete(c.entries, key)
	}
	size := len(c.entries)
	c.mu.Unlock()
	entries.WithLabelValues(c.name).Set(float64(size))
}
