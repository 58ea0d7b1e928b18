package cache

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/maypok86/otter"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Entry is a cached fetch result and the source that produced it.
type Entry struct {
	Value    any
	Source   source.Type
	StoredAt time.Time
}

// Cache is a bounded TTL store for fetch results keyed by operation and
// arguments. A disabled cache misses on every lookup.
type Cache struct {
	store   otter.Cache[string, Entry]
	ttl     time.Duration
	enabled bool
	clock   clock.Clock
	logger  zerolog.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the clock used to stamp entries
func WithClock(c clock.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// New creates a cache holding up to size entries for ttl each. A ttl of
// zero or less disables caching.
func New(size int, ttl time.Duration, logger zerolog.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{
		ttl:    ttl,
		clock:  clock.New(),
		logger: logger.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if ttl <= 0 || size <= 0 {
		c.logger.Info().Msg("response cache disabled")
		return c, nil
	}

	store, err := otter.MustBuilder[string, Entry](size).
		Cost(func(_ string, _ Entry) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	c.store = store
	c.enabled = true
	return c, nil
}

// Enabled reports whether results are cached at all
func (c *Cache) Enabled() bool {
	return c.enabled
}

// TTL returns how long entries live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live entry for key
func (c *Cache) Get(key string) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}
	return c.store.Get(key)
}

// Set stores value produced by src under key
func (c *Cache) Set(key string, value any, src source.Type) {
	if !c.enabled {
		return
	}
	if !c.store.Set(key, Entry{Value: value, Source: src, StoredAt: c.clock.Now()}) {
		c.logger.Debug().Str("key", key).Msg("cache rejected entry")
	}
}

// Delete removes key
func (c *Cache) Delete(key string) {
	if c.enabled {
		c.store.Delete(key)
	}
}

// Clear drops every entry
func (c *Cache) Clear() {
	if c.enabled {
		c.store.Clear()
	}
}

// Size returns the number of live entries
func (c *Cache) Size() int {
	if !c.enabled {
		return 0
	}
	return c.store.Size()
}

// Close releases the cache's background resources
func (c *Cache) Close() {
	if c.enabled {
		c.store.Close()
	}
}

// Key builds a cache key from an operation name and its arguments
func Key(operation string, args ...any) string {
	key := operation
	for _, a := range args {
		key += fmt.Sprintf("|%v", a)
	}
	return key
}
