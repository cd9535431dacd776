package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// Config holds configuration options for a Cooloff.
type Config struct {
	// TTL is how long a key stays in cool-off after it was tried.
	TTL time.Duration `yaml:"ttl" default:"5m"`
	// Capacity sets the maximum number of keys held. If 0, the cache has no
	// size limit.
	Capacity uint64 `yaml:"capacity" default:"0"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TTL: 5 * time.Minute,
	}
}

// Cooloff remembers recently tried keys so repeated attempts can be skipped
// until the key expires. Trying a key does not extend its expiry.
type Cooloff[K comparable] struct {
	cache   *ttlcache.Cache[K, time.Time]
	log     logrus.FieldLogger
	metrics *Metrics
}

// NewCooloff creates a Cooloff. metrics may be nil.
func NewCooloff[K comparable](log logrus.FieldLogger, config Config, metrics *Metrics) *Cooloff[K] {
	opts := []ttlcache.Option[K, time.Time]{
		ttlcache.WithTTL[K, time.Time](config.TTL),
		ttlcache.WithDisableTouchOnHit[K, time.Time](),
	}

	if config.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[K, time.Time](config.Capacity))
	}

	c := &Cooloff[K]{
		cache:   ttlcache.New(opts...),
		log:     log.WithField("component", "cooloff"),
		metrics: metrics,
	}

	c.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[K, time.Time]) {
		c.metrics.recordEviction(reason)
		c.metrics.setSize(c.cache.Len())
	})

	return c
}

// Start begins expiring keys in the background.
func (c *Cooloff[K]) Start(_ context.Context) error {
	go func() {
		c.log.Debug("Starting cool-off cache")
		c.cache.Start()
		c.log.Debug("Cool-off cache stopped")
	}()

	return nil
}

// Stop halts background expiry.
func (c *Cooloff[K]) Stop() error {
	c.cache.Stop()

	return nil
}

// Try marks key as tried. It reports false when key is still cooling off
// from an earlier attempt.
func (c *Cooloff[K]) Try(key K) bool {
	_, found := c.cache.GetOrSet(key, time.Now())
	if found {
		c.metrics.recordHit()

		return false
	}

	c.metrics.recordInsertion()
	c.metrics.setSize(c.cache.Len())

	return true
}

// Contains reports whether key is cooling off.
func (c *Cooloff[K]) Contains(key K) bool {
	return c.cache.Has(key)
}

// TriedAt returns when key was last tried.
func (c *Cooloff[K]) TriedAt(key K) (time.Time, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return time.Time{}, false
	}

	return item.Value(), true
}

// Remove lifts the cool-off for key.
func (c *Cooloff[K]) Remove(key K) {
	c.cache.Delete(key)
}

// Len returns the number of keys cooling off.
func (c *Cooloff[K]) Len() int {
	return c.cache.Len()
}
