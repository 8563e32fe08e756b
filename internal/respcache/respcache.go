// Package respcache caches composed answers keyed by the literal query string.
package respcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/kvstore"
)

// keyPrefix namespaces cache entries inside the shared key/value store.
const keyPrefix = "response_cache:"

// Cache is a TTL cache for query responses. Keys are the literal query string:
// no normalization, so "what is Go?" and "what is go? " are different entries.
// Reads and writes are best effort, a store failure degrades to a miss.
type Cache struct {
	store  kvstore.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(store kvstore.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// Get returns the cached response for query, or ok=false on a miss. Store
// read failures are logged and reported as misses.
func (c *Cache) Get(ctx context.Context, query string) (string, bool) {
	value, ok, err := c.store.Get(ctx, keyPrefix+query)
	if err != nil {
		c.logger.Warn("response cache read failed", zap.Error(err))
		return "", false
	}
	return value, ok
}

// Set stores the response for query with the configured TTL. Write failures
// are logged and swallowed; caching is never worth failing a request over.
func (c *Cache) Set(ctx context.Context, query, response string) {
	if err := c.store.Set(ctx, keyPrefix+query, response, c.ttl); err != nil {
		c.logger.Warn("response cache write failed", zap.Error(err))
	}
}
