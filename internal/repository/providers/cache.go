package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "providers:"

// store is the consumer interface for the provider count cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache keeps per-provider document counts per media type for a short TTL.
// Store failures are logged and treated as misses.
type Cache struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a provider count cache.
func New(s store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, logger: logger}
}

// Get returns the cached counts for mediaType.
func (c *Cache) Get(ctx context.Context, mediaType string) (map[string]int, bool) {
	key := keyPrefix + mediaType
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached provider counts", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var counts map[string]int
	if err := json.Unmarshal(data, &counts); err != nil {
		c.logger.Warn("Failed to parse cached provider counts", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return counts, true
}

// Put caches counts for mediaType.
func (c *Cache) Put(ctx context.Context, mediaType string, counts map[string]int) {
	key := keyPrefix + mediaType
	data, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache provider counts", zap.String("key", key), zap.Error(err))
	}
}
