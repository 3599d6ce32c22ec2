package liveness

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/domain"
	domlive "github.com/kailas-cloud/livesearch/internal/domain/liveness"
)

var keyPrefix = domain.KeyPrefix + "mask:"

const (
	aliveValue = "1"
	deadValue  = "0"
)

// store is the consumer interface for the mask cache (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetNX(ctx context.Context, key string, fields map[string]string) (int, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Cache keeps one liveness mask per query fingerprint in a hash
// (field = rank, value "1" alive / "0" dead). Recorded ranks are never
// overwritten, so concurrent merges commute. The TTL is set by the first write
// only: a mask expires ttl after it was created no matter how often it is
// merged into, since ranks go stale once the index re-ranks.
//
// Store failures never reach the caller: reads degrade to an empty mask and
// writes are dropped, both logged at warn.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	merged     prometheus.Counter
	logger     *zap.Logger
}

// New creates a mask cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"error") and
// merged counts written rank facts; both are optional.
func New(
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	merged prometheus.Counter,
	logger *zap.Logger,
) *Cache {
	return &Cache{
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		merged:     merged,
		logger:     logger,
	}
}

// Get returns the cached mask for fingerprint, or an empty mask.
func (c *Cache) Get(ctx context.Context, fingerprint string) *domlive.Mask {
	key := keyPrefix + fingerprint

	fields, err := c.store.HGetAll(ctx, key)
	if err != nil {
		c.inc("error")
		c.logger.Warn("Failed to load liveness mask", zap.String("key", key), zap.Error(err))
		return domlive.NewMask()
	}
	if len(fields) == 0 {
		c.inc("miss")
		return domlive.NewMask()
	}

	c.inc("hit")
	return decode(fields)
}

// Merge records statuses for ranks start, start+1, ... Unknown statuses are
// not recorded.
func (c *Cache) Merge(ctx context.Context, fingerprint string, start int, statuses []domlive.Status) {
	fields := make(map[string]string, len(statuses))
	for i, s := range statuses {
		if v, ok := encode(s); ok {
			fields[strconv.Itoa(start+i)] = v
		}
	}
	c.write(ctx, fingerprint, fields, c.ttl)
}

// Put seeds the cache with every fact of mask, kept for ttl, or for the
// cache's default ttl when ttl is not positive. Ranks already cached keep
// their status.
func (c *Cache) Put(ctx context.Context, fingerprint string, mask *domlive.Mask, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	entries := mask.Entries()
	fields := make(map[string]string, len(entries))
	for rank, s := range entries {
		if v, ok := encode(s); ok {
			fields[strconv.Itoa(rank)] = v
		}
	}
	c.write(ctx, fingerprint, fields, ttl)
}

func (c *Cache) write(ctx context.Context, fingerprint string, fields map[string]string, ttl time.Duration) {
	if len(fields) == 0 {
		return
	}
	key := keyPrefix + fingerprint

	n, err := c.store.HSetNX(ctx, key, fields)
	if err != nil {
		c.logger.Warn("Failed to merge liveness mask", zap.String("key", key), zap.Error(err))
		return
	}
	if c.merged != nil {
		c.merged.Add(float64(n))
	}

	if err := c.store.Expire(ctx, key, ttl, true); err != nil {
		c.logger.Warn("Failed to set liveness mask ttl", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func encode(s domlive.Status) (string, bool) {
	switch s {
	case domlive.Alive:
		return aliveValue, true
	case domlive.Dead:
		return deadValue, true
	default:
		return "", false
	}
}

// decode skips fields that are not a rank with a known value.
func decode(fields map[string]string) *domlive.Mask {
	m := domlive.NewMask()
	for field, v := range fields {
		rank, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		switch v {
		case aliveValue:
			m.Set(rank, domlive.Alive)
		case deadValue:
			m.Set(rank, domlive.Dead)
		}
	}
	return m
}
