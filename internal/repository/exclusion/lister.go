package exclusion

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/repository/registry"
)

var cacheKey = domain.KeyPrefix + "filtered_providers"

// store is the consumer interface for the exclusion cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// providerSource lists registered providers.
type providerSource interface {
	List(ctx context.Context) ([]registry.Provider, error)
}

// Lister returns the providers whose content is hidden from search.
// The list is read from the registry and cached for ttl; concurrent misses
// share one registry read.
type Lister struct {
	source providerSource
	store  store
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// New creates an exclusion lister.
func New(source providerSource, s store, ttl time.Duration, logger *zap.Logger) *Lister {
	return &Lister{source: source, store: s, ttl: ttl, logger: logger}
}

// Excluded returns the hidden provider names in sorted order.
// Registry failures degrade to an empty list.
func (l *Lister) Excluded(ctx context.Context) []string {
	if names, ok := l.fromCache(ctx); ok {
		return names
	}

	v, err, _ := l.group.Do(cacheKey, func() (any, error) {
		return l.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		l.logger.Warn("Failed to load filtered providers", zap.Error(err))
		return nil
	}
	names, _ := v.([]string)
	return names
}

func (l *Lister) load(ctx context.Context) ([]string, error) {
	providers, err := l.source.List(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // logged by caller
	}

	names := make([]string, 0)
	for _, p := range providers {
		if p.FilterContent {
			names = append(names, p.ID)
		}
	}
	sort.Strings(names)

	l.toCache(ctx, names)
	return names, nil
}

func (l *Lister) fromCache(ctx context.Context) ([]string, bool) {
	data, err := l.store.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			l.logger.Warn("Failed to get cached filtered providers", zap.Error(err))
		}
		return nil, false
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		l.logger.Warn("Failed to parse cached filtered providers", zap.Error(err))
		return nil, false
	}
	return names, true
}

func (l *Lister) toCache(ctx context.Context, names []string) {
	data, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := l.store.SetWithTTL(ctx, cacheKey, data, l.ttl); err != nil {
		l.logger.Warn("Failed to cache filtered providers", zap.Error(err))
	}
}
