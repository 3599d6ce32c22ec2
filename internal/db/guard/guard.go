// Package guard puts a circuit breaker in front of a cache store namespace.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/metrics"
)

// Compile-time checks: Store exposes the same KV and hash surface it guards.
var (
	_ db.KVStore   = (*Store)(nil)
	_ db.HashStore = (*Store)(nil)
)

// store is the consumer interface for the guarded store (ISP).
type store interface {
	db.KVStore
	db.HashStore
}

// Config tunes the breaker.
type Config struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// Interval resets failure counts while closed. Zero never resets.
	Interval time.Duration
	// HalfOpenRequests is the number of trial requests allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultConfig returns the breaker settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Failures:         5,
		Timeout:          10 * time.Second,
		Interval:         30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Store wraps a store namespace with its own breaker. While the breaker is
// open every call fails fast with gobreaker.ErrOpenState.
type Store struct {
	inner store
	cb    *gobreaker.CircuitBreaker[any]
}

// New guards inner under the given breaker name.
func New(inner store, name string, cfg Config, logger *zap.Logger) *Store {
	if cfg.Failures == 0 {
		cfg.Failures = DefaultConfig().Failures
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = DefaultConfig().HalfOpenRequests
	}

	metrics.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	failures := cfg.Failures
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("Cache breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})

	return &Store{inner: inner, cb: cb}
}

// Name returns the breaker name.
func (s *Store) Name() string { return s.cb.Name() }

// State returns the breaker state: "closed", "half-open" or "open".
func (s *Store) State() string { return s.cb.State().String() }

// isSuccessful keeps misses and caller cancellations from counting as store faults.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, db.ErrKeyNotFound) ||
		errors.Is(err, context.Canceled)
}

func stateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func execute[T any](s *Store, fn func() (T, error)) (T, error) {
	var zero T
	res, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err //nolint:wrapcheck // callers match on db and gobreaker sentinels
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("breaker %s: unexpected result type %T", s.cb.Name(), res)
	}
	return typed, nil
}

func run(s *Store, fn func() error) error {
	_, err := execute(s, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return execute(s, func() ([]byte, error) { return s.inner.Get(ctx, key) })
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return run(s, func() error { return s.inner.SetWithTTL(ctx, key, value, ttl) })
}

// Expire sets TTL on a key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	return run(s, func() error { return s.inner.Expire(ctx, key, ttl, nx) })
}

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	return run(s, func() error { return s.inner.HSet(ctx, key, fields) })
}

// HSetNX sets absent hash fields.
func (s *Store) HSetNX(ctx context.Context, key string, fields map[string]string) (int, error) {
	return execute(s, func() (int, error) { return s.inner.HSetNX(ctx, key, fields) })
}

// HGetAll returns all fields of a hash.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return execute(s, func() (map[string]string, error) { return s.inner.HGetAll(ctx, key) })
}

// HGetAllMulti fetches several hashes.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	return execute(s, func() ([]map[string]string, error) { return s.inner.HGetAllMulti(ctx, keys) })
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	return execute(s, func() ([]string, error) { return s.inner.Scan(ctx, pattern) })
}
