package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/livesearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs []string
	// Replicas are read-only replica addresses serving searches.
	Replicas []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store via rueidis for Redis 8+.
// Writes go to the primary; searches are spread over the primary and
// replicas by routing key.
type Store struct {
	client   rueidis.Client
	replicas []rueidis.Client
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := newClient(cfg, cfg.Addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	s := &Store{client: client}

	for _, addr := range cfg.Replicas {
		replica, err := newClient(cfg, []string{addr})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create replica client %s: %w", addr, err)
		}
		s.replicas = append(s.replicas, replica)
	}

	return s, nil
}

func newClient(cfg Config, addrs []string) (rueidis.Client, error) {
	return rueidis.NewClient(rueidis.ClientOption{ //nolint:wrapcheck // wrapped by caller
		InitAddress:  addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the primary and replica clients.
func (s *Store) Close() {
	s.client.Close()
	for _, r := range s.replicas {
		r.Close()
	}
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// reader picks the client serving a read for routing.
// An empty key always reads from the primary.
func (s *Store) reader(routing string) rueidis.Client {
	if routing == "" || len(s.replicas) == 0 {
		return s.client
	}
	i := xxhash.Sum64String(routing) % uint64(len(s.replicas)+1)
	if i == 0 {
		return s.client
	}
	return s.replicas[i-1]
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

// isUnknownIndex matches the errors Redis returns for a missing FT index.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
