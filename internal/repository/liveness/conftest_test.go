package liveness

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockStore is an in-memory hash store with optional failure hooks.
type mockStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	readErr error
	setErr  error
	ttlErr  error
	nx      []bool
}

func newMockStore() *mockStore {
	return &mockStore{
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) HSetNX(_ context.Context, key string, fields map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return 0, m.setErr
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	n := 0
	for k, v := range fields {
		if _, exists := h[k]; exists {
			continue
		}
		h[k] = v
		n++
	}
	return n, nil
}

// Expire follows EXPIRE ... NX: with nx set, a key that already has a TTL keeps it.
func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nx = append(m.nx, nx)
	if m.ttlErr != nil {
		return m.ttlErr
	}
	if _, ok := m.ttls[key]; ok && nx {
		return nil
	}
	m.ttls[key] = ttl
	return nil
}

func newTestCache(t *testing.T) (*Cache, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, time.Hour, nil, nil, zap.NewNop()), ms
}
