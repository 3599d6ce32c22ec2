package exclusion

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/repository/registry"
)

// mockSource implements providerSource for tests.
type mockSource struct {
	mu        sync.Mutex
	providers []registry.Provider
	err       error
	calls     int
	// gate, when set, blocks List until closed.
	gate chan struct{}
}

func (m *mockSource) List(context.Context) ([]registry.Provider, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.providers, m.err
}

// mockStore implements the consumer interface for tests.
type mockStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    time.Duration
	getErr error
	setErr error
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func newTestLister(t *testing.T, providers ...registry.Provider) (*Lister, *mockSource, *mockStore) {
	t.Helper()
	src := &mockSource{providers: providers}
	ms := &mockStore{}
	return New(src, ms, 30*time.Second, zap.NewNop()), src, ms
}
