package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/metrics"
)

// fakeStore fails every call with err and counts calls.
type fakeStore struct {
	err   error
	calls int
}

func (f *fakeStore) Get(context.Context, string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("v"), nil
}

func (f *fakeStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	f.calls++
	return f.err
}

func (f *fakeStore) Expire(context.Context, string, time.Duration, bool) error {
	f.calls++
	return f.err
}

func (f *fakeStore) HSet(context.Context, string, map[string]string) error {
	f.calls++
	return f.err
}

func (f *fakeStore) HSetNX(_ context.Context, _ string, fields map[string]string) (int, error) {
	f.calls++
	return len(fields), f.err
}

func (f *fakeStore) HGetAll(context.Context, string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"0": "1"}, nil
}

func (f *fakeStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	f.calls++
	return make([]map[string]string, len(keys)), f.err
}

func (f *fakeStore) Scan(context.Context, string) ([]string, error) {
	f.calls++
	return []string{"k"}, f.err
}

func newGuard(t *testing.T, inner *fakeStore, name string) *Store {
	t.Helper()
	return New(inner, name, Config{Failures: 2, Timeout: time.Hour}, zap.NewNop())
}

func TestStore_PassesThrough(t *testing.T) {
	inner := &fakeStore{}
	s := newGuard(t, inner, "test-pass")

	v, err := s.Get(context.Background(), "k")
	if err != nil || string(v) != "v" {
		t.Fatalf("Get = (%q, %v)", v, err)
	}
	m, err := s.HGetAll(context.Background(), "k")
	if err != nil || m["0"] != "1" {
		t.Fatalf("HGetAll = (%v, %v)", m, err)
	}
	n, err := s.HSetNX(context.Background(), "k", map[string]string{"0": "1", "1": "0"})
	if err != nil || n != 2 {
		t.Fatalf("HSetNX = (%d, %v)", n, err)
	}
	if err := s.Expire(context.Background(), "k", time.Minute, true); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if s.State() != "closed" {
		t.Errorf("expected closed, got %s", s.State())
	}
}

func TestStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeStore{err: errors.New("connection refused")}
	s := newGuard(t, inner, "test-open")

	for range 2 {
		if _, err := s.HGetAll(context.Background(), "k"); err == nil {
			t.Fatal("expected error")
		}
	}
	if s.State() != "open" {
		t.Fatalf("expected open, got %s", s.State())
	}

	_, err := s.HGetAll(context.Background(), "k")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open breaker must not reach the store, calls = %d", inner.calls)
	}
	if got := testutil.ToFloat64(metrics.BreakerState.WithLabelValues("test-open")); got != 2 {
		t.Errorf("expected breaker gauge 2, got %v", got)
	}
}

func TestStore_MissesDoNotTrip(t *testing.T) {
	inner := &fakeStore{err: db.ErrKeyNotFound}
	s := newGuard(t, inner, "test-miss")

	for range 5 {
		_, err := s.Get(context.Background(), "k")
		if !errors.Is(err, db.ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	}
	if s.State() != "closed" {
		t.Errorf("misses must not open the breaker, state = %s", s.State())
	}
}

func TestStore_NamespacesAreIndependent(t *testing.T) {
	failing := newGuard(t, &fakeStore{err: errors.New("boom")}, "test-ns-a")
	healthy := newGuard(t, &fakeStore{}, "test-ns-b")

	for range 3 {
		_ = failing.Expire(context.Background(), "k", time.Minute, true)
	}
	if failing.State() != "open" {
		t.Fatalf("expected open, got %s", failing.State())
	}
	if err := healthy.Expire(context.Background(), "k", time.Minute, true); err != nil {
		t.Fatalf("healthy namespace affected: %v", err)
	}
	if healthy.Name() != "test-ns-b" {
		t.Errorf("unexpected name %q", healthy.Name())
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(&fakeStore{}, "test-defaults", Config{}, zap.NewNop())
	if s.State() != "closed" {
		t.Errorf("expected closed, got %s", s.State())
	}
}
