package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockBreaker struct {
	name  string
	state string
}

func (m *mockBreaker) Name() string  { return m.name }
func (m *mockBreaker) State() string { return m.state }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockBreaker{name: "mask", state: "closed"})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["cache:mask"] != CheckOK {
		t.Errorf("expected cache:mask %q, got %q", CheckOK, r.Checks["cache:mask"])
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockBreaker{name: "mask", state: "closed"})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_BreakerOpen(t *testing.T) {
	svc := New(&mockDBPinger{},
		&mockBreaker{name: "mask", state: "open"},
		&mockBreaker{name: "providers", state: "closed"},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache:mask"] != CheckOpen {
		t.Errorf("expected cache:mask %q, got %q", CheckOpen, r.Checks["cache:mask"])
	}
	if r.Checks["cache:providers"] != CheckOK {
		t.Errorf("expected cache:providers %q, got %q", CheckOK, r.Checks["cache:providers"])
	}
}

func TestCheck_HalfOpenCountsAsOpen(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockBreaker{name: "mask", state: "half-open"})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}

func TestCheck_DBErrorWinsOverBreaker(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("down")}, &mockBreaker{name: "mask", state: "open"})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoBreakers(t *testing.T) {
	svc := New(&mockDBPinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only database check, got %v", r.Checks)
	}
}
