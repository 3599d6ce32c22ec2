package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckOpen indicates a cache breaker that is failing fast.
	CheckOpen CheckResult = "open"
)

const breakerClosed = "closed"

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	breakers []Breaker
}

// New creates a Service. Breakers are reported under "cache:<name>".
func New(db DBPinger, breakers ...Breaker) *Service {
	return &Service{db: db, breakers: breakers}
}

// Check runs health checks against all components. A failing database makes
// the service unhealthy since no search can be answered without the index.
// An open cache breaker only degrades it: searches still run, just without
// the cache behind that breaker.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.breakers)+1)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	for _, b := range s.breakers {
		key := "cache:" + b.Name()
		if b.State() == breakerClosed {
			checks[key] = CheckOK
			continue
		}
		checks[key] = CheckOpen
		if status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
