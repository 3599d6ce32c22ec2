package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Breaker reports the state of a cache circuit breaker.
type Breaker interface {
	Name() string
	State() string
}
