package liveness

import "fmt"

// StatusRange is an inclusive range of HTTP status codes.
type StatusRange struct {
	From int
	To   int
}

func (r StatusRange) contains(code int) bool { return code >= r.From && code <= r.To }

// Policy classifies probe outcomes. Precedence: unknown codes, then dead
// codes, then alive ranges; anything else is dead.
type Policy struct {
	alive   []StatusRange
	dead    map[int]struct{}
	unknown map[int]struct{}
}

// DefaultPolicy treats 2xx/3xx as alive, 429 as inconclusive and everything else as dead.
func DefaultPolicy() Policy {
	p, _ := NewPolicy([]StatusRange{{From: 200, To: 399}}, nil, []int{429})
	return p
}

// NewPolicy validates and creates a classification policy.
func NewPolicy(alive []StatusRange, dead, unknown []int) (Policy, error) {
	if len(alive) == 0 {
		return Policy{}, fmt.Errorf("at least one alive status range is required")
	}
	for _, r := range alive {
		if r.From < 100 || r.To > 599 || r.From > r.To {
			return Policy{}, fmt.Errorf("invalid alive status range %d-%d", r.From, r.To)
		}
	}
	p := Policy{
		alive:   alive,
		dead:    make(map[int]struct{}, len(dead)),
		unknown: make(map[int]struct{}, len(unknown)),
	}
	for _, c := range dead {
		p.dead[c] = struct{}{}
	}
	for _, c := range unknown {
		if _, dup := p.dead[c]; dup {
			return Policy{}, fmt.Errorf("status %d listed as both dead and unknown", c)
		}
		p.unknown[c] = struct{}{}
	}
	return p, nil
}

// Classify maps an HTTP status code to a liveness status.
func (p Policy) Classify(code int) Status {
	if _, ok := p.unknown[code]; ok {
		return Unknown
	}
	if _, ok := p.dead[code]; ok {
		return Dead
	}
	for _, r := range p.alive {
		if r.contains(code) {
			return Alive
		}
	}
	return Dead
}
