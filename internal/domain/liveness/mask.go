// Package liveness models which ranks of a query's result ordering reference
// resources that still resolve.
package liveness

// Status is the liveness classification of one result.
type Status int8

const (
	// Unknown means the rank has not been probed, or the probe was inconclusive.
	Unknown Status = iota
	// Alive means the resource resolved.
	Alive
	// Dead means the resource did not resolve.
	Dead
)

func (s Status) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Mask records liveness per sequential rank for one query fingerprint.
// Facts are only ever added: a recorded rank keeps its first status.
// A nil *Mask behaves as an empty mask.
type Mask struct {
	ranks map[int]Status
}

// NewMask creates an empty mask.
func NewMask() *Mask {
	return &Mask{ranks: make(map[int]Status)}
}

// FromStatuses builds a mask whose ranks 0..len-1 carry the given statuses.
func FromStatuses(statuses ...Status) *Mask {
	m := NewMask()
	m.Merge(0, statuses)
	return m
}

// Status returns the recorded status of rank.
func (m *Mask) Status(rank int) Status {
	if m == nil {
		return Unknown
	}
	return m.ranks[rank]
}

// Merge records statuses for ranks start, start+1, ... and reports how many
// new facts were added. Unknown statuses and already recorded ranks are skipped.
func (m *Mask) Merge(start int, statuses []Status) int {
	added := 0
	for i, s := range statuses {
		if m.Set(start+i, s) {
			added++
		}
	}
	return added
}

// Set records a single rank unless it is already known. Reports whether it was added.
func (m *Mask) Set(rank int, s Status) bool {
	if s == Unknown || rank < 0 {
		return false
	}
	if _, ok := m.ranks[rank]; ok {
		return false
	}
	m.ranks[rank] = s
	return true
}

// Known returns the number of recorded ranks.
func (m *Mask) Known() int {
	if m == nil {
		return 0
	}
	return len(m.ranks)
}

// Len returns the length of the contiguous known prefix starting at rank 0.
func (m *Mask) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for {
		if _, ok := m.ranks[n]; !ok {
			return n
		}
		n++
	}
}

// IsEmpty reports whether nothing is known about rank 0 onwards.
func (m *Mask) IsEmpty() bool { return m.Len() == 0 }

// LiveCounts returns the running count of live ranks over the known prefix:
// element i is the number of alive ranks in [0, i].
func (m *Mask) LiveCounts() []int {
	n := m.Len()
	acc := make([]int, n)
	sum := 0
	for i := 0; i < n; i++ {
		if m.ranks[i] == Alive {
			sum++
		}
		acc[i] = sum
	}
	return acc
}

// Entries returns a copy of the recorded ranks.
func (m *Mask) Entries() map[int]Status {
	out := make(map[int]Status, m.Known())
	if m == nil {
		return out
	}
	for k, v := range m.ranks {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the mask.
func (m *Mask) Clone() *Mask {
	return &Mask{ranks: m.Entries()}
}
