package search

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
)

const (
	a = liveness.Alive
	d = liveness.Dead
)

func mustPaginator(t *testing.T, ratio float64, window int) Paginator {
	t.Helper()
	p, err := NewPaginator(ratio, window)
	if err != nil {
		t.Fatalf("NewPaginator: %v", err)
	}
	return p
}

func TestNewPaginator_InvalidRatio(t *testing.T) {
	for _, r := range []float64{-0.1, 1, 1.5} {
		if _, err := NewPaginator(r, 10000); err == nil {
			t.Errorf("ratio %v: expected error", r)
		}
	}
	if _, err := NewPaginator(0.5, 0); err == nil {
		t.Error("zero window: expected error")
	}
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name           string
		mask           *liveness.Mask
		page, pageSize int
		want           Window
	}{
		{"empty mask first page", nil, 1, 2, Window{Start: 0, End: 4}},
		{"empty mask deep page", liveness.NewMask(), 3, 20, Window{Start: 0, End: 120}},
		{
			// live counts: 1 1 2 2 3 4
			"both bounds resolved",
			liveness.FromStatuses(a, d, a, d, a, a), 2, 2,
			Window{Start: 4, End: 6},
		},
		{
			// live counts: 1 1 2 2 3
			"end stops at the exact live count",
			liveness.FromStatuses(a, d, a, d, a), 1, 2,
			Window{Start: 0, End: 3},
		},
		{
			// live counts: 1 2 2 2
			"start after a dead run",
			liveness.FromStatuses(a, a, d, d), 2, 2,
			Window{Start: 2, End: 8},
		},
		{
			// live counts: 1 1
			"mask ends before the page",
			liveness.FromStatuses(a, d), 3, 2,
			Window{Start: 2, End: 12, Skip: 3},
		},
		{
			// live counts: 0 0 0 0 0 0 0 0
			"long dead prefix extends the worst case",
			liveness.FromStatuses(d, d, d, d, d, d, d, d), 1, 2,
			Window{Start: 0, End: 12},
		},
	}

	p := mustPaginator(t, 0.5, 10000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Slice(tt.mask, tt.page, tt.pageSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Slice = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSlice_SparseMaskUsesPrefix(t *testing.T) {
	mask := liveness.FromStatuses(a, a)
	mask.Set(5, a)
	p := mustPaginator(t, 0.5, 10000)

	got, err := p.Slice(mask, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// rank 5 lies past the gap at 2 and is ignored
	if got != (Window{Start: 2, End: 8}) {
		t.Errorf("Slice = %+v", got)
	}
}

func TestSlice_DeepPagination(t *testing.T) {
	p := mustPaginator(t, 0.5, 10000)

	if _, err := p.Slice(nil, 250, 20); err != nil {
		t.Fatalf("page 250 should fit: %v", err)
	}
	_, err := p.Slice(nil, 251, 20)
	if !errors.Is(err, domain.ErrDeepPagination) {
		t.Fatalf("expected ErrDeepPagination, got %v", err)
	}
}

func TestSlice_HugePageRejected(t *testing.T) {
	p := mustPaginator(t, 0.5, 10000)
	mask := liveness.FromStatuses(a, d, a, a)

	if _, err := p.Slice(mask, math.MaxInt64/4+2, 4); !errors.Is(err, domain.ErrDeepPagination) {
		t.Errorf("Slice: expected ErrDeepPagination, got %v", err)
	}
	if _, err := p.PlainSlice(math.MaxInt64/4+2, 4); !errors.Is(err, domain.ErrDeepPagination) {
		t.Errorf("PlainSlice: expected ErrDeepPagination, got %v", err)
	}
}

func TestSlice_NonPositiveInput(t *testing.T) {
	p := mustPaginator(t, 0.5, 10000)
	for _, tc := range [][2]int{{0, 20}, {1, 0}, {-3, 20}} {
		if _, err := p.Slice(nil, tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("Slice(%d, %d): expected ErrInvalidQuery, got %v", tc[0], tc[1], err)
		}
		if _, err := p.PlainSlice(tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("PlainSlice(%d, %d): expected ErrInvalidQuery, got %v", tc[0], tc[1], err)
		}
	}
}

func TestSlice_NoDeadLinkRatio(t *testing.T) {
	p := mustPaginator(t, 0, 10000)
	got, err := p.Slice(nil, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Window{Start: 0, End: 20}) {
		t.Errorf("Slice = %+v", got)
	}
}

func TestPlainSlice(t *testing.T) {
	p := mustPaginator(t, 0.5, 10000)
	got, err := p.PlainSlice(3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Window{Start: 20, End: 30}) {
		t.Errorf("PlainSlice = %+v", got)
	}
	if _, err = p.PlainSlice(1001, 10); !errors.Is(err, domain.ErrDeepPagination) {
		t.Errorf("expected ErrDeepPagination, got %v", err)
	}
}
