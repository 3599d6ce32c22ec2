package search

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
)

// Window is the index slice [Start, End) to fetch for one page.
// Skip is the number of live hits at the head of the slice that belong to
// earlier pages; it is non-zero only when the mask ends before the page begins.
type Window struct {
	Start int
	End   int
	Skip  int
}

// Paginator maps a page of live results onto an index slice.
type Paginator struct {
	deadLinkRatio   float64
	maxResultWindow int
}

// NewPaginator creates a paginator. deadLinkRatio is the worst-case share of
// dead results, in [0, 1).
func NewPaginator(deadLinkRatio float64, maxResultWindow int) (Paginator, error) {
	if deadLinkRatio < 0 || deadLinkRatio >= 1 {
		return Paginator{}, fmt.Errorf("dead link ratio must be in [0, 1), got %v", deadLinkRatio)
	}
	if maxResultWindow < 1 {
		return Paginator{}, fmt.Errorf("max result window must be positive, got %d", maxResultWindow)
	}
	return Paginator{deadLinkRatio: deadLinkRatio, maxResultWindow: maxResultWindow}, nil
}

// Slice computes the slice holding the live results of page, using what mask
// already knows. Bounds the mask cannot resolve fall back to worst-case inflation.
func (p Paginator) Slice(mask *liveness.Mask, page, pageSize int) (Window, error) {
	if err := p.checkDepth(page, pageSize); err != nil {
		return Window{}, err
	}
	offset := pageSize * (page - 1)
	want := pageSize * page
	acc := mask.LiveCounts()
	known := len(acc)
	live := 0
	if known > 0 {
		live = acc[known-1]
	}

	var w Window
	switch {
	case known == 0:
		w.Start = 0
	case offset > live:
		w.Start = known
		w.Skip = offset - live
	case page > 1:
		w.Start = startRank(acc, offset)
	}

	if want <= live {
		w.End = firstRank(acc, want) + 1
	} else {
		w.End = max(p.inflate(want), known+p.inflate(want-live))
	}

	if w.End > p.maxResultWindow {
		return Window{}, fmt.Errorf("%w: slice end %d exceeds %d",
			domain.ErrDeepPagination, w.End, p.maxResultWindow)
	}
	return w, nil
}

// PlainSlice computes the slice of page when no hits are removed.
func (p Paginator) PlainSlice(page, pageSize int) (Window, error) {
	if err := p.checkDepth(page, pageSize); err != nil {
		return Window{}, err
	}
	w := Window{Start: pageSize * (page - 1), End: pageSize * page}
	if w.End > p.maxResultWindow {
		return Window{}, fmt.Errorf("%w: slice end %d exceeds %d",
			domain.ErrDeepPagination, w.End, p.maxResultWindow)
	}
	return w, nil
}

// checkDepth rejects pages that cannot fit in the result window. It runs before
// any offset arithmetic so huge page numbers cannot wrap around.
func (p Paginator) checkDepth(page, pageSize int) error {
	if page < 1 || pageSize < 1 {
		return fmt.Errorf("%w: page %d of size %d", domain.ErrInvalidQuery, page, pageSize)
	}
	if page > p.maxResultWindow/pageSize {
		return fmt.Errorf("%w: page %d of size %d exceeds %d results",
			domain.ErrDeepPagination, page, pageSize, p.maxResultWindow)
	}
	return nil
}

// inflate returns how many ranks to fetch to expect n live ones in the worst case.
func (p Paginator) inflate(n int) int {
	return int(math.Ceil(float64(n) / (1 - p.deadLinkRatio)))
}

// startRank locates the rank holding live result offset+1. When that result
// is not known yet, the page starts right after live result offset.
func startRank(acc []int, offset int) int {
	if i := firstRank(acc, offset+1); i >= 0 {
		return i
	}
	return firstRank(acc, offset) + 1
}

// firstRank returns the first rank where the running live count reaches n, or -1.
func firstRank(acc []int, n int) int {
	for i, c := range acc {
		if c == n {
			return i
		}
	}
	return -1
}
