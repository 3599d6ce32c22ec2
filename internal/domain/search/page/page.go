package page

import (
	"fmt"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
)

// Request selects one page of a ranked result set.
type Request struct {
	page       int
	pageSize   int
	filterDead bool
}

// NewRequest validates a page request against the index's maximum result window.
// A request reaching deeper than the window is a deep pagination error.
func NewRequest(page, pageSize int, filterDead bool, maxResultWindow int) (Request, error) {
	if page < 1 {
		return Request{}, fmt.Errorf("%w: page must be >= 1, got %d", domain.ErrInvalidQuery, page)
	}
	if pageSize < 1 {
		return Request{}, fmt.Errorf("%w: page_size must be >= 1, got %d", domain.ErrInvalidQuery, pageSize)
	}
	if page > maxResultWindow/pageSize {
		return Request{}, fmt.Errorf("%w: page %d of size %d exceeds %d results",
			domain.ErrDeepPagination, page, pageSize, maxResultWindow)
	}
	return Request{page: page, pageSize: pageSize, filterDead: filterDead}, nil
}

// Page returns the 1-indexed page number.
func (r Request) Page() int { return r.page }

// Size returns the number of results per page.
func (r Request) Size() int { return r.pageSize }

// FilterDead reports whether dead links should be removed.
func (r Request) FilterDead() bool { return r.filterDead }

// Response is one page of results with capped totals.
type Response struct {
	Results     []result.Hit `json:"results"`
	PageCount   int          `json:"page_count"`
	ResultCount int          `json:"result_count"`
	PageSize    int          `json:"page_size"`
	Page        int          `json:"page"`
}

// Counts derives the reported result and page counts.
// The page count never exceeds the last page reachable within maxDepth results.
// When an underfull page is the only page, the result count is the live count
// actually found rather than the index estimate.
func Counts(indexTotal, found, pageSize, maxDepth int) (resultCount, pageCount int) {
	resultCount = indexTotal
	natural := indexTotal / pageSize
	lastAllowed := (maxDepth + pageSize/2) / pageSize
	pageCount = min(natural, lastAllowed)
	if found < pageSize && pageCount == 0 {
		resultCount = found
	}
	return resultCount, pageCount
}
