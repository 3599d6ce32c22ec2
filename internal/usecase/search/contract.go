package search

import (
	"context"

	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/domain/search/query"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
)

// Index executes queries against the external ranked index.
type Index interface {
	// Search returns the hits of q's [Start, End) slice, ranked from q.Start.
	Search(ctx context.Context, q *query.Query) (*query.Result, error)
	// Lookup returns the single document with the given identifier,
	// or domain.ErrNotFound.
	Lookup(ctx context.Context, index, identifier string) (result.Hit, error)
	// Aggregate counts documents per distinct value of field.
	// Returns domain.ErrNotFound when the index does not exist.
	Aggregate(ctx context.Context, index, field string) (map[string]int, error)
}

// MaskStore caches liveness masks per query fingerprint.
// Implementations absorb their own failures: Get degrades to an empty mask
// and Merge to a no-op.
type MaskStore interface {
	Get(ctx context.Context, fingerprint string) *liveness.Mask
	Merge(ctx context.Context, fingerprint string, start int, statuses []liveness.Status)
}

// Prober checks whether resource URLs still resolve.
// The returned slice is parallel to urls.
type Prober interface {
	Probe(ctx context.Context, urls []string) []liveness.Status
}

// ExclusionLister lists providers hidden from search results.
type ExclusionLister interface {
	Excluded(ctx context.Context) []string
}

// ProviderCache caches per-provider document counts for a media type.
type ProviderCache interface {
	Get(ctx context.Context, mediaType string) (map[string]int, bool)
	Put(ctx context.Context, mediaType string, counts map[string]int)
}
