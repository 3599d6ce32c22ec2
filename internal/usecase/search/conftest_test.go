package search

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/domain/media"
	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
	"github.com/kailas-cloud/livesearch/internal/domain/search/page"
	"github.com/kailas-cloud/livesearch/internal/domain/search/query"
	"github.com/kailas-cloud/livesearch/internal/domain/search/request"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
)

// --- Mocks ---

type mockIndex struct {
	docs      []result.Hit
	searchErr error
	lookup    *result.Hit
	lookupErr error
	aggCounts map[string]int
	aggErr    error

	queries  []*query.Query
	aggCalls int
}

func (m *mockIndex) Search(_ context.Context, q *query.Query) (*query.Result, error) {
	m.queries = append(m.queries, q)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var matched []result.Hit
	for _, d := range m.docs {
		if matches(q, d) {
			matched = append(matched, d)
		}
	}
	res := &query.Result{Total: len(matched)}
	for i := q.Start; i < q.End && i < len(matched); i++ {
		h := matched[i]
		h.Rank = i
		res.Hits = append(res.Hits, h)
	}
	return res, nil
}

func matches(q *query.Query, d result.Hit) bool {
	for _, c := range q.Filters.MustNot() {
		if c.Key() == request.ProviderField && c.Value() == d.Provider {
			return false
		}
	}
	if providers := q.Filters.ValuesFor(request.ProviderField); len(providers) > 0 {
		found := false
		for _, p := range providers {
			if p == d.Provider {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if q.Similar != nil && q.Similar.ExcludeID == d.ID {
		return false
	}
	return true
}

func (m *mockIndex) Lookup(_ context.Context, _, _ string) (result.Hit, error) {
	if m.lookupErr != nil {
		return result.Hit{}, m.lookupErr
	}
	return *m.lookup, nil
}

func (m *mockIndex) Aggregate(_ context.Context, _, _ string) (map[string]int, error) {
	m.aggCalls++
	return m.aggCounts, m.aggErr
}

func (m *mockIndex) slices() [][2]int {
	out := make([][2]int, len(m.queries))
	for i, q := range m.queries {
		out[i] = [2]int{q.Start, q.End}
	}
	return out
}

// mockMasks is an in-memory mask store. down simulates an unreachable cache.
type mockMasks struct {
	mu       sync.Mutex
	masks    map[string]*liveness.Mask
	down     bool
	mergeCtx []error
}

func newMockMasks() *mockMasks {
	return &mockMasks{masks: make(map[string]*liveness.Mask)}
}

func (m *mockMasks) Get(_ context.Context, fp string) *liveness.Mask {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down || m.masks[fp] == nil {
		return liveness.NewMask()
	}
	return m.masks[fp].Clone()
}

func (m *mockMasks) Merge(ctx context.Context, fp string, start int, statuses []liveness.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeCtx = append(m.mergeCtx, ctx.Err())
	if m.down {
		return
	}
	if m.masks[fp] == nil {
		m.masks[fp] = liveness.NewMask()
	}
	m.masks[fp].Merge(start, statuses)
}

func (m *mockMasks) only(t *testing.T) *liveness.Mask {
	t.Helper()
	if len(m.masks) != 1 {
		t.Fatalf("expected 1 cached mask, got %d", len(m.masks))
	}
	for _, mask := range m.masks {
		return mask
	}
	return nil
}

type mockProber struct {
	dead    map[string]bool
	unknown map[string]bool
	probed  map[string]int
	onProbe func()
}

func newMockProber(dead ...string) *mockProber {
	p := &mockProber{dead: make(map[string]bool), unknown: make(map[string]bool), probed: make(map[string]int)}
	for _, u := range dead {
		p.dead[u] = true
	}
	return p
}

func (m *mockProber) Probe(_ context.Context, urls []string) []liveness.Status {
	out := make([]liveness.Status, len(urls))
	for i, u := range urls {
		m.probed[u]++
		switch {
		case m.unknown[u]:
			out[i] = liveness.Unknown
		case m.dead[u]:
			out[i] = liveness.Dead
		default:
			out[i] = liveness.Alive
		}
	}
	if m.onProbe != nil {
		m.onProbe()
	}
	return out
}

type mockExclusions struct {
	providers []string
}

func (m *mockExclusions) Excluded(_ context.Context) []string { return m.providers }

type mockProviderCache struct {
	counts map[string]map[string]int
}

func newMockProviderCache() *mockProviderCache {
	return &mockProviderCache{counts: make(map[string]map[string]int)}
}

func (m *mockProviderCache) Get(_ context.Context, mediaType string) (map[string]int, bool) {
	c, ok := m.counts[mediaType]
	return c, ok
}

func (m *mockProviderCache) Put(_ context.Context, mediaType string, counts map[string]int) {
	m.counts[mediaType] = counts
}

// --- Fixtures ---

type fixture struct {
	index      *mockIndex
	masks      *mockMasks
	prober     *mockProber
	exclusions *mockExclusions
	providers  *mockProviderCache
	svc        *Service
}

func newFixture(t *testing.T, docs []result.Hit, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		index:      &mockIndex{docs: docs, aggCounts: providerCounts(docs)},
		masks:      newMockMasks(),
		prober:     newMockProber(),
		exclusions: &mockExclusions{},
		providers:  newMockProviderCache(),
	}
	types, err := media.NewRegistry(media.Defaults()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	f.svc, err = New(f.index, f.masks, f.prober, f.exclusions, f.providers, types, nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func providerCounts(docs []result.Hit) map[string]int {
	out := make(map[string]int)
	for _, d := range docs {
		out[d.Provider]++
	}
	return out
}

func makeDocs(n int, provider string) []result.Hit {
	docs := make([]result.Hit, n)
	for i := range docs {
		docs[i] = result.Hit{
			ID:       fmt.Sprintf("doc-%02d", i),
			Provider: provider,
			URL:      fmt.Sprintf("https://cdn.example.org/doc-%02d.jpg", i),
		}
	}
	return docs
}

// markDead registers the given doc indexes as dead with the prober.
func (f *fixture) markDead(idx ...int) {
	for _, i := range idx {
		f.prober.dead[f.index.docs[i].URL] = true
	}
}

func textRequest(t *testing.T, q string) *request.Request {
	t.Helper()
	return filteredRequest(t, q, filter.Expression{})
}

func filteredRequest(t *testing.T, q string, expr filter.Expression) *request.Request {
	t.Helper()
	r, err := request.New(q, "", "", "", expr)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &r
}

func providerRequest(t *testing.T, provider string) *request.Request {
	t.Helper()
	expr, err := request.FiltersFromParams(map[string]string{"source": provider})
	if err != nil {
		t.Fatalf("FiltersFromParams: %v", err)
	}
	return filteredRequest(t, "", expr)
}

func pageRequest(t *testing.T, pg, size int, filterDead bool) page.Request {
	t.Helper()
	pr, err := page.NewRequest(pg, size, filterDead, DefaultMaxResultWindow)
	if err != nil {
		t.Fatalf("page.NewRequest: %v", err)
	}
	return pr
}

func ids(hits []result.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
