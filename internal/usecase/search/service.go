package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/domain/media"
	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
	"github.com/kailas-cloud/livesearch/internal/domain/search/page"
	"github.com/kailas-cloud/livesearch/internal/domain/search/query"
	"github.com/kailas-cloud/livesearch/internal/domain/search/request"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
	"github.com/kailas-cloud/livesearch/internal/logger"
	"github.com/kailas-cloud/livesearch/internal/metrics"
)

// NoneFound is the provider listing reported when the index does not exist.
const NoneFound = "none_found"

// Defaults for Config fields left at zero.
const (
	DefaultMaxResultWindow    = 10000
	DefaultMaxPaginationDepth = 5000
	DefaultDeadLinkRatio      = 0.5
	DefaultWideningFactor     = 0.5
	DefaultMaxWidenings       = 5
	DefaultRelatedPageSize    = 10
	DefaultMergeTimeout       = 2 * time.Second
	maxSimilarTerms           = 50
)

// Config tunes the pagination pipeline.
type Config struct {
	// MaxResultWindow is the deepest rank the index serves.
	MaxResultWindow int
	// MaxPaginationDepth caps the reported page count.
	MaxPaginationDepth int
	DeadLinkRatio      float64
	WideningFactor     float64
	MaxWidenings       int
	RelatedPageSize    int
	MergeTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxResultWindow == 0 {
		c.MaxResultWindow = DefaultMaxResultWindow
	}
	if c.MaxPaginationDepth == 0 {
		c.MaxPaginationDepth = DefaultMaxPaginationDepth
	}
	if c.DeadLinkRatio == 0 {
		c.DeadLinkRatio = DefaultDeadLinkRatio
	}
	if c.WideningFactor == 0 {
		c.WideningFactor = DefaultWideningFactor
	}
	if c.MaxWidenings == 0 {
		c.MaxWidenings = DefaultMaxWidenings
	}
	if c.RelatedPageSize == 0 {
		c.RelatedPageSize = DefaultRelatedPageSize
	}
	if c.MergeTimeout == 0 {
		c.MergeTimeout = DefaultMergeTimeout
	}
	return c
}

// Service runs searches with dead-link-aware pagination.
type Service struct {
	index      Index
	masks      MaskStore
	prober     Prober
	exclusions ExclusionLister
	providers  ProviderCache
	media      *media.Registry
	proxy      *Proxy
	paginator  Paginator
	cfg        Config
}

// New creates a search service. proxy may be nil to disable thumbnail proxying.
func New(
	index Index, masks MaskStore, prober Prober,
	exclusions ExclusionLister, providers ProviderCache,
	types *media.Registry, proxy *Proxy, cfg Config,
) (*Service, error) {
	cfg = cfg.withDefaults()
	pg, err := NewPaginator(cfg.DeadLinkRatio, cfg.MaxResultWindow)
	if err != nil {
		return nil, fmt.Errorf("paginator: %w", err)
	}
	return &Service{
		index:      index,
		masks:      masks,
		prober:     prober,
		exclusions: exclusions,
		providers:  providers,
		media:      types,
		proxy:      proxy,
		paginator:  pg,
		cfg:        cfg,
	}, nil
}

// MaxResultWindow returns the deepest rank the service will request.
func (s *Service) MaxResultWindow() int { return s.cfg.MaxResultWindow }

// Search returns one page of req's results for the given media type.
// consistencyKey pins repeated queries from one caller to the same replica.
func (s *Service) Search(
	ctx context.Context, mediaName string, req *request.Request,
	pr page.Request, consistencyKey string,
) (page.Response, error) {
	mt, err := s.media.Get(mediaName)
	if err != nil {
		return page.Response{}, err //nolint:wrapcheck // domain error
	}

	for _, p := range req.Providers() {
		if err = s.ValidateProvider(ctx, mt.Name(), p); err != nil {
			return page.Response{}, err
		}
	}

	q := &query.Query{
		Index:          mt.Index(),
		Filters:        s.withExclusions(ctx, req.Filters()),
		Highlight:      true,
		ConsistencyKey: consistencyKey,
	}
	if req.HasText() {
		q.Text = req.Query()
		q.SearchFields = mt.SearchFields()
	} else {
		q.FieldQueries = req.FieldQueries()
	}

	return s.run(ctx, mt, q, pr)
}

// Related returns documents similar to the one with the given identifier.
func (s *Service) Related(
	ctx context.Context, mediaName, identifier string,
	filterDead bool, consistencyKey string,
) (page.Response, error) {
	mt, err := s.media.Get(mediaName)
	if err != nil {
		return page.Response{}, err //nolint:wrapcheck // domain error
	}
	if _, err = uuid.Parse(identifier); err != nil {
		return page.Response{}, fmt.Errorf("%w: identifier %q is not a uuid", domain.ErrInvalidQuery, identifier)
	}

	src, err := s.index.Lookup(ctx, mt.Index(), identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return page.Response{}, fmt.Errorf("%s %s: %w", mt.Name(), identifier, domain.ErrNotFound)
		}
		return page.Response{}, domain.NewUpstream("lookup", err)
	}

	pr, err := page.NewRequest(1, s.cfg.RelatedPageSize, filterDead, s.cfg.MaxResultWindow)
	if err != nil {
		return page.Response{}, err //nolint:wrapcheck // domain error
	}

	q := &query.Query{
		Index:   mt.Index(),
		Filters: s.withExclusions(ctx, filter.Expression{}),
		Similar: &query.Similar{
			ExcludeID: src.ID,
			Terms:     sourceTerms(src, mt.RelatedFields()),
		},
		ConsistencyKey: consistencyKey,
	}
	return s.run(ctx, mt, q, pr)
}

// Providers returns the number of documents per provider, without providers
// hidden from search. An absent index reports {"none_found": 0}.
func (s *Service) Providers(ctx context.Context, mediaName string) (map[string]int, error) {
	mt, err := s.media.Get(mediaName)
	if err != nil {
		return nil, err //nolint:wrapcheck // domain error
	}
	counts, err := s.providerCounts(ctx, mt)
	if err != nil {
		return nil, err
	}

	hidden := make(map[string]bool)
	for _, p := range s.exclusions.Excluded(ctx) {
		hidden[strings.ToLower(p)] = true
	}
	out := make(map[string]int, len(counts))
	for p, n := range counts {
		if !hidden[strings.ToLower(p)] {
			out[p] = n
		}
	}
	return out, nil
}

// ValidateProvider checks, case-insensitively, that the index holds documents
// from provider. Hidden providers are valid; their results are simply excluded.
func (s *Service) ValidateProvider(ctx context.Context, mediaName, provider string) error {
	mt, err := s.media.Get(mediaName)
	if err != nil {
		return err //nolint:wrapcheck // domain error
	}
	counts, err := s.providerCounts(ctx, mt)
	if err != nil {
		return err
	}
	for p := range counts {
		if p != NoneFound && strings.EqualFold(p, provider) {
			return nil
		}
	}
	return domain.NewInvalidProvider(provider)
}

// run paginates q for pr and derives the reported counts.
func (s *Service) run(ctx context.Context, mt media.Type, q *query.Query, pr page.Request) (page.Response, error) {
	p := &pass{media: mt, query: q, page: pr, fp: q.Fingerprint()}

	var err error
	if pr.FilterDead() {
		p.mask = s.masks.Get(ctx, p.fp)
		if p.mask == nil {
			p.mask = liveness.NewMask()
		}
		p.window, err = s.paginator.Slice(p.mask, pr.Page(), pr.Size())
	} else {
		p.window, err = s.paginator.PlainSlice(pr.Page(), pr.Size())
	}
	if err != nil {
		return page.Response{}, err
	}

	hits, total, err := s.collect(ctx, p)
	if err != nil {
		return page.Response{}, err
	}
	if hits == nil {
		hits = []result.Hit{}
	}

	resultCount, pageCount := page.Counts(total, len(hits), pr.Size(), s.cfg.MaxPaginationDepth)
	logger.FromContext(ctx).Debug("Search page served",
		zap.String("media", mt.Name()),
		zap.String("fingerprint", p.fp),
		zap.Int("page", pr.Page()),
		zap.Int("start", p.window.Start),
		zap.Int("end", p.window.End),
		zap.Int("results", len(hits)),
	)
	return page.Response{
		Results:     hits,
		PageCount:   pageCount,
		ResultCount: resultCount,
		PageSize:    pr.Size(),
		Page:        pr.Page(),
	}, nil
}

// providerCounts returns cached aggregation counts, refreshing on a miss.
func (s *Service) providerCounts(ctx context.Context, mt media.Type) (map[string]int, error) {
	if counts, ok := s.providers.Get(ctx, mt.Name()); ok {
		metrics.ProvidersCacheTotal.WithLabelValues("hit").Inc()
		return counts, nil
	}
	metrics.ProvidersCacheTotal.WithLabelValues("miss").Inc()

	counts, err := s.index.Aggregate(ctx, mt.Index(), request.ProviderField)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		counts = map[string]int{NoneFound: 0}
	case err != nil:
		return nil, domain.NewUpstream("aggregate providers", err)
	}
	s.providers.Put(ctx, mt.Name(), counts)
	return counts, nil
}

// withExclusions adds a must-not condition for every hidden provider.
func (s *Service) withExclusions(ctx context.Context, expr filter.Expression) filter.Expression {
	hidden := s.exclusions.Excluded(ctx)
	conds := make([]filter.Condition, 0, len(hidden))
	for _, p := range hidden {
		c, err := filter.NewMatch(request.ProviderField, p)
		if err != nil {
			continue
		}
		conds = append(conds, c)
	}
	if len(conds) == 0 {
		return expr
	}
	return expr.Exclude(conds...)
}

// sourceTerms extracts the values similarity is computed over.
func sourceTerms(h result.Hit, fields []string) map[string][]string {
	terms := make(map[string][]string, len(fields))
	for _, f := range fields {
		var values []string
		switch f {
		case "tags":
			values = h.Tags
		case "title":
			values = strings.Fields(h.Title)
		case "creator":
			if h.Creator != "" {
				values = []string{h.Creator}
			}
		case "provider":
			values = []string{h.Provider}
		}
		if len(values) > maxSimilarTerms {
			values = values[:maxSimilarTerms]
		}
		if len(values) > 0 {
			terms[f] = values
		}
	}
	return terms
}
