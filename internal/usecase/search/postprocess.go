package search

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/domain/media"
	"github.com/kailas-cloud/livesearch/internal/domain/search/page"
	"github.com/kailas-cloud/livesearch/internal/domain/search/query"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
	"github.com/kailas-cloud/livesearch/internal/logger"
	"github.com/kailas-cloud/livesearch/internal/metrics"
)

// Proxy rewrites thumbnails to go through the internal image proxy.
// A nil *Proxy leaves hits untouched.
type Proxy struct {
	url   string
	width int
	all   map[string]bool
}

// NewProxy creates a thumbnail proxy. Providers in proxyAll are always proxied,
// from their full-size URL; others only when served over plain HTTP.
func NewProxy(url string, width int, proxyAll []string) *Proxy {
	all := make(map[string]bool, len(proxyAll))
	for _, p := range proxyAll {
		all[p] = true
	}
	return &Proxy{url: strings.TrimRight(url, "/"), width: width, all: all}
}

// Rewrite points h's thumbnail at the proxy when required.
func (p *Proxy) Rewrite(h *result.Hit) {
	if p == nil {
		return
	}
	forced := p.all[h.Provider]
	original := h.URL
	if h.HasThumbnail() && !forced {
		original = h.Thumbnail
	}
	if original == "" || (!forced && !result.IsInsecure(original)) {
		return
	}
	h.Thumbnail = p.url + "/" + strconv.Itoa(p.width) + "/" + original
}

// pass carries one query through slicing, probing and widening.
type pass struct {
	media  media.Type
	query  *query.Query
	page   page.Request
	window Window
	fp     string
	mask   *liveness.Mask
}

// collect fetches the window, drops dead hits and widens the slice until the
// page is full, the index is exhausted, the window ceiling is reached, or the
// widening budget is spent. Returns the page's hits and the index total.
func (s *Service) collect(ctx context.Context, p *pass) ([]result.Hit, int, error) {
	start, end := p.window.Start, p.window.End
	size := p.page.Size()

	for widenings := 0; ; widenings++ {
		q := p.query.WithSlice(start, end)
		res, err := s.index.Search(ctx, q)
		if err != nil {
			return nil, 0, domain.NewUpstream("search index", err)
		}

		hits := s.decorate(p.media, res.Hits)
		if !p.page.FilterDead() {
			return truncate(hits, size), res.Total, nil
		}

		live := s.dropDead(ctx, p, hits)
		live = skipLive(live, p.window.Skip)
		if len(live) >= size || res.Exhausted(q) {
			return truncate(live, size), res.Total, nil
		}

		next := s.widen(end)
		if next > s.cfg.MaxResultWindow || widenings >= s.cfg.MaxWidenings {
			logger.FromContext(ctx).Debug("Page left underfull",
				zap.String("media", p.media.Name()),
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Int("live", len(live)),
				zap.Int("widenings", widenings),
			)
			return live, res.Total, nil
		}
		metrics.SearchWideningsTotal.WithLabelValues(p.media.Name()).Inc()
		end = next
	}
}

// widen grows the slice end by end*WideningFactor, at least one rank. Growth is
// taken from end rather than the span end-start, so it is never smaller than
// the span's share.
func (s *Service) widen(end int) int {
	return end + max(1, int(float64(end)*s.cfg.WideningFactor))
}

// decorate attaches detail links, matched fields and proxied thumbnails.
func (s *Service) decorate(mt media.Type, hits []result.Hit) []result.Hit {
	for i := range hits {
		h := &hits[i]
		h.Detail = mt.DetailURL(h.ID)
		if len(h.Highlighted) > 0 {
			h.FieldsMatched = append([]string(nil), h.Highlighted...)
		}
		s.proxy.Rewrite(h)
	}
	return hits
}

// dropDead probes every hit whose rank the mask does not know, records the
// outcomes and returns the hits not known to be dead, in rank order.
func (s *Service) dropDead(ctx context.Context, p *pass, hits []result.Hit) []result.Hit {
	if len(hits) == 0 {
		return hits
	}

	statuses := make([]liveness.Status, len(hits))
	var urls []string
	var pending []int
	for i := range hits {
		statuses[i] = p.mask.Status(hits[i].Rank)
		if statuses[i] == liveness.Unknown {
			urls = append(urls, hits[i].URL)
			pending = append(pending, i)
		}
	}

	if len(urls) > 0 {
		probed := s.prober.Probe(ctx, urls)
		fresh := 0
		for j, i := range pending {
			statuses[i] = probed[j]
			if p.mask.Set(hits[i].Rank, probed[j]) {
				fresh++
			}
		}
		if fresh > 0 {
			s.persist(ctx, p.fp, hits[0].Rank, statuses)
		}
	}

	live := make([]result.Hit, 0, len(hits))
	for i := range hits {
		if statuses[i] == liveness.Dead {
			continue
		}
		live = append(live, hits[i])
	}
	if dropped := len(hits) - len(live); dropped > 0 {
		metrics.SearchDeadLinksTotal.WithLabelValues(p.media.Name()).Add(float64(dropped))
	}
	return live
}

// persist merges probe outcomes into the mask cache. It outlives the request
// so completed probes are kept when the caller goes away.
func (s *Service) persist(ctx context.Context, fp string, start int, statuses []liveness.Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MergeTimeout)
	defer cancel()
	s.masks.Merge(ctx, fp, start, statuses)
}

func skipLive(hits []result.Hit, n int) []result.Hit {
	if n >= len(hits) {
		return hits[:0]
	}
	return hits[n:]
}

func truncate(hits []result.Hit, n int) []result.Hit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}
