// Package probe checks whether result URLs still resolve.
package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/metrics"
)

// Config bounds outbound probing.
type Config struct {
	// Concurrency is the maximum number of probes in flight per call.
	Concurrency int
	// Timeout bounds a single probe.
	Timeout time.Duration
	// RatePerSec caps probes per second across all calls. Zero disables the cap.
	RatePerSec float64
	// Burst is the number of probes allowed at once under the rate cap.
	Burst     int
	UserAgent string
}

// DefaultConfig returns the probing limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Concurrency: 16,
		Timeout:     2 * time.Second,
		UserAgent:   "livesearch-link-validator",
	}
}

// Option customizes a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the HTTP client. Redirects are never followed.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) {
		cp := *c
		cp.CheckRedirect = noRedirect
		p.client = &cp
	}
}

// Prober issues HEAD requests and classifies the responses with a Policy.
type Prober struct {
	client  *http.Client
	policy  liveness.Policy
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New creates a prober.
func New(cfg Config, policy liveness.Policy, logger *zap.Logger, opts ...Option) *Prober {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	p := &Prober{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: cfg.Concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: noRedirect,
		},
		policy: policy,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Concurrency
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Probe checks every URL and returns their statuses in input order.
// Each distinct URL is requested once. Probes cut short by ctx report Unknown.
func (p *Prober) Probe(ctx context.Context, urls []string) []liveness.Status {
	out := make([]liveness.Status, len(urls))
	if len(urls) == 0 {
		return out
	}

	positions := make(map[string][]int, len(urls))
	distinct := make([]string, 0, len(urls))
	for i, u := range urls {
		if _, seen := positions[u]; !seen {
			distinct = append(distinct, u)
		}
		positions[u] = append(positions[u], i)
	}

	statuses := make([]liveness.Status, len(distinct))
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, u := range distinct {
		g.Go(func() error {
			statuses[i] = p.probeOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range distinct {
		for _, pos := range positions[u] {
			out[pos] = statuses[i]
		}
	}
	return out
}

func (p *Prober) probeOne(ctx context.Context, url string) liveness.Status {
	status := p.check(ctx, url)
	metrics.ProbeRequestsTotal.WithLabelValues(status.String()).Inc()
	return status
}

func (p *Prober) check(ctx context.Context, url string) liveness.Status {
	if url == "" {
		return liveness.Dead
	}
	if ctx.Err() != nil {
		return liveness.Unknown
	}

	// The rate limiter wait counts against the probe timeout.
	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(pctx); err != nil {
			p.logger.Debug("Probe rate limited", zap.String("url", url), zap.Error(err))
			return liveness.Unknown
		}
	}

	req, err := http.NewRequestWithContext(pctx, http.MethodHead, url, nil)
	if err != nil {
		p.logger.Debug("Malformed probe url", zap.String("url", url), zap.Error(err))
		return liveness.Dead
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return liveness.Unknown
		}
		p.logger.Debug("Probe failed", zap.String("url", url), zap.Error(err))
		return liveness.Dead
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return p.policy.Classify(resp.StatusCode)
}
