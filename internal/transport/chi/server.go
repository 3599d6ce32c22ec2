package chi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/search/page"
	"github.com/kailas-cloud/livesearch/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/livesearch/internal/usecase/health"
	"github.com/kailas-cloud/livesearch/internal/version"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeUnauthorized    = "unauthorized"
	CodeInvalidQuery    = "invalid_query"
	CodeInvalidProvider = "invalid_provider"
	CodeDeepPagination  = "deep_pagination"
	CodeNotFound        = "not_found"
	CodeUpstream        = "upstream_error"
	CodeInternal        = "internal_error"
)

// Page size bounds used when Options leaves them at zero.
const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// ProvidersResponse is the JSON body of GET /v1/{media}/providers.
type ProvidersResponse struct {
	MediaType string         `json:"media_type"`
	Providers map[string]int `json:"providers"`
}

// SearchService is the consumer interface for the search usecase (ISP).
type SearchService interface {
	MaxResultWindow() int
	Search(ctx context.Context, mediaName string, req *request.Request,
		pr page.Request, consistencyKey string) (page.Response, error)
	Related(ctx context.Context, mediaName, identifier string,
		filterDead bool, consistencyKey string) (page.Response, error)
	Providers(ctx context.Context, mediaName string) (map[string]int, error)
}

// HealthChecker is the consumer interface for the health usecase.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options tunes request parsing.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search API.
type Server struct {
	search        SearchService
	health        HealthChecker
	logger        *zap.Logger
	opts          Options
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	s := &Server{
		search: search,
		health: health,
		logger: logger,
		opts:   opts,
	}
	// Upstream first: an UpstreamError also matches its cause, which may be ErrNotFound.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, CodeUpstream),
		sentinelHandler(domain.ErrDeepPagination, http.StatusBadRequest, CodeDeepPagination),
		sentinelHandler(domain.ErrInvalidProvider, http.StatusBadRequest, CodeInvalidProvider),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrUnknownMediaType, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/{media}", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/providers", s.Providers)
		r.Get("/{identifier}/related", s.Related)
	})
}

// Search handles GET /v1/{media}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	params := make(map[string]string)
	for _, name := range request.TermParams() {
		if v := qs.Get(name); v != "" {
			params[name] = v
		}
	}
	filters, err := request.FiltersFromParams(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
		return
	}

	req, err := request.New(qs.Get("q"), qs.Get("creator"), qs.Get("title"), qs.Get("tags"), filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
		return
	}

	pr, ok := s.pageRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.search.Search(r.Context(), chi.URLParam(r, "media"), &req, pr, consistencyKey(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Related handles GET /v1/{media}/{identifier}/related.
func (s *Server) Related(w http.ResponseWriter, r *http.Request) {
	filterDead, err := parseBool(r.URL.Query().Get("filter_dead"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "filter_dead must be a boolean")
		return
	}

	resp, err := s.search.Related(r.Context(),
		chi.URLParam(r, "media"), chi.URLParam(r, "identifier"), filterDead, consistencyKey(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Providers handles GET /v1/{media}/providers.
func (s *Server) Providers(w http.ResponseWriter, r *http.Request) {
	mediaName := chi.URLParam(r, "media")
	counts, err := s.search.Providers(r.Context(), mediaName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProvidersResponse{MediaType: mediaName, Providers: counts})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.String(),
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// pageRequest parses page, page_size and filter_dead. Writes a 400 and
// returns false on malformed input.
func (s *Server) pageRequest(w http.ResponseWriter, r *http.Request) (page.Request, bool) {
	qs := r.URL.Query()

	pageNum, err := parseInt(qs.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "page must be an integer")
		return page.Request{}, false
	}
	size, err := parseInt(qs.Get("page_size"), s.opts.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "page_size must be an integer")
		return page.Request{}, false
	}
	if size > s.opts.MaxPageSize {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery,
			fmt.Sprintf("page_size must be <= %d", s.opts.MaxPageSize))
		return page.Request{}, false
	}
	filterDead, err := parseBool(qs.Get("filter_dead"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "filter_dead must be a boolean")
		return page.Request{}, false
	}

	pr, err := page.NewRequest(pageNum, size, filterDead, s.search.MaxResultWindow())
	if err != nil {
		s.handleDomainError(w, err)
		return page.Request{}, false
	}
	return pr, true
}

// consistencyKey derives a stable, non-reversible key from the client address
// so repeated queries from one client land on the same replica.
func consistencyKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v) //nolint:wrapcheck // caller writes its own message
}

func parseBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v) //nolint:wrapcheck // caller writes its own message
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Client errors carry their full text; upstream failures only the sentinel.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrUpstream) {
		return domain.ErrUpstream.Error()
	}
	clientErrs := []error{
		domain.ErrDeepPagination,
		domain.ErrInvalidProvider,
		domain.ErrInvalidQuery,
		domain.ErrUnknownMediaType,
		domain.ErrNotFound,
	}
	for _, s := range clientErrs {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
