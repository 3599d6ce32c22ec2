package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/livesearch/internal/config"
	"github.com/kailas-cloud/livesearch/internal/db/guard"
	dbRedis "github.com/kailas-cloud/livesearch/internal/db/redis"
	"github.com/kailas-cloud/livesearch/internal/domain/liveness"
	"github.com/kailas-cloud/livesearch/internal/domain/media"
	logpkg "github.com/kailas-cloud/livesearch/internal/logger"
	"github.com/kailas-cloud/livesearch/internal/metrics"
	"github.com/kailas-cloud/livesearch/internal/repository/exclusion"
	indexrepo "github.com/kailas-cloud/livesearch/internal/repository/index"
	livenessrepo "github.com/kailas-cloud/livesearch/internal/repository/liveness"
	providersrepo "github.com/kailas-cloud/livesearch/internal/repository/providers"
	"github.com/kailas-cloud/livesearch/internal/repository/registry"
	chiTransport "github.com/kailas-cloud/livesearch/internal/transport/chi"
	"github.com/kailas-cloud/livesearch/internal/transport/probe"
	healthuc "github.com/kailas-cloud/livesearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/livesearch/internal/usecase/search"
	"github.com/kailas-cloud/livesearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting livesearch API server",
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("db_replicas", len(cfg.Database.Replicas)),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Replicas: cfg.Database.Replicas,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	types, err := mediaTypes(cfg.Media)
	if err != nil {
		logger.Fatal("Invalid media configuration", zap.Error(err))
	}
	mediaRegistry, err := media.NewRegistry(types...)
	if err != nil {
		logger.Fatal("Invalid media configuration", zap.Error(err))
	}

	policy, err := probePolicy(cfg.Probe.Policy)
	if err != nil {
		logger.Fatal("Invalid probe policy", zap.Error(err))
	}

	// Each cache namespace gets its own breaker so one failing keyspace
	// does not take the others down with it.
	breakerCfg := guard.Config{
		Failures:         cfg.Cache.Breaker.Failures,
		Timeout:          time.Duration(cfg.Cache.Breaker.OpenSec) * time.Second,
		Interval:         time.Duration(cfg.Cache.Breaker.IntervalSec) * time.Second,
		HalfOpenRequests: cfg.Cache.Breaker.HalfOpenRequests,
	}
	if breakerCfg.Timeout == 0 {
		breakerCfg.Timeout = guard.DefaultConfig().Timeout
	}
	maskStore := guard.New(store, "mask", breakerCfg, logger)
	exclusionStore := guard.New(store, "exclusions", breakerCfg, logger)
	providersStore := guard.New(store, "providers", breakerCfg, logger)

	// Create repositories
	indexRepo := indexrepo.New(store)
	if err := indexRepo.EnsureSchema(ctx, types); err != nil {
		logger.Fatal("Failed to create search indexes", zap.Error(err))
	}

	registryRepo := registry.New(store)
	for _, p := range cfg.Providers {
		if err := registryRepo.Save(ctx, registry.Provider{
			ID:            p.ID,
			MediaType:     p.MediaType,
			FilterContent: p.FilterContent,
		}); err != nil {
			logger.Fatal("Failed to seed provider registry", zap.String("provider", p.ID), zap.Error(err))
		}
	}

	masks := livenessrepo.New(maskStore, cfg.Cache.MaskTTL(),
		metrics.MaskCacheTotal, metrics.MaskFactsMergedTotal, logger)
	exclusions := exclusion.New(registryRepo, exclusionStore, cfg.Cache.FilteredProvidersTTL(), logger)
	providerCounts := providersrepo.New(providersStore, cfg.Cache.ProvidersTTL(), logger)

	prober := probe.New(probe.Config{
		Concurrency: cfg.Probe.Concurrency,
		Timeout:     time.Duration(cfg.Probe.TimeoutMs) * time.Millisecond,
		RatePerSec:  cfg.Probe.RatePerSec,
		Burst:       cfg.Probe.Burst,
		UserAgent:   cfg.Probe.UserAgent,
	}, policy, logger)

	var proxy *searchuc.Proxy
	if cfg.Proxy.Enabled {
		proxy = searchuc.NewProxy(cfg.Proxy.URL, cfg.Proxy.Width, cfg.Proxy.ProxyAll)
	}

	// Create use case services
	searchSvc, err := searchuc.New(indexRepo, masks, prober, exclusions, providerCounts,
		mediaRegistry, proxy, searchuc.Config{
			MaxResultWindow:    cfg.Search.MaxResultWindow,
			MaxPaginationDepth: cfg.Search.MaxPaginationDepth,
			DeadLinkRatio:      cfg.Search.DeadLinkRatio,
			WideningFactor:     cfg.Search.WideningFactor,
			MaxWidenings:       cfg.Search.MaxWidenings,
			RelatedPageSize:    cfg.Search.RelatedPageSize,
			MergeTimeout:       time.Duration(cfg.Search.MergeTimeoutMs) * time.Millisecond,
		})
	if err != nil {
		logger.Fatal("Failed to create search service", zap.Error(err))
	}

	healthSvc := healthuc.New(store, maskStore, exclusionStore, providersStore)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, healthSvc, chiTransport.Options{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware(mediaRegistry.Names()...))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// mediaTypes builds media types from config, falling back to the stock image and audio types.
func mediaTypes(cfgs []config.MediaConfig) ([]media.Type, error) {
	if len(cfgs) == 0 {
		return media.Defaults(), nil
	}
	types := make([]media.Type, 0, len(cfgs))
	for _, c := range cfgs {
		fields := make([]media.Field, len(c.SearchFields))
		for i, f := range c.SearchFields {
			fields[i] = media.Field{Name: f.Name, Weight: f.Weight}
		}
		t, err := media.New(c.Name, c.Index, fields, c.RelatedFields, c.DetailURL)
		if err != nil {
			return nil, fmt.Errorf("media %s: %w", c.Name, err)
		}
		types = append(types, t)
	}
	return types, nil
}

// probePolicy builds the dead-link classification policy from config.
func probePolicy(c config.PolicyConfig) (liveness.Policy, error) {
	if len(c.Alive) == 0 && len(c.Dead) == 0 && len(c.Unknown) == 0 {
		return liveness.DefaultPolicy(), nil
	}
	alive := make([]liveness.StatusRange, len(c.Alive))
	for i, r := range c.Alive {
		alive[i] = liveness.StatusRange{From: r.From, To: r.To}
	}
	p, err := liveness.NewPolicy(alive, c.Dead, c.Unknown)
	if err != nil {
		return liveness.Policy{}, fmt.Errorf("probe policy: %w", err)
	}
	return p, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternal,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("media", chi.URLParam(r, "media")),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}
