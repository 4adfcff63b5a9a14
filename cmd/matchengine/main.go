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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/casavia/matchengine/internal/cache"
	"github.com/casavia/matchengine/internal/cache/aside"
	"github.com/casavia/matchengine/internal/config"
	logpkg "github.com/casavia/matchengine/internal/logger"
	"github.com/casavia/matchengine/internal/metrics"
	demandrepo "github.com/casavia/matchengine/internal/repository/demand"
	embeddingrepo "github.com/casavia/matchengine/internal/repository/embedding"
	matchrepo "github.com/casavia/matchengine/internal/repository/match"
	propertyrepo "github.com/casavia/matchengine/internal/repository/property"
	"github.com/casavia/matchengine/internal/store"
	chiTransport "github.com/casavia/matchengine/internal/transport/chi"
	openaiEmb "github.com/casavia/matchengine/internal/transport/openai"
	backfilluc "github.com/casavia/matchengine/internal/usecase/backfill"
	embeddinguc "github.com/casavia/matchengine/internal/usecase/embedding"
	healthuc "github.com/casavia/matchengine/internal/usecase/health"
	"github.com/casavia/matchengine/internal/usecase/hooks"
	matchuc "github.com/casavia/matchengine/internal/usecase/match"
	syncuc "github.com/casavia/matchengine/internal/usecase/sync"
	"github.com/casavia/matchengine/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matchengine",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	db, err := store.Open(store.Config{
		DSN:         cfg.Postgres.DSN,
		MaxOpen:     cfg.Postgres.MaxOpen,
		MaxIdle:     cfg.Postgres.MaxIdle,
		AutoMigrate: cfg.Postgres.AutoMigrate,
	})
	if err != nil {
		logger.Fatal("Failed to open relational store", zap.Error(err))
	}
	logger.Info("Connected to relational store")

	cacheStore, err := cache.NewStore(cache.Config{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer cacheStore.Close()

	ctx := context.Background()
	if err := cacheStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessSec)*time.Second); err != nil {
		// Cache is optional: losing it degrades latency, never correctness.
		logger.Warn("Cache not ready, continuing without warm cache", zap.Error(err))
	}

	metrics.RegisterEngineMetrics()

	cacheAside := aside.New(cacheStore, aside.Config{
		KeyPrefix: cfg.Cache.KeyPrefix,
		OpTimeout: time.Duration(cfg.Cache.OpTimeoutMS) * time.Millisecond,
		ShortTTL:  time.Duration(cfg.Cache.ShortTTLSec) * time.Second,
		MediumTTL: time.Duration(cfg.Cache.MediumTTLSec) * time.Second,
		LongTTL:   time.Duration(cfg.Cache.LongTTLSec) * time.Second,
	}, metrics.CacheTotal, logger)

	embedder := buildEmbedder(cfg, logger)

	propRepo := propertyrepo.New(db)
	demRepo := demandrepo.New(db)
	embRepo := embeddingrepo.New(db)
	mtchRepo := matchrepo.New(db)

	syncSvc := syncuc.New(propRepo, demRepo, embRepo, embedder,
		cfg.Embedding.Model, cfg.Embedding.Dimensions, logger)
	matchSvc := matchuc.New(demRepo, propRepo, embRepo, syncSvc, mtchRepo, logger).
		WithPolicy(cfg.Matching.MatchThreshold, cfg.Matching.MaxRecommendations, cfg.Matching.MaxCandidates)
	backfillSvc := backfilluc.New(propRepo, demRepo, syncSvc, cfg.Backfill.PageSize, logger)

	hookQueue := hooks.New(cfg.Hooks.QueueSize, cfg.Hooks.Workers, syncSvc, cacheAside, mtchRepo, logger)
	hookCtx, stopHooks := context.WithCancel(ctx)
	hookQueue.Start(hookCtx)

	healthSvc := healthuc.New(dbPinger{db: db}, cacheStore, embedder)

	server := chiTransport.NewServer(
		matchSvc, mtchRepo, propRepo, backfillSvc, hookQueue, cacheAside, healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

	hookQueue.Close()
	stopHooks()

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the provider chain: OpenAI client wrapped by the
// shared rate limiter. One limiter serves both interactive sync and batch
// backfill, so all provider calls draw from a single rate budget.
func buildEmbedder(cfg config.Config, logger *zap.Logger) *embeddinguc.RateLimitedEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var limiter *rate.Limiter
	if cfg.Embedding.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Embedding.RequestsPerSec), cfg.Embedding.Burst)
	}
	return embeddinguc.NewRateLimited(base, limiter)
}

// dbPinger adapts gorm to the health DBPinger contract.
type dbPinger struct {
	db *gorm.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return store.Ping(ctx, p.db)
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
