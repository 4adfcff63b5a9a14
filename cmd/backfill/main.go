// Command backfill synchronizes embeddings for all properties and demand
// posts that lack them, then exits. Intended for cron or one-off runs,
// decoupled from the request-serving process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/casavia/matchengine/internal/config"
	logpkg "github.com/casavia/matchengine/internal/logger"
	"github.com/casavia/matchengine/internal/metrics"
	demandrepo "github.com/casavia/matchengine/internal/repository/demand"
	embeddingrepo "github.com/casavia/matchengine/internal/repository/embedding"
	propertyrepo "github.com/casavia/matchengine/internal/repository/property"
	"github.com/casavia/matchengine/internal/store"
	openaiEmb "github.com/casavia/matchengine/internal/transport/openai"
	backfilluc "github.com/casavia/matchengine/internal/usecase/backfill"
	embeddinguc "github.com/casavia/matchengine/internal/usecase/embedding"
	syncuc "github.com/casavia/matchengine/internal/usecase/sync"
)

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(store.Config{
		DSN:         cfg.Postgres.DSN,
		MaxOpen:     cfg.Postgres.MaxOpen,
		MaxIdle:     cfg.Postgres.MaxIdle,
		AutoMigrate: cfg.Postgres.AutoMigrate,
	})
	if err != nil {
		logger.Fatal("Failed to open relational store", zap.Error(err))
	}

	metrics.RegisterEngineMetrics()

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
	embedder := embeddinguc.NewRateLimited(base, limiter)

	propRepo := propertyrepo.New(db)
	demRepo := demandrepo.New(db)
	embRepo := embeddingrepo.New(db)

	syncSvc := syncuc.New(propRepo, demRepo, embRepo, embedder,
		cfg.Embedding.Model, cfg.Embedding.Dimensions, logger)
	backfillSvc := backfilluc.New(propRepo, demRepo, syncSvc, cfg.Backfill.PageSize, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := backfillSvc.Run(ctx)
	if err != nil {
		logger.Fatal("Backfill failed", zap.Error(err))
	}

	logger.Info("Backfill finished",
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
}
