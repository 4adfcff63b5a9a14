// Package backfill iterates entities lacking embeddings and synchronizes
// them, decoupled from request-serving paths.
package backfill

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
)

// Synchronizer runs per-entity embedding synchronization.
type Synchronizer interface {
	SyncProperty(ctx context.Context, id string) (bool, error)
	SyncDemand(ctx context.Context, id string) (bool, error)
}

// PropertySource pages through properties lacking embeddings.
type PropertySource interface {
	ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]domain.Property, error)
}

// DemandSource pages through demand posts lacking embeddings.
type DemandSource interface {
	ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]domain.DemandPost, error)
}

// Result summarizes one backfill run.
type Result struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Service is the batch backfill job. Provider pacing comes from the shared
// rate limiter on the embedder itself, so batch and interactive traffic draw
// from one global budget.
type Service struct {
	props    PropertySource
	demands  DemandSource
	syncer   Synchronizer
	pageSize int
	running  sync.Mutex
	logger   *zap.Logger
}

// New creates a backfill service.
func New(props PropertySource, demands DemandSource, syncer Synchronizer, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{
		props:    props,
		demands:  demands,
		syncer:   syncer,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Run synchronizes all properties and demands lacking embeddings. At most
// one run is active at a time: overlapping runs would duplicate provider
// calls without benefit, so a second caller gets ErrBackfillRunning.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, domain.ErrBackfillRunning
	}
	defer s.running.Unlock()

	var result Result

	if err := s.backfillProperties(ctx, &result); err != nil {
		return result, err
	}
	if err := s.backfillDemands(ctx, &result); err != nil {
		return result, err
	}

	s.logger.Info("Backfill completed",
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Service) backfillProperties(ctx context.Context, result *Result) error {
	afterID := ""
	for {
		page, err := s.props.ListMissingEmbeddings(ctx, afterID, s.pageSize)
		if err != nil {
			return fmt.Errorf("page properties: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("backfill canceled: %w", err)
			}
			s.tally(result, page[i].ID, func() (bool, error) {
				return s.syncer.SyncProperty(ctx, page[i].ID)
			})
		}
		afterID = page[len(page)-1].ID
	}
}

func (s *Service) backfillDemands(ctx context.Context, result *Result) error {
	afterID := ""
	for {
		page, err := s.demands.ListMissingEmbeddings(ctx, afterID, s.pageSize)
		if err != nil {
			return fmt.Errorf("page demands: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("backfill canceled: %w", err)
			}
			s.tally(result, page[i].ID, func() (bool, error) {
				return s.syncer.SyncDemand(ctx, page[i].ID)
			})
		}
		afterID = page[len(page)-1].ID
	}
}

// tally runs one sync and folds the outcome into the run result. Individual
// failures never abort the run.
func (s *Service) tally(result *Result, id string, syncFn func() (bool, error)) {
	ok, err := syncFn()
	switch {
	case err != nil:
		result.Failed++
		s.logger.Warn("Backfill sync failed", zap.String("id", id), zap.Error(err))
	case ok:
		result.Synced++
	default:
		result.Skipped++
	}
}
