// Package sync keeps embedding records consistent with their source entities
// at minimum provider cost, gated by content hashes.
package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
	"github.com/casavia/matchengine/internal/metrics"
)

// Service is the embedding synchronizer.
type Service struct {
	props   PropertyReader
	demands DemandReader
	store   EmbeddingStore
	embed   domain.Embedder
	model   string
	dims    int
	logger  *zap.Logger
}

// New creates a synchronizer for the configured model and dimensions.
func New(
	props PropertyReader, demands DemandReader, store EmbeddingStore,
	embed domain.Embedder, model string, dims int, logger *zap.Logger,
) *Service {
	return &Service{
		props:   props,
		demands: demands,
		store:   store,
		embed:   embed,
		model:   model,
		dims:    dims,
		logger:  logger,
	}
}

// SyncProperty brings the property's embedding up to date. Returns true when
// the embedding is current afterwards (freshly generated or already current).
// A missing property returns (false, nil): sync must never block the primary
// mutation path, the caller logs and moves on.
func (s *Service) SyncProperty(ctx context.Context, id string) (bool, error) {
	p, err := s.props.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPropertyNotFound) {
			s.logger.Info("Property absent, skipping embedding sync", zap.String("property_id", id))
			metrics.EmbeddingSyncTotal.WithLabelValues(string(domain.OwnerProperty), "missing").Inc()
			return false, nil
		}
		return false, fmt.Errorf("load property %s: %w", id, err)
	}
	return s.syncOwner(ctx, domain.OwnerProperty, id, BuildPropertyText(&p))
}

// SyncDemand brings the demand post's embedding up to date. Same semantics
// as SyncProperty.
func (s *Service) SyncDemand(ctx context.Context, id string) (bool, error) {
	d, err := s.demands.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDemandNotFound) {
			s.logger.Info("Demand absent, skipping embedding sync", zap.String("demand_id", id))
			metrics.EmbeddingSyncTotal.WithLabelValues(string(domain.OwnerDemand), "missing").Inc()
			return false, nil
		}
		return false, fmt.Errorf("load demand %s: %w", id, err)
	}
	return s.syncOwner(ctx, domain.OwnerDemand, id, BuildDemandText(&d))
}

// syncOwner runs hash-gated synchronization for one entity. The provider is
// called only when the content hash, model, or dimensions changed; on
// provider failure the existing record is left untouched.
func (s *Service) syncOwner(ctx context.Context, owner domain.OwnerType, id, text string) (bool, error) {
	hash := ContentHash(text)

	existing, err := s.store.Get(ctx, owner, id)
	switch {
	case err == nil:
		if existing.Current(hash, s.model, s.dims) {
			metrics.EmbeddingSyncTotal.WithLabelValues(string(owner), "current").Inc()
			return true, nil
		}
	case errors.Is(err, domain.ErrNotFound):
		// no embedding yet
	default:
		return false, fmt.Errorf("load embedding %s/%s: %w", owner, id, err)
	}

	result, err := s.embed.Embed(ctx, text)
	if err != nil {
		metrics.EmbeddingSyncTotal.WithLabelValues(string(owner), "failed").Inc()
		return false, fmt.Errorf("embed %s/%s: %w", owner, id, err)
	}

	if s.dims > 0 && len(result.Embedding) != s.dims {
		// Configuration mismatch between the provider response and the
		// configured model. Logged loudly, never stored.
		s.logger.Error("Embedding dimension mismatch",
			zap.String("owner", string(owner)),
			zap.String("id", id),
			zap.Int("got", len(result.Embedding)),
			zap.Int("want", s.dims),
		)
		metrics.EmbeddingSyncTotal.WithLabelValues(string(owner), "failed").Inc()
		return false, fmt.Errorf("embed %s/%s: got %d dims, want %d: %w",
			owner, id, len(result.Embedding), s.dims, domain.ErrVectorDimMismatch)
	}

	record := domain.Embedding{
		OwnerType:   owner,
		OwnerID:     id,
		Vector:      domain.EncodeVector(result.Embedding),
		ContentHash: hash,
		Model:       s.model,
		Dimensions:  s.dims,
	}
	if err := s.store.Upsert(ctx, &record); err != nil {
		metrics.EmbeddingSyncTotal.WithLabelValues(string(owner), "failed").Inc()
		return false, fmt.Errorf("store embedding %s/%s: %w", owner, id, err)
	}

	metrics.EmbeddingSyncTotal.WithLabelValues(string(owner), "synced").Inc()
	return true, nil
}

// DeleteEmbedding removes the embedding of a deleted entity. Idempotent,
// nil when absent.
func (s *Service) DeleteEmbedding(ctx context.Context, owner domain.OwnerType, id string) error {
	if err := s.store.Delete(ctx, owner, id); err != nil {
		return fmt.Errorf("delete embedding %s/%s: %w", owner, id, err)
	}
	return nil
}

// DemandVector returns the current embedding vector for a demand post,
// synchronizing through the provider when the stored record is stale or
// missing, or unconditionally when force is set.
func (s *Service) DemandVector(ctx context.Context, d *domain.DemandPost, force bool) ([]float32, error) {
	text := BuildDemandText(d)
	hash := ContentHash(text)

	if !force {
		existing, err := s.store.Get(ctx, domain.OwnerDemand, d.ID)
		if err == nil && existing.Current(hash, s.model, s.dims) {
			vec, decErr := domain.DecodeVector(existing.Vector)
			if decErr == nil {
				return vec, nil
			}
			s.logger.Error("Undecodable stored demand vector, regenerating",
				zap.String("demand_id", d.ID), zap.Error(decErr))
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load demand embedding %s: %w", d.ID, err)
		}
	}

	if _, err := s.syncOwner(ctx, domain.OwnerDemand, d.ID, text); err != nil {
		return nil, err
	}

	refreshed, err := s.store.Get(ctx, domain.OwnerDemand, d.ID)
	if err != nil {
		return nil, fmt.Errorf("reload demand embedding %s: %w", d.ID, err)
	}
	vec, err := domain.DecodeVector(refreshed.Vector)
	if err != nil {
		return nil, fmt.Errorf("decode demand vector %s: %w", d.ID, err)
	}
	return vec, nil
}

// CurrentPropertyVector validates an embedding record against the property's
// current content and configuration and decodes it. Pure, no I/O. A stale or
// incompatible record yields (nil, false): the property is then scored by
// constraint proximity instead of being excluded.
func (s *Service) CurrentPropertyVector(p *domain.Property, e *domain.Embedding) ([]float32, bool) {
	if e == nil {
		return nil, false
	}
	hash := ContentHash(BuildPropertyText(p))
	if !e.Current(hash, s.model, s.dims) {
		return nil, false
	}
	vec, err := domain.DecodeVector(e.Vector)
	if err != nil {
		s.logger.Error("Undecodable stored property vector",
			zap.String("property_id", p.ID), zap.Error(err))
		return nil, false
	}
	return vec, true
}
