// Package embedding persists derived embedding records keyed by owner.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casavia/matchengine/internal/domain"
)

// Repo stores embeddings in the relational store.
type Repo struct {
	db *gorm.DB
}

// New creates an embedding repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Get loads the embedding for an owner. Returns domain.ErrNotFound when absent.
func (r *Repo) Get(ctx context.Context, owner domain.OwnerType, ownerID string) (domain.Embedding, error) {
	var e domain.Embedding
	err := r.db.WithContext(ctx).
		First(&e, "owner_type = ? AND owner_id = ?", owner, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Embedding{}, domain.ErrNotFound
		}
		return domain.Embedding{}, fmt.Errorf("get embedding: %w", err)
	}
	return e, nil
}

// GetBatch loads embeddings for many owners of one type in a single query,
// keyed by owner id.
func (r *Repo) GetBatch(ctx context.Context, owner domain.OwnerType, ownerIDs []string) (map[string]domain.Embedding, error) {
	out := make(map[string]domain.Embedding, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	var rows []domain.Embedding
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id IN ?", owner, ownerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get embeddings batch: %w", err)
	}
	for _, e := range rows {
		out[e.OwnerID] = e
	}
	return out, nil
}

// Upsert writes an embedding, replacing any previous record for the owner.
// Idempotent: re-running a sync converges to the same state.
func (r *Repo) Upsert(ctx context.Context, e *domain.Embedding) error {
	e.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vector", "content_hash", "model", "dimensions", "updated_at",
			}),
		}).
		Create(e).Error
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Delete removes the embedding for an owner. Idempotent, nil when absent.
func (r *Repo) Delete(ctx context.Context, owner domain.OwnerType, ownerID string) error {
	err := r.db.WithContext(ctx).
		Delete(&domain.Embedding{}, "owner_type = ? AND owner_id = ?", owner, ownerID).Error
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}
