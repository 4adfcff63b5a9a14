// Package demand provides relational reads over the demand posts table.
package demand

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/casavia/matchengine/internal/domain"
)

// Repo reads demand posts from the relational store.
type Repo struct {
	db *gorm.DB
}

// New creates a demand repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetByID loads one demand post.
func (r *Repo) GetByID(ctx context.Context, id string) (domain.DemandPost, error) {
	var d domain.DemandPost
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DemandPost{}, domain.ErrDemandNotFound
		}
		return domain.DemandPost{}, fmt.Errorf("get demand: %w", err)
	}
	return d, nil
}

// ListMissingEmbeddings pages through active demand posts that have no
// embedding record yet, keyset-paginated by id.
func (r *Repo) ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]domain.DemandPost, error) {
	var posts []domain.DemandPost
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.DemandActive).
		Where("id > ?", afterID).
		Where("NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.owner_type = ? AND e.owner_id = demand_posts.id)",
			domain.OwnerDemand).
		Order("id ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list demands missing embeddings: %w", err)
	}
	return posts, nil
}
