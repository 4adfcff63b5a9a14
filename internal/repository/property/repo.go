// Package property provides relational reads over the listings table.
package property

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/casavia/matchengine/internal/domain"
)

// Repo reads properties from the relational store.
type Repo struct {
	db *gorm.DB
}

// New creates a property repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetByID loads one property.
func (r *Repo) GetByID(ctx context.Context, id string) (domain.Property, error) {
	var p domain.Property
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Property{}, domain.ErrPropertyNotFound
		}
		return domain.Property{}, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

// ListActive returns active properties satisfying the hard constraints,
// newest first. This is the candidate set for matching: it bounds the
// scoring workload and stays correct with no embeddings at all.
func (r *Repo) ListActive(ctx context.Context, c domain.Constraints, limit int) ([]domain.Property, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", domain.PropertyActive)

	if c.Type != "" {
		q = q.Where("type = ?", c.Type)
	}
	if c.Intent != "" {
		q = q.Where("intent = ?", c.Intent)
	}
	if c.BudgetMin > 0 {
		q = q.Where("price >= ?", c.BudgetMin)
	}
	if c.BudgetMax > 0 {
		q = q.Where("price <= ?", c.BudgetMax)
	}
	if c.City != "" {
		q = q.Where("city = ?", c.City)
	}
	if c.District != "" {
		q = q.Where("district = ?", c.District)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var props []domain.Property
	if err := q.Order("created_at DESC").Find(&props).Error; err != nil {
		return nil, fmt.Errorf("list active properties: %w", err)
	}
	return props, nil
}

// ListMissingEmbeddings pages through active properties that have no
// embedding record yet, keyset-paginated by id.
func (r *Repo) ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]domain.Property, error) {
	var props []domain.Property
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.PropertyActive).
		Where("id > ?", afterID).
		Where("NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.owner_type = ? AND e.owner_id = properties.id)",
			domain.OwnerProperty).
		Order("id ASC").
		Limit(limit).
		Find(&props).Error
	if err != nil {
		return nil, fmt.Errorf("list properties missing embeddings: %w", err)
	}
	return props, nil
}
