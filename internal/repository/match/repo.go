// Package match persists computed match records for audit and history.
package match

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/casavia/matchengine/internal/domain"
)

// Repo stores match records in the relational store.
type Repo struct {
	db *gorm.DB
}

// New creates a match repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ReplaceForDemand replaces all match records of a demand with the given set
// in one transaction. A recompute supersedes earlier records rather than
// accumulating duplicates.
func (r *Repo) ReplaceForDemand(ctx context.Context, demandID string, records []domain.Match) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Match{}, "demand_id = ?", demandID).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		return fmt.Errorf("replace matches for demand %s: %w", demandID, err)
	}
	return nil
}

// ListForDemand returns the persisted match history of a demand, best first.
func (r *Repo) ListForDemand(ctx context.Context, demandID string, limit int) ([]domain.Match, error) {
	q := r.db.WithContext(ctx).
		Where("demand_id = ?", demandID).
		Order("score DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []domain.Match
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list matches for demand %s: %w", demandID, err)
	}
	return records, nil
}

// DeleteForDemand removes all match records referencing a demand.
func (r *Repo) DeleteForDemand(ctx context.Context, demandID string) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Match{}, "demand_id = ?", demandID).Error; err != nil {
		return fmt.Errorf("delete matches for demand %s: %w", demandID, err)
	}
	return nil
}

// DeleteForProperty removes all match records referencing a property.
func (r *Repo) DeleteForProperty(ctx context.Context, propertyID string) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Match{}, "property_id = ?", propertyID).Error; err != nil {
		return fmt.Errorf("delete matches for property %s: %w", propertyID, err)
	}
	return nil
}
