package sync

import (
	"context"

	"github.com/casavia/matchengine/internal/domain"
)

// PropertyReader loads properties for text building.
type PropertyReader interface {
	GetByID(ctx context.Context, id string) (domain.Property, error)
}

// DemandReader loads demand posts for text building.
type DemandReader interface {
	GetByID(ctx context.Context, id string) (domain.DemandPost, error)
}

// EmbeddingStore persists embedding records keyed by owner.
type EmbeddingStore interface {
	Get(ctx context.Context, owner domain.OwnerType, ownerID string) (domain.Embedding, error)
	Upsert(ctx context.Context, e *domain.Embedding) error
	Delete(ctx context.Context, owner domain.OwnerType, ownerID string) error
}
