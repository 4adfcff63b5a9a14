package match

import (
	"context"

	"github.com/casavia/matchengine/internal/domain"
)

// DemandReader loads demand posts.
type DemandReader interface {
	GetByID(ctx context.Context, id string) (domain.DemandPost, error)
}

// PropertyLister queries the candidate set of active properties under hard
// constraints.
type PropertyLister interface {
	ListActive(ctx context.Context, c domain.Constraints, limit int) ([]domain.Property, error)
}

// EmbeddingReader batch-loads embedding records for candidates.
type EmbeddingReader interface {
	GetBatch(ctx context.Context, owner domain.OwnerType, ownerIDs []string) (map[string]domain.Embedding, error)
}

// Synchronizer provides current vectors, syncing on demand.
type Synchronizer interface {
	DemandVector(ctx context.Context, d *domain.DemandPost, force bool) ([]float32, error)
	CurrentPropertyVector(p *domain.Property, e *domain.Embedding) ([]float32, bool)
}

// MatchStore persists computed match records for audit and history.
type MatchStore interface {
	ReplaceForDemand(ctx context.Context, demandID string, records []domain.Match) error
}
