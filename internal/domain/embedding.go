package domain

import (
	"context"
	"time"
)

// OwnerType identifies which entity an embedding belongs to.
type OwnerType string

// Embedding owner types.
const (
	OwnerProperty OwnerType = "property"
	OwnerDemand   OwnerType = "demand"
)

// Embedding is the derived vector record for one Property or one DemandPost
// (1:1, created lazily). The content hash is computed over the canonical
// searchable text, so mutations of non-semantic fields leave it unchanged.
// An embedding whose hash, model, or dimensions disagree with current entity
// state or configuration is stale and must not be trusted for matching.
type Embedding struct {
	OwnerType   OwnerType `gorm:"primaryKey;size:16" json:"owner_type"`
	OwnerID     string    `gorm:"primaryKey;size:64" json:"owner_id"`
	Vector      []byte    `gorm:"type:bytea" json:"-"`
	ContentHash string    `gorm:"size:64;index" json:"content_hash"`
	Model       string    `gorm:"size:80" json:"model"`
	Dimensions  int       `json:"dimensions"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName sets the gorm table name.
func (Embedding) TableName() string { return "embeddings" }

// Current reports whether the embedding is trustworthy for the given content
// hash, model, and dimension configuration.
func (e *Embedding) Current(hash, model string, dims int) bool {
	return e.ContentHash == hash && e.Model == model && e.Dimensions == dims
}

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
