package domain

import "time"

// DemandStatus is the demand post lifecycle state.
type DemandStatus string

// Demand statuses. Status transitions do not invalidate the embedding,
// only content changes do.
const (
	DemandActive DemandStatus = "active"
	DemandClosed DemandStatus = "closed"
)

// Urgency expresses how soon the buyer wants to transact.
type Urgency string

// Urgency levels.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// DemandPost is a buyer "want" record. Owned by the demand subsystem.
type DemandPost struct {
	ID          string       `gorm:"primaryKey;size:64" json:"id"`
	UserID      string       `gorm:"size:64;index" json:"user_id"`
	Status      DemandStatus `gorm:"size:16;index" json:"status"`
	Type        PropertyType `gorm:"size:24" json:"type"`
	Intent      Intent       `gorm:"size:8" json:"intent"`
	BudgetMin   float64      `json:"budget_min"`
	BudgetMax   float64      `json:"budget_max"`
	City        string       `gorm:"size:80" json:"city"`
	District    string       `gorm:"size:80" json:"district"`
	Urgency     Urgency      `gorm:"size:16" json:"urgency"`
	Description string       `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName sets the gorm table name.
func (DemandPost) TableName() string { return "demand_posts" }

// Constraints resolves the hard (non-semantic) constraints of the demand.
// These bound the candidate set before any similarity scoring and keep
// matching correct even when embeddings are entirely unavailable.
func (d *DemandPost) Constraints() Constraints {
	return Constraints{
		Type:      d.Type,
		Intent:    d.Intent.ListingIntent(),
		BudgetMin: d.BudgetMin,
		BudgetMax: d.BudgetMax,
		City:      d.City,
		District:  d.District,
	}
}
