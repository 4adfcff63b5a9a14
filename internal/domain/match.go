package domain

import "time"

// MatchKind classifies a scored pairing relative to the confidence threshold.
type MatchKind string

// Match kinds.
const (
	KindMatch          MatchKind = "match"
	KindRecommendation MatchKind = "recommendation"
)

// Match is a persisted historical record of a computed demand/property
// pairing. Append/refresh records for audit and "why was I shown this"
// queries, not a cache. Deleted when either endpoint is deleted.
type Match struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	DemandID    string    `gorm:"size:64;index" json:"demand_id"`
	PropertyID  string    `gorm:"size:64;index" json:"property_id"`
	Score       float64   `json:"score"`
	Kind        MatchKind `gorm:"size:16" json:"kind"`
	Explanation string    `gorm:"type:text" json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName sets the gorm table name.
func (Match) TableName() string { return "matches" }

// RankedProperty is one scored entry of a match computation result.
type RankedProperty struct {
	Property    Property  `json:"property"`
	Score       float64   `json:"score"`
	Kind        MatchKind `json:"kind"`
	Explanation string    `json:"explanation"`
	Semantic    bool      `json:"semantic"`
}

// MatchResult is the two-list outcome of a match computation.
type MatchResult struct {
	Matches         []RankedProperty `json:"matches"`
	Recommendations []RankedProperty `json:"recommendations"`
	// Degraded is set when the scoring provider was unavailable and the
	// result was produced from constraint-only scoring.
	Degraded bool `json:"degraded"`
}
