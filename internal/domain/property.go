package domain

import "time"

// PropertyStatus is the listing lifecycle state. Only active listings are matchable.
type PropertyStatus string

// Property statuses.
const (
	PropertyActive   PropertyStatus = "active"
	PropertyPending  PropertyStatus = "pending"
	PropertySold     PropertyStatus = "sold"
	PropertyArchived PropertyStatus = "archived"
)

// PropertyType classifies a listing.
type PropertyType string

// Property types.
const (
	TypeCondo     PropertyType = "condo"
	TypeHouse     PropertyType = "house"
	TypeTownhouse PropertyType = "townhouse"
	TypeLand      PropertyType = "land"
	TypeOffice    PropertyType = "office"
)

// Intent is the listing or demand transaction intent.
type Intent string

// Intents. A demand with IntentBuy is matched against sale listings,
// IntentRent against rent listings.
const (
	IntentSale Intent = "sale"
	IntentRent Intent = "rent"
	IntentBuy  Intent = "buy"
)

// ListingIntent maps a demand intent to the listing intent it targets.
func (i Intent) ListingIntent() Intent {
	if i == IntentBuy {
		return IntentSale
	}
	return i
}

// Property is a listing record. Owned by the listings subsystem; this core
// reads it and maintains its embedding linkage. View counters and other
// non-semantic fields must not influence embedding synchronization.
type Property struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Status      PropertyStatus `gorm:"size:16;index" json:"status"`
	Type        PropertyType   `gorm:"size:24;index" json:"type"`
	Intent      Intent         `gorm:"size:8;index" json:"intent"`
	Price       float64        `json:"price"`
	Bedrooms    int            `json:"bedrooms"`
	Bathrooms   int            `json:"bathrooms"`
	AreaSqm     float64        `gorm:"column:area_sqm" json:"area_sqm"`
	City        string         `gorm:"size:80;index" json:"city"`
	District    string         `gorm:"size:80;index" json:"district"`
	Description string         `gorm:"type:text" json:"description"`
	Features    FeatureList    `gorm:"type:text" json:"features"`
	ViewCount   int64          `json:"view_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName sets the gorm table name.
func (Property) TableName() string { return "properties" }

// IsActive reports whether the property is matchable.
func (p *Property) IsActive() bool { return p.Status == PropertyActive }
