package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FeatureList is a list of amenity/feature tags stored as a JSON text column.
type FeatureList []string

// Value implements driver.Valuer.
func (f FeatureList) Value() (driver.Value, error) {
	if len(f) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *FeatureList) Scan(src any) error {
	if src == nil {
		*f = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported feature list source type %T", src)
	}
	if len(data) == 0 {
		*f = nil
		return nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("unmarshal features: %w", err)
	}
	return nil
}
