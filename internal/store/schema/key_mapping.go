package schema

import "time"

// KeyMapping represents the key_mappings table - the natural key to surrogate key registry.
// A mapping is never changed or removed once written.
type KeyMapping struct {
	// DimensionName is the dimension the key belongs to (location, date, violation, restaurant, ...)
	DimensionName string `gorm:"column:dimension_name;primaryKey;type:varchar(32)"`
	// NaturalKey is the business identity of the row
	NaturalKey string `gorm:"column:natural_key;primaryKey;type:text"`
	// SurrogateKey is the integer key allocated for the natural key, unique per dimension
	SurrogateKey int64 `gorm:"column:surrogate_key;not null"`
	// CreatedAt is when the key was allocated
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the KeyMapping model
func (KeyMapping) TableName() string {
	return "key_mappings"
}
