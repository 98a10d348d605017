package schema

import "time"

// RestaurantAlias represents the restaurant_aliases table - identities that link
// sightings to a restaurant entity. An alias is bound once and never rebound.
type RestaurantAlias struct {
	// Alias is a derived natural key ("nk:...") or a source establishment anchor ("anchor:...")
	Alias string `gorm:"column:alias;primaryKey;type:text"`
	// BusinessNK is the natural key of the entity the alias belongs to
	BusinessNK string    `gorm:"column:business_nk;not null;type:text;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RestaurantAlias model
func (RestaurantAlias) TableName() string {
	return "restaurant_aliases"
}
