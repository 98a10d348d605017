package schema

import (
	"time"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// RestaurantVersion represents the restaurant_versions table - the persisted type-2 history.
// The versions of one business_nk partition time without gaps or overlaps and at most one
// of them is current.
type RestaurantVersion struct {
	// RestaurantKey is the surrogate key of this version
	RestaurantKey int64 `gorm:"column:restaurant_key;primaryKey"`
	// EntityKey is the surrogate key of the restaurant entity, shared by all its versions
	EntityKey int64 `gorm:"column:entity_key;not null;default:0"`
	// BusinessNK is the natural key of the restaurant entity
	BusinessNK  string `gorm:"column:business_nk;not null;type:text;index"`
	Name        string `gorm:"column:name;not null;type:text"`
	Address     string `gorm:"column:address;not null;type:text"`
	LocationNK  string `gorm:"column:location_nk;not null;type:text"`
	OwnershipID string `gorm:"column:ownership_id;not null;type:text"`
	// EffectiveDate is the first day the version is valid
	EffectiveDate time.Time `gorm:"column:effective_date;not null;type:date"`
	// EndDate is the last day the version is valid, NULL while open
	EndDate   *time.Time `gorm:"column:end_date;type:date"`
	IsCurrent bool       `gorm:"column:is_current;not null"`
	// LastSeenDate is the latest inspection date observed under the version
	LastSeenDate time.Time `gorm:"column:last_seen_date;not null;type:date"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RestaurantVersion model
func (RestaurantVersion) TableName() string {
	return "restaurant_versions"
}

// NewRestaurantVersion converts a domain version into its row
func NewRestaurantVersion(v domain.RestaurantVersion) RestaurantVersion {
	row := RestaurantVersion{
		RestaurantKey: v.RestaurantKey,
		EntityKey:     v.EntityKey,
		BusinessNK:    v.BusinessNK,
		Name:          v.Name,
		Address:       v.Address,
		LocationNK:    v.LocationNK,
		OwnershipID:   v.OwnershipID,
		EffectiveDate: v.EffectiveDate,
		IsCurrent:     v.IsCurrent,
		LastSeenDate:  v.LastSeen,
	}
	if row.LastSeenDate.IsZero() {
		row.LastSeenDate = v.EffectiveDate
	}
	if v.EndDate != nil {
		end := *v.EndDate
		row.EndDate = &end
	}
	return row
}

// ToDomain converts the row into a domain version with UTC calendar dates
func (r RestaurantVersion) ToDomain() domain.RestaurantVersion {
	v := domain.RestaurantVersion{
		RestaurantKey: r.RestaurantKey,
		EntityKey:     r.EntityKey,
		BusinessNK:    r.BusinessNK,
		Name:          r.Name,
		Address:       r.Address,
		LocationNK:    r.LocationNK,
		OwnershipID:   r.OwnershipID,
		EffectiveDate: domain.CalendarDate(r.EffectiveDate),
		IsCurrent:     r.IsCurrent,
		LastSeen:      domain.CalendarDate(r.LastSeenDate),
	}
	if r.EndDate != nil {
		end := domain.CalendarDate(*r.EndDate)
		v.EndDate = &end
	}
	return v
}
