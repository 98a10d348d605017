package schema

import (
	"time"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// DimLocation represents the dim_location table
type DimLocation struct {
	LocationKey int64    `gorm:"column:location_key;primaryKey"`
	LocationNK  string   `gorm:"column:location_nk;not null;type:text;uniqueIndex"`
	Zip         string   `gorm:"column:zip;not null;type:varchar(10)"`
	Latitude    *float64 `gorm:"column:latitude"`
	Longitude   *float64 `gorm:"column:longitude"`
}

// TableName specifies the table name for the DimLocation model
func (DimLocation) TableName() string {
	return "dim_location"
}

// DimDate represents the dim_date table
type DimDate struct {
	DateKey   int64     `gorm:"column:date_key;primaryKey"`
	Date      time.Time `gorm:"column:date;not null;type:date;uniqueIndex"`
	Year      int       `gorm:"column:year;not null"`
	Quarter   int       `gorm:"column:quarter;not null"`
	Month     int       `gorm:"column:month;not null"`
	Day       int       `gorm:"column:day;not null"`
	DayOfWeek string    `gorm:"column:day_of_week;not null;type:varchar(9)"`
	IsWeekend bool      `gorm:"column:is_weekend;not null"`
}

// TableName specifies the table name for the DimDate model
func (DimDate) TableName() string {
	return "dim_date"
}

// DimViolation represents the dim_violation table
type DimViolation struct {
	ViolationKey int64  `gorm:"column:violation_key;primaryKey"`
	ViolationNK  string `gorm:"column:violation_nk;not null;type:text;uniqueIndex"`
	SourceCity   string `gorm:"column:source_city;not null;type:varchar(16)"`
	Code         string `gorm:"column:code;not null;type:varchar(32)"`
	Description  string `gorm:"column:description;not null;type:text"`
	Severity     string `gorm:"column:severity;not null;type:varchar(16)"`
}

// TableName specifies the table name for the DimViolation model
func (DimViolation) TableName() string {
	return "dim_violation"
}

// FactInspection represents the fact_inspection table - one row per inspection event
type FactInspection struct {
	InspectionKey      int64     `gorm:"column:inspection_key;primaryKey"`
	SourceCity         string    `gorm:"column:source_city;not null;type:varchar(16)"`
	SourceInspectionID string    `gorm:"column:source_inspection_id;not null;type:text"`
	RestaurantKey      int64     `gorm:"column:restaurant_key;not null"`
	LocationKey        int64     `gorm:"column:location_key;not null"`
	DateKey            int64     `gorm:"column:date_key;not null"`
	InspectionDate     time.Time `gorm:"column:inspection_date;not null;type:date"`
	ResultCode         string    `gorm:"column:result_code;not null;type:varchar(32)"`
	FacilityType       string    `gorm:"column:facility_type;not null;type:text"`
	InspectorID        string    `gorm:"column:inspector_id;not null;type:text"`
	ViolationCount     int       `gorm:"column:violation_count;not null"`
}

// TableName specifies the table name for the FactInspection model
func (FactInspection) TableName() string {
	return "fact_inspection"
}

// FactInspectionViolation represents the fact_inspection_violation table
type FactInspectionViolation struct {
	InspectionKey int64  `gorm:"column:inspection_key;primaryKey"`
	Ordinal       int    `gorm:"column:ordinal;primaryKey"`
	ViolationKey  int64  `gorm:"column:violation_key;not null"`
	Comment       string `gorm:"column:comment;not null;type:text"`
}

// TableName specifies the table name for the FactInspectionViolation model
func (FactInspectionViolation) TableName() string {
	return "fact_inspection_violation"
}

// NewDimLocation converts a domain location row
func NewDimLocation(l domain.LocationDim) DimLocation {
	return DimLocation{
		LocationKey: l.LocationKey,
		LocationNK:  l.LocationNK,
		Zip:         l.Zip,
		Latitude:    l.Latitude,
		Longitude:   l.Longitude,
	}
}

// NewDimDate converts a domain date row
func NewDimDate(d domain.DateDim) DimDate {
	return DimDate{
		DateKey:   d.DateKey,
		Date:      d.Date,
		Year:      d.Year,
		Quarter:   d.Quarter,
		Month:     d.Month,
		Day:       d.Day,
		DayOfWeek: d.DayOfWeek,
		IsWeekend: d.IsWeekend,
	}
}

// NewDimViolation converts a domain violation row
func NewDimViolation(v domain.ViolationDim) DimViolation {
	return DimViolation{
		ViolationKey: v.ViolationKey,
		ViolationNK:  v.ViolationNK,
		SourceCity:   string(v.SourceCity),
		Code:         v.Code,
		Description:  v.Description,
		Severity:     string(v.Severity),
	}
}

// NewFactInspection converts a domain inspection fact
func NewFactInspection(f domain.FactInspection) FactInspection {
	return FactInspection{
		InspectionKey:      f.InspectionKey,
		SourceCity:         string(f.SourceCity),
		SourceInspectionID: f.SourceInspectionID,
		RestaurantKey:      f.RestaurantKey,
		LocationKey:        f.LocationKey,
		DateKey:            f.DateKey,
		InspectionDate:     f.InspectionDate,
		ResultCode:         string(f.ResultCode),
		FacilityType:       f.FacilityType,
		InspectorID:        f.InspectorID,
		ViolationCount:     f.ViolationCount,
	}
}

// NewFactInspectionViolation converts a domain violation fact
func NewFactInspectionViolation(f domain.FactInspectionViolation) FactInspectionViolation {
	return FactInspectionViolation{
		InspectionKey: f.InspectionKey,
		Ordinal:       f.Ordinal,
		ViolationKey:  f.ViolationKey,
		Comment:       f.Comment,
	}
}

// ToDomain converts the row into a domain inspection fact
func (f FactInspection) ToDomain() domain.FactInspection {
	return domain.FactInspection{
		InspectionKey:      f.InspectionKey,
		SourceCity:         domain.SourceCity(f.SourceCity),
		SourceInspectionID: f.SourceInspectionID,
		RestaurantKey:      f.RestaurantKey,
		LocationKey:        f.LocationKey,
		DateKey:            f.DateKey,
		InspectionDate:     domain.CalendarDate(f.InspectionDate),
		ResultCode:         domain.ResultCode(f.ResultCode),
		FacilityType:       f.FacilityType,
		InspectorID:        f.InspectorID,
		ViolationCount:     f.ViolationCount,
	}
}
