package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceCity identifies the city a raw inspection record was captured from
type SourceCity string

const (
	SourceCityChicago      SourceCity = "chicago"
	SourceCityNewYork      SourceCity = "nyc"
	SourceCitySanFrancisco SourceCity = "sf"
)

// IsValidSourceCity checks if a source city is supported
func IsValidSourceCity(city SourceCity) bool {
	return city == SourceCityChicago ||
		city == SourceCityNewYork ||
		city == SourceCitySanFrancisco
}

// ResultCode is the canonical inspection outcome
type ResultCode string

const (
	ResultPass               ResultCode = "pass"
	ResultPassWithConditions ResultCode = "pass_with_conditions"
	ResultFail               ResultCode = "fail"
	ResultNoEntry            ResultCode = "no_entry"
	ResultClosed             ResultCode = "closed"
	ResultNotReady           ResultCode = "not_ready"
)

// Severity is the canonical violation severity
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityMinor    Severity = "minor"
)

// Dimension names a surrogate key space in the key mapping store
type Dimension string

const (
	DimensionLocation          Dimension = "location"
	DimensionDate              Dimension = "date"
	DimensionViolation         Dimension = "violation"
	DimensionRestaurant        Dimension = "restaurant"
	DimensionRestaurantVersion Dimension = "restaurant_version"
	DimensionInspection        Dimension = "inspection"
)

// RawRecord is a single source record as captured by the ingestion layer.
// Field names and value vocabularies are source specific.
type RawRecord struct {
	Fields map[string]any `json:"fields"`
}

// RawBatch is an ordered collection of raw records from one source city
type RawBatch struct {
	SourceCity    SourceCity  `json:"source_city"`
	DeclaredCount int         `json:"declared_count"`
	Records       []RawRecord `json:"records"`
}

// ViolationCitation is a single violation cited during an inspection
type ViolationCitation struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Comment     string   `json:"comment,omitempty"`
}

// InspectionRecord is an inspection event in the canonical schema
type InspectionRecord struct {
	SourceCity         SourceCity          `json:"source_city"`
	SourceInspectionID string              `json:"source_inspection_id"`
	BusinessName       string              `json:"business_name"`
	Address            string              `json:"address"`
	City               string              `json:"city"`
	Zip                string              `json:"zip"`
	Latitude           *float64            `json:"latitude,omitempty"`
	Longitude          *float64            `json:"longitude,omitempty"`
	RawInspectionDate  string              `json:"raw_inspection_date"`
	InspectionDate     time.Time           `json:"inspection_date"`
	ResultCode         ResultCode          `json:"result_code"`
	FacilityType       string              `json:"facility_type"`
	InspectorID        string              `json:"inspector_id"`
	OwnershipID        string              `json:"ownership_id"`
	Violations         []ViolationCitation `json:"violations"`
}

// NaturalKey returns the (source_city, source_inspection_id) natural key
func (r InspectionRecord) NaturalKey() string {
	return string(r.SourceCity) + NK_SEPARATOR + r.SourceInspectionID
}

// BusinessNK derives the restaurant natural key of the record
func (r InspectionRecord) BusinessNK() string {
	return NewBusinessNK(r.BusinessName, r.Address, r.City)
}

// LocationNK derives the location natural key of the record
func (r InspectionRecord) LocationNK() string {
	return NewLocationNK(r.Zip, r.Latitude, r.Longitude)
}

// RestaurantAttributes are the tracked attributes of a restaurant version.
// Any change to one of them opens a new version.
type RestaurantAttributes struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	LocationNK  string `json:"location_nk"`
	OwnershipID string `json:"ownership_id"`
}

// Equal reports whether two attribute sets describe the same restaurant state.
// Name and address compare in canonical form; the raw values are kept for display only.
func (a RestaurantAttributes) Equal(b RestaurantAttributes) bool {
	return CanonicalName(a.Name) == CanonicalName(b.Name) &&
		CanonicalAddress(a.Address) == CanonicalAddress(b.Address) &&
		a.LocationNK == b.LocationNK &&
		strings.TrimSpace(a.OwnershipID) == strings.TrimSpace(b.OwnershipID)
}

// Attributes returns the tracked restaurant attributes carried by the record
func (r InspectionRecord) Attributes() RestaurantAttributes {
	return RestaurantAttributes{
		Name:        r.BusinessName,
		Address:     r.Address,
		LocationNK:  r.LocationNK(),
		OwnershipID: r.OwnershipID,
	}
}

// RestaurantVersion is one row of the type-2 restaurant dimension
type RestaurantVersion struct {
	RestaurantKey int64 `json:"restaurant_key"`
	// EntityKey is the surrogate key of the restaurant entity, shared by all of its versions
	EntityKey     int64      `json:"entity_key"`
	BusinessNK    string     `json:"business_nk"`
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	LocationNK    string     `json:"location_nk"`
	OwnershipID   string     `json:"ownership_id"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date"` // nil means open-ended
	IsCurrent     bool       `json:"is_current"`
	// LastSeen is the latest inspection date observed under this version's attributes
	LastSeen time.Time `json:"last_seen"`
}

// Attributes returns the tracked attributes of the version
func (v RestaurantVersion) Attributes() RestaurantAttributes {
	return RestaurantAttributes{
		Name:        v.Name,
		Address:     v.Address,
		LocationNK:  v.LocationNK,
		OwnershipID: v.OwnershipID,
	}
}

// Contains reports whether date falls inside [EffectiveDate, EndDate]
func (v RestaurantVersion) Contains(date time.Time) bool {
	if date.Before(v.EffectiveDate) {
		return false
	}
	return v.EndDate == nil || !date.After(*v.EndDate)
}

// VersionNK is the natural key used to allocate the version's surrogate key
func (v RestaurantVersion) VersionNK() string {
	return v.BusinessNK + VERSION_NK_SEPARATOR + v.EffectiveDate.Format(DATE_LAYOUT)
}

// String returns a short human readable form used in reports
func (v RestaurantVersion) String() string {
	end := "open"
	if v.EndDate != nil {
		end = v.EndDate.Format(DATE_LAYOUT)
	}
	return fmt.Sprintf("%s[%d] %s..%s", v.BusinessNK, v.RestaurantKey, v.EffectiveDate.Format(DATE_LAYOUT), end)
}

// LocationDim is a row of the location dimension
type LocationDim struct {
	LocationKey int64    `json:"location_key"`
	LocationNK  string   `json:"location_nk"`
	Zip         string   `json:"zip"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// DateDim is a row of the calendar date dimension
type DateDim struct {
	DateKey   int64     `json:"date_key"`
	Date      time.Time `json:"date"`
	Year      int       `json:"year"`
	Quarter   int       `json:"quarter"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	DayOfWeek string    `json:"day_of_week"`
	IsWeekend bool      `json:"is_weekend"`
}

// NewDateDim derives calendar attributes for a date
func NewDateDim(key int64, date time.Time) DateDim {
	weekday := date.Weekday()
	return DateDim{
		DateKey:   key,
		Date:      date,
		Year:      date.Year(),
		Quarter:   (int(date.Month())-1)/3 + 1,
		Month:     int(date.Month()),
		Day:       date.Day(),
		DayOfWeek: weekday.String(),
		IsWeekend: weekday == time.Saturday || weekday == time.Sunday,
	}
}

// ViolationDim is a row of the violation dimension
type ViolationDim struct {
	ViolationKey int64      `json:"violation_key"`
	ViolationNK  string     `json:"violation_nk"`
	SourceCity   SourceCity `json:"source_city"`
	Code         string     `json:"code"`
	Description  string     `json:"description"`
	Severity     Severity   `json:"severity"`
}

// NewViolationNK builds the violation natural key from its source code and severity
func NewViolationNK(city SourceCity, code string, severity Severity) string {
	return strings.Join([]string{string(city), strings.ToUpper(code), string(severity)}, NK_SEPARATOR)
}

// FactInspection is one row per inspection event
type FactInspection struct {
	InspectionKey      int64      `json:"inspection_key"`
	SourceCity         SourceCity `json:"source_city"`
	SourceInspectionID string     `json:"source_inspection_id"`
	RestaurantKey      int64      `json:"restaurant_key"`
	LocationKey        int64      `json:"location_key"`
	DateKey            int64      `json:"date_key"`
	InspectionDate     time.Time  `json:"inspection_date"`
	ResultCode         ResultCode `json:"result_code"`
	FacilityType       string     `json:"facility_type"`
	InspectorID        string     `json:"inspector_id"`
	ViolationCount     int        `json:"violation_count"`
}

// NaturalKey returns the (source_city, source_inspection_id) natural key
func (f FactInspection) NaturalKey() string {
	return string(f.SourceCity) + NK_SEPARATOR + f.SourceInspectionID
}

// FactInspectionViolation is one row per (inspection, violation citation)
type FactInspectionViolation struct {
	InspectionKey int64  `json:"inspection_key"`
	ViolationKey  int64  `json:"violation_key"`
	Ordinal       int    `json:"ordinal"`
	Comment       string `json:"comment"`
}

// Rejection records a record or entity excluded from the warehouse and why
type Rejection struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	NaturalKey string `json:"natural_key"`
	Message    string `json:"message"`
	Payload    any    `json:"payload,omitempty"`
}

// NewRejection builds a rejection from an error, classifying it by error kind
func NewRejection(stage string, naturalKey string, err error, payload any) Rejection {
	return Rejection{
		Stage:      stage,
		Kind:       ErrorKind(err),
		NaturalKey: naturalKey,
		Message:    err.Error(),
		Payload:    payload,
	}
}

// CalendarDate truncates t to midnight UTC of its calendar day
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBefore returns the calendar day before t
func DayBefore(t time.Time) time.Time {
	return CalendarDate(t).AddDate(0, 0, -1)
}
