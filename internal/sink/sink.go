package sink

import (
	"context"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// Sink publishes a finished warehouse snapshot to a downstream store
type Sink interface {
	// Export writes every table of the snapshot. Rows are keyed by surrogate
	// key so exporting the same snapshot twice is harmless.
	Export(ctx context.Context, w *domain.Warehouse) error
	Close() error
}

// Table is one warehouse table flattened for export
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
	// OrderBy lists the key columns of the table
	OrderBy []string
}

// Column is a column name and its ClickHouse type
type Column struct {
	Name string
	Type string
}

func nullableEndDate(v *domain.RestaurantVersion) any {
	if v.EndDate == nil {
		return nil
	}
	return *v.EndDate
}

// Tables flattens a warehouse snapshot into export tables in dependency order
func Tables(w *domain.Warehouse) []Table {
	restaurants := Table{
		Name: "dim_restaurant",
		Columns: []Column{
			{"restaurant_key", "Int64"},
			{"business_nk", "String"},
			{"name", "String"},
			{"address", "String"},
			{"location_nk", "String"},
			{"ownership_id", "String"},
			{"effective_date", "Date32"},
			{"end_date", "Nullable(Date32)"},
			{"is_current", "Bool"},
			{"entity_key", "Int64"},
		},
		OrderBy: []string{"restaurant_key"},
	}
	for i := range w.Restaurants {
		r := &w.Restaurants[i]
		restaurants.Rows = append(restaurants.Rows, []any{
			r.RestaurantKey, r.BusinessNK, r.Name, r.Address, r.LocationNK, r.OwnershipID,
			r.EffectiveDate, nullableEndDate(r), r.IsCurrent, r.EntityKey,
		})
	}

	locations := Table{
		Name: "dim_location",
		Columns: []Column{
			{"location_key", "Int64"},
			{"location_nk", "String"},
			{"zip", "String"},
			{"latitude", "Nullable(Float64)"},
			{"longitude", "Nullable(Float64)"},
		},
		OrderBy: []string{"location_key"},
	}
	for _, l := range w.Locations {
		locations.Rows = append(locations.Rows, []any{l.LocationKey, l.LocationNK, l.Zip, l.Latitude, l.Longitude})
	}

	dates := Table{
		Name: "dim_date",
		Columns: []Column{
			{"date_key", "Int64"},
			{"date", "Date32"},
			{"year", "Int32"},
			{"quarter", "Int32"},
			{"month", "Int32"},
			{"day", "Int32"},
			{"day_of_week", "String"},
			{"is_weekend", "Bool"},
		},
		OrderBy: []string{"date_key"},
	}
	for _, d := range w.Dates {
		dates.Rows = append(dates.Rows, []any{
			d.DateKey, d.Date, int32(d.Year), int32(d.Quarter), int32(d.Month), int32(d.Day), d.DayOfWeek, d.IsWeekend,
		})
	}

	violations := Table{
		Name: "dim_violation",
		Columns: []Column{
			{"violation_key", "Int64"},
			{"violation_nk", "String"},
			{"source_city", "String"},
			{"code", "String"},
			{"description", "String"},
			{"severity", "String"},
		},
		OrderBy: []string{"violation_key"},
	}
	for _, v := range w.Violations {
		violations.Rows = append(violations.Rows, []any{
			v.ViolationKey, v.ViolationNK, string(v.SourceCity), v.Code, v.Description, string(v.Severity),
		})
	}

	inspections := Table{
		Name: "fact_inspection",
		Columns: []Column{
			{"inspection_key", "Int64"},
			{"source_city", "String"},
			{"source_inspection_id", "String"},
			{"restaurant_key", "Int64"},
			{"location_key", "Int64"},
			{"date_key", "Int64"},
			{"inspection_date", "Date32"},
			{"result_code", "String"},
			{"facility_type", "String"},
			{"inspector_id", "String"},
			{"violation_count", "Int32"},
		},
		OrderBy: []string{"inspection_key"},
	}
	for _, f := range w.Inspections {
		inspections.Rows = append(inspections.Rows, []any{
			f.InspectionKey, string(f.SourceCity), f.SourceInspectionID, f.RestaurantKey, f.LocationKey, f.DateKey,
			f.InspectionDate, string(f.ResultCode), f.FacilityType, f.InspectorID, int32(f.ViolationCount),
		})
	}

	citations := Table{
		Name: "fact_inspection_violation",
		Columns: []Column{
			{"inspection_key", "Int64"},
			{"ordinal", "Int32"},
			{"violation_key", "Int64"},
			{"comment", "String"},
		},
		OrderBy: []string{"inspection_key", "ordinal"},
	}
	for _, c := range w.InspectionViols {
		citations.Rows = append(citations.Rows, []any{c.InspectionKey, int32(c.Ordinal), c.ViolationKey, c.Comment})
	}

	return []Table{restaurants, locations, dates, violations, inspections, citations}
}
