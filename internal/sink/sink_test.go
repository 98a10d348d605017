package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

func TestTables_FlattensEveryTable(t *testing.T) {
	end := time.Date(2022, 2, 28, 0, 0, 0, 0, time.UTC)
	lat := 41.88
	w := &domain.Warehouse{
		Restaurants: []domain.RestaurantVersion{
			{RestaurantKey: 1, EntityKey: 5, BusinessNK: "a", EffectiveDate: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC), EndDate: &end},
			{RestaurantKey: 2, EntityKey: 5, BusinessNK: "a", EffectiveDate: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), IsCurrent: true},
		},
		Locations:       []domain.LocationDim{{LocationKey: 1, LocationNK: "60601|", Zip: "60601", Latitude: &lat}},
		Dates:           []domain.DateDim{domain.NewDateDim(1, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))},
		Inspections:     []domain.FactInspection{{InspectionKey: 1, SourceCity: domain.SourceCityChicago, ViolationCount: 1}},
		InspectionViols: []domain.FactInspectionViolation{{InspectionKey: 1, ViolationKey: 4, Ordinal: 1}},
	}

	tables := Tables(w)
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Columns), table.Name)
		}
	}
	assert.Equal(t, []string{
		"dim_restaurant", "dim_location", "dim_date", "dim_violation", "fact_inspection", "fact_inspection_violation",
	}, names)

	restaurants := tables[0]
	require.Len(t, restaurants.Rows, 2)
	assert.Equal(t, end, restaurants.Rows[0][7])
	assert.Nil(t, restaurants.Rows[1][7])
	assert.Equal(t, true, restaurants.Rows[1][8])
	assert.Equal(t, int64(5), restaurants.Rows[1][9])

	assert.Empty(t, tables[3].Rows)
	assert.Equal(t, []any{int64(1), int32(1), int64(4), ""}, tables[5].Rows[0])
}

func TestCreateTableSQL(t *testing.T) {
	table := Table{
		Name:    "fact_inspection_violation",
		Columns: []Column{{"inspection_key", "Int64"}, {"ordinal", "Int32"}},
		OrderBy: []string{"inspection_key", "ordinal"},
	}

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `inspections`.`fact_inspection_violation` (\n\t`inspection_key` Int64,\n\t`ordinal` Int32\n) ENGINE = ReplacingMergeTree\nORDER BY (inspection_key, ordinal)",
		CreateTableSQL("inspections", table))
	assert.Equal(t,
		"INSERT INTO `inspections`.`fact_inspection_violation` (inspection_key, ordinal)",
		InsertSQL("inspections", table))
}
