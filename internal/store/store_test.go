package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func date(s string) time.Time {
	t, err := time.Parse(domain.DATE_LAYOUT, s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

// buildTestVersion creates a restaurant version of the test entity
func buildTestVersion(key int64, address, effective string, end *time.Time) domain.RestaurantVersion {
	return domain.RestaurantVersion{
		RestaurantKey: key,
		BusinessNK:    "CHICAGO|JOES DINER|123 MAIN STREET",
		Name:          "Joe's Diner",
		Address:       address,
		LocationNK:    "60601|",
		OwnershipID:   "1234",
		EffectiveDate: date(effective),
		EndDate:       end,
		IsCurrent:     end == nil,
		LastSeen:      date(effective),
	}
}

func buildTestRun(runID string) *schema.PipelineRun {
	return &schema.PipelineRun{
		RunID:     runID,
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:    schema.RunStatusRunning,
	}
}

// =============================================================================
// Suite
// =============================================================================

func testKeyMappings(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("allocates consecutive keys per dimension", func(t *testing.T) {
		k1, err := store.GetOrAllocateKey(ctx, domain.DimensionLocation, "60601|")
		require.NoError(t, err)
		k2, err := store.GetOrAllocateKey(ctx, domain.DimensionLocation, "60602|")
		require.NoError(t, err)
		d1, err := store.GetOrAllocateKey(ctx, domain.DimensionDate, "2021-01-10")
		require.NoError(t, err)

		assert.Equal(t, int64(1), k1)
		assert.Equal(t, int64(2), k2)
		assert.Equal(t, int64(1), d1)
	})

	t.Run("returns the existing key on repeat", func(t *testing.T) {
		first, err := store.GetOrAllocateKey(ctx, domain.DimensionViolation, "chicago|3|critical")
		require.NoError(t, err)
		again, err := store.GetOrAllocateKey(ctx, domain.DimensionViolation, "chicago|3|critical")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	})

	t.Run("lookup does not allocate", func(t *testing.T) {
		_, found, err := store.LookupKey(ctx, domain.DimensionRestaurant, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		key, err := store.GetOrAllocateKey(ctx, domain.DimensionRestaurant, "present")
		require.NoError(t, err)

		got, found, err := store.LookupKey(ctx, domain.DimensionRestaurant, "present")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, key, got)

		_, found, err = store.LookupKey(ctx, domain.DimensionRestaurant, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func testRestaurantHistory(t *testing.T, store Store) {
	ctx := context.Background()
	nk := "CHICAGO|JOES DINER|123 MAIN STREET"

	// New entity
	v1 := buildTestVersion(10, "123 Main St", "2021-01-10", nil)
	require.NoError(t, store.SaveRestaurantHistory(ctx, nk, 0, []domain.RestaurantVersion{v1}))

	history, err := store.LoadRestaurantHistory(ctx, nk)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, v1, history[0])

	// Stale plan
	err = store.SaveRestaurantHistory(ctx, nk, 0, []domain.RestaurantVersion{v1})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// Close v1, open v2
	closed := buildTestVersion(10, "123 Main St", "2021-01-10", datePtr("2022-02-28"))
	v2 := buildTestVersion(11, "125 Main St", "2022-03-01", nil)
	require.NoError(t, store.SaveRestaurantHistory(ctx, nk, 10, []domain.RestaurantVersion{v2, closed}))

	history, err = store.LoadRestaurantHistory(ctx, nk)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, closed, history[0])
	assert.Equal(t, v2, history[1])
	assert.False(t, history[0].IsCurrent)
	assert.True(t, history[1].IsCurrent)

	// Versions are never dropped
	err = store.SaveRestaurantHistory(ctx, nk, 11, []domain.RestaurantVersion{v2})
	var integrity *domain.IntegrityViolation
	assert.ErrorAs(t, err, &integrity)

	// Unknown entity has no history
	history, err = store.LoadRestaurantHistory(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, history)

	other := domain.RestaurantVersion{
		RestaurantKey: 5, BusinessNK: "SF|CAFE|1 MARKET STREET", Name: "Cafe", Address: "1 Market St",
		EffectiveDate: date("2020-06-01"), IsCurrent: true,
	}
	require.NoError(t, store.SaveRestaurantHistory(ctx, other.BusinessNK, 0, []domain.RestaurantVersion{other}))

	all, err := store.ListRestaurantVersions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{5, 10, 11}, []int64{all[0].RestaurantKey, all[1].RestaurantKey, all[2].RestaurantKey})
}

func testRestaurantAliases(t *testing.T, store Store) {
	ctx := context.Background()

	bound, err := store.LookupAliases(ctx, []string{"anchor:chicago|1234"})
	require.NoError(t, err)
	assert.Empty(t, bound)

	require.NoError(t, store.BindAliases(ctx, map[string]string{
		"anchor:chicago|1234":                   "CHICAGO|JOES DINER|123 MAIN STREET",
		"nk:CHICAGO|JOES DINER|123 MAIN STREET": "CHICAGO|JOES DINER|123 MAIN STREET",
	}))

	// Rebinding to the same entity is a no-op
	require.NoError(t, store.BindAliases(ctx, map[string]string{
		"anchor:chicago|1234":                   "CHICAGO|JOES DINER|123 MAIN STREET",
		"nk:CHICAGO|JOES DINER|125 MAIN STREET": "CHICAGO|JOES DINER|123 MAIN STREET",
	}))

	// Rebinding to another entity is refused
	err = store.BindAliases(ctx, map[string]string{"anchor:chicago|1234": "CHICAGO|OTHER|1 ELM STREET"})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	bound, err = store.LookupAliases(ctx, []string{"anchor:chicago|1234", "nk:CHICAGO|JOES DINER|125 MAIN STREET", "anchor:nyc|1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"anchor:chicago|1234":                   "CHICAGO|JOES DINER|123 MAIN STREET",
		"nk:CHICAGO|JOES DINER|125 MAIN STREET": "CHICAGO|JOES DINER|123 MAIN STREET",
	}, bound)
}

func testSaveWarehouse(t *testing.T, store Store) {
	ctx := context.Background()

	v := buildTestVersion(1, "123 Main St", "2021-01-10", nil)
	require.NoError(t, store.SaveRestaurantHistory(ctx, v.BusinessNK, 0, []domain.RestaurantVersion{v}))

	lat, lon := 41.88, -87.62
	w := &domain.Warehouse{
		Restaurants: []domain.RestaurantVersion{v},
		Locations:   []domain.LocationDim{{LocationKey: 1, LocationNK: "60601|41.8800,-87.6200", Zip: "60601", Latitude: &lat, Longitude: &lon}},
		Dates:       []domain.DateDim{domain.NewDateDim(1, date("2021-01-10"))},
		Violations:  []domain.ViolationDim{{ViolationKey: 1, ViolationNK: "chicago|3|critical", SourceCity: domain.SourceCityChicago, Code: "3", Severity: domain.SeverityCritical}},
		Inspections: []domain.FactInspection{{
			InspectionKey: 1, SourceCity: domain.SourceCityChicago, SourceInspectionID: "100",
			RestaurantKey: 1, LocationKey: 1, DateKey: 1, InspectionDate: date("2021-01-10"),
			ResultCode: domain.ResultFail, ViolationCount: 1,
		}},
		InspectionViols: []domain.FactInspectionViolation{{InspectionKey: 1, ViolationKey: 1, Ordinal: 0, Comment: "no certificate"}},
	}

	require.NoError(t, store.SaveWarehouse(ctx, w))
	// Saving the same snapshot again is an upsert
	require.NoError(t, store.SaveWarehouse(ctx, w))
	require.NoError(t, store.SaveWarehouse(ctx, &domain.Warehouse{}))
}

func testWarehouseAccumulatesAcrossSaves(t *testing.T, store Store) {
	ctx := context.Background()

	v := buildTestVersion(1, "123 Main St", "2021-01-10", nil)
	v.EntityKey = 9
	v.LastSeen = date("2021-09-01")
	require.NoError(t, store.SaveRestaurantHistory(ctx, v.BusinessNK, 0, []domain.RestaurantVersion{v}))

	history, err := store.LoadRestaurantHistory(ctx, v.BusinessNK)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(9), history[0].EntityKey)
	assert.Equal(t, date("2021-09-01"), history[0].LastSeen)

	fact := func(key int64, inspected string, result domain.ResultCode) domain.FactInspection {
		return domain.FactInspection{
			InspectionKey: key, SourceCity: domain.SourceCityChicago, SourceInspectionID: fmt.Sprint(100 + key),
			RestaurantKey: 1, LocationKey: 1, DateKey: key, InspectionDate: date(inspected),
			ResultCode: result,
		}
	}
	snapshot := func(dateKey int64, inspected string, f domain.FactInspection) *domain.Warehouse {
		return &domain.Warehouse{
			Restaurants: []domain.RestaurantVersion{v},
			Locations:   []domain.LocationDim{{LocationKey: 1, LocationNK: "60601|", Zip: "60601"}},
			Dates:       []domain.DateDim{domain.NewDateDim(dateKey, date(inspected))},
			Inspections: []domain.FactInspection{f},
		}
	}

	// Two runs each save only their own inspections
	require.NoError(t, store.SaveWarehouse(ctx, snapshot(1, "2021-01-10", fact(1, "2021-01-10", domain.ResultPass))))
	require.NoError(t, store.SaveWarehouse(ctx, snapshot(2, "2021-09-01", fact(2, "2021-09-01", domain.ResultPass))))

	facts, err := store.ListInspectionFacts(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, int64(1), facts[0].InspectionKey)
	assert.Equal(t, date("2021-01-10"), facts[0].InspectionDate)
	assert.Equal(t, int64(2), facts[1].InspectionKey)

	// A re-saved inspection replaces its row
	require.NoError(t, store.SaveWarehouse(ctx, snapshot(1, "2021-01-10", fact(1, "2021-01-10", domain.ResultFail))))
	facts, err = store.ListInspectionFacts(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, domain.ResultFail, facts[0].ResultCode)

	none, err := store.ListInspectionFacts(ctx, []int64{2})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testRunsAndRejections(t *testing.T, store Store) {
	ctx := context.Background()

	run, err := store.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, run)

	r := buildTestRun("6f1c7d9e-3f0b-4d8a-9a51-2f6c1d0e7b11")
	require.NoError(t, store.SaveRun(ctx, r))

	finished := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	r.FinishedAt = &finished
	r.Status = schema.RunStatusSucceeded
	r.Inspections = 42
	r.ValidationPassed = true
	r.Digest = "abc"
	r.Report = datatypes.JSON(`{"checks":[]}`)
	require.NoError(t, store.SaveRun(ctx, r))

	got, err := store.GetRun(ctx, r.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schema.RunStatusSucceeded, got.Status)
	assert.Equal(t, 42, got.Inspections)
	assert.True(t, got.ValidationPassed)
	assert.Equal(t, "abc", got.Digest)

	payload, err := json.Marshal(map[string]any{"inspection_id": "1"})
	require.NoError(t, err)
	records := []schema.RejectedRecord{
		{ID: "01HX0000000000000000000002", RunID: r.RunID, Stage: "clean", ErrorKind: domain.ErrorKindParse, NaturalKey: "chicago|2", Message: "bad date", Payload: payload},
		{ID: "01HX0000000000000000000001", RunID: r.RunID, Stage: "unify", ErrorKind: domain.ErrorKindSchema, NaturalKey: "chicago|1", Message: "unknown code", Payload: payload},
	}
	require.NoError(t, store.SaveRejections(ctx, records))
	require.NoError(t, store.SaveRejections(ctx, nil))

	saved, err := store.GetRejections(ctx, r.RunID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "01HX0000000000000000000001", saved[0].ID)
	assert.Equal(t, "unify", saved[0].Stage)

	none, err := store.GetRejections(ctx, "other-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// RunStoreTests runs the store suite against a Store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"KeyMappings", testKeyMappings},
		{"RestaurantHistory", testRestaurantHistory},
		{"RestaurantAliases", testRestaurantAliases},
		{"SaveWarehouse", testSaveWarehouse},
		{"WarehouseAccumulatesAcrossSaves", testWarehouseAccumulatesAcrossSaves},
		{"RunsAndRejections", testRunsAndRejections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
