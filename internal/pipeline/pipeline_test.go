package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/golang/mock/gomock"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-inspection-warehouse/internal/adapter"
	"github.com/feral-file/ff-inspection-warehouse/internal/assemble"
	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/mocks"
	"github.com/feral-file/ff-inspection-warehouse/internal/pipeline"
	"github.com/feral-file/ff-inspection-warehouse/internal/scd"
	"github.com/feral-file/ff-inspection-warehouse/internal/sink"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
	"github.com/feral-file/ff-inspection-warehouse/internal/unify"
)

var testConfig = &config.WarehouseConfig{
	Assembler: config.AssemblerConfig{AllowLazyDimensions: true},
	Validator: config.ValidatorConfig{MaxCriticalNullRate: 0.05},
}

func newPipeline(t *testing.T, s store.Store, out sink.Sink) pipeline.Pipeline {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	clock := adapter.FixedClock{At: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return pipeline.Build(pool, s, testConfig, clock, out)
}

func chicago(id, inspected, address, results, violations string) domain.RawRecord {
	fields := map[string]any{
		"inspection_id":   id,
		"dba_name":        "Restaurant A",
		"address":         address,
		"city":            "CHICAGO",
		"zip":             "60601",
		"inspection_date": inspected + "T00:00:00.000",
		"results":         results,
		"facility_type":   "Restaurant",
		"license_":        "1234",
	}
	if violations != "" {
		fields["violations"] = violations
	}
	return domain.RawRecord{Fields: fields}
}

func batch(records ...domain.RawRecord) domain.RawBatch {
	return domain.RawBatch{SourceCity: domain.SourceCityChicago, DeclaredCount: len(records), Records: records}
}

func date(s string) time.Time {
	t, err := time.Parse(domain.DATE_LAYOUT, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRun_AddressChangeScenario(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	result, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", "33. EQUIPMENT CLEAN - Comments: dusty"),
		chicago("2", "2022-03-01", "2 Y Avenue", "Fail", "3. KNOWLEDGE | 33. EQUIPMENT CLEAN"),
	)})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusSucceeded, result.Status)
	assert.True(t, result.Report.Passed(), result.Report.Failed())
	assert.Empty(t, result.Rejected)

	w := result.Warehouse
	require.Len(t, w.Restaurants, 2)
	v1, v2 := w.Restaurants[0], w.Restaurants[1]
	assert.Equal(t, date("2021-01-10"), v1.EffectiveDate)
	require.NotNil(t, v1.EndDate)
	assert.Equal(t, date("2022-02-28"), *v1.EndDate)
	assert.False(t, v1.IsCurrent)
	assert.Equal(t, date("2022-03-01"), v2.EffectiveDate)
	assert.Nil(t, v2.EndDate)
	assert.True(t, v2.IsCurrent)
	assert.Equal(t, v1.BusinessNK, v2.BusinessNK)

	require.Len(t, w.Inspections, 2)
	assert.Equal(t, v1.RestaurantKey, w.Inspections[0].RestaurantKey)
	assert.Equal(t, v2.RestaurantKey, w.Inspections[1].RestaurantKey)
	assert.Len(t, w.InspectionViols, 3)
	assert.Equal(t, 2, w.Inspections[1].ViolationCount)

	run, err := s.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, schema.RunStatusSucceeded, run.Status)
	assert.Equal(t, result.Digest, run.Digest)
	assert.True(t, run.ValidationPassed)
	assert.Equal(t, 2, run.Inspections)
	assert.NotEmpty(t, run.Report)
}

func TestRun_ReRunIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	input := []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", "33. EQUIPMENT CLEAN"),
		chicago("2", "2022-03-01", "2 Y Avenue", "Fail", "3. KNOWLEDGE"),
		chicago("3", "2022-06-01", "2 Y Avenue", "Pass", ""),
	)}

	s := store.NewMemoryStore()
	first, err := newPipeline(t, s, nil).Run(ctx, input)
	require.NoError(t, err)
	second, err := newPipeline(t, s, nil).Run(ctx, input)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Warehouse, second.Warehouse)
	assert.Equal(t, 3, second.Counters.Outcomes[scd.OutcomeUnchanged])

	versions, err := s.ListRestaurantVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	// Input order does not change keys on a fresh store
	reversed := []domain.RawBatch{batch(input[0].Records[2], input[0].Records[1], input[0].Records[0])}
	third, err := newPipeline(t, store.NewMemoryStore(), nil).Run(ctx, reversed)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, third.Digest)
}

func TestRun_DuplicateKeepsLastSeen(t *testing.T) {
	result, err := newPipeline(t, store.NewMemoryStore(), nil).Run(context.Background(), []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", ""),
		chicago("1", "2021-01-10", "1 X Street", "Fail", ""),
	)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counters.Duplicates)
	require.Len(t, result.Warehouse.Inspections, 1)
	assert.Equal(t, domain.ResultFail, result.Warehouse.Inspections[0].ResultCode)
	assert.True(t, result.Report.Passed())
}

func TestRun_UnknownViolationCodeIsRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	result, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", "99. NOT A CODE"),
		chicago("2", "2021-02-10", "1 X Street", "Pass", "33. EQUIPMENT CLEAN"),
	)})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusSucceeded, result.Status)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, unify.Stage, result.Rejected[0].Stage)
	assert.Equal(t, domain.ErrorKindSchema, result.Rejected[0].Kind)
	assert.Equal(t, "chicago|1", result.Rejected[0].NaturalKey)

	require.Len(t, result.Warehouse.Inspections, 1)
	assert.Equal(t, "2", result.Warehouse.Inspections[0].SourceInspectionID)

	logged, err := s.GetRejections(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Len(t, logged[0].ID, 26)
	assert.Equal(t, domain.ErrorKindSchema, logged[0].ErrorKind)
	assert.NotEmpty(t, logged[0].Payload)
}

func TestRun_InspectionBeforeFirstVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", ""),
	)})
	require.NoError(t, err)

	result, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("0", "2020-06-01", "0 Old Street", "Pass", ""),
	)})
	require.NoError(t, err)

	require.Len(t, result.Reviews, 1)
	assert.Equal(t, scd.ReasonBeforeFirstVersion, result.Reviews[0].Reason)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, assemble.Stage, result.Rejected[0].Stage)
	assert.Equal(t, domain.ErrorKindIntegrity, result.Rejected[0].Kind)
	assert.Empty(t, result.Warehouse.Inspections)

	run, err := s.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ReviewFlags)
	assert.Equal(t, 1, run.RecordsRejected)
}

func TestRun_UnknownSourceCityDoesNotAbort(t *testing.T) {
	result, err := newPipeline(t, store.NewMemoryStore(), nil).Run(context.Background(), []domain.RawBatch{
		{SourceCity: "boston", DeclaredCount: 1, Records: []domain.RawRecord{{Fields: map[string]any{"id": "1"}}}},
		batch(chicago("1", "2021-01-10", "1 X Street", "Pass", "")),
	})
	require.NoError(t, err)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "boston", result.Rejected[0].NaturalKey)
	assert.Len(t, result.Warehouse.Inspections, 1)
	assert.Equal(t, 2, result.Counters.RecordsIn)
}

func TestRun_CancelledIsAborted(t *testing.T) {
	s := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(chicago("1", "2021-01-10", "1 X Street", "Pass", ""))})
	require.ErrorIs(t, err, pipeline.ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	run, err := s.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, schema.RunStatusAborted, run.Status)
	assert.NotNil(t, run.FinishedAt)
}

type recordingSink struct {
	mu       sync.Mutex
	exported []*domain.Warehouse
}

func (s *recordingSink) Export(_ context.Context, w *domain.Warehouse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, w)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestRun_ExportsToSink(t *testing.T) {
	out := &recordingSink{}
	result, err := newPipeline(t, store.NewMemoryStore(), out).Run(context.Background(), []domain.RawBatch{
		batch(chicago("1", "2021-01-10", "1 X Street", "Pass", "")),
	})
	require.NoError(t, err)
	require.Len(t, out.exported, 1)
	assert.Same(t, result.Warehouse, out.exported[0])
}

func TestRun_LaterRunKeepsPersistedFactsInsideTheirVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	first, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", ""),
		chicago("2", "2021-09-01", "1 X Street", "Pass", ""),
	)})
	require.NoError(t, err)
	require.True(t, first.Report.Passed(), first.Report.Failed())
	require.Len(t, first.Warehouse.Restaurants, 1)
	v1 := first.Warehouse.Restaurants[0]

	// The address change is dated before inspection 2, already stored under v1
	second, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("3", "2021-06-01", "2 Y Avenue", "Pass", ""),
		chicago("4", "2022-03-01", "2 Y Avenue", "Pass", ""),
	)})
	require.NoError(t, err)
	assert.True(t, second.Report.Passed(), second.Report.Failed())

	require.Len(t, second.Reviews, 1)
	assert.Equal(t, scd.ReasonObservedLater, second.Reviews[0].Reason)
	assert.Equal(t, "chicago|3", second.Reviews[0].RecordNK)
	assert.Equal(t, 1, second.Counters.Outcomes[scd.OutcomeSuperseded])

	history, err := s.LoadRestaurantHistory(ctx, v1.BusinessNK)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].EndDate)
	assert.Equal(t, date("2022-02-28"), *history[0].EndDate)
	assert.Equal(t, v1.EntityKey, history[1].EntityKey)

	persisted, err := s.ListInspectionFacts(ctx, []int64{v1.RestaurantKey})
	require.NoError(t, err)
	require.Len(t, persisted, 3)
	for _, f := range persisted {
		assert.True(t, history[0].Contains(f.InspectionDate), "inspection %d", f.InspectionKey)
	}

	logged, err := s.GetRejections(ctx, second.RunID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.ErrorKindReview, logged[0].ErrorKind)
	assert.Equal(t, scd.Stage, logged[0].Stage)
	assert.Equal(t, "chicago|3", logged[0].NaturalKey)
	assert.Equal(t, scd.ReasonObservedLater, logged[0].Message)
	assert.NotEmpty(t, logged[0].Payload)

	run, err := s.GetRun(ctx, second.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ReviewFlags)
	assert.Zero(t, run.RecordsRejected)
}

func TestRun_ReportsPersistedFactsOutsideTheirVersion(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	s := mocks.NewMockStore(ctrl)
	memory := store.NewMemoryStore()

	// Delegate everything to memory except the persisted facts lookup
	s.EXPECT().GetOrAllocateKey(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(memory.GetOrAllocateKey).AnyTimes()
	s.EXPECT().LookupKey(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(memory.LookupKey).AnyTimes()
	s.EXPECT().LoadRestaurantHistory(gomock.Any(), gomock.Any()).DoAndReturn(memory.LoadRestaurantHistory).AnyTimes()
	s.EXPECT().SaveRestaurantHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(memory.SaveRestaurantHistory).AnyTimes()
	s.EXPECT().ListRestaurantVersions(gomock.Any()).DoAndReturn(memory.ListRestaurantVersions).AnyTimes()
	s.EXPECT().LookupAliases(gomock.Any(), gomock.Any()).DoAndReturn(memory.LookupAliases).AnyTimes()
	s.EXPECT().BindAliases(gomock.Any(), gomock.Any()).DoAndReturn(memory.BindAliases).AnyTimes()
	s.EXPECT().SaveWarehouse(gomock.Any(), gomock.Any()).DoAndReturn(memory.SaveWarehouse).AnyTimes()
	s.EXPECT().SaveRun(gomock.Any(), gomock.Any()).DoAndReturn(memory.SaveRun).AnyTimes()
	s.EXPECT().SaveRejections(gomock.Any(), gomock.Any()).DoAndReturn(memory.SaveRejections).AnyTimes()
	s.EXPECT().ListInspectionFacts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, keys []int64) ([]domain.FactInspection, error) {
			// A fact stored by another writer after the first version closed
			return []domain.FactInspection{{
				InspectionKey: 99, SourceCity: domain.SourceCityChicago, SourceInspectionID: "99",
				RestaurantKey: keys[0], InspectionDate: date("2023-01-01"),
			}}, nil
		})

	result, err := newPipeline(t, s, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", ""),
		chicago("2", "2022-03-01", "2 Y Avenue", "Pass", ""),
	)})
	require.NoError(t, err)
	assert.False(t, result.Report.Passed())
	assert.Equal(t, []string{"restaurant_interval_contains_inspection"}, result.Report.Failed())
}

func TestRun_AuditTimesComeFromTheClock(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	at := time.Date(2024, 7, 4, 9, 30, 0, 0, time.UTC)
	clock.EXPECT().Now().Return(at).AnyTimes()

	pool := pond.NewPool(2)
	t.Cleanup(pool.StopAndWait)
	s := store.NewMemoryStore()

	result, err := pipeline.Build(pool, s, testConfig, clock, nil).Run(ctx, []domain.RawBatch{batch(
		chicago("1", "2021-01-10", "1 X Street", "Pass", "99. NOT A CODE"),
		chicago("2", "2021-02-10", "1 X Street", "Pass", ""),
	)})
	require.NoError(t, err)

	run, err := s.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, at, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, at, *run.FinishedAt)

	logged, err := s.GetRejections(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	id, err := ulid.ParseStrict(logged[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), id.Time())
}
