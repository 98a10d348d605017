package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays under
// PostgreSQL's limit of 65535 parameters per statement.
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000 // Total parameter headroom for batch-level overhead

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// sequenceKey is the key_value_store key holding the last allocated key of a dimension
func sequenceKey(dim domain.Dimension) string {
	return fmt.Sprintf("key_sequence:%s", dim)
}

// nextSequence increments and returns the sequence of a dimension.
// The sequence row stays locked until the surrounding transaction ends.
func nextSequence(tx *gorm.DB, dim domain.Dimension) (int64, error) {
	key := sequenceKey(dim)

	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.KeyValueStore{Key: key, Value: "0"}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to ensure key sequence: %w", err)
	}

	var kv schema.KeyValueStore
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", key).
		First(&kv).Error
	if err != nil {
		return 0, fmt.Errorf("failed to lock key sequence: %w", err)
	}

	last, err := strconv.ParseInt(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse key sequence: %w", err)
	}

	next := last + 1
	err = tx.Model(&schema.KeyValueStore{}).
		Where("key = ?", key).
		Update("value", strconv.FormatInt(next, 10)).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance key sequence: %w", err)
	}

	return next, nil
}

// GetOrAllocateKey returns the surrogate key of a natural key, allocating one if needed
func (s *pgStore) GetOrAllocateKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error) {
	var key int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mapping schema.KeyMapping
		err := tx.Where("dimension_name = ? AND natural_key = ?", dim, naturalKey).
			First(&mapping).Error
		if err == nil {
			key = mapping.SurrogateKey
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get key mapping: %w", err)
		}

		next, err := nextSequence(tx, dim)
		if err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&schema.KeyMapping{
			DimensionName: string(dim),
			NaturalKey:    naturalKey,
			SurrogateKey:  next,
		})
		if result.Error != nil {
			return fmt.Errorf("failed to create key mapping: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Another writer mapped the natural key after our read
			return fmt.Errorf("%w: %s key %q", domain.ErrConcurrencyConflict, dim, naturalKey)
		}

		key = next
		return nil
	})
	if err != nil {
		return 0, classifyError(err)
	}

	return key, nil
}

// LookupKey returns the surrogate key of a natural key without allocating
func (s *pgStore) LookupKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error) {
	var mapping schema.KeyMapping
	err := s.db.WithContext(ctx).
		Where("dimension_name = ? AND natural_key = ?", dim, naturalKey).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, classifyError(fmt.Errorf("failed to lookup key mapping: %w", err))
	}

	return mapping.SurrogateKey, true, nil
}

// LoadRestaurantHistory returns the versions of an entity ordered by effective date
func (s *pgStore) LoadRestaurantHistory(ctx context.Context, businessNK string) ([]domain.RestaurantVersion, error) {
	var rows []schema.RestaurantVersion
	err := s.db.WithContext(ctx).
		Where("business_nk = ?", businessNK).
		Order("effective_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to load restaurant history: %w", err))
	}

	return toDomainVersions(rows), nil
}

// SaveRestaurantHistory writes the versions of one entity in a single transaction
func (s *pgStore) SaveRestaurantHistory(ctx context.Context, businessNK string, expectedCurrentKey int64, versions []domain.RestaurantVersion) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the existing history of the entity
		var existing []schema.RestaurantVersion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_nk = ?", businessNK).
			Find(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to lock restaurant history: %w", err)
		}

		// 2. Check the history was not changed since it was planned
		var currentKey int64
		for _, row := range existing {
			if row.IsCurrent {
				currentKey = row.RestaurantKey
			}
		}
		if currentKey != expectedCurrentKey {
			return fmt.Errorf("%w: %s current version is %d, expected %d",
				domain.ErrConcurrencyConflict, businessNK, currentKey, expectedCurrentKey)
		}

		incoming := make(map[int64]struct{}, len(versions))
		for _, v := range versions {
			if v.BusinessNK != businessNK {
				return &domain.IntegrityViolation{
					Check:      "history_entity",
					NaturalKey: businessNK,
					Detail:     fmt.Sprintf("version %s belongs to another entity", v),
				}
			}
			incoming[v.RestaurantKey] = struct{}{}
		}
		for _, row := range existing {
			if _, ok := incoming[row.RestaurantKey]; !ok {
				return &domain.IntegrityViolation{
					Check:      "history_append_only",
					NaturalKey: businessNK,
					Detail:     fmt.Sprintf("version %d would be dropped", row.RestaurantKey),
				}
			}
		}

		// 3. Upsert closed versions before the current one so the
		// single-current index never sees two current rows
		ordered := make([]domain.RestaurantVersion, len(versions))
		copy(ordered, versions)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].IsCurrent != ordered[j].IsCurrent {
				return !ordered[i].IsCurrent
			}
			return ordered[i].EffectiveDate.Before(ordered[j].EffectiveDate)
		})

		for _, v := range ordered {
			row := schema.NewRestaurantVersion(v)
			row.UpdatedAt = time.Now().UTC()
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "restaurant_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"entity_key", "name", "address", "location_nk", "ownership_id", "effective_date", "end_date", "is_current", "last_seen_date", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to save restaurant version %d: %w", v.RestaurantKey, err)
			}
		}

		return nil
	})
	if err != nil {
		return classifyError(err)
	}

	return nil
}

// ListRestaurantVersions returns every version ordered by restaurant key
func (s *pgStore) ListRestaurantVersions(ctx context.Context) ([]domain.RestaurantVersion, error) {
	var rows []schema.RestaurantVersion
	err := s.db.WithContext(ctx).Order("restaurant_key ASC").Find(&rows).Error
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to list restaurant versions: %w", err))
	}

	return toDomainVersions(rows), nil
}

// LookupAliases returns the entity bound to each known alias
func (s *pgStore) LookupAliases(ctx context.Context, aliases []string) (map[string]string, error) {
	bound := make(map[string]string, len(aliases))
	for start := 0; start < len(aliases); start += 10000 {
		end := min(start+10000, len(aliases))

		var rows []schema.RestaurantAlias
		err := s.db.WithContext(ctx).Where("alias IN ?", aliases[start:end]).Find(&rows).Error
		if err != nil {
			return nil, classifyError(fmt.Errorf("failed to lookup restaurant aliases: %w", err))
		}
		for _, row := range rows {
			bound[row.Alias] = row.BusinessNK
		}
	}

	return bound, nil
}

// BindAliases binds aliases to entities, failing if an alias is bound elsewhere
func (s *pgStore) BindAliases(ctx context.Context, aliases map[string]string) error {
	if len(aliases) == 0 {
		return nil
	}

	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)

	rows := make([]schema.RestaurantAlias, len(names))
	for i, alias := range names {
		rows[i] = schema.RestaurantAlias{Alias: alias, BusinessNK: aliases[alias]}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(rows, calculateSafeBatchSize(len(rows), 3)).Error
		if err != nil {
			return fmt.Errorf("failed to bind restaurant aliases: %w", err)
		}

		// Aliases that already existed must point at the same entity
		var existing []schema.RestaurantAlias
		err = tx.Where("alias IN ?", names).Find(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to verify restaurant aliases: %w", err)
		}
		for _, row := range existing {
			if row.BusinessNK != aliases[row.Alias] {
				return fmt.Errorf("%w: alias %q is bound to %q, not %q",
					domain.ErrConcurrencyConflict, row.Alias, row.BusinessNK, aliases[row.Alias])
			}
		}

		return nil
	})
	if err != nil {
		return classifyError(err)
	}

	return nil
}

// SaveWarehouse upserts the dimension and fact rows of a snapshot
func (s *pgStore) SaveWarehouse(ctx context.Context, w *domain.Warehouse) error {
	locations := make([]schema.DimLocation, len(w.Locations))
	for i, l := range w.Locations {
		locations[i] = schema.NewDimLocation(l)
	}
	dates := make([]schema.DimDate, len(w.Dates))
	for i, d := range w.Dates {
		dates[i] = schema.NewDimDate(d)
	}
	violations := make([]schema.DimViolation, len(w.Violations))
	for i, v := range w.Violations {
		violations[i] = schema.NewDimViolation(v)
	}
	inspections := make([]schema.FactInspection, len(w.Inspections))
	inspectionKeys := make([]int64, len(w.Inspections))
	for i, f := range w.Inspections {
		inspections[i] = schema.NewFactInspection(f)
		inspectionKeys[i] = f.InspectionKey
	}
	citations := make([]schema.FactInspectionViolation, len(w.InspectionViols))
	for i, f := range w.InspectionViols {
		citations[i] = schema.NewFactInspectionViolation(f)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Dimensions before facts so foreign keys resolve
		if err := upsertAll(tx, locations, 5, "location_key"); err != nil {
			return fmt.Errorf("failed to save dim_location: %w", err)
		}
		if err := upsertAll(tx, dates, 8, "date_key"); err != nil {
			return fmt.Errorf("failed to save dim_date: %w", err)
		}
		if err := upsertAll(tx, violations, 6, "violation_key"); err != nil {
			return fmt.Errorf("failed to save dim_violation: %w", err)
		}
		if err := upsertAll(tx, inspections, 11, "inspection_key"); err != nil {
			return fmt.Errorf("failed to save fact_inspection: %w", err)
		}

		// 2. Citations of the saved inspections are replaced as a whole
		for start := 0; start < len(inspectionKeys); start += 10000 {
			end := min(start+10000, len(inspectionKeys))
			err := tx.Where("inspection_key IN ?", inspectionKeys[start:end]).
				Delete(&schema.FactInspectionViolation{}).Error
			if err != nil {
				return fmt.Errorf("failed to clear fact_inspection_violation: %w", err)
			}
		}
		if len(citations) > 0 {
			err := tx.CreateInBatches(citations, calculateSafeBatchSize(len(citations), 4)).Error
			if err != nil {
				return fmt.Errorf("failed to save fact_inspection_violation: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return classifyError(err)
	}

	return nil
}

// ListInspectionFacts returns the persisted inspection facts of the given restaurant versions
func (s *pgStore) ListInspectionFacts(ctx context.Context, restaurantKeys []int64) ([]domain.FactInspection, error) {
	var facts []domain.FactInspection
	for start := 0; start < len(restaurantKeys); start += 10000 {
		end := min(start+10000, len(restaurantKeys))

		var rows []schema.FactInspection
		err := s.db.WithContext(ctx).
			Where("restaurant_key IN ?", restaurantKeys[start:end]).
			Order("inspection_key ASC").
			Find(&rows).Error
		if err != nil {
			return nil, classifyError(fmt.Errorf("failed to list inspection facts: %w", err))
		}
		for _, row := range rows {
			facts = append(facts, row.ToDomain())
		}
	}

	sort.Slice(facts, func(i, j int) bool {
		return facts[i].InspectionKey < facts[j].InspectionKey
	})
	return facts, nil
}

// upsertAll inserts rows in safe batches, updating every column on primary key conflict
func upsertAll[T any](tx *gorm.DB, rows []T, fieldsPerRecord int, keyColumn string) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: keyColumn}},
		UpdateAll: true,
	}).CreateInBatches(rows, calculateSafeBatchSize(len(rows), fieldsPerRecord)).Error
}

// SaveRun creates or updates a pipeline run audit row
func (s *pgStore) SaveRun(ctx context.Context, run *schema.PipelineRun) error {
	run.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"finished_at", "status", "records_in", "records_rejected", "inspections", "versions", "review_flags", "digest", "validation_passed", "report", "updated_at"}),
	}).Create(run).Error
	if err != nil {
		return classifyError(fmt.Errorf("failed to save pipeline run: %w", err))
	}

	return nil
}

// GetRun retrieves a pipeline run by ID
func (s *pgStore) GetRun(ctx context.Context, runID string) (*schema.PipelineRun, error) {
	var run schema.PipelineRun
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(fmt.Errorf("failed to get pipeline run: %w", err))
	}

	return &run, nil
}

// SaveRejections appends rejected records to the rejected-records log
func (s *pgStore) SaveRejections(ctx context.Context, records []schema.RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, calculateSafeBatchSize(len(records), 8)).Error
	if err != nil {
		return classifyError(fmt.Errorf("failed to save rejected records: %w", err))
	}

	return nil
}

// GetRejections returns the rejected records of a run ordered by ID
func (s *pgStore) GetRejections(ctx context.Context, runID string) ([]schema.RejectedRecord, error) {
	var records []schema.RejectedRecord
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get rejected records: %w", err))
	}

	return records, nil
}

func toDomainVersions(rows []schema.RestaurantVersion) []domain.RestaurantVersion {
	versions := make([]domain.RestaurantVersion, len(rows))
	for i, row := range rows {
		versions[i] = row.ToDomain()
	}
	return versions
}
