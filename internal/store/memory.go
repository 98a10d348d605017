package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
)

// memoryStore is a Store held in process memory. It follows the same
// transactional contract as the PostgreSQL store and backs tests and dry runs.
type memoryStore struct {
	mu sync.Mutex

	keys       map[domain.Dimension]map[string]int64
	sequences  map[domain.Dimension]int64
	histories  map[string][]domain.RestaurantVersion
	aliases    map[string]string
	warehouse  warehouseTables
	runs       map[string]schema.PipelineRun
	rejections []schema.RejectedRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() Store {
	return &memoryStore{
		keys:      make(map[domain.Dimension]map[string]int64),
		sequences: make(map[domain.Dimension]int64),
		histories: make(map[string][]domain.RestaurantVersion),
		aliases:   make(map[string]string),
		warehouse: newWarehouseTables(),
		runs:      make(map[string]schema.PipelineRun),
	}
}

// warehouseTables holds the star schema rows keyed like their primary keys
type warehouseTables struct {
	restaurants map[int64]domain.RestaurantVersion
	locations   map[int64]domain.LocationDim
	dates       map[int64]domain.DateDim
	violations  map[int64]domain.ViolationDim
	inspections map[int64]domain.FactInspection
	citations   map[int64][]domain.FactInspectionViolation
}

func newWarehouseTables() warehouseTables {
	return warehouseTables{
		restaurants: make(map[int64]domain.RestaurantVersion),
		locations:   make(map[int64]domain.LocationDim),
		dates:       make(map[int64]domain.DateDim),
		violations:  make(map[int64]domain.ViolationDim),
		inspections: make(map[int64]domain.FactInspection),
		citations:   make(map[int64][]domain.FactInspectionViolation),
	}
}

func (s *memoryStore) GetOrAllocateKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, ok := s.keys[dim]
	if !ok {
		mappings = make(map[string]int64)
		s.keys[dim] = mappings
	}
	if key, ok := mappings[naturalKey]; ok {
		return key, nil
	}

	s.sequences[dim]++
	key := s.sequences[dim]
	mappings[naturalKey] = key
	return key, nil
}

func (s *memoryStore) LookupKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[dim][naturalKey]
	return key, ok, nil
}

func (s *memoryStore) LoadRestaurantHistory(ctx context.Context, businessNK string) ([]domain.RestaurantVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneVersions(s.histories[businessNK]), nil
}

func (s *memoryStore) SaveRestaurantHistory(ctx context.Context, businessNK string, expectedCurrentKey int64, versions []domain.RestaurantVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.histories[businessNK]
	var currentKey int64
	for _, v := range existing {
		if v.IsCurrent {
			currentKey = v.RestaurantKey
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
	for _, v := range existing {
		if _, ok := incoming[v.RestaurantKey]; !ok {
			return &domain.IntegrityViolation{
				Check:      "history_append_only",
				NaturalKey: businessNK,
				Detail:     fmt.Sprintf("version %d would be dropped", v.RestaurantKey),
			}
		}
	}

	saved := cloneVersions(versions)
	sort.Slice(saved, func(i, j int) bool {
		return saved[i].EffectiveDate.Before(saved[j].EffectiveDate)
	})
	s.histories[businessNK] = saved
	return nil
}

func (s *memoryStore) ListRestaurantVersions(ctx context.Context) ([]domain.RestaurantVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var versions []domain.RestaurantVersion
	for _, history := range s.histories {
		versions = append(versions, cloneVersions(history)...)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].RestaurantKey < versions[j].RestaurantKey
	})
	return versions, nil
}

func (s *memoryStore) LookupAliases(ctx context.Context, aliases []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bound := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		if businessNK, ok := s.aliases[alias]; ok {
			bound[alias] = businessNK
		}
	}
	return bound, nil
}

func (s *memoryStore) BindAliases(ctx context.Context, aliases map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for alias, businessNK := range aliases {
		if existing, ok := s.aliases[alias]; ok && existing != businessNK {
			return fmt.Errorf("%w: alias %q is bound to %q, not %q",
				domain.ErrConcurrencyConflict, alias, existing, businessNK)
		}
	}
	for alias, businessNK := range aliases {
		s.aliases[alias] = businessNK
	}
	return nil
}

func (s *memoryStore) SaveWarehouse(ctx context.Context, w *domain.Warehouse) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.warehouse
	for _, v := range cloneVersions(w.Restaurants) {
		t.restaurants[v.RestaurantKey] = v
	}
	for _, l := range w.Locations {
		t.locations[l.LocationKey] = l
	}
	for _, d := range w.Dates {
		t.dates[d.DateKey] = d
	}
	for _, v := range w.Violations {
		t.violations[v.ViolationKey] = v
	}
	for _, f := range w.Inspections {
		t.inspections[f.InspectionKey] = f
		// Citations of the saved inspections are replaced as a whole
		delete(t.citations, f.InspectionKey)
	}
	for _, c := range w.InspectionViols {
		t.citations[c.InspectionKey] = append(t.citations[c.InspectionKey], c)
	}
	return nil
}

func (s *memoryStore) ListInspectionFacts(ctx context.Context, restaurantKeys []int64) ([]domain.FactInspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]struct{}, len(restaurantKeys))
	for _, key := range restaurantKeys {
		wanted[key] = struct{}{}
	}
	var facts []domain.FactInspection
	for _, f := range s.warehouse.inspections {
		if _, ok := wanted[f.RestaurantKey]; ok {
			facts = append(facts, f)
		}
	}
	sort.Slice(facts, func(i, j int) bool {
		return facts[i].InspectionKey < facts[j].InspectionKey
	})
	return facts, nil
}

func (s *memoryStore) SaveRun(ctx context.Context, run *schema.PipelineRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.runs[run.RunID]; ok {
		run.CreatedAt = existing.CreatedAt
	} else if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	s.runs[run.RunID] = *run
	return nil
}

func (s *memoryStore) GetRun(ctx context.Context, runID string) (*schema.PipelineRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *memoryStore) SaveRejections(ctx context.Context, records []schema.RejectedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if _, ok := s.runs[record.RunID]; !ok {
			return fmt.Errorf("failed to save rejected record %s: unknown run %s", record.ID, record.RunID)
		}
	}
	s.rejections = append(s.rejections, records...)
	return nil
}

func (s *memoryStore) GetRejections(ctx context.Context, runID string) ([]schema.RejectedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []schema.RejectedRecord
	for _, record := range s.rejections {
		if record.RunID == runID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func cloneVersions(versions []domain.RestaurantVersion) []domain.RestaurantVersion {
	if versions == nil {
		return nil
	}
	cloned := make([]domain.RestaurantVersion, len(versions))
	for i, v := range versions {
		if v.EndDate != nil {
			end := *v.EndDate
			v.EndDate = &end
		}
		cloned[i] = v
	}
	return cloned
}
