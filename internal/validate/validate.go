package validate

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
)

// Check names
const (
	CheckFKClosure            = "fk_closure"
	CheckSingleCurrentVersion = "single_current_version"
	CheckIntervalPartition    = "interval_partition"
	CheckFactNaturalKeyUnique = "fact_natural_key_unique"
	CheckViolationCountMatch  = "violation_count_match"
	CheckIntervalContainsFact = "restaurant_interval_contains_inspection"
	CheckCriticalNullRate     = "critical_null_rate"
)

// CheckResult is the outcome of one integrity check
type CheckResult struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// Report is the outcome of every integrity check over a warehouse snapshot
type Report struct {
	Checks []CheckResult `json:"checks"`
}

// Passed reports whether every check passed
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the names of the failed checks
func (r *Report) Failed() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Check returns the result of a check by name
func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Validator checks warehouse invariants. It never modifies the warehouse.
type Validator interface {
	// Validate runs every check. nullRates maps critical fields to their share
	// of missing values in the cleaned input. persisted holds facts saved by
	// earlier runs against versions of the warehouse; their intervals are
	// checked too since this run may have reshaped them.
	Validate(w *domain.Warehouse, nullRates map[string]float64, persisted []domain.FactInspection) *Report
}

type validator struct {
	maxNullRate float64
}

// NewValidator creates a validator
func NewValidator(cfg config.ValidatorConfig) Validator {
	return &validator{maxNullRate: cfg.MaxCriticalNullRate}
}

func (v *validator) Validate(w *domain.Warehouse, nullRates map[string]float64, persisted []domain.FactInspection) *Report {
	report := &Report{}
	for _, check := range []struct {
		name string
		run  func() []string
	}{
		{CheckFKClosure, func() []string { return fkClosure(w) }},
		{CheckSingleCurrentVersion, func() []string { return singleCurrentVersion(w) }},
		{CheckIntervalPartition, func() []string { return intervalPartition(w) }},
		{CheckFactNaturalKeyUnique, func() []string { return factNaturalKeyUnique(w) }},
		{CheckViolationCountMatch, func() []string { return violationCountMatch(w) }},
		{CheckIntervalContainsFact, func() []string { return intervalContainsFact(w, persisted) }},
		{CheckCriticalNullRate, func() []string { return v.criticalNullRate(nullRates) }},
	} {
		violations := check.run()
		result := CheckResult{Name: check.name, Passed: len(violations) == 0, Violations: violations}
		if !result.Passed {
			logger.Warn("Integrity check failed",
				zap.String("check", result.Name),
				zap.Int("violations", len(violations)),
				zap.Strings("examples", violations[:min(len(violations), 5)]))
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}

func fkClosure(w *domain.Warehouse) []string {
	restaurants := make(map[int64]struct{}, len(w.Restaurants))
	for _, r := range w.Restaurants {
		restaurants[r.RestaurantKey] = struct{}{}
	}
	locations := make(map[int64]struct{}, len(w.Locations))
	for _, l := range w.Locations {
		locations[l.LocationKey] = struct{}{}
	}
	dates := make(map[int64]struct{}, len(w.Dates))
	for _, d := range w.Dates {
		dates[d.DateKey] = struct{}{}
	}
	violations := make(map[int64]struct{}, len(w.Violations))
	for _, d := range w.Violations {
		violations[d.ViolationKey] = struct{}{}
	}
	inspections := make(map[int64]struct{}, len(w.Inspections))

	var failures []string
	for _, f := range w.Inspections {
		inspections[f.InspectionKey] = struct{}{}
		if _, ok := restaurants[f.RestaurantKey]; !ok {
			failures = append(failures, fmt.Sprintf("inspection %d: restaurant_key %d", f.InspectionKey, f.RestaurantKey))
		}
		if _, ok := locations[f.LocationKey]; !ok {
			failures = append(failures, fmt.Sprintf("inspection %d: location_key %d", f.InspectionKey, f.LocationKey))
		}
		if _, ok := dates[f.DateKey]; !ok {
			failures = append(failures, fmt.Sprintf("inspection %d: date_key %d", f.InspectionKey, f.DateKey))
		}
	}
	for _, c := range w.InspectionViols {
		if _, ok := inspections[c.InspectionKey]; !ok {
			failures = append(failures, fmt.Sprintf("citation %d/%d: inspection_key %d", c.InspectionKey, c.Ordinal, c.InspectionKey))
		}
		if _, ok := violations[c.ViolationKey]; !ok {
			failures = append(failures, fmt.Sprintf("citation %d/%d: violation_key %d", c.InspectionKey, c.Ordinal, c.ViolationKey))
		}
	}
	return failures
}

// histories groups restaurant versions by entity, entities sorted
func histories(w *domain.Warehouse) ([]string, map[string][]domain.RestaurantVersion) {
	byEntity := make(map[string][]domain.RestaurantVersion)
	for _, r := range w.Restaurants {
		byEntity[r.BusinessNK] = append(byEntity[r.BusinessNK], r)
	}
	entities := make([]string, 0, len(byEntity))
	for nk := range byEntity {
		entities = append(entities, nk)
	}
	sort.Strings(entities)
	return entities, byEntity
}

func singleCurrentVersion(w *domain.Warehouse) []string {
	entities, byEntity := histories(w)
	var failures []string
	for _, nk := range entities {
		current := 0
		for _, v := range byEntity[nk] {
			if v.IsCurrent {
				current++
			}
		}
		if current != 1 {
			failures = append(failures, fmt.Sprintf("%s: %d current versions", nk, current))
		}
	}
	return failures
}

// intervalPartition checks that each entity's intervals are ordered, contiguous
// and end with a single open interval. Current flags are checked separately.
func intervalPartition(w *domain.Warehouse) []string {
	entities, byEntity := histories(w)
	var failures []string
	for _, nk := range entities {
		versions := byEntity[nk]
		sort.Slice(versions, func(i, j int) bool {
			return versions[i].EffectiveDate.Before(versions[j].EffectiveDate)
		})
		for i, v := range versions {
			if i == len(versions)-1 {
				if v.EndDate != nil {
					failures = append(failures, fmt.Sprintf("%s: last version %s is closed", nk, v))
				}
				continue
			}
			next := versions[i+1]
			switch {
			case v.EndDate == nil:
				failures = append(failures, fmt.Sprintf("%s: version %s is open before %s", nk, v, next))
			case v.EndDate.Before(v.EffectiveDate):
				failures = append(failures, fmt.Sprintf("%s: version %s ends before it starts", nk, v))
			case !next.EffectiveDate.Equal(v.EndDate.AddDate(0, 0, 1)):
				failures = append(failures, fmt.Sprintf("%s: versions %s and %s are not contiguous", nk, v, next))
			}
		}
	}
	return failures
}

func factNaturalKeyUnique(w *domain.Warehouse) []string {
	seenNK := make(map[string]int64, len(w.Inspections))
	seenKey := make(map[int64]struct{}, len(w.Inspections))
	var failures []string
	for _, f := range w.Inspections {
		if other, ok := seenNK[f.NaturalKey()]; ok {
			failures = append(failures, fmt.Sprintf("%s: inspections %d and %d", f.NaturalKey(), other, f.InspectionKey))
		}
		seenNK[f.NaturalKey()] = f.InspectionKey
		if _, ok := seenKey[f.InspectionKey]; ok {
			failures = append(failures, fmt.Sprintf("inspection_key %d is not unique", f.InspectionKey))
		}
		seenKey[f.InspectionKey] = struct{}{}
	}
	return failures
}

func violationCountMatch(w *domain.Warehouse) []string {
	citations := make(map[int64]int)
	for _, c := range w.InspectionViols {
		citations[c.InspectionKey]++
	}
	var failures []string
	for _, f := range w.Inspections {
		if n := citations[f.InspectionKey]; n != f.ViolationCount {
			failures = append(failures, fmt.Sprintf("inspection %d: violation_count %d, %d citations", f.InspectionKey, f.ViolationCount, n))
		}
	}
	return failures
}

func intervalContainsFact(w *domain.Warehouse, persisted []domain.FactInspection) []string {
	versions := make(map[int64]domain.RestaurantVersion, len(w.Restaurants))
	for _, r := range w.Restaurants {
		versions[r.RestaurantKey] = r
	}
	current := make(map[int64]struct{}, len(w.Inspections))
	var failures []string
	for _, f := range w.Inspections {
		current[f.InspectionKey] = struct{}{}
		v, ok := versions[f.RestaurantKey]
		if !ok {
			// Reported by fk_closure
			continue
		}
		if !v.Contains(f.InspectionDate) {
			failures = append(failures, fmt.Sprintf("inspection %d on %s outside %s",
				f.InspectionKey, f.InspectionDate.Format(domain.DATE_LAYOUT), v))
		}
	}
	for _, f := range persisted {
		if _, ok := current[f.InspectionKey]; ok {
			// Replaced by this run's row
			continue
		}
		v, ok := versions[f.RestaurantKey]
		if !ok {
			failures = append(failures, fmt.Sprintf("persisted inspection %d references missing restaurant %d",
				f.InspectionKey, f.RestaurantKey))
			continue
		}
		if !v.Contains(f.InspectionDate) {
			failures = append(failures, fmt.Sprintf("persisted inspection %d on %s outside %s",
				f.InspectionKey, f.InspectionDate.Format(domain.DATE_LAYOUT), v))
		}
	}
	return failures
}

func (v *validator) criticalNullRate(nullRates map[string]float64) []string {
	fields := make([]string, 0, len(nullRates))
	for field := range nullRates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var failures []string
	for _, field := range fields {
		if rate := nullRates[field]; rate > v.maxNullRate {
			failures = append(failures, fmt.Sprintf("%s: null rate %.4f above %.4f", field, rate, v.maxNullRate))
		}
	}
	return failures
}
