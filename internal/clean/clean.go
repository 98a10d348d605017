package clean

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
)

const (
	// Stage is the stage name recorded on rejections
	Stage = "clean"

	partitionSize = 256
)

// Critical fields whose null rate is measured
const (
	FieldBusinessName   = "business_name"
	FieldAddress        = "address"
	FieldZip            = "zip"
	FieldResultCode     = "result_code"
	FieldInspectionDate = "inspection_date"
)

// CriticalFields lists the measured fields in report order
var CriticalFields = []string{FieldBusinessName, FieldAddress, FieldZip, FieldResultCode, FieldInspectionDate}

// Result is the output of the cleaning stage
type Result struct {
	Records    []domain.InspectionRecord
	Rejected   []domain.Rejection
	NullCounts map[string]int
	Duplicates int
	// Total is the number of records received, before rejection and dedup
	Total int
}

// NullRate returns the share of received records with the field missing
func (r *Result) NullRate(field string) float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.NullCounts[field]) / float64(r.Total)
}

// Cleaner normalizes canonical records and removes duplicates
type Cleaner interface {
	// Clean parses dates, normalizes empty values and deduplicates by natural key.
	// Output is sorted by natural key.
	Clean(ctx context.Context, records []domain.InspectionRecord) (*Result, error)
}

type cleaner struct {
	pool        pond.Pool
	dateLayouts []string
	nullTokens  map[string]struct{}
}

// NewCleaner creates a cleaner from the cleaner configuration
func NewCleaner(pool pond.Pool, cfg config.CleanerConfig) Cleaner {
	layouts := cfg.DateLayouts
	if len(layouts) == 0 {
		layouts = config.DefaultDateLayouts
	}
	tokens := cfg.NullTokens
	if tokens == nil {
		tokens = config.DefaultNullTokens
	}

	nullTokens := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		nullTokens[strings.ToUpper(strings.TrimSpace(token))] = struct{}{}
	}

	return &cleaner{pool: pool, dateLayouts: layouts, nullTokens: nullTokens}
}

type partition struct {
	records    []domain.InspectionRecord
	rejected   []domain.Rejection
	nullCounts map[string]int
}

// Clean parses dates, normalizes empty values and deduplicates by natural key
func (c *cleaner) Clean(ctx context.Context, records []domain.InspectionRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := make([]partition, (len(records)+partitionSize-1)/partitionSize)
	group := c.pool.NewGroupContext(ctx)
	for i := range parts {
		start := i * partitionSize
		end := min(start+partitionSize, len(records))
		group.Submit(func() {
			parts[i] = c.cleanPartition(records[start:end])
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to clean records: %w", err)
	}

	result := &Result{
		NullCounts: make(map[string]int, len(CriticalFields)),
		Total:      len(records),
	}
	for _, field := range CriticalFields {
		result.NullCounts[field] = 0
	}

	// Partitions are merged in input order so last-seen-wins follows the batch order
	seen := make(map[string]int)
	var cleaned []domain.InspectionRecord
	for _, p := range parts {
		result.Rejected = append(result.Rejected, p.rejected...)
		for field, n := range p.nullCounts {
			result.NullCounts[field] += n
		}
		for _, record := range p.records {
			key := record.NaturalKey()
			idx, dup := seen[key]
			if !dup {
				seen[key] = len(cleaned)
				cleaned = append(cleaned, record)
				continue
			}

			result.Duplicates++
			if !reflect.DeepEqual(cleaned[idx], record) {
				logger.WarnCtx(ctx, "Duplicate inspection with conflicting payload, keeping last seen",
					zap.String("natural_key", key))
			}
			cleaned[idx] = record
		}
	}

	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].NaturalKey() < cleaned[j].NaturalKey()
	})
	result.Records = cleaned

	for _, rejection := range result.Rejected {
		logger.WarnCtx(ctx, "Rejected record during cleaning",
			zap.String("natural_key", rejection.NaturalKey),
			zap.String("reason", rejection.Message))
	}

	return result, nil
}

func (c *cleaner) cleanPartition(records []domain.InspectionRecord) partition {
	p := partition{nullCounts: make(map[string]int)}
	for _, record := range records {
		record = c.normalize(record)

		if record.BusinessName == "" {
			p.nullCounts[FieldBusinessName]++
		}
		if record.Address == "" {
			p.nullCounts[FieldAddress]++
		}
		if record.Zip == "" {
			p.nullCounts[FieldZip]++
		}
		if record.ResultCode == "" {
			p.nullCounts[FieldResultCode]++
		}

		if record.RawInspectionDate == "" {
			p.nullCounts[FieldInspectionDate]++
			err := &domain.ParseError{Field: FieldInspectionDate, Value: record.RawInspectionDate}
			p.rejected = append(p.rejected, domain.NewRejection(Stage, record.NaturalKey(), err, record))
			continue
		}

		date, err := c.parseDate(record.RawInspectionDate)
		if err != nil {
			p.rejected = append(p.rejected, domain.NewRejection(Stage, record.NaturalKey(), err, record))
			continue
		}
		record.InspectionDate = date
		p.records = append(p.records, record)
	}
	return p
}

// parseDate parses a source date into its UTC calendar date, trying each layout in order
func (c *cleaner) parseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range c.dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return domain.CalendarDate(t), nil
		}
		lastErr = err
	}
	return time.Time{}, &domain.ParseError{Field: FieldInspectionDate, Value: value, Err: lastErr}
}

// normalize trims and collapses whitespace and maps null tokens to empty strings
func (c *cleaner) normalize(record domain.InspectionRecord) domain.InspectionRecord {
	record.SourceInspectionID = strings.TrimSpace(record.SourceInspectionID)
	record.BusinessName = c.text(record.BusinessName)
	record.Address = c.text(record.Address)
	record.City = c.text(record.City)
	record.Zip = c.text(record.Zip)
	record.RawInspectionDate = c.text(record.RawInspectionDate)
	record.FacilityType = c.text(record.FacilityType)
	record.InspectorID = c.text(record.InspectorID)
	record.OwnershipID = c.text(record.OwnershipID)

	if len(record.Violations) > 0 {
		violations := make([]domain.ViolationCitation, len(record.Violations))
		for i, v := range record.Violations {
			v.Comment = c.text(v.Comment)
			violations[i] = v
		}
		record.Violations = violations
	}
	return record
}

func (c *cleaner) text(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if _, ok := c.nullTokens[strings.ToUpper(value)]; ok {
		return ""
	}
	return value
}
