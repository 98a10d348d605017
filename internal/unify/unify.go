package unify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
)

const (
	// Stage is the stage name recorded on rejections
	Stage = "unify"

	// partitionSize is the number of records unified per pool task
	partitionSize = 256
)

// Result is the output of unifying one raw batch
type Result struct {
	SourceCity    domain.SourceCity
	Records       []domain.InspectionRecord
	Rejected      []domain.Rejection
	DroppedFields map[string]int // "<city>.<field>" -> occurrences
	DeclaredCount int
	ReceivedCount int
}

// CountMismatch reports whether the batch size disagrees with the declared count
func (r *Result) CountMismatch() bool {
	return r.DeclaredCount != r.ReceivedCount
}

// Unifier maps raw per-city records onto the canonical inspection schema
type Unifier interface {
	// Unify maps every record of the batch. Record-level failures are rejected
	// and returned in the result; only batch-level problems return an error.
	Unify(ctx context.Context, batch domain.RawBatch) (*Result, error)
}

type unifier struct {
	pool     pond.Pool
	schemas  map[domain.SourceCity]*SourceSchema
	taxonomy Taxonomy
}

// NewUnifier creates a unifier using the static mapping table and taxonomy
func NewUnifier(pool pond.Pool, schemas map[domain.SourceCity]*SourceSchema, taxonomy Taxonomy) Unifier {
	return &unifier{pool: pool, schemas: schemas, taxonomy: taxonomy}
}

// partition is the outcome of unifying a contiguous slice of a batch
type partition struct {
	records  []domain.InspectionRecord
	rejected []domain.Rejection
	dropped  map[string]int
}

// Unify maps every record of the batch onto the canonical schema
func (u *unifier) Unify(ctx context.Context, batch domain.RawBatch) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema, ok := u.schemas[batch.SourceCity]
	if !ok {
		return nil, &domain.SchemaError{
			SourceCity: batch.SourceCity,
			Field:      "source_city",
			Value:      string(batch.SourceCity),
			Reason:     "no mapping table for source city",
		}
	}

	parts := make([]partition, (len(batch.Records)+partitionSize-1)/partitionSize)
	group := u.pool.NewGroupContext(ctx)
	for i := range parts {
		start := i * partitionSize
		end := min(start+partitionSize, len(batch.Records))
		group.Submit(func() {
			parts[i] = u.unifyPartition(schema, batch.Records[start:end])
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to unify %s batch: %w", batch.SourceCity, err)
	}

	// Merge in input order so output does not depend on scheduling
	result := &Result{
		SourceCity:    batch.SourceCity,
		DroppedFields: make(map[string]int),
		DeclaredCount: batch.DeclaredCount,
		ReceivedCount: len(batch.Records),
	}
	for _, p := range parts {
		result.Records = append(result.Records, p.records...)
		result.Rejected = append(result.Rejected, p.rejected...)
		for field, n := range p.dropped {
			result.DroppedFields[field] += n
		}
	}

	if result.CountMismatch() {
		logger.WarnCtx(ctx, "Batch row count differs from declared count",
			zap.String("source_city", string(batch.SourceCity)),
			zap.Int("declared", batch.DeclaredCount),
			zap.Int("received", result.ReceivedCount))
	}
	if len(result.DroppedFields) > 0 {
		logger.InfoCtx(ctx, "Dropped unmapped source fields",
			zap.String("source_city", string(batch.SourceCity)),
			zap.Any("dropped_fields", result.DroppedFields))
	}
	for _, rejection := range result.Rejected {
		logger.WarnCtx(ctx, "Rejected record during unification",
			zap.String("natural_key", rejection.NaturalKey),
			zap.String("kind", rejection.Kind),
			zap.String("reason", rejection.Message))
	}

	return result, nil
}

func (u *unifier) unifyPartition(schema *SourceSchema, records []domain.RawRecord) partition {
	p := partition{dropped: make(map[string]int)}
	for _, raw := range records {
		record, err := u.unifyRecord(schema, raw, p.dropped)
		if err != nil {
			key := string(schema.City) + domain.NK_SEPARATOR + record.SourceInspectionID
			p.rejected = append(p.rejected, domain.NewRejection(Stage, key, err, raw.Fields))
			continue
		}
		p.records = append(p.records, record)
	}
	return p
}

// unifyRecord maps one raw record. The returned record carries the inspection
// id even on error so the rejection can be traced back to its source.
func (u *unifier) unifyRecord(schema *SourceSchema, raw domain.RawRecord, dropped map[string]int) (domain.InspectionRecord, error) {
	values := make(map[string]string, len(schema.Fields))
	var violationsValue any

	// Iterate in sorted order so error reporting is deterministic
	names := make([]string, 0, len(raw.Fields))
	for name := range raw.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		canonical, ok := schema.Fields[strings.ToLower(name)]
		if !ok {
			dropped[string(schema.City)+"."+name]++
			continue
		}
		if canonical == FieldViolations {
			violationsValue = raw.Fields[name]
			continue
		}
		values[canonical] = stringValue(raw.Fields[name])
	}

	record := domain.InspectionRecord{
		SourceCity:         schema.City,
		SourceInspectionID: strings.TrimSpace(values[FieldInspectionID]),
		BusinessName:       values[FieldBusinessName],
		Address:            joinAddress(values[FieldAddressNumber], values[FieldAddress]),
		City:               values[FieldCity],
		Zip:                values[FieldZip],
		RawInspectionDate:  values[FieldInspectionDate],
		FacilityType:       values[FieldFacilityType],
		InspectorID:        values[FieldInspectorID],
		OwnershipID:        values[FieldOwnershipID],
	}
	if record.SourceInspectionID == "" && schema.DeriveInspectionID != nil {
		record.SourceInspectionID = schema.DeriveInspectionID(values)
	}
	if strings.TrimSpace(record.City) == "" {
		record.City = schema.DefaultCity
	}
	if record.SourceInspectionID == "" {
		return record, &domain.SchemaError{
			SourceCity: schema.City,
			Field:      FieldInspectionID,
			Reason:     "record has no inspection id",
		}
	}

	code, err := u.resultCode(schema, values[FieldResultCode])
	if err != nil {
		return record, err
	}
	record.ResultCode = code

	if record.Latitude, err = coordinate(FieldLatitude, values[FieldLatitude]); err != nil {
		return record, err
	}
	if record.Longitude, err = coordinate(FieldLongitude, values[FieldLongitude]); err != nil {
		return record, err
	}

	citations, err := schema.ParseViolations(violationsValue)
	if err != nil {
		return record, &domain.SchemaError{
			SourceCity: schema.City,
			Field:      FieldViolations,
			Value:      stringValue(violationsValue),
			Reason:     err.Error(),
		}
	}
	for _, citation := range citations {
		entry, ok := u.taxonomy.Lookup(schema.City, citation.Code)
		if !ok {
			return record, &domain.SchemaError{
				SourceCity: schema.City,
				Field:      FieldViolations,
				Value:      citation.Code,
				Reason:     "violation code is not in the taxonomy",
			}
		}
		record.Violations = append(record.Violations, domain.ViolationCitation{
			Code:        strings.ToUpper(strings.TrimSpace(citation.Code)),
			Description: entry.Description,
			Severity:    entry.Severity,
			Comment:     citation.Comment,
		})
	}

	return record, nil
}

// resultCode maps a source result value. Missing values are left empty for the
// cleaner to measure; unknown values are errors.
func (u *unifier) resultCode(schema *SourceSchema, value string) (domain.ResultCode, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	if normalized == "" {
		return "", nil
	}
	code, ok := schema.ResultCodes[normalized]
	if !ok {
		return "", domain.NewUnmappedCodeError(schema.City, FieldResultCode, value)
	}
	return code, nil
}

func coordinate(field, value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &domain.ParseError{Field: field, Value: value, Err: err}
	}
	return &f, nil
}

func joinAddress(number, street string) string {
	number, street = strings.TrimSpace(number), strings.TrimSpace(street)
	if number == "" {
		return street
	}
	return number + " " + street
}

// stringValue renders a decoded JSON value as text
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
