package unify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

func newTestUnifier(t *testing.T) Unifier {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	return NewUnifier(pool, Schemas, DefaultTaxonomy)
}

func raw(fields map[string]any) domain.RawRecord {
	return domain.RawRecord{Fields: fields}
}

func TestUnify_Chicago(t *testing.T) {
	u := newTestUnifier(t)

	batch := domain.RawBatch{
		SourceCity:    domain.SourceCityChicago,
		DeclaredCount: 1,
		Records: []domain.RawRecord{raw(map[string]any{
			"inspection_id":   json.Number("2345678"),
			"dba_name":        "Joe's Diner",
			"aka_name":        "JOES",
			"address":         "123 N Main St",
			"city":            "CHICAGO",
			"zip":             "60601",
			"latitude":        "41.88",
			"longitude":       json.Number("-87.62"),
			"inspection_date": "2021-01-10T00:00:00.000",
			"results":         "Pass w/ Conditions",
			"facility_type":   "Restaurant",
			"license_":        "1234",
			"violations":      "3. MANAGEMENT KNOWLEDGE - Comments: no certificate | 33. EQUIPMENT CLEAN",
		})},
	}

	result, err := u.Unify(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Rejected)
	assert.False(t, result.CountMismatch())
	assert.Equal(t, map[string]int{"chicago.aka_name": 1}, result.DroppedFields)

	r := result.Records[0]
	assert.Equal(t, "2345678", r.SourceInspectionID)
	assert.Equal(t, "Joe's Diner", r.BusinessName)
	assert.Equal(t, "123 N Main St", r.Address)
	assert.Equal(t, domain.ResultPassWithConditions, r.ResultCode)
	assert.Equal(t, "1234", r.OwnershipID)
	assert.Equal(t, "2021-01-10T00:00:00.000", r.RawInspectionDate)
	require.NotNil(t, r.Latitude)
	require.NotNil(t, r.Longitude)
	assert.InDelta(t, 41.88, *r.Latitude, 1e-9)
	assert.InDelta(t, -87.62, *r.Longitude, 1e-9)

	require.Len(t, r.Violations, 2)
	assert.Equal(t, "3", r.Violations[0].Code)
	assert.Equal(t, domain.SeverityCritical, r.Violations[0].Severity)
	assert.Equal(t, "no certificate", r.Violations[0].Comment)
	assert.Equal(t, "33", r.Violations[1].Code)
	assert.Equal(t, domain.SeverityMinor, r.Violations[1].Severity)
	assert.Empty(t, r.Violations[1].Comment)
}

func TestUnify_NewYork(t *testing.T) {
	u := newTestUnifier(t)

	batch := domain.RawBatch{
		SourceCity:    domain.SourceCityNewYork,
		DeclaredCount: 1,
		Records: []domain.RawRecord{raw(map[string]any{
			"camis":           "40356018",
			"dba":             "RIVIERA CATERERS",
			"building":        "2780",
			"street":          "STILLWELL AVENUE",
			"boro":            "Brooklyn",
			"zipcode":         "11224",
			"inspection_date": "03/14/2022",
			"grade":           "A",
			"violations": []any{
				map[string]any{"violation_code": "04L", "violation_description": "mice"},
				map[string]any{"violation_code": "10f", "violation_description": "surfaces"},
			},
		})},
	}

	result, err := u.Unify(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	r := result.Records[0]
	assert.Equal(t, "40356018-03/14/2022", r.SourceInspectionID)
	assert.Equal(t, "2780 STILLWELL AVENUE", r.Address)
	assert.Equal(t, "Brooklyn", r.City)
	assert.Equal(t, domain.ResultPass, r.ResultCode)
	assert.Nil(t, r.Latitude)
	require.Len(t, r.Violations, 2)
	assert.Equal(t, "04L", r.Violations[0].Code)
	assert.Equal(t, domain.SeverityCritical, r.Violations[0].Severity)
	assert.Equal(t, "10F", r.Violations[1].Code)
	assert.Equal(t, domain.SeverityMinor, r.Violations[1].Severity)
}

func TestUnify_SanFrancisco(t *testing.T) {
	u := newTestUnifier(t)

	batch := domain.RawBatch{
		SourceCity:    domain.SourceCitySanFrancisco,
		DeclaredCount: 1,
		Records: []domain.RawRecord{raw(map[string]any{
			"inspection_id":        "10_20220301",
			"business_name":        "Tiramisu Kitchen",
			"business_address":     "033 Belden Pl",
			"business_postal_code": "94104",
			"inspection_date":      "2022-03-01",
			"inspection_result":    "passed",
			"business_id":          "10",
			"violations": []any{
				map[string]any{"violation_id": "10_20220301_103131", "violation_description": "vermin"},
			},
		})},
	}

	result, err := u.Unify(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	r := result.Records[0]
	assert.Equal(t, "San Francisco", r.City)
	assert.Equal(t, domain.ResultPass, r.ResultCode)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "103131", r.Violations[0].Code)
	assert.Equal(t, domain.SeveritySerious, r.Violations[0].Severity)
	assert.Equal(t, "vermin", r.Violations[0].Comment)
}

func TestUnify_RecordLevelFailures(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]any
		wantKind string
	}{
		{
			name: "unknown violation code",
			fields: map[string]any{
				"inspection_id": "2", "results": "Fail",
				"violations": "99. NOT A REAL CODE",
			},
			wantKind: domain.ErrorKindSchema,
		},
		{
			name:     "unmapped result code",
			fields:   map[string]any{"inspection_id": "3", "results": "Exploded"},
			wantKind: domain.ErrorKindSchema,
		},
		{
			name:     "unparseable latitude",
			fields:   map[string]any{"inspection_id": "4", "results": "Pass", "latitude": "north"},
			wantKind: domain.ErrorKindParse,
		},
		{
			name:     "malformed violations column",
			fields:   map[string]any{"inspection_id": "5", "results": "Pass", "violations": "garbage"},
			wantKind: domain.ErrorKindSchema,
		},
		{
			name:     "missing inspection id",
			fields:   map[string]any{"results": "Pass"},
			wantKind: domain.ErrorKindSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestUnifier(t)
			good := raw(map[string]any{"inspection_id": "1", "results": "Pass", "dba_name": "OK"})
			batch := domain.RawBatch{
				SourceCity:    domain.SourceCityChicago,
				DeclaredCount: 2,
				Records:       []domain.RawRecord{good, raw(tt.fields)},
			}

			result, err := u.Unify(context.Background(), batch)
			require.NoError(t, err)

			// The batch continues past the bad record
			require.Len(t, result.Records, 1)
			assert.Equal(t, "1", result.Records[0].SourceInspectionID)
			require.Len(t, result.Rejected, 1)
			assert.Equal(t, tt.wantKind, result.Rejected[0].Kind)
			assert.Equal(t, Stage, result.Rejected[0].Stage)
		})
	}
}

func TestUnify_UnmappedResultCodeIsSchemaError(t *testing.T) {
	u := &unifier{schemas: Schemas, taxonomy: DefaultTaxonomy}

	_, err := u.resultCode(Schemas[domain.SourceCityChicago], "Exploded")
	require.Error(t, err)

	var unmapped *domain.UnmappedCodeError
	require.ErrorAs(t, err, &unmapped)
	var schemaErr *domain.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Exploded", unmapped.Value)

	code, err := u.resultCode(Schemas[domain.SourceCityChicago], "  ")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestUnify_PreservesInputOrderAcrossPartitions(t *testing.T) {
	u := newTestUnifier(t)

	n := partitionSize*3 + 7
	records := make([]domain.RawRecord, n)
	for i := range records {
		records[i] = raw(map[string]any{"inspection_id": json.Number(itoa(i)), "results": "Pass"})
	}

	result, err := u.Unify(context.Background(), domain.RawBatch{
		SourceCity:    domain.SourceCityChicago,
		DeclaredCount: n + 1,
		Records:       records,
	})
	require.NoError(t, err)
	require.Len(t, result.Records, n)
	for i, r := range result.Records {
		assert.Equal(t, itoa(i), r.SourceInspectionID)
	}
	assert.True(t, result.CountMismatch())
	assert.Equal(t, n+1, result.DeclaredCount)
	assert.Equal(t, n, result.ReceivedCount)
}

func TestUnify_UnknownSourceCity(t *testing.T) {
	u := newTestUnifier(t)

	_, err := u.Unify(context.Background(), domain.RawBatch{SourceCity: "boston"})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestUnify_Cancelled(t *testing.T) {
	u := newTestUnifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Unify(ctx, domain.RawBatch{
		SourceCity: domain.SourceCityChicago,
		Records:    []domain.RawRecord{raw(map[string]any{"inspection_id": "1"})},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "abc", stringValue("abc"))
	assert.Equal(t, "12.5", stringValue(json.Number("12.5")))
	assert.Equal(t, "41.88", stringValue(41.88))
	assert.Equal(t, "7", stringValue(7))
	assert.Equal(t, "true", stringValue(true))
}

func itoa(i int) string {
	return stringValue(i)
}
