package unify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// rawCitation is a violation citation as read from a source, before taxonomy lookup
type rawCitation struct {
	Code    string
	Comment string
}

// SourceSchema describes how one city's records map onto the canonical schema
type SourceSchema struct {
	City domain.SourceCity
	// DefaultCity is used when the record carries no city of its own
	DefaultCity string
	// Fields maps a source field name to exactly one canonical field
	Fields map[string]string
	// ResultCodes maps an upper-cased source result value to its canonical code
	ResultCodes map[string]domain.ResultCode
	// ParseViolations decodes the source violations value into citations
	ParseViolations func(value any) ([]rawCitation, error)
	// DeriveInspectionID builds an inspection id for sources that have none
	DeriveInspectionID func(fields map[string]string) string
}

// Schemas is the static mapping table keyed by source city
var Schemas = map[domain.SourceCity]*SourceSchema{
	domain.SourceCityChicago: {
		City:        domain.SourceCityChicago,
		DefaultCity: "Chicago",
		Fields: map[string]string{
			"inspection_id":   FieldInspectionID,
			"dba_name":        FieldBusinessName,
			"address":         FieldAddress,
			"city":            FieldCity,
			"zip":             FieldZip,
			"latitude":        FieldLatitude,
			"longitude":       FieldLongitude,
			"inspection_date": FieldInspectionDate,
			"results":         FieldResultCode,
			"facility_type":   FieldFacilityType,
			"license_":        FieldOwnershipID,
			"violations":      FieldViolations,
		},
		ResultCodes: map[string]domain.ResultCode{
			"PASS":                 domain.ResultPass,
			"PASS W/ CONDITIONS":   domain.ResultPassWithConditions,
			"FAIL":                 domain.ResultFail,
			"NO ENTRY":             domain.ResultNoEntry,
			"OUT OF BUSINESS":      domain.ResultClosed,
			"BUSINESS NOT LOCATED": domain.ResultClosed,
			"NOT READY":            domain.ResultNotReady,
		},
		ParseViolations: parseChicagoViolations,
	},
	domain.SourceCityNewYork: {
		City:        domain.SourceCityNewYork,
		DefaultCity: "New York",
		Fields: map[string]string{
			"camis":               FieldOwnershipID,
			"dba":                 FieldBusinessName,
			"building":            FieldAddressNumber,
			"street":              FieldAddress,
			"boro":                FieldCity,
			"zipcode":             FieldZip,
			"latitude":            FieldLatitude,
			"longitude":           FieldLongitude,
			"inspection_date":     FieldInspectionDate,
			"grade":               FieldResultCode,
			"cuisine_description": FieldFacilityType,
			"inspector_id":        FieldInspectorID,
			"violations":          FieldViolations,
		},
		ResultCodes: map[string]domain.ResultCode{
			"A": domain.ResultPass,
			"B": domain.ResultPassWithConditions,
			"C": domain.ResultFail,
			"N": domain.ResultNotReady,
			"P": domain.ResultNotReady,
			"Z": domain.ResultNotReady,
			"X": domain.ResultClosed,
		},
		ParseViolations: parseObjectViolations("violation_code", "violation_description", nil),
		// DOHMH exports carry no inspection id; an inspection is a (camis, date) pair
		DeriveInspectionID: func(fields map[string]string) string {
			if fields[FieldOwnershipID] == "" || fields[FieldInspectionDate] == "" {
				return ""
			}
			return fields[FieldOwnershipID] + "-" + fields[FieldInspectionDate]
		},
	},
	domain.SourceCitySanFrancisco: {
		City:        domain.SourceCitySanFrancisco,
		DefaultCity: "San Francisco",
		Fields: map[string]string{
			"inspection_id":        FieldInspectionID,
			"business_name":        FieldBusinessName,
			"business_address":     FieldAddress,
			"business_city":        FieldCity,
			"business_postal_code": FieldZip,
			"business_latitude":    FieldLatitude,
			"business_longitude":   FieldLongitude,
			"inspection_date":      FieldInspectionDate,
			"inspection_result":    FieldResultCode,
			"inspection_type":      FieldFacilityType,
			"inspector":            FieldInspectorID,
			"business_id":          FieldOwnershipID,
			"violations":           FieldViolations,
		},
		ResultCodes: map[string]domain.ResultCode{
			"PASSED":            domain.ResultPass,
			"CONDITIONAL PASS":  domain.ResultPassWithConditions,
			"FAILED":            domain.ResultFail,
			"UNABLE TO INSPECT": domain.ResultNoEntry,
			"CLOSED":            domain.ResultClosed,
		},
		// violation_id is "<business>_<yyyymmdd>_<code>"
		ParseViolations: parseObjectViolations("violation_id", "violation_description", func(id string) string {
			if i := strings.LastIndex(id, "_"); i >= 0 {
				return id[i+1:]
			}
			return id
		}),
	},
}

// chicagoCitation matches "12. DESCRIPTION - Comments: free text"
var chicagoCitation = regexp.MustCompile(`^\s*(\d+)\.\s*(.*?)(?:\s+-\s+Comments:\s*(.*))?\s*$`)

// parseChicagoViolations decodes the pipe-delimited Chicago violations column
func parseChicagoViolations(value any) ([]rawCitation, error) {
	text := stringValue(value)
	if text == "" {
		return nil, nil
	}

	var citations []rawCitation
	for _, part := range strings.Split(text, "|") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m := chicagoCitation.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("unrecognized citation %q", strings.TrimSpace(part))
		}
		citations = append(citations, rawCitation{Code: m[1], Comment: strings.TrimSpace(m[3])})
	}
	return citations, nil
}

// parseObjectViolations decodes a JSON list of citation objects
func parseObjectViolations(codeKey, commentKey string, codeOf func(string) string) func(any) ([]rawCitation, error) {
	return func(value any) ([]rawCitation, error) {
		if value == nil {
			return nil, nil
		}
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of citations, got %T", value)
		}

		citations := make([]rawCitation, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected a citation object, got %T", item)
			}
			code := stringValue(obj[codeKey])
			if codeOf != nil {
				code = codeOf(code)
			}
			citations = append(citations, rawCitation{Code: code, Comment: stringValue(obj[commentKey])})
		}
		return citations, nil
	}
}
