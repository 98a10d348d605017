package unify

// Canonical field names of the unified inspection schema
const (
	FieldInspectionID   = "source_inspection_id"
	FieldBusinessName   = "business_name"
	FieldAddressNumber  = "address_number"
	FieldAddress        = "address"
	FieldCity           = "city"
	FieldZip            = "zip"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldInspectionDate = "inspection_date"
	FieldResultCode     = "result_code"
	FieldFacilityType   = "facility_type"
	FieldInspectorID    = "inspector_id"
	FieldOwnershipID    = "ownership_id"
	FieldViolations     = "violations"
)
