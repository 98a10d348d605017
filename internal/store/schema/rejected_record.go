package schema

import (
	"time"

	"gorm.io/datatypes"
)

// RejectedRecord represents the rejected_records table - records and entities excluded from a run
type RejectedRecord struct {
	// ID is a ULID so rows sort by creation time
	ID    string `gorm:"column:id;primaryKey;type:varchar(26)"`
	RunID string `gorm:"column:run_id;not null;type:varchar(36);index"`
	// Stage is the pipeline stage that rejected the record
	Stage string `gorm:"column:stage;not null;type:varchar(32)"`
	// ErrorKind classifies the failure (schema, parse, integrity, ...)
	ErrorKind  string `gorm:"column:error_kind;not null;type:varchar(32)"`
	NaturalKey string `gorm:"column:natural_key;not null;type:text"`
	Message    string `gorm:"column:message;not null;type:text"`
	// Payload is the offending record as JSON
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RejectedRecord model
func (RejectedRecord) TableName() string {
	return "rejected_records"
}
