package schema

import (
	"time"

	"gorm.io/datatypes"
)

// PipelineRun represents the pipeline_runs table - audit log of pipeline runs
type PipelineRun struct {
	// RunID is the UUID of the run
	RunID      string     `gorm:"column:run_id;primaryKey;type:varchar(36)"`
	StartedAt  time.Time  `gorm:"column:started_at;not null;type:timestamptz"`
	FinishedAt *time.Time `gorm:"column:finished_at;type:timestamptz"`
	// Status is one of running, succeeded, failed or aborted
	Status          string `gorm:"column:status;not null;type:varchar(16)"`
	RecordsIn       int    `gorm:"column:records_in;not null;default:0"`
	RecordsRejected int    `gorm:"column:records_rejected;not null;default:0"`
	Inspections     int    `gorm:"column:inspections;not null;default:0"`
	Versions        int    `gorm:"column:versions;not null;default:0"`
	ReviewFlags     int    `gorm:"column:review_flags;not null;default:0"`
	// Digest is the canonical snapshot digest of the produced warehouse
	Digest string `gorm:"column:digest;type:varchar(64)"`
	// ValidationPassed is whether every integrity check passed
	ValidationPassed bool `gorm:"column:validation_passed;not null;default:false"`
	// Report is the full validation report as JSON
	Report    datatypes.JSON `gorm:"column:report;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PipelineRun model
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusAborted   = "aborted"
)
