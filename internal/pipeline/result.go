package pipeline

import (
	"github.com/feral-file/ff-inspection-warehouse/internal/assemble"
	"github.com/feral-file/ff-inspection-warehouse/internal/clean"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/scd"
	"github.com/feral-file/ff-inspection-warehouse/internal/unify"
	"github.com/feral-file/ff-inspection-warehouse/internal/validate"
)

// Counters summarizes a run
type Counters struct {
	Batches     int `json:"batches"`
	RecordsIn   int `json:"records_in"`
	Unified     int `json:"unified"`
	Cleaned     int `json:"cleaned"`
	Duplicates  int `json:"duplicates"`
	Entities    int `json:"entities"`
	Versions    int `json:"versions"`
	Inspections int `json:"inspections"`
	Citations   int `json:"citations"`
	// DroppedFields counts unmapped source fields by "<city>.<field>"
	DroppedFields map[string]int `json:"dropped_fields"`
	// CountMismatches lists batches whose size differs from the declared count
	CountMismatches []domain.SourceCity     `json:"count_mismatches,omitempty"`
	Outcomes        map[scd.OutcomeKind]int `json:"outcomes"`
}

// Result is the outcome of one pipeline run. Stages add to it in order.
type Result struct {
	RunID     string
	Status    string
	Warehouse *domain.Warehouse
	Report    *validate.Report
	Digest    string
	Rejected  []domain.Rejection
	Reviews   []scd.ReviewFlag
	Counters  Counters
}

func newResult(runID string) *Result {
	return &Result{
		RunID: runID,
		Counters: Counters{
			DroppedFields: make(map[string]int),
			Outcomes:      make(map[scd.OutcomeKind]int),
		},
	}
}

func (r *Result) reject(rejections ...domain.Rejection) {
	r.Rejected = append(r.Rejected, rejections...)
}

func (r *Result) addUnified(res *unify.Result) {
	r.Counters.Batches++
	r.Counters.RecordsIn += res.ReceivedCount
	r.Counters.Unified += len(res.Records)
	for field, n := range res.DroppedFields {
		r.Counters.DroppedFields[field] += n
	}
	if res.CountMismatch() {
		r.Counters.CountMismatches = append(r.Counters.CountMismatches, res.SourceCity)
	}
	r.reject(res.Rejected...)
}

func (r *Result) addCleaned(res *clean.Result) {
	r.Counters.Cleaned = len(res.Records)
	r.Counters.Duplicates = res.Duplicates
	r.reject(res.Rejected...)
}

func (r *Result) addVersioned(res *scd.Result) {
	r.Counters.Entities = len(res.Entities)
	for kind, n := range res.Outcomes {
		r.Counters.Outcomes[kind] += n
	}
	r.Reviews = append(r.Reviews, res.Reviews...)
	r.reject(res.Rejected...)
}

func (r *Result) addAssembled(res *assemble.Result) {
	r.Warehouse = res.Warehouse
	r.Counters.Versions = len(res.Warehouse.Restaurants)
	r.Counters.Inspections = len(res.Warehouse.Inspections)
	r.Counters.Citations = len(res.Warehouse.InspectionViols)
	r.reject(res.Rejected...)
}
