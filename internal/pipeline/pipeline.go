package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/adapter"
	"github.com/feral-file/ff-inspection-warehouse/internal/assemble"
	"github.com/feral-file/ff-inspection-warehouse/internal/clean"
	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/keys"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/scd"
	"github.com/feral-file/ff-inspection-warehouse/internal/sink"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
	"github.com/feral-file/ff-inspection-warehouse/internal/unify"
	"github.com/feral-file/ff-inspection-warehouse/internal/validate"
)

// ErrAborted is returned when a run is cancelled between or during stages
var ErrAborted = errors.New("pipeline aborted")

// Stages are the transformation stages of a run, in execution order
type Stages struct {
	Unifier   unify.Unifier
	Cleaner   clean.Cleaner
	Versioner scd.Versioner
	Assembler assemble.Assembler
	Validator validate.Validator
}

// Pipeline turns raw inspection batches into a validated warehouse snapshot
type Pipeline interface {
	// Run executes every stage over the batches. Record and entity level
	// failures are collected in the result; an error means the run did not complete.
	Run(ctx context.Context, batches []domain.RawBatch) (*Result, error)
}

type pipeline struct {
	store  store.Store
	stages Stages
	sink   sink.Sink
	clock  adapter.Clock
	json   adapter.JSON
}

// New creates a pipeline. out may be nil when no export sink is configured.
func New(st store.Store, stages Stages, clock adapter.Clock, json adapter.JSON, out sink.Sink) Pipeline {
	return &pipeline{store: st, stages: stages, sink: out, clock: clock, json: json}
}

// Build wires the default stages over a store
func Build(pool pond.Pool, st store.Store, cfg *config.WarehouseConfig, clock adapter.Clock, out sink.Sink) Pipeline {
	resolver := keys.NewResolver(st)
	return New(st, Stages{
		Unifier:   unify.NewUnifier(pool, unify.Schemas, unify.DefaultTaxonomy),
		Cleaner:   clean.NewCleaner(pool, cfg.Cleaner),
		Versioner: scd.NewVersioner(pool, st, resolver),
		Assembler: assemble.NewAssembler(pool, resolver, cfg.Assembler),
		Validator: validate.NewValidator(cfg.Validator),
	}, clock, adapter.NewJSON(), out)
}

func (p *pipeline) Run(ctx context.Context, batches []domain.RawBatch) (*Result, error) {
	run := &schema.PipelineRun{
		RunID:     uuid.NewString(),
		StartedAt: p.clock.Now(),
		Status:    schema.RunStatusRunning,
	}
	ctx = logger.WithRun(ctx, run.RunID)
	result := newResult(run.RunID)

	// Audit rows are written even for runs cancelled before they start
	audit := context.WithoutCancel(ctx)
	if err := p.store.SaveRun(audit, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	logger.InfoCtx(ctx, "Pipeline run started", zap.Int("batches", len(batches)))

	err := p.run(ctx, batches, result)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if !errors.Is(err, ErrAborted) {
			err = fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}

	if finishErr := p.finish(audit, run, result, err); finishErr != nil {
		if err == nil {
			return result, finishErr
		}
		logger.ErrorCtx(ctx, finishErr)
	}
	if err != nil {
		return result, err
	}

	logger.InfoCtx(ctx, "Pipeline run finished",
		zap.String("digest", result.Digest),
		zap.Bool("validation_passed", result.Report.Passed()),
		zap.Int("inspections", result.Counters.Inspections),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("reviews", len(result.Reviews)))
	return result, nil
}

// stage checks for cancellation at a stage boundary and returns the stage context
func stage(ctx context.Context, name string) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, fmt.Errorf("%w before %s: %w", ErrAborted, name, err)
	}
	return logger.WithStage(ctx, name), nil
}

func (p *pipeline) run(ctx context.Context, batches []domain.RawBatch, result *Result) error {
	stageCtx, err := stage(ctx, unify.Stage)
	if err != nil {
		return err
	}
	var unified []domain.InspectionRecord
	for _, batch := range batches {
		res, err := p.stages.Unifier.Unify(stageCtx, batch)
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			// The whole batch is unusable; later batches still run
			logger.WarnCtx(stageCtx, "Batch rejected", zap.String("source_city", string(batch.SourceCity)), zap.Error(err))
			result.Counters.RecordsIn += len(batch.Records)
			result.reject(domain.NewRejection(unify.Stage, string(batch.SourceCity), err, nil))
			continue
		}
		if err != nil {
			return err
		}
		result.addUnified(res)
		unified = append(unified, res.Records...)
	}

	stageCtx, err = stage(ctx, clean.Stage)
	if err != nil {
		return err
	}
	cleaned, err := p.stages.Cleaner.Clean(stageCtx, unified)
	if err != nil {
		return err
	}
	result.addCleaned(cleaned)

	stageCtx, err = stage(ctx, scd.Stage)
	if err != nil {
		return err
	}
	sightings := make([]scd.Sighting, 0, len(cleaned.Records))
	for _, r := range cleaned.Records {
		sightings = append(sightings, scd.NewSighting(r))
	}
	versioned, err := p.stages.Versioner.Version(stageCtx, sightings)
	if err != nil {
		return err
	}
	result.addVersioned(versioned)

	// Barrier: assembly only starts once every entity history is committed
	snapshot, err := p.stages.Versioner.Snapshot(stageCtx, versioned.Identities)
	if err != nil {
		return err
	}

	stageCtx, err = stage(ctx, assemble.Stage)
	if err != nil {
		return err
	}
	excluded := versioned.Excluded()
	records := make([]domain.InspectionRecord, 0, len(cleaned.Records))
	for _, r := range cleaned.Records {
		if _, ok := excluded[r.NaturalKey()]; !ok {
			records = append(records, r)
		}
	}
	assembled, err := p.stages.Assembler.Assemble(stageCtx, records, snapshot)
	if err != nil {
		return err
	}
	result.addAssembled(assembled)

	stageCtx, err = stage(ctx, "validate")
	if err != nil {
		return err
	}
	nullRates := make(map[string]float64, len(clean.CriticalFields))
	for _, field := range clean.CriticalFields {
		nullRates[field] = cleaned.NullRate(field)
	}
	persisted, err := p.persistedFacts(stageCtx, versioned.Changed, snapshot)
	if err != nil {
		return err
	}
	result.Report = p.stages.Validator.Validate(assembled.Warehouse, nullRates, persisted)
	result.Digest, err = assembled.Warehouse.Digest()
	if err != nil {
		return err
	}

	stageCtx, err = stage(ctx, "publish")
	if err != nil {
		return err
	}
	if err := p.store.SaveWarehouse(stageCtx, assembled.Warehouse); err != nil {
		return fmt.Errorf("failed to save warehouse: %w", err)
	}
	if p.sink != nil {
		if err := p.sink.Export(stageCtx, assembled.Warehouse); err != nil {
			return fmt.Errorf("failed to export warehouse: %w", err)
		}
	}
	return nil
}

// persistedFacts loads the facts saved by earlier runs against the versions of
// entities whose history this run changed
func (p *pipeline) persistedFacts(ctx context.Context, changed []string, snapshot *scd.Snapshot) ([]domain.FactInspection, error) {
	if len(changed) == 0 {
		return nil, nil
	}
	var restaurantKeys []int64
	for _, businessNK := range changed {
		for _, v := range snapshot.History(businessNK) {
			restaurantKeys = append(restaurantKeys, v.RestaurantKey)
		}
	}
	facts, err := p.store.ListInspectionFacts(ctx, restaurantKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted inspection facts: %w", err)
	}
	return facts, nil
}

// finish persists the rejected-record log and the final run row
func (p *pipeline) finish(ctx context.Context, run *schema.PipelineRun, result *Result, runErr error) error {
	finished := p.clock.Now()
	run.FinishedAt = &finished
	run.RecordsIn = result.Counters.RecordsIn
	run.RecordsRejected = len(result.Rejected)
	run.Inspections = result.Counters.Inspections
	run.Versions = result.Counters.Versions
	run.ReviewFlags = len(result.Reviews)
	run.Digest = result.Digest

	switch {
	case runErr == nil:
		run.Status = schema.RunStatusSucceeded
	case errors.Is(runErr, ErrAborted):
		run.Status = schema.RunStatusAborted
	default:
		run.Status = schema.RunStatusFailed
	}
	result.Status = run.Status

	if result.Report != nil {
		run.ValidationPassed = result.Report.Passed()
		report, err := p.json.Marshal(result.Report)
		if err != nil {
			return fmt.Errorf("failed to marshal validation report: %w", err)
		}
		run.Report = report
	}

	// Review flags share the rejected-records log under their own error kind
	logged := make([]domain.Rejection, 0, len(result.Rejected)+len(result.Reviews))
	logged = append(logged, result.Rejected...)
	for _, flag := range result.Reviews {
		logged = append(logged, domain.Rejection{
			Stage:      scd.Stage,
			Kind:       domain.ErrorKindReview,
			NaturalKey: flag.RecordNK,
			Message:    flag.Reason,
			Payload:    flag,
		})
	}
	if len(logged) > 0 {
		if err := p.store.SaveRejections(ctx, p.rejectedRecords(ctx, run.RunID, logged)); err != nil {
			return fmt.Errorf("failed to save rejected records: %w", err)
		}
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	return nil
}

func (p *pipeline) rejectedRecords(ctx context.Context, runID string, rejections []domain.Rejection) []schema.RejectedRecord {
	records := make([]schema.RejectedRecord, 0, len(rejections))
	for _, rej := range rejections {
		var payload []byte
		if rej.Payload != nil {
			var err error
			payload, err = p.json.Marshal(rej.Payload)
			if err != nil {
				logger.WarnCtx(ctx, "Failed to marshal rejected payload", zap.String("natural_key", rej.NaturalKey), zap.Error(err))
				payload = nil
			}
		}
		records = append(records, schema.RejectedRecord{
			ID:         ulid.MustNewDefault(p.clock.Now()).String(),
			RunID:      runID,
			Stage:      rej.Stage,
			ErrorKind:  rej.Kind,
			NaturalKey: rej.NaturalKey,
			Message:    rej.Message,
			Payload:    payload,
		})
	}
	return records
}
