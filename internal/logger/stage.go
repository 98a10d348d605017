package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
)

// WithRun returns a context whose log entries carry the pipeline run ID
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithStage returns a context whose log entries carry the pipeline stage name
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// RunID returns the run ID carried by ctx, if any
func RunID(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey).(string)
	return runID
}

// Stage returns the stage name carried by ctx, if any
func Stage(ctx context.Context) string {
	stage, _ := ctx.Value(stageKey).(string)
	return stage
}

func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if runID := RunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if stage := Stage(ctx); stage != "" {
		fields = append(fields, zap.String("stage", stage))
	}
	return fields
}
