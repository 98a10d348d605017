package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_AttachesRunAndStage(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	previous := log
	log = zap.New(core)
	t.Cleanup(func() { log = previous })

	ctx := WithStage(WithRun(context.Background(), "run-1"), "versioner")
	InfoCtx(ctx, "stage finished", zap.Int("entities", 3))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "versioner", fields["stage"])
		assert.Equal(t, int64(3), fields["entities"])
	}
}

func TestFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", RunID(context.Background()))
	assert.Equal(t, "", Stage(context.Background()))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestInitialize_WithoutSentry(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	assert.NoError(t, Initialize(Config{Debug: true}))
	assert.True(t, Default().Core().Enabled(zapcore.DebugLevel))

	assert.NoError(t, Initialize(Config{}))
	assert.False(t, Default().Core().Enabled(zapcore.DebugLevel))
}
