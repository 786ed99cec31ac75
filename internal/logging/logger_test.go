package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestWithContextAddsRunID(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := ContextWithRunID(context.Background(), "run-42")
	WithContext(ctx, logger).Info("contextual log")
	WithContext(context.Background(), logger).Info("plain log")

	records := observed.All()
	require.Len(t, records, 2)
	assert.Equal(t, "run-42", records[0].ContextMap()["run_id"])
	assert.NotContains(t, records[1].ContextMap(), "run_id")

	id, ok := RunIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-42", id)
	_, ok = RunIDFromContext(ContextWithRunID(context.Background(), ""))
	assert.False(t, ok)
	assert.NotNil(t, WithContext(ctx, nil))
}
