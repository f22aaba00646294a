package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggers(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready", zap.Bool("development", dev))
		_ = logger.Sync()
	}
	dev, err := New(true)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
	prod, err := New(false)
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
}

func TestFilterSIdWarnings(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(FilterSIdWarnings(core)).With(zap.String("filename", "model.xml"))

	logger.Debug("'1-bad' is not a valid SBML 'SId'.")
	logger.Debug("species 'M_x' has no compartment")
	logger.Warn("'2-bad' is not a valid SBML 'SId'.")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "species 'M_x' has no compartment", entries[0].Message)
	assert.Equal(t, "model.xml", entries[0].ContextMap()["filename"])
}
