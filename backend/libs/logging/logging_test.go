package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	logger, err := NewLogger("ingestion-service")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewCLILogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	logger, err := NewCLILogger("telemetry-query")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "console", Format(" Console "))
	assert.Equal(t, "json", Format(""))
	assert.Equal(t, "json", Format("logfmt"))
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")

	logger, err := NewLogger("dashboard-service")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
