package logging

import (
	"testing"

	"github/itish2003/ragqa/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			logger, err := New(config.LoggingConfig{Level: "debug", Format: format})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestNew_Level(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10).String)
	assert.Equal(t, "hel...", Truncate("hello", 3).String)
}
