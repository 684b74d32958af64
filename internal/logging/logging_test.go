package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerBeforeInitialize(t *testing.T) {
	_zapLogger = nil
	assert.NotNil(t, Logger())
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		debugMode bool
		wantLevel zapcore.Level
	}{
		{"info", false, zapcore.InfoLevel},
		{"debug", true, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Initialize(false, tt.debugMode, false)
			require.NoError(t, err)

			assert.Same(t, logger, Logger())
			assert.True(t, logger.Desugar().Core().Enabled(tt.wantLevel))
			assert.Equal(t, tt.debugMode, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
		})
	}
}
