package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"prod", "", zapcore.InfoLevel},
		{"dev", "", zapcore.DebugLevel},
		{"prod", "warn", zapcore.WarnLevel},
		{"dev", "error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		logger, err := NewLogger(tt.env, tt.level)
		require.NoError(t, err)
		assert.Equal(t, tt.want, logger.Level(), "%s/%s", tt.env, tt.level)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewSugar("dev", "loud")
	assert.Error(t, err)
}
