package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&buf),
		map[string]string{"character": "Kael", "empty": ""})
	require.NoError(t, err)

	logger.Named("executor").Info("goal started", zap.String("goal", "jedi_unlock"))
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "goal started", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "executor", entry["logger"])
	assert.Equal(t, "Kael", entry["character"])
	assert.Equal(t, "jedi_unlock", entry["goal"])
	assert.Contains(t, entry, "ts")
	assert.NotContains(t, entry, "empty")
}

func TestNewConsoleLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "console"}, zapcore.AddSync(&buf), nil)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("navigation failed")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "WARN"), out)
	assert.Contains(t, out, "navigation failed")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"}, nil, nil)
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"}, nil, nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)

	l, err = ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, l)
}

func TestNewObserved(t *testing.T) {
	logger, logs := NewObserved(zapcore.WarnLevel)
	logger.Info("skip")
	logger.Warn("keep", zap.Int("attempt", 2))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(2), logs.All()[0].ContextMap()["attempt"])
}
