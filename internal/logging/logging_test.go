package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build(Config{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("cache lookup failed", zap.String("key", "product::FindByID::p-1"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cache lookup failed", entry["msg"])
	assert.Equal(t, "product::FindByID::p-1", entry["key"])
	assert.Contains(t, entry, "time")
}

func TestBuild_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build(Config{Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("started")
	assert.Contains(t, buf.String(), "started")
}

func TestBuild_Invalid(t *testing.T) {
	_, err := build(Config{Level: "loud"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	_, err = build(Config{Format: "xml"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}
