package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")
	logger.Debug("hidden")
	logger.Info("listing submitted", "property", "p-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "listing submitted", line["msg"])
	assert.Equal(t, "p-1", line["property"])
}

func TestNew_Tint(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelDebug, "tint").Debug("wizard started", "wizard", "w-1")
	assert.Contains(t, buf.String(), "wizard started")
	assert.Contains(t, buf.String(), "w-1")
}
