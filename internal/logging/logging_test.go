package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicmgr/clinic/internal/config"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"shouting", zerolog.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			logger := New(config.Log{Level: tc.level}, &bytes.Buffer{})
			assert.Equal(t, tc.expected, logger.GetLevel())
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Log{Level: "info"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("patient_code", "P202603140001").Msg("patient created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "patient created", entry["message"])
	assert.Equal(t, "P202603140001", entry["patient_code"])
	assert.Contains(t, entry, "time")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Log{Level: "info", Pretty: true}, &buf)
	logger.Info().Msg("queue opened")

	assert.Contains(t, buf.String(), "queue opened")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestTaskLogger(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTaskLogger(New(config.Log{Level: "info"}, &buf))

	tl.Info("task completed", "queue", "backup_database", "attempt", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tasks", entry["component"])
	assert.Equal(t, "backup_database", entry["queue"])
	assert.Equal(t, float64(1), entry["attempt"])

	buf.Reset()
	tl.Error("task failed", "orphan")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "orphan", entry["extra"])
}
