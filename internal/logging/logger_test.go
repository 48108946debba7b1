package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, false)

	logger := GetLogger("scheduler")
	logger.Info().Msg("armed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "armed", entry["message"])
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
		ok       bool
	}{
		{"debug", "debug", zerolog.DebugLevel, true},
		{"warn", "warn", zerolog.WarnLevel, true},
		{"uppercase", "ERROR", zerolog.ErrorLevel, true},
		{"empty falls back to info", "", zerolog.InfoLevel, false},
		{"garbage falls back to info", "loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := SetLogLevel(tt.level)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, zerolog.GlobalLevel())
		})
	}
}
