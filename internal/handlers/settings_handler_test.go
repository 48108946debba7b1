package handlers

import (
	"net/http"
	"testing"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSettings(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/settings", nil)
	requireStatus(t, w, http.StatusOK)

	resp := decode[SettingsResponse](t, w)
	assert.Equal(t, constants.OutputServer, resp.Settings.OutputTarget)
	assert.Equal(t, 80, resp.Settings.Volume)
	assert.Equal(t, 40, resp.Settings.FajrVolume)
	assert.Equal(t, constants.GetAllOutputTargets(), resp.OutputTargets)
}

func TestUpdateSettings(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{
		"output_target":    " Browser ",
		"volume":           55,
		"fajr_volume":      20,
		"fajr_volume_sync": false,
		"athan_file":       "makkah.mp3",
		"fajr_athan_file":  "fajr.mp3",
	})
	requireStatus(t, w, http.StatusOK)

	resp := decode[successBody[config.AudioSettings]](t, w)
	assert.Equal(t, SuccessCodeSettingsUpdated, resp.Code)
	assert.Equal(t, constants.OutputBrowser, resp.Data.OutputTarget)
	assert.Equal(t, "makkah.mp3", resp.Data.AthanFile)

	stored, err := s.settings.GetAudioSettings(t.Context())
	require.NoError(t, err)
	assert.Equal(t, resp.Data, stored)
	assert.Equal(t, 20, stored.VolumeFor(true))
	assert.Equal(t, "fajr.mp3", stored.FileFor(true))
}

func TestUpdateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body any
		code string
	}{
		{
			name: "volume above 100",
			body: map[string]any{"output_target": "server", "volume": 101, "fajr_volume": 50, "athan_file": "athan.mp3"},
			code: ErrCodeInvalidSettings,
		},
		{
			name: "unknown target",
			body: map[string]any{"output_target": "radio", "volume": 50, "fajr_volume": 50, "athan_file": "athan.mp3"},
			code: ErrCodeInvalidSettings,
		},
		{
			name: "missing file",
			body: map[string]any{"output_target": "server", "volume": 50, "fajr_volume": 50},
			code: ErrCodeInvalidSettings,
		},
		{
			name: "not an object",
			body: []int{1, 2},
			code: ErrCodeInvalidRequest,
		},
	}

	s := setupServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, "/api/settings", tt.body)
			requireStatus(t, w, http.StatusBadRequest)
			assert.Equal(t, tt.code, decode[errorEnvelope](t, w).Error.Code)
		})
	}

	// Rejected updates leave the stored settings untouched
	stored, err := s.settings.GetAudioSettings(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 80, stored.Volume)
	assert.Equal(t, constants.OutputServer, stored.OutputTarget)
}
