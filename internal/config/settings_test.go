package config

import (
	"testing"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/stretchr/testify/assert"
)

func TestAudioSettings_VolumeFor(t *testing.T) {
	tests := []struct {
		name     string
		settings AudioSettings
		isFajr   bool
		expected int
	}{
		{"regular prayer uses global volume", AudioSettings{Volume: 80, FajrVolume: 30}, false, 80},
		{"fajr uses its own volume", AudioSettings{Volume: 80, FajrVolume: 30}, true, 30},
		{"fajr synced uses global volume", AudioSettings{Volume: 80, FajrVolume: 30, FajrVolumeSync: true}, true, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.VolumeFor(tt.isFajr))
		})
	}
}

func TestAudioSettings_FileFor(t *testing.T) {
	s := AudioSettings{AthanFile: "athan.mp3"}
	assert.Equal(t, "athan.mp3", s.FileFor(true), "fajr falls back to the main athan")
	assert.Equal(t, "athan.mp3", s.FileFor(false))

	s.FajrAthanFile = "fajr.mp3"
	assert.Equal(t, "fajr.mp3", s.FileFor(true))
	assert.Equal(t, "athan.mp3", s.FileFor(false))
}

func TestAudioSettings_Validate(t *testing.T) {
	valid := AudioSettings{OutputTarget: constants.OutputBoth, Volume: 50, FajrVolume: 20, AthanFile: "athan.mp3"}
	assert.NoError(t, valid.Validate())

	invalid := valid
	invalid.OutputTarget = "speaker"
	assert.ErrorContains(t, invalid.Validate(), "invalid output target")

	invalid = valid
	invalid.FajrVolume = -1
	assert.ErrorContains(t, invalid.Validate(), "fajr volume must be between 0 and 100")

	invalid = valid
	invalid.AthanFile = ""
	assert.ErrorContains(t, invalid.Validate(), "athan file is required")
}

func TestAudioSettingsFromFile(t *testing.T) {
	s := AudioSettingsFromFile(AudioConfig{
		OutputTarget:  constants.OutputBrowser,
		Volume:        65,
		FajrVolume:    25,
		AthanFile:     "a.mp3",
		FajrAthanFile: "f.mp3",
		Directory:     "/ignored",
	})
	assert.Equal(t, AudioSettings{
		OutputTarget:  constants.OutputBrowser,
		Volume:        65,
		FajrVolume:    25,
		AthanFile:     "a.mp3",
		FajrAthanFile: "f.mp3",
	}, s)
}
