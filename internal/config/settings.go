package config

import (
	"fmt"

	"github.com/belphemur/athan-scheduler/internal/constants"
)

// AudioSettings are the audio settings owned by the database once seeded.
// They can be changed from the API without restarting the scheduler.
type AudioSettings struct {
	OutputTarget   constants.OutputTarget `json:"output_target" db:"output_target"`
	Volume         int                    `json:"volume" db:"volume"`
	FajrVolume     int                    `json:"fajr_volume" db:"fajr_volume"`
	FajrVolumeSync bool                   `json:"fajr_volume_sync" db:"fajr_volume_sync"`
	AthanFile      string                 `json:"athan_file" db:"athan_file"`
	FajrAthanFile  string                 `json:"fajr_athan_file" db:"fajr_athan_file"`
}

// AudioSettingsFromFile builds the initial settings from the file configuration
func AudioSettingsFromFile(audio AudioConfig) AudioSettings {
	return AudioSettings{
		OutputTarget:   audio.OutputTarget,
		Volume:         audio.Volume,
		FajrVolume:     audio.FajrVolume,
		FajrVolumeSync: audio.FajrVolumeSync,
		AthanFile:      audio.AthanFile,
		FajrAthanFile:  audio.FajrAthanFile,
	}
}

// Validate checks the settings before they are persisted
func (s AudioSettings) Validate() error {
	if !s.OutputTarget.IsValid() {
		return fmt.Errorf("invalid output target: %s", s.OutputTarget)
	}
	if err := ValidateVolume(s.Volume); err != nil {
		return err
	}
	if err := ValidateVolume(s.FajrVolume); err != nil {
		return fmt.Errorf("fajr %w", err)
	}
	if s.AthanFile == "" {
		return fmt.Errorf("athan file is required")
	}
	return nil
}

// VolumeFor returns the effective volume for a prayer.
// Fajr has its own volume unless it is synced with the global one.
func (s AudioSettings) VolumeFor(isFajr bool) int {
	if isFajr && !s.FajrVolumeSync {
		return s.FajrVolume
	}
	return s.Volume
}

// FileFor returns the audio file for a prayer, falling back to the main athan for Fajr
func (s AudioSettings) FileFor(isFajr bool) string {
	if isFajr && s.FajrAthanFile != "" {
		return s.FajrAthanFile
	}
	return s.AthanFile
}

// ValidateVolume checks a volume is a percentage
func ValidateVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", volume)
	}
	return nil
}
