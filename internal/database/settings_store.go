package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
)

// StoredAudioSettings are the audio settings with their row metadata
type StoredAudioSettings struct {
	config.AudioSettings
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SettingsStore handles the audio settings row
type SettingsStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db, logger: logging.GetLogger("settings-store")}
}

// GetAudioSettings retrieves the audio settings
func (s *SettingsStore) GetAudioSettings(ctx context.Context) (config.AudioSettings, error) {
	stored, err := s.GetAudioSettingsFull(ctx)
	if err != nil {
		return config.AudioSettings{}, err
	}
	return stored.AudioSettings, nil
}

// GetAudioSettingsFull retrieves the audio settings with metadata
func (s *SettingsStore) GetAudioSettingsFull(ctx context.Context) (*StoredAudioSettings, error) {
	s.logger.Debug().Msg("Retrieving audio settings")
	var stored StoredAudioSettings
	err := s.db.X().GetContext(ctx, &stored, `
		SELECT output_target, volume, fajr_volume, fajr_volume_sync, athan_file, fajr_athan_file, created_at, updated_at
		FROM audio_settings
		WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug().Msg("No audio settings found in database")
		return nil, ErrNoSettings
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to retrieve audio settings")
		return nil, fmt.Errorf("failed to retrieve audio settings: %w", err)
	}
	return &stored, nil
}

// SaveAudioSettings validates and saves the audio settings
func (s *SettingsStore) SaveAudioSettings(ctx context.Context, settings config.AudioSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.logger.Debug().
		Str("output_target", settings.OutputTarget.String()).
		Int("volume", settings.Volume).
		Int("fajr_volume", settings.FajrVolume).
		Bool("fajr_volume_sync", settings.FajrVolumeSync).
		Msg("Saving audio settings")
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO audio_settings (id, output_target, volume, fajr_volume, fajr_volume_sync, athan_file, fajr_athan_file, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			output_target = excluded.output_target,
			volume = excluded.volume,
			fajr_volume = excluded.fajr_volume,
			fajr_volume_sync = excluded.fajr_volume_sync,
			athan_file = excluded.athan_file,
			fajr_athan_file = excluded.fajr_athan_file,
			updated_at = CURRENT_TIMESTAMP
	`, string(settings.OutputTarget), settings.Volume, settings.FajrVolume, settings.FajrVolumeSync, settings.AthanFile, settings.FajrAthanFile)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save audio settings")
		return fmt.Errorf("failed to save audio settings: %w", err)
	}

	s.logger.Info().Msg("Audio settings saved successfully")
	return nil
}

// HasAudioSettings checks whether the settings row has been seeded
func (s *SettingsStore) HasAudioSettings(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM audio_settings WHERE id = 1`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check audio settings: %w", err)
	}
	return count > 0, nil
}
