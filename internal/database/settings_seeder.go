package database

import (
	"context"
	"fmt"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
)

// SettingsSeeder copies the file audio settings into the database on first start
type SettingsSeeder struct {
	store  *SettingsStore
	logger zerolog.Logger
}

// NewSettingsSeeder creates a new settings seeder
func NewSettingsSeeder(store *SettingsStore) *SettingsSeeder {
	return &SettingsSeeder{
		store:  store,
		logger: logging.GetLogger("settings-seeder"),
	}
}

// SeedFromConfig seeds the audio settings from the TOML file.
// Once seeded the database owns them and later file changes are ignored.
func (s *SettingsSeeder) SeedFromConfig(ctx context.Context, cfg *config.Config) error {
	s.logger.Info().Msg("Checking if audio settings need seeding")

	hasSettings, err := s.store.HasAudioSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing audio settings: %w", err)
	}
	if hasSettings {
		s.logger.Info().Msg("Audio settings already exist in database, skipping seeding")
		return nil
	}

	settings := config.AudioSettingsFromFile(cfg.Audio)
	s.logger.Debug().
		Str("output_target", settings.OutputTarget.String()).
		Int("volume", settings.Volume).
		Str("athan_file", settings.AthanFile).
		Msg("Seeding audio settings")

	if err := s.store.SaveAudioSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to seed audio settings: %w", err)
	}

	s.logger.Info().Msg("Audio settings seeded from configuration file")
	return nil
}
