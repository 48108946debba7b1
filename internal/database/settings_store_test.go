package database

import (
	"context"
	"testing"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAudioConfig() *config.Config {
	return &config.Config{
		Audio: config.AudioConfig{
			OutputTarget:   constants.OutputBoth,
			Volume:         75,
			FajrVolume:     40,
			FajrVolumeSync: false,
			AthanFile:      "athan.mp3",
			FajrAthanFile:  "fajr.mp3",
		},
	}
}

func TestSettingsStore_SaveAndGet(t *testing.T) {
	store := NewSettingsStore(setupTestDB(t))
	ctx := context.Background()

	has, err := store.HasAudioSettings(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.GetAudioSettings(ctx)
	assert.ErrorIs(t, err, ErrNoSettings)

	settings := config.AudioSettings{
		OutputTarget: constants.OutputBrowser,
		Volume:       55,
		FajrVolume:   20,
		AthanFile:    "athan.mp3",
	}
	require.NoError(t, store.SaveAudioSettings(ctx, settings))

	got, err := store.GetAudioSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, got)

	full, err := store.GetAudioSettingsFull(ctx)
	require.NoError(t, err)
	assert.False(t, full.CreatedAt.IsZero())

	settings.FajrVolumeSync = true
	settings.OutputTarget = constants.OutputServer
	require.NoError(t, store.SaveAudioSettings(ctx, settings))
	got, err = store.GetAudioSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func TestSettingsStore_RejectsInvalid(t *testing.T) {
	store := NewSettingsStore(setupTestDB(t))
	ctx := context.Background()

	err := store.SaveAudioSettings(ctx, config.AudioSettings{OutputTarget: "speaker", Volume: 50, AthanFile: "a.mp3"})
	assert.ErrorContains(t, err, "invalid output target")

	has, err := store.HasAudioSettings(ctx)
	require.NoError(t, err)
	assert.False(t, has, "an invalid write must not be persisted")
}

func TestSettingsSeeder_SeedsOnce(t *testing.T) {
	store := NewSettingsStore(setupTestDB(t))
	seeder := NewSettingsSeeder(store)
	ctx := context.Background()

	cfg := testAudioConfig()
	require.NoError(t, seeder.SeedFromConfig(ctx, cfg))

	got, err := store.GetAudioSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.OutputBoth, got.OutputTarget)
	assert.Equal(t, 75, got.Volume)
	assert.Equal(t, "fajr.mp3", got.FajrAthanFile)

	// The database owns the settings once seeded
	cfg.Audio.Volume = 10
	require.NoError(t, seeder.SeedFromConfig(ctx, cfg))
	got, err = store.GetAudioSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75, got.Volume)
}

func TestSettingsSeeder_InvalidFileSettings(t *testing.T) {
	seeder := NewSettingsSeeder(NewSettingsStore(setupTestDB(t)))

	cfg := testAudioConfig()
	cfg.Audio.Volume = 150
	err := seeder.SeedFromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to seed audio settings")
}
