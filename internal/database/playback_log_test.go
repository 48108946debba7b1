package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackLog_RecordAndRecent(t *testing.T) {
	log := NewPlaybackLog(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 6, 30, 0, 0, time.UTC)

	first, err := log.Record(ctx, PlaybackEntry{
		PrayerName: "Fajr", PrayerDate: "2026-10-18", PrayerTime: "06:30",
		Allowed: true, Reason: "authorized", Target: "server", CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err, "entries get a uuid")

	_, err = log.Record(ctx, PlaybackEntry{
		PrayerName: "Dhuhr", PrayerDate: "2026-10-18", PrayerTime: "12:45",
		Allowed: false, Reason: "one-shot-muted", CreatedAt: base.Add(6 * time.Hour),
	})
	require.NoError(t, err)

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Dhuhr", entries[0].PrayerName)
	assert.False(t, entries[0].Allowed)
	assert.Equal(t, "one-shot-muted", entries[0].Reason)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.True(t, entries[1].Allowed)
	assert.True(t, base.Equal(entries[1].CreatedAt))

	limited, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRefreshLog(t *testing.T) {
	log := NewRefreshLog(setupTestDB(t))
	ctx := context.Background()
	start := time.Date(2026, 10, 18, 0, 5, 0, 0, time.UTC)

	last, err := log.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, log.Record(ctx, RefreshRecord{Source: "ics", StartedAt: start, FinishedAt: start.Add(time.Second), Success: true, Events: 12}))
	require.NoError(t, log.Record(ctx, RefreshRecord{Source: "ics", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour), Success: false, Error: "timeout"}))

	last, err = log.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 12, last.Events)

	records, err := log.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.Equal(t, "timeout", records[0].Error)
}
