package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioTest_PlaysUnderReservedName(t *testing.T) {
	s := setupServer(t)
	// Reserved names bypass every rule
	requireStatus(t, s.do(t, http.MethodPut, "/api/schedule/all", map[string]bool{"enabled": false}), http.StatusOK)
	requireStatus(t, s.do(t, http.MethodPut, "/api/mute/next", map[string]bool{"skip": true}), http.StatusOK)

	w := s.do(t, http.MethodPost, "/api/audio/test", nil)
	requireStatus(t, w, http.StatusOK)

	resp := decode[successBody[gate.Decision]](t, w)
	assert.Equal(t, SuccessCodePlaybackStarted, resp.Code)
	assert.True(t, resp.Data.Allowed)
	assert.Equal(t, gate.ReasonReserved, resp.Data.Reason)
	assert.Equal(t, prayer.Test, resp.Data.Event.Name)
	assert.Equal(t, "10:00", resp.Data.Event.Time)

	s.player.mu.Lock()
	require.Len(t, s.player.requests, 1)
	assert.Equal(t, filepath.Join(s.audioDir, "athan.mp3"), s.player.requests[0].File)
	assert.Equal(t, 80, s.player.requests[0].Volume)
	s.player.mu.Unlock()

	// The one-shot mute is still armed for the next real prayer
	w = s.do(t, http.MethodGet, "/api/mute/next", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["skip"])
}

func TestAudioTest_MissingAsset(t *testing.T) {
	s := setupServer(t)
	require.NoError(t, os.Remove(filepath.Join(s.audioDir, "athan.mp3")))

	w := s.do(t, http.MethodPost, "/api/audio/test", nil)
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, ErrCodeMissingAudioAsset, decode[errorEnvelope](t, w).Error.Code)
}

func TestAudioStop(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/audio/stop", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, SuccessCodePlaybackStopped, decode[successBody[any]](t, w).Code)

	s.player.mu.Lock()
	defer s.player.mu.Unlock()
	assert.Equal(t, 1, s.player.stops)
}

func TestHistory(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/history", nil)
	requireStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())

	for _, name := range []string{"Fajr", "Dhuhr", "Asr"} {
		_, err := s.playback.Record(t.Context(), database.PlaybackEntry{
			PrayerName: name,
			PrayerDate: today,
			PrayerTime: "12:00",
			Allowed:    true,
			Reason:     string(gate.ReasonAuthorized),
			Target:     "server",
		})
		require.NoError(t, err)
	}

	w = s.do(t, http.MethodGet, "/api/history?limit=2", nil)
	requireStatus(t, w, http.StatusOK)
	resp := decode[struct {
		History []database.PlaybackEntry `json:"history"`
	}](t, w)
	require.Len(t, resp.History, 2)
	assert.Equal(t, "Asr", resp.History[0].PrayerName)
	assert.NotEmpty(t, resp.History[0].ID)

	for _, limit := range []string{"0", "-3", "many"} {
		w = s.do(t, http.MethodGet, "/api/history?limit="+limit, nil)
		requireStatus(t, w, http.StatusBadRequest)
	}
}

func TestSchedulerArmed(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/scheduler/armed", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Empty(t, decode[ArmedResponse](t, w).Armed)

	_, err := s.scheduler.Resync(t.Context())
	require.NoError(t, err)

	w = s.do(t, http.MethodGet, "/api/scheduler/armed", nil)
	requireStatus(t, w, http.StatusOK)
	armed := decode[ArmedResponse](t, w).Armed
	// Fajr has passed today: four prayers left today and five tomorrow
	require.Len(t, armed, 9)
	assert.Equal(t, prayer.Dhuhr, armed[0].Event.Name)
	assert.Equal(t, today, armed[0].Event.Date)
	assert.Equal(t, prayer.Isha, armed[8].Event.Name)
	assert.Equal(t, tomorrow, armed[8].Event.Date)
}
