package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	requireStatus(t, w, http.StatusOK)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["degraded"])
	cal := body["calendar"].(map[string]any)
	assert.Equal(t, "fake", cal["source"])
	assert.EqualValues(t, 1, cal["version"])
}

func TestStatusNext(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/status/next", nil)
	requireStatus(t, w, http.StatusOK)

	body := decode[NextResponse](t, w)
	require.NotNil(t, body.Next)
	assert.Equal(t, prayer.Dhuhr, body.Next.Event.Name)
	assert.Equal(t, today, body.Next.Event.Date)
	assert.Equal(t, 3*time.Hour+40*time.Minute, body.Next.In)
}

func TestStatusNext_ETag(t *testing.T) {
	s := setupServer(t)

	first := s.do(t, http.MethodGet, "/api/status/next", nil)
	requireStatus(t, first, http.StatusOK)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/status/next", nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	// The countdown moves on but the next prayer is the same
	s.clock.Jump(time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/api/status/next", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Equal(t, etag, w.Header().Get("ETag"))

	// Once Dhuhr has passed the next prayer is Asr and the ETag changes
	s.clock.Jump(3*time.Hour + 40*time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/api/status/next", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
	assert.Equal(t, prayer.Asr, decode[NextResponse](t, w).Next.Event.Name)
}

func TestStatusNext_AfterLastPrayerOfTomorrow(t *testing.T) {
	s := setupServer(t)
	s.clock.Jump(35 * time.Hour)

	w := s.do(t, http.MethodGet, "/api/status/next", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Nil(t, decode[NextResponse](t, w).Next)
}

func TestStatusPlay(t *testing.T) {
	s := setupServer(t)

	t.Run("outside any window", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/status/play", nil)
		requireStatus(t, w, http.StatusOK)
		play := decode[status.PlayStatus](t, w)
		assert.False(t, play.Play)
		assert.False(t, play.InWindow)
	})

	t.Run("server target does not play in the browser", func(t *testing.T) {
		s.clock.Jump(3*time.Hour + 40*time.Minute)
		w := s.do(t, http.MethodGet, "/api/status/play", nil)
		requireStatus(t, w, http.StatusOK)
		play := decode[status.PlayStatus](t, w)
		assert.False(t, play.Play)
		assert.True(t, play.InWindow)
		require.NotNil(t, play.Event)
		assert.Equal(t, prayer.Dhuhr, play.Event.Name)
	})

	t.Run("browser target plays", func(t *testing.T) {
		require.NoError(t, s.settings.SaveAudioSettings(t.Context(), config.AudioSettings{
			OutputTarget: constants.OutputBoth,
			Volume:       70,
			FajrVolume:   70,
			AthanFile:    "athan.mp3",
		}))
		w := s.do(t, http.MethodGet, "/api/status/play", nil)
		requireStatus(t, w, http.StatusOK)
		play := decode[status.PlayStatus](t, w)
		assert.True(t, play.Play)
		require.NotNil(t, play.Decision)
		assert.Equal(t, 70, play.Decision.Volume)
	})
}

func TestStatusPlay_OneShotMuteHoldsForTheWindow(t *testing.T) {
	s := setupServer(t)
	require.NoError(t, s.settings.SaveAudioSettings(t.Context(), config.AudioSettings{
		OutputTarget: constants.OutputBrowser,
		Volume:       70,
		FajrVolume:   70,
		AthanFile:    "athan.mp3",
	}))
	requireStatus(t, s.do(t, http.MethodPut, "/api/mute/next", map[string]bool{"skip": true}), http.StatusOK)

	s.clock.Jump(3*time.Hour + 40*time.Minute)
	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodGet, "/api/status/play", nil)
		requireStatus(t, w, http.StatusOK)
		assert.False(t, decode[status.PlayStatus](t, w).Play, "poll %d", i)
	}

	w := s.do(t, http.MethodGet, "/api/mute/next", nil)
	requireStatus(t, w, http.StatusOK)
	state := decode[map[string]any](t, w)
	assert.Equal(t, false, state["skip"])
	assert.Equal(t, "Dhuhr", state["last_skipped_prayer"])
}

func TestStatusMuted(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/status/muted", nil)
	requireStatus(t, w, http.StatusOK)
	muted := decode[status.MuteStatus](t, w)
	assert.False(t, muted.Muted)
	require.NotNil(t, muted.Event)
	assert.Equal(t, prayer.Dhuhr, muted.Event.Name)

	requireStatus(t, s.do(t, http.MethodPut, "/api/mute/next", map[string]bool{"skip": true}), http.StatusOK)
	w = s.do(t, http.MethodGet, "/api/status/muted", nil)
	requireStatus(t, w, http.StatusOK)
	muted = decode[status.MuteStatus](t, w)
	assert.True(t, muted.Muted)
	assert.Equal(t, status.ReasonNextPrayerSkipped, muted.Reason)

	// Previewing never consumes the mute
	w = s.do(t, http.MethodGet, "/api/mute/next", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["skip"])
}
