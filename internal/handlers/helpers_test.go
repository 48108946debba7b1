package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/belphemur/athan-scheduler/internal/calendar"
	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/player"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/schedule"
	"github.com/belphemur/athan-scheduler/internal/scheduler"
	"github.com/belphemur/athan-scheduler/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// 2026-10-18 is a Sunday
const (
	today    = "2026-10-18"
	tomorrow = "2026-10-19"
)

type fakeSource struct {
	mu     sync.Mutex
	events []prayer.Event
	err    error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]prayer.Event(nil), f.events...), nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type recordingPlayer struct {
	mu       sync.Mutex
	requests []player.Request
	stops    int
}

func (r *recordingPlayer) Play(ctx context.Context, req player.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingPlayer) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func dayEvents(date string) []prayer.Event {
	return []prayer.Event{
		{Date: date, Name: prayer.Fajr, Time: "06:50"},
		{Date: date, Name: prayer.Sunrise, Time: "08:10"},
		{Date: date, Name: prayer.Dhuhr, Time: "13:40"},
		{Date: date, Name: prayer.Asr, Time: "16:40"},
		{Date: date, Name: prayer.Maghrib, Time: "19:00"},
		{Date: date, Name: prayer.Isha, Time: "20:30"},
	}
}

type testServer struct {
	router    *gin.Engine
	clock     *clock.Fake
	source    *fakeSource
	calendar  *calendar.Service
	settings  *database.SettingsStore
	playback  *database.PlaybackLog
	scheduler *scheduler.Scheduler
	player    *recordingPlayer
	audioDir  string
}

// setupServer builds the API on a migrated temp database with the calendar loaded at 10:00 Paris time
func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 10, 18, 10, 0, 0, 0, loc))

	db, err := database.New(database.NewDefaultOptions(filepath.Join(t.TempDir(), "handlers.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateDatabase())

	ctx := context.Background()
	scheduleStore := database.NewScheduleStore(db)
	require.NoError(t, scheduleStore.EnsureCells(ctx))
	settings := database.NewSettingsStore(db)
	require.NoError(t, settings.SaveAudioSettings(ctx, config.AudioSettings{
		OutputTarget:   constants.OutputServer,
		Volume:         80,
		FajrVolume:     40,
		FajrVolumeSync: false,
		AthanFile:      "athan.mp3",
	}))

	audioDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "athan.mp3"), []byte("ID3"), 0o644))

	source := &fakeSource{events: append(dayEvents(today), dayEvents(tomorrow)...)}
	refreshes := database.NewRefreshLog(db)
	cal := calendar.New(source, database.NewPrayerStore(db), refreshes, clk, loc, config.CalendarConfig{
		Source:           "fake",
		RefreshAt:        "00:05",
		Timeout:          time.Second,
		LookAheadDays:    2,
		FailureTolerance: 3,
	})
	require.NoError(t, cal.Refresh(ctx))

	matrix := schedule.NewMatrix(scheduleStore)
	rec := &recordingPlayer{}
	g := gate.New(matrix, database.NewSkipStore(db), settings, rec, audioDir)
	sched := scheduler.New(cal, g, clk, loc, time.Hour, time.Minute)
	resolver := status.New(cal, g, matrix, loc, time.Minute)
	playback := database.NewPlaybackLog(db)

	base, err := NewBaseHandler(Services{
		Calendar:  cal,
		Matrix:    matrix,
		Gate:      g,
		Status:    resolver,
		Scheduler: sched,
		Settings:  settings,
		Playback:  playback,
		Refreshes: refreshes,
		Clock:     clk,
		Location:  loc,
	})
	require.NoError(t, err)

	return &testServer{
		router:    NewRouter(base, []string{"http://kitchen.local"}),
		clock:     clk,
		source:    source,
		calendar:  cal,
		settings:  settings,
		playback:  playback,
		scheduler: sched,
		player:    rec,
		audioDir:  audioDir,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// successBody is the envelope of RespondSuccess
type successBody[T any] struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
}
