package calendar

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/stretchr/testify/require"
)

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func setupStores(t *testing.T) (*database.PrayerStore, *database.RefreshLog) {
	t.Helper()
	db, err := database.New(database.NewDefaultOptions(filepath.Join(t.TempDir(), "calendar.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateDatabase())
	return database.NewPrayerStore(db), database.NewRefreshLog(db)
}

// fakeSource returns canned events or an error and counts fetches
type fakeSource struct {
	mu      sync.Mutex
	events  []prayer.Event
	err     error
	calls   int
	fetched chan struct{}
}

func newFakeSource(events ...prayer.Event) *fakeSource {
	return &fakeSource{events: events, fetched: make(chan struct{}, 10)}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	select {
	case f.fetched <- struct{}{}:
	default:
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]prayer.Event(nil), f.events...), nil
}

func (f *fakeSource) set(events []prayer.Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
	f.err = err
}

var errOffline = errors.New("network unreachable")

func dayEvents(date string, times ...string) []prayer.Event {
	names := []prayer.Name{prayer.Fajr, prayer.Sunrise, prayer.Dhuhr, prayer.Asr, prayer.Maghrib, prayer.Isha}
	events := make([]prayer.Event, 0, len(times))
	for i, tm := range times {
		events = append(events, prayer.Event{Date: date, Name: names[i], Time: tm})
	}
	return events
}
