package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/viewhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findDay(weeks [][]viewhelpers.CalendarDay, date string) *viewhelpers.CalendarDay {
	for _, week := range weeks {
		for i := range week {
			if week[i].Date == date {
				return &week[i]
			}
		}
	}
	return nil
}

func TestCalendarMonth(t *testing.T) {
	s := setupServer(t)
	requireStatus(t, s.do(t, http.MethodPut, "/api/schedule/cell", map[string]any{
		"prayer": "Asr", "weekday": 6, "enabled": false,
	}), http.StatusOK)

	w := s.do(t, http.MethodGet, "/api/calendar?month=2026-10", nil)
	requireStatus(t, w, http.StatusOK)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	resp := decode[MonthResponse](t, w)
	assert.Equal(t, "2026-09-28", resp.Start)
	assert.Equal(t, "2026-11-01", resp.End)
	require.Len(t, resp.Weeks, 5)

	day := findDay(resp.Weeks, today)
	require.NotNil(t, day)
	assert.True(t, day.IsCurrentMonth)
	enabled := map[prayer.Name]bool{}
	for _, slot := range day.Prayers {
		enabled[slot.Name] = slot.Enabled
	}
	assert.True(t, enabled[prayer.Dhuhr])
	assert.False(t, enabled[prayer.Asr])

	empty := findDay(resp.Weeks, "2026-10-01")
	require.NotNil(t, empty)
	assert.Empty(t, empty.Prayers)
}

func TestCalendarMonth_DefaultsToCurrentMonth(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/calendar", nil)
	requireStatus(t, w, http.StatusOK)
	resp := decode[MonthResponse](t, w)
	assert.Equal(t, "2026-09-28", resp.Start)
	assert.NotNil(t, findDay(resp.Weeks, tomorrow))
}

func TestCalendarMonth_InvalidMonth(t *testing.T) {
	s := setupServer(t)

	for _, month := range []string{"october", "2026-13", "2026-10-18"} {
		w := s.do(t, http.MethodGet, "/api/calendar?month="+month, nil)
		requireStatus(t, w, http.StatusBadRequest)
		assert.Equal(t, ErrCodeInvalidMonth, decode[errorEnvelope](t, w).Error.Code, month)
	}
}

func TestCalendarRefresh(t *testing.T) {
	s := setupServer(t)
	require.EqualValues(t, 1, s.calendar.Version())

	w := s.do(t, http.MethodPost, "/api/calendar/refresh", nil)
	requireStatus(t, w, http.StatusOK)
	resp := decode[successBody[map[string]any]](t, w)
	assert.Equal(t, SuccessCodeCalendarRefreshed, resp.Code)
	assert.EqualValues(t, 2, resp.Data["version"])

	s.source.fail(errors.New("feed offline"))
	w = s.do(t, http.MethodPost, "/api/calendar/refresh", nil)
	requireStatus(t, w, http.StatusBadGateway)
	body := decode[errorEnvelope](t, w)
	assert.Equal(t, ErrCodeCalendarRefresh, body.Error.Code)
	assert.Contains(t, body.Error.Detail, "feed offline")
	assert.EqualValues(t, 2, s.calendar.Version())

	// The stored calendar is kept
	w = s.do(t, http.MethodGet, "/api/status/next", nil)
	requireStatus(t, w, http.StatusOK)
	require.NotNil(t, decode[NextResponse](t, w).Next)
}

func TestCalendarStatus(t *testing.T) {
	s := setupServer(t)
	s.source.fail(errors.New("feed offline"))
	requireStatus(t, s.do(t, http.MethodPost, "/api/calendar/refresh", nil), http.StatusBadGateway)

	w := s.do(t, http.MethodGet, "/api/calendar/status", nil)
	requireStatus(t, w, http.StatusOK)

	resp := decode[CalendarStatusResponse](t, w)
	assert.Equal(t, 1, resp.Status.ConsecutiveFailures)
	assert.False(t, resp.Status.Degraded)
	assert.Contains(t, resp.Status.LastError, "feed offline")
	require.Len(t, resp.Refreshes, 2)
	assert.False(t, resp.Refreshes[0].Success)
	assert.True(t, resp.Refreshes[1].Success)
	assert.Equal(t, 12, resp.Refreshes[1].Events)
}
