// Package status answers the live questions polling clients ask: what is the next prayer,
// should the athan play right now, and is the next prayer muted.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// Muted reasons
const (
	ReasonNextPrayerSkipped = "next-prayer-skipped"
	ReasonDayMuted          = "day-muted"
	ReasonScheduleDisabled  = "schedule-disabled"
)

// Calendar provides the prayer times
type Calendar interface {
	CurrentAndNextDayEvents(ctx context.Context, now time.Time) ([]prayer.Event, error)
	EventsOn(ctx context.Context, dates ...string) ([]prayer.Event, error)
	Version() int64
}

// Authorizer is the playback gate
type Authorizer interface {
	Authorize(ctx context.Context, name prayer.Name, date, tm string) (gate.Decision, error)
	Preview(ctx context.Context, name prayer.Name, date, tm string) (gate.Decision, error)
}

// WeekdayMutes tells whether a whole weekday is muted
type WeekdayMutes interface {
	IsWeekdayMuted(ctx context.Context, weekday constants.Weekday) (bool, error)
}

// Upcoming is the next prayer and when it sounds
type Upcoming struct {
	Event prayer.Event  `json:"event"`
	At    time.Time     `json:"at"`
	In    time.Duration `json:"in"`
}

// PlayStatus answers "should I play now"
type PlayStatus struct {
	Play     bool           `json:"play"`
	InWindow bool           `json:"in_window"`
	Event    *prayer.Event  `json:"event,omitempty"`
	Decision *gate.Decision `json:"decision,omitempty"`
}

// MuteStatus answers "is the next prayer muted"
type MuteStatus struct {
	Muted  bool          `json:"muted"`
	Reason string        `json:"reason,omitempty"`
	Event  *prayer.Event `json:"event,omitempty"`
}

// Resolver computes the live status. The next upcoming prayer is cached until its instant.
type Resolver struct {
	calendar   Calendar
	gate       Authorizer
	mutes      WeekdayMutes
	loc        *time.Location
	fireWindow time.Duration
	logger     zerolog.Logger

	mu            sync.Mutex
	cached        *Upcoming
	cachedVersion int64
	lastNow       time.Time
}

// New creates a status resolver
func New(calendar Calendar, g Authorizer, mutes WeekdayMutes, loc *time.Location, fireWindow time.Duration) *Resolver {
	return &Resolver{
		calendar:   calendar,
		gate:       g,
		mutes:      mutes,
		loc:        loc,
		fireWindow: fireWindow,
		logger:     logging.GetLogger("status"),
	}
}

// Invalidate drops the cached next prayer
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.logger.Debug().Msg("Next prayer cache invalidated")
}

// NextUpcoming returns the next canonical prayer strictly after now, today first then tomorrow.
// It returns nil when the calendar holds nothing ahead.
func (r *Resolver) NextUpcoming(ctx context.Context, now time.Time) (*Upcoming, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now = now.In(r.loc)
	version := r.calendar.Version()
	backwards := now.Before(r.lastNow)
	r.lastNow = now

	if c := r.cached; c != nil && !backwards && version == r.cachedVersion && now.Before(c.At) {
		up := *c
		up.In = c.At.Sub(now)
		return &up, nil
	}

	events, err := r.calendar.CurrentAndNextDayEvents(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load prayer times: %w", err)
	}

	r.cached = nil
	for _, e := range events {
		at, err := e.At(r.loc)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Skipping unparsable prayer time")
			continue
		}
		if at.After(now) {
			r.cached = &Upcoming{Event: e, At: at}
			r.cachedVersion = version
			break
		}
	}
	if r.cached == nil {
		return nil, nil
	}
	up := *r.cached
	up.In = up.At.Sub(now)
	return &up, nil
}

// FireWindow returns the canonical prayer whose window [time, time+fire window] contains now.
// Yesterday is included so a window opened just before midnight is still found.
func (r *Resolver) FireWindow(ctx context.Context, now time.Time) (*prayer.Event, error) {
	now = now.In(r.loc)

	yesterday, err := r.calendar.EventsOn(ctx, prayer.DateAdd(now, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to load yesterday's prayer times: %w", err)
	}
	current, err := r.calendar.CurrentAndNextDayEvents(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load prayer times: %w", err)
	}

	var (
		found   *prayer.Event
		foundAt time.Time
	)
	for _, e := range append(yesterday, current...) {
		if !e.Name.IsCanonical() {
			continue
		}
		at, err := e.At(r.loc)
		if err != nil {
			continue
		}
		if now.Before(at) || now.After(at.Add(r.fireWindow)) {
			continue
		}
		if found == nil || at.After(foundAt) {
			found, foundAt = &e, at
		}
	}
	return found, nil
}

// ShouldPlay reports whether a browser should play now.
// It goes through the same authorization as the server firing, so it consumes a one-shot mute the same way.
func (r *Resolver) ShouldPlay(ctx context.Context, now time.Time) (PlayStatus, error) {
	event, err := r.FireWindow(ctx, now)
	if err != nil {
		return PlayStatus{}, err
	}
	if event == nil {
		return PlayStatus{}, nil
	}

	decision, err := r.gate.Authorize(ctx, event.Name, event.Date, event.Time)
	if err != nil {
		return PlayStatus{}, err
	}
	return PlayStatus{
		Play:     decision.Allowed && decision.Target.IncludesBrowser(),
		InWindow: true,
		Event:    event,
		Decision: &decision,
	}, nil
}

// Muted reports whether the next prayer will be silenced and why
func (r *Resolver) Muted(ctx context.Context, now time.Time) (MuteStatus, error) {
	next, err := r.NextUpcoming(ctx, now)
	if err != nil {
		return MuteStatus{}, err
	}
	if next == nil {
		return MuteStatus{}, nil
	}

	event := next.Event
	decision, err := r.gate.Preview(ctx, event.Name, event.Date, event.Time)
	if err != nil {
		return MuteStatus{}, err
	}
	if decision.Allowed {
		return MuteStatus{Event: &event}, nil
	}

	status := MuteStatus{Muted: true, Event: &event, Reason: ReasonNextPrayerSkipped}
	if decision.Reason == gate.ReasonScheduleDisabled {
		status.Reason = ReasonScheduleDisabled
		weekday, err := constants.WeekdayOfDate(event.Date)
		if err != nil {
			return MuteStatus{}, err
		}
		dayMuted, err := r.mutes.IsWeekdayMuted(ctx, weekday)
		if err != nil {
			return MuteStatus{}, err
		}
		if dayMuted {
			status.Reason = ReasonDayMuted
		}
	}
	return status, nil
}
