package signals

import (
	"context"
	"time"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/maniartech/signals"
)

// CalendarRefreshedData contains data associated with a successful calendar refresh
type CalendarRefreshedData struct {
	Events      int
	Version     int64
	RefreshedAt time.Time
}

// ClockDriftData describes a wall-clock discontinuity
type ClockDriftData struct {
	Expected time.Duration
	Actual   time.Duration
	At       time.Time
}

// Drift returns actual minus expected elapsed time
func (d ClockDriftData) Drift() time.Duration {
	return d.Actual - d.Expected
}

// PlaybackDecidedData contains the outcome of a server-side firing
type PlaybackDecidedData struct {
	Event   prayer.Event
	Allowed bool
	Reason  string
	Target  constants.OutputTarget
	Volume  int
	File    string
	// Error is set when the decision or the playback failed
	Error string
}

// Signal definitions using generics
var CalendarRefreshed = signals.New[CalendarRefreshedData]()
var ClockDrift = signals.New[ClockDriftData]()
var PlaybackDecided = signals.New[PlaybackDecidedData]()

// EmitCalendarRefreshed emits a signal when the calendar has been replaced by a fresh fetch
func EmitCalendarRefreshed(ctx context.Context, data CalendarRefreshedData) {
	CalendarRefreshed.Emit(ctx, data)
}

// EmitClockDrift emits a signal when the drift monitor detects a wall-clock jump
func EmitClockDrift(ctx context.Context, data ClockDriftData) {
	ClockDrift.Emit(ctx, data)
}

// EmitPlaybackDecided emits a signal after the gate decided a firing
func EmitPlaybackDecided(ctx context.Context, data PlaybackDecidedData) {
	PlaybackDecided.Emit(ctx, data)
}

// OnCalendarRefreshed registers a handler for calendar refresh events
func OnCalendarRefreshed(handler func(ctx context.Context, data CalendarRefreshedData), key ...string) {
	if len(key) > 0 {
		CalendarRefreshed.AddListener(handler, key[0])
	} else {
		CalendarRefreshed.AddListener(handler)
	}
}

// OnClockDrift registers a handler for clock drift events
func OnClockDrift(handler func(ctx context.Context, data ClockDriftData), key ...string) {
	if len(key) > 0 {
		ClockDrift.AddListener(handler, key[0])
	} else {
		ClockDrift.AddListener(handler)
	}
}

// OnPlaybackDecided registers a handler for playback decisions
func OnPlaybackDecided(handler func(ctx context.Context, data PlaybackDecidedData), key ...string) {
	if len(key) > 0 {
		PlaybackDecided.AddListener(handler, key[0])
	} else {
		PlaybackDecided.AddListener(handler)
	}
}
