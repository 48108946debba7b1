package calendar

import (
	"context"
	"time"

	"github.com/belphemur/athan-scheduler/internal/prayer"
)

// Calendar defines the prayer calendar operations used by the scheduler, the status resolver and the API
type Calendar interface {
	// Refresh fetches prayer times from the source and replaces today onward
	Refresh(ctx context.Context) error

	// Status reports the refresh health
	Status() Status

	// Version changes every time the stored calendar is replaced
	Version() int64

	// CurrentAndNextDayEvents returns today's and tomorrow's canonical prayers in order
	CurrentAndNextDayEvents(ctx context.Context, now time.Time) ([]prayer.Event, error)

	// EventsOn returns every stored entry for the given dates
	EventsOn(ctx context.Context, dates ...string) ([]prayer.Event, error)

	// Reschedule recomputes the daily refresh alarm
	Reschedule()
}

// Ensure Service implements Calendar
var _ Calendar = (*Service)(nil)
