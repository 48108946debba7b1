package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/signals"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// retryDelay is how long a failed refresh waits before trying again ahead of the daily alarm
const retryDelay = 15 * time.Minute

// Store is the persistence the calendar needs
type Store interface {
	ReplaceFrom(ctx context.Context, fromDate string, fetchedAt time.Time, events []prayer.Event) error
	EventsBetween(ctx context.Context, from, to string, canonicalOnly bool) ([]prayer.Event, error)
	EventsOn(ctx context.Context, dates ...string) ([]prayer.Event, error)
	Count(ctx context.Context, fromDate string) (int, error)
}

// RefreshRecorder keeps a history of refresh attempts
type RefreshRecorder interface {
	Record(ctx context.Context, record database.RefreshRecord) error
}

// Status describes the health of the calendar
type Status struct {
	Source              string    `json:"source"`
	LastAttempt         time.Time `json:"last_attempt,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Events              int       `json:"events"`
	Version             int64     `json:"version"`
	Degraded            bool      `json:"degraded"`
	NextRefresh         time.Time `json:"next_refresh,omitzero"`
}

// Service is the prayer calendar
type Service struct {
	source  Source
	store   Store
	history RefreshRecorder
	clock   clock.Clock
	loc     *time.Location
	cfg     config.CalendarConfig
	logger  zerolog.Logger

	refreshMu sync.Mutex
	version   atomic.Int64
	failures  atomic.Int32

	statusMu    sync.RWMutex
	lastAttempt time.Time
	lastSuccess time.Time
	lastError   string
	lastCount   int
	nextRefresh time.Time

	reschedule chan struct{}
}

// New creates the calendar service. history may be nil.
func New(source Source, store Store, history RefreshRecorder, clk clock.Clock, loc *time.Location, cfg config.CalendarConfig) *Service {
	return &Service{
		source:     source,
		store:      store,
		history:    history,
		clock:      clk,
		loc:        loc,
		cfg:        cfg,
		logger:     logging.GetLogger("calendar").With().Str("source", source.Name()).Logger(),
		reschedule: make(chan struct{}, 1),
	}
}

// Version changes every time a refresh replaces the calendar
func (s *Service) Version() int64 {
	return s.version.Load()
}

// Location is the timezone prayer times are expressed in
func (s *Service) Location() *time.Location {
	return s.loc
}

// Refresh fetches prayer times and replaces every stored entry dated today or later.
// On failure the stored calendar is left untouched and the error wraps ErrSourceUnavailable.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := s.clock.Now().In(s.loc)
	from := started
	to := time.Date(started.Year(), started.Month(), started.Day()+s.lookAhead()-1, 12, 0, 0, 0, s.loc)
	today := prayer.DateOf(started)

	s.logger.Info().Str("from", today).Str("to", prayer.DateOf(to)).Msg("Refreshing prayer calendar")

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	events, err := s.source.Fetch(fetchCtx, from, to)
	if err == nil {
		events, err = s.sanitize(events, today)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		s.recordFailure(ctx, started, err)
		return err
	}

	if err := s.store.ReplaceFrom(ctx, today, s.clock.Now(), events); err != nil {
		err = fmt.Errorf("failed to store prayer calendar: %w", err)
		s.recordFailure(ctx, started, err)
		return err
	}

	version := s.version.Inc()
	s.failures.Store(0)
	finished := s.clock.Now()

	s.statusMu.Lock()
	s.lastAttempt = started
	s.lastSuccess = finished
	s.lastError = ""
	s.lastCount = len(events)
	s.statusMu.Unlock()

	s.record(ctx, database.RefreshRecord{
		Source:     s.source.Name(),
		StartedAt:  started,
		FinishedAt: finished,
		Success:    true,
		Events:     len(events),
	})

	s.logger.Info().Int("events", len(events)).Int64("version", version).Msg("Prayer calendar refreshed")
	signals.EmitCalendarRefreshed(ctx, signals.CalendarRefreshedData{
		Events:      len(events),
		Version:     version,
		RefreshedAt: finished,
	})
	return nil
}

func (s *Service) lookAhead() int {
	if s.cfg.LookAheadDays < 2 {
		return 2
	}
	return s.cfg.LookAheadDays
}

// sanitize drops invalid and past entries and fails on an empty result so an empty feed never wipes the calendar
func (s *Service) sanitize(events []prayer.Event, today string) ([]prayer.Event, error) {
	seen := make(map[prayer.Key]bool, len(events))
	clean := make([]prayer.Event, 0, len(events))
	for _, e := range events {
		if err := e.Validate(); err != nil {
			s.logger.Warn().Err(err).Msg("Dropping invalid prayer time")
			continue
		}
		if e.Date < today || seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		clean = append(clean, e)
	}
	if len(clean) == 0 {
		return nil, errors.New("source returned no prayer times")
	}
	slices.SortFunc(clean, prayer.Compare)
	return clean, nil
}

func (s *Service) recordFailure(ctx context.Context, started time.Time, err error) {
	failures := s.failures.Inc()

	s.statusMu.Lock()
	s.lastAttempt = started
	s.lastError = err.Error()
	s.statusMu.Unlock()

	s.record(ctx, database.RefreshRecord{
		Source:     s.source.Name(),
		StartedAt:  started,
		FinishedAt: s.clock.Now(),
		Success:    false,
		Error:      err.Error(),
	})

	evt := s.logger.Warn()
	if int(failures) >= s.cfg.FailureTolerance {
		evt = s.logger.Error()
	}
	evt.Err(err).Int32("consecutive_failures", failures).Msg("Prayer calendar refresh failed, keeping stored calendar")
}

func (s *Service) record(ctx context.Context, record database.RefreshRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, record); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record calendar refresh")
	}
}

// Status reports the refresh health
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	failures := int(s.failures.Load())
	return Status{
		Source:              s.source.Name(),
		LastAttempt:         s.lastAttempt,
		LastSuccess:         s.lastSuccess,
		LastError:           s.lastError,
		ConsecutiveFailures: failures,
		Events:              s.lastCount,
		Version:             s.version.Load(),
		Degraded:            s.cfg.FailureTolerance > 0 && failures >= s.cfg.FailureTolerance,
		NextRefresh:         s.nextRefresh,
	}
}

// CurrentAndNextDayEvents returns the canonical prayers of today and tomorrow, ordered by date then time
func (s *Service) CurrentAndNextDayEvents(ctx context.Context, now time.Time) ([]prayer.Event, error) {
	local := now.In(s.loc)
	events, err := s.store.EventsBetween(ctx, prayer.DateOf(local), prayer.DateAdd(local, 1), true)
	if err != nil {
		return nil, fmt.Errorf("failed to load current prayer times: %w", err)
	}
	slices.SortFunc(events, prayer.Compare)
	return events, nil
}

// EventsOn returns every stored entry for the given dates, auxiliary markers included
func (s *Service) EventsOn(ctx context.Context, dates ...string) ([]prayer.Event, error) {
	for _, d := range dates {
		if _, err := time.Parse(constants.DateLayout, d); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", d, err)
		}
	}
	return s.store.EventsOn(ctx, dates...)
}

// Reschedule recomputes the daily refresh alarm, typically after the wall clock jumped
func (s *Service) Reschedule() {
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
}

// NextRefreshAt returns the next daily alarm after now, honoring the retry delay after a failure
func (s *Service) NextRefreshAt(now time.Time) time.Time {
	local := now.In(s.loc)
	at, err := time.Parse(constants.TimeLayout, s.cfg.RefreshAt)
	if err != nil {
		at = time.Date(0, 1, 1, 0, 5, 0, 0, time.UTC)
	}
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour(), at.Minute(), 0, 0, s.loc)
	}

	if s.failures.Load() > 0 {
		if retry := local.Add(retryDelay); retry.Before(next) {
			return retry
		}
	}
	return next
}

// Run refreshes on startup when configured, then at the daily alarm until ctx is done
func (s *Service) Run(ctx context.Context) {
	if s.cfg.RefreshOnStartup {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Startup calendar refresh failed")
		}
	}

	for {
		now := s.clock.Now()
		next := s.NextRefreshAt(now)
		s.statusMu.Lock()
		s.nextRefresh = next
		s.statusMu.Unlock()

		fire := make(chan struct{}, 1)
		timer := s.clock.AfterFunc(next.Sub(now), func() {
			fire <- struct{}{}
		})
		s.logger.Debug().Time("next_refresh", next).Msg("Calendar refresh alarm armed")

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.reschedule:
			timer.Stop()
			s.logger.Info().Msg("Rescheduling calendar refresh alarm")
		case <-fire:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled calendar refresh failed")
			}
		}
	}
}
