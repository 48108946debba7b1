// Package scheduler arms one timer per upcoming prayer and hands each firing to the playback gate exactly once.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// EventSource provides the prayers to arm
type EventSource interface {
	CurrentAndNextDayEvents(ctx context.Context, now time.Time) ([]prayer.Event, error)
}

// Gate decides and performs a firing
type Gate interface {
	Trigger(ctx context.Context, event prayer.Event) (gate.Decision, error)
}

// ArmedTrigger is a pending firing
type ArmedTrigger struct {
	Event  prayer.Event `json:"event"`
	FireAt time.Time    `json:"fire_at"`
}

// RearmSummary reports what a re-arm did
type RearmSummary struct {
	Armed   int `json:"armed"`
	Skipped int `json:"skipped"`
}

type trigger struct {
	event prayer.Event
	at    time.Time
	gen   uint64
	timer clock.Timer
}

type fireRequest struct {
	key prayer.Key
	gen uint64
}

// Scheduler owns the armed timers. Nothing else creates or cancels them.
type Scheduler struct {
	events        EventSource
	gate          Gate
	clock         clock.Clock
	loc           *time.Location
	rearmInterval time.Duration
	grace         time.Duration
	logger        zerolog.Logger

	mu         sync.Mutex
	generation uint64
	armed      map[prayer.Key]*trigger
	fired      map[prayer.Key]time.Time

	fireCh chan fireRequest
	done   chan struct{}
}

// New creates a trigger scheduler.
// grace is how late a due trigger may still fire when a re-arm replaces it before it was dispatched.
func New(events EventSource, g Gate, clk clock.Clock, loc *time.Location, rearmInterval, grace time.Duration) *Scheduler {
	return &Scheduler{
		events:        events,
		gate:          g,
		clock:         clk,
		loc:           loc,
		rearmInterval: rearmInterval,
		grace:         grace,
		logger:        logging.GetLogger("scheduler"),
		armed:         make(map[prayer.Key]*trigger),
		fired:         make(map[prayer.Key]time.Time),
		fireCh:        make(chan fireRequest, 64),
		done:          make(chan struct{}),
	}
}

// Rearm cancels every armed trigger and arms one per canonical event still in the future.
// Keys that already fired are never armed again.
func (s *Scheduler) Rearm(events []prayer.Event) RearmSummary {
	s.mu.Lock()

	now := s.clock.Now()
	s.generation++
	gen := s.generation

	previous := s.armed
	for _, t := range previous {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	s.armed = make(map[prayer.Key]*trigger, len(events))
	s.pruneFiredLocked(now)

	var summary RearmSummary
	var due []fireRequest
	for _, event := range events {
		key := event.Key()
		if !event.Name.IsCanonical() {
			summary.Skipped++
			continue
		}
		if _, ok := s.fired[key]; ok {
			summary.Skipped++
			continue
		}
		if _, ok := s.armed[key]; ok {
			summary.Skipped++
			continue
		}
		at, err := event.At(s.loc)
		if err != nil {
			s.logger.Warn().Err(err).Str("prayer", string(event.Name)).Str("date", event.Date).Msg("Skipping unparsable prayer time")
			summary.Skipped++
			continue
		}

		t := &trigger{event: event, at: at, gen: gen}
		req := fireRequest{key: key, gen: gen}
		if !at.After(now) {
			// A trigger that came due but was not dispatched yet still fires
			if old, ok := previous[key]; ok && now.Sub(old.at) <= s.grace {
				s.armed[key] = t
				due = append(due, req)
				summary.Armed++
				continue
			}
			summary.Skipped++
			continue
		}

		t.timer = s.clock.AfterFunc(at.Sub(now), func() { s.enqueue(req) })
		s.armed[key] = t
		summary.Armed++
	}
	s.mu.Unlock()

	for _, req := range due {
		go s.enqueue(req)
	}

	s.logger.Info().Int("armed", summary.Armed).Int("skipped", summary.Skipped).Uint64("generation", gen).Msg("Triggers re-armed")
	return summary
}

// Resync re-arms from the current calendar. On error the armed triggers are kept.
func (s *Scheduler) Resync(ctx context.Context) (RearmSummary, error) {
	events, err := s.events.CurrentAndNextDayEvents(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load prayer times, keeping armed triggers")
		return RearmSummary{}, fmt.Errorf("failed to load prayer times: %w", err)
	}
	return s.Rearm(events), nil
}

// Armed returns the pending triggers ordered by fire time
func (s *Scheduler) Armed() []ArmedTrigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	armed := make([]ArmedTrigger, 0, len(s.armed))
	for _, t := range s.armed {
		armed = append(armed, ArmedTrigger{Event: t.event, FireAt: t.at})
	}
	slices.SortFunc(armed, func(a, b ArmedTrigger) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return prayer.Compare(a.Event, b.Event)
	})
	return armed
}

// HasFired reports whether the firing of key was already dispatched
func (s *Scheduler) HasFired(key prayer.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[key]
	return ok
}

// Run dispatches firings and re-arms from the calendar every rearm interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.rearmInterval)
	defer ticker.Stop()

	if _, err := s.Resync(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial re-arm failed")
	}
	s.logger.Info().Dur("rearm_interval", s.rearmInterval).Msg("Trigger scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.logger.Info().Msg("Trigger scheduler stopped")
			return
		case <-ticker.C():
			if _, err := s.Resync(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Periodic re-arm failed")
			}
		case req := <-s.fireCh:
			s.dispatch(ctx, req)
		}
	}
}

func (s *Scheduler) enqueue(req fireRequest) {
	select {
	case s.fireCh <- req:
	case <-s.done:
	}
}

// dispatch claims the trigger and fires it. Stale requests from a previous generation are dropped.
func (s *Scheduler) dispatch(ctx context.Context, req fireRequest) {
	s.mu.Lock()
	t, ok := s.armed[req.key]
	if !ok || t.gen != req.gen {
		s.mu.Unlock()
		s.logger.Debug().Stringer("key", req.key).Msg("Dropping stale firing")
		return
	}

	now := s.clock.Now()
	if now.Before(t.at) {
		// The wall clock moved back since arming
		wait := t.at.Sub(now)
		t.timer = s.clock.AfterFunc(wait, func() { s.enqueue(req) })
		s.mu.Unlock()
		s.logger.Info().Stringer("key", req.key).Dur("remaining", wait).Msg("Trigger woke early, sleeping again")
		return
	}

	delete(s.armed, req.key)
	s.fired[req.key] = now
	s.mu.Unlock()

	s.fire(ctx, t.event, now.Sub(t.at))
}

func (s *Scheduler) fire(ctx context.Context, event prayer.Event, late time.Duration) {
	logger := s.logger.With().Str("prayer", string(event.Name)).Str("date", event.Date).Str("time", event.Time).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Firing panicked")
		}
	}()

	logger.Info().Dur("late", late).Msg("Firing prayer")
	decision, err := s.gate.Trigger(ctx, event)
	if err != nil {
		logger.Error().Err(err).Msg("Firing failed")
		return
	}
	logger.Debug().Bool("allowed", decision.Allowed).Str("reason", string(decision.Reason)).Msg("Firing done")
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.armed {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	s.armed = make(map[prayer.Key]*trigger)
	s.generation++
}

// pruneFiredLocked forgets firings older than yesterday; they can no longer be offered again
func (s *Scheduler) pruneFiredLocked(now time.Time) {
	cutoff := prayer.DateAdd(now.In(s.loc), -1)
	for key := range s.fired {
		if key.Date < cutoff {
			delete(s.fired, key)
		}
	}
}
