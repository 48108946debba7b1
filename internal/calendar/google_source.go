package calendar

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/token"
	"github.com/rs/zerolog"
)

// GoogleSource reads prayer times from the events of a Google Calendar
type GoogleSource struct {
	calendarID string
	srv        *calendar.Service
	loc        *time.Location
	logger     zerolog.Logger
}

// NewGoogleSource creates a Google Calendar source.
// It authenticates with the API key when set, otherwise with the service account tokens.
func NewGoogleSource(ctx context.Context, cfg config.GoogleConfig, loc *time.Location, tokens *token.TokenManager, opts ...option.ClientOption) (*GoogleSource, error) {
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case tokens != nil:
		opts = append(opts, option.WithTokenSource(tokens.TokenSource()))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	logger := logging.GetLogger("calendar-google")
	logger.Info().Str("calendar_id", cfg.CalendarID).Msg("Google Calendar source created")
	return &GoogleSource{
		calendarID: cfg.CalendarID,
		srv:        srv,
		loc:        loc,
		logger:     logger,
	}, nil
}

func (s *GoogleSource) Name() string {
	return "google"
}

// Fetch lists the timed events between from and the end of to
func (s *GoogleSource) Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
	end := time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, s.loc)

	var events []prayer.Event
	skipped := 0
	err := s.srv.Events.List(s.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				if item.Start == nil || item.Start.DateTime == "" {
					// All-day events carry no prayer time
					skipped++
					continue
				}
				name := normalizeSummary(item.Summary)
				if name == "" {
					skipped++
					continue
				}
				at, err := time.Parse(time.RFC3339, item.Start.DateTime)
				if err != nil {
					s.logger.Debug().Err(err).Str("event_id", item.Id).Msg("Skipping event with invalid start")
					skipped++
					continue
				}
				event := eventAt(name, at, s.loc)
				if inRange(event.Date, from, to) {
					events = append(events, event)
				}
			}
			return nil
		})
	if err != nil {
		s.logger.Error().Err(err).Str("calendar_id", s.calendarID).Msg("Failed to list calendar events")
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	s.logger.Debug().Int("events", len(events)).Int("skipped", skipped).Msg("Google Calendar events fetched")
	return events, nil
}
