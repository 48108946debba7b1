package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// ICSSource reads prayer times from an iCalendar feed.
// Each VEVENT holds one prayer: SUMMARY is the prayer name and DTSTART its time.
type ICSSource struct {
	url    string
	client *http.Client
	loc    *time.Location
	logger zerolog.Logger
}

// NewICSSource creates an iCalendar feed source
func NewICSSource(url string, loc *time.Location, client *http.Client) *ICSSource {
	return &ICSSource{
		url:    url,
		client: client,
		loc:    loc,
		logger: logging.GetLogger("calendar-ics"),
	}
}

func (s *ICSSource) Name() string {
	return "ics"
}

// Fetch downloads and parses the feed, keeping the entries dated from..to
func (s *ICSSource) Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download ics feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics feed returned status %d", resp.StatusCode)
	}

	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ics feed: %w", err)
	}

	byKey := make(map[prayer.Key]prayer.Event)
	var order []prayer.Key
	skipped := 0
	for _, vevent := range cal.Events() {
		summary := vevent.GetProperty(ics.ComponentPropertySummary)
		if summary == nil {
			skipped++
			continue
		}
		name := normalizeSummary(summary.Value)
		if name == "" {
			skipped++
			continue
		}

		start, err := s.startOf(vevent)
		if err != nil {
			s.logger.Debug().Err(err).Str("summary", summary.Value).Msg("Skipping event without usable start")
			skipped++
			continue
		}

		event := eventAt(name, start, s.loc)
		if !inRange(event.Date, from, to) {
			continue
		}
		if _, seen := byKey[event.Key()]; !seen {
			order = append(order, event.Key())
		}
		byKey[event.Key()] = event
	}

	events := make([]prayer.Event, 0, len(order))
	for _, k := range order {
		events = append(events, byKey[k])
	}

	s.logger.Debug().Int("events", len(events)).Int("skipped", skipped).Msg("ICS feed parsed")
	return events, nil
}

// startOf returns DTSTART; floating times (no zone) are read in the configured location
func (s *ICSSource) startOf(vevent *ics.VEvent) (time.Time, error) {
	prop := vevent.GetProperty(ics.ComponentPropertyDtStart)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing DTSTART")
	}
	if _, hasTZ := prop.ICalParameters["TZID"]; hasTZ || len(prop.Value) == 0 || prop.Value[len(prop.Value)-1] == 'Z' {
		return vevent.GetStartAt()
	}

	floating, err := time.ParseInLocation("20060102T150405", prop.Value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DTSTART %q: %w", prop.Value, err)
	}
	return floating, nil
}
