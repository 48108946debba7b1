// Package calendar keeps the prayer calendar: it fetches prayer times from an external source,
// stores them, and serves today's and tomorrow's events to the scheduler and the status resolver.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/token"
)

// ErrSourceUnavailable is returned when a refresh could not obtain prayer times
var ErrSourceUnavailable = errors.New("prayer time source unavailable")

// Source fetches prayer times for the dates from..to inclusive
type Source interface {
	Name() string
	Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error)
}

// NewSource builds the source selected by cfg.Source
func NewSource(ctx context.Context, cfg config.CalendarConfig, loc *time.Location, client *http.Client) (Source, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	switch cfg.Source {
	case "ics":
		return NewICSSource(cfg.URL, loc, client), nil
	case "aladhan":
		return NewAladhanSource(cfg.Aladhan, loc, client), nil
	case "google":
		var tokens *token.TokenManager
		if cfg.Google.APIKey == "" {
			var err error
			tokens, err = token.NewServiceAccountManager(ctx, cfg.Google.CredentialsFile, token.CalendarReadonlyScope)
			if err != nil {
				return nil, err
			}
		}
		return NewGoogleSource(ctx, cfg.Google, loc, tokens)
	default:
		return nil, fmt.Errorf("unknown calendar source: %s", cfg.Source)
	}
}

// normalizeSummary maps a free-form event title such as "Fajr prayer" to a prayer name
func normalizeSummary(summary string) prayer.Name {
	name := prayer.NormalizeName(summary)
	if name.IsCanonical() || name == "" {
		return name
	}
	if fields := strings.Fields(summary); len(fields) > 1 {
		if first := prayer.NormalizeName(fields[0]); first.IsCanonical() {
			return first
		}
	}
	return name
}

// inRange reports whether date lies within from..to inclusive, comparing calendar dates
func inRange(date string, from, to time.Time) bool {
	return date >= prayer.DateOf(from) && date <= prayer.DateOf(to)
}

// eventAt builds an event from an instant expressed in loc
func eventAt(name prayer.Name, at time.Time, loc *time.Location) prayer.Event {
	local := at.In(loc)
	return prayer.Event{
		Date: prayer.DateOf(local),
		Name: name,
		Time: local.Format("15:04"),
	}
}
