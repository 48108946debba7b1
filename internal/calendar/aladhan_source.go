package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// AladhanSource reads prayer times from the Aladhan timings API, one request per day
type AladhanSource struct {
	baseURL   string
	latitude  float64
	longitude float64
	method    int
	client    *http.Client
	loc       *time.Location
	logger    zerolog.Logger
}

type aladhanResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

// NewAladhanSource creates an Aladhan API source
func NewAladhanSource(cfg config.AladhanConfig, loc *time.Location, client *http.Client) *AladhanSource {
	return &AladhanSource{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		method:    cfg.Method,
		client:    client,
		loc:       loc,
		logger:    logging.GetLogger("calendar-aladhan"),
	}
}

func (s *AladhanSource) Name() string {
	return "aladhan"
}

// Fetch requests the timings of every date from..to
func (s *AladhanSource) Fetch(ctx context.Context, from, to time.Time) ([]prayer.Event, error) {
	var events []prayer.Event
	last := prayer.DateOf(to)
	for i := 0; ; i++ {
		date := prayer.DateAdd(from, i)
		if date > last {
			break
		}
		day, err := s.fetchDay(ctx, date)
		if err != nil {
			return nil, err
		}
		events = append(events, day...)
	}
	s.logger.Debug().Int("events", len(events)).Msg("Aladhan timings fetched")
	return events, nil
}

func (s *AladhanSource) fetchDay(ctx context.Context, date string) ([]prayer.Event, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(s.latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(s.longitude, 'f', -1, 64))
	query.Set("method", strconv.Itoa(s.method))
	if name := s.loc.String(); name != "Local" && name != "" {
		query.Set("timezonestring", name)
	}
	endpoint := fmt.Sprintf("%s/v1/timings/%s?%s", s.baseURL, d.Format("02-01-2006"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build aladhan request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get prayer times for %s: %w", date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aladhan returned status %d for %s", resp.StatusCode, date)
	}

	var body aladhanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode aladhan response for %s: %w", date, err)
	}
	if len(body.Data.Timings) == 0 {
		return nil, fmt.Errorf("aladhan returned no timings for %s", date)
	}

	events := make([]prayer.Event, 0, len(body.Data.Timings))
	for raw, value := range body.Data.Timings {
		name := prayer.NormalizeName(raw)
		if !name.IsCanonical() && name != prayer.Sunrise && name != prayer.Sunset && name != prayer.Imsak && name != prayer.Midnight {
			continue
		}
		hhmm, err := cleanTiming(value)
		if err != nil {
			s.logger.Warn().Err(err).Str("prayer", raw).Str("date", date).Msg("Ignoring unparsable timing")
			continue
		}
		events = append(events, prayer.Event{Date: date, Name: name, Time: hhmm})
	}
	return events, nil
}

// cleanTiming turns "05:12 (CEST)" into "05:12"
func cleanTiming(value string) (string, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty timing")
	}
	t, err := time.Parse("15:04", fields[0])
	if err != nil {
		return "", fmt.Errorf("invalid timing %q: %w", value, err)
	}
	return t.Format("15:04"), nil
}
