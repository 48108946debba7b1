// Package prayer holds the prayer calendar domain types shared by the scheduler, the gate and the status resolver
package prayer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/belphemur/athan-scheduler/internal/constants"
)

// Name identifies a prayer or an auxiliary calendar marker
type Name string

const (
	Fajr    Name = "Fajr"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"

	// Auxiliary markers are stored but never armed
	Sunrise  Name = "Sunrise"
	Sunset   Name = "Sunset"
	Imsak    Name = "Imsak"
	Midnight Name = "Midnight"

	// Reserved names bypass every authorization rule
	Test     Name = "Test"
	Startup  Name = "Startup"
	PageLoad Name = "PageLoad"
)

var canonical = []Name{Fajr, Dhuhr, Asr, Maghrib, Isha}

// aliases maps lowercase spellings found in calendar feeds to their Name
var aliases = map[string]Name{
	"fajr":     Fajr,
	"fajar":    Fajr,
	"subh":     Fajr,
	"dhuhr":    Dhuhr,
	"duhr":     Dhuhr,
	"zuhr":     Dhuhr,
	"zohr":     Dhuhr,
	"dhuhur":   Dhuhr,
	"asr":      Asr,
	"asar":     Asr,
	"maghrib":  Maghrib,
	"magrib":   Maghrib,
	"isha":     Isha,
	"ishaa":    Isha,
	"isha'a":   Isha,
	"sunrise":  Sunrise,
	"shuruq":   Sunrise,
	"sunset":   Sunset,
	"imsak":    Imsak,
	"midnight": Midnight,
}

// Canonical returns the five daily prayers in their natural order
func Canonical() []Name {
	out := make([]Name, len(canonical))
	copy(out, canonical)
	return out
}

// IsCanonical reports whether the name is one of the five scheduled prayers
func (n Name) IsCanonical() bool {
	for _, c := range canonical {
		if c == n {
			return true
		}
	}
	return false
}

// IsReserved reports whether the name is a synthetic sound name (manual test, startup, page load)
func (n Name) IsReserved() bool {
	return n == Test || n == Startup || n == PageLoad
}

// Index returns the position of a canonical prayer in the day, or -1
func (n Name) Index() int {
	for i, c := range canonical {
		if c == n {
			return i
		}
	}
	return -1
}

func (n Name) String() string {
	return string(n)
}

// NormalizeName maps a feed spelling onto a Name.
// Unknown names are returned title-cased so they can still be stored as history.
func NormalizeName(raw string) Name {
	trimmed := strings.TrimSpace(raw)
	if known, ok := aliases[strings.ToLower(trimmed)]; ok {
		return known
	}
	switch strings.ToLower(trimmed) {
	case "test":
		return Test
	case "startup":
		return Startup
	case "pageload":
		return PageLoad
	}
	if trimmed == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(trimmed)
	return Name(strings.ToUpper(string(first)) + strings.ToLower(trimmed[size:]))
}

// ParseCanonical normalizes raw and fails unless it names one of the five prayers
func ParseCanonical(raw string) (Name, error) {
	n := NormalizeName(raw)
	if !n.IsCanonical() {
		return "", fmt.Errorf("unknown prayer: %q", raw)
	}
	return n, nil
}

// Event is one calendar entry, keyed by (Date, Name)
type Event struct {
	Date string `json:"date" db:"date"`
	Name Name   `json:"name" db:"name"`
	Time string `json:"time" db:"time"`
}

// Key identifies an event for exactly-once bookkeeping
type Key struct {
	Date string
	Name Name
}

func (k Key) String() string {
	return k.Date + "/" + string(k.Name)
}

// Key returns the (date, name) identity of the event
func (e Event) Key() Key {
	return Key{Date: e.Date, Name: e.Name}
}

// At returns the instant of the event in loc
func (e Event) At(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DateLayout+" "+constants.TimeLayout, e.Date+" "+e.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event %s %s at %q: %w", e.Date, e.Name, e.Time, err)
	}
	return t, nil
}

// Validate checks the date and time formats
func (e Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event on %s has no name", e.Date)
	}
	if _, err := time.Parse(constants.DateLayout, e.Date); err != nil {
		return fmt.Errorf("invalid event date %q: %w", e.Date, err)
	}
	if _, err := time.Parse(constants.TimeLayout, e.Time); err != nil {
		return fmt.Errorf("invalid event time %q: %w", e.Time, err)
	}
	return nil
}

// Less orders events by date then time then canonical position
func Less(a, b Event) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.Name.Index() < b.Name.Index()
}

// Compare is Less in cmp form for slices.SortFunc
func Compare(a, b Event) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

// DateOf formats t as a calendar date in its own location
func DateOf(t time.Time) string {
	return t.Format(constants.DateLayout)
}

// DateAdd returns the calendar date days after t's date, in t's location.
// It counts calendar days, so DST transitions never skip or repeat a date.
func DateAdd(t time.Time, days int) string {
	return time.Date(t.Year(), t.Month(), t.Day()+days, 12, 0, 0, 0, t.Location()).Format(constants.DateLayout)
}
