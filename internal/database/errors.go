package database

import "errors"

var (
	// ErrInvalidWeekday is returned for weekday indexes outside 0..6
	ErrInvalidWeekday = errors.New("invalid weekday")
	// ErrUnknownPrayer is returned when a schedule write names something other than a canonical prayer
	ErrUnknownPrayer = errors.New("unknown prayer")
	// ErrNoSettings is returned before the audio settings have been seeded
	ErrNoSettings = errors.New("no audio settings found")
)
