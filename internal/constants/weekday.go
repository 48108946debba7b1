package constants

import (
	"fmt"
	"time"
)

// Weekday is a day index shared by the schedule matrix and the weekday mutes.
// The week starts on Monday: 0 = Monday ... 6 = Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysInWeek is the number of weekday columns in the schedule matrix
const DaysInWeek = 7

var weekdayNames = [DaysInWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// IsValid checks the weekday is within 0..6
func (w Weekday) IsValid() bool {
	return w >= Monday && w <= Sunday
}

// String returns the English day name
func (w Weekday) String() string {
	if !w.IsValid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// WeekdayOf converts a date into its Monday-based index
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// WeekdayOfDate parses a YYYY-MM-DD date and returns its Monday-based index
func WeekdayOfDate(date string) (Weekday, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return WeekdayOf(t), nil
}

// ParseWeekday validates an integer weekday index
func ParseWeekday(i int) (Weekday, error) {
	w := Weekday(i)
	if !w.IsValid() {
		return 0, fmt.Errorf("invalid weekday: %d (must be between 0=Monday and 6=Sunday)", i)
	}
	return w, nil
}

// AllWeekdays returns the seven weekdays from Monday to Sunday
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}
