// Package viewhelpers shapes stored prayer times into month grids for the calendar endpoint
package viewhelpers

import (
	"fmt"
	"time"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/schedule"
)

// PrayerSlot is one prayer of a day as shown in the calendar
type PrayerSlot struct {
	Name prayer.Name `json:"name"`
	Time string      `json:"time"`
	// Enabled is the schedule matrix cell; auxiliary markers are never enabled
	Enabled bool `json:"enabled"`
}

// CalendarDay represents a single day cell in the calendar view.
type CalendarDay struct {
	Date           string            `json:"date"`
	DayOfMonth     int               `json:"day_of_month"`
	Weekday        constants.Weekday `json:"weekday"`
	IsCurrentMonth bool              `json:"is_current_month"` // Is this day within the primary month being displayed?
	Prayers        []PrayerSlot      `json:"prayers"`
}

// CalculateCalendarRange determines the start and end dates for a calendar view
// that displays full weeks (Monday to Sunday) containing the month of the refDate.
func CalculateCalendarRange(refDate time.Time) (startDate time.Time, endDate time.Time) {
	year, month, _ := refDate.Date()
	firstOfMonth := time.Date(year, month, 1, 12, 0, 0, 0, refDate.Location())
	lastOfMonth := time.Date(year, month+1, 0, 12, 0, 0, 0, refDate.Location())

	startDate = firstOfMonth.AddDate(0, 0, -int(constants.WeekdayOf(firstOfMonth)))
	endDate = lastOfMonth.AddDate(0, 0, int(constants.Sunday-constants.WeekdayOf(lastOfMonth)))

	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	endDate = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 23, 59, 59, 999999999, endDate.Location())
	return startDate, endDate
}

// DatesBetween lists the calendar dates from start to end inclusive
func DatesBetween(start, end time.Time) []string {
	last := prayer.DateOf(end)
	var dates []string
	for i := 0; ; i++ {
		d := prayer.DateAdd(start, i)
		if d > last {
			return dates
		}
		dates = append(dates, d)
	}
}

// StructurePrayersForTemplate organizes prayer times into weeks, marking each canonical prayer
// with its schedule matrix cell.
func StructurePrayersForTemplate(startDate, endDate time.Time, events []prayer.Event, grid schedule.Grid) (monthName string, weeks [][]CalendarDay) {
	// The primary month is the month of the 15th day within the range
	midPointDate := startDate.AddDate(0, 0, 14)
	primaryMonth := midPointDate.Month()
	primaryYear := midPointDate.Year()
	monthName = fmt.Sprintf("%s %d", primaryMonth.String(), primaryYear)

	byDate := make(map[string][]PrayerSlot)
	for _, e := range events {
		slot := PrayerSlot{Name: e.Name, Time: e.Time}
		if e.Name.IsCanonical() {
			if weekday, err := constants.WeekdayOfDate(e.Date); err == nil {
				slot.Enabled = grid.Enabled(e.Name, weekday)
			}
		}
		byDate[e.Date] = append(byDate[e.Date], slot)
	}

	var currentWeek []CalendarDay
	for _, date := range DatesBetween(startDate, endDate) {
		d, _ := time.Parse(constants.DateLayout, date)
		day := CalendarDay{
			Date:           date,
			DayOfMonth:     d.Day(),
			Weekday:        constants.WeekdayOf(d),
			IsCurrentMonth: d.Month() == primaryMonth && d.Year() == primaryYear,
			Prayers:        byDate[date],
		}
		currentWeek = append(currentWeek, day)

		if day.Weekday == constants.Sunday {
			weeks = append(weeks, currentWeek)
			currentWeek = nil
		}
	}
	if len(currentWeek) > 0 {
		weeks = append(weeks, currentWeek)
	}

	return monthName, weeks
}
