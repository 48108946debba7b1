// Package schedule exposes the prayer x weekday schedule matrix, the sole authority on which
// prayers may sound on which day of the week.
package schedule

import (
	"context"
	"fmt"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// Store is the persistence behind the matrix
type Store interface {
	IsAuthorized(ctx context.Context, name prayer.Name, weekday constants.Weekday) (bool, error)
	SetCell(ctx context.Context, name prayer.Name, weekday constants.Weekday, enabled bool) error
	SetRow(ctx context.Context, name prayer.Name, enabled bool) error
	SetColumn(ctx context.Context, weekday constants.Weekday, enabled bool) error
	SetAll(ctx context.Context, enabled bool) error
	Cells(ctx context.Context) ([]database.ScheduleCell, error)
	SetWeekdayMute(ctx context.Context, weekday constants.Weekday, muted bool) error
	WeekdayMutes(ctx context.Context) ([]database.WeekdayMute, error)
}

// Row is one prayer across the week
type Row struct {
	Prayer           prayer.Name                `json:"prayer"`
	Days             [constants.DaysInWeek]bool `json:"days"`
	GenerallyEnabled bool                       `json:"generally_enabled"`
}

// Grid is the whole matrix plus the weekday mute flags, Monday first
type Grid struct {
	Rows  []Row                      `json:"rows"`
	Mutes [constants.DaysInWeek]bool `json:"weekday_mutes"`
}

// Enabled returns the cell for (name, weekday); unknown prayers are disabled
func (g Grid) Enabled(name prayer.Name, weekday constants.Weekday) bool {
	if !weekday.IsValid() {
		return false
	}
	for _, row := range g.Rows {
		if row.Prayer == name {
			return row.Days[weekday]
		}
	}
	return false
}

// Matrix reads and edits the schedule matrix
type Matrix struct {
	store  Store
	logger zerolog.Logger
}

// NewMatrix creates the schedule matrix service
func NewMatrix(store Store) *Matrix {
	return &Matrix{store: store, logger: logging.GetLogger("schedule")}
}

// IsAuthorized reports whether name may play on weekday
func (m *Matrix) IsAuthorized(ctx context.Context, name prayer.Name, weekday constants.Weekday) (bool, error) {
	return m.store.IsAuthorized(ctx, name, weekday)
}

// IsAuthorizedOn reports whether name may play on the weekday of date (YYYY-MM-DD)
func (m *Matrix) IsAuthorizedOn(ctx context.Context, name prayer.Name, date string) (bool, error) {
	weekday, err := constants.WeekdayOfDate(date)
	if err != nil {
		return false, err
	}
	return m.store.IsAuthorized(ctx, name, weekday)
}

// SetCell enables or disables one prayer on one weekday
func (m *Matrix) SetCell(ctx context.Context, name prayer.Name, weekday constants.Weekday, enabled bool) error {
	if err := m.store.SetCell(ctx, name, weekday, enabled); err != nil {
		return err
	}
	m.logger.Info().Str("prayer", string(name)).Stringer("weekday", weekday).Bool("enabled", enabled).Msg("Schedule cell updated")
	return nil
}

// SetRow enables or disables one prayer for the whole week
func (m *Matrix) SetRow(ctx context.Context, name prayer.Name, enabled bool) error {
	if err := m.store.SetRow(ctx, name, enabled); err != nil {
		return err
	}
	m.logger.Info().Str("prayer", string(name)).Bool("enabled", enabled).Msg("Schedule row updated")
	return nil
}

// SetColumn enables or disables every prayer of one weekday
func (m *Matrix) SetColumn(ctx context.Context, weekday constants.Weekday, enabled bool) error {
	if err := m.store.SetColumn(ctx, weekday, enabled); err != nil {
		return err
	}
	m.logger.Info().Stringer("weekday", weekday).Bool("enabled", enabled).Msg("Schedule column updated")
	return nil
}

// SetAll enables or disables the whole matrix
func (m *Matrix) SetAll(ctx context.Context, enabled bool) error {
	if err := m.store.SetAll(ctx, enabled); err != nil {
		return err
	}
	m.logger.Info().Bool("enabled", enabled).Msg("Schedule matrix updated")
	return nil
}

// GenerallyEnabled is true only when the prayer is enabled on all seven weekdays
func (m *Matrix) GenerallyEnabled(ctx context.Context, name prayer.Name) (bool, error) {
	if !name.IsCanonical() {
		return false, fmt.Errorf("%w: %s", database.ErrUnknownPrayer, name)
	}
	grid, err := m.Grid(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range grid.Rows {
		if row.Prayer == name {
			return row.GenerallyEnabled, nil
		}
	}
	return false, nil
}

// Grid returns the full matrix in canonical prayer order.
// Missing cells are reported enabled, matching IsAuthorized.
func (m *Matrix) Grid(ctx context.Context) (Grid, error) {
	cells, err := m.store.Cells(ctx)
	if err != nil {
		return Grid{}, err
	}
	mutes, err := m.store.WeekdayMutes(ctx)
	if err != nil {
		return Grid{}, err
	}

	rows := make(map[prayer.Name]*Row, len(prayer.Canonical()))
	grid := Grid{Rows: make([]Row, 0, len(prayer.Canonical()))}
	for _, name := range prayer.Canonical() {
		row := Row{Prayer: name}
		for i := range row.Days {
			row.Days[i] = true
		}
		grid.Rows = append(grid.Rows, row)
	}
	for i := range grid.Rows {
		rows[grid.Rows[i].Prayer] = &grid.Rows[i]
	}

	for _, cell := range cells {
		row, ok := rows[cell.Prayer]
		if !ok || !cell.Weekday.IsValid() {
			continue
		}
		row.Days[cell.Weekday] = cell.Enabled
	}
	for i := range grid.Rows {
		all := true
		for _, enabled := range grid.Rows[i].Days {
			all = all && enabled
		}
		grid.Rows[i].GenerallyEnabled = all
	}
	for _, mute := range mutes {
		if mute.Weekday.IsValid() {
			grid.Mutes[mute.Weekday] = mute.Muted
		}
	}
	return grid, nil
}

// SetWeekdayMute mutes or unmutes a whole weekday.
// Unmuting brings back the column as it was before the mute.
func (m *Matrix) SetWeekdayMute(ctx context.Context, weekday constants.Weekday, muted bool) error {
	if err := m.store.SetWeekdayMute(ctx, weekday, muted); err != nil {
		return err
	}
	m.logger.Info().Stringer("weekday", weekday).Bool("muted", muted).Msg("Weekday mute updated")
	return nil
}

// WeekdayMutes lists the seven weekday mute flags, Monday first
func (m *Matrix) WeekdayMutes(ctx context.Context) ([]database.WeekdayMute, error) {
	return m.store.WeekdayMutes(ctx)
}

// IsWeekdayMuted reports whether the weekday mute flag of weekday is set
func (m *Matrix) IsWeekdayMuted(ctx context.Context, weekday constants.Weekday) (bool, error) {
	if !weekday.IsValid() {
		return false, fmt.Errorf("%w: %d", database.ErrInvalidWeekday, int(weekday))
	}
	mutes, err := m.store.WeekdayMutes(ctx)
	if err != nil {
		return false, err
	}
	for _, mute := range mutes {
		if mute.Weekday == weekday {
			return mute.Muted, nil
		}
	}
	return false, nil
}
