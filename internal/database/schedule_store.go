package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// ScheduleCell is one (prayer, weekday) switch of the schedule matrix
type ScheduleCell struct {
	Prayer  prayer.Name       `db:"prayer_name" json:"prayer"`
	Weekday constants.Weekday `db:"day_of_week" json:"weekday"`
	Enabled bool              `db:"enabled" json:"enabled"`
}

// WeekdayMute is the whole-day mute flag of a weekday
type WeekdayMute struct {
	Weekday constants.Weekday `db:"weekday" json:"weekday"`
	Muted   bool              `db:"muted" json:"muted"`
}

// ScheduleStore persists the schedule matrix and the weekday mutes.
// Every write is committed before returning; nothing is cached.
type ScheduleStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewScheduleStore creates a new schedule store
func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{db: db, logger: logging.GetLogger("schedule-store")}
}

func validateCell(name prayer.Name, weekday constants.Weekday) error {
	if !name.IsCanonical() {
		return fmt.Errorf("%w: %s", ErrUnknownPrayer, name)
	}
	return validateWeekday(weekday)
}

func validateWeekday(weekday constants.Weekday) error {
	if !weekday.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, int(weekday))
	}
	return nil
}

// EnsureCells inserts any missing matrix cell as enabled, leaving existing cells untouched
func (s *ScheduleStore) EnsureCells(ctx context.Context) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var inserted int64
		for _, name := range prayer.Canonical() {
			for _, day := range constants.AllWeekdays() {
				res, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO schedule_matrix (prayer_name, day_of_week, enabled)
					VALUES (?, ?, 1)
				`, string(name), int(day))
				if err != nil {
					return fmt.Errorf("failed to ensure schedule cell %s/%s: %w", name, day, err)
				}
				n, _ := res.RowsAffected()
				inserted += n
			}
		}
		for _, day := range constants.AllWeekdays() {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO weekday_mutes (weekday, muted) VALUES (?, 0)`, int(day)); err != nil {
				return fmt.Errorf("failed to ensure weekday mute %s: %w", day, err)
			}
		}
		if inserted > 0 {
			s.logger.Warn().Int64("inserted", inserted).Msg("Restored missing schedule cells as enabled")
		}
		return nil
	})
}

// IsAuthorized reports whether the cell for (name, weekday) is enabled
func (s *ScheduleStore) IsAuthorized(ctx context.Context, name prayer.Name, weekday constants.Weekday) (bool, error) {
	if err := validateCell(name, weekday); err != nil {
		return false, err
	}

	var enabled bool
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT enabled
		FROM schedule_matrix
		WHERE prayer_name = ? AND day_of_week = ?
	`, string(name), int(weekday)).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		// A missing cell behaves like its default; EnsureCells restores it on startup
		s.logger.Warn().Str("prayer", string(name)).Stringer("weekday", weekday).Msg("Schedule cell missing, treating as enabled")
		return true, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("prayer", string(name)).Stringer("weekday", weekday).Msg("Failed to read schedule cell")
		return false, fmt.Errorf("failed to read schedule cell: %w", err)
	}
	return enabled, nil
}

// SetCell enables or disables one cell.
// Enabling a cell of a muted weekday unmutes that weekday.
func (s *ScheduleStore) SetCell(ctx context.Context, name prayer.Name, weekday constants.Weekday, enabled bool) error {
	if err := validateCell(name, weekday); err != nil {
		return err
	}
	s.logger.Debug().Str("prayer", string(name)).Stringer("weekday", weekday).Bool("enabled", enabled).Msg("Saving schedule cell")

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_matrix (prayer_name, day_of_week, enabled, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(prayer_name, day_of_week) DO UPDATE SET
				enabled = excluded.enabled,
				enabled_before_mute = NULL,
				updated_at = CURRENT_TIMESTAMP
		`, string(name), int(weekday), enabled); err != nil {
			return fmt.Errorf("failed to save schedule cell: %w", err)
		}
		if enabled {
			return clearWeekdayMutes(ctx, tx, weekday)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save schedule cell")
		return err
	}
	return nil
}

// SetRow enables or disables a prayer on every weekday
func (s *ScheduleStore) SetRow(ctx context.Context, name prayer.Name, enabled bool) error {
	if !name.IsCanonical() {
		return fmt.Errorf("%w: %s", ErrUnknownPrayer, name)
	}
	s.logger.Debug().Str("prayer", string(name)).Bool("enabled", enabled).Msg("Saving schedule row")

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled = ?, enabled_before_mute = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE prayer_name = ?
		`, enabled, string(name)); err != nil {
			return fmt.Errorf("failed to save schedule row: %w", err)
		}
		if enabled {
			return clearWeekdayMutes(ctx, tx, constants.AllWeekdays()...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save schedule row")
		return err
	}
	return nil
}

// SetColumn enables or disables every prayer on one weekday
func (s *ScheduleStore) SetColumn(ctx context.Context, weekday constants.Weekday, enabled bool) error {
	if err := validateWeekday(weekday); err != nil {
		return err
	}
	s.logger.Debug().Stringer("weekday", weekday).Bool("enabled", enabled).Msg("Saving schedule column")

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled = ?, enabled_before_mute = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE day_of_week = ?
		`, enabled, int(weekday)); err != nil {
			return fmt.Errorf("failed to save schedule column: %w", err)
		}
		if enabled {
			return clearWeekdayMutes(ctx, tx, weekday)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save schedule column")
		return err
	}
	return nil
}

// SetAll enables or disables the whole matrix
func (s *ScheduleStore) SetAll(ctx context.Context, enabled bool) error {
	s.logger.Debug().Bool("enabled", enabled).Msg("Saving whole schedule matrix")

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled = ?, enabled_before_mute = NULL, updated_at = CURRENT_TIMESTAMP
		`, enabled); err != nil {
			return fmt.Errorf("failed to save schedule matrix: %w", err)
		}
		if enabled {
			return clearWeekdayMutes(ctx, tx, constants.AllWeekdays()...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save schedule matrix")
		return err
	}
	return nil
}

// Cells returns the whole matrix ordered by prayer then weekday
func (s *ScheduleStore) Cells(ctx context.Context) ([]ScheduleCell, error) {
	var cells []ScheduleCell
	err := s.db.X().SelectContext(ctx, &cells, `
		SELECT prayer_name, day_of_week, enabled
		FROM schedule_matrix
		ORDER BY CASE prayer_name
			WHEN 'Fajr' THEN 0
			WHEN 'Dhuhr' THEN 1
			WHEN 'Asr' THEN 2
			WHEN 'Maghrib' THEN 3
			WHEN 'Isha' THEN 4
		END, day_of_week
	`)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query schedule matrix")
		return nil, fmt.Errorf("failed to query schedule matrix: %w", err)
	}
	return cells, nil
}

// SetWeekdayMute mutes or unmutes a whole weekday in one transaction.
// Muting saves the weekday's cells and disables them; unmuting restores the saved cells,
// so cells disabled before the mute stay disabled.
func (s *ScheduleStore) SetWeekdayMute(ctx context.Context, weekday constants.Weekday, muted bool) error {
	if err := validateWeekday(weekday); err != nil {
		return err
	}
	s.logger.Debug().Stringer("weekday", weekday).Bool("muted", muted).Msg("Saving weekday mute")

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if !muted {
			return clearWeekdayMutes(ctx, tx, weekday)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weekday_mutes (weekday, muted, updated_at)
			VALUES (?, 1, CURRENT_TIMESTAMP)
			ON CONFLICT(weekday) DO UPDATE SET
				muted = 1,
				updated_at = CURRENT_TIMESTAMP
		`, int(weekday)); err != nil {
			return fmt.Errorf("failed to save weekday mute: %w", err)
		}
		// Cells already saved by an earlier mute keep their saved state
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled_before_mute = enabled
			WHERE day_of_week = ? AND enabled_before_mute IS NULL
		`, int(weekday)); err != nil {
			return fmt.Errorf("failed to save cells of muted weekday: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled = 0, updated_at = CURRENT_TIMESTAMP
			WHERE day_of_week = ?
		`, int(weekday)); err != nil {
			return fmt.Errorf("failed to apply weekday mute to schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save weekday mute")
		return err
	}
	return nil
}

// WeekdayMutes returns the seven weekday mute flags, Monday first
func (s *ScheduleStore) WeekdayMutes(ctx context.Context) ([]WeekdayMute, error) {
	var mutes []WeekdayMute
	if err := s.db.X().SelectContext(ctx, &mutes, `SELECT weekday, muted FROM weekday_mutes ORDER BY weekday`); err != nil {
		s.logger.Error().Err(err).Msg("Failed to query weekday mutes")
		return nil, fmt.Errorf("failed to query weekday mutes: %w", err)
	}
	return mutes, nil
}

// IsWeekdayMuted returns the mute flag of one weekday
func (s *ScheduleStore) IsWeekdayMuted(ctx context.Context, weekday constants.Weekday) (bool, error) {
	if err := validateWeekday(weekday); err != nil {
		return false, err
	}
	var muted bool
	err := s.db.Conn().QueryRowContext(ctx, `SELECT muted FROM weekday_mutes WHERE weekday = ?`, int(weekday)).Scan(&muted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read weekday mute: %w", err)
	}
	return muted, nil
}

// clearWeekdayMutes unmutes the given weekdays, restoring the cells saved when they were muted.
// Cells written since the mute have no saved state and keep their current value.
func clearWeekdayMutes(ctx context.Context, tx *sql.Tx, weekdays ...constants.Weekday) error {
	for _, day := range weekdays {
		res, err := tx.ExecContext(ctx, `
			UPDATE weekday_mutes
			SET muted = 0, updated_at = CURRENT_TIMESTAMP
			WHERE weekday = ? AND muted = 1
		`, int(day))
		if err != nil {
			return fmt.Errorf("failed to clear weekday mute %s: %w", day, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_matrix
			SET enabled = COALESCE(enabled_before_mute, enabled),
				enabled_before_mute = NULL,
				updated_at = CURRENT_TIMESTAMP
			WHERE day_of_week = ?
		`, int(day)); err != nil {
			return fmt.Errorf("failed to restore cells of weekday %s: %w", day, err)
		}
	}
	return nil
}
