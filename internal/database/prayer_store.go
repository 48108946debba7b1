package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// PrayerStore persists the prayer calendar
type PrayerStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewPrayerStore creates a new prayer store
func NewPrayerStore(db *DB) *PrayerStore {
	return &PrayerStore{db: db, logger: logging.GetLogger("prayer-store")}
}

// ReplaceFrom replaces every entry dated fromDate or later with events fetched at fetchedAt.
// Older entries are kept as history. The replacement is atomic.
func (s *PrayerStore) ReplaceFrom(ctx context.Context, fromDate string, fetchedAt time.Time, events []prayer.Event) error {
	s.logger.Debug().Str("from", fromDate).Int("events", len(events)).Msg("Replacing prayer calendar")
	fetchedAt = fetchedAt.UTC()

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM prayer_times WHERE date >= ?`, fromDate)
		if err != nil {
			return fmt.Errorf("failed to delete upcoming prayer times: %w", err)
		}
		deleted, _ := res.RowsAffected()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO prayer_times (date, name, time, fetched_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(date, name) DO UPDATE SET
				time = excluded.time,
				fetched_at = excluded.fetched_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare prayer time insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx, e.Date, string(e.Name), e.Time, fetchedAt); err != nil {
				return fmt.Errorf("failed to insert prayer time %s: %w", e.Key(), err)
			}
		}

		s.logger.Debug().Int64("deleted", deleted).Int("inserted", len(events)).Msg("Prayer calendar rows replaced")
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to replace prayer calendar")
		return err
	}
	return nil
}

// EventsBetween returns the entries dated from..to inclusive, ordered by date then time
func (s *PrayerStore) EventsBetween(ctx context.Context, from, to string, canonicalOnly bool) ([]prayer.Event, error) {
	query := `
		SELECT date, name, time
		FROM prayer_times
		WHERE date BETWEEN ? AND ?`
	args := []any{from, to}
	if canonicalOnly {
		names := make([]string, 0, 5)
		for _, n := range prayer.Canonical() {
			names = append(names, string(n))
		}
		inQuery, inArgs, err := sqlx.In(` AND name IN (?)`, names)
		if err != nil {
			return nil, fmt.Errorf("failed to build prayer name filter: %w", err)
		}
		query += inQuery
		args = append(args, inArgs...)
	}
	query += ` ORDER BY date, time`

	var events []prayer.Event
	if err := s.db.X().SelectContext(ctx, &events, s.db.X().Rebind(query), args...); err != nil {
		s.logger.Error().Err(err).Str("from", from).Str("to", to).Msg("Failed to query prayer times")
		return nil, fmt.Errorf("failed to query prayer times: %w", err)
	}
	s.logger.Debug().Str("from", from).Str("to", to).Int("events", len(events)).Msg("Prayer times retrieved")
	return events, nil
}

// EventsOn returns every stored entry, auxiliary markers included, for the given dates
func (s *PrayerStore) EventsOn(ctx context.Context, dates ...string) ([]prayer.Event, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT date, name, time
		FROM prayer_times
		WHERE date IN (?)
		ORDER BY date, time
	`, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to build date filter: %w", err)
	}

	var events []prayer.Event
	if err := s.db.X().SelectContext(ctx, &events, s.db.X().Rebind(query), args...); err != nil {
		s.logger.Error().Err(err).Strs("dates", dates).Msg("Failed to query prayer times by date")
		return nil, fmt.Errorf("failed to query prayer times: %w", err)
	}
	return events, nil
}

// Count returns the number of stored entries dated fromDate or later
func (s *PrayerStore) Count(ctx context.Context, fromDate string) (int, error) {
	var count int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM prayer_times WHERE date >= ?`, fromDate).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prayer times: %w", err)
	}
	return count, nil
}
