package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/rs/zerolog"
)

// SkipState is the one-shot mute flag and the last (date, prayer) it consumed
type SkipState struct {
	Skip       bool        `json:"skip"`
	LastPrayer prayer.Name `json:"last_skipped_prayer,omitempty"`
	LastDate   string      `json:"last_skipped_date,omitempty"`
}

// Consumed reports whether the flag was already consumed by (date, name)
func (s SkipState) Consumed(date string, name prayer.Name) bool {
	return s.LastDate != "" && s.LastDate == date && s.LastPrayer == name
}

// SkipStore persists the one-shot mute
type SkipStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSkipStore creates a new skip store
func NewSkipStore(db *DB) *SkipStore {
	return &SkipStore{db: db.Conn(), logger: logging.GetLogger("skip-store")}
}

// Get returns the current one-shot mute state
func (s *SkipStore) Get(ctx context.Context) (SkipState, error) {
	var (
		state      SkipState
		lastPrayer sql.NullString
		lastDate   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT skip, last_skipped_prayer, last_skipped_date
		FROM skip_next
		WHERE id = 1
	`).Scan(&state.Skip, &lastPrayer, &lastDate)
	if err == sql.ErrNoRows {
		return SkipState{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read one-shot mute")
		return SkipState{}, fmt.Errorf("failed to read one-shot mute: %w", err)
	}
	state.LastPrayer = prayer.Name(lastPrayer.String)
	state.LastDate = lastDate.String
	return state, nil
}

// SetSkip arms or disarms the one-shot mute; the last consumed record is kept
func (s *SkipStore) SetSkip(ctx context.Context, skip bool) error {
	s.logger.Debug().Bool("skip", skip).Msg("Saving one-shot mute")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skip_next (id, skip, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			skip = excluded.skip,
			updated_at = CURRENT_TIMESTAMP
	`, skip)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save one-shot mute")
		return fmt.Errorf("failed to save one-shot mute: %w", err)
	}
	return nil
}

// Consume clears the flag and records (date, name) as the last consumed firing in a single write
func (s *SkipStore) Consume(ctx context.Context, date string, name prayer.Name) error {
	s.logger.Debug().Str("date", date).Str("prayer", string(name)).Msg("Consuming one-shot mute")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skip_next (id, skip, last_skipped_prayer, last_skipped_date, updated_at)
		VALUES (1, 0, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			skip = 0,
			last_skipped_prayer = excluded.last_skipped_prayer,
			last_skipped_date = excluded.last_skipped_date,
			updated_at = CURRENT_TIMESTAMP
	`, string(name), date)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to consume one-shot mute")
		return fmt.Errorf("failed to consume one-shot mute: %w", err)
	}
	return nil
}
