package database

import (
	"context"
	"fmt"
	"time"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PlaybackEntry is one recorded playback decision
type PlaybackEntry struct {
	ID         string    `db:"id" json:"id"`
	PrayerName string    `db:"prayer_name" json:"prayer"`
	PrayerDate string    `db:"prayer_date" json:"date"`
	PrayerTime string    `db:"prayer_time" json:"time"`
	Allowed    bool      `db:"allowed" json:"allowed"`
	Reason     string    `db:"reason" json:"reason"`
	Target     string    `db:"target" json:"target,omitempty"`
	Error      string    `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PlaybackLog records server-side playback decisions
type PlaybackLog struct {
	db     *DB
	logger zerolog.Logger
}

// NewPlaybackLog creates a new playback log
func NewPlaybackLog(db *DB) *PlaybackLog {
	return &PlaybackLog{db: db, logger: logging.GetLogger("playback-log")}
}

// Record stores an entry, assigning an ID and timestamp when missing
func (l *PlaybackLog) Record(ctx context.Context, entry PlaybackEntry) (PlaybackEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	_, err := l.db.X().NamedExecContext(ctx, `
		INSERT INTO playback_log (id, prayer_name, prayer_date, prayer_time, allowed, reason, target, error, created_at)
		VALUES (:id, :prayer_name, :prayer_date, :prayer_time, :allowed, :reason, :target, :error, :created_at)
	`, entry)
	if err != nil {
		l.logger.Error().Err(err).Str("prayer", entry.PrayerName).Msg("Failed to record playback decision")
		return entry, fmt.Errorf("failed to record playback decision: %w", err)
	}
	l.logger.Debug().Str("id", entry.ID).Str("prayer", entry.PrayerName).Bool("allowed", entry.Allowed).Msg("Playback decision recorded")
	return entry, nil
}

// Recent returns the newest entries first
func (l *PlaybackLog) Recent(ctx context.Context, limit int) ([]PlaybackEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []PlaybackEntry
	err := l.db.X().SelectContext(ctx, &entries, `
		SELECT id, prayer_name, prayer_date, prayer_time, allowed, reason, target, error, created_at
		FROM playback_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to query playback log")
		return nil, fmt.Errorf("failed to query playback log: %w", err)
	}
	return entries, nil
}
