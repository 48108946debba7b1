package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
)

// RefreshRecord is one calendar refresh attempt
type RefreshRecord struct {
	ID         int64     `db:"id" json:"id"`
	Source     string    `db:"source" json:"source"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Success    bool      `db:"success" json:"success"`
	Events     int       `db:"events" json:"events"`
	Error      string    `db:"error" json:"error,omitempty"`
}

// RefreshLog records calendar refresh attempts
type RefreshLog struct {
	db     *DB
	logger zerolog.Logger
}

// NewRefreshLog creates a new refresh log
func NewRefreshLog(db *DB) *RefreshLog {
	return &RefreshLog{db: db, logger: logging.GetLogger("refresh-log")}
}

// Record stores one refresh attempt
func (l *RefreshLog) Record(ctx context.Context, record RefreshRecord) error {
	_, err := l.db.Conn().ExecContext(ctx, `
		INSERT INTO calendar_refreshes (source, started_at, finished_at, success, events, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.Source, record.StartedAt.UTC(), record.FinishedAt.UTC(), record.Success, record.Events, record.Error)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to record calendar refresh")
		return fmt.Errorf("failed to record calendar refresh: %w", err)
	}
	return nil
}

// Recent returns the newest refresh attempts first
func (l *RefreshLog) Recent(ctx context.Context, limit int) ([]RefreshRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []RefreshRecord
	err := l.db.X().SelectContext(ctx, &records, `
		SELECT id, source, started_at, finished_at, success, events, error
		FROM calendar_refreshes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar refreshes: %w", err)
	}
	return records, nil
}

// LastSuccess returns the most recent successful refresh, or nil
func (l *RefreshLog) LastSuccess(ctx context.Context) (*RefreshRecord, error) {
	var record RefreshRecord
	err := l.db.X().GetContext(ctx, &record, `
		SELECT id, source, started_at, finished_at, success, events, error
		FROM calendar_refreshes
		WHERE success = 1
		ORDER BY id DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last calendar refresh: %w", err)
	}
	return &record, nil
}
