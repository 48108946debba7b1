// Package gate decides whether a prayer firing may play.
// The server-side scheduler and polling browsers go through the same rules so they always agree.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/player"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/signals"
	"github.com/rs/zerolog"
)

// Reason explains a decision
type Reason string

const (
	ReasonReserved         Reason = "reserved"
	ReasonAuthorized       Reason = "authorized"
	ReasonScheduleDisabled Reason = "schedule-disabled"
	ReasonOneShotMuted     Reason = "one-shot-muted"
	ReasonAlreadyConsumed  Reason = "already-consumed-this-window"
)

// Decision is the outcome of an authorization. A deny is a normal result, not an error.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  Reason       `json:"reason"`
	Event   prayer.Event `json:"event"`
	// Set on allowed decisions only
	Target constants.OutputTarget `json:"target,omitempty"`
	Volume int                    `json:"volume,omitempty"`
	File   string                 `json:"file,omitempty"`
}

// Matrix answers whether a prayer is enabled on a weekday
type Matrix interface {
	IsAuthorized(ctx context.Context, name prayer.Name, weekday constants.Weekday) (bool, error)
}

// MuteStore persists the one-shot mute
type MuteStore interface {
	Get(ctx context.Context) (database.SkipState, error)
	SetSkip(ctx context.Context, skip bool) error
	Consume(ctx context.Context, date string, name prayer.Name) error
}

// SettingsSource provides the current audio settings
type SettingsSource interface {
	GetAudioSettings(ctx context.Context) (config.AudioSettings, error)
}

// Gate serializes every authorization behind one mutex so a one-shot mute is consumed exactly once
type Gate struct {
	matrix   Matrix
	mutes    MuteStore
	settings SettingsSource
	player   player.Player
	audioDir string
	logger   zerolog.Logger

	mu sync.Mutex
}

// New creates a playback gate. p may be nil when no server output is configured.
func New(matrix Matrix, mutes MuteStore, settings SettingsSource, p player.Player, audioDir string) *Gate {
	return &Gate{
		matrix:   matrix,
		mutes:    mutes,
		settings: settings,
		player:   p,
		audioDir: audioDir,
		logger:   logging.GetLogger("gate"),
	}
}

// Authorize applies the rules to a firing of name at date/time and consumes the one-shot mute if it is set
func (g *Gate) Authorize(ctx context.Context, name prayer.Name, date, tm string) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decide(ctx, prayer.Event{Date: date, Name: name, Time: tm}, true)
}

// Preview applies the same rules without consuming anything
func (g *Gate) Preview(ctx context.Context, name prayer.Name, date, tm string) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decide(ctx, prayer.Event{Date: date, Name: name, Time: tm}, false)
}

func (g *Gate) decide(ctx context.Context, event prayer.Event, consume bool) (Decision, error) {
	if event.Name.IsReserved() {
		return g.allow(ctx, event, ReasonReserved)
	}

	weekday, err := constants.WeekdayOfDate(event.Date)
	if err != nil {
		return Decision{}, err
	}
	enabled, err := g.matrix.IsAuthorized(ctx, event.Name, weekday)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check schedule: %w", err)
	}
	if !enabled {
		return deny(event, ReasonScheduleDisabled), nil
	}

	state, err := g.mutes.Get(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read one-shot mute: %w", err)
	}
	consumed := state.Consumed(event.Date, event.Name)
	// A mute armed again during the window it was consumed in is kept for the next prayer
	if state.Skip && !consumed {
		if consume {
			if err := g.mutes.Consume(ctx, event.Date, event.Name); err != nil {
				return Decision{}, err
			}
			g.logger.Info().Str("prayer", string(event.Name)).Str("date", event.Date).Msg("One-shot mute consumed")
		}
		return deny(event, ReasonOneShotMuted), nil
	}
	if consumed {
		return deny(event, ReasonAlreadyConsumed), nil
	}

	return g.allow(ctx, event, ReasonAuthorized)
}

func (g *Gate) allow(ctx context.Context, event prayer.Event, reason Reason) (Decision, error) {
	settings, err := g.settings.GetAudioSettings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load audio settings: %w", err)
	}
	isFajr := event.Name == prayer.Fajr
	return Decision{
		Allowed: true,
		Reason:  reason,
		Event:   event,
		Target:  settings.OutputTarget,
		Volume:  settings.VolumeFor(isFajr),
		File:    settings.FileFor(isFajr),
	}, nil
}

func deny(event prayer.Event, reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason, Event: event}
}

// Trigger authorizes a server-side firing and starts playback when the target includes the server.
// A missing audio file skips this firing only.
func (g *Gate) Trigger(ctx context.Context, event prayer.Event) (Decision, error) {
	logger := g.logger.With().Str("prayer", string(event.Name)).Str("date", event.Date).Str("time", event.Time).Logger()

	decision, err := g.Authorize(ctx, event.Name, event.Date, event.Time)
	if err != nil {
		logger.Error().Err(err).Msg("Authorization failed, not playing")
		g.emit(ctx, Decision{Event: event}, err)
		return Decision{}, err
	}
	if !decision.Allowed {
		logger.Info().Str("reason", string(decision.Reason)).Msg("Playback denied")
		g.emit(ctx, decision, nil)
		return decision, nil
	}

	err = g.play(ctx, decision)
	switch {
	case errors.Is(err, player.ErrMissingAsset):
		logger.Warn().Err(err).Msg("Audio file missing, skipping this firing")
	case err != nil:
		logger.Error().Err(err).Msg("Playback failed")
	default:
		logger.Info().Str("target", decision.Target.String()).Int("volume", decision.Volume).Msg("Playback authorized")
	}
	g.emit(ctx, decision, err)
	return decision, err
}

func (g *Gate) play(ctx context.Context, decision Decision) error {
	if !decision.Target.IncludesServer() {
		return nil
	}
	if g.player == nil {
		return errors.New("no server player configured")
	}
	path, err := player.ResolveAsset(g.audioDir, decision.File)
	if err != nil {
		return err
	}
	return g.player.Play(ctx, player.Request{
		Prayer: decision.Event.Name,
		Date:   decision.Event.Date,
		File:   path,
		Volume: decision.Volume,
	})
}

func (g *Gate) emit(ctx context.Context, decision Decision, err error) {
	data := signals.PlaybackDecidedData{
		Event:   decision.Event,
		Allowed: decision.Allowed,
		Reason:  string(decision.Reason),
		Target:  decision.Target,
		Volume:  decision.Volume,
		File:    decision.File,
	}
	if err != nil {
		data.Error = err.Error()
	}
	signals.EmitPlaybackDecided(ctx, data)
}

// TestPlayback plays the athan immediately under the reserved Test name
func (g *Gate) TestPlayback(ctx context.Context, now time.Time) (Decision, error) {
	return g.Trigger(ctx, prayer.Event{
		Date: prayer.DateOf(now),
		Name: prayer.Test,
		Time: now.Format(constants.TimeLayout),
	})
}

// StopPlayback stops any server playback
func (g *Gate) StopPlayback(ctx context.Context) error {
	if g.player == nil {
		return nil
	}
	return g.player.Stop(ctx)
}

// SetOneShotMute arms or disarms the one-shot mute
func (g *Gate) SetOneShotMute(ctx context.Context, skip bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutes.SetSkip(ctx, skip); err != nil {
		return err
	}
	g.logger.Info().Bool("skip", skip).Msg("One-shot mute updated")
	return nil
}

// OneShotMute returns the persisted one-shot mute
func (g *Gate) OneShotMute(ctx context.Context) (database.SkipState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutes.Get(ctx)
}
