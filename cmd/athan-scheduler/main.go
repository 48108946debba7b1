package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/belphemur/athan-scheduler/internal/calendar"
	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/drift"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/handlers"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/player"
	"github.com/belphemur/athan-scheduler/internal/schedule"
	"github.com/belphemur/athan-scheduler/internal/scheduler"
	appSignals "github.com/belphemur/athan-scheduler/internal/signals"
	"github.com/belphemur/athan-scheduler/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env file is fine, the environment may already be set
	envErr := godotenv.Load()

	// Determine if we're in development mode
	isDev := os.Getenv("ENV") != "production"

	// Initialize logging
	logging.Initialize(isDev)
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	// Get a logger for the main component
	logger := logging.GetLogger("main")
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn().Err(envErr).Msg("Failed to load .env file")
	}

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", date).
		Msg("Starting Athan Scheduler")

	// Create context that's canceled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
		cancel()
	}()

	if err := run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Application run failed")
	}
}

func run(ctx context.Context) error {
	logger := logging.GetLogger("main")

	// Get config file path from environment or use default
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "configs/athan.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// Log error before returning, as main's fatal log won't have config context
		logger.Error().Err(err).Str("config_path", configPath).Msg("Failed to load configuration")
		return err
	}

	// Set log level from configuration
	if !logging.SetLogLevel(cfg.Service.LogLevel) {
		logger.Warn().Str("log_level", cfg.Service.LogLevel).Msg("Unknown log level, using info")
	}
	logger.Info().Str("log_level", cfg.Service.LogLevel).Msg("Log level set")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(cfg.Service.StateFile), 0755); err != nil {
		logger.Error().Err(err).Str("path", filepath.Dir(cfg.Service.StateFile)).Msg("Failed to create data directory")
		return err
	}

	dbOpts := database.NewDefaultOptions(cfg.Service.StateFile)
	dbOpts.AutoVacuum = "incremental"
	db, err := database.New(dbOpts)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize database: %w", err)
		logger.Error().Err(wrappedErr).Str("db_path", cfg.Service.StateFile).Msg("Database initialization failed")
		return wrappedErr
	}
	defer db.Close()

	if err := db.MigrateDatabase(); err != nil {
		wrappedErr := fmt.Errorf("failed to initialize database schema: %w", err)
		logger.Error().Err(wrappedErr).Msg("Database schema initialization failed")
		return wrappedErr
	}

	settingsStore := database.NewSettingsStore(db)
	// Seed audio settings from the TOML file (runs only once on initial setup)
	if err := database.NewSettingsSeeder(settingsStore).SeedFromConfig(ctx, cfg); err != nil {
		wrappedErr := fmt.Errorf("failed to seed configuration: %w", err)
		logger.Error().Err(wrappedErr).Msg("Configuration seeding failed")
		return wrappedErr
	}

	scheduleStore := database.NewScheduleStore(db)
	if err := scheduleStore.EnsureCells(ctx); err != nil {
		wrappedErr := fmt.Errorf("failed to restore the schedule matrix: %w", err)
		logger.Error().Err(wrappedErr).Msg("Schedule matrix initialization failed")
		return wrappedErr
	}

	clk := clock.New()

	source, err := calendar.NewSource(ctx, cfg.Calendar, loc, nil)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to create calendar source: %w", err)
		logger.Error().Err(wrappedErr).Str("source", cfg.Calendar.Source).Msg("Calendar source initialization failed")
		return wrappedErr
	}
	refreshLog := database.NewRefreshLog(db)
	calSvc := calendar.New(source, database.NewPrayerStore(db), refreshLog, clk, loc, cfg.Calendar)

	out, closeOutputs, err := buildPlayer(cfg)
	if err != nil {
		return err
	}
	defer closeOutputs()

	matrix := schedule.NewMatrix(scheduleStore)
	athanGate := gate.New(matrix, database.NewSkipStore(db), settingsStore, out, cfg.Audio.Directory)
	sched := scheduler.New(calSvc, athanGate, clk, loc, cfg.Scheduler.RearmInterval, cfg.Scheduler.FireWindow)
	monitor := drift.New(clk, cfg.Drift.Interval, cfg.Drift.Threshold)
	resolver := status.New(calSvc, athanGate, matrix, loc, cfg.Scheduler.FireWindow)
	playbackLog := database.NewPlaybackLog(db)

	appSignals.OnCalendarRefreshed(func(ctx context.Context, data appSignals.CalendarRefreshedData) {
		signalLogger := logging.GetLogger("signal-calendar-refreshed")
		resolver.Invalidate()
		summary, err := sched.Resync(ctx)
		if err != nil {
			signalLogger.Error().Err(err).Msg("Failed to re-arm triggers after calendar refresh")
			return
		}
		signalLogger.Info().Int64("version", data.Version).Int("armed", summary.Armed).Msg("Triggers re-armed after calendar refresh")
	}, "main-calendar-refreshed-handler")

	appSignals.OnClockDrift(func(ctx context.Context, data appSignals.ClockDriftData) {
		signalLogger := logging.GetLogger("signal-clock-drift")
		resolver.Invalidate()
		calSvc.Reschedule()
		summary, err := sched.Resync(ctx)
		if err != nil {
			signalLogger.Error().Err(err).Msg("Failed to re-arm triggers after clock drift")
			return
		}
		signalLogger.Info().Dur("drift", data.Drift()).Int("armed", summary.Armed).Msg("Triggers re-armed after clock drift")
	}, "main-clock-drift-handler")

	appSignals.OnPlaybackDecided(func(ctx context.Context, data appSignals.PlaybackDecidedData) {
		if _, err := playbackLog.Record(context.WithoutCancel(ctx), database.PlaybackEntry{
			PrayerName: string(data.Event.Name),
			PrayerDate: data.Event.Date,
			PrayerTime: data.Event.Time,
			Allowed:    data.Allowed,
			Reason:     data.Reason,
			Target:     data.Target.String(),
			Error:      data.Error,
			CreatedAt:  clk.Now(),
		}); err != nil {
			playbackLogger := logging.GetLogger("signal-playback-decided")
			playbackLogger.Warn().Err(err).Msg("Failed to record playback decision")
		}
	}, "main-playback-decided-handler")

	baseHandler, err := handlers.NewBaseHandler(handlers.Services{
		Calendar:  calSvc,
		Matrix:    matrix,
		Gate:      athanGate,
		Status:    resolver,
		Scheduler: sched,
		Settings:  settingsStore,
		Playback:  playbackLog,
		Refreshes: refreshLog,
		Clock:     clk,
		Location:  loc,
	})
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize base handler: %w", err)
		logger.Error().Err(wrappedErr).Msg("Base handler initialization failed")
		return wrappedErr
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handlers.NewRouter(baseHandler, cfg.App.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Go(func() { sched.Run(ctx) })
	wg.Go(func() { calSvc.Run(ctx) })
	wg.Go(func() { monitor.Run(ctx) })

	go func() {
		logger.Info().Int("port", cfg.App.Port).Msg("Starting HTTP API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Context cancelled, initiating shutdown sequence")

	logger.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shut down gracefully")
	}

	if err := athanGate.StopPlayback(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop playback")
	}
	wg.Wait()
	logger.Info().Msg("Shutdown complete")
	return nil
}

// buildPlayer creates the local process player and, when enabled, the MQTT speaker output
func buildPlayer(cfg *config.Config) (player.Player, func(), error) {
	logger := logging.GetLogger("main")

	local, err := player.NewProcessPlayer(cfg.Audio.PlayerCommand)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	if !cfg.MQTT.Enabled {
		return local, func() {}, nil
	}

	client, err := player.Connect(cfg.MQTT)
	if err != nil {
		logger.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT output initialization failed")
		return nil, nil, err
	}
	logger.Info().Str("topic", cfg.MQTT.Topic).Msg("MQTT speaker output enabled")
	outputs := player.Multi{local, player.NewMQTTPlayer(client, cfg.MQTT.Topic, cfg.MQTT.QoS)}
	return outputs, func() { client.Disconnect(250) }, nil
}
