package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables overriding the file configuration.
// Nested keys use a double underscore: ATHAN_CALENDAR__REFRESH_AT overrides calendar.refresh_at.
const EnvPrefix = "ATHAN_"

// Config holds the application configuration
type Config struct {
	App       AppConfig       `koanf:"app"`
	Calendar  CalendarConfig  `koanf:"calendar"`
	Audio     AudioConfig     `koanf:"audio"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Drift     DriftConfig     `koanf:"drift"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	Service   ServiceConfig   `koanf:"service"`
}

// AppConfig holds the HTTP and locale settings
type AppConfig struct {
	Port        int      `koanf:"port"`
	Timezone    string   `koanf:"timezone"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// CalendarConfig holds the prayer calendar source settings
type CalendarConfig struct {
	// Source is one of "ics", "aladhan" or "google"
	Source           string        `koanf:"source"`
	URL              string        `koanf:"url"`
	RefreshAt        string        `koanf:"refresh_at"`
	Timeout          time.Duration `koanf:"timeout"`
	LookAheadDays    int           `koanf:"look_ahead_days"`
	FailureTolerance int           `koanf:"failure_tolerance"`
	RefreshOnStartup bool          `koanf:"refresh_on_startup"`
	Aladhan          AladhanConfig `koanf:"aladhan"`
	Google           GoogleConfig  `koanf:"google"`
}

// AladhanConfig holds the Aladhan API parameters
type AladhanConfig struct {
	BaseURL   string  `koanf:"base_url"`
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`
	Method    int     `koanf:"method"`
}

// GoogleConfig holds the Google Calendar parameters
type GoogleConfig struct {
	CalendarID      string `koanf:"calendar_id"`
	APIKey          string `koanf:"api_key"`
	CredentialsFile string `koanf:"credentials_file"`
}

// AudioConfig holds the initial audio settings, seeded into the database on first start
type AudioConfig struct {
	OutputTarget   constants.OutputTarget `koanf:"output_target"`
	Volume         int                    `koanf:"volume"`
	FajrVolume     int                    `koanf:"fajr_volume"`
	FajrVolumeSync bool                   `koanf:"fajr_volume_sync"`
	AthanFile      string                 `koanf:"athan_file"`
	FajrAthanFile  string                 `koanf:"fajr_athan_file"`
	Directory      string                 `koanf:"directory"`
	// PlayerCommand is the command line used for server playback; {file} and {volume} are substituted
	PlayerCommand []string `koanf:"player_command"`
}

// SchedulerConfig holds the trigger scheduler timings
type SchedulerConfig struct {
	RearmInterval time.Duration `koanf:"rearm_interval"`
	FireWindow    time.Duration `koanf:"fire_window"`
}

// DriftConfig holds the clock drift monitor timings
type DriftConfig struct {
	Interval  time.Duration `koanf:"interval"`
	Threshold time.Duration `koanf:"threshold"`
}

// MQTTConfig holds the optional networked speaker output
type MQTTConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id"`
	Topic    string `koanf:"topic"`
	QoS      byte   `koanf:"qos"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// ServiceConfig holds the service configuration
type ServiceConfig struct {
	StateFile string `koanf:"state_file"`
	LogLevel  string `koanf:"log_level"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.port":                    8080,
		"app.timezone":                "Local",
		"calendar.source":             "ics",
		"calendar.refresh_at":         "00:05",
		"calendar.timeout":            "30s",
		"calendar.look_ahead_days":    2,
		"calendar.failure_tolerance":  3,
		"calendar.refresh_on_startup": true,
		"calendar.aladhan.base_url":   "https://api.aladhan.com",
		"calendar.aladhan.method":     2,
		"calendar.google.calendar_id": "primary",
		"audio.output_target":         string(constants.OutputServer),
		"audio.volume":                80,
		"audio.fajr_volume":           60,
		"audio.fajr_volume_sync":      true,
		"audio.athan_file":            "athan.mp3",
		"audio.directory":             "audio",
		"audio.player_command":        []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", "{volume}", "{file}"},
		"scheduler.rearm_interval":    "1h",
		"scheduler.fire_window":       "1m",
		"drift.interval":              "10s",
		"mqtt.client_id":              "athan-scheduler",
		"mqtt.topic":                  "athan/play",
		"service.state_file":          "data/state.db",
		"service.log_level":           "info",
	}
}

// Load reads the configuration file and environment variables.
// Built-in defaults are overridden by the TOML file, which is overridden by ATHAN_ variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.DecodeHookFuncType(outputTargetHook),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Ensure the state file path is absolute
	if !filepath.IsAbs(cfg.Service.StateFile) {
		configDir := filepath.Dir(path)
		cfg.Service.StateFile = filepath.Join(configDir, "..", cfg.Service.StateFile)
	}

	if cfg.Drift.Threshold == 0 {
		cfg.Drift.Threshold = cfg.Drift.Interval / 2
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey turns ATHAN_CALENDAR__REFRESH_AT into calendar.refresh_at
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

func outputTargetHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(constants.OutputTarget("")) {
		return data, nil
	}
	return constants.ParseOutputTarget(data.(string))
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || c.App.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// validate checks if the configuration is valid and reports every problem at once
func validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid port: %d", cfg.App.Port))
	}
	if _, err := cfg.Location(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, origin := range cfg.App.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result = multierror.Append(result, fmt.Errorf("invalid cors origin %q: must be * or start with http:// or https://", origin))
		}
	}

	switch cfg.Calendar.Source {
	case "ics":
		if cfg.Calendar.URL == "" {
			result = multierror.Append(result, errors.New("calendar.url is required for the ics source"))
		}
	case "aladhan":
		if cfg.Calendar.Aladhan.Latitude == 0 && cfg.Calendar.Aladhan.Longitude == 0 {
			result = multierror.Append(result, errors.New("calendar.aladhan latitude and longitude are required"))
		}
	case "google":
		if cfg.Calendar.Google.APIKey == "" && cfg.Calendar.Google.CredentialsFile == "" {
			result = multierror.Append(result, errors.New("calendar.google requires api_key or credentials_file"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("invalid calendar source: %s", cfg.Calendar.Source))
	}
	if _, err := time.Parse(constants.TimeLayout, cfg.Calendar.RefreshAt); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid calendar.refresh_at %q: must be HH:MM", cfg.Calendar.RefreshAt))
	}
	if cfg.Calendar.Timeout <= 0 {
		result = multierror.Append(result, errors.New("calendar.timeout must be positive"))
	}
	if cfg.Calendar.LookAheadDays < 2 {
		result = multierror.Append(result, errors.New("calendar.look_ahead_days must be at least 2"))
	}
	if cfg.Calendar.FailureTolerance < 1 {
		result = multierror.Append(result, errors.New("calendar.failure_tolerance must be positive"))
	}

	if !cfg.Audio.OutputTarget.IsValid() {
		result = multierror.Append(result, fmt.Errorf("invalid output target: %s", cfg.Audio.OutputTarget))
	}
	if err := ValidateVolume(cfg.Audio.Volume); err != nil {
		result = multierror.Append(result, err)
	}
	if err := ValidateVolume(cfg.Audio.FajrVolume); err != nil {
		result = multierror.Append(result, fmt.Errorf("fajr %w", err))
	}
	if cfg.Audio.AthanFile == "" {
		result = multierror.Append(result, errors.New("audio.athan_file is required"))
	}
	if len(cfg.Audio.PlayerCommand) == 0 {
		result = multierror.Append(result, errors.New("audio.player_command is required"))
	}

	if cfg.Scheduler.RearmInterval <= 0 {
		result = multierror.Append(result, errors.New("scheduler.rearm_interval must be positive"))
	}
	if cfg.Scheduler.FireWindow <= 0 {
		result = multierror.Append(result, errors.New("scheduler.fire_window must be positive"))
	}
	if cfg.Drift.Interval <= 0 {
		result = multierror.Append(result, errors.New("drift.interval must be positive"))
	}
	if cfg.Drift.Threshold <= 0 {
		result = multierror.Append(result, errors.New("drift.threshold must be positive"))
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			result = multierror.Append(result, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if cfg.MQTT.QoS > 2 {
			result = multierror.Append(result, fmt.Errorf("invalid mqtt qos: %d", cfg.MQTT.QoS))
		}
	}

	return result.ErrorOrNil()
}
