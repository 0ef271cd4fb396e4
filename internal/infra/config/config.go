// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/recoverlution/lumaplay/internal/domain/soundbite"
)

// Config represents the application configuration.
type Config struct {
	Telemetry TelemetryConfig   `yaml:"telemetry"`
	Playback  PlaybackConfig    `yaml:"playback"`
	Transport TransportConfig   `yaml:"transport"`
	Library   []SoundbiteConfig `yaml:"library" validate:"dive"`
	Log       LogConfig         `yaml:"log"`
}

// TelemetryConfig represents the session recording backend configuration.
type TelemetryConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	Token      string `yaml:"token" validate:"required"`
	Device     string `yaml:"device" default:"web"`
	AppVersion string `yaml:"app_version" default:"2.2"`
	TimeoutMs  int    `yaml:"timeout_ms" default:"10000" validate:"gte=100,lte=60000"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	CompletionPct int     `yaml:"completion_pct" default:"80" validate:"gte=1,lte=100"`
	InitialVolume float64 `yaml:"initial_volume" default:"1" validate:"gte=0,lte=1"`
}

// TransportConfig represents the media transport configuration.
type TransportConfig struct {
	Type     string         `yaml:"type" default:"clock"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SoundbiteConfig represents one library entry.
type SoundbiteConfig struct {
	ID          string  `yaml:"id" validate:"required"`
	Title       string  `yaml:"title" validate:"required"`
	AudioURL    string  `yaml:"audio_url"`
	Tier        string  `yaml:"tier" validate:"omitempty,oneof=spark flame ember"`
	PillarID    string  `yaml:"pillar_id"`
	ThemeID     string  `yaml:"theme_id"`
	Code        string  `yaml:"code"`
	DurationSec float64 `yaml:"duration_sec" validate:"gte=0"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output     string `yaml:"output" default:"stdout"`
	Level      string `yaml:"level" default:"info"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"50" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("LUMA_TELEMETRY_URL"); v != "" {
		c.Telemetry.BaseURL = v
	}
	if v := os.Getenv("LUMA_TELEMETRY_TOKEN"); v != "" {
		c.Telemetry.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// Timeout returns the telemetry request timeout as a duration.
func (t TelemetryConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// CompletionRatio returns the completion threshold as a fraction.
func (p PlaybackConfig) CompletionRatio() float64 {
	return float64(p.CompletionPct) / 100
}

// Soundbites converts the library entries to domain soundbites, in file
// order.
func (c *Config) Soundbites() []soundbite.Soundbite {
	items := make([]soundbite.Soundbite, 0, len(c.Library))
	for _, e := range c.Library {
		items = append(items, soundbite.Soundbite{
			ID:       e.ID,
			Title:    e.Title,
			AudioURL: e.AudioURL,
			Tier:     soundbite.Tier(e.Tier),
			PillarID: e.PillarID,
			ThemeID:  e.ThemeID,
			Code:     e.Code,
		})
	}
	return items
}

// FindSoundbite returns the library entry with the given ID.
func (c *Config) FindSoundbite(id string) (soundbite.Soundbite, bool) {
	for _, s := range c.Soundbites() {
		if s.ID == id {
			return s, true
		}
	}
	return soundbite.Soundbite{}, false
}

// TransportSettings returns the transport settings with the library's
// per-soundbite durations merged in, so the clock transport knows how
// long each source runs without a second list in the file.
func (c *Config) TransportSettings() map[string]any {
	settings := make(map[string]any, len(c.Transport.Settings)+1)
	for k, v := range c.Transport.Settings {
		settings[k] = v
	}

	durations := make(map[string]float64)
	if existing, ok := settings["durations"].(map[string]float64); ok {
		for k, v := range existing {
			durations[k] = v
		}
	}
	for _, e := range c.Library {
		if e.AudioURL != "" && e.DurationSec > 0 {
			durations[e.AudioURL] = e.DurationSec
		}
	}
	if len(durations) > 0 {
		settings["durations"] = durations
	}
	return settings
}
