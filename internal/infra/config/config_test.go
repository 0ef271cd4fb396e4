package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalYAML = `
telemetry:
  base_url: https://api.example.com
  token: secret
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Telemetry.BaseURL)
	assert.Equal(t, "secret", cfg.Telemetry.Token)

	// Defaults.
	assert.Equal(t, "web", cfg.Telemetry.Device)
	assert.Equal(t, "2.2", cfg.Telemetry.AppVersion)
	assert.Equal(t, 10*time.Second, cfg.Telemetry.Timeout())
	assert.Equal(t, 80, cfg.Playback.CompletionPct)
	assert.InDelta(t, 0.8, cfg.Playback.CompletionRatio(), 0.001)
	assert.Equal(t, 1.0, cfg.Playback.InitialVolume)
	assert.Equal(t, "clock", cfg.Transport.Type)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "telemetry: [not a map"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name:    "missing token",
			yaml:    "telemetry:\n  base_url: https://api.example.com\n",
			wantErr: true,
		},
		{
			name:    "bad base url",
			yaml:    "telemetry:\n  base_url: not-a-url\n  token: t\n",
			wantErr: true,
		},
		{
			name:    "bad tier",
			yaml:    minimalYAML + "library:\n  - id: sb-1\n    title: T\n    tier: blaze\n",
			wantErr: true,
		},
		{
			name:    "library entry missing title",
			yaml:    minimalYAML + "library:\n  - id: sb-1\n",
			wantErr: true,
		},
		{
			name:    "completion pct out of range",
			yaml:    minimalYAML + "playback:\n  completion_pct: 150\n",
			wantErr: true,
		},
		{
			name:    "playable library entry",
			yaml:    minimalYAML + "library:\n  - id: sb-1\n    title: T\n    tier: spark\n",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LUMA_TELEMETRY_URL", "https://env.example.com")
	t.Setenv("LUMA_TELEMETRY_TOKEN", "env-token")

	cfg, err := Load(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Telemetry.BaseURL)
	assert.Equal(t, "env-token", cfg.Telemetry.Token)
}

const libraryYAML = minimalYAML + `
transport:
  type: clock
  settings:
    tick_ms: 100
library:
  - id: sb-1
    title: Morning anchor
    audio_url: mem://sb-1
    tier: spark
    duration_sec: 90
  - id: sb-2
    title: Evening wind-down
    tier: ember
`

func TestConfig_Soundbites(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, libraryYAML))
	require.NoError(t, err)

	items := cfg.Soundbites()
	require.Len(t, items, 2)
	assert.Equal(t, "sb-1", items[0].ID)
	assert.Equal(t, "Morning anchor", items[0].Title)
	assert.True(t, items[0].Playable())
	assert.False(t, items[1].Playable())

	found, ok := cfg.FindSoundbite("sb-2")
	require.True(t, ok)
	assert.Equal(t, "Evening wind-down", found.Title)

	_, ok = cfg.FindSoundbite("sb-99")
	assert.False(t, ok)
}

func TestConfig_TransportSettings(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, libraryYAML))
	require.NoError(t, err)

	settings := cfg.TransportSettings()
	assert.Equal(t, 100, settings["tick_ms"])

	durations, ok := settings["durations"].(map[string]float64)
	require.True(t, ok)
	// Only entries with both a source and a duration are merged.
	assert.Equal(t, 90.0, durations["mem://sb-1"])
	assert.Len(t, durations, 1)
}
