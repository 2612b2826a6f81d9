package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration for both the embedded engine and the
// tile-store daemon. The engine only consumes the Canvas block; the rest is
// daemon-side.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Canvas   CanvasConfig   `yaml:"canvas"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Fanout   FanoutConfig   `yaml:"fanout"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the daemon's listen and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// CanvasConfig is the shared drawing-surface tuning consumed by the engine.
type CanvasConfig struct {
	MaxInk            float64  `yaml:"max_ink"`
	RefillRate        float64  `yaml:"refill_rate"` // ink units per second
	FadeDuration      Duration `yaml:"fade_duration"`
	TileSize          float64  `yaml:"tile_size"`
	MinStrokeWidth    float64  `yaml:"min_stroke_width"`
	MaxStrokeWidth    float64  `yaml:"max_stroke_width"`
	InactivityTimeout Duration `yaml:"inactivity_timeout"`
	MaxBuffered       int      `yaml:"max_buffered"`
	UndoWindow        Duration `yaml:"undo_window"`
	UnlimitedInk      bool     `yaml:"unlimited_ink"`
	Maintenance       bool     `yaml:"maintenance"`
}

// SweepConfig drives both the client-side advisory sweeper (Interval) and
// the daemon's deep-clean pass (Cron).
type SweepConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	Cron     string   `yaml:"cron"`
}

// FanoutConfig enables cross-instance change notification through Redis.
// Empty address means single-instance, in-process fanout only.
type FanoutConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// SecurityConfig holds daemon-side request limits.
type SecurityConfig struct {
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration with YAML parsing from strings like "500ms"
// or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
