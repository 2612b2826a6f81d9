// Package config loads daemon and engine configuration from a YAML file
// merged with environment variables; explicit flags win over both.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Canvas defaults; applied wherever the file and env leave a field unset.
const (
	DefaultMaxInk            = 250000.0
	DefaultRefillRate        = 10000.0 / 3600 // units per second
	DefaultFadeDuration      = 24 * time.Hour
	DefaultTileSize          = 2000.0
	DefaultMinStrokeWidth    = 1.0
	DefaultMaxStrokeWidth    = 40.0
	DefaultInactivityTimeout = 2 * time.Second
	DefaultMaxBuffered       = 64
	DefaultUndoWindow        = 60 * time.Second
	DefaultSweepInterval     = 60 * time.Second
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseFlags parses the daemon's command-line flags.
func ParseFlags() Flags {
	addrPtr := flag.String("addr", ":8090", "HTTP listen address")
	dbPtr := flag.String("db", "./.inkwash", "tile store path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// Load reads and parses the YAML config file at path. A missing file is not
// an error; callers get a zero config plus ok=false and run on defaults.
func Load(path string) (*Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, true, nil
}

// ApplyEnv overlays INKWASH_* environment variables onto cfg. Env values
// override file values.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("INKWASH_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("INKWASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INKWASH_REDIS_ADDR"); v != "" {
		cfg.Fanout.RedisAddr = v
	}
	if v := os.Getenv("INKWASH_MAX_INK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Canvas.MaxInk = f
		}
	}
	if v := os.Getenv("INKWASH_UNLIMITED_INK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Canvas.UnlimitedInk = b
		}
	}
	if v := os.Getenv("INKWASH_MAINTENANCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Canvas.Maintenance = b
		}
	}
}

// ApplyDefaults fills every unset field with its default so downstream code
// never re-checks for zero values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.Canvas
	if c.MaxInk <= 0 {
		c.MaxInk = DefaultMaxInk
	}
	if c.RefillRate <= 0 {
		c.RefillRate = DefaultRefillRate
	}
	if c.FadeDuration.Duration() <= 0 {
		c.FadeDuration = Duration(DefaultFadeDuration)
	}
	if c.TileSize <= 0 {
		c.TileSize = DefaultTileSize
	}
	if c.MinStrokeWidth <= 0 {
		c.MinStrokeWidth = DefaultMinStrokeWidth
	}
	if c.MaxStrokeWidth <= 0 {
		c.MaxStrokeWidth = DefaultMaxStrokeWidth
	}
	if c.InactivityTimeout.Duration() <= 0 {
		c.InactivityTimeout = Duration(DefaultInactivityTimeout)
	}
	if c.MaxBuffered <= 0 {
		c.MaxBuffered = DefaultMaxBuffered
	}
	if c.UndoWindow.Duration() <= 0 {
		c.UndoWindow = Duration(DefaultUndoWindow)
	}
	if cfg.Sweep.Interval.Duration() <= 0 {
		cfg.Sweep.Interval = Duration(DefaultSweepInterval)
	}
	if cfg.Fanout.ChannelPrefix == "" {
		cfg.Fanout.ChannelPrefix = "inkwash.tile."
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
}

// Validate rejects configurations the engine cannot run with.
func Validate(cfg *Config) error {
	c := cfg.Canvas
	if c.MinStrokeWidth > c.MaxStrokeWidth {
		return fmt.Errorf("min_stroke_width %g exceeds max_stroke_width %g", c.MinStrokeWidth, c.MaxStrokeWidth)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %g", c.TileSize)
	}
	if c.MaxInk <= 0 {
		return fmt.Errorf("max_ink must be positive, got %g", c.MaxInk)
	}
	return nil
}
