// Package config loads the TOML settings shared by the viewer and the world simulator.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root of the settings file.
type Config struct {
	Window WindowConfig `toml:"window"`
	Scene  SceneConfig  `toml:"scene"`
	Assets AssetsConfig `toml:"assets"`
	Stream StreamConfig `toml:"stream"`
	World  WorldConfig  `toml:"world"`
	Log    LogConfig    `toml:"log"`
}

type WindowConfig struct {
	Title            string  `toml:"title" flag:"title"`
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	PresentMode      string  `toml:"present_mode"` // "vsync" or "uncapped"
	MSAA             int     `toml:"msaa"`         // 1 or 4
	SoftwareRenderer bool    `toml:"software_renderer" flag:"software"`
	FrameLimit       float64 `toml:"frame_limit"` // 0 = uncapped
}

type SceneConfig struct {
	Name              string  `toml:"name"`
	TickRate          float64 `toml:"tick_rate"`
	ReclaimIntervalMS int     `toml:"reclaim_interval_ms"`
	HighlightWorkers  int     `toml:"highlight_workers"`
	BrushRadius       float32 `toml:"brush_radius"`
	Profile           bool    `toml:"profile"`
}

// ReclaimInterval returns the reclaimer poll interval.
func (s SceneConfig) ReclaimInterval() time.Duration {
	return time.Duration(s.ReclaimIntervalMS) * time.Millisecond
}

type AssetsConfig struct {
	// Manifest is a .toml, .yaml or .yml model list.
	Manifest string   `toml:"manifest" flag:"manifest"`
	Preload  []string `toml:"preload"`
	Watch    bool     `toml:"watch"`
}

type StreamConfig struct {
	// URL is where the viewer dials.
	URL string `toml:"url" flag:"url"`
	// Listen and Path are where the world simulator serves.
	Listen      string `toml:"listen" flag:"listen"`
	Path        string `toml:"path"`
	DialRetries int    `toml:"dial_retries"`
}

type WorldConfig struct {
	Database   string   `toml:"database" flag:"db"`
	SeedCount  int      `toml:"seed_count"`
	Seed       uint64   `toml:"seed"`
	Extent     float32  `toml:"extent"`
	ViewRadius float32  `toml:"view_radius"`
	OrbitSpeed float32  `toml:"orbit_speed"` // radians per second
	UpdateHz   float64  `toml:"update_hz"`
	Models     []string `toml:"models"`

	// Reseed appends a fresh batch of placements even when the store is
	// populated. Command line only.
	Reseed bool `toml:"-" flag:"reseed"`
}

type LogConfig struct {
	Level  string `toml:"level" flag:"log-level"` // debug, info, warn, error
	Format string `toml:"format"`                 // text or json
}

// DefaultConfig returns the settings used when no file exists.
//
// Returns:
//   - *Config: a fully populated configuration
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:       "oxy instances",
			Width:       1280,
			Height:      720,
			PresentMode: "vsync",
			MSAA:        4,
		},
		Scene: SceneConfig{
			Name:              "world",
			TickRate:          60,
			ReclaimIntervalMS: 200,
			BrushRadius:       8,
		},
		Assets: AssetsConfig{
			Manifest: "assets/models.toml",
		},
		Stream: StreamConfig{
			URL:         "ws://127.0.0.1:7420/stream",
			Listen:      "127.0.0.1:7420",
			Path:        "/stream",
			DialRetries: 10,
		},
		World: WorldConfig{
			Database:   "saves/world.db",
			SeedCount:  5000,
			Seed:       1,
			Extent:     400,
			ViewRadius: 120,
			OrbitSpeed: 0.05,
			UpdateHz:   4,
			Models:     []string{"Rock", "Tree", "Bird", "Glass"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file over the defaults, so omitted keys keep their
// default values. A missing file yields the defaults.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - *Config: the merged configuration
//   - error: error if the file exists but cannot be read or decoded
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// SlogLevel parses the configured log level. Unknown values select info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by l.
//
// Parameters:
//   - w: the log destination
//
// Returns:
//   - *slog.Logger: a text or JSON logger at the configured level
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
