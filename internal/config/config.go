package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thomaskoefod/quakereadr/internal/nrcan"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Feed     FeedConfig     `yaml:"feed"`
	Schedule string         `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Raindrop RaindropConfig `yaml:"raindrop"`
	UI       UIConfig       `yaml:"ui"`
}

type DatabaseConfig struct {
	Path           string `yaml:"path"`
	EventRetention string `yaml:"event_retention"`
}

// GetEventRetention parses how long lifecycle events are kept
func (d *DatabaseConfig) GetEventRetention() (time.Duration, error) {
	return time.ParseDuration(d.EventRetention)
}

type HomeConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type FeedConfig struct {
	Language         string     `yaml:"language"`
	Home             HomeConfig `yaml:"home"`
	RadiusKm         *float64   `yaml:"radius_km,omitempty"`
	MinimumMagnitude *float64   `yaml:"minimum_magnitude,omitempty"`
	Timeout          string     `yaml:"timeout"`
	UserAgent        string     `yaml:"user_agent,omitempty"`
	MinInterval      string     `yaml:"min_interval,omitempty"`
}

type LogConfig struct {
	Path  string `yaml:"path,omitempty"`
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

type RaindropConfig struct {
	APIToken string `yaml:"api_token"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

type UIConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
}

// GetRefreshInterval parses the refresh interval string
func (u *UIConfig) GetRefreshInterval() (time.Duration, error) {
	return time.ParseDuration(u.RefreshInterval)
}

// GetTimeout parses the fetch timeout string
func (f *FeedConfig) GetTimeout() (time.Duration, error) {
	return time.ParseDuration(f.Timeout)
}

// GetMinInterval parses the minimum spacing between requests. Empty means
// no spacing.
func (f *FeedConfig) GetMinInterval() (time.Duration, error) {
	if f.MinInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(f.MinInterval)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "~/.local/share/quakereadr/quakes.db"
	}
	c.Database.Path = expandPath(c.Database.Path)
	if c.Database.EventRetention == "" {
		c.Database.EventRetention = "720h"
	}
	c.Log.Path = expandPath(c.Log.Path)

	if c.Feed.Language == "" {
		c.Feed.Language = "en"
	}
	if c.Feed.Timeout == "" {
		c.Feed.Timeout = "20s"
	}
	if c.Schedule == "" {
		c.Schedule = "@every 5m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.UI.RefreshInterval == "" {
		c.UI.RefreshInterval = "5m"
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if _, ok := nrcan.URLs[c.Feed.Language]; !ok {
		return fmt.Errorf("%w: feed.language %q must be one of %s",
			ErrInvalid, c.Feed.Language, strings.Join(nrcan.Languages(), ", "))
	}

	home := c.Feed.Home
	if !inRange(home.Latitude, 90) {
		return fmt.Errorf("%w: feed.home.latitude %v out of range", ErrInvalid, home.Latitude)
	}
	if !inRange(home.Longitude, 180) {
		return fmt.Errorf("%w: feed.home.longitude %v out of range", ErrInvalid, home.Longitude)
	}
	if r := c.Feed.RadiusKm; r != nil && !nonNegative(*r) {
		return fmt.Errorf("%w: feed.radius_km must be >= 0, got %v", ErrInvalid, *r)
	}
	if m := c.Feed.MinimumMagnitude; m != nil && !nonNegative(*m) {
		return fmt.Errorf("%w: feed.minimum_magnitude must be >= 0, got %v", ErrInvalid, *m)
	}

	if d, err := c.Feed.GetTimeout(); err != nil || d <= 0 {
		return fmt.Errorf("%w: feed.timeout %q", ErrInvalid, c.Feed.Timeout)
	}
	if d, err := c.Feed.GetMinInterval(); err != nil || d < 0 {
		return fmt.Errorf("%w: feed.min_interval %q", ErrInvalid, c.Feed.MinInterval)
	}
	if d, err := c.Database.GetEventRetention(); err != nil || d <= 0 {
		return fmt.Errorf("%w: database.event_retention %q", ErrInvalid, c.Database.EventRetention)
	}
	if _, err := c.UI.GetRefreshInterval(); err != nil {
		return fmt.Errorf("%w: ui.refresh_interval %q", ErrInvalid, c.UI.RefreshInterval)
	}
	return nil
}

func inRange(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Save writes configuration to file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "quakereadr", "config.yaml")
}
