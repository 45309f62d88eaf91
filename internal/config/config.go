package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PluginPathEnv overrides plugins.search_path
const PluginPathEnv = "MFC_PLUGIN_PATH"

// Config represents the entire application configuration
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Plugins  PluginsConfig  `mapstructure:"plugins"`
	Movie    MovieConfig    `mapstructure:"movie"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CacheConfig contains frame cache settings
type CacheConfig struct {
	MaxMemoryMB      int     `mapstructure:"max_memory_mb"`
	MaxMemoryPercent float64 `mapstructure:"max_memory_percent"`
	Workers          int     `mapstructure:"workers"`
	LookAhead        string  `mapstructure:"look_ahead"`
}

// PluginsConfig contains reader plugin discovery settings
type PluginsConfig struct {
	SearchPath string `mapstructure:"search_path"`
}

// MovieConfig contains movie decoder settings
type MovieConfig struct {
	ProbeTimeout string `mapstructure:"probe_timeout"`
	SeekRetries  int    `mapstructure:"seek_retries"`
}

// ScanConfig contains sequence discovery settings
type ScanConfig struct {
	Recursive     bool   `mapstructure:"recursive"`
	IncludeHidden bool   `mapstructure:"include_hidden"`
	WatchInterval string `mapstructure:"watch_interval"`
}

// PlaybackConfig contains settings for the simulated transport
type PlaybackConfig struct {
	FPS float64 `mapstructure:"fps"`
}

// CatalogConfig contains media catalog settings
type CatalogConfig struct {
	Path          string `mapstructure:"path"`
	PruneInterval string `mapstructure:"prune_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from configPath. An empty path or a missing
// file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := v.BindEnv("plugins.search_path", PluginPathEnv); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", PluginPathEnv, err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.max_memory_mb", 2048)
	v.SetDefault("cache.max_memory_percent", 50)
	v.SetDefault("cache.workers", 4)
	v.SetDefault("cache.look_ahead", "forward")
	v.SetDefault("plugins.search_path", "")
	v.SetDefault("movie.probe_timeout", "10s")
	v.SetDefault("movie.seek_retries", 3)
	v.SetDefault("scan.recursive", false)
	v.SetDefault("scan.include_hidden", false)
	v.SetDefault("scan.watch_interval", "500ms")
	v.SetDefault("playback.fps", 24)
	v.SetDefault("catalog.path", "media-catalog.db")
	v.SetDefault("catalog.prune_interval", "10m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate cache config
	if c.Cache.MaxMemoryMB < 0 {
		return fmt.Errorf("cache.max_memory_mb must not be negative")
	}
	if c.Cache.MaxMemoryPercent < 0 || c.Cache.MaxMemoryPercent > 100 {
		return fmt.Errorf("cache.max_memory_percent must be between 0 and 100")
	}
	if c.Cache.Workers < 1 || c.Cache.Workers > 32 {
		return fmt.Errorf("cache.workers must be between 1 and 32")
	}
	switch strings.ToLower(c.Cache.LookAhead) {
	case "forward", "backward":
	default:
		return fmt.Errorf("invalid cache.look_ahead: %s", c.Cache.LookAhead)
	}

	// Validate movie config
	if _, err := time.ParseDuration(c.Movie.ProbeTimeout); err != nil {
		return fmt.Errorf("invalid movie.probe_timeout: %w", err)
	}
	if c.Movie.SeekRetries < 1 || c.Movie.SeekRetries > 3 {
		return fmt.Errorf("movie.seek_retries must be between 1 and 3")
	}

	if _, err := time.ParseDuration(c.Scan.WatchInterval); err != nil {
		return fmt.Errorf("invalid scan.watch_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Catalog.PruneInterval); err != nil {
		return fmt.Errorf("invalid catalog.prune_interval: %w", err)
	}
	if c.Playback.FPS <= 0 {
		return fmt.Errorf("playback.fps must be positive")
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetMaxMemoryBytes returns the configured cache budget in bytes
func (c *CacheConfig) GetMaxMemoryBytes() int64 {
	return int64(c.MaxMemoryMB) * 1024 * 1024
}

// GetProbeTimeout returns the probe timeout as time.Duration
func (c *MovieConfig) GetProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ProbeTimeout)
	if d == 0 {
		return 10 * time.Second
	}
	return d
}

// GetWatchInterval returns the watcher rebuild interval as time.Duration
func (c *ScanConfig) GetWatchInterval() time.Duration {
	d, _ := time.ParseDuration(c.WatchInterval)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetPruneInterval returns the catalog prune interval as time.Duration
func (c *CatalogConfig) GetPruneInterval() time.Duration {
	d, _ := time.ParseDuration(c.PruneInterval)
	if d == 0 {
		return 10 * time.Minute
	}
	return d
}

// GetFrameInterval returns the display time of one frame
func (c *PlaybackConfig) GetFrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 24
	}
	return time.Duration(float64(time.Second) / c.FPS)
}
