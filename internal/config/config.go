package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8080
	defaultDataDir         = "downloads"
	defaultWorkers         = 1
	defaultToolPath        = "yt-dlp"
	defaultToolTimeout     = 5 * time.Minute
	defaultCleanupInterval = 5 * time.Minute
	defaultMaxAge          = 10 * time.Minute
	defaultRateRequests    = 5
	defaultRateWindow      = time.Minute
	defaultLogLevel        = "info"
)

// RateLimit bounds how many jobs a single client may submit per window.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Config describes runtime configuration for the service.
type Config struct {
	Port            int           `yaml:"port"`
	DataDir         string        `yaml:"data_dir"`
	Workers         int           `yaml:"workers"`
	ToolPath        string        `yaml:"tool_path"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxAge          time.Duration `yaml:"max_age"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the settings the service runs with when no config file is present.
func Default() Config {
	return Config{
		Port:            defaultPort,
		DataDir:         defaultDataDir,
		Workers:         defaultWorkers,
		ToolPath:        defaultToolPath,
		ToolTimeout:     defaultToolTimeout,
		CleanupInterval: defaultCleanupInterval,
		MaxAge:          defaultMaxAge,
		RateLimit:       RateLimit{Requests: defaultRateRequests, Window: defaultRateWindow},
		LogLevel:        defaultLogLevel,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	// values < 1 are not allowed: at least one worker must drain the queue
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be >= 1)", c.Workers)
	}
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"tool_timeout", c.ToolTimeout},
		{"cleanup_interval", c.CleanupInterval},
		{"max_age", c.MaxAge},
		{"rate_limit.window", c.RateLimit.Window},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("invalid %s: %s (must be > 0)", d.name, d.value)
		}
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("invalid rate_limit.requests: %d (must be >= 0)", c.RateLimit.Requests)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the zerolog level configured by log_level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.ToolPath = strings.TrimSpace(cfg.ToolPath)
	if cfg.ToolPath == "" {
		cfg.ToolPath = defaultToolPath
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}
