// Package config loads application configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables (WDI_
// prefix). Later layers win.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Limits  LimitsConfig  `yaml:"limits" envconfig:"LIMITS"`
	Dune    DuneConfig    `yaml:"dune" envconfig:"DUNE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// LimitsConfig bounds uploads and protects the in-memory dataset store.
type LimitsConfig struct {
	MaxUploadBytes int64   `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	MaxDatasets    int     `yaml:"max_datasets" envconfig:"MAX_DATASETS"`
	MaxTopN        int     `yaml:"max_top_n" envconfig:"MAX_TOP_N"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// DuneConfig configures the Dune Analytics client. The API key is only
// ever supplied via environment or config file, never by request payloads.
type DuneConfig struct {
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	PollInterval      time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RequestsPerMinute float64       `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Limits: LimitsConfig{
			MaxUploadBytes: 50 << 20,
			MaxDatasets:    32,
			MaxTopN:        100,
			RateLimitRPS:   50,
			RateLimitBurst: 25,
		},
		Dune: DuneConfig{
			BaseURL:           "https://api.dune.com",
			PollInterval:      2 * time.Second,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 30,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// WDI_CONFIG_FILE (config.yaml when unset, missing file tolerated), then
// environment overrides, then validation.
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("WDI_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := envconfig.Process("WDI", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.Limits.MaxDatasets <= 0 {
		return fmt.Errorf("max_datasets must be positive")
	}
	if c.Limits.MaxTopN <= 0 {
		return fmt.Errorf("max_top_n must be positive")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	return nil
}
