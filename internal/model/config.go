package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the remote notification API client.
type APIConfig struct {
	// BaseURL is the root URL of the REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a failed idempotent request is retried
	// on transport errors and 5xx responses.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RequestsPerSec paces outbound requests.
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// StoreConfig holds local database settings.
type StoreConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Retention returns the retention window. Zero disables the sweep.
func (c StoreConfig) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output when the terminal UI owns stdout.
	File string `mapstructure:"file" yaml:"file"`
}

// KeyringConfig names the service the access token is stored under.
type KeyringConfig struct {
	Service string `mapstructure:"service" yaml:"service"`

	// Backend is "auto" (OS keyring with file fallback) or "file".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9477". Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level process configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Keyring KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ConfigDir returns ~/.config/octobar, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "octobar")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/octobar/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:        "https://api.github.com",
			TimeoutSec:     30,
			MaxRetries:     2,
			RequestsPerSec: 5,
		},
		Store: StoreConfig{
			Path:          filepath.Join(dir, "octobar.db"),
			RetentionDays: 30,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "octobar.log"),
		},
		Keyring: KeyringConfig{
			Service: "octobar",
			Backend: "auto",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("api.requests_per_sec", def.API.RequestsPerSec)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.retention_days", def.Store.RetentionDays)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("keyring.service", def.Keyring.Service)
	v.SetDefault("keyring.backend", def.Keyring.Backend)
	v.SetDefault("metrics.addr", "")

	v.SetEnvPrefix("OCTOBAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = def.API.TimeoutSec
	}
	if cfg.API.MaxRetries < 0 {
		cfg.API.MaxRetries = 0
	}
	if cfg.API.RequestsPerSec <= 0 {
		cfg.API.RequestsPerSec = def.API.RequestsPerSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("keyring", cfg.Keyring)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
