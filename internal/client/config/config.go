// Package config loads gitcrate's settings from ~/.gitcrate/config.yaml,
// GITCRATE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/gitcrate/internal/client/notify"
	"github.com/openmined/gitcrate/internal/utils"
	"github.com/spf13/viper"
)

const EnvPrefix = "GITCRATE"

var (
	home, _             = os.UserHomeDir()
	DefaultStateDir     = filepath.Join(home, ".gitcrate")
	DefaultConfigPath   = filepath.Join(DefaultStateDir, "config.yaml")
	DefaultRegistryPath = filepath.Join(DefaultStateDir, "registry.yaml")
	DefaultHistoryPath  = filepath.Join(DefaultStateDir, "history.db")
	DefaultLogFilePath  = filepath.Join(DefaultStateDir, "logs", "gitcrate.log")
)

const (
	DefaultAttempts    = 5
	DefaultRetryDelay  = time.Second
	DefaultLockTimeout = 60 * time.Second
	DefaultMinDelay    = time.Second
	DefaultMaxDelay    = 4 * time.Second
)

type SyncConfig struct {
	Attempts    int           `mapstructure:"attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type BatchConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

type Config struct {
	Path         string        `mapstructure:"-"`
	RegistryPath string        `mapstructure:"registry_path"`
	HistoryPath  string        `mapstructure:"history_path"`
	LogFile      string        `mapstructure:"log_file"`
	Sync         SyncConfig    `mapstructure:"sync"`
	Batch        BatchConfig   `mapstructure:"batch"`
	Notify       notify.Config `mapstructure:"notify"`
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	return &Config{
		Path:         DefaultConfigPath,
		RegistryPath: DefaultRegistryPath,
		HistoryPath:  DefaultHistoryPath,
		LogFile:      DefaultLogFilePath,
		Sync: SyncConfig{
			Attempts:    DefaultAttempts,
			RetryDelay:  DefaultRetryDelay,
			LockTimeout: DefaultLockTimeout,
		},
		Batch: BatchConfig{
			MinDelay: DefaultMinDelay,
			MaxDelay: DefaultMaxDelay,
		},
	}
}

// Load merges the config file at path (optional), GITCRATE_* environment
// variables and whatever flags were bound on v, then validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	def := Default()
	v.SetDefault("registry_path", def.RegistryPath)
	v.SetDefault("history_path", def.HistoryPath)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("sync.attempts", def.Sync.Attempts)
	v.SetDefault("sync.retry_delay", def.Sync.RetryDelay)
	v.SetDefault("sync.lock_timeout", def.Sync.LockTimeout)
	v.SetDefault("batch.min_delay", def.Batch.MinDelay)
	v.SetDefault("batch.max_delay", def.Batch.MaxDelay)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.sendgrid_api_key", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.to", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config read '%s': %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate resolves paths and rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var err error

	if c.RegistryPath, err = resolve(c.RegistryPath, DefaultRegistryPath); err != nil {
		return fmt.Errorf("registry path: %w", err)
	}
	if c.HistoryPath, err = resolve(c.HistoryPath, DefaultHistoryPath); err != nil {
		return fmt.Errorf("history path: %w", err)
	}
	if c.LogFile, err = resolve(c.LogFile, DefaultLogFilePath); err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	if c.Sync.Attempts < 1 {
		return fmt.Errorf("sync.attempts must be at least 1, got %d", c.Sync.Attempts)
	}
	if c.Sync.RetryDelay < 0 {
		return fmt.Errorf("sync.retry_delay must not be negative")
	}
	if c.Sync.LockTimeout <= 0 {
		return fmt.Errorf("sync.lock_timeout must be positive")
	}
	if c.Batch.MinDelay < 0 || c.Batch.MaxDelay < c.Batch.MinDelay {
		return fmt.Errorf("batch delay range [%s, %s) is invalid", c.Batch.MinDelay, c.Batch.MaxDelay)
	}

	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", c.Path),
		slog.String("registry_path", c.RegistryPath),
		slog.String("history_path", c.HistoryPath),
		slog.String("log_file", c.LogFile),
		slog.Int("sync_attempts", c.Sync.Attempts),
		slog.Duration("sync_retry_delay", c.Sync.RetryDelay),
		slog.Duration("sync_lock_timeout", c.Sync.LockTimeout),
		slog.Duration("batch_min_delay", c.Batch.MinDelay),
		slog.Duration("batch_max_delay", c.Batch.MaxDelay),
		slog.Attr{Key: "notify", Value: c.Notify.LogValue()},
	)
}

func resolve(path, fallback string) (string, error) {
	if path == "" {
		path = fallback
	}
	return utils.ResolvePath(path)
}
