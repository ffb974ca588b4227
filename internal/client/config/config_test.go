package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAttempts, cfg.Sync.Attempts)
	assert.Equal(t, DefaultRetryDelay, cfg.Sync.RetryDelay)
	assert.Equal(t, DefaultLockTimeout, cfg.Sync.LockTimeout)
	assert.Equal(t, DefaultMinDelay, cfg.Batch.MinDelay)
	assert.Equal(t, DefaultMaxDelay, cfg.Batch.MaxDelay)
	assert.Equal(t, DefaultRegistryPath, cfg.RegistryPath)
	assert.False(t, cfg.Notify.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
registry_path: %s
sync:
  attempts: 3
  retry_delay: 250ms
batch:
  min_delay: 0s
  max_delay: 2s
notify:
  enabled: true
  sendgrid_api_key: SG.from-file
  from: sync@example.com
  to: me@example.com
`, filepath.Join(dir, "reg.yaml"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("GITCRATE_SYNC_LOCK_TIMEOUT", "5s")
	t.Setenv("GITCRATE_NOTIFY_SENDGRID_API_KEY", "SG.from-env")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(dir, "reg.yaml"), cfg.RegistryPath)
	assert.Equal(t, 3, cfg.Sync.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Sync.LockTimeout)
	assert.Equal(t, time.Duration(0), cfg.Batch.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Batch.MaxDelay)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, "SG.from-env", cfg.Notify.SendgridAPIKey)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [unterminated"), 0o644))

	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero attempts", func(c *Config) { c.Sync.Attempts = 0 }, "sync.attempts"},
		{"negative retry delay", func(c *Config) { c.Sync.RetryDelay = -time.Second }, "sync.retry_delay"},
		{"no lock timeout", func(c *Config) { c.Sync.LockTimeout = 0 }, "sync.lock_timeout"},
		{"inverted batch delay", func(c *Config) { c.Batch.MinDelay = 5 * time.Second }, "batch delay"},
		{"notify without key", func(c *Config) { c.Notify.Enabled = true }, "notify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_ResolvesPaths(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := Default()
	cfg.RegistryPath = "reg.yaml"
	cfg.HistoryPath = ""

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.RegistryPath))
	assert.Equal(t, DefaultHistoryPath, cfg.HistoryPath)
}

func TestLogValueMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Notify.SendgridAPIKey = "SG.very-secret"

	out := slog.AnyValue(cfg).Resolve().String()
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "sync_attempts=5")
}
