// Package client wires the repository, sync engine, registry and scheduler
// together behind the operations the command line exposes.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/openmined/gitcrate/internal/client/autosync"
	"github.com/openmined/gitcrate/internal/client/config"
	"github.com/openmined/gitcrate/internal/client/history"
	"github.com/openmined/gitcrate/internal/client/notify"
	"github.com/openmined/gitcrate/internal/client/registry"
	"github.com/openmined/gitcrate/internal/client/repo"
	"github.com/openmined/gitcrate/internal/client/scheduler"
	"github.com/openmined/gitcrate/internal/client/sync"
)

type Client struct {
	config    *config.Config
	registry  *registry.Registry
	engine    *sync.Engine
	history   *history.History
	notifier  notify.Notifier
	installer *autosync.Installer

	rand       *rand.Rand
	batchSleep scheduler.SleepFunc
	syncSleep  sync.SleepFunc
}

type Option func(*Client)

// WithNotifier replaces the notifier built from the config
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithInstaller replaces the system crontab installer
func WithInstaller(i *autosync.Installer) Option {
	return func(c *Client) {
		c.installer = i
	}
}

// WithRand seeds batch ordering and jitter
func WithRand(r *rand.Rand) Option {
	return func(c *Client) {
		c.rand = r
	}
}

// WithBatchSleep replaces the pause between repositories of a batch
func WithBatchSleep(fn scheduler.SleepFunc) Option {
	return func(c *Client) {
		c.batchSleep = fn
	}
}

// WithSyncSleep replaces the pause between sync attempts
func WithSyncSleep(fn sync.SleepFunc) Option {
	return func(c *Client) {
		c.syncSleep = fn
	}
}

func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config:   cfg,
		registry: registry.New(cfg.RegistryPath, registry.WithLockTimeout(cfg.Sync.LockTimeout)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.notifier == nil {
		n, err := notify.New(cfg.Notify)
		if err != nil {
			return nil, err
		}
		c.notifier = n
	}
	if c.installer == nil {
		c.installer = autosync.NewSystemInstaller()
	}

	var engineOpts []sync.EngineOption
	if c.syncSleep != nil {
		engineOpts = append(engineOpts, sync.WithSleep(c.syncSleep))
	}
	c.engine = sync.NewEngine(sync.Options{
		Attempts:    cfg.Sync.Attempts,
		RetryDelay:  retryDelay(cfg),
		LockTimeout: cfg.Sync.LockTimeout,
	}, engineOpts...)

	h, err := history.Open(cfg.HistoryPath)
	if err != nil {
		// history is informational, syncing works without it
		slog.Warn("sync history unavailable", "path", cfg.HistoryPath, "error", err)
	} else {
		c.history = h
	}

	return c, nil
}

func (c *Client) Close() error {
	if c.history == nil {
		return nil
	}
	return c.history.Close()
}

func (c *Client) Registry() *registry.Registry {
	return c.registry
}

// Create initializes dir against an empty remote and tracks it
func (c *Client) Create(ctx context.Context, dir, remoteURL string) (*repo.Repository, error) {
	return repo.CreateNew(ctx, dir, remoteURL, c.registry)
}

// Connect initializes dir from a remote that already has history and tracks it
func (c *Client) Connect(ctx context.Context, dir, remoteURL string) (*repo.Repository, error) {
	return repo.ConnectExisting(ctx, dir, remoteURL, c.registry)
}

// Sync runs the sync engine on dir and journals the run. The report is nil
// only when dir is not a valid repository.
func (c *Client) Sync(ctx context.Context, dir string) (*sync.Report, error) {
	r, err := repo.Open(ctx, dir)
	if err != nil {
		return nil, err
	}

	report, err := c.engine.Sync(ctx, r)
	c.record(ctx, report)

	var syncErr *sync.SyncError
	if errors.As(err, &syncErr) && errors.Is(err, sync.ErrQuarantined) && syncErr.Attempts > 0 {
		if nerr := c.notifier.Quarantined(ctx, r.Path, r.ClientID, err); nerr != nil {
			slog.Warn("quarantine notification failed", "repo", r.Path, "error", nerr)
		}
	}
	return report, err
}

// Track validates dir as a repository and adds it to the registry
func (c *Client) Track(ctx context.Context, dir string) error {
	r, err := repo.Open(ctx, dir)
	if err != nil {
		return err
	}
	return c.registry.Track(ctx, r.Path)
}

// Untrack removes dir from the registry. The directory may already be gone.
func (c *Client) Untrack(ctx context.Context, dir string) error {
	return c.registry.Untrack(ctx, dir)
}

// Cleanup prunes registry entries whose directory no longer exists
func (c *Client) Cleanup(ctx context.Context) ([]string, error) {
	removed, err := c.registry.Cleanup(ctx)
	for _, path := range removed {
		slog.Info("untracked missing repository", "repo", path)
	}
	return removed, err
}

// SyncAllTracked syncs every tracked repository in random order
func (c *Client) SyncAllTracked(ctx context.Context) (*scheduler.Summary, error) {
	s, err := scheduler.New(scheduler.Config{
		Lister: c.registry,
		Sync: func(ctx context.Context, path string) error {
			_, err := c.Sync(ctx, path)
			return err
		},
		Rand:     c.rand,
		Sleep:    c.batchSleep,
		MinDelay: c.config.Batch.MinDelay,
		MaxDelay: c.config.Batch.MaxDelay,
	})
	if err != nil {
		return nil, err
	}
	return s.RunAll(ctx)
}

// EnableAutosync installs the periodic batch sync for executable
func (c *Client) EnableAutosync(ctx context.Context, executable string) error {
	return c.installer.Enable(ctx, executable)
}

func (c *Client) record(ctx context.Context, report *sync.Report) {
	if c.history == nil || report == nil {
		return
	}

	entry := history.Entry{
		RunID:     report.RunID,
		Path:      report.Path,
		ClientID:  report.ClientID,
		State:     string(report.State),
		Attempts:  len(report.Attempts),
		StartedAt: report.StartedAt,
		Duration:  report.Duration,
	}
	if report.Err != nil {
		entry.Error = report.Err.Error()
	}

	// a cancelled run is still worth journaling
	if err := c.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("record sync history", "repo", report.Path, "error", err)
	}
}

// retryDelay maps a configured zero delay to "no delay" for the engine,
// which otherwise treats zero as unset
func retryDelay(cfg *config.Config) time.Duration {
	if cfg.Sync.RetryDelay == 0 {
		return -1
	}
	return cfg.Sync.RetryDelay
}
