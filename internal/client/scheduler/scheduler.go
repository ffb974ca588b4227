// Package scheduler runs a sync over every tracked repository, in random
// order and with a random pause before each one, so clients on the same
// periodic schedule do not hit the shared remote at the same instant.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/openmined/gitcrate/internal/utils"
)

const (
	DefaultMinDelay = time.Second
	DefaultMaxDelay = 4 * time.Second
)

// Lister returns the tracked repository paths. It is the only place the
// scheduler touches the registry, so the registry lock is held only there.
type Lister interface {
	Tracked(ctx context.Context) ([]string, error)
}

// SyncFunc syncs the repository at path
type SyncFunc func(ctx context.Context, path string) error

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result is the outcome of one repository in a batch
type Result struct {
	Path  string
	Delay time.Duration
	Err   error
}

// Summary is the outcome of a batch, in processing order
type Summary struct {
	Results []Result
}

func (s *Summary) Failed() []Result {
	var failed []Result
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *Summary) Succeeded() int {
	return len(s.Results) - len(s.Failed())
}

type Config struct {
	Lister   Lister
	Sync     SyncFunc
	Rand     *rand.Rand
	Sleep    SleepFunc
	MinDelay time.Duration
	MaxDelay time.Duration
}

type Scheduler struct {
	lister   Lister
	sync     SyncFunc
	rand     *rand.Rand
	sleep    SleepFunc
	minDelay time.Duration
	maxDelay time.Duration
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Lister == nil {
		return nil, fmt.Errorf("scheduler needs a lister")
	}
	if cfg.Sync == nil {
		return nil, fmt.Errorf("scheduler needs a sync func")
	}
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay, cfg.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid delay range [%s, %s)", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Sleep == nil {
		cfg.Sleep = utils.Sleep
	}

	return &Scheduler{
		lister:   cfg.Lister,
		sync:     cfg.Sync,
		rand:     cfg.Rand,
		sleep:    cfg.Sleep,
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
	}, nil
}

// RunAll syncs every tracked repository once. A failing repository is logged
// and recorded in the summary; it never stops the batch. Only a failure to
// read the tracked set or a cancelled context is returned as an error.
func (s *Scheduler) RunAll(ctx context.Context) (*Summary, error) {
	paths, err := s.lister.Tracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tracked repositories: %w", err)
	}

	s.rand.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})

	slog.Info("batch sync start", "repos", len(paths))
	summary := &Summary{Results: make([]Result, 0, len(paths))}

	for _, path := range paths {
		delay := s.jitter()
		if err := s.sleep(ctx, delay); err != nil {
			return summary, err
		}

		err := s.sync(ctx, path)
		if err != nil {
			slog.Error("batch sync repo failed", "repo", path, "error", err)
		}
		summary.Results = append(summary.Results, Result{Path: path, Delay: delay, Err: err})

		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	slog.Info("batch sync done", "repos", len(paths), "failed", len(summary.Failed()))
	return summary, nil
}

// jitter draws uniformly from [minDelay, maxDelay)
func (s *Scheduler) jitter() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rand.Int64N(int64(span)))
}
