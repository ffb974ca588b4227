// Package sync brings one repository and the shared remote mainline into
// agreement, or quarantines the repository when they cannot be merged.
//
// A sync runs as an explicit state machine:
//
//	idle -> locking -> check_conflict -> attempting (1..N) -> success
//	                                                       -> quarantined
//
// Any state may end in failed on an unexpected error. The repository lock
// is released on every exit path.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/gitcrate/internal/client/lock"
	"github.com/openmined/gitcrate/internal/client/repo"
	"github.com/openmined/gitcrate/internal/utils"
	"github.com/openmined/gitcrate/internal/vcs"
)

const (
	DefaultAttempts    = 5
	DefaultRetryDelay  = time.Second
	DefaultLockTimeout = 60 * time.Second

	commitMessage = "Automatic gitcrate commit"
)

// Options bound a sync run. Zero values fall back to the defaults.
type Options struct {
	Attempts    int
	RetryDelay  time.Duration
	LockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	} else if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	return o
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// EngineOption customizes an Engine
type EngineOption func(*Engine)

// WithSleep replaces the delay between attempts
func WithSleep(fn SleepFunc) EngineOption {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithClock replaces the time source used for reports
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs the sync protocol. It holds no per-repository state and may be
// shared; concurrent runs against one directory serialize on its lock file.
type Engine struct {
	opts  Options
	sleep SleepFunc
	now   func() time.Time
}

func NewEngine(opts Options, engineOpts ...EngineOption) *Engine {
	e := &Engine{
		opts:  opts.withDefaults(),
		sleep: utils.Sleep,
		now:   time.Now,
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	return e
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

// Sync runs the protocol against r. The returned report is never nil; the
// error is non-nil unless the run ended in StateSuccess.
func (e *Engine) Sync(ctx context.Context, r *repo.Repository) (*Report, error) {
	run := &run{
		repo:  r,
		state: StateIdle,
		report: &Report{
			RunID:       uuid.NewString(),
			Path:        r.Path,
			ClientID:    r.ClientID,
			State:       StateIdle,
			StartedAt:   e.now(),
			Transitions: []State{StateIdle},
		},
	}
	defer run.release()

	slog.Info("sync start", "repo", r.Path, "run", run.report.RunID)

	for !run.state.Terminal() {
		run.transition(e.step(ctx, run))
	}

	run.report.Duration = e.now().Sub(run.report.StartedAt)
	run.report.Err = run.err

	switch run.state {
	case StateSuccess:
		slog.Info("sync done", "report", run.report)
	case StateQuarantined:
		slog.Error("sync quarantined", "report", run.report)
	default:
		slog.Error("sync failed", "report", run.report)
	}
	return run.report, run.err
}

// step executes the current state and returns the next one
func (e *Engine) step(ctx context.Context, r *run) State {
	switch r.state {
	case StateIdle:
		return StateLocking
	case StateLocking:
		return e.acquire(ctx, r)
	case StateCheckConflict:
		return e.checkConflict(r)
	case StateAttempting:
		return e.attempt(ctx, r)
	default:
		r.err = fmt.Errorf("unexpected sync state %q", r.state)
		return StateFailed
	}
}

func (e *Engine) acquire(ctx context.Context, r *run) State {
	l, err := lock.Acquire(ctx, r.repo.LockPath(), e.opts.LockTimeout)
	if err != nil {
		r.err = fmt.Errorf("lock %s: %w", r.repo.Path, err)
		return StateFailed
	}
	r.lock = l
	return StateCheckConflict
}

func (e *Engine) checkConflict(r *run) State {
	if r.repo.Quarantined() {
		r.err = &SyncError{Path: r.repo.Path, Err: ErrQuarantined}
		return StateQuarantined
	}
	return StateAttempting
}

// attempt runs one round and decides whether to retry, succeed or give up
func (e *Engine) attempt(ctx context.Context, r *run) State {
	n := len(r.report.Attempts) + 1
	outcome, err := e.round(ctx, r)
	r.report.Attempts = append(r.report.Attempts, Attempt{N: n, Outcome: outcome, Err: err})

	if outcome == OutcomePushed {
		return StateSuccess
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.err = ctxErr
		return StateFailed
	}
	if !outcome.retryable() {
		r.err = err
		return StateFailed
	}

	slog.Warn("sync attempt failed", "repo", r.repo.Path, "attempt", n, "of", e.opts.Attempts, "outcome", outcome, "error", err)

	if n >= e.opts.Attempts {
		return e.exhausted(r)
	}
	if err := e.sleep(ctx, e.opts.RetryDelay); err != nil {
		r.err = err
		return StateFailed
	}
	return StateAttempting
}

// round is one fetch, stage, commit, merge, align, push sequence
func (e *Engine) round(ctx context.Context, r *run) (Outcome, error) {
	b := r.repo.Backend

	if err := b.FetchAll(ctx); err != nil {
		return OutcomeFetchFailed, err
	}

	if err := b.AddAll(ctx); err != nil {
		return OutcomeError, fmt.Errorf("stage changes: %w", err)
	}
	diff, err := b.StagedDiff(ctx)
	if err != nil {
		return OutcomeError, fmt.Errorf("inspect staged changes: %w", err)
	}
	if diff != "" {
		if err := b.Commit(ctx, commitMessage); err != nil {
			return OutcomeError, fmt.Errorf("commit local changes: %w", err)
		}
		r.report.Committed = true
		slog.Debug("local changes committed", "repo", r.repo.Path)
	}

	if err := b.Merge(ctx, r.repo.RemoteMainline()); err != nil {
		if abortErr := b.MergeAbort(ctx); abortErr != nil {
			slog.Warn("merge abort failed", "repo", r.repo.Path, "error", abortErr)
		}
		return OutcomeMergeFailed, err
	}

	if err := repo.AlignClientRef(ctx, b, r.repo.ClientID); err != nil {
		return OutcomeError, err
	}

	if err := b.Push(ctx, repo.RemoteName, false, repo.Mainline, r.repo.ClientID); err != nil {
		return OutcomePushFailed, err
	}
	return OutcomePushed, nil
}

// exhausted ends a run whose budget is spent. A remote that was never reached
// leaves the repository eligible; anything else quarantines it.
func (e *Engine) exhausted(r *run) State {
	if r.allTransport() {
		r.err = &SyncError{Path: r.repo.Path, Attempts: len(r.report.Attempts), Err: ErrRemoteUnavailable}
		return StateFailed
	}

	if err := r.repo.Quarantine(); err != nil {
		r.err = err
		return StateFailed
	}
	r.err = &SyncError{Path: r.repo.Path, Attempts: len(r.report.Attempts), Err: ErrQuarantined}
	return StateQuarantined
}

// run carries the state of one Sync call
type run struct {
	repo   *repo.Repository
	state  State
	lock   *lock.Lock
	err    error
	report *Report
}

func (r *run) transition(next State) {
	slog.Debug("sync transition", "repo", r.repo.Path, "from", r.state, "to", next)
	r.state = next
	r.report.State = next
	r.report.Transitions = append(r.report.Transitions, next)
}

func (r *run) release() {
	if err := r.lock.Release(); err != nil {
		slog.Error("release sync lock", "repo", r.repo.Path, "error", err)
	}
}

func (r *run) allTransport() bool {
	if len(r.report.Attempts) == 0 {
		return false
	}
	for _, a := range r.report.Attempts {
		if !vcs.IsTransport(a.Err) {
			return false
		}
	}
	return true
}
