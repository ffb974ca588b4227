// Package lock provides exclusive advisory file locks with a bounded wait.
//
// A Lock coordinates processes on the same host. It is not reentrant: a
// process that already holds a lock on a path must not acquire it again.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/openmined/gitcrate/internal/utils"
)

const retryDelay = 100 * time.Millisecond

var ErrTimeout = errors.New("timed out waiting for lock")

// Lock is a held exclusive lock on a file.
type Lock struct {
	flock *flock.Flock
}

// Acquire blocks until it holds an exclusive lock on path, or until timeout
// elapses, in which case it returns an error wrapping ErrTimeout. The lock
// file and its parent directory are created when missing.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("create lock directory for %s: %w", path, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(waitCtx, retryDelay)
	if err != nil {
		// the parent context's own cancellation is not a timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, path)
	}

	slog.Debug("lock acquired", "path", path)
	return &Lock{flock: fl}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Release drops the lock. Releasing an already released lock is a no-op.
// The lock file is left in place.
func (l *Lock) Release() error {
	if l == nil || !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.flock.Path(), err)
	}
	slog.Debug("lock released", "path", l.flock.Path())
	return nil
}
