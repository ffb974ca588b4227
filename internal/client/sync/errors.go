package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrQuarantined means the repository carries the conflict marker and
	// needs a manual merge before it syncs again
	ErrQuarantined = errors.New("repository quarantined, merge manually and remove the conflict marker")

	// ErrRemoteUnavailable means every attempt failed to reach the remote.
	// No marker is written since no conflict is in evidence.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// SyncError names the repository a quarantine applies to.
type SyncError struct {
	Path string

	// Attempts is zero when the marker was already present
	Attempts int

	Err error
}

func (e *SyncError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("sync %s: %v after %d attempts", e.Path, e.Err, e.Attempts)
	}
	return fmt.Sprintf("sync %s: %v", e.Path, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
