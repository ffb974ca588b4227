package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// Typed outcomes reported by a Backend. Check them with errors.Is:
//
//	if errors.Is(err, vcs.ErrConflict) {
//	    // abort the merge and retry later
//	}
var (
	// ErrNotFound is returned when the requested object (config key, ref,
	// remote) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a merge stopped on conflicting changes.
	ErrConflict = errors.New("merge conflict")

	// ErrRejected is returned when the remote refused a push, typically
	// because another writer updated the branch first.
	ErrRejected = errors.New("push rejected by remote")

	// ErrTransport is returned when the remote could not be reached or read.
	ErrTransport = errors.New("remote unreachable")

	// ErrNotAvailable is returned when the backend binary is not installed.
	ErrNotAvailable = errors.New("vcs binary not available")
)

// CommandError describes a failed backend invocation.
type CommandError struct {
	Args     []string
	Output   string
	ExitCode int

	// Kind is the classified outcome, nil when unclassified
	Kind error

	// Err is the underlying execution error
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

// Unwrap exposes both the classified kind and the execution error
func (e *CommandError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsTransport returns true if the remote itself could not be reached.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
