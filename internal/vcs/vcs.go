// Package vcs defines the version control capabilities gitcrate relies on.
//
// gitcrate never merges or diffs content itself. Every operation on a
// working directory goes through a Backend, which executes the real version
// control engine and reports typed outcomes:
//
//	if err := b.Push(ctx, "gitcrate", "master", clientID); err != nil {
//	    if errors.Is(err, vcs.ErrRejected) {
//	        // another client raced ahead; re-fetch and retry
//	    }
//	}
//
// The git implementation lives in internal/vcs/git.
package vcs

import "context"

// Backend executes version control commands against a single working directory.
//
// Methods return nil on success. Failures wrap one of the sentinel errors of
// this package (ErrNotFound, ErrConflict, ErrRejected, ErrTransport) when the
// failure could be classified, and are always inspectable with errors.As as a
// *CommandError.
type Backend interface {
	// Dir returns the working directory this backend operates on
	Dir() string

	// Status verifies the working directory is usable by the backend
	Status(ctx context.Context) error

	// FetchAll fetches every configured remote
	FetchAll(ctx context.Context) error

	// AddAll stages every change in the working directory, including deletions
	AddAll(ctx context.Context) error

	// Add stages the given paths
	Add(ctx context.Context, paths ...string) error

	// StagedDiff returns the diff of the staging area against HEAD.
	// An empty string means nothing is staged.
	StagedDiff(ctx context.Context) (string, error)

	// Commit records the staged changes with the given message
	Commit(ctx context.Context, message string) error

	// Merge merges ref into the current branch without opening an editor.
	// Returns an error wrapping ErrConflict when the merge stopped on conflicts.
	Merge(ctx context.Context, ref string) error

	// MergeAbort aborts an in-progress merge and restores the working tree
	MergeAbort(ctx context.Context) error

	// Push pushes refs to remote. When setUpstream is true the first ref
	// gets remote tracking configured. Returns an error wrapping ErrRejected
	// when the remote refused a non-fast-forward update.
	Push(ctx context.Context, remote string, setUpstream bool, refs ...string) error

	// UpdateRef points ref at target, creating it if needed
	UpdateRef(ctx context.Context, ref, target string) error

	// RemoteAdd registers a remote
	RemoteAdd(ctx context.Context, name, url string) error

	// Checkout (re)creates branch at startPoint and checks it out
	Checkout(ctx context.Context, branch, startPoint string) error

	// Branches lists local and remote-tracking branches by short name
	Branches(ctx context.Context) ([]string, error)

	// ConfigGet reads a repository-local config value.
	// Returns an error wrapping ErrNotFound when the key is unset.
	ConfigGet(ctx context.Context, key string) (string, error)

	// ConfigSet writes a repository-local config value
	ConfigSet(ctx context.Context, key, value string) error
}
