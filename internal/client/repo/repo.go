// Package repo binds a working directory to its git backend, its client
// identity and the bookkeeping files the sync engine keeps next to the
// content.
package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/openmined/gitcrate/internal/utils"
	"github.com/openmined/gitcrate/internal/vcs"
	"github.com/openmined/gitcrate/internal/vcs/git"
)

const (
	// RemoteName is the name of the shared remote inside every repository
	RemoteName = "gitcrate"
	// Mainline is the shared branch every client merges into and pushes
	Mainline = "master"
	// ClientIDKey is the git-local config key holding the client identifier
	ClientIDKey = "gitcrate.client-id"
	// MarkerFile quarantines a repository while it exists in the repository root
	MarkerFile = "CONFLICT_MUST_MANUALLY_MERGE"
	// LockFile serializes syncs of one working directory
	LockFile = ".gitcrate.lock"
	// IgnoreFile receives the bookkeeping file names at creation
	IgnoreFile = ".gitignore"

	initialCommitMessage = "enabling gitcrate"
)

var (
	ErrInvalidRepository  = errors.New("not a valid gitcrate repository")
	ErrAlreadyInitialized = errors.New("directory already contains a git repository")
)

// Repository is a working directory bound to one remote and one client identity.
type Repository struct {
	Path     string
	ClientID string
	Backend  vcs.Backend
}

// Open validates dir and loads its client identity.
//
// The directory must exist, be readable, writable and traversable, contain an
// initialized git metadata store and carry a client id in its local config.
// Any violation returns an error wrapping ErrInvalidRepository.
func Open(ctx context.Context, dir string) (*Repository, error) {
	path, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}
	if !utils.DirExists(path) {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRepository, path)
	}
	if !utils.CanTraverse(path) {
		return nil, fmt.Errorf("%w: %s is not accessible", ErrInvalidRepository, path)
	}
	if !git.IsRepository(path) {
		return nil, fmt.Errorf("%w: %s has no git metadata", ErrInvalidRepository, path)
	}

	backend, err := git.New(path)
	if err != nil {
		return nil, err
	}
	return Load(ctx, path, backend)
}

// Load binds an already validated directory to backend and reads its client id.
func Load(ctx context.Context, path string, backend vcs.Backend) (*Repository, error) {
	id, err := backend.ConfigGet(ctx, ClientIDKey)
	if err != nil {
		if errors.Is(err, vcs.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s has no client id", ErrInvalidRepository, path)
		}
		return nil, fmt.Errorf("read client id of %s: %w", path, err)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: %s has an empty client id", ErrInvalidRepository, path)
	}

	return &Repository{
		Path:     path,
		ClientID: id,
		Backend:  backend,
	}, nil
}

// LockPath is the sync lock file of the repository
func (r *Repository) LockPath() string {
	return filepath.Join(r.Path, LockFile)
}

// ClientRef is the fully qualified client reference
func (r *Repository) ClientRef() string {
	return clientRef(r.ClientID)
}

// RemoteMainline is the remote-tracking ref the engine merges from
func (r *Repository) RemoteMainline() string {
	return RemoteName + "/" + Mainline
}

func (r *Repository) String() string {
	return r.Path
}

func clientRef(clientID string) string {
	return "refs/heads/" + clientID
}
