package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/gitcrate/internal/utils"
	"github.com/openmined/gitcrate/internal/vcs/git"
)

// Tracker registers a configured repository for batch synchronization
type Tracker interface {
	Track(ctx context.Context, path string) error
}

// CreateNew initializes dir against an empty remote. It fails with
// ErrAlreadyInitialized if dir already holds git metadata.
func CreateNew(ctx context.Context, dir, remoteURL string, tracker Tracker) (*Repository, error) {
	g, err := initialize(ctx, dir)
	if err != nil {
		return nil, err
	}

	if _, err := EnsureIgnored(g.Dir(), bookkeepingFiles...); err != nil {
		return nil, err
	}
	if err := g.RemoteAdd(ctx, RemoteName, remoteURL); err != nil {
		return nil, fmt.Errorf("add remote: %w", err)
	}
	if err := g.Add(ctx, IgnoreFile); err != nil {
		return nil, fmt.Errorf("stage %s: %w", IgnoreFile, err)
	}
	if err := g.Commit(ctx, initialCommitMessage); err != nil {
		return nil, fmt.Errorf("initial commit: %w", err)
	}

	slog.Info("repository created", "repo", g.Dir(), "remote", remoteURL)
	return configure(ctx, g, tracker)
}

// ConnectExisting initializes dir from a remote whose mainline already has
// history. Same precondition as CreateNew.
func ConnectExisting(ctx context.Context, dir, remoteURL string, tracker Tracker) (*Repository, error) {
	g, err := initialize(ctx, dir)
	if err != nil {
		return nil, err
	}

	if err := g.RemoteAdd(ctx, RemoteName, remoteURL); err != nil {
		return nil, fmt.Errorf("add remote: %w", err)
	}
	if err := g.FetchAll(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", remoteURL, err)
	}
	if err := g.Checkout(ctx, Mainline, RemoteName+"/"+Mainline); err != nil {
		return nil, fmt.Errorf("check out %s: %w", Mainline, err)
	}

	slog.Info("repository connected", "repo", g.Dir(), "remote", remoteURL)
	return configure(ctx, g, tracker)
}

func initialize(ctx context.Context, dir string) (*git.Git, error) {
	path, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}
	if utils.FileExists(path) {
		return nil, fmt.Errorf("%w: %s is a file", ErrInvalidRepository, path)
	}
	if git.HasMetadata(path) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, path)
	}
	return git.Init(ctx, path, Mainline)
}

// configure is the path shared by create and connect: identity, client ref,
// first publication and registration.
func configure(ctx context.Context, g *git.Git, tracker Tracker) (*Repository, error) {
	id, err := ConfigureClientID(ctx, g, Hostname(ctx))
	if err != nil {
		return nil, err
	}
	if err := AlignClientRef(ctx, g, id); err != nil {
		return nil, err
	}
	if err := g.Push(ctx, RemoteName, true, Mainline, id); err != nil {
		return nil, fmt.Errorf("publish %s: %w", id, err)
	}

	r, err := Open(ctx, g.Dir())
	if err != nil {
		return nil, err
	}
	if tracker != nil {
		if err := tracker.Track(ctx, r.Path); err != nil {
			return nil, fmt.Errorf("track %s: %w", r.Path, err)
		}
	}

	slog.Info("repository configured", "repo", r.Path, "client", id)
	return r, nil
}
