package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/gitcrate/internal/client/history"
	"github.com/openmined/gitcrate/internal/client/repo"
	"github.com/openmined/gitcrate/internal/vcs"
	"github.com/openmined/gitcrate/internal/vcs/git"
)

// RepoStatus describes one tracked repository
type RepoStatus struct {
	Path        string
	ClientID    string
	Quarantined bool
	MainlineTip string
	Last        *history.Entry

	// Err is set when the path is no longer a valid repository
	Err error
}

// Status reports every tracked repository, sorted by path
func (c *Client) Status(ctx context.Context) ([]RepoStatus, error) {
	paths, err := c.registry.Tracked(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]RepoStatus, 0, len(paths))
	for _, path := range paths {
		statuses = append(statuses, c.status(ctx, path))
	}
	return statuses, nil
}

func (c *Client) status(ctx context.Context, path string) RepoStatus {
	st := RepoStatus{Path: path}

	r, err := repo.Open(ctx, path)
	if err != nil {
		st.Err = err
		return st
	}
	st.ClientID = r.ClientID
	st.Quarantined = r.Quarantined()

	tip, err := git.Tip(r.Path, repo.Mainline)
	if err != nil && !errors.Is(err, vcs.ErrNotFound) {
		slog.Debug("resolve mainline tip", "repo", path, "error", err)
	}
	st.MainlineTip = tip

	if c.history != nil {
		last, err := c.history.Last(ctx, r.Path)
		if err != nil {
			slog.Warn("read sync history", "repo", path, "error", err)
		}
		st.Last = last
	}
	return st
}
