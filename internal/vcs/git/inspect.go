package git

import (
	"context"
	"errors"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/openmined/gitcrate/internal/vcs"
)

// Read-only inspection goes through go-git. It never mutates the repository,
// all writes stay with the git binary.

// IsRepository reports whether dir holds an initialized git metadata store
func IsRepository(dir string) bool {
	_, err := gogit.PlainOpen(dir)
	return err == nil
}

// Tip returns the commit hash branch currently points at.
// Returns an error wrapping vcs.ErrNotFound if the branch does not exist.
func Tip(dir, branch string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dir, err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("branch %s: %w", branch, vcs.ErrNotFound)
		}
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

// Branches lists local branches by name and remote-tracking branches as
// "remotes/<remote>/<branch>", sorted.
func (g *Git) Branches(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := gogit.PlainOpen(g.dir)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", g.dir, err)
	}

	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer refs.Close()

	var branches []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			branches = append(branches, name.Short())
		case name.IsRemote():
			branches = append(branches, "remotes/"+name.Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	sort.Strings(branches)
	return branches, nil
}
