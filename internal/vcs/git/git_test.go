package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/gitcrate/internal/vcs"
	"github.com/openmined/gitcrate/internal/vcs/git/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		exitCode int
		output   string
		want     error
	}{
		{"missing config key", []string{"config", "--local", "--get", "x.y"}, 1, "", vcs.ErrNotFound},
		{"broken config", []string{"config", "--local", "--get", "x.y"}, 3, "bad config line", nil},
		{"merge conflict", []string{"merge", "--no-edit", "r/master"}, 1, "CONFLICT (add/add): Merge conflict in f\nAutomatic merge failed; fix conflicts and then commit the result.", vcs.ErrConflict},
		{"merge other failure", []string{"merge", "--no-edit", "r/master"}, 1, "merge: r/master - not something we can merge", nil},
		{"push race", []string{"push", "r", "master"}, 1, " ! [rejected]        master -> master (fetch first)", vcs.ErrRejected},
		{"push transport", []string{"push", "r", "master"}, 128, "fatal: '/nope' does not appear to be a git repository\nfatal: Could not read from remote repository.", vcs.ErrTransport},
		{"fetch transport", []string{"fetch", "--all"}, 1, "fatal: unable to access 'https://example.invalid/': Could not resolve host", vcs.ErrTransport},
		{"checkout bad start", []string{"checkout", "-B", "master", "r/master"}, 128, "fatal: 'r/master' is not a commit and a branch 'master' cannot be created from it\nnot a valid object name", vcs.ErrNotFound},
		{"no args", nil, 1, "", nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, classify(c.args, c.exitCode, c.output))
		})
	}
}

func TestCommandError_UnwrapsKind(t *testing.T) {
	inner := errors.New("exit status 1")
	err := error(&vcs.CommandError{Args: []string{"push"}, ExitCode: 1, Kind: vcs.ErrRejected, Err: inner})

	assert.ErrorIs(t, err, vcs.ErrRejected)
	assert.ErrorIs(t, err, inner)
	assert.False(t, vcs.IsTransport(err))
	assert.True(t, vcs.IsTransport(&vcs.CommandError{Args: []string{"fetch"}, Kind: vcs.ErrTransport}))

	var cmdErr *vcs.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)
}

func TestGit_InitConfigAndBranches(t *testing.T) {
	gittest.Setup(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "work")

	g, err := Init(ctx, dir, "master")
	require.NoError(t, err)
	assert.True(t, HasMetadata(dir))
	assert.True(t, IsRepository(dir))
	require.NoError(t, g.Status(ctx))

	_, err = g.ConfigGet(ctx, "gitcrate.client-id")
	assert.ErrorIs(t, err, vcs.ErrNotFound)

	require.NoError(t, g.ConfigSet(ctx, "gitcrate.client-id", "gitcrate-host-abcde"))
	id, err := g.ConfigGet(ctx, "gitcrate.client-id")
	require.NoError(t, err)
	assert.Equal(t, "gitcrate-host-abcde", id)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hello"), 0o644))
	require.NoError(t, g.AddAll(ctx))
	diff, err := g.StagedDiff(ctx)
	require.NoError(t, err)
	assert.Contains(t, diff, "hello")
	require.NoError(t, g.Commit(ctx, "first"))

	diff, err = g.StagedDiff(ctx)
	require.NoError(t, err)
	assert.Empty(t, diff)

	require.NoError(t, g.UpdateRef(ctx, "refs/heads/gitcrate-host-abcde", "master"))
	branches, err := g.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gitcrate-host-abcde", "master"}, branches)

	master, err := Tip(dir, "master")
	require.NoError(t, err)
	client, err := Tip(dir, "gitcrate-host-abcde")
	require.NoError(t, err)
	assert.Equal(t, master, client)

	_, err = Tip(dir, "missing")
	assert.ErrorIs(t, err, vcs.ErrNotFound)
}

func TestGit_PushToMissingRemoteIsTransport(t *testing.T) {
	gittest.Setup(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "work")

	g, err := Init(ctx, dir, "master")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	require.NoError(t, g.AddAll(ctx))
	require.NoError(t, g.Commit(ctx, "first"))
	require.NoError(t, g.RemoteAdd(ctx, "gitcrate", filepath.Join(t.TempDir(), "does-not-exist")))

	err = g.Push(ctx, "gitcrate", false, "master")
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrTransport)
}

func TestGit_PushRaceIsRejected(t *testing.T) {
	gittest.Setup(t)
	ctx := context.Background()
	remote := gittest.InitBare(t)

	first, err := Init(ctx, filepath.Join(t.TempDir(), "a"), "master")
	require.NoError(t, err)
	second, err := Init(ctx, filepath.Join(t.TempDir(), "b"), "master")
	require.NoError(t, err)

	for i, g := range []*Git{first, second} {
		require.NoError(t, os.WriteFile(filepath.Join(g.Dir(), "f"), []byte{byte('a' + i)}, 0o644))
		require.NoError(t, g.AddAll(ctx))
		require.NoError(t, g.Commit(ctx, "commit"))
		require.NoError(t, g.RemoteAdd(ctx, "gitcrate", remote))
	}

	require.NoError(t, first.Push(ctx, "gitcrate", true, "master"))
	err = second.Push(ctx, "gitcrate", false, "master")
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrRejected)
}

func TestGit_MergeConflict(t *testing.T) {
	gittest.Setup(t)
	ctx := context.Background()
	remote := gittest.InitBare(t)

	first, err := Init(ctx, filepath.Join(t.TempDir(), "a"), "master")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first.Dir(), "f"), []byte("first"), 0o644))
	require.NoError(t, first.AddAll(ctx))
	require.NoError(t, first.Commit(ctx, "first"))
	require.NoError(t, first.RemoteAdd(ctx, "gitcrate", remote))
	require.NoError(t, first.Push(ctx, "gitcrate", false, "master"))

	second, err := Init(ctx, filepath.Join(t.TempDir(), "b"), "master")
	require.NoError(t, err)
	require.NoError(t, second.RemoteAdd(ctx, "gitcrate", remote))
	require.NoError(t, second.FetchAll(ctx))
	require.NoError(t, second.Checkout(ctx, "master", "gitcrate/master"))

	require.NoError(t, os.WriteFile(filepath.Join(first.Dir(), "f"), []byte("changed by first"), 0o644))
	require.NoError(t, first.AddAll(ctx))
	require.NoError(t, first.Commit(ctx, "change"))
	require.NoError(t, first.Push(ctx, "gitcrate", false, "master"))

	require.NoError(t, os.WriteFile(filepath.Join(second.Dir(), "f"), []byte("changed by second"), 0o644))
	require.NoError(t, second.AddAll(ctx))
	require.NoError(t, second.Commit(ctx, "change"))
	require.NoError(t, second.FetchAll(ctx))

	err = second.Merge(ctx, "gitcrate/master")
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrConflict)
	require.NoError(t, second.MergeAbort(ctx))

	content, err := os.ReadFile(filepath.Join(second.Dir(), "f"))
	require.NoError(t, err)
	assert.Equal(t, "changed by second", string(content))
}
