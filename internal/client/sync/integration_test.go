package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/gitcrate/internal/client/repo"
	"github.com/openmined/gitcrate/internal/vcs/git"
	"github.com/openmined/gitcrate/internal/vcs/git/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a, b   *repo.Repository
	engine *Engine
}

func newPair(t *testing.T) *pair {
	t.Helper()
	gittest.Setup(t)

	ctx := context.Background()
	remote := gittest.InitBare(t)

	a, err := repo.CreateNew(ctx, filepath.Join(t.TempDir(), "a"), remote, nil)
	require.NoError(t, err)
	b, err := repo.ConnectExisting(ctx, filepath.Join(t.TempDir(), "b"), remote, nil)
	require.NoError(t, err)

	return &pair{a: a, b: b, engine: NewEngine(Options{RetryDelay: 10 * time.Millisecond, LockTimeout: 5 * time.Second})}
}

func (p *pair) sync(t *testing.T, r *repo.Repository) {
	t.Helper()
	_, err := p.engine.Sync(context.Background(), r)
	require.NoError(t, err)
}

func write(t *testing.T, r *repo.Repository, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(r.Path, name), []byte(content), 0o644))
}

func read(t *testing.T, r *repo.Repository, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(r.Path, name))
	require.NoError(t, err)
	return string(b)
}

func assertAligned(t *testing.T, r *repo.Repository) {
	t.Helper()
	master, err := git.Tip(r.Path, repo.Mainline)
	require.NoError(t, err)
	client, err := git.Tip(r.Path, r.ClientID)
	require.NoError(t, err)
	assert.Equal(t, master, client, "client ref of %s not aligned", r.Path)
}

func TestIntegration_Idempotent(t *testing.T) {
	p := newPair(t)

	for range 3 {
		report, err := p.engine.Sync(context.Background(), p.a)
		require.NoError(t, err)
		assert.Len(t, report.Attempts, 1)
		assert.False(t, report.Committed)
		assertAligned(t, p.a)
	}
}

func TestIntegration_Convergence(t *testing.T) {
	p := newPair(t)

	write(t, p.a, "notes.txt", "X\n")
	p.sync(t, p.a)
	p.sync(t, p.b)
	assert.Equal(t, "X\n", read(t, p.b, "notes.txt"))
	assertAligned(t, p.b)

	write(t, p.b, "notes.txt", "X\nY\n")
	p.sync(t, p.b)
	p.sync(t, p.a)
	assert.Equal(t, "X\nY\n", read(t, p.a, "notes.txt"))
	assertAligned(t, p.a)

	// bookkeeping never travels as content
	assert.FileExists(t, p.a.LockPath())
	tracked := gittest.Run(t, p.a.Path, "ls-files")
	assert.NotContains(t, tracked, repo.LockFile)
}

func TestIntegration_QuarantineAndRecovery(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	write(t, p.a, "notes.txt", "base\n")
	p.sync(t, p.a)
	p.sync(t, p.b)

	write(t, p.a, "notes.txt", "from a\n")
	write(t, p.b, "notes.txt", "from b\n")
	p.sync(t, p.a)

	report, err := p.engine.Sync(ctx, p.b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuarantined)
	assert.Equal(t, StateQuarantined, report.State)
	assert.Len(t, report.Attempts, DefaultAttempts)
	assert.True(t, p.b.Quarantined())

	// local work is preserved in an automatic commit
	assert.Equal(t, "from b\n", read(t, p.b, "notes.txt"))
	assert.Contains(t, gittest.Run(t, p.b.Path, "log", "-1", "--format=%s"), commitMessage)

	report, err = p.engine.Sync(ctx, p.b)
	assert.ErrorIs(t, err, ErrQuarantined)
	assert.Empty(t, report.Attempts)

	// manual resolution
	_, _ = gittest.RunErr(p.b.Path, "merge", "--no-edit", "gitcrate/master")
	write(t, p.b, "notes.txt", "from a\nfrom b\n")
	gittest.Run(t, p.b.Path, "add", "notes.txt")
	gittest.Run(t, p.b.Path, "commit", "--no-edit", "-m", "resolved")
	require.NoError(t, os.Remove(p.b.MarkerPath()))

	p.sync(t, p.b)
	assertAligned(t, p.b)
	p.sync(t, p.a)
	assert.Equal(t, "from a\nfrom b\n", read(t, p.a, "notes.txt"))
}
