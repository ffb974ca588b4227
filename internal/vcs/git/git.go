// Package git implements vcs.Backend on top of the git command line.
//
// Every call runs a fresh git process with an explicit --git-dir and
// --work-tree, so a directory that is not itself a repository never falls
// through to an enclosing one. Failures are classified into the typed
// outcomes of the vcs package.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/openmined/gitcrate/internal/vcs"
)

const metadataDir = ".git"

// gitEnv keeps git non-interactive and its messages in a stable language
var gitEnv = []string{
	"GIT_TERMINAL_PROMPT=0",
	"GIT_MERGE_AUTOEDIT=no",
	"LC_ALL=C",
}

// Git implements vcs.Backend for a single working directory.
type Git struct {
	dir    string
	gitDir string
	binary string
}

var _ vcs.Backend = (*Git)(nil)

// New creates a Git backend for dir. It does not check that dir is a repository.
func New(dir string) (*Git, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	binary, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vcs.ErrNotAvailable, err)
	}
	return &Git{
		dir:    abs,
		gitDir: filepath.Join(abs, metadataDir),
		binary: binary,
	}, nil
}

// Init creates an empty repository in dir whose HEAD points at branch.
func Init(ctx context.Context, dir, branch string) (*Git, error) {
	g, err := New(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", g.dir, err)
	}
	if _, err := g.run(ctx, false, "init", g.dir); err != nil {
		return nil, err
	}
	// set the unborn branch explicitly, init.defaultBranch varies between hosts
	if _, err := g.run(ctx, true, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
		return nil, err
	}
	return g, nil
}

// HasMetadata reports whether dir contains a git metadata directory
func HasMetadata(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, metadataDir))
	return err == nil
}

func (g *Git) Dir() string {
	return g.dir
}

func (g *Git) Status(ctx context.Context) error {
	_, err := g.run(ctx, true, "status", "--porcelain")
	return err
}

func (g *Git) FetchAll(ctx context.Context) error {
	_, err := g.run(ctx, true, "fetch", "--all")
	return err
}

func (g *Git) AddAll(ctx context.Context) error {
	_, err := g.run(ctx, true, "add", "-A")
	return err
}

func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := g.run(ctx, true, args...)
	return err
}

func (g *Git) StagedDiff(ctx context.Context) (string, error) {
	out, err := g.run(ctx, true, "diff", "--staged")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Git) Commit(ctx context.Context, message string) error {
	if message == "" {
		return errors.New("commit message is required")
	}
	_, err := g.run(ctx, true, "commit", "-m", message)
	return err
}

func (g *Git) Merge(ctx context.Context, ref string) error {
	_, err := g.run(ctx, true, "merge", "--no-edit", ref)
	return err
}

func (g *Git) MergeAbort(ctx context.Context) error {
	_, err := g.run(ctx, true, "merge", "--abort")
	return err
}

func (g *Git) Push(ctx context.Context, remote string, setUpstream bool, refs ...string) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote)
	args = append(args, refs...)
	_, err := g.run(ctx, true, args...)
	return err
}

func (g *Git) UpdateRef(ctx context.Context, ref, target string) error {
	_, err := g.run(ctx, true, "update-ref", ref, target)
	return err
}

func (g *Git) RemoteAdd(ctx context.Context, name, url string) error {
	_, err := g.run(ctx, true, "remote", "add", name, url)
	return err
}

func (g *Git) Checkout(ctx context.Context, branch, startPoint string) error {
	_, err := g.run(ctx, true, "checkout", "-B", branch, startPoint)
	return err
}

func (g *Git) ConfigGet(ctx context.Context, key string) (string, error) {
	out, err := g.run(ctx, true, "config", "--local", "--get", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Git) ConfigSet(ctx context.Context, key, value string) error {
	_, err := g.run(ctx, true, "config", "--local", key, value)
	return err
}

// run executes git and returns its stdout. When scoped is true the command is
// pinned to this repository's metadata and work tree.
func (g *Git) run(ctx context.Context, scoped bool, args ...string) (string, error) {
	full := args
	if scoped {
		full = append([]string{"--git-dir=" + g.gitDir, "--work-tree=" + g.dir}, args...)
	}

	cmd := exec.CommandContext(ctx, g.binary, full...)
	cmd.Dir = g.dir
	cmd.Env = append(os.Environ(), gitEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	output := stderr.String() + stdout.String()

	cmdErr := &vcs.CommandError{
		Args:     args,
		Output:   output,
		ExitCode: exitCode,
		Kind:     classify(args, exitCode, output),
		Err:      err,
	}
	slog.Debug("git", "args", args, "exit", exitCode, "kind", cmdErr.Kind)
	return stdout.String(), cmdErr
}
