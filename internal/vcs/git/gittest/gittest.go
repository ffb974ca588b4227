// Package gittest provides helpers for tests that drive a real git binary.
package gittest

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Setup skips the test when git is not installed and isolates it from the
// user's git configuration. Commits made during the test get a fixed identity.
func Setup(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "gitcrate test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@gitcrate.invalid")
	t.Setenv("GIT_COMMITTER_NAME", "gitcrate test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@gitcrate.invalid")
}

// InitBare creates an empty bare repository and returns its path
func InitBare(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "remote.git")
	Run(t, "", "init", "--bare", dir)
	return dir
}

// Run executes git with args in dir and fails the test on error
func Run(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := RunErr(dir, args...)
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// RunErr executes git with args in dir and returns combined output
func RunErr(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}
