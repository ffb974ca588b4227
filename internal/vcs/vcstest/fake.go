// Package vcstest provides a scripted in-memory vcs.Backend for tests.
package vcstest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openmined/gitcrate/internal/vcs"
)

// Fake is a vcs.Backend that records every call and answers from scripts.
//
// Errors queued with Fail are returned by successive calls of the named
// operation, one per call; a nil entry lets that call succeed. Once the queue
// is drained the operation succeeds.
type Fake struct {
	mu      sync.Mutex
	dir     string
	calls   []string
	errs    map[string][]error
	Diff    string
	Config  map[string]string
	Refs    map[string]string
	Remotes map[string]string
}

var _ vcs.Backend = (*Fake)(nil)

func NewFake(dir string) *Fake {
	return &Fake{
		dir:     dir,
		errs:    make(map[string][]error),
		Config:  make(map[string]string),
		Refs:    make(map[string]string),
		Remotes: make(map[string]string),
	}
}

// Fail queues errs for op, e.g. Fail("merge", vcs.ErrConflict, nil)
func (f *Fake) Fail(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

// Calls returns the operations invoked so far, in order
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how often op was invoked
func (f *Fake) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op || strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

func (f *Fake) record(op string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := op
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	f.calls = append(f.calls, call)

	queue := f.errs[op]
	if len(queue) == 0 {
		return nil
	}
	f.errs[op] = queue[1:]
	if queue[0] == nil {
		return nil
	}
	return &vcs.CommandError{Args: append([]string{op}, args...), ExitCode: 1, Kind: queue[0], Err: fmt.Errorf("scripted %s failure", op)}
}

func (f *Fake) Dir() string { return f.dir }

func (f *Fake) Status(ctx context.Context) error { return f.record("status") }

func (f *Fake) FetchAll(ctx context.Context) error { return f.record("fetch") }

func (f *Fake) AddAll(ctx context.Context) error { return f.record("add") }

func (f *Fake) Add(ctx context.Context, paths ...string) error {
	return f.record("add", paths...)
}

func (f *Fake) StagedDiff(ctx context.Context) (string, error) {
	if err := f.record("diff"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Diff, nil
}

func (f *Fake) Commit(ctx context.Context, message string) error {
	if err := f.record("commit", message); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Diff = ""
	return nil
}

func (f *Fake) Merge(ctx context.Context, ref string) error {
	return f.record("merge", ref)
}

func (f *Fake) MergeAbort(ctx context.Context) error {
	return f.record("merge-abort")
}

func (f *Fake) Push(ctx context.Context, remote string, setUpstream bool, refs ...string) error {
	return f.record("push", append([]string{remote}, refs...)...)
}

func (f *Fake) UpdateRef(ctx context.Context, ref, target string) error {
	if err := f.record("update-ref", ref, target); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refs[ref] = target
	return nil
}

func (f *Fake) RemoteAdd(ctx context.Context, name, url string) error {
	if err := f.record("remote-add", name, url); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Remotes[name] = url
	return nil
}

func (f *Fake) Checkout(ctx context.Context, branch, startPoint string) error {
	return f.record("checkout", branch, startPoint)
}

func (f *Fake) Branches(ctx context.Context) ([]string, error) {
	if err := f.record("branches"); err != nil {
		return nil, err
	}
	return []string{"master"}, nil
}

func (f *Fake) ConfigGet(ctx context.Context, key string) (string, error) {
	if err := f.record("config-get", key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Config[key]
	if !ok {
		return "", &vcs.CommandError{Args: []string{"config", "--get", key}, ExitCode: 1, Kind: vcs.ErrNotFound}
	}
	return v, nil
}

func (f *Fake) ConfigSet(ctx context.Context, key, value string) error {
	if err := f.record("config-set", key, value); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Config[key] = value
	return nil
}
