// Package registry keeps the set of repositories that batch syncs visit.
//
// The registry is a YAML document with a single key:
//
//	track:
//	  - /home/me/notes
//	  - /home/me/photos
//
// Every read and write happens under an exclusive lock file next to it, so
// concurrent gitcrate processes never lose each other's updates.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/gitcrate/internal/client/lock"
	"github.com/openmined/gitcrate/internal/utils"
	"gopkg.in/yaml.v3"
)

const DefaultLockTimeout = 60 * time.Second

type document struct {
	Track []string `yaml:"track"`
}

// Registry is a lock-protected set of tracked repository paths.
type Registry struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
}

type Option func(*Registry)

// WithLockPath overrides the default "<path>.lock"
func WithLockPath(path string) Option {
	return func(r *Registry) {
		r.lockPath = path
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

// New returns a registry stored at path. Nothing is touched on disk until
// the first operation.
func New(path string, opts ...Option) *Registry {
	r := &Registry{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Path() string {
	return r.path
}

// Track adds dir. Tracking a path twice keeps a single entry.
func (r *Registry) Track(ctx context.Context, dir string) error {
	path, err := utils.ResolvePath(dir)
	if err != nil {
		return err
	}
	return r.update(ctx, func(set mapset.Set[string]) bool {
		return set.Add(path)
	})
}

// Untrack removes dir. Untracking a path that is not tracked is a no-op.
func (r *Registry) Untrack(ctx context.Context, dir string) error {
	path, err := utils.ResolvePath(dir)
	if err != nil {
		return err
	}
	return r.update(ctx, func(set mapset.Set[string]) bool {
		if !set.Contains(path) {
			slog.Debug("untrack of untracked path", "repo", path)
			return false
		}
		set.Remove(path)
		return true
	})
}

// Cleanup drops every entry whose directory no longer exists and returns them
func (r *Registry) Cleanup(ctx context.Context) ([]string, error) {
	var removed []string
	err := r.update(ctx, func(set mapset.Set[string]) bool {
		for _, path := range set.ToSlice() {
			if !utils.DirExists(path) {
				set.Remove(path)
				removed = append(removed, path)
			}
		}
		return len(removed) > 0
	})
	sort.Strings(removed)
	return removed, err
}

// Tracked returns the tracked paths, sorted
func (r *Registry) Tracked(ctx context.Context) ([]string, error) {
	l, err := lock.Acquire(ctx, r.lockPath, r.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("lock registry: %w", err)
	}
	defer l.Release()

	set, err := r.load()
	if err != nil {
		return nil, err
	}
	return sorted(set), nil
}

// update applies fn to the tracked set under the lock and writes the result
// back when fn reports a change
func (r *Registry) update(ctx context.Context, fn func(mapset.Set[string]) bool) error {
	l, err := lock.Acquire(ctx, r.lockPath, r.lockTimeout)
	if err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer l.Release()

	set, err := r.load()
	if err != nil {
		return err
	}
	if !fn(set) {
		return nil
	}
	return r.save(set)
}

func (r *Registry) load() (mapset.Set[string], error) {
	set := mapset.NewThreadUnsafeSet[string]()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return set, nil
	} else if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	for _, path := range doc.Track {
		if path != "" {
			set.Add(path)
		}
	}
	return set, nil
}

func (r *Registry) save(set mapset.Set[string]) error {
	data, err := yaml.Marshal(document{Track: sorted(set)})
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := utils.EnsureParent(r.path); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

func sorted(set mapset.Set[string]) []string {
	paths := set.ToSlice()
	sort.Strings(paths)
	return paths
}
