package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/openmined/gitcrate/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	paths []string
	err   error
	calls int
}

func (l *staticLister) Tracked(ctx context.Context) ([]string, error) {
	l.calls++
	return slices.Clone(l.paths), l.err
}

type recorder struct {
	synced []string
	delays []time.Duration
	fail   map[string]error
}

func (r *recorder) sync(ctx context.Context, path string) error {
	r.synced = append(r.synced, path)
	return r.fail[path]
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newScheduler(t *testing.T, lister Lister, rec *recorder, seed uint64) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Lister: lister,
		Sync:   rec.sync,
		Sleep:  rec.sleep,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
	})
	require.NoError(t, err)
	return s
}

func TestRunAll_VisitsEveryRepositoryOnce(t *testing.T) {
	lister := &staticLister{paths: []string{"/a", "/b", "/c", "/d"}}
	rec := &recorder{}

	summary, err := newScheduler(t, lister, rec, 1).RunAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, lister.paths, rec.synced)
	assert.Len(t, summary.Results, 4)
	assert.Equal(t, 4, summary.Succeeded())
	assert.Equal(t, 1, lister.calls)

	require.Len(t, rec.delays, 4)
	for _, d := range rec.delays {
		assert.GreaterOrEqual(t, d, DefaultMinDelay)
		assert.Less(t, d, DefaultMaxDelay)
	}
}

func TestRunAll_DeterministicWithSeed(t *testing.T) {
	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f"}

	first := &recorder{}
	_, err := newScheduler(t, &staticLister{paths: paths}, first, 42).RunAll(context.Background())
	require.NoError(t, err)

	second := &recorder{}
	_, err = newScheduler(t, &staticLister{paths: paths}, second, 42).RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.synced, second.synced)
	assert.Equal(t, first.delays, second.delays)
}

func TestRunAll_OrderVariesAcrossRuns(t *testing.T) {
	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}
	orders := make(map[string]struct{})

	for seed := range uint64(10) {
		rec := &recorder{}
		_, err := newScheduler(t, &staticLister{paths: paths}, rec, seed).RunAll(context.Background())
		require.NoError(t, err)
		orders[strings.Join(rec.synced, ",")] = struct{}{}
	}
	assert.Greater(t, len(orders), 1)
}

func TestRunAll_FailuresDoNotStopTheBatch(t *testing.T) {
	quarantined := errors.New("repository quarantined")
	lister := &staticLister{paths: []string{"/a", "/b", "/c"}}
	rec := &recorder{fail: map[string]error{"/b": quarantined}}

	summary, err := newScheduler(t, lister, rec, 7).RunAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, lister.paths, rec.synced)
	assert.Equal(t, 2, summary.Succeeded())
	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "/b", failed[0].Path)
	assert.ErrorIs(t, failed[0].Err, quarantined)
}

func TestRunAll_ListerError(t *testing.T) {
	boom := errors.New("registry locked")
	rec := &recorder{}

	_, err := newScheduler(t, &staticLister{err: boom}, rec, 1).RunAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.synced)
}

func TestRunAll_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lister := &staticLister{paths: []string{"/a", "/b", "/c"}}
	rec := &recorder{}

	s, err := New(Config{
		Lister: lister,
		Sync: func(ctx context.Context, path string) error {
			cancel()
			return rec.sync(ctx, path)
		},
		Sleep: utils.Sleep,
		Rand:  rand.New(rand.NewPCG(1, 1)),
		// keep the real sleep fast
		MinDelay: time.Millisecond,
		MaxDelay: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	summary, err := s.RunAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.synced, 1)
	assert.Len(t, summary.Results, 1)
}

func TestNew_Validation(t *testing.T) {
	rec := &recorder{}
	lister := &staticLister{}

	_, err := New(Config{Sync: rec.sync})
	assert.Error(t, err)
	_, err = New(Config{Lister: lister})
	assert.Error(t, err)
	_, err = New(Config{Lister: lister, Sync: rec.sync, MinDelay: 3 * time.Second, MaxDelay: time.Second})
	assert.Error(t, err)

	s, err := New(Config{Lister: lister, Sync: rec.sync, MinDelay: time.Second, MaxDelay: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.jitter())
}
