package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndLast(t *testing.T) {
	ctx := context.Background()
	h := openHistory(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	last, err := h.Last(ctx, "/notes")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, h.Record(ctx, Entry{
		RunID: "r1", Path: "/notes", ClientID: "gitcrate-box-abcde", State: "success",
		Attempts: 1, StartedAt: base, Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, h.Record(ctx, Entry{
		RunID: "r2", Path: "/notes", ClientID: "gitcrate-box-abcde", State: "quarantined",
		Attempts: 5, Error: "merge conflict", StartedAt: base.Add(time.Minute), Duration: 6 * time.Second,
	}))
	require.NoError(t, h.Record(ctx, Entry{
		RunID: "r3", Path: "/photos", ClientID: "gitcrate-box-fghij", State: "success",
		Attempts: 1, StartedAt: base.Add(2 * time.Minute),
	}))

	last, err = h.Last(ctx, "/notes")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r2", last.RunID)
	assert.Equal(t, "quarantined", last.State)
	assert.Equal(t, 5, last.Attempts)
	assert.Equal(t, "merge conflict", last.Error)
	assert.True(t, base.Add(time.Minute).Equal(last.StartedAt))
	assert.Equal(t, 6*time.Second, last.Duration)
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	h := openHistory(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, Entry{
			RunID: id, Path: "/p" + id, ClientID: "c", State: "success", Attempts: 1,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].RunID)
	assert.Equal(t, "b", entries[1].RunID)

	entries, err = h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecord_RequiresRunID(t *testing.T) {
	assert.Error(t, openHistory(t).Record(context.Background(), Entry{Path: "/x"}))
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "history.db")

	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(ctx, Entry{RunID: "r1", Path: "/x", ClientID: "c", State: "success", StartedAt: time.Now()}))
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()

	last, err := h.Last(ctx, "/x")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r1", last.RunID)
}
