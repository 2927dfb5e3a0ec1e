package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbh, err := Open(filepath.Join(t.TempDir(), "ralph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	return NewStore(dbh)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.CreateRun(ctx, "run-1", "add-auth"))
	require.NoError(t, store.RecordProgress(ctx, "run-1", 0, 2))
	require.NoError(t, store.RecordEvent(ctx, "run-1", "agent_output", "did a thing"))
	require.NoError(t, store.RecordProgress(ctx, "run-1", 2, 2))
	require.NoError(t, store.FinishRun(ctx, "run-1", "complete"))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "add-auth", runs[0].Change)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, 2, runs[0].StoriesDone)
	assert.Equal(t, 2, runs[0].StoriesTotal)
	require.NotNil(t, runs[0].EndedAt)
}

func TestListRunsOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.CreateRun(ctx, "run-a", "one"))
	require.NoError(t, store.CreateRun(ctx, "run-b", "two"))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Reverse creation order; run-b tie-breaks ahead on equal timestamps.
	assert.Equal(t, "run-b", runs[0].ID)
}

func TestEventSeqMonotonic(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.CreateRun(ctx, "run-1", "c"))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordEvent(ctx, "run-1", "agent_output", "x"))
	}

	rows, err := store.db.QueryContext(ctx, `SELECT seq FROM events WHERE run_id='run-1' ORDER BY seq`)
	require.NoError(t, err)
	defer rows.Close()
	want := 1
	for rows.Next() {
		var seq int
		require.NoError(t, rows.Scan(&seq))
		assert.Equal(t, want, seq)
		want++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 7, want) // run_started + 5 outputs, next free seq
}
