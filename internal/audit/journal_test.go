package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietops/appsweep/internal/storage"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestJournalRunLifecycle(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	runID, err := j.BeginRun(ctx, true, "cfg-fp", "exc-fp")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, j.RecordAction(ctx, runID, "prod", "alpha", "https://ws/apps/alpha", "STOP", 5, false, nil))
	require.NoError(t, j.RecordAction(ctx, runID, "prod", "beta", "https://ws/apps/beta", "DELETE", 10, true, nil))
	require.NoError(t, j.RecordAction(ctx, runID, "prod", "gamma", "https://ws/apps/gamma", "STOP", 8, false, errors.New("boom")))

	require.NoError(t, j.FinishRun(ctx, runID, 2, 1))

	actions, err := j.Actions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	assert.Equal(t, "STOP", actions[0].Decision)
	assert.False(t, actions[0].Applied)
	assert.Empty(t, actions[0].Error)

	assert.True(t, actions[1].Applied)
	assert.Equal(t, 10, actions[1].AgeDays)

	assert.Equal(t, "boom", actions[2].Error)
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	ctx := context.Background()

	runID, err := j.BeginRun(ctx, false, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, runID, "nil journal still issues run ids for logging")

	assert.NoError(t, j.RecordAction(ctx, runID, "w", "a", "u", "STOP", 1, true, nil))
	assert.NoError(t, j.FinishRun(ctx, runID, 1, 0))

	actions, err := j.Actions(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, actions)
}
