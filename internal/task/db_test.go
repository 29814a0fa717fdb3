package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-registry-mirror/database"
)

func TestDBStore(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	store := NewDBStore(pool)

	tk := NewSyncPackageTask("@scope/pkg", SyncPackageOptions{Tips: "db", SkipDependencies: true})
	require.NoError(t, store.SaveTask(ctx, tk))

	found, err := store.FindTaskByTargetName(ctx, "@scope/pkg", TypeSyncPackage, StateWaiting)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tk.TaskID, found.TaskID)
	assert.Equal(t, tk.SyncPackageOptions(), found.SyncPackageOptions())

	_, err = store.ReadLog(ctx, tk.TaskID, 0)
	assert.ErrorIs(t, err, ErrLogNotFound)

	claimed, err := store.ClaimNextTask(ctx, TypeSyncPackage)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, StateProcessing, claimed.State)
	assert.Equal(t, 1, claimed.Attempts)

	require.NoError(t, store.AppendLog(ctx, claimed, "first\n"))
	require.NoError(t, store.AppendLog(ctx, claimed, "second\n"))
	claimed.Error = "boom"
	require.NoError(t, store.FinishTask(ctx, claimed, StateFail, "end\n"))

	log, err := store.ReadLog(ctx, tk.TaskID, 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nend\n", log)

	log, err = store.ReadLog(ctx, tk.TaskID, 8)
	require.NoError(t, err)
	assert.Equal(t, "cond\nend\n", log)

	stored, err := store.FindTask(ctx, tk.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StateFail, stored.State)
	assert.Equal(t, "boom", stored.Error)
	assert.Equal(t, int64(len("first\nsecond\nend\n")), stored.LogSize)

	assert.ErrorIs(t, store.AppendLog(ctx, claimed, "late\n"), ErrTaskFinished)

	_, err = store.FindTask(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
