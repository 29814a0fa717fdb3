package registries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-registry-mirror/database"
	"github.com/stacklok/toolhive-registry-mirror/internal/config"
)

func TestDBStore(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	m := newTestManager(t, NewDBStore(pool))

	first, err := m.CreateRegistry(ctx, cnpmcoreParams("custom1"))
	require.NoError(t, err)
	second, err := m.CreateRegistry(ctx, cnpmcoreParams("custom2"))
	require.NoError(t, err)

	_, err = m.CreateRegistry(ctx, cnpmcoreParams("custom1"))
	assert.ErrorIs(t, err, ErrRegistryExists)

	found, err := m.FindRegistry(ctx, first.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, found.Name)
	assert.Equal(t, first.ChangeStream, found.ChangeStream)
	assert.True(t, first.CreatedAt.Equal(found.CreatedAt))

	_, err = m.FindRegistry(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrRegistryNotFound)

	page, err := m.ListRegistries(ctx, ListOptions{PageIndex: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Count)
	require.Len(t, page.Data, 1)
	assert.Equal(t, second.RegistryID, page.Data[0].RegistryID)

	params := cnpmcoreParams("custom3")
	updated, err := m.UpdateRegistry(ctx, UpdateParams{RegistryID: second.RegistryID, CreateParams: params})
	require.NoError(t, err)
	assert.Equal(t, "custom3", updated.Name)

	params.Name = "custom1"
	_, err = m.UpdateRegistry(ctx, UpdateParams{RegistryID: second.RegistryID, CreateParams: params})
	assert.ErrorIs(t, err, ErrRegistryExists)

	_, err = m.UpdateRegistry(ctx, UpdateParams{RegistryID: "d2f7c7a4-5d55-4f5b-9d1e-1a0f0e0f0e0f", CreateParams: params})
	assert.ErrorIs(t, err, ErrRegistryNotFound)

	require.NoError(t, m.Initialize(ctx, []config.RegistryConfig{
		{Name: "custom1", Host: "https://mirror.example.com", UserPrefix: "mirror:"},
	}))
	found, err = m.FindRegistry(ctx, first.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com", found.Host)
	assert.Equal(t, "mirror:", found.UserPrefix)

	require.NoError(t, m.RemoveRegistry(ctx, first.RegistryID))
	assert.ErrorIs(t, m.RemoveRegistry(ctx, first.RegistryID), ErrRegistryNotFound)

	count, err := NewDBStore(pool).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
