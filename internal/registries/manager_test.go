package registries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

// tickingClock moves forward one second on every read
type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(t *testing.T, store Store, opts ...Option) *Manager {
	t.Helper()
	clock := &tickingClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	return NewManager(store, append([]Option{WithClock(clock.Now)}, opts...)...)
}

func cnpmcoreParams(name string) CreateParams {
	return CreateParams{
		Name:         name,
		Host:         "https://registry.example.com/",
		ChangeStream: "https://replicate.example.com/_changes",
		UserPrefix:   name + ":",
		Type:         TypeCnpmcore,
	}
}

func TestManager_CreateRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	created, err := m.CreateRegistry(ctx, cnpmcoreParams("custom"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.RegistryID)
	assert.Equal(t, "https://registry.example.com", created.Host)
	assert.Equal(t, TypeCnpmcore, created.Type)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	found, err := m.FindRegistry(ctx, created.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = m.CreateRegistry(ctx, cnpmcoreParams("custom"))
	assert.ErrorIs(t, err, ErrRegistryExists)
}

func TestManager_CreateRegistry_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params CreateParams
		want   string
	}{
		{name: "missing name", params: CreateParams{Host: "https://r.example.com"}, want: "name is required"},
		{name: "missing host", params: CreateParams{Name: "r"}, want: "host is required"},
		{name: "unknown type", params: CreateParams{Name: "r", Host: "https://r.example.com", Type: "nexus"}, want: `unknown type "nexus"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newTestManager(t, NewMemoryStore())
			_, err := m.CreateRegistry(context.Background(), tt.params)
			require.ErrorIs(t, err, ErrInvalidRegistry)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestManager_CreateRegistry_DefaultType(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore())
	created, err := m.CreateRegistry(context.Background(), CreateParams{Name: "r", Host: "https://r.example.com"})
	require.NoError(t, err)
	assert.Equal(t, TypeCnpmcore, created.Type)
}

func TestManager_ListRegistries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	first, err := m.CreateRegistry(ctx, cnpmcoreParams("custom1"))
	require.NoError(t, err)
	second, err := m.CreateRegistry(ctx, cnpmcoreParams("custom2"))
	require.NoError(t, err)

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{name: "defaults", opts: ListOptions{}, want: []string{first.RegistryID, second.RegistryID}},
		{name: "first page", opts: ListOptions{PageIndex: 0, PageSize: 1}, want: []string{first.RegistryID}},
		{name: "second page", opts: ListOptions{PageIndex: 1, PageSize: 1}, want: []string{second.RegistryID}},
		{name: "past the end", opts: ListOptions{PageIndex: 5, PageSize: 1}, want: []string{}},
		{name: "negative index", opts: ListOptions{PageIndex: -1, PageSize: 1}, want: []string{first.RegistryID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := m.ListRegistries(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, int64(2), page.Count)
			ids := []string{}
			for _, r := range page.Data {
				ids = append(ids, r.RegistryID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestManager_ListRegistries_PageSizeCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())
	for i := range MaxPageSize + 5 {
		_, err := m.CreateRegistry(ctx, cnpmcoreParams(fmt.Sprintf("r%03d", i)))
		require.NoError(t, err)
	}

	page, err := m.ListRegistries(ctx, ListOptions{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(MaxPageSize+5), page.Count)
	assert.Len(t, page.Data, MaxPageSize)

	page, err = m.ListRegistries(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, page.Data, DefaultPageSize)
}

func TestManager_UpdateRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())
	created, err := m.CreateRegistry(ctx, cnpmcoreParams("custom"))
	require.NoError(t, err)

	params := cnpmcoreParams("custom3")
	params.Type = TypeVerdaccio
	updated, err := m.UpdateRegistry(ctx, UpdateParams{RegistryID: created.RegistryID, CreateParams: params})
	require.NoError(t, err)
	assert.Equal(t, "custom3", updated.Name)
	assert.Equal(t, TypeVerdaccio, updated.Type)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	found, err := m.FindRegistry(ctx, created.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, "custom3", found.Name)

	_, err = m.UpdateRegistry(ctx, UpdateParams{RegistryID: "not-exist", CreateParams: params})
	require.ErrorIs(t, err, ErrRegistryNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestManager_RemoveRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())
	created, err := m.CreateRegistry(ctx, cnpmcoreParams("custom"))
	require.NoError(t, err)

	require.NoError(t, m.RemoveRegistry(ctx, created.RegistryID))
	page, err := m.ListRegistries(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Count)

	assert.ErrorIs(t, m.RemoveRegistry(ctx, created.RegistryID), ErrRegistryNotFound)
}

func TestManager_Initialize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())
	manual, err := m.CreateRegistry(ctx, cnpmcoreParams("manual"))
	require.NoError(t, err)

	configured := []config.RegistryConfig{
		{Name: "npm", Host: "https://registry.npmjs.org", ChangeStream: "https://replicate.npmjs.com/_changes", UserPrefix: "npm:"},
		{Name: "verdaccio", Host: "http://verdaccio:4873", Type: "verdaccio"},
	}
	require.NoError(t, m.Initialize(ctx, configured))

	page, err := m.ListRegistries(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Count)
	npm := page.Data[1]
	assert.Equal(t, "npm", npm.Name)
	assert.Equal(t, TypeCnpmcore, npm.Type)

	// running again updates in place
	configured[0].UserPrefix = "npmjs:"
	require.NoError(t, m.Initialize(ctx, configured))

	page, err = m.ListRegistries(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Count)
	assert.Equal(t, manual.RegistryID, page.Data[0].RegistryID)
	assert.Equal(t, npm.RegistryID, page.Data[1].RegistryID)
	assert.Equal(t, "npmjs:", page.Data[1].UserPrefix)
}

func TestManager_Initialize_Invalid(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore())
	err := m.Initialize(context.Background(), []config.RegistryConfig{{Name: "broken"}})
	require.ErrorIs(t, err, ErrInvalidRegistry)
	assert.Contains(t, err.Error(), `registry "broken"`)
}

func TestManager_RecordsRegistriesTotal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := telemetry.NewRegistryMetrics(provider)
	require.NoError(t, err)

	m := newTestManager(t, NewMemoryStore(), WithMetrics(metrics))
	_, err = m.CreateRegistry(ctx, cnpmcoreParams("a"))
	require.NoError(t, err)
	b, err := m.CreateRegistry(ctx, cnpmcoreParams("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), registriesTotal(t, reader))

	require.NoError(t, m.RemoveRegistry(ctx, b.RegistryID))
	assert.Equal(t, int64(1), registriesTotal(t, reader))
}

func registriesTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "thv_mirror_registries_total" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok)
			require.Len(t, gauge.DataPoints, 1)
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatal("registries total not recorded")
	return 0
}
