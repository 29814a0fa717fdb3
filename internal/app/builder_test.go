package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stacklok/toolhive-registry-mirror/internal/app/storage"
	"github.com/stacklok/toolhive-registry-mirror/internal/artifacts"
	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/fetch"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/registryclient"
	clientmocks "github.com/stacklok/toolhive-registry-mirror/internal/registryclient/mocks"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	syncmocks "github.com/stacklok/toolhive-registry-mirror/internal/sync/mocks"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// createValidTestConfig creates a minimal valid config for testing
func createValidTestConfig() *config.Config {
	return &config.Config{
		Registry: "http://localhost:7001",
		Storage:  config.StorageTypeMemory,
		Registries: []config.RegistryConfig{
			{Name: "npmjs", Host: "https://registry.npmjs.org", Type: "cnpmjsorg"},
		},
	}
}

// stubDownloader writes a small tarball for every URL
type stubDownloader struct{}

func (stubDownloader) Download(_ context.Context, url, dir string) (*fetch.File, error) {
	f, err := os.CreateTemp(dir, "tarball-*.tgz")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, err := f.WriteString("tarball of " + url)
	if err != nil {
		return nil, err
	}
	return &fetch.File{Path: f.Name(), Size: int64(n), StatusCode: http.StatusOK}, nil
}

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultIdleTimeout, built.idleTimeout)
}

func TestBaseConfig_OptionError(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(
		WithConfig(createValidTestConfig()),
		WithAddress(":"),
	)
	require.Error(t, err)
	require.Nil(t, built)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid address", address: ":9999", want: ":9999"},
		{name: "valid address with host", address: "127.0.0.1:9999", want: "127.0.0.1:9999"},
		{name: "valid address with localhost", address: "localhost:9999", want: "localhost:9999"},
		{name: "invalid empty address", address: "", wantErr: true},
		{name: "invalid empty port", address: ":", wantErr: true},
		{name: "missing port separator", address: "9999", wantErr: true},
		{name: "port out of range", address: "localhost:999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &registryAppConfig{}
			err := WithAddress(tt.address)(cfg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.address)
		})
	}
}

func TestWithMetricsHandler(t *testing.T) {
	t.Parallel()

	handler := http.NotFoundHandler()
	tests := []struct {
		name    string
		path    string
		handler http.Handler
		wantErr bool
	}{
		{name: "valid path", path: "/metrics", handler: handler},
		{name: "relative path", path: "metrics", handler: handler, wantErr: true},
		{name: "nil handler ignores path", path: "", handler: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &registryAppConfig{}
			err := WithMetricsHandler(tt.path, tt.handler)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, cfg.metricsPath)
		})
	}
}

func TestBuildArtifactStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    func(dir string) *config.Config
		errMsg string
	}{
		{
			name: "file backend with explicit path",
			cfg: func(dir string) *config.Config {
				return &config.Config{Artifacts: config.ArtifactsConfig{Backend: config.ArtifactBackendFile, Path: dir}}
			},
		},
		{
			name: "file backend under data dir",
			cfg: func(dir string) *config.Config {
				return &config.Config{DataDir: dir}
			},
		},
		{
			name: "s3 without settings",
			cfg: func(string) *config.Config {
				return &config.Config{Artifacts: config.ArtifactsConfig{Backend: config.ArtifactBackendS3}}
			},
			errMsg: "s3 configuration is required",
		},
		{
			name: "unknown backend",
			cfg: func(string) *config.Config {
				return &config.Config{Artifacts: config.ArtifactsConfig{Backend: "gcs"}}
			},
			errMsg: "unknown artifact backend: gcs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := buildArtifactStore(context.Background(), tt.cfg(t.TempDir()))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestFetcherOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.FetchConfig
		want int
	}{
		{name: "defaults keep only the user agent", cfg: config.FetchConfig{}, want: 1},
		{name: "retries and delay", cfg: config.FetchConfig{MaxRetries: 2, BaseDelay: "1s"}, want: 3},
		{name: "invalid delay is ignored", cfg: config.FetchConfig{BaseDelay: "soon"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, fetcherOptions(tt.cfg), tt.want)
		})
	}
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name           string
		config         *registryAppConfig
		wantAddr       string
		wantReadTO     time.Duration
		wantWriteTO    time.Duration
		wantIdleTO     time.Duration
		expectDefaults bool
	}{
		{
			name: "with default middlewares",
			config: &registryAppConfig{
				address:        ":8080",
				requestTimeout: 10 * time.Second,
				readTimeout:    10 * time.Second,
				writeTimeout:   15 * time.Second,
				idleTimeout:    60 * time.Second,
			},
			wantAddr:       ":8080",
			wantReadTO:     10 * time.Second,
			wantWriteTO:    15 * time.Second,
			wantIdleTO:     60 * time.Second,
			expectDefaults: true,
		},
		{
			name: "with custom middlewares",
			config: &registryAppConfig{
				address: ":9090",
				middlewares: []func(http.Handler) http.Handler{
					func(next http.Handler) http.Handler { return next },
				},
				requestTimeout: 5 * time.Second,
				readTimeout:    5 * time.Second,
				writeTimeout:   10 * time.Second,
				idleTimeout:    30 * time.Second,
			},
			wantAddr:    ":9090",
			wantReadTO:  5 * time.Second,
			wantWriteTO: 10 * time.Second,
			wantIdleTO:  30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			tt.config.storageFactory = storage.NewMemoryFactory()
			tt.config.syncManager = syncmocks.NewMockManager(ctrl)
			records, err := tt.config.storageFactory.CreateRegistryStore(ctx)
			require.NoError(t, err)

			server, err := buildHTTPServer(ctx, tt.config, registries.NewManager(records))
			require.NoError(t, err)
			require.NotNil(t, server)
			assert.Equal(t, tt.wantAddr, server.Addr)
			assert.Equal(t, tt.wantReadTO, server.ReadTimeout)
			assert.Equal(t, tt.wantWriteTO, server.WriteTimeout)
			assert.Equal(t, tt.wantIdleTO, server.IdleTimeout)

			if tt.expectDefaults {
				assert.Len(t, tt.config.middlewares, 5, "default middlewares should be set")
			} else {
				assert.Len(t, tt.config.middlewares, 1, "custom middlewares should be preserved")
			}

			rec := httptest.NewRecorder()
			server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestNewRegistryApp_RequiresConfig(t *testing.T) {
	t.Parallel()

	app, err := NewRegistryApp(context.Background())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewRegistryApp_InvalidSeedRegistry(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Registries = []config.RegistryConfig{{Name: "broken"}}

	app, err := NewRegistryApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "failed to initialize registries")
}

func upstreamManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(`{
		"name": "koa",
		"description": "web framework",
		"dist-tags": {"latest": "1.0.0"},
		"maintainers": [{"name": "alice", "email": "alice@example.com"}],
		"versions": {
			"1.0.0": {
				"name": "koa",
				"version": "1.0.0",
				"dist": {"tarball": "https://registry.npmjs.org/koa/-/koa-1.0.0.tgz"}
			}
		},
		"time": {"1.0.0": "2024-04-01T00:00:00.000Z"}
	}`))
	require.NoError(t, err)
	return m
}

func TestNewRegistryApp_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)

	upstream := clientmocks.NewMockClient(ctrl)
	upstream.EXPECT().Registry().Return(config.DefaultSourceRegistry).AnyTimes()
	upstream.EXPECT().FetchFullManifest(gomock.Any(), "koa").Return(&registryclient.ManifestResult{
		URL:      config.DefaultSourceRegistry + "/koa",
		Status:   http.StatusOK,
		Manifest: upstreamManifest(t),
	}, nil)

	blobs, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	cfg := createValidTestConfig()
	cfg.Sync.TmpDir = t.TempDir()
	app, err := NewRegistryApp(ctx,
		WithConfig(cfg),
		WithAddress("127.0.0.1:0"),
		WithUpstreamClient(upstream),
		WithDownloader(stubDownloader{}),
		WithArtifactStore(blobs),
		WithMeterProvider(provider),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	handler := app.GetHTTPServer().Handler

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/-/package/koa/syncs", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	claimed, err := app.SyncManager().FindExecuteTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, app.SyncManager().ExecuteTask(ctx, claimed))

	finished, err := app.SyncManager().FindTask(ctx, claimed.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StateSuccess, finished.State)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/package/koa/syncs/"+claimed.TaskID+"/log", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Synced 1 versions")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/registry", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"npmjs"`)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["thv_mirror_tasks_created_total"], "sync metrics should be wired")
	assert.True(t, names["thv_mirror_registries_total"], "registry metrics should be wired")
	assert.True(t, names["thv_mirror_http_requests_total"], "http metrics should be wired")
}

func TestNewRegistryApp_InjectedSyncManager(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	app, err := NewRegistryApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithStorageFactory(storage.NewMemoryFactory()),
		WithSyncManager(manager),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	var got pkgsync.Manager = app.SyncManager()
	assert.Same(t, manager, got)
	assert.NotNil(t, app.components.SyncCoordinator)
	assert.NotNil(t, app.components.Registries)
}
