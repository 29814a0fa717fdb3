package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-registry-mirror/internal/api"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/sync/mocks"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

func newTestServer(t *testing.T, opts ...api.ServerOption) (http.Handler, *mocks.MockManager) {
	t.Helper()
	ctrl := gomock.NewController(t)
	manager := mocks.NewMockManager(ctrl)
	opts = append([]api.ServerOption{api.WithMiddlewares(middleware.RealIP)}, opts...)
	return api.NewServer(manager, registries.NewManager(registries.NewMemoryStore()), opts...), manager
}

func serve(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.9:51234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rr := serve(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rr)["status"])

	rr = serve(t, server, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, server, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rr)["go_version"])
}

func TestReadinessEndpoint_NotReady(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, api.WithReadinessCheck(func(_ context.Context) error {
		return errors.New("database unreachable")
	}))
	rr := serve(t, server, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "database unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("thv_mirror_tasks_created_total 3\n"))
	})
	server, _ := newTestServer(t, api.WithMetricsHandler("/metrics", scrape))
	rr := serve(t, server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "thv_mirror_tasks_created_total")

	bare, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, serve(t, bare, http.MethodGet, "/metrics", nil).Code)
}

func TestCreateSyncTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		body     any
		fullname string
		opts     task.SyncPackageOptions
	}{
		{
			name:     "unscoped without body",
			path:     "/-/package/koa/syncs",
			fullname: "koa",
			opts:     task.SyncPackageOptions{AuthorIP: "10.0.0.9"},
		},
		{
			name:     "scoped segments with options",
			path:     "/-/package/@koa/router/syncs",
			body:     map[string]any{"tips": "from cli", "skipDependencies": true, "syncDownloadData": true},
			fullname: "@koa/router",
			opts: task.SyncPackageOptions{
				Tips: "from cli", SkipDependencies: true, SyncDownloadData: true, AuthorIP: "10.0.0.9",
			},
		},
		{
			name:     "scoped encoded",
			path:     "/-/package/@koa%2Frouter/syncs",
			fullname: "@koa/router",
			opts:     task.SyncPackageOptions{AuthorIP: "10.0.0.9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, manager := newTestServer(t)
			created := task.NewSyncPackageTask(tt.fullname, tt.opts)
			manager.EXPECT().CreateTask(gomock.Any(), tt.fullname, tt.opts).Return(created, nil)

			rr := serve(t, server, http.MethodPut, tt.path, tt.body)
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			assert.Equal(t, map[string]any{
				"ok":    true,
				"id":    created.TaskID,
				"type":  "sync_package",
				"state": "waiting",
			}, decode[map[string]any](t, rr))
		})
	}
}

func TestCreateSyncTask_Errors(t *testing.T) {
	t.Parallel()

	server, manager := newTestServer(t)

	rr := serve(t, server, http.MethodPut, "/-/package/.bin/syncs", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/-/package/koa/syncs", bytes.NewBufferString("{not json"))
	bad := httptest.NewRecorder()
	server.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	manager.EXPECT().CreateTask(gomock.Any(), "koa", gomock.Any()).Return(nil, errors.New("db down"))
	rr = serve(t, server, http.MethodPut, "/-/package/koa/syncs", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestShowSyncTask(t *testing.T) {
	t.Parallel()

	waiting := task.NewSyncPackageTask("koa", task.SyncPackageOptions{})
	failed := task.NewSyncPackageTask("@koa/router", task.SyncPackageOptions{})
	failed.State = task.StateFail
	failed.Error = "stop sync by block list: [\"@koa/router\"]"
	logURL := "http://localhost:7001/-/package/@koa/router/syncs/" + failed.TaskID + "/log"

	tests := []struct {
		name   string
		path   string
		setup  func(m *mocks.MockManager)
		status int
		want   map[string]any
	}{
		{
			name: "waiting task has no log url",
			path: "/-/package/koa/syncs/" + waiting.TaskID,
			setup: func(m *mocks.MockManager) {
				m.EXPECT().FindTask(gomock.Any(), waiting.TaskID).Return(waiting, nil)
			},
			status: http.StatusOK,
			want:   map[string]any{"ok": true, "id": waiting.TaskID, "type": "sync_package", "state": "waiting"},
		},
		{
			name: "finished task",
			path: "/-/package/@koa/router/syncs/" + failed.TaskID,
			setup: func(m *mocks.MockManager) {
				m.EXPECT().FindTask(gomock.Any(), failed.TaskID).Return(failed, nil)
				m.EXPECT().LogURL(failed).Return(logURL)
			},
			status: http.StatusOK,
			want: map[string]any{
				"ok": true, "id": failed.TaskID, "type": "sync_package", "state": "fail",
				"logUrl": logURL, "error": failed.Error,
			},
		},
		{
			name: "unknown task",
			path: "/-/package/koa/syncs/missing",
			setup: func(m *mocks.MockManager) {
				m.EXPECT().FindTask(gomock.Any(), "missing").Return(nil, task.ErrTaskNotFound)
			},
			status: http.StatusNotFound,
			want:   map[string]any{"error": `Package "koa" sync task "missing" not found`},
		},
		{
			name: "task of another package",
			path: "/-/package/debug/syncs/" + waiting.TaskID,
			setup: func(m *mocks.MockManager) {
				m.EXPECT().FindTask(gomock.Any(), waiting.TaskID).Return(waiting, nil)
			},
			status: http.StatusNotFound,
			want:   map[string]any{"error": fmt.Sprintf("Package %q sync task %q not found", "debug", waiting.TaskID)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, manager := newTestServer(t)
			tt.setup(manager)
			rr := serve(t, server, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.want, decode[map[string]any](t, rr))
		})
	}
}

func TestShowSyncTaskLog(t *testing.T) {
	t.Parallel()

	processing := task.NewSyncPackageTask("koa", task.SyncPackageOptions{})
	processing.State = task.StateProcessing

	t.Run("from offset", func(t *testing.T) {
		t.Parallel()
		server, manager := newTestServer(t)
		manager.EXPECT().FindTask(gomock.Any(), processing.TaskID).Return(processing, nil)
		manager.EXPECT().FindTaskLog(gomock.Any(), processing.TaskID, int64(12)).Return("[UP] 🚧 waiting\n", nil)

		rr := serve(t, server, http.MethodGet, "/-/package/koa/syncs/"+processing.TaskID+"/log?offset=12", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Equal(t, "[UP] 🚧 waiting\n", rr.Body.String())
	})

	t.Run("log not written yet", func(t *testing.T) {
		t.Parallel()
		server, manager := newTestServer(t)
		manager.EXPECT().FindTask(gomock.Any(), processing.TaskID).Return(processing, nil)
		manager.EXPECT().FindTaskLog(gomock.Any(), processing.TaskID, int64(0)).Return("", task.ErrLogNotFound)

		rr := serve(t, server, http.MethodGet, "/-/package/koa/syncs/"+processing.TaskID+"/log", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "not found")
	})

	t.Run("invalid offset", func(t *testing.T) {
		t.Parallel()
		server, _ := newTestServer(t)
		for _, offset := range []string{"abc", "-1"} {
			rr := serve(t, server, http.MethodGet, "/-/package/koa/syncs/"+processing.TaskID+"/log?offset="+offset, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		}
	})
}

func TestRegistryEndpoints(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rr := serve(t, server, http.MethodPost, "/-/registry", map[string]any{
		"name": "custom", "host": "https://r.example.com", "changeStream": "https://r.example.com/_changes",
		"userPrefix": "custom:", "type": "cnpmcore",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[registries.Registry](t, rr)
	assert.Equal(t, "custom", created.Name)

	rr = serve(t, server, http.MethodPost, "/-/registry", map[string]any{"name": "custom", "host": "https://x"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = serve(t, server, http.MethodPost, "/-/registry", map[string]any{"name": "nohost"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(t, server, http.MethodGet, "/-/registry?pageSize=10&pageIndex=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[registries.Page](t, rr)
	assert.Equal(t, int64(1), page.Count)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.RegistryID, page.Data[0].RegistryID)

	assert.Equal(t, http.StatusBadRequest, serve(t, server, http.MethodGet, "/-/registry?pageSize=x", nil).Code)

	rr = serve(t, server, http.MethodPatch, "/-/registry/"+created.RegistryID, map[string]any{
		"name": "custom2", "host": "https://r2.example.com", "type": "verdaccio",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, registries.TypeVerdaccio, decode[registries.Registry](t, rr).Type)

	rr = serve(t, server, http.MethodGet, "/-/registry/"+created.RegistryID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "custom2", decode[registries.Registry](t, rr).Name)

	rr = serve(t, server, http.MethodPatch, "/-/registry/not-exist", map[string]any{"name": "x", "host": "https://x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "registry not found")

	rr = serve(t, server, http.MethodDelete, "/-/registry/"+created.RegistryID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusNotFound, serve(t, server, http.MethodGet, "/-/registry/"+created.RegistryID, nil).Code)
}
