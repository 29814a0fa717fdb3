package registryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-registry-mirror/internal/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	client, err := New(server.URL+"/", httpclient.NewDefaultClient(5*time.Second))
	require.NoError(t, err)
	return client, server
}

func TestEscapeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "koa", EscapeName("koa"))
	assert.Equal(t, "@cnpm%2ffoo", EscapeName("@cnpm/foo"))
}

func TestHTTPClient_FetchFullManifest(t *testing.T) {
	t.Parallel()

	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/@cnpm%2ffoo", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{
			"name": "@cnpm/foo",
			"dist-tags": {"latest": "1.0.0"},
			"maintainers": [{"name": "alice", "email": "a@example.com"}],
			"versions": {"1.0.0": {"name": "@cnpm/foo", "version": "1.0.0", "dist": {"tarball": "https://r/foo-1.0.0.tgz"}}},
			"time": {"1.0.0": "2024-01-01T00:00:00.000Z"}
		}`))
	})

	result, err := client.FetchFullManifest(context.Background(), "@cnpm/foo")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, server.URL+"/@cnpm%2ffoo", result.URL)
	assert.Equal(t, "1.0.0", result.Manifest.DistTags["latest"])
	assert.Equal(t, "https://r/foo-1.0.0.tgz", result.Manifest.Versions["1.0.0"].Dist.Tarball)
	assert.Equal(t, server.URL, client.Registry())
}

func TestHTTPClient_FetchFullManifest_LegacyVersions(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"name": "koa",
			"dist-tags": {"latest": "0.0.2"},
			"versions": {
				"0.0.1": {"name": "koa", "version": "0.0.1", "dependencies": [], "dist": {"tarball": "https://r/koa-0.0.1.tgz"}},
				"0.0.2": {"name": "koa", "version": "0.0.2", "dependencies": {"debug": "*"}, "dist": {"tarball": "https://r/koa-0.0.2.tgz"}},
				"0.0.3": "removed"
			}
		}`))
	})

	result, err := client.FetchFullManifest(context.Background(), "koa")
	require.NoError(t, err)
	versions := result.Manifest.Versions
	require.Len(t, versions, 3)
	assert.Empty(t, versions["0.0.1"].DependencyNames())
	assert.Equal(t, "https://r/koa-0.0.1.tgz", versions["0.0.1"].Dist.Tarball)
	assert.Equal(t, []string{"debug"}, versions["0.0.2"].DependencyNames())
	assert.NoError(t, versions["0.0.2"].Err())
	assert.ErrorContains(t, versions["0.0.3"].Err(), "not an object")
}

func TestHTTPClient_FetchFullManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"Not found"}`, wantStatus: http.StatusNotFound, wantErr: "HTTP 404"},
		{name: "schema violation", status: http.StatusOK, body: `{"name":"koa","dist-tags":{"latest":1}}`, wantErr: "invalid manifest"},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: "invalid manifest json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.FetchFullManifest(context.Background(), "koa")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantStatus, httpclient.StatusCode(err))
		})
	}
}

func TestHTTPClient_FetchFullManifest_UnpublishedNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"name":"gone","time":{"unpublished":{"time":"2024-01-01T00:00:00.000Z"}}}`))
	})

	result, err := client.FetchFullManifest(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.NotNil(t, result.Manifest.Unpublished())
}

func TestHTTPClient_FetchDownloadRanges(t *testing.T) {
	t.Parallel()

	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/downloads/range/2011-01-01:2024-02-01/koa", r.URL.Path)
		_, _ = w.Write([]byte(`{"downloads":[{"day":"2024-01-01","downloads":3},{"day":"2024-01-02","downloads":4}]}`))
	})

	result, err := client.FetchDownloadRanges(context.Background(), server.URL, "koa", "2011-01-01", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, []DayDownloads{{Day: "2024-01-01", Downloads: 3}, {Day: "2024-01-02", Downloads: 4}}, result.Downloads)
}

func TestHTTPClient_SyncJob(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/@cnpm/foo/sync":
			assert.Equal(t, "true", r.URL.Query().Get("sync_upstream"))
			assert.Equal(t, "true", r.URL.Query().Get("nodeps"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true,"logId":"log-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/@cnpm/foo/sync/log/log-1":
			assert.Equal(t, "12", r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"syncDone":true,"log":"done\n"}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	job, err := client.CreateSyncJob(context.Background(), "@cnpm/foo")
	require.NoError(t, err)
	assert.True(t, job.OK)
	assert.Equal(t, "log-1", job.LogID)
	assert.Equal(t, http.StatusCreated, job.Status)
	assert.JSONEq(t, `{"ok":true,"logId":"log-1"}`, string(job.Raw))

	log, err := client.PollSyncJob(context.Background(), "@cnpm/foo", "log-1", 12)
	require.NoError(t, err)
	assert.True(t, log.SyncDone)
	assert.Equal(t, "done\n", log.Log)
}
