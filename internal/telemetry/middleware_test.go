package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestRouter(mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mws...)
	r.Get("/-/package/{fullname}/syncs/{taskId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/-/registry", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestMetricsMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	mw, err := MetricsMiddleware(nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newTestRouter(mw).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/-/package/koa/syncs/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mw, err := MetricsMiddleware(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	router := newTestRouter(mw)

	for _, path := range []string{"/-/package/koa/syncs/abc", "/-/package/debug/syncs/def", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "thv_mirror_http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value(attribute.Key("route"))
				counts[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{
		"/-/package/{fullname}/syncs/{taskId}": 2,
		"unknown_route":                        1,
	}, counts)
}

func newTestTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestTracingMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newTestRouter(TracingMiddleware(nil)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/-/registry", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestTracingMiddleware_Spans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantSpan   string
		wantStatus codes.Code
	}{
		{name: "task lookup", path: "/-/package/koa/syncs/abc", wantSpan: "GET /-/package/{fullname}/syncs/{taskId}", wantStatus: codes.Unset},
		{name: "server error", path: "/-/registry", wantSpan: "GET /-/registry", wantStatus: codes.Error},
		{name: "unmatched path", path: "/-/unknown", wantSpan: "GET unknown_route", wantStatus: codes.Unset},
		{name: "health is not traced", path: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter, tp := newTestTracerProvider(t)
			newTestRouter(TracingMiddleware(tp)).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodGet, tt.path, nil))

			spans := exporter.GetSpans()
			if tt.wantSpan == "" {
				assert.Empty(t, spans)
				return
			}
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantSpan, spans[0].Name)
			assert.Equal(t, tt.wantStatus, spans[0].Status.Code)
		})
	}
}

func TestTracingMiddleware_ContinuesIncomingTrace(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)
	parentCtx, parent := tp.Tracer("client").Start(context.Background(), "client call")
	parent.End()

	req := httptest.NewRequest(http.MethodGet, "/-/package/koa/syncs/abc", nil)
	propagation.TraceContext{}.Inject(parentCtx, propagation.HeaderCarrier(req.Header))

	mw := TracingMiddleware(tp)
	// the global propagator may be unset in tests
	handler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagation.TraceContext{}.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	newTestRouter(handler, mw).ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	var server tracetest.SpanStub
	for _, s := range spans {
		if s.Name == "GET /-/package/{fullname}/syncs/{taskId}" {
			server = s
		}
	}
	require.NotEmpty(t, server.Name)
	assert.Equal(t, parent.SpanContext().TraceID(), server.SpanContext.TraceID())
}
