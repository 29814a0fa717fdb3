// Package main is the entry point for the ToolHive registry mirror.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/logging"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-registry-mirror/cmd/thv-registry-mirror/app"
	"github.com/stacklok/toolhive-registry-mirror/internal/config"
)

var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// logLevel reads THV_MIRROR_LOG_LEVEL, then LOG_LEVEL
func logLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	name := v.GetString("LOG_LEVEL")
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	level, ok := logLevels[strings.ToLower(name)]
	if !ok {
		slog.Warn("Unknown log level, using info", "value", name)
		return slog.LevelInfo
	}
	return level
}

// traceHandler adds trace_id and span_id of the active span, so task logs of a
// sync can be matched with its spans
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	// the shared handler writes JSON to stderr, stdout carries task logs and version output
	slog.SetDefault(slog.New(&traceHandler{Handler: logging.NewHandler(logging.WithLevel(logLevel()))}))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
