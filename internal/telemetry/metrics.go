// Package telemetry provides OpenTelemetry instrumentation for the registry mirror.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RegistryMetricsMeterName is the name used for the registry manager meter
	RegistryMetricsMeterName = "github.com/stacklok/toolhive-registry-mirror/registry"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/toolhive-registry-mirror/sync"
)

// Version sync results recorded by SyncMetrics.RecordVersion
const (
	VersionResultPublished = "published"
	VersionResultSkipped   = "skipped"
	VersionResultFailed    = "failed"
	VersionResultRemoved   = "removed"
	VersionResultDrifted   = "drifted"
)

// RegistryMetrics holds the OpenTelemetry instruments for the registry manager
type RegistryMetrics struct {
	registriesTotal metric.Int64Gauge
}

// NewRegistryMetrics creates a new RegistryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRegistryMetrics(provider metric.MeterProvider) (*RegistryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RegistryMetricsMeterName)

	registriesTotal, err := meter.Int64Gauge(
		"thv_mirror_registries_total",
		metric.WithDescription("Number of registries known to the registry manager"),
		metric.WithUnit("{registry}"),
	)
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{
		registriesTotal: registriesTotal,
	}, nil
}

// RecordRegistriesTotal records the current number of registries
func (m *RegistryMetrics) RecordRegistriesTotal(ctx context.Context, count int64) {
	if m == nil || m.registriesTotal == nil {
		return
	}
	m.registriesTotal.Record(ctx, count)
}

// SyncMetrics holds the OpenTelemetry instruments for sync tasks
type SyncMetrics struct {
	taskDuration   metric.Float64Histogram
	versionsSynced metric.Int64Counter
	tasksCreated   metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	taskDuration, err := meter.Float64Histogram(
		"thv_mirror_task_duration_seconds",
		metric.WithDescription("Duration of sync task executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	versionsSynced, err := meter.Int64Counter(
		"thv_mirror_versions_synced_total",
		metric.WithDescription("Package versions handled by sync tasks, by result"),
		metric.WithUnit("{version}"),
	)
	if err != nil {
		return nil, err
	}

	tasksCreated, err := meter.Int64Counter(
		"thv_mirror_tasks_created_total",
		metric.WithDescription("Sync tasks admitted"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		taskDuration:   taskDuration,
		versionsSynced: versionsSynced,
		tasksCreated:   tasksCreated,
	}, nil
}

// RecordTaskDuration records how long a task execution took and the state it ended in
func (m *SyncMetrics) RecordTaskDuration(ctx context.Context, state string, duration time.Duration) {
	if m == nil || m.taskDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("state", state),
	}

	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordVersion counts one version handled with result
func (m *SyncMetrics) RecordVersion(ctx context.Context, result string) {
	if m == nil || m.versionsSynced == nil {
		return
	}
	m.versionsSynced.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordTaskCreated counts one admitted task
func (m *SyncMetrics) RecordTaskCreated(ctx context.Context) {
	if m == nil || m.tasksCreated == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1)
}
