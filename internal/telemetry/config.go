// Package telemetry provides OpenTelemetry instrumentation for the registry mirror.
// Traces are exported over OTLP, metrics are exposed for Prometheus scraping.
package telemetry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stacklok/toolhive-registry-mirror/internal/versions"
)

const (
	// DefaultServiceName identifies mirror spans and series when no name is configured
	DefaultServiceName = "thv-registry-mirror"
	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"
	// DefaultSampling is used when tracing is enabled without a sampling ratio
	DefaultSampling = 0.05
	// DefaultMetricsPath is where the Prometheus handler is mounted
	DefaultMetricsPath = "/metrics"
)

// Config is the telemetry section of the mirror configuration.
// Nothing is exported unless Enabled is set.
type Config struct {
	Enabled        bool           `yaml:"enabled"`
	ServiceName    string         `yaml:"serviceName,omitempty"`
	ServiceVersion string         `yaml:"serviceVersion,omitempty"`
	Endpoint       string         `yaml:"endpoint,omitempty"` // host:port, spans go to /v1/traces
	Insecure       bool           `yaml:"insecure,omitempty"` // plain HTTP to the collector
	Tracing        *TracingConfig `yaml:"tracing,omitempty"`
	Metrics        *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Sampling is the root sampling ratio in [0, 1]; zero means DefaultSampling
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls the Prometheus scrape endpoint
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path,omitempty"`
	IncludeRuntime bool   `yaml:"includeRuntime,omitempty"` // Go runtime and process collectors
}

// GetServiceName returns the configured service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	return orDefault(c.ServiceName, DefaultServiceName)
}

// GetServiceVersion returns the configured service version or the binary version
func (c *Config) GetServiceVersion() string {
	return orDefault(c.ServiceVersion, versions.GetVersionInfo().Version)
}

// GetEndpoint returns the configured collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	return orDefault(c.Endpoint, DefaultEndpoint)
}

// GetSampling returns the sampling ratio. YAML cannot tell an explicit zero from
// an unset field, so zero falls back to DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetPath returns the mount path of the Prometheus handler
func (c *MetricsConfig) GetPath() string {
	if c == nil {
		return DefaultMetricsPath
	}
	return orDefault(c.Path, DefaultMetricsPath)
}

func (c *TracingConfig) active() bool { return c != nil && c.Enabled }

func (c *MetricsConfig) active() bool { return c != nil && c.Enabled }

// Validate checks the enabled sections. A nil or disabled configuration is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if c.Tracing.active() && (c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1) {
		errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", c.Tracing.Sampling))
	}
	if c.Metrics.active() && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics: path must start with '/', got %q", c.Metrics.Path))
	}
	return errors.Join(errs...)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
