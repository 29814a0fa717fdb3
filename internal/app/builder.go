package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-registry-mirror/internal/api"
	apiregistries "github.com/stacklok/toolhive-registry-mirror/internal/api/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/app/storage"
	"github.com/stacklok/toolhive-registry-mirror/internal/artifacts"
	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/fetch"
	"github.com/stacklok/toolhive-registry-mirror/internal/httpclient"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/publish"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/registryclient"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	"github.com/stacklok/toolhive-registry-mirror/internal/sync/coordinator"
	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// defaultBreakerThreshold is the number of consecutive tarball failures that open a host's circuit
	defaultBreakerThreshold = 5

	// SyncTracerName is the tracer used by the sync orchestrator
	SyncTracerName = "github.com/stacklok/toolhive-registry-mirror/sync"
)

// RegistryAppOptions is a function that configures the registry app builder
type RegistryAppOptions func(*registryAppConfig) error

// registryAppConfig collects the options of NewRegistryApp.
// It supports dependency injection for testing while providing sensible defaults for production
type registryAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	syncManager    pkgsync.Manager
	upstream       registryclient.Client
	downloader     fetch.Downloader
	blobs          artifacts.Store

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsPath    string
	metricsHandler http.Handler

	// closers run when the app shuts down, in reverse order
	closers []func()
}

func baseConfig(opts ...RegistryAppOptions) (*registryAppConfig, error) {
	cfg := &registryAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewRegistryApp wires storage, the sync pipeline, the coordinator and the HTTP server
func NewRegistryApp(
	ctx context.Context,
	opts ...RegistryAppOptions,
) (*RegistryApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Create storage factory (single decision point for memory vs database)
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}
	cfg.closers = append(cfg.closers, cfg.storageFactory.Cleanup)

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.close()
		}
	}()

	registryManager, err := buildRegistryManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry manager: %w", err)
	}

	syncCoordinator, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, registryManager)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &RegistryApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			SyncManager:     cfg.syncManager,
			Registries:      registryManager,
			Storage:         cfg.storageFactory,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: func() {
			cancel()
			cfg.close()
		},
	}, nil
}

func (b *registryAppConfig) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithUpstreamClient replaces the client used to reach the source registry
func WithUpstreamClient(c registryclient.Client) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.upstream = c
		return nil
	}
}

// WithDownloader replaces the tarball downloader
func WithDownloader(d fetch.Downloader) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.downloader = d
		return nil
	}
}

// WithArtifactStore replaces the tarball store selected by artifacts.backend
func WithArtifactStore(s artifacts.Store) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.blobs = s
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and sync metrics
func WithMeterProvider(mp metric.MeterProvider) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for sync spans
func WithTracerProvider(tp trace.TracerProvider) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves a Prometheus scrape handler on path
func WithMetricsHandler(path string, h http.Handler) RegistryAppOptions {
	return func(cfg *registryAppConfig) error {
		if h != nil && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("metrics path must start with /: %q", path)
		}
		cfg.metricsPath = path
		cfg.metricsHandler = h
		return nil
	}
}

// buildRegistryManager creates the registry manager and seeds it from config
func buildRegistryManager(ctx context.Context, b *registryAppConfig) (*registries.Manager, error) {
	store, err := b.storageFactory.CreateRegistryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry store: %w", err)
	}

	var opts []registries.Option
	if b.meterProvider != nil {
		registryMetrics, err := telemetry.NewRegistryMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create registry metrics: %w", err)
		}
		opts = append(opts, registries.WithMetrics(registryMetrics))
	}

	manager := registries.NewManager(store, opts...)
	if err := manager.Initialize(ctx, b.config.Registries); err != nil {
		return nil, fmt.Errorf("failed to initialize registries: %w", err)
	}
	return manager, nil
}

// buildSyncComponents builds the sync manager and the coordinator that drives it
func buildSyncComponents(
	ctx context.Context,
	b *registryAppConfig,
) (coordinator.Coordinator, error) {
	slog.Info("Initializing sync components")

	if b.syncManager == nil {
		syncer, err := buildSyncer(ctx, b)
		if err != nil {
			return nil, err
		}
		b.syncManager = syncer
	}

	syncCoordinator := coordinator.New(b.syncManager, b.config)
	slog.Info("Sync components initialized successfully",
		"workers", b.config.Sync.GetWorkers(),
		"source_registry", b.config.Sync.GetSourceRegistry())

	return syncCoordinator, nil
}

// buildSyncer assembles the orchestrator from storage, upstream client, downloader and publisher
func buildSyncer(ctx context.Context, b *registryAppConfig) (*pkgsync.Syncer, error) {
	cfg := b.config

	tasks, err := b.storageFactory.CreateTaskStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create task store: %w", err)
	}
	packageStore, err := b.storageFactory.CreatePackageStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create package store: %w", err)
	}
	packages := pkgstore.NewManager(packageStore, pkgstore.WithUserPrefix(cfg.Sync.GetUserPrefix()))

	if b.upstream == nil {
		b.upstream, err = buildUpstreamClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	if b.downloader == nil {
		fetcher := fetch.NewFetcher(fetcherOptions(cfg.Sync.Fetch)...)
		b.closers = append(b.closers, fetcher.Close)
		b.downloader = fetch.NewCircuitBreakerDownloader(fetcher, defaultBreakerThreshold)
	}

	if b.blobs == nil {
		b.blobs, err = buildArtifactStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	var opts []pkgsync.Option
	if b.tracerProvider != nil {
		opts = append(opts, pkgsync.WithTracer(b.tracerProvider.Tracer(SyncTracerName)))
	}
	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if syncMetrics != nil {
			opts = append(opts, pkgsync.WithMetrics(syncMetrics))
			slog.Info("Sync metrics enabled")
		}
	}

	publisher := publish.New(packages, b.blobs, cfg.Registry)
	return pkgsync.New(cfg, tasks, b.upstream, packages, publisher, b.downloader, opts...), nil
}

func buildUpstreamClient(cfg *config.Config) (registryclient.Client, error) {
	var clientOpts []httpclient.Option
	if cfg.Sync.Fetch.MaxRetries > 0 {
		clientOpts = append(clientOpts, httpclient.WithMaxRetries(cfg.Sync.Fetch.MaxRetries))
	}
	if d, err := time.ParseDuration(cfg.Sync.Fetch.BaseDelay); err == nil {
		clientOpts = append(clientOpts, httpclient.WithBaseDelay(d))
	}

	client, err := registryclient.New(cfg.Sync.GetSourceRegistry(),
		httpclient.NewDefaultClient(httpclient.DefaultTimeout, clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	return client, nil
}

func fetcherOptions(cfg config.FetchConfig) []fetch.Option {
	opts := []fetch.Option{fetch.WithUserAgent(cfg.UserAgent)}
	if cfg.MaxRetries > 0 {
		opts = append(opts, fetch.WithMaxRetries(cfg.MaxRetries))
	}
	if d, err := time.ParseDuration(cfg.BaseDelay); err == nil {
		opts = append(opts, fetch.WithBaseDelay(d))
	}
	return opts
}

// buildArtifactStore selects the tarball backend from artifacts.backend
func buildArtifactStore(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	switch cfg.Artifacts.GetBackend() {
	case config.ArtifactBackendS3:
		s3 := cfg.Artifacts.S3
		if s3 == nil {
			return nil, fmt.Errorf("s3 configuration is required for s3 artifact backend")
		}
		store, err := artifacts.NewS3Store(ctx, artifacts.S3Options{
			Endpoint:        s3.Endpoint,
			Bucket:          s3.Bucket,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UseSSL:          s3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 artifact store: %w", err)
		}
		slog.Info("Artifact storage configured", "backend", "s3", "bucket", s3.Bucket)
		return store, nil
	case config.ArtifactBackendFile:
		dir := cfg.Artifacts.Path
		if dir == "" {
			dir = filepath.Join(cfg.GetDataDir(), "tarballs")
		}
		store, err := artifacts.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create file artifact store: %w", err)
		}
		slog.Info("Artifact storage configured", "backend", "file", "path", dir)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", cfg.Artifacts.GetBackend())
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *registryAppConfig,
	registryService apiregistries.Service,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics middleware goes first so every request is counted
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	if b.tracerProvider != nil {
		b.middlewares = append(b.middlewares, telemetry.TracingMiddleware(b.tracerProvider))
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithReadinessCheck(b.storageFactory.Ping),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsPath, b.metricsHandler))
	}
	router := api.NewServer(b.syncManager, registryService, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
