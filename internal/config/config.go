// Package config provides configuration loading and management for the registry mirror.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

// EnvPrefix is the prefix used for environment variable overrides
const EnvPrefix = "THV_MIRROR"

const (
	// StorageTypeMemory keeps tasks and packages in process memory
	StorageTypeMemory = "memory"

	// StorageTypeDatabase keeps tasks and packages in PostgreSQL
	StorageTypeDatabase = "database"
)

const (
	// ArtifactBackendFile stores tarballs on the local filesystem
	ArtifactBackendFile = "file"

	// ArtifactBackendS3 stores tarballs in an S3 compatible bucket
	ArtifactBackendS3 = "s3"
)

const (
	// DefaultSourceRegistry is the upstream used when none is configured
	DefaultSourceRegistry = "https://registry.npmjs.org"

	// DefaultUserPrefix namespaces users synced from upstream
	DefaultUserPrefix = "npm:"

	defaultSourceSyncTimeout = 10 * time.Minute
	defaultWorkers           = 4
	defaultPollInterval      = 5 * time.Second
	defaultDownloadDataStart = "2011-01-01"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Registry is the public URL of this registry, used to build task log URLs
	Registry string `yaml:"registry"`

	// Storage selects where tasks and packages are persisted (memory or database)
	Storage string `yaml:"storage,omitempty"`

	// DataDir is where local files (tarballs, temporary downloads) are kept
	DataDir string `yaml:"dataDir,omitempty"`

	Sync         SyncConfig         `yaml:"sync"`
	DownloadData DownloadDataConfig `yaml:"downloadData,omitempty"`
	Artifacts    ArtifactsConfig    `yaml:"artifacts,omitempty"`

	// Registries are upserted into the registry manager at startup
	Registries []RegistryConfig `yaml:"registries,omitempty"`

	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SyncConfig holds the settings that drive package synchronization
type SyncConfig struct {
	// SourceRegistry is the upstream registry manifests and tarballs are fetched from
	SourceRegistry string `yaml:"sourceRegistry,omitempty"`

	// SourceRegistryIsMirror enables delegating the sync to the upstream first
	SourceRegistryIsMirror bool `yaml:"sourceRegistryIsMirror,omitempty"`

	// SourceRegistrySyncTimeout bounds the delegated sync poll loop (e.g. "10m")
	SourceRegistrySyncTimeout string `yaml:"sourceRegistrySyncTimeout,omitempty"`

	// BlockList holds package names that must never be synced
	BlockList []string `yaml:"blockList,omitempty"`

	// UserPrefix namespaces maintainers synced from upstream
	UserPrefix string `yaml:"userPrefix,omitempty"`

	// Workers is the number of tasks executed concurrently
	Workers int `yaml:"workers,omitempty"`

	// PollInterval is how often the coordinator looks for waiting tasks
	PollInterval string `yaml:"pollInterval,omitempty"`

	// TmpDir is where tarballs are downloaded before publishing
	TmpDir string `yaml:"tmpDir,omitempty"`

	// Fetch tunes the tarball downloader
	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// FetchConfig tunes retries of the tarball downloader
type FetchConfig struct {
	MaxRetries int    `yaml:"maxRetries,omitempty"`
	BaseDelay  string `yaml:"baseDelay,omitempty"`
	UserAgent  string `yaml:"userAgent,omitempty"`
}

// DownloadDataConfig enables importing historical download counters
type DownloadDataConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	SourceRegistry string `yaml:"sourceRegistry,omitempty"`
	// MaxDate is the last day (YYYY-MM-DD) to import
	MaxDate string `yaml:"maxDate,omitempty"`
}

// ArtifactsConfig configures tarball storage
type ArtifactsConfig struct {
	Backend string    `yaml:"backend,omitempty"`
	Path    string    `yaml:"path,omitempty"`
	S3      *S3Config `yaml:"s3,omitempty"`
}

// S3Config describes an S3 compatible bucket
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`
	UseSSL          bool   `yaml:"useSSL,omitempty"`
}

// RegistryConfig seeds a registry record in the registry manager
type RegistryConfig struct {
	Name         string `yaml:"name"`
	Host         string `yaml:"host"`
	ChangeStream string `yaml:"changeStream,omitempty"`
	UserPrefix   string `yaml:"userPrefix,omitempty"`
	Type         string `yaml:"type,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	MaxOpenConns    int32  `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns    int32  `yaml:"maxIdleConns,omitempty"`
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from THV_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv("THV_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or THV_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML configuration document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns the storage type, defaulting to memory
func (c *Config) GetStorageType() string {
	if c.Storage == "" {
		return StorageTypeMemory
	}
	return c.Storage
}

// GetDataDir returns the data directory, defaulting to ./data
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return "./data"
	}
	return c.DataDir
}

// GetSourceRegistry returns the upstream registry without a trailing slash
func (s *SyncConfig) GetSourceRegistry() string {
	if s.SourceRegistry == "" {
		return DefaultSourceRegistry
	}
	return strings.TrimRight(s.SourceRegistry, "/")
}

// GetSourceRegistrySyncTimeout returns the delegated sync timeout
func (s *SyncConfig) GetSourceRegistrySyncTimeout() time.Duration {
	if s.SourceRegistrySyncTimeout == "" {
		return defaultSourceSyncTimeout
	}
	d, err := time.ParseDuration(s.SourceRegistrySyncTimeout)
	if err != nil {
		return defaultSourceSyncTimeout
	}
	return d
}

// GetUserPrefix returns the prefix applied to synced user names
func (s *SyncConfig) GetUserPrefix() string {
	if s.UserPrefix == "" {
		return DefaultUserPrefix
	}
	return s.UserPrefix
}

// GetWorkers returns the worker pool size
func (s *SyncConfig) GetWorkers() int {
	if s.Workers <= 0 {
		return defaultWorkers
	}
	return s.Workers
}

// GetPollInterval returns the coordinator polling interval
func (s *SyncConfig) GetPollInterval() time.Duration {
	if s.PollInterval == "" {
		return defaultPollInterval
	}
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

// IsBlocked reports whether fullname is on the block list
func (s *SyncConfig) IsBlocked(fullname string) bool {
	for _, name := range s.BlockList {
		if name == fullname {
			return true
		}
	}
	return false
}

// IsActive reports whether download counters should be imported
func (d *DownloadDataConfig) IsActive() bool {
	return d.Enabled && d.SourceRegistry != "" && d.MaxDate != ""
}

// StartDate returns the first day counters are imported from
func (*DownloadDataConfig) StartDate() string {
	return defaultDownloadDataStart
}

// GetBackend returns the artifact backend, defaulting to file
func (a *ArtifactsConfig) GetBackend() string {
	if a.Backend == "" {
		return ArtifactBackendFile
	}
	return a.Backend
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Registry == "" {
		return fmt.Errorf("registry is required")
	}
	if _, err := url.ParseRequestURI(c.Registry); err != nil {
		return fmt.Errorf("registry: invalid URL: %w", err)
	}

	switch c.GetStorageType() {
	case StorageTypeMemory:
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("database configuration is required for database storage type")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage)
	}

	if err := c.Sync.validate("sync"); err != nil {
		return err
	}

	if c.DownloadData.MaxDate != "" {
		if _, err := time.Parse(time.DateOnly, c.DownloadData.MaxDate); err != nil {
			return fmt.Errorf("downloadData: maxDate must be YYYY-MM-DD: %w", err)
		}
	}

	if err := c.Artifacts.validate("artifacts"); err != nil {
		return err
	}

	names := make(map[string]bool)
	for i, reg := range c.Registries {
		prefix := fmt.Sprintf("registries[%d]", i)
		if reg.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if names[reg.Name] {
			return fmt.Errorf("%s: duplicate registry name '%s'", prefix, reg.Name)
		}
		names[reg.Name] = true
		if reg.Host == "" {
			return fmt.Errorf("%s (%s): host is required", prefix, reg.Name)
		}
	}

	return c.Telemetry.Validate()
}

func (s *SyncConfig) validate(prefix string) error {
	if s.SourceRegistry != "" {
		if _, err := url.ParseRequestURI(s.SourceRegistry); err != nil {
			return fmt.Errorf("%s: invalid sourceRegistry: %w", prefix, err)
		}
	}
	if s.SourceRegistrySyncTimeout != "" {
		if _, err := time.ParseDuration(s.SourceRegistrySyncTimeout); err != nil {
			return fmt.Errorf("%s: invalid sourceRegistrySyncTimeout: %w", prefix, err)
		}
	}
	if s.PollInterval != "" {
		if _, err := time.ParseDuration(s.PollInterval); err != nil {
			return fmt.Errorf("%s: invalid pollInterval: %w", prefix, err)
		}
	}
	if s.Fetch.BaseDelay != "" {
		if _, err := time.ParseDuration(s.Fetch.BaseDelay); err != nil {
			return fmt.Errorf("%s: invalid fetch.baseDelay: %w", prefix, err)
		}
	}
	return nil
}

func (a *ArtifactsConfig) validate(prefix string) error {
	switch a.GetBackend() {
	case ArtifactBackendFile:
		return nil
	case ArtifactBackendS3:
		if a.S3 == nil {
			return fmt.Errorf("%s: s3 configuration is required for s3 backend", prefix)
		}
		if a.S3.Endpoint == "" || a.S3.Bucket == "" {
			return fmt.Errorf("%s: s3 endpoint and bucket are required", prefix)
		}
		return nil
	default:
		return fmt.Errorf("%s: unknown backend %q", prefix, a.Backend)
	}
}
