package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/db"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// DatabaseFactory creates database-backed storage components.
// All components created by this factory share one PostgreSQL connection pool.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
// The schema is expected to be migrated already.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	return &DatabaseFactory{
		config: cfg,
		pool:   pool,
	}, nil
}

// CreateTaskStore implements Factory
func (d *DatabaseFactory) CreateTaskStore(_ context.Context) (task.Store, error) {
	slog.Debug("Creating database-backed task store")
	return task.NewStore(task.StorageDatabase, d.pool)
}

// CreatePackageStore implements Factory
func (d *DatabaseFactory) CreatePackageStore(_ context.Context) (pkgstore.Store, error) {
	slog.Debug("Creating database-backed package store")
	return pkgstore.NewStore(pkgstore.StorageDatabase, d.pool)
}

// CreateRegistryStore implements Factory
func (d *DatabaseFactory) CreateRegistryStore(_ context.Context) (registries.Store, error) {
	slog.Debug("Creating database-backed registry store")
	return registries.NewStore(registries.StorageDatabase, d.pool)
}

// Ping implements Factory
func (d *DatabaseFactory) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
