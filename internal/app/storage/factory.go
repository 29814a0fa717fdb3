// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern so the task store, the package store and
// the registry store are always created against the same backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// Factory creates storage-dependent components as a family.
//
// It also manages the lifecycle of storage resources (e.g., database connections).
type Factory interface {
	// CreateTaskStore creates the store holding sync tasks and their logs
	CreateTaskStore(ctx context.Context) (task.Store, error)

	// CreatePackageStore creates the store holding packages, versions, tags and maintainers
	CreatePackageStore(ctx context.Context) (pkgstore.Store, error)

	// CreateRegistryStore creates the store holding registry records
	CreateRegistryStore(ctx context.Context) (registries.Store, error)

	// Ping reports whether the backend can serve requests
	Ping(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
