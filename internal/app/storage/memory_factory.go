package storage

import (
	"context"
	"log/slog"

	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// MemoryFactory creates in-process storage components.
// Nothing survives a restart.
type MemoryFactory struct{}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a new memory-backed storage factory
func NewMemoryFactory() *MemoryFactory {
	slog.Info("Creating memory-backed storage factory")
	return &MemoryFactory{}
}

// CreateTaskStore implements Factory
func (*MemoryFactory) CreateTaskStore(_ context.Context) (task.Store, error) {
	return task.NewStore(task.StorageMemory, nil)
}

// CreatePackageStore implements Factory
func (*MemoryFactory) CreatePackageStore(_ context.Context) (pkgstore.Store, error) {
	return pkgstore.NewStore(pkgstore.StorageMemory, nil)
}

// CreateRegistryStore implements Factory
func (*MemoryFactory) CreateRegistryStore(_ context.Context) (registries.Store, error) {
	return registries.NewStore(registries.StorageMemory, nil)
}

// Ping implements Factory. Memory storage is always ready.
func (*MemoryFactory) Ping(_ context.Context) error {
	return nil
}

// Cleanup implements Factory
func (*MemoryFactory) Cleanup() {}
