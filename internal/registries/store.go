package registries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists registry records
type Store interface {
	// Get returns the registry with the given id or ErrRegistryNotFound
	Get(ctx context.Context, registryID string) (*Registry, error)
	// List returns a page ordered by creation, and the total count
	List(ctx context.Context, limit, offset int) ([]*Registry, int64, error)
	// Count returns the number of registries
	Count(ctx context.Context) (int64, error)
	// Create inserts a record, ErrRegistryExists when the name is taken
	Create(ctx context.Context, r *Registry) error
	// UpsertByName inserts a record or updates the one with the same name
	UpsertByName(ctx context.Context, r *Registry) (*Registry, error)
	// Update overwrites a record, ErrRegistryNotFound when it does not exist
	Update(ctx context.Context, r *Registry) error
	// Delete removes a record, ErrRegistryNotFound when it does not exist
	Delete(ctx context.Context, registryID string) error
}

// StorageType selects a Store implementation
type StorageType string

const (
	// StorageMemory keeps registries in memory
	StorageMemory StorageType = "memory"
	// StorageDatabase keeps registries in PostgreSQL
	StorageDatabase StorageType = "database"
)

// NewStore creates a Store for the storage type
func NewStore(storage StorageType, pool *pgxpool.Pool) (Store, error) {
	switch storage {
	case StorageMemory:
		return NewMemoryStore(), nil
	case StorageDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required for database storage")
		}
		return NewDBStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storage)
	}
}
