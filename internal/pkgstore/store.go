package pkgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

// Store is the repository of local package records.
// Find methods return nil without error when nothing matches.
type Store interface {
	FindPackage(ctx context.Context, scope, name string) (*Package, error)
	// CreatePackage returns ErrPackageExists when scope and name are taken
	CreatePackage(ctx context.Context, pkg *Package) error
	// RemovePackage deletes the package with its versions, tags, maintainers and counters
	RemovePackage(ctx context.Context, packageID string) error

	FindPackageVersion(ctx context.Context, packageID, version string) (*PackageVersion, error)
	ListPackageVersions(ctx context.Context, packageID string) ([]*PackageVersion, error)
	// CreatePackageVersion returns ErrVersionExists when the version is taken
	CreatePackageVersion(ctx context.Context, pv *PackageVersion) error
	UpdatePackageVersionManifest(ctx context.Context, packageVersionID string, m *manifest.Version) error
	RemovePackageVersion(ctx context.Context, packageVersionID string) error

	ListPackageTags(ctx context.Context, packageID string) ([]*Tag, error)
	SavePackageTag(ctx context.Context, tag *Tag) error
	RemovePackageTag(ctx context.Context, packageID, tag string) error

	ListPackageMaintainers(ctx context.Context, packageID string) ([]*User, error)
	AddPackageMaintainer(ctx context.Context, packageID, userID string) error
	RemovePackageMaintainer(ctx context.Context, packageID, userID string) error

	FindUserByName(ctx context.Context, name string) (*User, error)
	// SaveUser inserts or updates a user keyed by UserID
	SaveUser(ctx context.Context, user *User) error

	GetManifestCache(ctx context.Context, packageID string) (*manifest.Manifest, error)
	SaveManifestCache(ctx context.Context, packageID string, m *manifest.Manifest) error

	// SaveDownloadsByMonth merges the day counters of one YYYYMM month
	SaveDownloadsByMonth(ctx context.Context, packageID string, yearMonth int, counters []DayCount) error
	GetDownloadsByMonth(ctx context.Context, packageID string, yearMonth int) ([]DayCount, error)
}

// StorageType selects a Store implementation
type StorageType string

const (
	// StorageMemory keeps packages in memory
	StorageMemory StorageType = "memory"
	// StorageDatabase keeps packages in PostgreSQL
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
