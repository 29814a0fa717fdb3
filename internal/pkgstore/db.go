package pkgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-registry-mirror/internal/db/pgtypes"
	"github.com/stacklok/toolhive-registry-mirror/internal/db/sqlc"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

const uniqueViolation = "23505"

// dbStore persists packages in PostgreSQL
type dbStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewDBStore creates a database backed Store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool, now: time.Now}
}

func (d *dbStore) queries() *sqlc.Queries {
	return sqlc.New(d.pool)
}

func (d *dbStore) FindPackage(ctx context.Context, scope, name string) (*Package, error) {
	row, err := d.queries().GetPackageByName(ctx, sqlc.GetPackageByNameParams{Scope: scope, Name: name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find package %s: %w", manifest.Fullname(scope, name), err)
	}
	return &Package{
		PackageID:   pgtypes.UUIDString(row.PackageID),
		Scope:       row.Scope,
		Name:        row.Name,
		Description: row.Description,
		IsPrivate:   row.IsPrivate,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (d *dbStore) CreatePackage(ctx context.Context, pkg *Package) error {
	id, err := pgtypes.UUID(pkg.PackageID)
	if err != nil {
		return err
	}
	now := d.now()
	pkg.CreatedAt, pkg.UpdatedAt = now, now
	inserted, err := d.queries().InsertPackage(ctx, sqlc.InsertPackageParams{
		PackageID:   id,
		Scope:       pkg.Scope,
		Name:        pkg.Name,
		Description: pkg.Description,
		IsPrivate:   pkg.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("failed to create package %s: %w", pkg.Fullname(), err)
	}
	if inserted == 0 {
		return ErrPackageExists
	}
	return nil
}

func (d *dbStore) RemovePackage(ctx context.Context, packageID string) error {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	if err := d.queries().DeletePackage(ctx, id); err != nil {
		return fmt.Errorf("failed to remove package %s: %w", packageID, err)
	}
	return nil
}

func (d *dbStore) FindPackageVersion(ctx context.Context, packageID, version string) (*PackageVersion, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	row, err := d.queries().GetPackageVersion(ctx, sqlc.GetPackageVersionParams{PackageID: id, Version: version})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find version %s: %w", version, err)
	}
	return versionFromRow(row)
}

func (d *dbStore) ListPackageVersions(ctx context.Context, packageID string) ([]*PackageVersion, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	rows, err := d.queries().ListPackageVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	versions := make([]*PackageVersion, 0, len(rows))
	for _, row := range rows {
		pv, err := versionFromRow(row)
		if err != nil {
			return nil, err
		}
		versions = append(versions, pv)
	}
	return versions, nil
}

func (d *dbStore) CreatePackageVersion(ctx context.Context, pv *PackageVersion) error {
	versionID, err := pgtypes.UUID(pv.PackageVersionID)
	if err != nil {
		return err
	}
	packageID, err := pgtypes.UUID(pv.PackageID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(pv.Manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest of %s: %w", pv.Version, err)
	}

	now := d.now()
	pv.CreatedAt, pv.UpdatedAt = now, now
	inserted, err := d.queries().InsertPackageVersion(ctx, sqlc.InsertPackageVersionParams{
		PackageVersionID: versionID,
		PackageID:        packageID,
		Version:          pv.Version,
		Description:      pv.Description,
		Manifest:         data,
		Readme:           pv.Readme,
		TarballKey:       pv.Dist.TarballKey,
		Shasum:           pv.Dist.Shasum,
		Integrity:        pv.Dist.Integrity,
		Size:             pv.Dist.Size,
		Purl:             pv.PURL,
		PublishTime:      pv.PublishTime,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrVersionExists
		}
		return fmt.Errorf("failed to create version %s: %w", pv.Version, err)
	}
	if inserted == 0 {
		return ErrVersionExists
	}
	return nil
}

func (d *dbStore) UpdatePackageVersionManifest(ctx context.Context, packageVersionID string, m *manifest.Version) error {
	id, err := pgtypes.UUID(packageVersionID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	updated, err := d.queries().UpdatePackageVersionManifest(ctx, sqlc.UpdatePackageVersionManifestParams{
		PackageVersionID: id,
		Manifest:         data,
		UpdatedAt:        d.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update manifest of %s: %w", packageVersionID, err)
	}
	if updated == 0 {
		return ErrVersionNotFound
	}
	return nil
}

func (d *dbStore) RemovePackageVersion(ctx context.Context, packageVersionID string) error {
	id, err := pgtypes.UUID(packageVersionID)
	if err != nil {
		return err
	}
	if err := d.queries().DeletePackageVersion(ctx, id); err != nil {
		return fmt.Errorf("failed to remove version %s: %w", packageVersionID, err)
	}
	return nil
}

func (d *dbStore) ListPackageTags(ctx context.Context, packageID string) ([]*Tag, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	rows, err := d.queries().ListPackageTags(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	tags := make([]*Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, &Tag{
			PackageID: packageID,
			Tag:       row.Tag,
			Version:   row.Version,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return tags, nil
}

func (d *dbStore) SavePackageTag(ctx context.Context, tag *Tag) error {
	id, err := pgtypes.UUID(tag.PackageID)
	if err != nil {
		return err
	}
	now := d.now()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now
	if err := d.queries().UpsertPackageTag(ctx, sqlc.UpsertPackageTagParams{
		PackageID: id,
		Tag:       tag.Tag,
		Version:   tag.Version,
		CreatedAt: tag.CreatedAt,
		UpdatedAt: tag.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("failed to save tag %s: %w", tag.Tag, err)
	}
	return nil
}

func (d *dbStore) RemovePackageTag(ctx context.Context, packageID, tag string) error {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	if err := d.queries().DeletePackageTag(ctx, sqlc.DeletePackageTagParams{PackageID: id, Tag: tag}); err != nil {
		return fmt.Errorf("failed to remove tag %s: %w", tag, err)
	}
	return nil
}

func (d *dbStore) ListPackageMaintainers(ctx context.Context, packageID string) ([]*User, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	rows, err := d.queries().ListPackageMaintainers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintainers: %w", err)
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, userFromRow(row))
	}
	return users, nil
}

func (d *dbStore) AddPackageMaintainer(ctx context.Context, packageID, userID string) error {
	pid, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	uid, err := pgtypes.UUID(userID)
	if err != nil {
		return err
	}
	if err := d.queries().InsertPackageMaintainer(ctx, sqlc.InsertPackageMaintainerParams{
		PackageID: pid,
		UserID:    uid,
		CreatedAt: d.now(),
	}); err != nil {
		return fmt.Errorf("failed to add maintainer: %w", err)
	}
	return nil
}

func (d *dbStore) RemovePackageMaintainer(ctx context.Context, packageID, userID string) error {
	pid, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	uid, err := pgtypes.UUID(userID)
	if err != nil {
		return err
	}
	if err := d.queries().DeletePackageMaintainer(ctx, sqlc.DeletePackageMaintainerParams{
		PackageID: pid,
		UserID:    uid,
	}); err != nil {
		return fmt.Errorf("failed to remove maintainer: %w", err)
	}
	return nil
}

func (d *dbStore) FindUserByName(ctx context.Context, name string) (*User, error) {
	row, err := d.queries().GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %s: %w", name, err)
	}
	return userFromRow(row), nil
}

func (d *dbStore) SaveUser(ctx context.Context, user *User) error {
	id, err := pgtypes.UUID(user.UserID)
	if err != nil {
		return err
	}
	now := d.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if err := d.queries().UpsertUser(ctx, sqlc.UpsertUserParams{
		UserID:    id,
		Name:      user.Name,
		Email:     user.Email,
		IsPrivate: user.IsPrivate,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("failed to save user %s: %w", user.Name, err)
	}
	return nil
}

func (d *dbStore) GetManifestCache(ctx context.Context, packageID string) (*manifest.Manifest, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	data, err := d.queries().GetManifestCache(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest cache: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return manifest.Parse(data)
}

func (d *dbStore) SaveManifestCache(ctx context.Context, packageID string, m *manifest.Manifest) error {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	updated, err := d.queries().UpdateManifestCache(ctx, sqlc.UpdateManifestCacheParams{
		PackageID:     id,
		ManifestCache: data,
		UpdatedAt:     d.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save manifest cache: %w", err)
	}
	if updated == 0 {
		return ErrPackageNotFound
	}
	return nil
}

func (d *dbStore) SaveDownloadsByMonth(ctx context.Context, packageID string, yearMonth int, counters []DayCount) error {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return err
	}
	month := make(map[string]int64, len(counters))
	for _, c := range counters {
		month[c.Day] = c.Downloads
	}
	data, err := json.Marshal(month)
	if err != nil {
		return err
	}
	if err := d.queries().UpsertDownloadMonth(ctx, sqlc.UpsertDownloadMonthParams{
		PackageID: id,
		YearMonth: int32(yearMonth), //nolint:gosec // YYYYMM fits in int32
		Counters:  data,
		UpdatedAt: d.now(),
	}); err != nil {
		return fmt.Errorf("failed to save downloads of %d: %w", yearMonth, err)
	}
	return nil
}

func (d *dbStore) GetDownloadsByMonth(ctx context.Context, packageID string, yearMonth int) ([]DayCount, error) {
	id, err := pgtypes.UUID(packageID)
	if err != nil {
		return nil, err
	}
	data, err := d.queries().GetDownloadMonth(ctx, sqlc.GetDownloadMonthParams{
		PackageID: id,
		YearMonth: int32(yearMonth), //nolint:gosec // YYYYMM fits in int32
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read downloads of %d: %w", yearMonth, err)
	}
	var month map[string]int64
	if err := json.Unmarshal(data, &month); err != nil {
		return nil, fmt.Errorf("failed to decode downloads of %d: %w", yearMonth, err)
	}
	return sortedDays(month), nil
}

func versionFromRow(row sqlc.PackageVersion) (*PackageVersion, error) {
	var m manifest.Version
	if err := json.Unmarshal(row.Manifest, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest of %s: %w", row.Version, err)
	}
	return &PackageVersion{
		PackageVersionID: pgtypes.UUIDString(row.PackageVersionID),
		PackageID:        pgtypes.UUIDString(row.PackageID),
		Version:          row.Version,
		Description:      row.Description,
		Manifest:         &m,
		Readme:           row.Readme,
		Dist: Dist{
			TarballKey: row.TarballKey,
			Shasum:     row.Shasum,
			Integrity:  row.Integrity,
			Size:       row.Size,
		},
		PURL:        row.Purl,
		PublishTime: row.PublishTime,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func userFromRow(row sqlc.User) *User {
	return &User{
		UserID:    pgtypes.UUIDString(row.UserID),
		Name:      row.Name,
		Email:     row.Email,
		IsPrivate: row.IsPrivate,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
