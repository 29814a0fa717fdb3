package registries

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-registry-mirror/internal/db/pgtypes"
	"github.com/stacklok/toolhive-registry-mirror/internal/db/sqlc"
)

// uniqueViolation is the PostgreSQL error code of a unique constraint violation
const uniqueViolation = "23505"

// dbStore persists registries in PostgreSQL
type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a database backed Store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool}
}

func (d *dbStore) Get(ctx context.Context, registryID string) (*Registry, error) {
	id, err := pgtypes.UUID(registryID)
	if err != nil {
		return nil, ErrRegistryNotFound
	}
	row, err := sqlc.New(d.pool).GetRegistry(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistryNotFound
		}
		return nil, fmt.Errorf("failed to get registry %s: %w", registryID, err)
	}
	return registryFromRow(row), nil
}

func (d *dbStore) List(ctx context.Context, limit, offset int) ([]*Registry, int64, error) {
	var (
		rows  []sqlc.Registry
		total int64
	)
	// count and page from the same snapshot
	err := pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead},
		func(tx pgx.Tx) error {
			q := sqlc.New(tx)
			var err error
			if total, err = q.CountRegistries(ctx); err != nil {
				return err
			}
			rows, err = q.ListRegistries(ctx, sqlc.ListRegistriesParams{
				Limit:  int32(limit),  //nolint:gosec // page size is capped at MaxPageSize
				Offset: int32(offset), //nolint:gosec // bounded by the page index of a request
			})
			return err
		})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list registries: %w", err)
	}
	out := make([]*Registry, 0, len(rows))
	for _, row := range rows {
		out = append(out, registryFromRow(row))
	}
	return out, total, nil
}

func (d *dbStore) Count(ctx context.Context) (int64, error) {
	count, err := sqlc.New(d.pool).CountRegistries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count registries: %w", err)
	}
	return count, nil
}

func (d *dbStore) Create(ctx context.Context, r *Registry) error {
	id, err := pgtypes.UUID(r.RegistryID)
	if err != nil {
		return err
	}
	err = sqlc.New(d.pool).InsertRegistry(ctx, sqlc.InsertRegistryParams{
		RegistryID:   id,
		Name:         r.Name,
		Host:         r.Host,
		ChangeStream: r.ChangeStream,
		UserPrefix:   r.UserPrefix,
		Type:         string(r.Type),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRegistryExists
		}
		return fmt.Errorf("failed to create registry %s: %w", r.Name, err)
	}
	return nil
}

func (d *dbStore) UpsertByName(ctx context.Context, r *Registry) (*Registry, error) {
	id, err := pgtypes.UUID(r.RegistryID)
	if err != nil {
		return nil, err
	}
	row, err := sqlc.New(d.pool).UpsertRegistryByName(ctx, sqlc.UpsertRegistryByNameParams{
		RegistryID:   id,
		Name:         r.Name,
		Host:         r.Host,
		ChangeStream: r.ChangeStream,
		UserPrefix:   r.UserPrefix,
		Type:         string(r.Type),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert registry %s: %w", r.Name, err)
	}
	return registryFromRow(row), nil
}

func (d *dbStore) Update(ctx context.Context, r *Registry) error {
	id, err := pgtypes.UUID(r.RegistryID)
	if err != nil {
		return ErrRegistryNotFound
	}
	affected, err := sqlc.New(d.pool).UpdateRegistry(ctx, sqlc.UpdateRegistryParams{
		RegistryID:   id,
		Name:         r.Name,
		Host:         r.Host,
		ChangeStream: r.ChangeStream,
		UserPrefix:   r.UserPrefix,
		Type:         string(r.Type),
		UpdatedAt:    r.UpdatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRegistryExists
		}
		return fmt.Errorf("failed to update registry %s: %w", r.RegistryID, err)
	}
	if affected == 0 {
		return ErrRegistryNotFound
	}
	return nil
}

func (d *dbStore) Delete(ctx context.Context, registryID string) error {
	id, err := pgtypes.UUID(registryID)
	if err != nil {
		return ErrRegistryNotFound
	}
	affected, err := sqlc.New(d.pool).DeleteRegistry(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete registry %s: %w", registryID, err)
	}
	if affected == 0 {
		return ErrRegistryNotFound
	}
	return nil
}

func registryFromRow(row sqlc.Registry) *Registry {
	return &Registry{
		RegistryID:   pgtypes.UUIDString(row.RegistryID),
		Name:         row.Name,
		Host:         row.Host,
		ChangeStream: row.ChangeStream,
		UserPrefix:   row.UserPrefix,
		Type:         Type(row.Type),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
