package registries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

// CreateParams describes a new registry
type CreateParams struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	ChangeStream string `json:"changeStream"`
	UserPrefix   string `json:"userPrefix"`
	Type         Type   `json:"type"`
}

// UpdateParams replaces the editable fields of a registry
type UpdateParams struct {
	RegistryID string `json:"registryId"`
	CreateParams
}

// Manager implements the registry CRUD operations on top of a Store
type Manager struct {
	store   Store
	metrics *telemetry.RegistryMetrics
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records the registry count after every change
func WithMetrics(metrics *telemetry.RegistryMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock overrides the clock used for the record timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over store
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRegistry stores a new registry record
func (m *Manager) CreateRegistry(ctx context.Context, params CreateParams) (*Registry, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	r := &Registry{
		RegistryID:   uuid.NewString(),
		Name:         params.Name,
		Host:         strings.TrimRight(params.Host, "/"),
		ChangeStream: params.ChangeStream,
		UserPrefix:   params.UserPrefix,
		Type:         params.typeOrDefault(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Create(ctx, r); err != nil {
		return nil, err
	}
	slog.Info("Registry created", "registry_id", r.RegistryID, "name", r.Name, "host", r.Host)
	m.recordTotal(ctx)
	return r, nil
}

// FindRegistry returns the registry with the given id or ErrRegistryNotFound
func (m *Manager) FindRegistry(ctx context.Context, registryID string) (*Registry, error) {
	return m.store.Get(ctx, registryID)
}

// ListRegistries returns one page of registries in creation order
func (m *Manager) ListRegistries(ctx context.Context, opts ListOptions) (*Page, error) {
	opts = opts.normalize()
	data, count, err := m.store.List(ctx, opts.PageSize, opts.offset())
	if err != nil {
		return nil, err
	}
	return &Page{Count: count, Data: data}, nil
}

// UpdateRegistry overwrites the editable fields of an existing registry
func (m *Manager) UpdateRegistry(ctx context.Context, params UpdateParams) (*Registry, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	existing, err := m.store.Get(ctx, params.RegistryID)
	if err != nil {
		return nil, err
	}
	existing.Name = params.Name
	existing.Host = strings.TrimRight(params.Host, "/")
	existing.ChangeStream = params.ChangeStream
	existing.UserPrefix = params.UserPrefix
	existing.Type = params.typeOrDefault()
	existing.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, existing); err != nil {
		return nil, err
	}
	slog.Info("Registry updated", "registry_id", existing.RegistryID, "name", existing.Name)
	return existing, nil
}

// RemoveRegistry deletes a registry record
func (m *Manager) RemoveRegistry(ctx context.Context, registryID string) error {
	if err := m.store.Delete(ctx, registryID); err != nil {
		return err
	}
	slog.Info("Registry removed", "registry_id", registryID)
	m.recordTotal(ctx)
	return nil
}

// Initialize upserts the configured registries by name. Records that are not
// configured are left alone.
func (m *Manager) Initialize(ctx context.Context, configured []config.RegistryConfig) error {
	for _, rc := range configured {
		params := CreateParams{
			Name:         rc.Name,
			Host:         rc.Host,
			ChangeStream: rc.ChangeStream,
			UserPrefix:   rc.UserPrefix,
			Type:         Type(rc.Type),
		}
		if err := params.validate(); err != nil {
			return fmt.Errorf("registry %q: %w", rc.Name, err)
		}
		now := m.now().UTC()
		saved, err := m.store.UpsertByName(ctx, &Registry{
			RegistryID:   uuid.NewString(),
			Name:         params.Name,
			Host:         strings.TrimRight(params.Host, "/"),
			ChangeStream: params.ChangeStream,
			UserPrefix:   params.UserPrefix,
			Type:         params.typeOrDefault(),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize registry %q: %w", rc.Name, err)
		}
		slog.Debug("Registry initialized", "registry_id", saved.RegistryID, "name", saved.Name)
	}
	m.recordTotal(ctx)
	return nil
}

func (m *Manager) recordTotal(ctx context.Context) {
	if m.metrics == nil {
		return
	}
	count, err := m.store.Count(ctx)
	if err != nil {
		slog.Warn("Failed to count registries", "error", err)
		return
	}
	m.metrics.RecordRegistriesTotal(ctx, count)
}

func (p CreateParams) validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(p.Host) == "" {
		errs = append(errs, errors.New("host is required"))
	}
	switch p.Type {
	case "", TypeCnpmcore, TypeCnpmjsorg, TypeVerdaccio:
	default:
		errs = append(errs, fmt.Errorf("unknown type %q", p.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRegistry, errors.Join(errs...))
	}
	return nil
}

func (p CreateParams) typeOrDefault() Type {
	if p.Type == "" {
		return TypeCnpmcore
	}
	return p.Type
}
