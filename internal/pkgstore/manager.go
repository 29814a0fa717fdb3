package pkgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Manager implements the package operations used by sync and publish on top of a Store.
// Mutations that change what clients see refresh the cached full manifest.
type Manager struct {
	store      Store
	userPrefix string
	now        func() time.Time
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithUserPrefix sets the namespace prefix of users synced from upstream
func WithUserPrefix(prefix string) ManagerOption {
	return func(m *Manager) {
		m.userPrefix = prefix
	}
}

// WithManagerClock overrides the clock used for the modified time
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over store
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		userPrefix: "npm:",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserPrefix is the namespace prefix of synced users
func (m *Manager) UserPrefix() string {
	return m.userPrefix
}

// FindPackage returns the package named fullname, nil when absent
func (m *Manager) FindPackage(ctx context.Context, fullname string) (*Package, error) {
	scope, name := manifest.SplitFullname(fullname)
	return m.store.FindPackage(ctx, scope, name)
}

// EnsurePackage returns the package, creating it when absent. created reports
// whether this call stored it.
func (m *Manager) EnsurePackage(ctx context.Context, scope, name, description string) (pkg *Package, created bool, err error) {
	pkg, err = m.store.FindPackage(ctx, scope, name)
	if err != nil || pkg != nil {
		return pkg, false, err
	}
	pkg = &Package{
		PackageID:   uuid.NewString(),
		Scope:       scope,
		Name:        name,
		Description: description,
	}
	err = m.store.CreatePackage(ctx, pkg)
	if errors.Is(err, ErrPackageExists) {
		// lost a race with another publisher
		pkg, err = m.store.FindPackage(ctx, scope, name)
		return pkg, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return pkg, true, nil
}

// FindPackageVersion returns a stored version, nil when absent
func (m *Manager) FindPackageVersion(ctx context.Context, pkg *Package, version string) (*PackageVersion, error) {
	return m.store.FindPackageVersion(ctx, pkg.PackageID, version)
}

// FindPackageVersionManifest returns the stored version document, nil when absent
func (m *Manager) FindPackageVersionManifest(ctx context.Context, pkg *Package, version string) (*manifest.Version, error) {
	pv, err := m.store.FindPackageVersion(ctx, pkg.PackageID, version)
	if err != nil || pv == nil {
		return nil, err
	}
	return pv.Manifest, nil
}

// CreatePackageVersion stores a new version; ErrVersionExists when it is taken
func (m *Manager) CreatePackageVersion(ctx context.Context, pv *PackageVersion) error {
	if pv.PackageVersionID == "" {
		pv.PackageVersionID = uuid.NewString()
	}
	return m.store.CreatePackageVersion(ctx, pv)
}

// ListFullManifest returns the cached full manifest of a package, building it when the
// package was never projected. It returns nil when the package does not exist.
func (m *Manager) ListFullManifest(ctx context.Context, fullname string) (*manifest.Manifest, error) {
	pkg, err := m.FindPackage(ctx, fullname)
	if err != nil || pkg == nil {
		return nil, err
	}
	cached, err := m.store.GetManifestCache(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	return m.refresh(ctx, pkg)
}

// RefreshManifestCache rebuilds the full manifest from versions, tags and maintainers
func (m *Manager) RefreshManifestCache(ctx context.Context, pkg *Package) error {
	_, err := m.refresh(ctx, pkg)
	return err
}

func (m *Manager) refresh(ctx context.Context, pkg *Package) (*manifest.Manifest, error) {
	versions, err := m.store.ListPackageVersions(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}
	tags, err := m.store.ListPackageTags(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}
	users, err := m.store.ListPackageMaintainers(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}

	doc := &manifest.Manifest{
		Name:        pkg.Fullname(),
		Description: pkg.Description,
		DistTags:    make(map[string]string, len(tags)),
		Versions:    make(map[string]*manifest.Version, len(versions)),
		Time: map[string]json.RawMessage{
			"created":  timeValue(pkg.CreatedAt),
			"modified": timeValue(m.now()),
		},
	}
	for _, pv := range versions {
		doc.Versions[pv.Version] = pv.Manifest
		doc.Time[pv.Version] = timeValue(pv.PublishTime)
	}
	for _, tag := range tags {
		doc.DistTags[tag.Tag] = tag.Version
	}
	doc.SetMaintainers(m.maintainerList(users))

	if err := m.store.SaveManifestCache(ctx, pkg.PackageID, doc); err != nil {
		return nil, fmt.Errorf("failed to refresh manifest of %s: %w", pkg.Fullname(), err)
	}
	slog.Debug("Refreshed package manifest", "package", pkg.Fullname(), "versions", len(versions))
	return doc, nil
}

// RefreshMaintainerCache rewrites only the maintainers of the cached manifest
func (m *Manager) RefreshMaintainerCache(ctx context.Context, pkg *Package) error {
	cached, err := m.store.GetManifestCache(ctx, pkg.PackageID)
	if err != nil {
		return err
	}
	if cached == nil {
		return m.RefreshManifestCache(ctx, pkg)
	}
	users, err := m.store.ListPackageMaintainers(ctx, pkg.PackageID)
	if err != nil {
		return err
	}
	cached.SetMaintainers(m.maintainerList(users))
	return m.store.SaveManifestCache(ctx, pkg.PackageID, cached)
}

func (m *Manager) maintainerList(users []*User) []manifest.Maintainer {
	list := make([]manifest.Maintainer, 0, len(users))
	for _, u := range users {
		list = append(list, manifest.Maintainer{Name: u.DisplayName(m.userPrefix), Email: u.Email})
	}
	return list
}

// UnpublishPackage removes the package and everything stored under it
func (m *Manager) UnpublishPackage(ctx context.Context, pkg *Package) error {
	return m.store.RemovePackage(ctx, pkg.PackageID)
}

// SaveVersionManifest applies drifted fields to a stored version. A nil value removes
// the field.
func (m *Manager) SaveVersionManifest(ctx context.Context, pv *PackageVersion, diff map[string]json.RawMessage) error {
	if pv.Manifest == nil {
		pv.Manifest = &manifest.Version{Version: pv.Version}
	}
	for key, value := range diff {
		pv.Manifest.SetField(key, value)
	}
	return m.store.UpdatePackageVersionManifest(ctx, pv.PackageVersionID, pv.Manifest)
}

// RemovePackageVersion deletes a version and the dist-tags pointing at it.
// The manifest cache is left for the caller to refresh.
func (m *Manager) RemovePackageVersion(ctx context.Context, pkg *Package, pv *PackageVersion) error {
	if err := m.store.RemovePackageVersion(ctx, pv.PackageVersionID); err != nil {
		return err
	}
	tags, err := m.store.ListPackageTags(ctx, pkg.PackageID)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if tag.Version != pv.Version {
			continue
		}
		if err := m.store.RemovePackageTag(ctx, pkg.PackageID, tag.Tag); err != nil {
			return err
		}
	}
	return nil
}

// SavePackageTag points tag at version and reports whether anything changed
func (m *Manager) SavePackageTag(ctx context.Context, pkg *Package, tag, version string) (bool, error) {
	existing, err := m.findTag(ctx, pkg, tag)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Version == version {
		return false, nil
	}
	saved := &Tag{PackageID: pkg.PackageID, Tag: tag, Version: version}
	if existing != nil {
		saved.CreatedAt = existing.CreatedAt
	}
	if err := m.store.SavePackageTag(ctx, saved); err != nil {
		return false, err
	}
	return true, m.RefreshManifestCache(ctx, pkg)
}

// RemovePackageTag deletes tag and reports whether it existed
func (m *Manager) RemovePackageTag(ctx context.Context, pkg *Package, tag string) (bool, error) {
	existing, err := m.findTag(ctx, pkg, tag)
	if err != nil || existing == nil {
		return false, err
	}
	if err := m.store.RemovePackageTag(ctx, pkg.PackageID, tag); err != nil {
		return false, err
	}
	return true, m.RefreshManifestCache(ctx, pkg)
}

func (m *Manager) findTag(ctx context.Context, pkg *Package, tag string) (*Tag, error) {
	tags, err := m.store.ListPackageTags(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if t.Tag == tag {
			return t, nil
		}
	}
	return nil, nil
}

// SavePackageMaintainers adds users missing from the maintainer list and reports
// whether any was added
func (m *Manager) SavePackageMaintainers(ctx context.Context, pkg *Package, users []*User) (bool, error) {
	existing, err := m.store.ListPackageMaintainers(ctx, pkg.PackageID)
	if err != nil {
		return false, err
	}
	known := make(map[string]bool, len(existing))
	for _, u := range existing {
		known[u.UserID] = true
	}
	changed := false
	for _, u := range users {
		if known[u.UserID] {
			continue
		}
		if err := m.store.AddPackageMaintainer(ctx, pkg.PackageID, u.UserID); err != nil {
			return false, err
		}
		known[u.UserID] = true
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, m.RefreshMaintainerCache(ctx, pkg)
}

// RemovePackageMaintainer drops user from the maintainer list
func (m *Manager) RemovePackageMaintainer(ctx context.Context, pkg *Package, user *User) error {
	if err := m.store.RemovePackageMaintainer(ctx, pkg.PackageID, user.UserID); err != nil {
		return err
	}
	return m.RefreshMaintainerCache(ctx, pkg)
}

// FindUserByName returns the user with the exact stored name, nil when absent
func (m *Manager) FindUserByName(ctx context.Context, name string) (*User, error) {
	return m.store.FindUserByName(ctx, name)
}

// SavePublicUser upserts a user synced from upstream under the namespace prefix and
// reports whether it was created or changed
func (m *Manager) SavePublicUser(ctx context.Context, name, email string) (*User, bool, error) {
	stored := m.userPrefix + name
	user, err := m.store.FindUserByName(ctx, stored)
	if err != nil {
		return nil, false, err
	}
	if user != nil && user.Email == email {
		return user, false, nil
	}
	if user == nil {
		user = &User{UserID: uuid.NewString(), Name: stored}
	}
	user.Email = email
	if err := m.store.SaveUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// SaveDownloadsByMonth stores the day counters of one YYYYMM month
func (m *Manager) SaveDownloadsByMonth(ctx context.Context, pkg *Package, yearMonth int, counters []DayCount) error {
	sort.Slice(counters, func(i, j int) bool { return counters[i].Day < counters[j].Day })
	return m.store.SaveDownloadsByMonth(ctx, pkg.PackageID, yearMonth, counters)
}

// DownloadsByMonth returns the stored day counters of one YYYYMM month
func (m *Manager) DownloadsByMonth(ctx context.Context, pkg *Package, yearMonth int) ([]DayCount, error) {
	return m.store.GetDownloadsByMonth(ctx, pkg.PackageID, yearMonth)
}

func timeValue(t time.Time) json.RawMessage {
	data, _ := json.Marshal(t.UTC().Format(timeLayout))
	return data
}
