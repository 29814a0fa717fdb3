package pkgstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

type memoryPackage struct {
	pkg         *Package
	versions    map[string]*PackageVersion
	tags        map[string]*Tag
	maintainers map[string]bool
	cache       []byte
	downloads   map[int]map[string]int64
}

// memoryStore keeps packages in maps guarded by a RWMutex.
// Values are copied in and out so callers never share records.
type memoryStore struct {
	mu       sync.RWMutex
	packages map[string]*memoryPackage
	users    map[string]*User
	now      func() time.Time
}

// NewMemoryStore creates a Store that keeps everything in process memory
func NewMemoryStore() Store {
	return &memoryStore{
		packages: make(map[string]*memoryPackage),
		users:    make(map[string]*User),
		now:      time.Now,
	}
}

func (s *memoryStore) FindPackage(_ context.Context, scope, name string) (*Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, mp := range s.packages {
		if mp.pkg.Scope == scope && mp.pkg.Name == name {
			p := *mp.pkg
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CreatePackage(_ context.Context, pkg *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mp := range s.packages {
		if mp.pkg.Scope == pkg.Scope && mp.pkg.Name == pkg.Name {
			return ErrPackageExists
		}
	}
	now := s.now()
	pkg.CreatedAt, pkg.UpdatedAt = now, now
	p := *pkg
	s.packages[pkg.PackageID] = &memoryPackage{
		pkg:         &p,
		versions:    make(map[string]*PackageVersion),
		tags:        make(map[string]*Tag),
		maintainers: make(map[string]bool),
		downloads:   make(map[int]map[string]int64),
	}
	return nil
}

func (s *memoryStore) RemovePackage(_ context.Context, packageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.packages, packageID)
	return nil
}

func (s *memoryStore) FindPackageVersion(_ context.Context, packageID, version string) (*PackageVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return nil, nil
	}
	pv, ok := mp.versions[version]
	if !ok {
		return nil, nil
	}
	return copyVersion(pv), nil
}

func (s *memoryStore) ListPackageVersions(_ context.Context, packageID string) ([]*PackageVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return nil, nil
	}
	versions := make([]*PackageVersion, 0, len(mp.versions))
	for _, pv := range mp.versions {
		versions = append(versions, copyVersion(pv))
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.Before(versions[j].CreatedAt)
	})
	return versions, nil
}

func (s *memoryStore) CreatePackageVersion(_ context.Context, pv *PackageVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.packages[pv.PackageID]
	if !ok {
		return ErrPackageNotFound
	}
	if _, exists := mp.versions[pv.Version]; exists {
		return ErrVersionExists
	}
	now := s.now()
	pv.CreatedAt, pv.UpdatedAt = now, now
	mp.versions[pv.Version] = copyVersion(pv)
	return nil
}

func (s *memoryStore) UpdatePackageVersionManifest(_ context.Context, packageVersionID string, m *manifest.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mp := range s.packages {
		for _, pv := range mp.versions {
			if pv.PackageVersionID == packageVersionID {
				pv.Manifest = copyManifest(m)
				pv.UpdatedAt = s.now()
				return nil
			}
		}
	}
	return ErrVersionNotFound
}

func (s *memoryStore) RemovePackageVersion(_ context.Context, packageVersionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mp := range s.packages {
		for v, pv := range mp.versions {
			if pv.PackageVersionID == packageVersionID {
				delete(mp.versions, v)
				return nil
			}
		}
	}
	return nil
}

func (s *memoryStore) ListPackageTags(_ context.Context, packageID string) ([]*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return nil, nil
	}
	tags := make([]*Tag, 0, len(mp.tags))
	for _, tag := range mp.tags {
		t := *tag
		tags = append(tags, &t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })
	return tags, nil
}

func (s *memoryStore) SavePackageTag(_ context.Context, tag *Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.packages[tag.PackageID]
	if !ok {
		return ErrPackageNotFound
	}
	now := s.now()
	if existing, ok := mp.tags[tag.Tag]; ok {
		tag.CreatedAt = existing.CreatedAt
	} else {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now
	t := *tag
	mp.tags[tag.Tag] = &t
	return nil
}

func (s *memoryStore) RemovePackageTag(_ context.Context, packageID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mp, ok := s.packages[packageID]; ok {
		delete(mp.tags, tag)
	}
	return nil
}

func (s *memoryStore) ListPackageMaintainers(_ context.Context, packageID string) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return nil, nil
	}
	users := make([]*User, 0, len(mp.maintainers))
	for userID := range mp.maintainers {
		if u, ok := s.users[userID]; ok {
			c := *u
			users = append(users, &c)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *memoryStore) AddPackageMaintainer(_ context.Context, packageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return ErrPackageNotFound
	}
	mp.maintainers[userID] = true
	return nil
}

func (s *memoryStore) RemovePackageMaintainer(_ context.Context, packageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mp, ok := s.packages[packageID]; ok {
		delete(mp.maintainers, userID)
	}
	return nil
}

func (s *memoryStore) FindUserByName(_ context.Context, name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Name == name {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) SaveUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.Name == user.Name && id != user.UserID {
			return ErrUserExists
		}
	}
	now := s.now()
	if existing, ok := s.users[user.UserID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	c := *user
	s.users[user.UserID] = &c
	return nil
}

func (s *memoryStore) GetManifestCache(_ context.Context, packageID string) (*manifest.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok || mp.cache == nil {
		return nil, nil
	}
	return manifest.Parse(mp.cache)
}

func (s *memoryStore) SaveManifestCache(_ context.Context, packageID string, m *manifest.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return ErrPackageNotFound
	}
	mp.cache = data
	return nil
}

func (s *memoryStore) SaveDownloadsByMonth(_ context.Context, packageID string, yearMonth int, counters []DayCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return ErrPackageNotFound
	}
	month, ok := mp.downloads[yearMonth]
	if !ok {
		month = make(map[string]int64)
		mp.downloads[yearMonth] = month
	}
	for _, c := range counters {
		month[c.Day] = c.Downloads
	}
	return nil
}

func (s *memoryStore) GetDownloadsByMonth(_ context.Context, packageID string, yearMonth int) ([]DayCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.packages[packageID]
	if !ok {
		return nil, nil
	}
	return sortedDays(mp.downloads[yearMonth]), nil
}

func sortedDays(month map[string]int64) []DayCount {
	days := make([]DayCount, 0, len(month))
	for day, n := range month {
		days = append(days, DayCount{Day: day, Downloads: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days
}

func copyVersion(pv *PackageVersion) *PackageVersion {
	c := *pv
	c.Manifest = copyManifest(pv.Manifest)
	return &c
}

func copyManifest(m *manifest.Version) *manifest.Version {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var c manifest.Version
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}
