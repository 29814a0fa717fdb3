package registries

import (
	"context"
	"sort"
	"sync"
)

type memoryRecord struct {
	registry Registry
	seq      int64
}

// memoryStore keeps registries in a map guarded by a RWMutex
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	nextSeq int64
}

// NewMemoryStore creates a Store that keeps everything in process memory
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]*memoryRecord)}
}

func (s *memoryStore) Get(_ context.Context, registryID string) (*Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[registryID]
	if !ok {
		return nil, ErrRegistryNotFound
	}
	r := rec.registry
	return &r, nil
}

func (s *memoryStore) List(_ context.Context, limit, offset int) ([]*Registry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ordered()
	total := int64(len(ordered))
	if offset >= len(ordered) {
		return []*Registry{}, total, nil
	}
	end := min(offset+limit, len(ordered))
	page := make([]*Registry, 0, end-offset)
	for _, rec := range ordered[offset:end] {
		r := rec.registry
		page = append(page, &r)
	}
	return page, total, nil
}

func (s *memoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *memoryStore) Create(_ context.Context, r *Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byName(r.Name) != nil {
		return ErrRegistryExists
	}
	s.insert(r)
	return nil
}

func (s *memoryStore) UpsertByName(_ context.Context, r *Registry) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.byName(r.Name)
	if existing == nil {
		s.insert(r)
		saved := *r
		return &saved, nil
	}
	existing.registry.Host = r.Host
	existing.registry.ChangeStream = r.ChangeStream
	existing.registry.UserPrefix = r.UserPrefix
	existing.registry.Type = r.Type
	existing.registry.UpdatedAt = r.UpdatedAt
	saved := existing.registry
	return &saved, nil
}

func (s *memoryStore) Update(_ context.Context, r *Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[r.RegistryID]
	if !ok {
		return ErrRegistryNotFound
	}
	if other := s.byName(r.Name); other != nil && other != rec {
		return ErrRegistryExists
	}
	created := rec.registry.CreatedAt
	rec.registry = *r
	rec.registry.CreatedAt = created
	return nil
}

func (s *memoryStore) Delete(_ context.Context, registryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[registryID]; !ok {
		return ErrRegistryNotFound
	}
	delete(s.records, registryID)
	return nil
}

func (s *memoryStore) insert(r *Registry) {
	s.nextSeq++
	s.records[r.RegistryID] = &memoryRecord{registry: *r, seq: s.nextSeq}
}

func (s *memoryStore) byName(name string) *memoryRecord {
	for _, rec := range s.records {
		if rec.registry.Name == name {
			return rec
		}
	}
	return nil
}

func (s *memoryStore) ordered() []*memoryRecord {
	out := make([]*memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

