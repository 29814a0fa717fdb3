package task

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	task *Task
	log  Log
	seq  int64
}

// memoryStore keeps tasks in a map guarded by a RWMutex
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	nextSeq int64
	now     func() time.Time
}

// MemoryOption configures the in-memory store
type MemoryOption func(*memoryStore)

// WithClock overrides the clock used for CreatedAt/UpdatedAt
func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a Store that keeps everything in process memory
func NewMemoryStore(opts ...MemoryOption) Store {
	s := &memoryStore{
		records: make(map[string]*memoryRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) FindTaskByTargetName(_ context.Context, targetName string, typ Type, state State) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *memoryRecord
	for _, rec := range s.records {
		t := rec.task
		if t.TargetName != targetName || t.Type != typ || t.State != state {
			continue
		}
		if found == nil || rec.seq > found.seq {
			found = rec
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.task.Clone(), nil
}

func (s *memoryStore) FindTask(_ context.Context, taskID string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return rec.task.Clone(), nil
}

func (s *memoryStore) SaveTask(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	rec, ok := s.records[t.TaskID]
	if !ok {
		s.nextSeq++
		rec = &memoryRecord{seq: s.nextSeq}
		s.records[t.TaskID] = rec
	}
	t.LogSize = rec.log.Size()
	rec.task = t.Clone()
	return nil
}

func (s *memoryStore) AppendLog(_ context.Context, t *Task, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[t.TaskID]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.task.State.IsTerminal() {
		return ErrTaskFinished
	}
	rec.log.Append(text)
	rec.task.LogSize = rec.log.Size()
	rec.task.UpdatedAt = s.now()

	t.LogSize = rec.task.LogSize
	t.UpdatedAt = rec.task.UpdatedAt
	return nil
}

func (s *memoryStore) ReadLog(_ context.Context, taskID string, offset int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[taskID]
	if !ok {
		return "", ErrTaskNotFound
	}
	if rec.log.Empty() {
		return "", ErrLogNotFound
	}
	return rec.log.ReadFrom(offset), nil
}

func (s *memoryStore) FinishTask(_ context.Context, t *Task, state State, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[t.TaskID]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.task.State.IsTerminal() {
		return ErrTaskFinished
	}
	if text != "" {
		rec.log.Append(text)
	}
	t.State = state
	t.LogSize = rec.log.Size()
	t.UpdatedAt = s.now()
	rec.task = t.Clone()
	return nil
}

func (s *memoryStore) ClaimNextTask(_ context.Context, typ Type) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *memoryRecord
	for _, rec := range s.records {
		if rec.task.Type != typ || rec.task.State != StateWaiting {
			continue
		}
		if oldest == nil || rec.seq < oldest.seq {
			oldest = rec
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.task.State = StateProcessing
	oldest.task.Attempts++
	oldest.task.UpdatedAt = s.now()
	return oldest.task.Clone(), nil
}
