package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Store is an in-memory task record store. All updates go through
// Update so that concurrent mutations of one task are serialized;
// reads return snapshots and never observe a half-applied update.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*TaskRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*TaskRecord)}
}

// Create inserts a new task record.
func (s *Store) Create(t *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return ErrTaskExists
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a snapshot of the task with the given id.
func (s *Store) Get(id string) (*TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Update applies fn to the stored record under the store lock and
// returns a snapshot of the result.
func (s *Store) Update(id string, fn func(*TaskRecord)) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	fn(t)
	t.UpdatedAt = time.Now()
	return t.Clone(), nil
}

// Delete removes the task with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// List returns snapshots of all tasks, newest first. A non-empty
// status filters the result.
func (s *Store) List(status TaskStatus) []*TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TaskRecord, 0, len(s.tasks))
	for _, t := range s.tasks {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of stored tasks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// CleanupOlderThan evicts terminal tasks that completed more than
// age ago and returns the number removed.
func (s *Store) CleanupOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if t.Status.IsTerminal() && !t.CompletedAt.IsZero() && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
