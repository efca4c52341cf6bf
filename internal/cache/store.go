package cache

import (
	"slices"
	"sync"

	"github.com/bassista/tasksync/internal/task"
)

// Store keeps the in-memory, insertion-ordered copy of the task table.
// A new Store is dirty: it has never been synced with the remote source.
type Store struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]task.Task
	dirty bool // true while the cache may not mirror the remote source
}

// NewStore creates an empty, dirty cache store.
func NewStore() *Store {
	return &Store{tasks: map[string]task.Task{}, dirty: true}
}

// MarkDirty sets the dirty flag to true.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// IsDirty returns true if the cache may be stale.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Len returns the number of cached tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns the cached tasks in insertion order.
func (s *Store) Snapshot() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// Get returns the cached task with the given id.
func (s *Store) Get(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Put upserts t. An existing entry keeps its position.
func (s *Store) Put(t task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
}

// Replace swaps the whole content and clears the dirty flag.
func (s *Store) Replace(tasks []task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]task.Task, len(tasks))
	s.order = make([]string, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := s.tasks[t.ID]; !ok {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = t
	}
	s.dirty = false
}

// Remove deletes the entry for id, if any.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return
	}
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(existing string) bool { return existing == id })
}

// RemoveCompleted deletes every completed entry and returns how many were removed.
func (s *Store) RemoveCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.order)
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		if s.tasks[id].Completed {
			delete(s.tasks, id)
			return true
		}
		return false
	})
	return before - len(s.order)
}

// Clear empties the cache. The dirty flag is left unchanged.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = map[string]task.Task{}
	s.order = nil
}
