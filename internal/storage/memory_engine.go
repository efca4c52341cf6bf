package storage

import (
	"context"
	"sync"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/task"
)

// MemoryEngine keeps tasks in process memory. Contents vanish when the process exits.
type MemoryEngine struct {
	mu     sync.RWMutex
	order  []string
	tasks  map[string]task.Task
	closed bool
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{tasks: map[string]task.Task{}}
}

func (m *MemoryEngine) Tasks() TaskDAO { return m }

func (m *MemoryEngine) ClearAllTables(ctx context.Context) error {
	return m.DeleteTasks(ctx)
}

func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	logger.WithComponent("storage").Debug("memory engine closed")
	return nil
}

func (m *MemoryEngine) GetTasks(_ context.Context) ([]task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]task.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	return out, nil
}

func (m *MemoryEngine) GetTaskByID(_ context.Context, id string) (task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return task.Task{}, ErrClosed
	}
	t, ok := m.tasks[id]
	if !ok {
		return task.Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (m *MemoryEngine) InsertTask(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.tasks[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *MemoryEngine) UpdateTask(_ context.Context, t task.Task) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if _, ok := m.tasks[t.ID]; !ok {
		return 0, nil
	}
	m.tasks[t.ID] = t
	return 1, nil
}

func (m *MemoryEngine) UpdateCompleted(_ context.Context, id string, completed bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	t, ok := m.tasks[id]
	if !ok {
		return 0, nil
	}
	t.Completed = completed
	m.tasks[id] = t
	return 1, nil
}

func (m *MemoryEngine) DeleteTaskByID(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if _, ok := m.tasks[id]; !ok {
		return 0, nil
	}
	delete(m.tasks, id)
	m.order = removeID(m.order, id)
	return 1, nil
}

func (m *MemoryEngine) DeleteTasks(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tasks = map[string]task.Task{}
	m.order = nil
	return nil
}

func (m *MemoryEngine) DeleteCompletedTasks(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		if m.tasks[id].Completed {
			delete(m.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

func (m *MemoryEngine) ReplaceAll(_ context.Context, tasks []task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	tasks = dedupe(tasks)
	m.tasks = make(map[string]task.Task, len(tasks))
	m.order = make([]string, 0, len(tasks))
	for _, t := range tasks {
		m.order = append(m.order, t.ID)
		m.tasks[t.ID] = t
	}
	return nil
}

func removeID(order []string, id string) []string {
	for i, existing := range order {
		if existing == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
