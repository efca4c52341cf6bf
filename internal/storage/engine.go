// Package storage implements the durable task stores behind the local data source.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/bassista/tasksync/internal/task"
)

var (
	// ErrTaskNotFound is returned by TaskDAO lookups that miss.
	ErrTaskNotFound = fmt.Errorf("task not found: %w", errdefs.ErrNotFound)
	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("storage engine is closed")
)

// TaskDAO is the record-level access to the tasks table.
type TaskDAO interface {
	GetTasks(ctx context.Context) ([]task.Task, error)
	GetTaskByID(ctx context.Context, id string) (task.Task, error)
	// InsertTask inserts t or replaces the record with the same id.
	InsertTask(ctx context.Context, t task.Task) error
	// UpdateTask overwrites an existing record and returns the number of rows updated.
	UpdateTask(ctx context.Context, t task.Task) (int, error)
	UpdateCompleted(ctx context.Context, id string, completed bool) (int, error)
	DeleteTaskByID(ctx context.Context, id string) (int, error)
	DeleteTasks(ctx context.Context) error
	DeleteCompletedTasks(ctx context.Context) (int, error)
	// ReplaceAll swaps the whole table for tasks in one write. Duplicate ids
	// keep the first position and the last value.
	ReplaceAll(ctx context.Context, tasks []task.Task) error
}

// Engine owns the persisted schema and its lifecycle.
type Engine interface {
	Tasks() TaskDAO
	// ClearAllTables removes every record but keeps the engine open.
	ClearAllTables(ctx context.Context) error
	Close() error
}

// dedupe collapses repeated ids the way successive InsertTask calls would.
func dedupe(tasks []task.Task) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	seen := make(map[string]int, len(tasks))
	for _, t := range tasks {
		if i, ok := seen[t.ID]; ok {
			out[i] = t
			continue
		}
		seen[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}
