// Package datasource defines the capability set shared by the local and remote
// task stores, and provides both implementations.
package datasource

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/stream"
	"github.com/bassista/tasksync/internal/task"
)

var (
	// ErrNotFound means the id is absent from every consulted source.
	ErrNotFound = fmt.Errorf("task not found: %w", errdefs.ErrNotFound)
	// ErrTransport means the remote store is unreachable or failing.
	ErrTransport = fmt.Errorf("remote store unavailable: %w", errdefs.ErrUnavailable)
	// ErrUnsupported means the operation cannot be served by this configuration.
	ErrUnsupported = fmt.Errorf("operation not supported: %w", errdefs.ErrNotImplemented)
	// ErrInvalidTask means a task failed validation.
	ErrInvalidTask = fmt.Errorf("invalid task: %w", errdefs.ErrInvalidArgument)
)

// DataSource is implemented identically by the local and remote stores.
// Failures are returned, never panicked.
type DataSource interface {
	GetTasks(ctx context.Context) result.Result[[]task.Task]
	GetTask(ctx context.Context, id string) result.Result[task.Task]

	SaveTask(ctx context.Context, t task.Task) error
	CompleteTask(ctx context.Context, t task.Task) error
	CompleteTaskByID(ctx context.Context, id string) error
	ActivateTask(ctx context.Context, t task.Task) error
	ActivateTaskByID(ctx context.Context, id string) error
	ClearCompletedTasks(ctx context.Context) error
	DeleteTask(ctx context.Context, id string) error
	DeleteAllTasks(ctx context.Context) error

	RefreshTasks(ctx context.Context) error
	RefreshTask(ctx context.Context, id string) error
	ObserveTasks() *stream.Subscription[result.Result[[]task.Task]]
	ObserveTask(id string) *stream.Subscription[result.Result[task.Task]]
}

// Replacer is implemented by stores that can swap their whole contents in a single write.
type Replacer interface {
	ReplaceTasks(ctx context.Context, tasks []task.Task) error
}

// FindTask picks id out of an all-tasks result. Error and Loading pass through.
func FindTask(all result.Result[[]task.Task], id string) result.Result[task.Task] {
	return result.Map(all, func(tasks []task.Task) result.Result[task.Task] {
		for _, t := range tasks {
			if t.ID == id {
				return result.Success(t)
			}
		}
		return result.Failure[task.Task](ErrNotFound)
	})
}
