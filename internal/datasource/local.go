package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/storage"
	"github.com/bassista/tasksync/internal/stream"
	"github.com/bassista/tasksync/internal/task"
)

// Local serves tasks from a storage engine.
type Local struct {
	dao      storage.TaskDAO
	observed *stream.Value[result.Result[[]task.Task]]
}

var (
	_ DataSource = (*Local)(nil)
	_ Replacer   = (*Local)(nil)
)

func NewLocal(dao storage.TaskDAO) *Local {
	return &Local{dao: dao, observed: stream.NewValue[result.Result[[]task.Task]]()}
}

func (l *Local) GetTasks(ctx context.Context) result.Result[[]task.Task] {
	tasks, err := l.dao.GetTasks(ctx)
	if err != nil {
		return result.Failure[[]task.Task](err)
	}
	return result.Success(tasks)
}

func (l *Local) GetTask(ctx context.Context, id string) result.Result[task.Task] {
	t, err := l.dao.GetTaskByID(ctx, id)
	if errors.Is(err, storage.ErrTaskNotFound) {
		return result.Failure[task.Task](ErrNotFound)
	}
	if err != nil {
		return result.Failure[task.Task](err)
	}
	return result.Success(t)
}

func (l *Local) SaveTask(ctx context.Context, t task.Task) error {
	return l.write(ctx, "save", l.dao.InsertTask(ctx, t))
}

func (l *Local) CompleteTask(ctx context.Context, t task.Task) error {
	return l.CompleteTaskByID(ctx, t.ID)
}

func (l *Local) CompleteTaskByID(ctx context.Context, id string) error {
	_, err := l.dao.UpdateCompleted(ctx, id, true)
	return l.write(ctx, "complete", err)
}

func (l *Local) ActivateTask(ctx context.Context, t task.Task) error {
	return l.ActivateTaskByID(ctx, t.ID)
}

func (l *Local) ActivateTaskByID(ctx context.Context, id string) error {
	_, err := l.dao.UpdateCompleted(ctx, id, false)
	return l.write(ctx, "activate", err)
}

func (l *Local) ClearCompletedTasks(ctx context.Context) error {
	_, err := l.dao.DeleteCompletedTasks(ctx)
	return l.write(ctx, "clear completed", err)
}

func (l *Local) DeleteTask(ctx context.Context, id string) error {
	_, err := l.dao.DeleteTaskByID(ctx, id)
	return l.write(ctx, "delete", err)
}

func (l *Local) DeleteAllTasks(ctx context.Context) error {
	return l.write(ctx, "delete all", l.dao.DeleteTasks(ctx))
}

// ReplaceTasks mirrors tasks into the store with one bulk write.
func (l *Local) ReplaceTasks(ctx context.Context, tasks []task.Task) error {
	return l.write(ctx, "replace", l.dao.ReplaceAll(ctx, tasks))
}

// RefreshTasks is a no-op: the local store is always current with itself.
func (l *Local) RefreshTasks(context.Context) error { return nil }

func (l *Local) RefreshTask(context.Context, string) error { return nil }

// ObserveTasks publishes the current table and subscribes to later changes.
func (l *Local) ObserveTasks() *stream.Subscription[result.Result[[]task.Task]] {
	l.observed.Publish(l.GetTasks(context.Background()))
	return l.observed.Subscribe()
}

func (l *Local) ObserveTask(id string) *stream.Subscription[result.Result[task.Task]] {
	return stream.Map(l.ObserveTasks(), func(all result.Result[[]task.Task]) result.Result[task.Task] {
		return FindTask(all, id)
	})
}

// write republishes the table to observers after a successful write.
func (l *Local) write(ctx context.Context, op string, err error) error {
	if err != nil {
		logger.WithComponent("local").Errorf("%s failed: %v", op, err)
		return fmt.Errorf("local %s: %w", op, err)
	}
	l.publish(ctx)
	return nil
}

func (l *Local) publish(ctx context.Context) {
	if l.observed.Subscribers() == 0 {
		return
	}
	l.observed.Publish(l.GetTasks(ctx))
}
