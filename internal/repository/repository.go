// Package repository reconciles the remote task service with the local store
// through an in-memory cache.
//
// Reads are cache-aside: the remote source is consulted when the cache is
// empty, dirty or a refresh is forced, and its answer is mirrored into the
// local store. Writes update the cache first and are then issued to both
// stores concurrently. A failed leg is logged and otherwise ignored, so the
// stores can diverge until the next forced refresh.
package repository

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bassista/tasksync/internal/cache"
	"github.com/bassista/tasksync/internal/datasource"
	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/stream"
	"github.com/bassista/tasksync/internal/task"
)

// Options tunes the write path.
type Options struct {
	// MarkDirtyOnWriteFailure forces the next read to go to the remote source
	// whenever either leg of a write fails.
	MarkDirtyOnWriteFailure bool
}

// TasksRepository is the single entry point for task data.
type TasksRepository struct {
	remote datasource.DataSource
	local  datasource.DataSource
	cache  *cache.Store
	opts   Options

	observed *stream.Value[result.Result[[]task.Task]]
}

func New(remote, local datasource.DataSource, opts Options) *TasksRepository {
	return &TasksRepository{
		remote:   remote,
		local:    local,
		cache:    cache.NewStore(),
		opts:     opts,
		observed: stream.NewValue[result.Result[[]task.Task]](),
	}
}

// GetTasks returns every task. With forceUpdate, or when the cache is empty or
// dirty, the remote source is fetched and mirrored into the local store and the
// cache. A remote error is returned as is and leaves the cache untouched.
func (r *TasksRepository) GetTasks(ctx context.Context, forceUpdate bool) result.Result[[]task.Task] {
	if forceUpdate {
		r.cache.MarkDirty()
	}
	if !r.cache.IsDirty() && r.cache.Len() > 0 {
		return result.Success(r.cache.Snapshot())
	}

	res, err := detached(ctx, r.syncFromRemote)
	if err != nil {
		return result.Failure[[]task.Task](err)
	}
	return res
}

// GetTask returns one task. With forceUpdate it is fetched from the remote
// source; otherwise only the cache and the local store are consulted.
func (r *TasksRepository) GetTask(ctx context.Context, id string, forceUpdate bool) result.Result[task.Task] {
	if forceUpdate {
		res, err := detached(ctx, func(ctx context.Context) result.Result[task.Task] {
			return r.syncTaskFromRemote(ctx, id)
		})
		if err != nil {
			return result.Failure[task.Task](err)
		}
		return res
	}

	if t, ok := r.cache.Get(id); ok {
		return result.Success(t)
	}

	res, err := detached(ctx, func(ctx context.Context) result.Result[task.Task] {
		return r.local.GetTask(ctx, id)
	})
	if err != nil {
		return result.Failure[task.Task](err)
	}
	if res.Succeeded() {
		r.cache.Put(res.Data())
		return res
	}
	if errors.Is(res.Err(), datasource.ErrNotFound) {
		return result.Failure[task.Task](fmt.Errorf("task %s: %w", id, datasource.ErrNotFound))
	}
	return res
}

// SaveTask stores t, assigning an id when it has none, and returns the stored value.
func (r *TasksRepository) SaveTask(ctx context.Context, t task.Task) (task.Task, error) {
	t = t.EnsureID()
	if err := t.Validate(); err != nil {
		return task.Task{}, fmt.Errorf("%w: %v", datasource.ErrInvalidTask, err)
	}

	r.cache.Put(t)
	r.publishCache()
	return t, r.dualWrite(ctx, "save", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.SaveTask(ctx, t)
	})
}

func (r *TasksRepository) CompleteTask(ctx context.Context, t task.Task) error {
	completed := t.Complete()
	r.cache.Put(completed)
	r.publishCache()
	return r.dualWrite(ctx, "complete", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.CompleteTask(ctx, completed)
	})
}

// CompleteTaskByID resolves id from the cache or the local store and completes it.
func (r *TasksRepository) CompleteTaskByID(ctx context.Context, id string) error {
	t, err := r.resolve(ctx, id)
	if err != nil {
		return err
	}
	return r.CompleteTask(ctx, t)
}

func (r *TasksRepository) ActivateTask(ctx context.Context, t task.Task) error {
	active := t.Activate()
	r.cache.Put(active)
	r.publishCache()
	return r.dualWrite(ctx, "activate", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.ActivateTask(ctx, active)
	})
}

// ActivateTaskByID resolves id from the cache or the local store and activates it.
func (r *TasksRepository) ActivateTaskByID(ctx context.Context, id string) error {
	t, err := r.resolve(ctx, id)
	if err != nil {
		return err
	}
	return r.ActivateTask(ctx, t)
}

func (r *TasksRepository) ClearCompletedTasks(ctx context.Context) error {
	removed := r.cache.RemoveCompleted()
	logger.WithComponent("repository").Debugf("cleared %d completed tasks from cache", removed)
	r.publishCache()
	return r.dualWrite(ctx, "clear completed", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.ClearCompletedTasks(ctx)
	})
}

func (r *TasksRepository) DeleteTask(ctx context.Context, id string) error {
	r.cache.Remove(id)
	r.publishCache()
	return r.dualWrite(ctx, "delete", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.DeleteTask(ctx, id)
	})
}

func (r *TasksRepository) DeleteAllTasks(ctx context.Context) error {
	r.cache.Clear()
	r.publishCache()
	return r.dualWrite(ctx, "delete all", func(ctx context.Context, ds datasource.DataSource) error {
		return ds.DeleteAllTasks(ctx)
	})
}

// RefreshTasks force-fetches every task and publishes the outcome to observers.
func (r *TasksRepository) RefreshTasks(ctx context.Context) error {
	res := r.GetTasks(ctx, true)
	r.observed.Publish(res)
	return res.Err()
}

// RefreshTask force-fetches one task and republishes the cache.
func (r *TasksRepository) RefreshTask(ctx context.Context, id string) error {
	res := r.GetTask(ctx, id, true)
	if !res.Succeeded() {
		return res.Err()
	}
	r.publishCache()
	return nil
}

// ObserveTasks subscribes to the task list. Every call publishes Loading and
// then refreshes from the remote source before returning.
func (r *TasksRepository) ObserveTasks(ctx context.Context) *stream.Subscription[result.Result[[]task.Task]] {
	sub := r.observed.Subscribe()
	r.observed.Publish(result.Loading[[]task.Task]())
	if err := r.RefreshTasks(ctx); err != nil {
		logger.WithComponent("repository").Debugf("observe refresh failed: %v", err)
	}
	return sub
}

// ObserveTask follows one task through the task list stream.
func (r *TasksRepository) ObserveTask(ctx context.Context, id string) *stream.Subscription[result.Result[task.Task]] {
	return stream.Map(r.ObserveTasks(ctx), func(all result.Result[[]task.Task]) result.Result[task.Task] {
		return datasource.FindTask(all, id)
	})
}

// Close ends every observer subscription.
func (r *TasksRepository) Close() {
	r.observed.Close()
}

// syncFromRemote fetches all tasks and mirrors them into the local store and the cache.
func (r *TasksRepository) syncFromRemote(ctx context.Context) result.Result[[]task.Task] {
	res := r.remote.GetTasks(ctx)
	if !res.Succeeded() {
		logger.WithComponent("repository").Warnf("remote fetch failed, keeping cache: %v", res.Err())
		return res
	}

	tasks := res.Data()
	r.mirrorLocal(ctx, tasks)

	r.cache.Replace(tasks)
	logger.WithComponent("repository").Debugf("synced %d tasks from remote", len(tasks))
	return result.Success(r.cache.Snapshot())
}

// mirrorLocal replaces the local contents with tasks. Stores without bulk
// support are cleared and refilled one task at a time.
func (r *TasksRepository) mirrorLocal(ctx context.Context, tasks []task.Task) {
	if rep, ok := r.local.(datasource.Replacer); ok {
		if err := rep.ReplaceTasks(ctx, tasks); err != nil {
			logger.WithComponent("repository").Errorf("local replace during sync failed: %v", err)
		}
		return
	}

	if err := r.local.DeleteAllTasks(ctx); err != nil {
		logger.WithComponent("repository").Errorf("local clear during sync failed: %v", err)
	}
	for _, t := range tasks {
		if err := r.local.SaveTask(ctx, t); err != nil {
			logger.WithComponent("repository").Errorf("local save of %s during sync failed: %v", t.ID, err)
		}
	}
}

func (r *TasksRepository) syncTaskFromRemote(ctx context.Context, id string) result.Result[task.Task] {
	res := r.remote.GetTask(ctx, id)
	if !res.Succeeded() {
		logger.WithComponent("repository").Warnf("remote fetch of %s failed: %v", id, res.Err())
		return res
	}
	if err := r.local.SaveTask(ctx, res.Data()); err != nil {
		logger.WithComponent("repository").Errorf("local save of %s failed: %v", id, err)
	}
	r.cache.Put(res.Data())
	return res
}

func (r *TasksRepository) publishCache() {
	if r.observed.Subscribers() == 0 {
		return
	}
	r.observed.Publish(result.Success(r.cache.Snapshot()))
}

func (r *TasksRepository) resolve(ctx context.Context, id string) (task.Task, error) {
	return r.GetTask(ctx, id, false).Unwrap()
}

// dualWrite issues op against both stores at once and waits for both attempts.
// Leg failures are logged, not returned. The only error is the caller's
// context ending first; the legs then keep running.
func (r *TasksRepository) dualWrite(ctx context.Context, op string, fn func(context.Context, datasource.DataSource) error) error {
	_, err := detached(ctx, func(ctx context.Context) struct{} {
		var g errgroup.Group
		g.Go(func() error { return r.leg(ctx, op, "remote", r.remote, fn) })
		g.Go(func() error { return r.leg(ctx, op, "local", r.local, fn) })
		if err := g.Wait(); err != nil && r.opts.MarkDirtyOnWriteFailure {
			r.cache.MarkDirty()
		}
		return struct{}{}
	})
	return err
}

func (r *TasksRepository) leg(ctx context.Context, op, name string, ds datasource.DataSource, fn func(context.Context, datasource.DataSource) error) error {
	if err := fn(ctx, ds); err != nil {
		logger.WithComponent("repository").Warnf("%s: %s leg failed: %v", op, name, err)
		return err
	}
	return nil
}

// detached runs fn on a context that ignores the caller's cancellation and
// waits for it. If ctx ends first, ctx.Err() is returned and fn keeps running.
func detached[T any](ctx context.Context, fn func(context.Context) T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan T, 1)
	go func() {
		done <- fn(context.WithoutCancel(ctx))
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
