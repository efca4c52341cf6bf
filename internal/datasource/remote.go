package datasource

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/stream"
	"github.com/bassista/tasksync/internal/task"
)

// DefaultLatency is the simulated network delay applied to every remote call.
const DefaultLatency = 2 * time.Second

// RemoteOptions configures the simulated network store.
type RemoteOptions struct {
	Latency time.Duration
	// FailureRate is the probability (0..1) that a call fails with ErrTransport.
	FailureRate float64
	// Seed preloads the demo tasks.
	Seed bool
}

// Remote simulates a network-backed task service with latency and failures.
type Remote struct {
	latency     time.Duration
	failureRate float64

	mu          sync.Mutex
	order       []string
	tasks       map[string]task.Task
	returnError bool
	rng         *rand.Rand

	observed *stream.Value[result.Result[[]task.Task]]
}

var _ DataSource = (*Remote)(nil)

func NewRemote(opts RemoteOptions) *Remote {
	r := &Remote{
		latency:     opts.Latency,
		failureRate: opts.FailureRate,
		tasks:       map[string]task.Task{},
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7461736b73)),
		observed:    stream.NewValue[result.Result[[]task.Task]](),
	}
	if opts.Seed {
		r.put(task.New("Build tower in Pisa", "Ground looks good, no foundation work required."))
		r.put(task.New("Finish bridge in Tacoma", "Found awesome girders at half the cost!"))
	}
	return r
}

// SetReturnError forces every subsequent call to fail (or succeed again).
func (r *Remote) SetReturnError(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returnError = fail
}

func (r *Remote) GetTasks(ctx context.Context) result.Result[[]task.Task] {
	if err := r.call(ctx, "get tasks"); err != nil {
		return result.Failure[[]task.Task](err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return result.Success(r.snapshotLocked())
}

func (r *Remote) GetTask(ctx context.Context, id string) result.Result[task.Task] {
	if err := r.call(ctx, "get task"); err != nil {
		return result.Failure[task.Task](err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		return result.Success(t)
	}
	return result.Failure[task.Task](ErrNotFound)
}

func (r *Remote) SaveTask(ctx context.Context, t task.Task) error {
	if err := r.call(ctx, "save"); err != nil {
		return err
	}
	r.put(t)
	return nil
}

func (r *Remote) CompleteTask(ctx context.Context, t task.Task) error {
	if err := r.call(ctx, "complete"); err != nil {
		return err
	}
	r.put(t.Complete())
	return nil
}

// CompleteTaskByID cannot be served: the remote API only accepts whole tasks.
func (r *Remote) CompleteTaskByID(_ context.Context, id string) error {
	logger.WithComponent("remote").Errorf("complete by id %s is not supported by the remote store", id)
	return fmt.Errorf("remote complete by id: %w", ErrUnsupported)
}

func (r *Remote) ActivateTask(ctx context.Context, t task.Task) error {
	if err := r.call(ctx, "activate"); err != nil {
		return err
	}
	r.put(t.Activate())
	return nil
}

// ActivateTaskByID cannot be served: the remote API only accepts whole tasks.
func (r *Remote) ActivateTaskByID(_ context.Context, id string) error {
	logger.WithComponent("remote").Errorf("activate by id %s is not supported by the remote store", id)
	return fmt.Errorf("remote activate by id: %w", ErrUnsupported)
}

func (r *Remote) ClearCompletedTasks(ctx context.Context) error {
	if err := r.call(ctx, "clear completed"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, id := range r.order {
		if r.tasks[id].Completed {
			delete(r.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return nil
}

func (r *Remote) DeleteTask(ctx context.Context, id string) error {
	if err := r.call(ctx, "delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; ok {
		delete(r.tasks, id)
		for i, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (r *Remote) DeleteAllTasks(ctx context.Context) error {
	if err := r.call(ctx, "delete all"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = map[string]task.Task{}
	r.order = nil
	return nil
}

// RefreshTasks fetches the current contents and publishes them to observers.
func (r *Remote) RefreshTasks(ctx context.Context) error {
	res := r.GetTasks(ctx)
	r.observed.Publish(res)
	return res.Err()
}

func (r *Remote) RefreshTask(ctx context.Context, _ string) error {
	return r.RefreshTasks(ctx)
}

func (r *Remote) ObserveTasks() *stream.Subscription[result.Result[[]task.Task]] {
	return r.observed.Subscribe()
}

func (r *Remote) ObserveTask(id string) *stream.Subscription[result.Result[task.Task]] {
	return stream.Map(r.ObserveTasks(), func(all result.Result[[]task.Task]) result.Result[task.Task] {
		return FindTask(all, id)
	})
}

// call simulates the round trip: it waits for the latency and then decides
// whether the call fails.
func (r *Remote) call(ctx context.Context, op string) error {
	if r.latency > 0 {
		timer := time.NewTimer(r.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	fail := r.returnError || (r.failureRate > 0 && r.rng.Float64() < r.failureRate)
	r.mu.Unlock()

	if fail {
		logger.WithComponent("remote").Warnf("%s failed: simulated transport failure", op)
		return fmt.Errorf("remote %s: %w", op, ErrTransport)
	}
	return nil
}

func (r *Remote) put(t task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.tasks[t.ID] = t
}

func (r *Remote) snapshotLocked() []task.Task {
	out := make([]task.Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id])
	}
	return out
}
