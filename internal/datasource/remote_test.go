package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/task"
)

func TestRemote_Seed(t *testing.T) {
	remote := NewRemote(RemoteOptions{Seed: true})

	res := remote.GetTasks(context.Background())
	require.True(t, res.Succeeded())
	require.Len(t, res.Data(), 2)
	assert.Equal(t, "Build tower in Pisa", res.Data()[0].Title)
	assert.Equal(t, "Finish bridge in Tacoma", res.Data()[1].Title)
}

func TestRemote_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	remote := NewRemote(RemoteOptions{})
	tk := task.New("title", "desc")

	require.NoError(t, remote.SaveTask(ctx, tk))
	assert.Equal(t, tk, remote.GetTask(ctx, tk.ID).Data())

	require.NoError(t, remote.DeleteTask(ctx, tk.ID))
	res := remote.GetTask(ctx, tk.ID)
	assert.ErrorIs(t, res.Err(), ErrNotFound)
}

func TestRemote_CompleteActivateAndClear(t *testing.T) {
	ctx := context.Background()
	remote := NewRemote(RemoteOptions{})
	a := task.New("a", "")
	b := task.New("b", "")
	require.NoError(t, remote.SaveTask(ctx, a))
	require.NoError(t, remote.SaveTask(ctx, b))

	require.NoError(t, remote.CompleteTask(ctx, a))
	assert.True(t, remote.GetTask(ctx, a.ID).Data().Completed)

	require.NoError(t, remote.ActivateTask(ctx, a))
	assert.False(t, remote.GetTask(ctx, a.ID).Data().Completed)

	require.NoError(t, remote.CompleteTask(ctx, b))
	require.NoError(t, remote.ClearCompletedTasks(ctx))
	assert.Equal(t, []task.Task{a}, remote.GetTasks(ctx).Data())

	require.NoError(t, remote.DeleteAllTasks(ctx))
	res := remote.GetTasks(ctx)
	assert.True(t, res.Succeeded())
	assert.Empty(t, res.Data())
}

func TestRemote_ByIDOverloadsAreUnsupported(t *testing.T) {
	remote := NewRemote(RemoteOptions{})

	err := remote.CompleteTaskByID(context.Background(), "id")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, errdefs.IsNotImplemented(err))

	err = remote.ActivateTaskByID(context.Background(), "id")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRemote_SetReturnError(t *testing.T) {
	ctx := context.Background()
	remote := NewRemote(RemoteOptions{})
	remote.SetReturnError(true)

	res := remote.GetTasks(ctx)
	assert.Equal(t, result.KindError, res.Kind())
	assert.True(t, errdefs.IsUnavailable(res.Err()))
	assert.ErrorIs(t, remote.SaveTask(ctx, task.New("x", "")), ErrTransport)

	remote.SetReturnError(false)
	assert.True(t, remote.GetTasks(ctx).Succeeded())
	assert.Empty(t, remote.GetTasks(ctx).Data(), "failed save must not be applied")
}

func TestRemote_FailureRateOne(t *testing.T) {
	remote := NewRemote(RemoteOptions{FailureRate: 1})
	assert.ErrorIs(t, remote.GetTasks(context.Background()).Err(), ErrTransport)
}

func TestRemote_LatencyAndCancellation(t *testing.T) {
	remote := NewRemote(RemoteOptions{Latency: 50 * time.Millisecond})

	start := time.Now()
	assert.True(t, remote.GetTasks(context.Background()).Succeeded())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := remote.GetTasks(ctx)
	assert.ErrorIs(t, res.Err(), context.Canceled)
}

func TestRemote_RefreshPublishes(t *testing.T) {
	ctx := context.Background()
	remote := NewRemote(RemoteOptions{})
	tk := task.New("t", "")
	require.NoError(t, remote.SaveTask(ctx, tk))

	all := remote.ObserveTasks()
	defer all.Close()
	one := remote.ObserveTask(tk.ID)
	defer one.Close()

	require.NoError(t, remote.RefreshTask(ctx, tk.ID))

	select {
	case res := <-all.C():
		assert.Equal(t, []task.Task{tk}, res.Data())
	case <-time.After(time.Second):
		t.Fatal("no tasks published")
	}
	select {
	case res := <-one.C():
		assert.Equal(t, tk, res.Data())
	case <-time.After(time.Second):
		t.Fatal("no task published")
	}
}

func TestFindTask(t *testing.T) {
	tk := task.New("t", "")

	assert.Equal(t, tk, FindTask(result.Success([]task.Task{tk}), tk.ID).Data())
	assert.ErrorIs(t, FindTask(result.Success([]task.Task{tk}), "other").Err(), ErrNotFound)
	assert.Equal(t, result.KindLoading, FindTask(result.Loading[[]task.Task](), tk.ID).Kind())

	cause := ErrTransport
	assert.ErrorIs(t, FindTask(result.Failure[[]task.Task](cause), tk.ID).Err(), ErrTransport)
}
