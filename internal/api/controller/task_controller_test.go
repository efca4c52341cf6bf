package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/tasksync/internal/datasource"
	"github.com/bassista/tasksync/internal/repository"
	"github.com/bassista/tasksync/internal/statistics"
	"github.com/bassista/tasksync/internal/storage"
	"github.com/bassista/tasksync/internal/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	router *gin.Engine
	repo   *repository.TasksRepository
	remote *datasource.Remote
}

func newHarness(t *testing.T, seed bool) *harness {
	t.Helper()
	remote := datasource.NewRemote(datasource.RemoteOptions{Seed: seed})
	repo := repository.New(remote, datasource.NewLocal(storage.NewMemoryEngine().Tasks()), repository.Options{})
	t.Cleanup(repo.Close)

	tc := NewTaskController(func(context.Context) (TaskService, error) { return repo, nil })
	r := gin.New()
	r.GET("/tasks", tc.AllTasks)
	r.POST("/tasks", tc.CreateOrUpdateTask)
	r.DELETE("/tasks", tc.DeleteAllTasks)
	r.GET("/tasks/:id", tc.GetTask)
	r.DELETE("/tasks/:id", tc.DeleteTask)
	r.POST("/tasks/:id/complete", tc.CompleteTask)
	r.POST("/tasks/:id/activate", tc.ActivateTask)
	r.DELETE("/completed-tasks", tc.ClearCompletedTasks)
	r.POST("/refresh", tc.Refresh)
	r.GET("/statistics", tc.Statistics)
	r.GET("/observe/tasks", tc.ObserveTasks)
	r.GET("/observe/tasks/:id", tc.ObserveTask)

	return &harness{router: r, repo: repo, remote: remote}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestTaskController_CreateAndGet(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(http.MethodPost, "/tasks", `{"title":"Buy milk","description":"2 liters"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[task.Task](t, w)
	assert.NotEmpty(t, created.ID)

	w = h.do(http.MethodGet, "/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[task.Task](t, w))

	w = h.do(http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []task.Task{created}, decode[[]task.Task](t, w))
}

func TestTaskController_CreateRejectsBadInput(t *testing.T) {
	h := newHarness(t, false)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/tasks", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/tasks", `{"title":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/tasks", `{"id":"e1","isCompleted":true}`).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/tasks/e1", "").Code)

	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/tasks", `{"description":"only a description"}`).Code)
}

func TestTaskController_GetMissingTask(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(http.MethodGet, "/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskController_CompleteActivateAndClear(t *testing.T) {
	h := newHarness(t, false)
	created := decode[task.Task](t, h.do(http.MethodPost, "/tasks", `{"title":"a"}`))

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/tasks/"+created.ID+"/complete", "").Code)
	assert.True(t, decode[task.Task](t, h.do(http.MethodGet, "/tasks/"+created.ID, "")).Completed)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/tasks/"+created.ID+"/activate", "").Code)
	assert.False(t, decode[task.Task](t, h.do(http.MethodGet, "/tasks/"+created.ID, "")).Completed)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/tasks/"+created.ID+"/complete", "").Code)
	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/completed-tasks", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/tasks/"+created.ID, "").Code)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/tasks/missing/complete", "").Code)
}

func TestTaskController_DeleteAndDeleteAll(t *testing.T) {
	h := newHarness(t, true)
	created := decode[task.Task](t, h.do(http.MethodPost, "/tasks", `{"title":"a"}`))

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/tasks/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/tasks/"+created.ID, "").Code)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/tasks", "").Code)
	w := h.do(http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]task.Task](t, w))
}

func TestTaskController_RemoteOutage(t *testing.T) {
	h := newHarness(t, true)
	h.remote.SetReturnError(true)

	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/tasks?force=true", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodPost, "/refresh", "").Code)

	h.remote.SetReturnError(false)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/refresh", "").Code)
}

func TestTaskController_Statistics(t *testing.T) {
	h := newHarness(t, false)
	for i := 0; i < 5; i++ {
		created := decode[task.Task](t, h.do(http.MethodPost, "/tasks", fmt.Sprintf(`{"title":"t%d"}`, i)))
		if i < 2 {
			require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/tasks/"+created.ID+"/complete", "").Code)
		}
	}

	w := h.do(http.MethodGet, "/statistics", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[StatisticsResponse](t, w)
	assert.Equal(t, statistics.Stats{ActivePercent: 60, CompletedPercent: 40}, resp.Stats)
	assert.False(t, resp.Empty)
	assert.Empty(t, resp.Error)
}

func TestTaskController_StatisticsOnError(t *testing.T) {
	h := newHarness(t, false)
	h.remote.SetReturnError(true)

	w := h.do(http.MethodGet, "/statistics", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[StatisticsResponse](t, w)
	assert.Equal(t, statistics.Stats{}, resp.Stats)
	assert.NotEmpty(t, resp.Error)
}

func TestTaskController_ProviderError(t *testing.T) {
	tc := NewTaskController(func(context.Context) (TaskService, error) { return nil, errors.New("no engine") })
	r := gin.New()
	r.GET("/tasks", tc.AllTasks)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{datasource.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", datasource.ErrTransport), http.StatusServiceUnavailable},
		{datasource.ErrUnsupported, http.StatusNotImplemented},
		{datasource.ErrInvalidTask, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

// readEvent returns the event name and data of the next server-sent event.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestTaskController_ObserveTasks(t *testing.T) {
	h := newHarness(t, true)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/observe/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body := bufio.NewReader(resp.Body)
	name, data := readEvent(t, body)
	assert.Equal(t, "success", name)
	assert.Contains(t, data, "Build tower in Pisa")

	_, err = h.repo.SaveTask(context.Background(), task.New("Observed", ""))
	require.NoError(t, err)

	name, data = readEvent(t, body)
	assert.Equal(t, "success", name)
	assert.Contains(t, data, "Observed")
}

func TestTaskController_ObserveMissingTask(t *testing.T) {
	h := newHarness(t, false)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/observe/tasks/missing", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	name, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "error", name)
	assert.Contains(t, data, "not found")
}
