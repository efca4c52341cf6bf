package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/statistics"
	"github.com/bassista/tasksync/internal/stream"
	"github.com/bassista/tasksync/internal/task"
)

// TaskService is the part of the repository served over HTTP.
type TaskService interface {
	GetTasks(ctx context.Context, forceUpdate bool) result.Result[[]task.Task]
	GetTask(ctx context.Context, id string, forceUpdate bool) result.Result[task.Task]
	SaveTask(ctx context.Context, t task.Task) (task.Task, error)
	CompleteTaskByID(ctx context.Context, id string) error
	ActivateTaskByID(ctx context.Context, id string) error
	ClearCompletedTasks(ctx context.Context) error
	DeleteTask(ctx context.Context, id string) error
	DeleteAllTasks(ctx context.Context) error
	RefreshTasks(ctx context.Context) error
	ObserveTasks(ctx context.Context) *stream.Subscription[result.Result[[]task.Task]]
	ObserveTask(ctx context.Context, id string) *stream.Subscription[result.Result[task.Task]]
}

// ServiceProvider resolves the current TaskService for a request.
type ServiceProvider func(ctx context.Context) (TaskService, error)

// TaskController handles task HTTP endpoints.
type TaskController struct {
	provide ServiceProvider
}

func NewTaskController(provide ServiceProvider) *TaskController {
	return &TaskController{provide: provide}
}

// TaskRequest is the payload of POST /tasks.
type TaskRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"isCompleted"`
}

// StatisticsResponse is the payload of GET /statistics.
type StatisticsResponse struct {
	statistics.Stats
	Empty bool   `json:"empty"`
	Error string `json:"error,omitempty"`
}

// AllTasks handles GET /tasks?force=true.
func (tc *TaskController) AllTasks(c *gin.Context) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	writeResult(c, svc.GetTasks(c.Request.Context(), forceParam(c)))
}

// GetTask handles GET /tasks/:id?force=true.
func (tc *TaskController) GetTask(c *gin.Context) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	writeResult(c, svc.GetTask(c.Request.Context(), c.Param("id"), forceParam(c)))
}

// CreateOrUpdateTask handles POST /tasks. A missing id is assigned.
func (tc *TaskController) CreateOrUpdateTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	t := task.Task{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	// the store accepts empty tasks; the API does not create them
	if t.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task needs a title or a description"})
		return
	}
	svc, ok := tc.service(c)
	if !ok {
		return
	}

	saved, err := svc.SaveTask(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.WithComponent("task-controller").Debugf("task %s saved", saved.ID)
	c.JSON(http.StatusCreated, saved)
}

// CompleteTask handles POST /tasks/:id/complete.
func (tc *TaskController) CompleteTask(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.CompleteTaskByID(ctx, c.Param("id"))
	})
}

// ActivateTask handles POST /tasks/:id/activate.
func (tc *TaskController) ActivateTask(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.ActivateTaskByID(ctx, c.Param("id"))
	})
}

// DeleteTask handles DELETE /tasks/:id.
func (tc *TaskController) DeleteTask(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.DeleteTask(ctx, c.Param("id"))
	})
}

// DeleteAllTasks handles DELETE /tasks.
func (tc *TaskController) DeleteAllTasks(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.DeleteAllTasks(ctx)
	})
}

// ClearCompletedTasks handles DELETE /completed-tasks.
func (tc *TaskController) ClearCompletedTasks(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.ClearCompletedTasks(ctx)
	})
}

// Refresh handles POST /refresh.
func (tc *TaskController) Refresh(c *gin.Context) {
	tc.mutate(c, func(ctx context.Context, svc TaskService) error {
		return svc.RefreshTasks(ctx)
	})
}

// Statistics handles GET /statistics.
func (tc *TaskController) Statistics(c *gin.Context) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	res := svc.GetTasks(c.Request.Context(), false)

	resp := StatisticsResponse{Stats: statistics.FromResult(res)}
	if err := res.Err(); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Empty = len(res.Data()) == 0
	}
	c.JSON(http.StatusOK, resp)
}

// ObserveTasks handles GET /observe/tasks as a server-sent event stream.
func (tc *TaskController) ObserveTasks(c *gin.Context) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	sub := svc.ObserveTasks(c.Request.Context())
	streamResults(c, sub)
}

// ObserveTask handles GET /observe/tasks/:id as a server-sent event stream.
func (tc *TaskController) ObserveTask(c *gin.Context) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	sub := svc.ObserveTask(c.Request.Context(), c.Param("id"))
	streamResults(c, sub)
}

func (tc *TaskController) service(c *gin.Context) (TaskService, bool) {
	svc, err := tc.provide(c.Request.Context())
	if err != nil {
		logger.WithComponent("task-controller").Errorf("repository unavailable: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "repository unavailable"})
		return nil, false
	}
	return svc, true
}

func (tc *TaskController) mutate(c *gin.Context, op func(context.Context, TaskService) error) {
	svc, ok := tc.service(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), svc); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func forceParam(c *gin.Context) bool {
	force, _ := strconv.ParseBool(c.Query("force"))
	return force
}

func writeResult[T any](c *gin.Context, r result.Result[T]) {
	r.Match(
		func(data T) { c.JSON(http.StatusOK, data) },
		func(err error) { writeError(c, err) },
		func() { c.JSON(http.StatusAccepted, gin.H{"status": "loading"}) },
	)
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithComponent("task-controller").Warnf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps the error classes of the data layer to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errdefs.IsNotImplemented(err):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// eventBody renders a result as an event payload.
func eventBody[T any](r result.Result[T]) gin.H {
	return result.Fold(r,
		func(data T) gin.H { return gin.H{"data": data} },
		func(err error) gin.H { return gin.H{"error": err.Error()} },
		func() gin.H { return gin.H{} },
	)
}

func streamResults[T any](c *gin.Context, sub *stream.Subscription[result.Result[T]]) {
	defer sub.Close()
	ctx := c.Request.Context()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case r, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent(r.Kind().String(), eventBody(r))
			return true
		}
	})
}
