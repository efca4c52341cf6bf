package route

import (
	"github.com/gin-gonic/gin"

	"github.com/bassista/tasksync/internal/api/controller"
)

func NewTaskRouter(group *gin.RouterGroup, tc *controller.TaskController) {
	group.GET("tasks", tc.AllTasks)
	group.POST("tasks", tc.CreateOrUpdateTask)
	group.DELETE("tasks", tc.DeleteAllTasks)
	group.GET("tasks/:id", tc.GetTask)
	group.DELETE("tasks/:id", tc.DeleteTask)
	group.POST("tasks/:id/complete", tc.CompleteTask)
	group.POST("tasks/:id/activate", tc.ActivateTask)
	group.DELETE("completed-tasks", tc.ClearCompletedTasks)
	group.POST("refresh", tc.Refresh)
	group.GET("statistics", tc.Statistics)
}

// NewObserveRouter registers the event-stream endpoints. They run without a request timeout.
func NewObserveRouter(group *gin.RouterGroup, tc *controller.TaskController) {
	group.GET("tasks", tc.ObserveTasks)
	group.GET("tasks/:id", tc.ObserveTask)
}
