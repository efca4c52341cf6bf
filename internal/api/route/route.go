package route

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tasksync/internal/api/controller"
	"github.com/bassista/tasksync/internal/api/middleware"
	"github.com/bassista/tasksync/internal/app"
)

func SetupRoutes(r *gin.Engine, appCtx *app.App) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	provide := func(ctx context.Context) (controller.TaskService, error) {
		repo, err := appCtx.Repository(ctx)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	publicRouter := r.Group("", middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))
	tc := controller.NewTaskController(provide)

	NewTaskRouter(publicRouter.Group("", middleware.RequestTimeout(appCtx.Config.Server.RequestTimeout)), tc)
	NewObserveRouter(publicRouter.Group("/observe"), tc)
}
