package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bassista/tasksync/internal/api/middleware"
	"github.com/bassista/tasksync/internal/api/route"
	appctx "github.com/bassista/tasksync/internal/app"
	"github.com/bassista/tasksync/internal/config"
	"github.com/bassista/tasksync/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		app, err := appctx.NewFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("cannot init app: %w", err)
		}
		defer app.Shutdown()

		// Open the storage engine now so a bad path fails at startup.
		if _, err := app.Repository(app.BaseCtx); err != nil {
			return fmt.Errorf("cannot init repository: %w", err)
		}
		app.StartBackground()

		gin.SetMode(cfg.Misc.GinMode)
		gin.DefaultWriter = logger.Logger.Writer()
		gin.DefaultErrorWriter = logger.Logger.Writer()

		r := gin.New()
		r.Use(middleware.HoneybadgerMiddleware(cfg.Misc.HoneybadgerKey, cfg.Misc.HoneybadgerEnv, logger.Logger))
		r.Use(gin.Recovery())
		route.SetupRoutes(r, app)

		logger.WithComponent("main").Infof("App will run on port: %d (storage: %s, remote latency: %v)",
			cfg.Server.Port, cfg.Storage.Engine, cfg.Remote.Latency)
		srv := createGraceHttpServer(app.BaseCtx, "main-server", cfg.Server, r)
		if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
}
