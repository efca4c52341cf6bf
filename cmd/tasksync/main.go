package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bassista/tasksync/internal/config"
	"github.com/bassista/tasksync/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Task store that keeps a local copy in sync with a remote service",
	Long: `tasksync serves a task list over HTTP.

Reads are answered from an in-memory cache backed by a local store
(json, sqlite or memory). The remote service is consulted when the
cache is empty, stale or a refresh is requested, and writes go to both
stores.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
}

// loadConfig reads the configuration and applies the logging settings.
// The returned closer releases the log file, if any.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	closer, err := logger.Configure(cfg.Log.Level, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger setup: %w", err)
	}
	if closer == nil {
		closer = nopCloser{}
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel())
	return cfg, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
