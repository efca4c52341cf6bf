package app

import (
	"context"
	"errors"

	"github.com/bassista/tasksync/internal/config"
	"github.com/bassista/tasksync/internal/datasource"
	"github.com/bassista/tasksync/internal/locator"
	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/repository"
	"github.com/bassista/tasksync/internal/scheduler"
	"github.com/bassista/tasksync/internal/storage"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config  *config.Config
	Locator *locator.Locator

	BaseCtx context.Context
	Cancel  context.CancelFunc

	refreshDone <-chan struct{}
}

func New(cfg *config.Config, loc *locator.Locator) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if loc == nil {
		return nil, errors.New("locator is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:  cfg,
		Locator: loc,
		BaseCtx: ctx,
		Cancel:  cancel,
	}, nil
}

// NewFromConfig wires the remote store, the storage engine factory and the
// locator described by cfg.
func NewFromConfig(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	remote := datasource.NewRemote(datasource.RemoteOptions{
		Latency:     cfg.Remote.Latency,
		FailureRate: cfg.Remote.FailureRate,
		Seed:        cfg.Remote.Seed,
	})
	factory := func(ctx context.Context) (storage.Engine, error) {
		return storage.Open(ctx, storage.Options{
			Engine: cfg.Storage.Engine,
			Path:   cfg.Storage.Path,
			Watch:  cfg.Storage.Watch,
		})
	}
	loc := locator.New(factory, remote, repository.Options{
		MarkDirtyOnWriteFailure: cfg.Sync.MarkDirtyOnWriteFailure,
	})
	return New(cfg, loc)
}

// Repository returns the process-wide repository.
func (a *App) Repository(ctx context.Context) (*repository.TasksRepository, error) {
	return a.Locator.Provide(ctx)
}

// StartBackground starts the periodic refresh, if enabled.
func (a *App) StartBackground() {
	a.refreshDone = scheduler.StartRefreshScheduler(a.BaseCtx, func(ctx context.Context) (scheduler.Refresher, error) {
		repo, err := a.Locator.Provide(ctx)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}, a.Config.Sync.RefreshInterval)
}

// Shutdown cancels background work, waits for it and releases the storage engine.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.refreshDone != nil {
		<-a.refreshDone
	}
	if a.Locator != nil {
		if err := a.Locator.Close(); err != nil {
			logger.WithComponent("main").Errorf("closing storage: %v", err)
		}
	}
}
