// Package locator builds the repository graph once and hands the same
// instance to every caller until it is reset.
package locator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bassista/tasksync/internal/datasource"
	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/repository"
	"github.com/bassista/tasksync/internal/storage"
)

// EngineFactory opens the local storage engine.
type EngineFactory func(ctx context.Context) (storage.Engine, error)

// Locator owns the storage engine and the repository built on top of it.
// The remote store is shared for the lifetime of the Locator.
type Locator struct {
	factory EngineFactory
	remote  *datasource.Remote
	opts    repository.Options

	// mu guards construction, reset and close. repo is also readable without it.
	mu     sync.Mutex
	engine storage.Engine
	repo   atomic.Pointer[repository.TasksRepository]
}

func New(factory EngineFactory, remote *datasource.Remote, opts repository.Options) *Locator {
	return &Locator{factory: factory, remote: remote, opts: opts}
}

// Remote returns the shared remote store.
func (l *Locator) Remote() *datasource.Remote {
	return l.remote
}

// Provide returns the repository, building it and its engine on first use.
// Concurrent callers all receive the same instance.
func (l *Locator) Provide(ctx context.Context) (*repository.TasksRepository, error) {
	if repo := l.repo.Load(); repo != nil {
		return repo, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if repo := l.repo.Load(); repo != nil {
		return repo, nil
	}

	if l.engine == nil {
		engine, err := l.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("open storage engine: %w", err)
		}
		l.engine = engine
		logger.WithComponent("locator").Info("storage engine opened")
	}

	repo := repository.New(l.remote, datasource.NewLocal(l.engine.Tasks()), l.opts)
	l.repo.Store(repo)
	logger.WithComponent("locator").Debug("repository created")
	return repo, nil
}

// Reset wipes the remote store and the local engine and forgets both the
// engine and the repository. In-flight operations on the old repository are
// not waited for.
func (l *Locator) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if err := l.remote.DeleteAllTasks(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear remote: %w", err))
	}
	if l.engine != nil {
		if err := l.engine.ClearAllTables(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear local: %w", err))
		}
		if err := l.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close local: %w", err))
		}
		l.engine = nil
	}
	if repo := l.repo.Swap(nil); repo != nil {
		repo.Close()
	}

	if err := errors.Join(errs...); err != nil {
		logger.WithComponent("locator").Warnf("reset finished with errors: %v", err)
		return err
	}
	logger.WithComponent("locator").Info("repository reset")
	return nil
}

// Close releases the engine without clearing any data.
func (l *Locator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if repo := l.repo.Swap(nil); repo != nil {
		repo.Close()
	}
	if l.engine == nil {
		return nil
	}
	err := l.engine.Close()
	l.engine = nil
	return err
}
