package scheduler

import (
	"context"
	"time"

	"github.com/bassista/tasksync/internal/logger"
)

// Refresher force-refreshes the task list from the remote store.
type Refresher interface {
	RefreshTasks(ctx context.Context) error
}

// RefresherProvider resolves the current Refresher on every tick, so a reset
// repository is picked up without restarting the scheduler.
type RefresherProvider func(ctx context.Context) (Refresher, error)

// StartRefreshScheduler runs a goroutine that periodically refreshes the task
// list. A non-positive interval disables it.
// Returns a channel that is closed when the scheduler has stopped.
func StartRefreshScheduler(ctx context.Context, provide RefresherProvider, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		logger.WithComponent("refresh").Info("background refresh disabled")
		close(done)
		return done
	}

	logger.WithComponent("refresh").Debugf("starting refresh scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("refresh").Info("refresh scheduler stopped")
				return
			case <-ticker.C:
				refresh(ctx, provide)
			}
		}
	}()
	return done
}

func refresh(ctx context.Context, provide RefresherProvider) {
	if err := ctx.Err(); err != nil {
		return
	}

	r, err := provide(ctx)
	if err != nil {
		logger.WithComponent("refresh").Errorf("refresh skipped: %v", err)
		return
	}
	if err := r.RefreshTasks(ctx); err != nil {
		logger.WithComponent("refresh").Warnf("refresh failed: %v", err)
		return
	}
	logger.WithComponent("refresh").Trace("task list refreshed")
}
