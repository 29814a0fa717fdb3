package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// Coordinator claims waiting sync tasks and executes them in the background
type Coordinator interface {
	// Start begins background task execution.
	// Blocks until context is cancelled and every running task returned.
	Start(ctx context.Context) error

	// Stop cancels the polling loop and waits for running tasks
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager pkgsync.Manager
	config  *config.Config

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}

	// slots bounds the tasks executed at once, running tracks them for shutdown
	workers int
	slots   *semaphore.Weighted
	running errgroup.Group
	// wake is signalled when a worker frees its slot
	wake chan struct{}

	interval func() time.Duration
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithWorkers overrides the worker pool size from sync.workers
func WithWorkers(n int) Option {
	return func(c *defaultCoordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPollInterval overrides how the next polling interval is picked
func WithPollInterval(interval func() time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.interval = interval
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, cfg *config.Config, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager: manager,
		config:  cfg,
		done:    make(chan struct{}),
		workers: cfg.Sync.GetWorkers(),
		wake:    make(chan struct{}, 1),
	}
	base := cfg.Sync.GetPollInterval()
	c.interval = func() time.Duration { return calculatePollingInterval(base) }

	for _, opt := range opts {
		opt(c)
	}
	c.slots = semaphore.NewWeighted(int64(c.workers))

	return c
}

// calculatePollingInterval applies a ±25% jitter to base so that replicas sharing a
// database do not poll it in lockstep
func calculatePollingInterval(base time.Duration) time.Duration {
	spread := int64(base / 2)
	if spread <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	return base + time.Duration(rand.Int64N(spread)) - base/4
}

// Start begins background task execution
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting sync task coordinator", "workers", c.workers)

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		cancel()
		_ = c.running.Wait()
		close(c.done)
		slog.Info("Sync task coordinator shutting down")
	}()

	pollingInterval := c.interval()
	slog.Info("Configured coordinator poll interval", "actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	c.dispatch(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.dispatch(coordCtx)
			ticker.Reset(c.interval())
		case <-c.wake:
			c.dispatch(coordCtx)
		case <-coordCtx.Done():
			slog.Info("Sync task coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping sync task coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

// dispatch claims waiting tasks while a worker slot is free
func (c *defaultCoordinator) dispatch(ctx context.Context) {
	for ctx.Err() == nil {
		if !c.slots.TryAcquire(1) {
			return
		}
		t, err := c.manager.FindExecuteTask(ctx)
		if err != nil {
			c.slots.Release(1)
			slog.Error("Error claiming next sync task", "error", err)
			return
		}
		if t == nil {
			c.slots.Release(1)
			return
		}
		c.running.Go(func() error {
			defer c.release()
			c.executeTask(ctx, t)
			return nil
		})
	}
}

func (c *defaultCoordinator) release() {
	c.slots.Release(1)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// executeTask runs one claimed task. Failures are recorded on the task by the manager,
// the coordinator only logs them.
func (c *defaultCoordinator) executeTask(ctx context.Context, t *task.Task) {
	startTime := time.Now()
	slog.Info("Executing sync task", "task_id", t.TaskID, "target", t.TargetName, "attempts", t.Attempts)

	if err := c.manager.ExecuteTask(ctx, t); err != nil {
		if errors.Is(err, task.ErrTaskFinished) {
			slog.Warn("Sync task already finished", "task_id", t.TaskID, "target", t.TargetName)
			return
		}
		slog.Error("Sync task execution failed",
			"task_id", t.TaskID,
			"target", t.TargetName,
			"duration", time.Since(startTime),
			"error", err)
		return
	}
	slog.Debug("Sync task executed",
		"task_id", t.TaskID,
		"target", t.TargetName,
		"duration", time.Since(startTime))
}
