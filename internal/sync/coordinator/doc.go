// Package coordinator executes package sync tasks in the background.
//
// The coordinator sits on top of sync.Manager and handles:
//
//   - polling for waiting tasks on a jittered ticker
//   - claiming them through Manager.FindExecuteTask, which moves a task to
//     processing atomically so that replicas sharing a database never claim the
//     same waiting task twice
//   - executing claimed tasks on a bounded worker pool (sync.workers)
//   - graceful shutdown that waits for running tasks
//
// A worker that frees its slot wakes the polling loop, so a backlog drains without
// waiting for the next tick.
//
// # Usage Example
//
//	syncer := sync.New(cfg, tasks, upstream, packages, publisher, downloader)
//	c := coordinator.New(syncer, cfg)
//
//	go func() {
//	    if err := c.Start(ctx); err != nil {
//	        slog.Error("coordinator failed", "error", err)
//	    }
//	}()
//
//	// ... run server ...
//
//	_ = c.Stop()
//
// # Error Handling
//
// The sync verdict of a task is recorded on the task by the manager. Errors returned
// by ExecuteTask are infrastructure failures; they are logged and the coordinator
// keeps running. A failed claim is retried on the next tick.
package coordinator
