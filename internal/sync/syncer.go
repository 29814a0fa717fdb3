package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-registry-mirror/internal/config"
	"github.com/stacklok/toolhive-registry-mirror/internal/fetch"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
	"github.com/stacklok/toolhive-registry-mirror/internal/otel"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/publish"
	"github.com/stacklok/toolhive-registry-mirror/internal/registryclient"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

// staleProcessingAfter is how long a processing task may go without a log append
// before a new task for the same package is admitted
const staleProcessingAfter = 60 * time.Second

// Manager admits, looks up and executes package sync tasks
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/toolhive-registry-mirror/internal/sync Manager
type Manager interface {
	// CreateTask admits a sync task for fullname, returning a pending one when it exists
	CreateTask(ctx context.Context, fullname string, opts task.SyncPackageOptions) (*task.Task, error)

	// FindTask returns the task with the given id or task.ErrTaskNotFound
	FindTask(ctx context.Context, taskID string) (*task.Task, error)

	// FindTaskLog returns the task log from a byte offset
	FindTaskLog(ctx context.Context, taskID string, offset int64) (string, error)

	// FindExecuteTask claims the oldest waiting sync task, nil when there is none
	FindExecuteTask(ctx context.Context) (*task.Task, error)

	// ExecuteTask runs a task to a terminal state. The returned error reports
	// infrastructure failures only; the sync verdict is recorded on the task.
	ExecuteTask(ctx context.Context, t *task.Task) error

	// LogURL is the public URL of the task log
	LogURL(t *task.Task) string
}

// Publisher stores a downloaded version
type Publisher interface {
	Publish(ctx context.Context, cmd publish.Command, publisher *pkgstore.User) (*pkgstore.PackageVersion, error)
}

// Error is the terminal reason of a failed sync task
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Syncer is the default Manager
type Syncer struct {
	cfg        *config.Config
	tasks      task.Store
	upstream   registryclient.Client
	packages   *pkgstore.Manager
	publisher  Publisher
	downloader fetch.Downloader

	tracer  trace.Tracer
	metrics *telemetry.SyncMetrics

	now    func() time.Time
	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
	tmpDir string
}

// Option configures a Syncer
type Option func(*Syncer)

// WithClock overrides the clock used for staleness, timeouts and log timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithRandom overrides the source of the delegation poll jitter, a value in [0, 1)
func WithRandom(random func() float64) Option {
	return func(s *Syncer) {
		s.random = random
	}
}

// WithSleep overrides how the delegation poll loop waits between polls
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Syncer) {
		s.sleep = sleep
	}
}

// WithTracer sets the tracer used for task spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Syncer) {
		s.tracer = tracer
	}
}

// WithMetrics sets the sync metrics
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(s *Syncer) {
		s.metrics = metrics
	}
}

// New creates a Syncer
func New(
	cfg *config.Config,
	tasks task.Store,
	upstream registryclient.Client,
	packages *pkgstore.Manager,
	publisher Publisher,
	downloader fetch.Downloader,
	opts ...Option,
) *Syncer {
	s := &Syncer{
		cfg:        cfg,
		tasks:      tasks,
		upstream:   upstream,
		packages:   packages,
		publisher:  publisher,
		downloader: downloader,
		now:        time.Now,
		random:     rand.Float64,
		sleep:      sleepContext,
		tmpDir:     cfg.Sync.TmpDir,
	}
	if s.tmpDir == "" {
		s.tmpDir = os.TempDir()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask implements Manager
func (s *Syncer) CreateTask(ctx context.Context, fullname string, opts task.SyncPackageOptions) (*task.Task, error) {
	existing, err := s.tasks.FindTaskByTargetName(ctx, fullname, task.TypeSyncPackage, task.StateWaiting)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	existing, err = s.tasks.FindTaskByTargetName(ctx, fullname, task.TypeSyncPackage, task.StateProcessing)
	if err != nil {
		return nil, err
	}
	if existing != nil && s.now().Sub(existing.UpdatedAt) < staleProcessingAfter {
		return existing, nil
	}

	t := task.NewSyncPackageTask(fullname, opts)
	if err := s.tasks.SaveTask(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.RecordTaskCreated(ctx)
	slog.Info("Sync task created", "task_id", t.TaskID, "target", t.TargetName)
	return t, nil
}

// FindTask implements Manager
func (s *Syncer) FindTask(ctx context.Context, taskID string) (*task.Task, error) {
	return s.tasks.FindTask(ctx, taskID)
}

// FindTaskLog implements Manager
func (s *Syncer) FindTaskLog(ctx context.Context, taskID string, offset int64) (string, error) {
	return s.tasks.ReadLog(ctx, taskID, offset)
}

// FindExecuteTask implements Manager
func (s *Syncer) FindExecuteTask(ctx context.Context) (*task.Task, error) {
	return s.tasks.ClaimNextTask(ctx, task.TypeSyncPackage)
}

// LogURL implements Manager
func (s *Syncer) LogURL(t *task.Task) string {
	return fmt.Sprintf("%s/-/package/%s/syncs/%s/log", strings.TrimRight(s.cfg.Registry, "/"), t.TargetName, t.TaskID)
}

// ExecuteTask implements Manager
func (s *Syncer) ExecuteTask(ctx context.Context, t *task.Task) error {
	if t.State.IsTerminal() {
		return task.ErrTaskFinished
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "sync.ExecuteTask",
		trace.WithAttributes(
			otel.AttrTaskID.String(t.TaskID),
			otel.AttrPackageName.String(t.TargetName),
		),
	)
	defer span.End()

	if t.State == task.StateWaiting {
		t.State = task.StateProcessing
		t.Attempts++
		if err := s.tasks.SaveTask(ctx, t); err != nil {
			otel.RecordError(span, err)
			return err
		}
	}

	start := s.now()
	logURL := s.LogURL(t)
	slog.Info("Sync task started", "task_id", t.TaskID, "target", t.TargetName, "log", logURL)

	r := &run{
		Syncer:   s,
		task:     t,
		opts:     t.SyncPackageOptions(),
		fullname: t.TargetName,
		logURL:   logURL,
		log:      s.newTaskLog(t, ""),
	}
	r.scope, r.name = manifest.SplitFullname(t.TargetName)

	failure, err := r.execute(ctx)
	if err != nil {
		otel.RecordError(span, err)
		slog.Error("Sync task aborted", "task_id", t.TaskID, "target", t.TargetName, "error", err)
		return s.abort(ctx, r.log, err)
	}

	state := task.StateSuccess
	if failure != nil {
		state = task.StateFail
		t.Error = failure.Message
	} else {
		t.Error = r.lastErrorMessage
	}
	if err := r.log.finish(ctx, state); err != nil {
		otel.RecordError(span, err)
		return err
	}

	span.SetAttributes(otel.AttrTaskState.String(string(state)))
	s.metrics.RecordTaskDuration(ctx, string(state), s.now().Sub(start))
	if failure != nil {
		slog.Info("Sync task failed", "task_id", t.TaskID, "target", t.TargetName, "error", failure.Message)
	} else {
		slog.Info("Sync task succeeded", "task_id", t.TaskID, "target", t.TargetName)
	}
	return nil
}

// abort moves a task whose execution broke on an infrastructure error to fail.
// Lines still buffered in l are written ahead of the failure lines.
func (s *Syncer) abort(ctx context.Context, l *taskLog, cause error) error {
	if errors.Is(cause, task.ErrTaskFinished) {
		return cause
	}
	t := l.task
	t.Error = fmt.Sprintf("sync error: %s", cause)
	l.add("❌ %s", t.Error)
	l.add("❌❌❌❌❌ %s ❌❌❌❌❌", t.TargetName)
	// the caller context may be the reason of the failure
	if err := l.finish(context.WithoutCancel(ctx), task.StateFail); err != nil {
		return errors.Join(cause, err)
	}
	s.metrics.RecordTaskDuration(ctx, string(task.StateFail), 0)
	return cause
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
