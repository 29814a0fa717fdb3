package app

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	syncmocks "github.com/stacklok/toolhive-registry-mirror/internal/sync/mocks"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// queue backs a mock manager with an in-memory task list
type queue struct {
	mu     sync.Mutex
	tasks  map[string]*task.Task
	order  []string
	result map[string]task.State
}

func newQueue(result map[string]task.State) *queue {
	return &queue{tasks: make(map[string]*task.Task), result: result}
}

func (q *queue) expect(m *syncmocks.MockManager) {
	m.EXPECT().CreateTask(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, name string, opts task.SyncPackageOptions) (*task.Task, error) {
			q.mu.Lock()
			defer q.mu.Unlock()
			for _, id := range q.order {
				if t := q.tasks[id]; t.TargetName == name && !t.State.IsTerminal() {
					return t.Clone(), nil
				}
			}
			t := task.NewSyncPackageTask(name, opts)
			q.tasks[t.TaskID] = t
			q.order = append(q.order, t.TaskID)
			return t.Clone(), nil
		}).AnyTimes()
	m.EXPECT().FindTask(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id string) (*task.Task, error) {
			q.mu.Lock()
			defer q.mu.Unlock()
			t, ok := q.tasks[id]
			if !ok {
				return nil, task.ErrTaskNotFound
			}
			return t.Clone(), nil
		}).AnyTimes()
	m.EXPECT().FindExecuteTask(gomock.Any()).DoAndReturn(
		func(context.Context) (*task.Task, error) {
			q.mu.Lock()
			defer q.mu.Unlock()
			for _, id := range q.order {
				if t := q.tasks[id]; t.State == task.StateWaiting {
					t.State = task.StateProcessing
					return t.Clone(), nil
				}
			}
			return nil, nil
		}).AnyTimes()
	m.EXPECT().ExecuteTask(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, claimed *task.Task) error {
			q.mu.Lock()
			defer q.mu.Unlock()
			t := q.tasks[claimed.TaskID]
			t.State = task.StateSuccess
			if state, ok := q.result[t.TargetName]; ok {
				t.State = state
			}
			return nil
		}).AnyTimes()
	m.EXPECT().FindTaskLog(gomock.Any(), gomock.Any(), int64(0)).DoAndReturn(
		func(_ context.Context, id string, _ int64) (string, error) {
			q.mu.Lock()
			defer q.mu.Unlock()
			return "[log] " + q.tasks[id].TargetName + "\n", nil
		}).AnyTimes()
}

// enqueue adds a waiting task that nobody on the command line asked for
func (q *queue) enqueue(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := task.NewSyncPackageTask(name, task.SyncPackageOptions{})
	q.tasks[t.TaskID] = t
	q.order = append(q.order, t.TaskID)
}

func (q *queue) state(name string) task.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.TargetName == name {
			return t.State
		}
	}
	return ""
}

func TestSyncPackages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		packages  []string
		result    map[string]task.State
		extra     string
		drain     bool
		errMsg    string
		wantLog   []string
		extraDone bool
	}{
		{
			name:     "single package succeeds",
			packages: []string{"koa"},
			wantLog:  []string{"[log] koa"},
		},
		{
			name:     "duplicate names share a task",
			packages: []string{"koa", "koa"},
			wantLog:  []string{"[log] koa"},
		},
		{
			name:     "failed package fails the command",
			packages: []string{"koa", "left-pad"},
			result:   map[string]task.State{"left-pad": task.StateFail},
			errMsg:   "1 of 2 packages did not sync: [left-pad (fail)]",
			wantLog:  []string{"[log] koa", "[log] left-pad"},
		},
		{
			name:     "without drain unrelated tasks stay queued",
			packages: []string{"koa"},
			extra:    "accepts",
			wantLog:  []string{"[log] koa"},
		},
		{
			name:      "drain runs the whole queue",
			packages:  []string{"koa"},
			extra:     "accepts",
			drain:     true,
			wantLog:   []string{"[log] koa"},
			extraDone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			manager := syncmocks.NewMockManager(ctrl)
			q := newQueue(tt.result)
			q.expect(manager)

			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)

			ctx := context.Background()
			opts := task.SyncPackageOptions{Tips: "cli"}
			if tt.extra != "" {
				// admitted after the named packages so they are claimed first
				defer func() {
					if tt.extraDone {
						assert.Equal(t, task.StateSuccess, q.state(tt.extra))
					} else {
						assert.Equal(t, task.StateWaiting, q.state(tt.extra))
					}
				}()
			}

			err := syncPackagesWithExtra(ctx, cmd, manager, q, tt.packages, tt.extra, opts, tt.drain)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
			for _, line := range tt.wantLog {
				assert.Contains(t, out.String(), line)
			}
			assert.NotContains(t, out.String(), "[log] accepts")
		})
	}
}

// syncPackagesWithExtra queues extra right after the named tasks are admitted
func syncPackagesWithExtra(
	ctx context.Context,
	cmd *cobra.Command,
	manager *syncmocks.MockManager,
	q *queue,
	names []string,
	extra string,
	opts task.SyncPackageOptions,
	drain bool,
) error {
	if extra == "" {
		return syncPackages(ctx, cmd, manager, names, opts, drain)
	}
	for _, name := range names {
		if _, err := manager.CreateTask(ctx, name, opts); err != nil {
			return err
		}
	}
	q.enqueue(extra)
	return syncPackages(ctx, cmd, manager, names, opts, drain)
}

func TestSyncPackages_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(m *syncmocks.MockManager)
		errMsg string
	}{
		{
			name: "create fails",
			setup: func(m *syncmocks.MockManager) {
				m.EXPECT().CreateTask(gomock.Any(), "koa", gomock.Any()).Return(nil, errors.New("boom"))
			},
			errMsg: "failed to create sync task for koa: boom",
		},
		{
			name: "claim fails",
			setup: func(m *syncmocks.MockManager) {
				waiting := task.NewSyncPackageTask("koa", task.SyncPackageOptions{})
				m.EXPECT().CreateTask(gomock.Any(), "koa", gomock.Any()).Return(waiting, nil)
				m.EXPECT().FindTask(gomock.Any(), waiting.TaskID).Return(waiting, nil)
				m.EXPECT().FindExecuteTask(gomock.Any()).Return(nil, errors.New("db down"))
			},
			errMsg: "failed to claim sync task: db down",
		},
		{
			name: "execute fails",
			setup: func(m *syncmocks.MockManager) {
				waiting := task.NewSyncPackageTask("koa", task.SyncPackageOptions{})
				m.EXPECT().CreateTask(gomock.Any(), "koa", gomock.Any()).Return(waiting, nil)
				m.EXPECT().FindTask(gomock.Any(), waiting.TaskID).Return(waiting, nil)
				m.EXPECT().FindExecuteTask(gomock.Any()).Return(waiting, nil)
				m.EXPECT().ExecuteTask(gomock.Any(), waiting).Return(errors.New("disk full"))
			},
			errMsg: "disk full",
		},
		{
			name: "task without log is reported",
			setup: func(m *syncmocks.MockManager) {
				done := task.NewSyncPackageTask("koa", task.SyncPackageOptions{})
				done.State = task.StateFail
				m.EXPECT().CreateTask(gomock.Any(), "koa", gomock.Any()).Return(done, nil)
				m.EXPECT().FindTask(gomock.Any(), done.TaskID).Return(done, nil).Times(2)
				m.EXPECT().FindTaskLog(gomock.Any(), done.TaskID, int64(0)).Return("", task.ErrLogNotFound)
			},
			errMsg: "1 of 1 packages did not sync",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			manager := syncmocks.NewMockManager(ctrl)
			tt.setup(manager)

			cmd := &cobra.Command{}
			cmd.SetOut(&bytes.Buffer{})
			err := syncPackages(context.Background(), cmd, manager, []string{"koa"}, task.SyncPackageOptions{}, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
