package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stacklok/toolhive-registry-mirror/internal/httpclient"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

const isoLayout = "2006-01-02T15:04:05.000Z"

// taskLog buffers task log lines and writes them to the task store in batches.
// Lines are stamped when they are added, not when they are flushed.
type taskLog struct {
	store  task.Store
	task   *task.Task
	now    func() time.Time
	prefix string
	lines  []string
}

func (s *Syncer) newTaskLog(t *task.Task, prefix string) *taskLog {
	return &taskLog{store: s.tasks, task: t, now: s.now, prefix: prefix}
}

func (l *taskLog) add(format string, args ...any) {
	stamp := l.now().UTC().Format(isoLayout)
	l.lines = append(l.lines, "["+stamp+"]"+l.prefix+" "+fmt.Sprintf(format, args...))
}

// flush appends the buffered lines, which also refreshes the task heartbeat
func (l *taskLog) flush(ctx context.Context) error {
	if len(l.lines) == 0 {
		return nil
	}
	if err := l.store.AppendLog(ctx, l.task, task.Lines(l.lines)); err != nil {
		return fmt.Errorf("failed to append log of task %s: %w", l.task.TaskID, err)
	}
	l.lines = l.lines[:0]
	return nil
}

// finish writes the buffered lines as the final chunk and moves the task to state
func (l *taskLog) finish(ctx context.Context, state task.State) error {
	text := ""
	if len(l.lines) > 0 {
		text = task.Lines(l.lines)
	}
	if err := l.store.FinishTask(ctx, l.task, state, text); err != nil {
		return fmt.Errorf("failed to finish task %s: %w", l.task.TaskID, err)
	}
	l.lines = l.lines[:0]
	return nil
}

// statusOf renders the HTTP status carried by err, "unknow" when there is none
func statusOf(err error) string {
	if code := httpclient.StatusCode(err); code > 0 {
		return strconv.Itoa(code)
	}
	return "unknow"
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "undefined"
	}
	return string(data)
}

func rawOrUndefined(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "undefined"
	}
	return string(raw)
}
