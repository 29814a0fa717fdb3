package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

const (
	pollDelayMin    = time.Second
	pollDelayJitter = 5 * time.Second
)

// pollDelay is uniform in [1s, 6s)
func (s *Syncer) pollDelay() time.Duration {
	return pollDelayMin + time.Duration(s.random()*float64(pollDelayJitter))
}

// syncUpstream asks a mirroring upstream to sync the package from its own source and
// waits until it reports done or the configured timeout elapses. Failures only end
// this phase; the returned error reports a broken task log or a cancelled context.
func (s *Syncer) syncUpstream(ctx context.Context, t *task.Task) error {
	registry := s.upstream.Registry()
	fullname := t.TargetName
	l := s.newTaskLog(t, "[UP]")
	failEnd := fmt.Sprintf("❌❌❌❌❌ Sync %s/%s 🚮 give up 🚮 ❌❌❌❌❌", registry, fullname)

	l.add("🚧🚧🚧🚧🚧 Waiting sync %q task on %s 🚧🚧🚧🚧🚧", fullname, registry)
	job, err := s.upstream.CreateSyncJob(ctx, fullname)
	if err != nil {
		l.add("❌ Sync %s fail, create sync task error: %s, status: %s", fullname, err, statusOf(err))
		l.add("%s", failEnd)
		return l.flush(ctx)
	}
	l.add("🚧 HTTP [%d] data: %s", job.Status, rawOrUndefined(job.Raw))
	if job.LogID == "" {
		l.add("❌ Sync %s fail, missing logId", fullname)
		l.add("%s", failEnd)
		return l.flush(ctx)
	}

	timeout := s.cfg.Sync.GetSourceRegistrySyncTimeout()
	start := s.now()
	var (
		logURL string
		offset int64
	)
	for used := s.now().Sub(start); used < timeout; {
		if err := s.sleep(ctx, s.pollDelay()); err != nil {
			return err
		}
		res, err := s.upstream.PollSyncJob(ctx, fullname, job.LogID, offset)
		used = s.now().Sub(start)
		if err != nil {
			// poll errors only cost time
			l.add("🚧 HTTP [%s] [%dms] error: %s", statusOf(err), used.Milliseconds(), err)
			continue
		}
		if logURL == "" {
			logURL = res.URL
		}
		offset += int64(len(res.Log))
		for _, line := range strings.Split(strings.TrimSpace(res.Log), "\n") {
			if line != "" {
				l.add("📖 %s", line)
			}
		}
		if res.SyncDone {
			l.add("🟢 Sync %s success [%dms], log: %s, offset: %d", fullname, used.Milliseconds(), logURL, offset)
			l.add("🟢🟢🟢🟢🟢 %s/%s 🟢🟢🟢🟢🟢", registry, fullname)
			return l.flush(ctx)
		}
		l.add("🚧 HTTP [%d] [%dms], offset: %d", res.Status, used.Milliseconds(), offset)
		if err := l.flush(ctx); err != nil {
			return err
		}
	}

	l.add("❌ Sync %s fail, timeout, log: %s, offset: %d", fullname, logURL, offset)
	l.add("%s", failEnd)
	return l.flush(ctx)
}
