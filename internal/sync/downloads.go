package sync

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// syncDownloadData imports the daily download counters of pkg, one batch per month.
// Import failures are logged and never change the task verdict.
func (s *Syncer) syncDownloadData(ctx context.Context, t *task.Task, pkg *pkgstore.Package) error {
	dd := s.cfg.DownloadData
	if !dd.IsActive() {
		return nil
	}
	fullname := pkg.Fullname()
	start := dd.StartDate()
	end := dd.MaxDate
	registry := dd.SourceRegistry
	l := s.newTaskLog(t, "[DownloadData]")
	failEnd := "❌❌❌❌❌ 🚮 give up 🚮 ❌❌❌❌❌"

	l.add("🚧🚧🚧🚧🚧 Syncing %q download data \"%s:%s\" on %s 🚧🚧🚧🚧🚧", fullname, start, end, registry)
	res, err := s.upstream.FetchDownloadRanges(ctx, registry, fullname, start, end)
	if err != nil {
		l.add("❌ Get download data error: %s, status: %s", err, statusOf(err))
		l.add("%s", failEnd)
		return l.flush(ctx)
	}
	l.add("🚧 HTTP [%d] downloads: %d", res.Status, len(res.Downloads))

	months := map[int][]pkgstore.DayCount{}
	for _, item := range res.Downloads {
		yearMonth, day, ok := splitDay(item.Day)
		if !ok {
			slog.Debug("Skipping malformed download day", "package", fullname, "day", item.Day)
			continue
		}
		months[yearMonth] = append(months[yearMonth], pkgstore.DayCount{Day: day, Downloads: item.Downloads})
	}

	keys := make([]int, 0, len(months))
	for ym := range months {
		keys = append(keys, ym)
	}
	slices.Sort(keys)
	for _, ym := range keys {
		counters := months[ym]
		if err := s.packages.SaveDownloadsByMonth(ctx, pkg, ym, counters); err != nil {
			l.add("❌ Save download data of %d error: %s", ym, err)
			l.add("%s", failEnd)
			return l.flush(ctx)
		}
		l.add("🟢 %d: %d days", ym, len(counters))
	}
	l.add("🟢🟢🟢🟢🟢 %s/%s 🟢🟢🟢🟢🟢", registry, fullname)
	return l.flush(ctx)
}

// splitDay turns "2021-09-21" into 202109 and "21"
func splitDay(day string) (yearMonth int, date string, ok bool) {
	parts := strings.Split(day, "-")
	if len(parts) != 3 {
		return 0, "", false
	}
	ym, err := strconv.Atoi(parts[0] + parts[1])
	if err != nil {
		return 0, "", false
	}
	return ym, parts[2], true
}
