package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-registry-mirror/internal/fetch"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
	"github.com/stacklok/toolhive-registry-mirror/internal/otel"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
	"github.com/stacklok/toolhive-registry-mirror/internal/publish"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
	"github.com/stacklok/toolhive-registry-mirror/internal/telemetry"
)

// removeRetention protects versions published longer ago than this from removal
const removeRetention = 7 * 24 * time.Hour

var securityHoldingMaintainers = []manifest.Maintainer{{Name: "npm", Email: "npm@npmjs.com"}}

// run is the state of one task execution
type run struct {
	*Syncer

	task     *task.Task
	opts     task.SyncPackageOptions
	fullname string
	scope    string
	name     string
	logURL   string
	log      *taskLog

	remote    *manifest.Manifest
	remoteURL string
	local     *manifest.Manifest
	pkg       *pkgstore.Package
	users     []*pkgstore.User
	readme    string
	failEnd   string

	// maintainers are the upstream maintainers with a name and an email, by name
	maintainers map[string]manifest.Maintainer

	lastErrorMessage string
	dependencies     map[string]bool
	syncVersionCount int
	// storedVersions counts upstream versions that exist locally after the version loop
	storedVersions int
}

type drift struct {
	version string
	diff    map[string]json.RawMessage
}

type changedTag struct {
	Action  string `json:"action"`
	Tag     string `json:"tag"`
	Version string `json:"version,omitempty"`
}

// execute runs the task body. A non-nil *Error is the terminal failure of the sync,
// a non-nil error means the execution itself broke.
func (r *run) execute(ctx context.Context) (*Error, error) {
	if r.cfg.Sync.IsBlocked(r.fullname) {
		r.addStartLines()
		msg := fmt.Sprintf("stop sync by block list: %s", toJSON(r.cfg.Sync.BlockList))
		r.log.add("❌ %s, log: %s", msg, r.logURL)
		r.log.add("❌❌❌❌❌ %s ❌❌❌❌❌", r.fullname)
		return &Error{Message: msg}, nil
	}

	if r.cfg.Sync.SourceRegistryIsMirror {
		if err := r.syncUpstream(ctx, r.task); err != nil {
			return nil, err
		}
	}
	r.addStartLines()

	if failure := r.fetchManifest(ctx); failure != nil {
		return failure, nil
	}

	done, failure, err := r.syncMaintainers(ctx)
	if err != nil || failure != nil || done {
		return failure, err
	}

	if failure, err := r.syncVersions(ctx); err != nil || failure != nil {
		return failure, err
	}
	if err := r.removeVersions(ctx); err != nil {
		return nil, err
	}
	if r.syncVersionCount > 0 {
		if err := r.packages.RefreshManifestCache(ctx, r.pkg); err != nil {
			return nil, err
		}
		r.log.add("🟢 Synced %d versions", r.syncVersionCount)
	}
	if err := r.syncTags(ctx); err != nil {
		return nil, err
	}
	if err := r.removeMaintainers(ctx); err != nil {
		return nil, err
	}
	if err := r.cascade(ctx); err != nil {
		return nil, err
	}

	if r.opts.SyncDownloadData {
		// keep the importer lines after everything logged so far
		if err := r.log.flush(ctx); err != nil {
			return nil, err
		}
		if err := r.syncDownloadData(ctx, r.task, r.pkg); err != nil {
			return nil, err
		}
	}

	r.log.add("🟢 log: %s", r.logURL)
	r.log.add("🟢🟢🟢🟢🟢 %s 🟢🟢🟢🟢🟢", r.remoteURL)
	return nil, nil
}

func (r *run) addStartLines() {
	if r.opts.Tips != "" {
		r.log.add("👉👉👉👉👉 Tips: %s 👈👈👈👈👈", r.opts.Tips)
	}
	r.log.add("🚧🚧🚧🚧🚧 Start sync %q from %s, skipDependencies: %t, syncDownloadData: %t 🚧🚧🚧🚧🚧",
		r.fullname, r.upstream.Registry(), r.opts.SkipDependencies, r.opts.SyncDownloadData)
}

func (r *run) fetchManifest(ctx context.Context) *Error {
	ctx, span := otel.StartSpan(ctx, r.tracer, "sync.FetchManifest",
		trace.WithAttributes(otel.AttrPackageName.String(r.fullname)),
	)
	defer span.End()

	start := r.now()
	res, err := r.upstream.FetchFullManifest(ctx, r.fullname)
	if err != nil {
		otel.RecordError(span, err)
		msg := fmt.Sprintf("request manifests error: %s, status: %s", err, statusOf(err))
		r.log.add("❌ Synced %s fail, %s, log: %s", r.fullname, msg, r.logURL)
		r.log.add("❌❌❌❌❌ %s ❌❌❌❌❌", r.fullname)
		return &Error{Err: err, Message: msg}
	}

	r.remote = res.Manifest
	r.remoteURL = res.URL
	if r.remoteURL == "" {
		r.remoteURL = r.fullname
	}
	r.failEnd = fmt.Sprintf("❌❌❌❌❌ %s ❌❌❌❌❌", r.remoteURL)
	r.readme = readmeText(r.remote.Readme)
	r.log.add("HTTP [%d] content-length: %d, timing: %dms", res.Status, res.ContentLength, r.now().Sub(start).Milliseconds())
	return nil
}

// syncMaintainers saves the upstream maintainers as local users. done reports that
// the task already reached its verdict (an unpublished package).
func (r *run) syncMaintainers(ctx context.Context) (done bool, failure *Error, err error) {
	list := r.remote.MaintainerList()
	if len(list) == 0 && r.remote.IsSecurityHolding() {
		r.remote.SetMaintainers(securityHoldingMaintainers)
		list = securityHoldingMaintainers
	}

	r.maintainers = map[string]manifest.Maintainer{}
	if len(list) > 0 {
		r.log.add("🚧 Syncing maintainers: %s", r.remote.MaintainersJSON())
		changed := 0
		for _, maintainer := range list {
			if maintainer.Name == "" || maintainer.Email == "" {
				continue
			}
			r.maintainers[maintainer.Name] = maintainer
			user, userChanged, err := r.packages.SavePublicUser(ctx, maintainer.Name, maintainer.Email)
			if err != nil {
				return false, nil, err
			}
			r.users = append(r.users, user)
			if userChanged {
				changed++
				r.log.add("🟢 [%d] Synced %s => %s(%s)", changed, maintainer.Name, user.Name, user.UserID)
			}
		}
	}

	r.pkg, err = r.packages.FindPackage(ctx, r.fullname)
	if err != nil {
		return false, nil, err
	}
	if len(r.users) > 0 {
		return false, nil, nil
	}

	if unpublished := r.remote.Unpublished(); unpublished != nil {
		if r.pkg != nil {
			if err := r.packages.UnpublishPackage(ctx, r.pkg); err != nil {
				return false, nil, err
			}
			r.log.add("🟢 Sync unpublished package: %s success", unpublished)
		} else {
			r.log.add("📖 Ignore unpublished package: %s", unpublished)
		}
		r.log.add("🟢 log: %s", r.logURL)
		r.log.add("🟢🟢🟢🟢🟢 %s 🟢🟢🟢🟢🟢", r.remoteURL)
		return true, nil, nil
	}

	msg := fmt.Sprintf("invalid maintainers: %s", r.remote.MaintainersJSON())
	r.log.add("❌ %s, log: %s", msg, r.logURL)
	r.log.add("%s", r.failEnd)
	return true, &Error{Message: msg}, nil
}

// syncVersions publishes upstream versions missing locally and collects metadata
// drift of the existing ones
func (r *run) syncVersions(ctx context.Context) (*Error, error) {
	var err error
	r.local, err = r.packages.ListFullManifest(ctx, r.fullname)
	if err != nil {
		return nil, err
	}
	localVersions := map[string]*manifest.Version{}
	if r.local != nil {
		localVersions = r.local.Versions
	}

	r.dependencies = map[string]bool{}
	versions := r.remote.SortedVersions()
	r.log.add("🚧 Syncing versions %d => %d", len(localVersions), len(versions))

	var drifts []drift
	for index, key := range versions {
		item := r.remote.Versions[key]
		if err := item.Err(); err != nil {
			r.lastErrorMessage = err.Error()
			r.log.add("❌ [%d] Synced version %s fail, %s", index, key, r.lastErrorMessage)
			r.metrics.RecordVersion(ctx, telemetry.VersionResultFailed)
			continue
		}
		if item == nil || item.Version == "" {
			continue
		}
		version := item.Version

		existing := localVersions[version]
		if existing == nil && r.pkg != nil {
			// the previous sync may have stopped before the cache was refreshed
			existing, err = r.packages.FindPackageVersionManifest(ctx, r.pkg, version)
			if err != nil {
				return nil, err
			}
		}
		if existing != nil {
			r.storedVersions++
			diff, err := manifest.Drift(item, existing)
			if err != nil {
				r.lastErrorMessage = fmt.Sprintf("compare meta error: %s", err)
				r.log.add("❌ [%d] Synced version %s fail, %s", index, version, r.lastErrorMessage)
				continue
			}
			if len(diff) > 0 {
				drifts = append(drifts, drift{version: version, diff: diff})
			}
			continue
		}

		if err := r.syncVersion(ctx, index, item); err != nil {
			return nil, err
		}
	}

	if r.pkg == nil {
		r.pkg, err = r.packages.FindPackage(ctx, r.fullname)
		if err != nil {
			return nil, err
		}
	}
	// a package record without a single version is left over from a broken publish
	if r.pkg == nil || (len(versions) > 0 && len(localVersions) == 0 && r.storedVersions == 0) {
		r.log.add("❌ All versions sync fail, package not exists, log: %s", r.logURL)
		r.log.add("%s", r.failEnd)
		return &Error{Message: r.lastErrorMessage}, nil
	}

	for _, d := range drifts {
		pv, err := r.packages.FindPackageVersion(ctx, r.pkg, d.version)
		if err != nil {
			return nil, err
		}
		if pv != nil {
			if err := r.packages.SaveVersionManifest(ctx, pv, d.diff); err != nil {
				return nil, err
			}
		}
		r.syncVersionCount++
		r.metrics.RecordVersion(ctx, telemetry.VersionResultDrifted)
		r.log.add("🟢 Synced version %s success, different meta: %s", d.version, toJSON(d.diff))
	}
	return nil, nil
}

// syncVersion downloads and publishes one upstream version. Per version failures are
// logged and kept as the last error message.
func (r *run) syncVersion(ctx context.Context, index int, item *manifest.Version) error {
	version := item.Version
	ctx, span := otel.StartSpan(ctx, r.tracer, "sync.SyncVersion",
		trace.WithAttributes(otel.AttrPackageName.String(r.fullname), otel.AttrPackageVersion.String(version)))
	defer span.End()

	tarball := item.Dist.Tarball
	if tarball == "" {
		r.lastErrorMessage = fmt.Sprintf("missing tarball, dist: %s", rawOrUndefined(item.Field("dist")))
		r.log.add("❌ [%d] Synced version %s fail, %s", index, version, r.lastErrorMessage)
		r.metrics.RecordVersion(ctx, telemetry.VersionResultFailed)
		return r.log.flush(ctx)
	}

	publishTimeISO := "undefined"
	publishTime, ok := r.remote.PublishTime(version)
	if ok {
		publishTimeISO = publishTime.UTC().Format(isoLayout)
	} else {
		publishTime = r.now()
	}
	delay := r.now().Sub(publishTime)
	r.log.add("🚧 [%d] Syncing version %s, delay: %dms [%s], tarball: %s",
		index, version, delay.Milliseconds(), publishTimeISO, tarball)

	start := r.now()
	file, err := r.downloader.Download(ctx, tarball, r.tmpDir)
	if err != nil {
		slog.Error("Download tarball failed", "task_id", r.task.TaskID, "tarball", tarball, "error", err)
		r.lastErrorMessage = fmt.Sprintf("download tarball error: %s", err)
		r.log.add("❌ [%d] Synced version %s fail, %s", index, version, r.lastErrorMessage)
		r.metrics.RecordVersion(ctx, telemetry.VersionResultFailed)
		return r.log.flush(ctx)
	}
	defer removeFile(file)
	r.log.add("🚧 [%d] HTTP content-length: %d, timing: %dms => %s",
		index, file.Size, r.now().Sub(start).Milliseconds(), file.Path)

	if r.pkg == nil {
		if r.pkg, err = r.packages.FindPackage(ctx, r.fullname); err != nil {
			return err
		}
	}
	if r.pkg != nil {
		// a concurrent publish may have stored the version meanwhile
		existing, err := r.packages.FindPackageVersion(ctx, r.pkg, version)
		if err != nil {
			return err
		}
		if existing != nil {
			r.storedVersions++
			r.log.add("🐛 [%d] Synced version %s already exists, skip publish it", index, version)
			r.metrics.RecordVersion(ctx, telemetry.VersionResultSkipped)
			return r.log.flush(ctx)
		}
	}

	cmd := publish.Command{
		Scope:                r.scope,
		Name:                 r.name,
		Version:              version,
		Description:          item.Description,
		Manifest:             item,
		Readme:               r.readme,
		LocalFile:            file.Path,
		IsPrivate:            false,
		PublishTime:          publishTime,
		SkipRefreshManifests: true,
	}
	pv, err := r.publisher.Publish(ctx, cmd, r.users[0])
	switch {
	case err == nil:
		r.syncVersionCount++
		r.storedVersions++
		r.metrics.RecordVersion(ctx, telemetry.VersionResultPublished)
		r.log.add("🟢 [%d] Synced version %s success, packageVersionId: %s", index, version, pv.PackageVersionID)
	case errors.Is(err, pkgstore.ErrVersionExists):
		r.storedVersions++
		r.metrics.RecordVersion(ctx, telemetry.VersionResultSkipped)
		r.log.add("🐛 [%d] Synced version %s already exists, skip publish error", index, version)
	default:
		slog.Error("Publish version failed", "task_id", r.task.TaskID, "package", r.fullname,
			"version", version, "error", err)
		r.lastErrorMessage = fmt.Sprintf("publish error: %s", err)
		r.metrics.RecordVersion(ctx, telemetry.VersionResultFailed)
		r.log.add("❌ [%d] Synced version %s error, %s", index, version, r.lastErrorMessage)
	}
	if err := r.log.flush(ctx); err != nil {
		return err
	}

	if !r.opts.SkipDependencies {
		for _, name := range item.DependencyNames() {
			r.dependencies[name] = true
		}
	}
	return nil
}

// removeVersions drops local versions upstream no longer lists, unless they were
// published before the retention window
func (r *run) removeVersions(ctx context.Context) error {
	if r.local == nil {
		return nil
	}
	local := make([]string, 0, len(r.local.Versions))
	for version := range r.local.Versions {
		if _, ok := r.remote.Versions[version]; !ok {
			local = append(local, version)
		}
	}
	slices.Sort(local)

	for _, version := range local {
		pv, err := r.packages.FindPackageVersion(ctx, r.pkg, version)
		if err != nil {
			return err
		}
		if pv != nil {
			if r.now().Sub(pv.PublishTime) > removeRetention {
				r.log.add("📖 Skip remove version %s, because it was published(%s) more than 7 days",
					version, pv.PublishTime.UTC().Format(isoLayout))
				continue
			}
			if err := r.packages.RemovePackageVersion(ctx, r.pkg, pv); err != nil {
				return err
			}
		}
		r.syncVersionCount++
		r.metrics.RecordVersion(ctx, telemetry.VersionResultRemoved)
		r.log.add("🟢 Removed version %s success", version)
	}
	return nil
}

// syncTags applies upstream dist-tags and removes local ones upstream dropped
func (r *run) syncTags(ctx context.Context) error {
	localTags := map[string]string{}
	if r.local != nil && r.local.DistTags != nil {
		localTags = r.local.DistTags
	}

	var changed []changedTag
	needRefresh := false
	for _, tag := range sortedKeys(r.remote.DistTags) {
		version := r.remote.DistTags[tag]
		ok, err := r.packages.SavePackageTag(ctx, r.pkg, tag, version)
		if err != nil {
			return err
		}
		if ok {
			changed = append(changed, changedTag{Action: "change", Tag: tag, Version: version})
			needRefresh = false
		} else if version != localTags[tag] {
			needRefresh = true
			r.log.add("🚧 Remote tag(%s: %s) not exists in local dist-tags(%s)", tag, version, toJSON(localTags))
		}
	}

	for _, tag := range sortedKeys(localTags) {
		if _, ok := r.remote.DistTags[tag]; ok {
			continue
		}
		ok, err := r.packages.RemovePackageTag(ctx, r.pkg, tag)
		if err != nil {
			return err
		}
		if ok {
			changed = append(changed, changedTag{Action: "remove", Tag: tag})
			needRefresh = false
		}
	}

	if len(changed) > 0 {
		r.log.add("🟢 Synced %d tags: %s", len(changed), toJSON(changed))
	}
	if needRefresh {
		if err := r.packages.RefreshManifestCache(ctx, r.pkg); err != nil {
			return err
		}
		r.log.add("🟢 Refresh package manifests to dist")
	}
	return nil
}

// removeMaintainers saves the synced maintainers on the package and drops the ones
// upstream no longer lists
func (r *run) removeMaintainers(ctx context.Context) error {
	if _, err := r.packages.SavePackageMaintainers(ctx, r.pkg, r.users); err != nil {
		return err
	}
	if r.local == nil {
		return nil
	}

	prefix := r.packages.UserPrefix()
	var removed []manifest.Maintainer
	shouldRefresh := false
	for _, maintainer := range r.local.MaintainerList() {
		name := maintainer.Name
		if strings.HasPrefix(name, prefix) {
			// cached by an older release with the prefix still attached
			name = strings.TrimPrefix(name, prefix)
			shouldRefresh = true
		}
		if _, ok := r.maintainers[name]; ok {
			continue
		}
		user, err := r.packages.FindUserByName(ctx, prefix+name)
		if err != nil {
			return err
		}
		if user == nil {
			continue
		}
		if err := r.packages.RemovePackageMaintainer(ctx, r.pkg, user); err != nil {
			return err
		}
		removed = append(removed, maintainer)
	}

	if len(removed) > 0 {
		r.log.add("🟢 Removed %d maintainers: %s", len(removed), toJSON(removed))
	} else if shouldRefresh {
		if err := r.packages.RefreshMaintainerCache(ctx, r.pkg); err != nil {
			return err
		}
		r.log.add("🟢 Refresh maintainers")
	}
	return nil
}

// cascade admits a sync task for every dependency seen while publishing
func (r *run) cascade(ctx context.Context) error {
	names := sortedKeys(r.dependencies)
	for _, name := range names {
		existing, err := r.tasks.FindTaskByTargetName(ctx, name, task.TypeSyncPackage, task.StateWaiting)
		if err != nil {
			return err
		}
		if existing != nil {
			r.log.add("📖 Has dependency %q sync task: %s", name, existing.TaskID)
			continue
		}
		dep, err := r.CreateTask(ctx, name, task.SyncPackageOptions{
			AuthorID: r.task.AuthorID,
			AuthorIP: r.task.AuthorIP,
			Tips:     fmt.Sprintf("Sync cause by %q dependencies, parent task: %s", r.fullname, r.task.TaskID),
		})
		if err != nil {
			return err
		}
		r.log.add("📦 Add dependency %q sync task: %s", name, dep.TaskID)
	}
	return nil
}

func removeFile(file *fetch.File) {
	if err := file.Remove(); err != nil {
		slog.Warn("Failed to remove downloaded tarball", "path", file.Path, "error", err)
	}
}

func readmeText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
