// Package sync mirrors packages from an upstream registry into the local one.
//
// One sync task drives one package. The Manager interface covers the task
// lifecycle, and Syncer is its implementation.
//
// # Admission
//
// CreateTask returns the pending task of a package when there is one: a waiting
// task, or a processing task whose log was appended to during the last minute.
// A processing task that stayed silent longer is presumed dead and a new task is
// admitted next to it.
//
// # Execution
//
// ExecuteTask runs these steps in order, narrating each decision in the task log:
//
//   - block list check, failing without any network call
//   - delegated sync, when the upstream is itself a mirror (see below)
//   - manifest fetch
//   - maintainers saved as local users, with the security holding fallback
//   - unpublished packages removed locally, or invalid maintainers failing the task
//   - versions: missing ones downloaded and published, metadata drift of existing
//     ones applied in place
//   - versions upstream dropped removed, unless published more than 7 days ago
//   - dist-tags upserted and removed
//   - package maintainers saved, dropped ones removed
//   - dependency sync tasks admitted, unless skipDependencies is set
//   - download counters imported, when requested and configured
//
// Per version failures do not fail the task; the last one is kept as the task
// error of a successful task. Phase failures of the delegated sync and of the
// download counter import never change the verdict.
//
// # Delegated sync
//
// When sync.sourceRegistryIsMirror is set, the upstream is asked to create its own
// sync job for the package first. Its log is polled with a random 1s to 6s pause
// between polls until the job reports done or sync.sourceRegistrySyncTimeout
// elapses. The random source and the sleep are injectable for tests.
//
// # Coordinator
//
// The sync/coordinator subpackage claims waiting tasks and executes them on a
// bounded worker pool.
package sync
