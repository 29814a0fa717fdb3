package app

import (
	"github.com/stacklok/toolhive-registry-mirror/internal/app/storage"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	"github.com/stacklok/toolhive-registry-mirror/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator executes waiting sync tasks in the background
	SyncCoordinator coordinator.Coordinator

	// SyncManager admits, executes and reports sync tasks
	SyncManager pkgsync.Manager

	// Registries manages the registry records
	Registries *registries.Manager

	// Storage owns the backend shared by every store
	Storage storage.Factory
}
