package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	registryapp "github.com/stacklok/toolhive-registry-mirror/internal/app"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <package>...",
		Short: "Sync packages from the source registry without starting the server",
		Long: `Admit a sync task for every named package and execute the queue in the
foreground. Each task log is printed once the task finishes. The command fails
when any of the named packages did not sync successfully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSync,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("tips", "", "Note recorded in the task log")
	cmd.Flags().Bool("skip-dependencies", false, "Do not create tasks for dependencies of synced versions")
	cmd.Flags().Bool("sync-download-data", false, "Import download statistics from the source registry")
	cmd.Flags().Bool("drain", false, "Keep executing waiting tasks, such as dependency syncs, until the queue is empty")
	return cmd
}

func runSync(cmd *cobra.Command, names []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := newViper(cmd.Flags(), "config", "tips", "skip-dependencies", "sync-download-data", "drain")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	app, err := registryapp.NewRegistryApp(ctx, registryapp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	opts := task.SyncPackageOptions{
		Tips:             v.GetString("tips"),
		SkipDependencies: v.GetBool("skip-dependencies"),
		SyncDownloadData: v.GetBool("sync-download-data"),
	}
	return syncPackages(ctx, cmd, app.SyncManager(), names, opts, v.GetBool("drain"))
}

// syncPackages admits one task per name and runs the queue until those tasks are terminal
func syncPackages(
	ctx context.Context,
	cmd *cobra.Command,
	manager pkgsync.Manager,
	names []string,
	opts task.SyncPackageOptions,
	drain bool,
) error {
	pending := make(map[string]string, len(names))
	order := make([]string, 0, len(names))
	for _, name := range names {
		t, err := manager.CreateTask(ctx, name, opts)
		if err != nil {
			return fmt.Errorf("failed to create sync task for %s: %w", name, err)
		}
		slog.Info("Created sync task", "package", name, "task_id", t.TaskID, "state", t.State)
		if _, seen := pending[t.TaskID]; !seen {
			order = append(order, t.TaskID)
		}
		pending[t.TaskID] = name
	}

	for {
		if !drain && allTerminal(ctx, manager, order) {
			break
		}
		t, err := manager.FindExecuteTask(ctx)
		if err != nil {
			return fmt.Errorf("failed to claim sync task: %w", err)
		}
		if t == nil {
			break
		}
		if err := manager.ExecuteTask(ctx, t); err != nil {
			return fmt.Errorf("failed to execute sync task %s: %w", t.TaskID, err)
		}
	}

	var failed []string
	for _, id := range order {
		t, err := manager.FindTask(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load sync task %s: %w", id, err)
		}
		log, err := manager.FindTaskLog(ctx, id, 0)
		if err != nil && !errors.Is(err, task.ErrLogNotFound) {
			return fmt.Errorf("failed to read log of sync task %s: %w", id, err)
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), log); err != nil {
			return err
		}
		if t.State != task.StateSuccess {
			failed = append(failed, fmt.Sprintf("%s (%s)", pending[id], t.State))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d packages did not sync: %v", len(failed), len(order), failed)
	}
	return nil
}

func allTerminal(ctx context.Context, manager pkgsync.Manager, ids []string) bool {
	for _, id := range ids {
		t, err := manager.FindTask(ctx, id)
		if err != nil || !t.State.IsTerminal() {
			return false
		}
	}
	return true
}
