package task

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store persists tasks and their logs
type Store interface {
	// FindTaskByTargetName returns the most recent task of type for target in state,
	// or nil when there is none
	FindTaskByTargetName(ctx context.Context, targetName string, typ Type, state State) (*Task, error)

	// FindTask returns the task with the given id or ErrTaskNotFound
	FindTask(ctx context.Context, taskID string) (*Task, error)

	// SaveTask inserts or updates a task and refreshes its UpdatedAt
	SaveTask(ctx context.Context, t *Task) error

	// AppendLog atomically appends text to the task log and refreshes UpdatedAt.
	// It returns ErrTaskFinished once the task reached a terminal state.
	AppendLog(ctx context.Context, t *Task, text string) error

	// ReadLog returns the task log from a byte offset, ErrLogNotFound when empty
	ReadLog(ctx context.Context, taskID string, offset int64) (string, error)

	// FinishTask appends the final chunk, persists t.Error and moves the task to a
	// terminal state. It returns ErrTaskFinished when the task is already terminal.
	FinishTask(ctx context.Context, t *Task, state State, text string) error

	// ClaimNextTask moves the oldest waiting task of type to processing and returns it,
	// or nil when nothing is waiting
	ClaimNextTask(ctx context.Context, typ Type) (*Task, error)
}

// StorageType selects a Store implementation
type StorageType string

const (
	// StorageMemory keeps tasks in memory
	StorageMemory StorageType = "memory"
	// StorageDatabase keeps tasks in PostgreSQL
	StorageDatabase StorageType = "database"
)

// NewStore creates a Store for the storage type
func NewStore(storage StorageType, pool *pgxpool.Pool) (Store, error) {
	switch storage {
	case StorageMemory:
		return NewMemoryStore(), nil
	case StorageDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required for database storage")
		}
		return NewDBStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storage)
	}
}
