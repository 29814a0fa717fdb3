// Package task models sync tasks, their append-only logs and the stores that persist them.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a task
type State string

const (
	// StateWaiting means the task is admitted and waits for a worker
	StateWaiting State = "waiting"
	// StateProcessing means a worker is executing the task
	StateProcessing State = "processing"
	// StateSuccess is terminal
	StateSuccess State = "success"
	// StateFail is terminal
	StateFail State = "fail"
)

// IsTerminal reports whether no further transition is allowed
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFail
}

// Type identifies the kind of work a task performs
type Type string

// TypeSyncPackage synchronizes one package from upstream
const TypeSyncPackage Type = "sync_package"

var (
	// ErrTaskNotFound is returned when no task matches the given id
	ErrTaskNotFound = errors.New("task not found")
	// ErrLogNotFound is returned when a task has not written any log yet
	ErrLogNotFound = errors.New("task log not found")
	// ErrTaskFinished is returned when mutating a task in a terminal state
	ErrTaskFinished = errors.New("task already finished")
)

// Options carries the type specific parameters of a task
type Options interface {
	TaskType() Type
}

// SyncPackageOptions are the parameters of a TypeSyncPackage task
type SyncPackageOptions struct {
	Tips             string `json:"tips,omitempty"`
	SkipDependencies bool   `json:"skipDependencies,omitempty"`
	SyncDownloadData bool   `json:"syncDownloadData,omitempty"`
	AuthorID         string `json:"authorId,omitempty"`
	AuthorIP         string `json:"authorIp,omitempty"`
}

// TaskType implements Options
func (SyncPackageOptions) TaskType() Type {
	return TypeSyncPackage
}

// Task is one unit of sync work and its bookkeeping
type Task struct {
	TaskID     string
	Type       Type
	State      State
	TargetName string
	AuthorID   string
	AuthorIP   string
	Data       Options
	// Error is the terminal failure reason, or the last recoverable error on success
	Error    string
	Attempts int
	// LogSize is the number of bytes written to the task log
	LogSize   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSyncPackageTask builds a waiting sync task for fullname
func NewSyncPackageTask(fullname string, opts SyncPackageOptions) *Task {
	return &Task{
		TaskID:     uuid.NewString(),
		Type:       TypeSyncPackage,
		State:      StateWaiting,
		TargetName: fullname,
		AuthorID:   opts.AuthorID,
		AuthorIP:   opts.AuthorIP,
		Data:       opts,
	}
}

// SyncPackageOptions returns the sync options, zero valued for other task types
func (t *Task) SyncPackageOptions() SyncPackageOptions {
	if opts, ok := t.Data.(SyncPackageOptions); ok {
		return opts
	}
	if opts, ok := t.Data.(*SyncPackageOptions); ok && opts != nil {
		return *opts
	}
	return SyncPackageOptions{}
}

// Clone returns a copy that shares nothing mutable with t
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// EncodeData serializes task options for storage
func EncodeData(opts Options) ([]byte, error) {
	if opts == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(opts)
}

// DecodeData deserializes stored options according to the task type
func DecodeData(typ Type, data []byte) (Options, error) {
	switch typ {
	case TypeSyncPackage:
		var opts SyncPackageOptions
		if len(data) > 0 {
			if err := json.Unmarshal(data, &opts); err != nil {
				return nil, fmt.Errorf("failed to decode %s options: %w", typ, err)
			}
		}
		return opts, nil
	default:
		return nil, fmt.Errorf("unknown task type: %s", typ)
	}
}
