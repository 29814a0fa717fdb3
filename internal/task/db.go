package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-registry-mirror/internal/db/pgtypes"
	"github.com/stacklok/toolhive-registry-mirror/internal/db/sqlc"
)

// dbStore persists tasks and log chunks in PostgreSQL
type dbStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewDBStore creates a database backed Store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool, now: time.Now}
}

func (d *dbStore) FindTaskByTargetName(ctx context.Context, targetName string, typ Type, state State) (*Task, error) {
	row, err := sqlc.New(d.pool).FindTaskByTarget(ctx, sqlc.FindTaskByTargetParams{
		TargetName: targetName,
		Type:       string(typ),
		State:      string(state),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find task for %s: %w", targetName, err)
	}
	return taskFromRow(row)
}

func (d *dbStore) FindTask(ctx context.Context, taskID string) (*Task, error) {
	id, err := pgtypes.UUID(taskID)
	if err != nil {
		return nil, ErrTaskNotFound
	}
	row, err := sqlc.New(d.pool).GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return taskFromRow(row)
}

func (d *dbStore) SaveTask(ctx context.Context, t *Task) error {
	id, err := pgtypes.UUID(t.TaskID)
	if err != nil {
		return err
	}
	data, err := EncodeData(t.Data)
	if err != nil {
		return err
	}

	now := d.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	logSize, err := sqlc.New(d.pool).UpsertTask(ctx, sqlc.UpsertTaskParams{
		TaskID:     id,
		Type:       string(t.Type),
		State:      string(t.State),
		TargetName: t.TargetName,
		AuthorID:   t.AuthorID,
		AuthorIp:   t.AuthorIP,
		Data:       data,
		Error:      t.Error,
		Attempts:   int32(t.Attempts), //nolint:gosec // attempts stay small
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", t.TaskID, err)
	}
	t.LogSize = logSize
	return nil
}

func (d *dbStore) AppendLog(ctx context.Context, t *Task, text string) error {
	return d.withTx(ctx, func(queries *sqlc.Queries) error {
		size, err := d.appendChunk(ctx, queries, t, text)
		if err != nil {
			return err
		}
		id, _ := pgtypes.UUID(t.TaskID)
		now := d.now()
		if err := queries.UpdateTaskLogSize(ctx, sqlc.UpdateTaskLogSizeParams{
			TaskID:    id,
			LogSize:   size,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to update log size: %w", err)
		}
		t.LogSize = size
		t.UpdatedAt = now
		return nil
	})
}

func (d *dbStore) FinishTask(ctx context.Context, t *Task, state State, text string) error {
	return d.withTx(ctx, func(queries *sqlc.Queries) error {
		size, err := d.appendChunk(ctx, queries, t, text)
		if err != nil {
			return err
		}
		id, _ := pgtypes.UUID(t.TaskID)
		now := d.now()
		if err := queries.FinishTask(ctx, sqlc.FinishTaskParams{
			TaskID:    id,
			State:     string(state),
			Error:     t.Error,
			LogSize:   size,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to finish task: %w", err)
		}
		t.State = state
		t.LogSize = size
		t.UpdatedAt = now
		return nil
	})
}

// appendChunk locks the task row, rejects terminal tasks and writes text as the
// next chunk. It returns the new log size.
func (d *dbStore) appendChunk(ctx context.Context, queries *sqlc.Queries, t *Task, text string) (int64, error) {
	id, err := pgtypes.UUID(t.TaskID)
	if err != nil {
		return 0, err
	}
	locked, err := queries.LockTask(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTaskNotFound
		}
		return 0, fmt.Errorf("failed to lock task %s: %w", t.TaskID, err)
	}
	if State(locked.State).IsTerminal() {
		return 0, ErrTaskFinished
	}
	if text == "" {
		return locked.LogSize, nil
	}

	seq, err := queries.NextTaskLogSeq(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get next log sequence: %w", err)
	}
	if err := queries.InsertTaskLogChunk(ctx, sqlc.InsertTaskLogChunkParams{
		TaskID:     id,
		Seq:        seq,
		ByteOffset: locked.LogSize,
		Content:    text,
		CreatedAt:  d.now(),
	}); err != nil {
		return 0, fmt.Errorf("failed to insert log chunk: %w", err)
	}
	return locked.LogSize + int64(len(text)), nil
}

func (d *dbStore) ReadLog(ctx context.Context, taskID string, offset int64) (string, error) {
	t, err := d.FindTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	if t.LogSize == 0 {
		return "", ErrLogNotFound
	}
	if offset < 0 {
		offset = 0
	}

	id, _ := pgtypes.UUID(taskID)
	chunks, err := sqlc.New(d.pool).ListTaskLogChunksFrom(ctx, sqlc.ListTaskLogChunksFromParams{
		TaskID: id,
		Offset: offset,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read log of task %s: %w", taskID, err)
	}

	var b strings.Builder
	for _, chunk := range chunks {
		if chunk.ByteOffset < offset {
			b.WriteString(chunk.Content[offset-chunk.ByteOffset:])
			continue
		}
		b.WriteString(chunk.Content)
	}
	return b.String(), nil
}

func (d *dbStore) ClaimNextTask(ctx context.Context, typ Type) (*Task, error) {
	row, err := sqlc.New(d.pool).ClaimNextTask(ctx, sqlc.ClaimNextTaskParams{
		UpdatedAt: d.now(),
		Type:      string(typ),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim next %s task: %w", typ, err)
	}
	return taskFromRow(row)
}

func (d *dbStore) withTx(ctx context.Context, fn func(*sqlc.Queries) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			slog.Warn("Failed to roll back task transaction", "error", rollbackErr)
		}
	}()

	if err := fn(sqlc.New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func taskFromRow(row sqlc.Task) (*Task, error) {
	data, err := DecodeData(Type(row.Type), row.Data)
	if err != nil {
		return nil, err
	}
	return &Task{
		TaskID:     pgtypes.UUIDString(row.TaskID),
		Type:       Type(row.Type),
		State:      State(row.State),
		TargetName: row.TargetName,
		AuthorID:   row.AuthorID,
		AuthorIP:   row.AuthorIp,
		Data:       data,
		Error:      row.Error,
		Attempts:   int(row.Attempts),
		LogSize:    row.LogSize,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
