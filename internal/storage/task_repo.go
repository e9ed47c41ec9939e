package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_task_store.go -package=mocks morph/internal/storage TaskStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// TaskStore defines the interface for task storage operations.
type TaskStore interface {
	// EnsureExists inserts the task if no row with that id exists yet.
	EnsureExists(ctx context.Context, id string, status Status, createdAt time.Time) error
	// Get gets a task by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*TaskRecord, error)
	// Complete moves an in-progress task to a terminal status.
	Complete(ctx context.Context, id string, status Status, errMsg string) error
}

// TaskRepo provides methods for task operations.
// It implements the TaskStore interface.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// EnsureExists inserts the task if no row with that id exists yet.
// An existing row is left untouched.
func (r *TaskRepo) EnsureExists(ctx context.Context, id string, status Status, createdAt time.Time) error {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks (id, status, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING",
		id, string(status), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Get gets a task by id. Returns ErrNotFound if not found.
func (r *TaskRepo) Get(ctx context.Context, id string) (*TaskRecord, error) {
	return getTask(ctx, r.db, id)
}

// Complete moves an in-progress task to a terminal status.
// Terminal rows are immutable, so completing one twice is a no-op.
func (r *TaskRepo) Complete(ctx context.Context, id string, status Status, errMsg string) error {
	return completeTask(ctx, r.db, id, status, errMsg)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryRower, id string) (*TaskRecord, error) {
	var task TaskRecord
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := q.QueryRowContext(ctx,
		"SELECT id, status, created_at, completed_at, error FROM tasks WHERE id = ?",
		id,
	).Scan(&task.ID, &status, &task.CreatedAt, &completedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	task.Status = Status(status)
	task.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	return &task, nil
}

func completeTask(ctx context.Context, e execer, id string, status Status, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot complete task %s with non-terminal status %s", id, status)
	}
	_, err := e.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, error = ?
		 WHERE id = ? AND status = 'in_progress'`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}
