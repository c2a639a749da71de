package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// TaskRepository implements storage.TaskRepository on SQLite.
type TaskRepository struct {
	db *DB
}

var _ storage.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a TaskRepository on an open DB.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Close is a no-op; the shared DB is closed by its owner.
func (r *TaskRepository) Close() error {
	return nil
}

const taskColumns = `id, title, description, status, priority, result, plan, error, created_at, updated_at`

func scanTask(row rowScanner) (*core.Task, error) {
	var (
		t                    core.Task
		id                   int64
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &t.Title, &t.Description, &status, &t.Priority,
		&t.Result, &t.Plan, &t.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.ID = core.ID(id)
	t.Status = core.TaskStatus(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a new task row.
func (r *TaskRepository) CreateTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	if task != nil && task.Status == "" {
		task.Status = core.TaskPending
	}
	if err := core.ValidateTask(task); err != nil {
		return nil, err
	}
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt

	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO tasks(title, description, status, priority, result, plan, error, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, string(task.Status), task.Priority,
		task.Result, task.Plan, task.Error, formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	task.ID = core.ID(id)
	return task, nil
}

// GetTask retrieves a single task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id core.ID) (*core.Task, error) {
	t, err := scanTask(r.db.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return t, err
}

// ListTasks returns every task in creation order.
func (r *TaskRepository) ListTasks(ctx context.Context) ([]*core.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

// ListTasksByStatus returns the tasks in status in creation order.
func (r *TaskRepository) ListTasksByStatus(ctx context.Context, status core.TaskStatus) ([]*core.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY id`, string(status))
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*core.Task, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const nextPendingQuery = `SELECT id FROM tasks WHERE status = 'pending' ORDER BY priority DESC, id ASC LIMIT 1`

// NextPendingTask returns the highest-priority, oldest pending task.
func (r *TaskRepository) NextPendingTask(ctx context.Context) (*core.Task, error) {
	t, err := scanTask(r.db.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = (`+nextPendingQuery+`)`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return t, err
}

// ClaimNextPendingTask moves the next pending task to in_progress with a
// single UPDATE statement, so two claimers can never take the same row.
func (r *TaskRepository) ClaimNextPendingTask(ctx context.Context) (*core.Task, error) {
	t, err := scanTask(r.db.db.QueryRowContext(ctx,
		`UPDATE tasks SET status = 'in_progress', updated_at = ?
		 WHERE id = (`+nextPendingQuery+`) AND status = 'pending'
		 RETURNING `+taskColumns,
		formatTime(time.Now())))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return t, err
}

// UpdateTask applies fn to the stored task and persists the result in one transaction.
func (r *TaskRepository) UpdateTask(ctx context.Context, id core.ID, fn func(*core.Task) error) (*core.Task, error) {
	var result *core.Task
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, int64(id)))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		t.ID = id
		t.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, result = ?, plan = ?, error = ?, updated_at = ?
			 WHERE id = ?`,
			t.Title, t.Description, string(t.Status), t.Priority, t.Result, t.Plan, t.Error,
			formatTime(t.UpdatedAt), int64(id))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
