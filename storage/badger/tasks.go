package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// TaskRepository implements storage.TaskRepository for BadgerDB.
type TaskRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(backend *Backend) (*TaskRepository, error) {
	idSeq, err := backend.GetSequence(taskIDSeq)
	if err != nil {
		return nil, err
	}
	return &TaskRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *TaskRepository) Close() error {
	return r.idSeq.Release()
}

// CreateTask stores a new task.
func (r *TaskRepository) CreateTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	if task != nil && task.Status == "" {
		task.Status = core.TaskPending
	}
	if err := core.ValidateTask(task); err != nil {
		return nil, err
	}

	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}
	task.ID = core.ID(id)
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt

	err = r.backend.Update(func(tx *badger.Txn) error {
		return writeJSON(tx, makeTaskKey(task.ID), toTaskRecord(task))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask retrieves a single task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id core.ID) (*core.Task, error) {
	var result *core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = r.readTask(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// ListTasks returns every task in creation order.
func (r *TaskRepository) ListTasks(ctx context.Context) ([]*core.Task, error) {
	var results []*core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		return r.eachTask(tx, func(t *core.Task) {
			results = append(results, t)
		})
	})
	return results, err
}

// ListTasksByStatus returns the tasks in status in creation order.
func (r *TaskRepository) ListTasksByStatus(ctx context.Context, status core.TaskStatus) ([]*core.Task, error) {
	var results []*core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		return r.eachTask(tx, func(t *core.Task) {
			if t.Status == status {
				results = append(results, t)
			}
		})
	})
	return results, err
}

// NextPendingTask returns the highest-priority, oldest pending task.
func (r *TaskRepository) NextPendingTask(ctx context.Context) (*core.Task, error) {
	var result *core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = r.selectPending(tx)
		return err
	})
	return result, err
}

// ClaimNextPendingTask selects the next pending task and marks it in_progress
// in the same transaction. Concurrent claimers conflict and retry, so a task
// is claimed at most once.
func (r *TaskRepository) ClaimNextPendingTask(ctx context.Context) (*core.Task, error) {
	var result *core.Task
	err := r.backend.Update(func(tx *badger.Txn) error {
		task, err := r.selectPending(tx)
		if err != nil {
			return err
		}
		task.Status = core.TaskInProgress
		task.UpdatedAt = time.Now().UTC()
		result = task
		return writeJSON(tx, makeTaskKey(task.ID), toTaskRecord(task))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateTask applies fn to the stored task and persists the result.
func (r *TaskRepository) UpdateTask(ctx context.Context, id core.ID, fn func(*core.Task) error) (*core.Task, error) {
	var result *core.Task
	err := r.backend.Update(func(tx *badger.Txn) error {
		task, err := r.readTask(tx, id)
		if err != nil {
			return err
		}
		if task == nil {
			return storage.ErrNotFound
		}
		if err := fn(task); err != nil {
			return err
		}
		task.ID = id
		task.UpdatedAt = time.Now().UTC()
		result = task
		return writeJSON(tx, makeTaskKey(id), toTaskRecord(task))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// selectPending scans all tasks and returns the best pending candidate.
// Returns ErrNotFound when nothing is pending.
func (r *TaskRepository) selectPending(tx *badger.Txn) (*core.Task, error) {
	var best *core.Task
	err := r.eachTask(tx, func(t *core.Task) {
		if t.Status != core.TaskPending {
			return
		}
		// Tasks iterate in creation order, so strict > keeps the oldest on ties
		if best == nil || t.Priority > best.Priority {
			best = t
		}
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	return best, nil
}

func (r *TaskRepository) eachTask(tx *badger.Txn, fn func(*core.Task)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(taskPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var rec taskRecord
		if err := decodeItem(iter.Item(), &rec); err != nil {
			return err
		}
		fn(rec.toTask())
	}
	return nil
}

// readTask reads a task within a transaction.
// Returns nil, nil if the task doesn't exist.
func (r *TaskRepository) readTask(tx *badger.Txn, id core.ID) (*core.Task, error) {
	var rec taskRecord
	found, err := readJSON(tx, makeTaskKey(id), &rec)
	if err != nil || !found {
		return nil, err
	}
	return rec.toTask(), nil
}
