// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// Manager owns the task lifecycle. Status only ever moves forward:
// pending -> in_progress -> completed or failed.
type Manager struct {
	repo   storage.TaskRepository
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager) error

// WithManagerLogger sets a custom logger.
// Default is slog.Default().
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a task manager over repo.
func NewManager(repo storage.TaskRepository, opts ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, ErrTaskRepositoryRequired
	}
	m := &Manager{
		repo:   repo,
		logger: slog.Default().With("component", "workflow"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CreateTask stores a new pending task.
func (m *Manager) CreateTask(ctx context.Context, title, description string, priority int) (*core.Task, error) {
	task := &core.Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      core.TaskPending,
	}
	if err := core.ValidateTask(task); err != nil {
		return nil, err
	}

	created, err := m.repo.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	m.logger.Info("task created", "task_id", created.ID, "title", created.Title, "priority", created.Priority)
	return created, nil
}

// GetTask retrieves a task by ID.
func (m *Manager) GetTask(ctx context.Context, id core.ID) (*core.Task, error) {
	task, err := m.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// ListTasks returns every task in creation order.
func (m *Manager) ListTasks(ctx context.Context) ([]*core.Task, error) {
	return m.repo.ListTasks(ctx)
}

// GetNextPendingTask returns the pending task with the highest priority,
// oldest first among equals, or nil when nothing is pending.
func (m *Manager) GetNextPendingTask(ctx context.Context) (*core.Task, error) {
	task, err := m.repo.NextPendingTask(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending task: %w", err)
	}
	return task, nil
}

// ClaimNextPendingTask moves the next pending task to in_progress in one
// store transaction and returns it, or nil when nothing is pending.
func (m *Manager) ClaimNextPendingTask(ctx context.Context) (*core.Task, error) {
	task, err := m.repo.ClaimNextPendingTask(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending task: %w", err)
	}
	return task, nil
}

// UpdateTaskStatus moves a task to status and records result and errMsg.
// Backward or sideways moves fail with ErrInvalidTransition.
func (m *Manager) UpdateTaskStatus(ctx context.Context, id core.ID, status core.TaskStatus, result, errMsg string) (*core.Task, error) {
	if err := core.ValidateTaskStatus(status); err != nil {
		return nil, err
	}

	task, err := m.repo.UpdateTask(ctx, id, func(t *core.Task) error {
		if !t.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
		}
		t.Status = status
		t.Result = result
		t.Error = errMsg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}

	m.logger.Debug("task status updated", "task_id", id, "status", status)
	return task, nil
}

// FailInterrupted marks every in_progress task as failed. It runs before
// the executor polls, when no task can legitimately be in progress, and
// returns the tasks it failed.
func (m *Manager) FailInterrupted(ctx context.Context) ([]*core.Task, error) {
	stuck, err := m.repo.ListTasksByStatus(ctx, core.TaskInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-progress tasks: %w", err)
	}

	failed := make([]*core.Task, 0, len(stuck))
	for _, t := range stuck {
		task, err := m.UpdateTaskStatus(ctx, t.ID, core.TaskFailed, "", ErrInterrupted.Error())
		if err != nil {
			return failed, err
		}
		m.logger.Warn("failed interrupted task", "task_id", task.ID, "title", task.Title)
		failed = append(failed, task)
	}
	return failed, nil
}

// SetPlan stores the parsed plan on the task.
func (m *Manager) SetPlan(ctx context.Context, id core.ID, plan []core.PlanStep) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = m.repo.UpdateTask(ctx, id, func(t *core.Task) error {
		t.Plan = string(data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store plan for task %d: %w", id, err)
	}
	return nil
}
