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
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/glyph/core"
)

const (
	// DefaultInterval is the poll interval of the executor loop.
	DefaultInterval = 5 * time.Second

	// DefaultStepTimeout bounds a single plan step.
	DefaultStepTimeout = 2 * time.Minute
)

// TaskPlanner turns a task into plan steps.
type TaskPlanner interface {
	Plan(ctx context.Context, task *core.Task) ([]core.PlanStep, error)
}

// Executor polls for pending tasks and runs them one at a time.
type Executor struct {
	manager     *Manager
	planner     TaskPlanner
	toolbox     Toolbox
	interval    time.Duration
	stepTimeout time.Duration
	logger      *slog.Logger

	busy    atomic.Bool
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor) error

// WithInterval sets the poll interval. Default is 5s.
func WithInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) error {
		if d <= 0 {
			return fmt.Errorf("interval must be positive, got %v", d)
		}
		e.interval = d
		return nil
	}
}

// WithStepTimeout bounds each plan step. Default is 2m.
func WithStepTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) error {
		if d <= 0 {
			return fmt.Errorf("step timeout must be positive, got %v", d)
		}
		e.stepTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExecutor creates an executor. Call Start to begin polling.
func NewExecutor(manager *Manager, planner TaskPlanner, toolbox Toolbox, opts ...ExecutorOption) (*Executor, error) {
	if manager == nil {
		return nil, errors.New("workflow manager required")
	}
	if planner == nil {
		return nil, errors.New("planner required")
	}
	if toolbox == nil {
		return nil, errors.New("toolbox required")
	}

	e := &Executor{
		manager:     manager,
		planner:     planner,
		toolbox:     toolbox,
		interval:    DefaultInterval,
		stepTimeout: DefaultStepTimeout,
		logger:      slog.Default().With("component", "executor"),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Start fails any task a previous run left in progress, then runs the poll
// loop in the background until ctx is done or Stop is called. Calling Start
// more than once has no effect.
func (e *Executor) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	if failed, err := e.manager.FailInterrupted(ctx); err != nil {
		e.logger.Error("error recovering interrupted tasks", "err", err)
	} else if len(failed) > 0 {
		e.logger.Warn("recovered interrupted tasks", "count", len(failed))
	}
	e.logger.Info("task executor started", "interval", e.interval)

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				e.logger.Info("task executor stopped", "reason", ctx.Err())
				return
			case <-e.stop:
				e.logger.Info("task executor stopped")
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Stop ends the poll loop and waits for the current tick to finish.
func (e *Executor) Stop() {
	e.once.Do(func() { close(e.stop) })
	if e.started.Load() {
		<-e.done
	}
}

// Done is closed once the poll loop has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Busy reports whether a tick is running.
func (e *Executor) Busy() bool {
	return e.busy.Load()
}

// Tick claims and runs the next pending task. It returns false without
// doing anything when another tick is still running or nothing is pending.
func (e *Executor) Tick(ctx context.Context) (ran bool) {
	if !e.busy.CompareAndSwap(false, true) {
		return false
	}
	defer e.busy.Store(false)

	var task *core.Task
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while executing task", "panic", r)
			if task != nil {
				e.finish(ctx, task, nil, fmt.Errorf("panic: %v", r))
			}
			ran = task != nil
		}
	}()

	task, err := e.manager.ClaimNextPendingTask(ctx)
	if err != nil {
		e.logger.Error("error claiming task", "err", err)
		return false
	}
	if task == nil {
		return false
	}

	e.logger.Info("processing task", "task_id", task.ID, "title", task.Title)
	results, err := e.execute(ctx, task)
	e.finish(ctx, task, results, err)
	return true
}

func (e *Executor) execute(ctx context.Context, task *core.Task) ([]core.StepResult, error) {
	steps, err := e.planner.Plan(ctx, task)
	if err != nil {
		return nil, err
	}
	if err := e.manager.SetPlan(ctx, task.ID, steps); err != nil {
		return nil, err
	}

	results := make([]core.StepResult, 0, len(steps))
	for _, step := range steps {
		e.logger.Info("executing step", "task_id", task.ID, "step", step.ID, "tool", step.Tool, "description", step.Description)

		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		output, err := e.toolbox.Run(stepCtx, step)
		cancel()
		if err != nil {
			return results, &TaskExecutionError{TaskID: task.ID, StepID: step.ID, Tool: step.Tool, Err: err}
		}
		results = append(results, core.StepResult{StepID: step.ID, Tool: step.Tool, Output: output})
	}
	return results, nil
}

// finish records the outcome. It uses a context detached from cancellation
// so a shutdown mid-task still leaves the task in a terminal state.
func (e *Executor) finish(ctx context.Context, task *core.Task, results []core.StepResult, runErr error) {
	ctx = context.WithoutCancel(ctx)

	if runErr != nil {
		e.logger.Error("task failed", "task_id", task.ID, "err", runErr)
		if _, err := e.manager.UpdateTaskStatus(ctx, task.ID, core.TaskFailed, "", runErr.Error()); err != nil {
			e.logger.Error("error recording task failure", "task_id", task.ID, "err", err)
		}
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		e.finish(ctx, task, nil, fmt.Errorf("failed to encode results: %w", err))
		return
	}
	if _, err := e.manager.UpdateTaskStatus(ctx, task.ID, core.TaskCompleted, string(data), ""); err != nil {
		e.logger.Error("error recording task completion", "task_id", task.ID, "err", err)
		return
	}
	e.logger.Info("task completed", "task_id", task.ID, "steps", len(results))
}
