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


// Package jobs runs background work on a bounded worker pool and keeps an
// observable record of every job: when it was enqueued, whether it is still
// running, and how it ended.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	defaultPoolSize   = 4
	defaultMaxHistory = 1000
)

// ErrQueueClosed is returned by Submit after Release.
var ErrQueueClosed = errors.New("job queue is closed")

// Status represents the state of a background job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is a snapshot of a background job.
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Target      string     `json:"target,omitempty"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Func is the unit of work executed by the queue.
type Func func(ctx context.Context) error

// Queue executes jobs on an ants worker pool and records their outcome.
type Queue struct {
	pool       *ants.Pool
	poolSize   int
	maxHistory int
	logger     *slog.Logger

	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue) error

// WithPoolSize sets the number of concurrent workers. Default is 4.
func WithPoolSize(size int) Option {
	return func(q *Queue) error {
		if size < 1 {
			size = 1
		}
		q.poolSize = size
		return nil
	}
}

// WithHistory bounds how many finished jobs are remembered. Default is 1000.
func WithHistory(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			return fmt.Errorf("job history must be positive, got %d", n)
		}
		q.maxHistory = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// NewQueue creates a queue with its worker pool.
func NewQueue(opts ...Option) (*Queue, error) {
	q := &Queue{
		poolSize:   defaultPoolSize,
		maxHistory: defaultMaxHistory,
		logger:     slog.Default().With("component", "jobs"),
		jobs:       make(map[string]*Job),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(q.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	q.pool = pool
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q, nil
}

// Submit enqueues fn and returns immediately with the pending job record.
// jobType groups jobs ("embed", "understand"); target names what they act on.
func (q *Queue) Submit(jobType, target string, fn Func) (Job, error) {
	if q.closed.Load() {
		return Job{}, ErrQueueClosed
	}

	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Type:      jobType,
		Target:    target,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	q.mu.Lock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.trimLocked()
	snapshot := *job
	q.mu.Unlock()

	q.logger.Debug("job enqueued", "job_id", job.ID, "type", jobType, "target", target)

	q.wg.Add(1)
	// Hand off to the pool from a goroutine so a saturated pool never
	// blocks the submitter.
	go func() {
		err := q.pool.Submit(func() {
			defer q.wg.Done()
			q.run(job.ID, fn)
		})
		if err != nil {
			q.finish(job.ID, fmt.Errorf("failed to schedule job: %w", err))
			q.wg.Done()
		}
	}()

	return snapshot, nil
}

func (q *Queue) run(id string, fn Func) {
	q.update(id, func(j *Job) {
		now := time.Now()
		j.Status = StatusRunning
		j.StartedAt = &now
	})

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		err = fn(q.ctx)
	}()
	q.finish(id, err)
}

func (q *Queue) finish(id string, err error) {
	var job Job
	q.update(id, func(j *Job) {
		now := time.Now()
		j.CompletedAt = &now
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
		} else {
			j.Status = StatusCompleted
		}
		job = *j
	})

	if err != nil {
		q.logger.Warn("job failed", "job_id", id, "type", job.Type, "target", job.Target, "error", err)
		return
	}
	q.logger.Debug("job completed", "job_id", id, "type", job.Type, "target", job.Target)
}

func (q *Queue) update(id string, fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		fn(j)
	}
}

// trimLocked forgets the oldest finished jobs beyond the history bound.
func (q *Queue) trimLocked() {
	excess := len(q.order) - q.maxHistory
	if excess <= 0 {
		return
	}
	kept := q.order[:0]
	for _, id := range q.order {
		j := q.jobs[id]
		if excess > 0 && (j.Status == StatusCompleted || j.Status == StatusFailed) {
			delete(q.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

// Get retrieves a job by ID.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns all remembered jobs, most recent first.
func (q *Queue) List() []Job {
	q.mu.RLock()
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.jobs[id])
	}
	q.mu.RUnlock()

	slices.Reverse(out)
	return out
}

// Stats counts remembered jobs by status.
func (q *Queue) Stats() map[Status]int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	stats := make(map[Status]int, 4)
	for _, j := range q.jobs {
		stats[j.Status]++
	}
	return stats
}

// Wait blocks until every submitted job has finished or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release stops accepting jobs, waits up to timeout for running ones, then
// cancels whatever is left and frees the pool.
func (q *Queue) Release(timeout time.Duration) error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	waitErr := q.Wait(ctx)

	q.cancel()
	q.pool.Release()
	if waitErr != nil {
		q.logger.Warn("released job queue with jobs still running", "timeout", timeout)
		return fmt.Errorf("job queue release: %w", waitErr)
	}
	return nil
}
