// Package taskqueue is the async task queue concurrency substrate: a
// priority queue of typed tasks drained by a bounded worker pool, with
// retry-until-exhausted semantics and throughput/latency counters.
package taskqueue

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Priority orders tasks within the queue; higher runs first.
type Priority int

// Recognised priority bands.
const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// Status is a task's position in its lifecycle.
type Status string

// Recognised task statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is one unit of queued work. Type identifies the handler dispatched
// by the queue's Handler func; Payload is handler-specific.
type Task struct {
	ID         string
	Type       string
	Payload    any
	Priority   Priority
	MaxRetries int
	CreatedAt  time.Time

	mu         sync.Mutex
	status     Status
	attempts   int
	lastErr    error
	startedAt  time.Time
	finishedAt time.Time
}

// Snapshot is a point-in-time, lock-free copy of a task's state, safe to
// hand to callers outside the queue's internal locking.
type Snapshot struct {
	ID         string
	Type       string
	Priority   Priority
	Status     Status
	Attempts   int
	MaxRetries int
	LastErr    error
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

func (t *Task) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID: t.ID, Type: t.Type, Priority: t.Priority, Status: t.status,
		Attempts: t.attempts, MaxRetries: t.MaxRetries, LastErr: t.lastErr,
		CreatedAt: t.CreatedAt, StartedAt: t.startedAt, FinishedAt: t.finishedAt,
	}
}

// Handler executes one task. A returned error triggers a retry if the
// task has attempts remaining, otherwise the task is marked failed.
type Handler func(ctx context.Context, task *Task) error

// Counters are the queue's cumulative throughput statistics.
type Counters struct {
	Pending    int
	Processing int
	Completed  int64
	Failed     int64
}

// Queue is a bounded-concurrency priority task queue. Tasks of equal
// priority run in FIFO (created-at) order.
type Queue struct {
	maxWorkers int
	handlers   map[string]Handler

	mu        sync.Mutex
	pq        priorityQueue
	byID      map[string]*Task
	failed    map[string]*Task
	completed int64
	failedN   int64

	sem  chan struct{}
	wake chan struct{}
	wg   sync.WaitGroup

	totalLatency time.Duration
	latencyCount int64
}

// New returns a queue with maxWorkers concurrent handler executions
// (defaulting to 4 when maxWorkers <= 0) dispatching to handlers by
// task type.
func New(maxWorkers int, handlers map[string]Handler) *Queue {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Queue{
		maxWorkers: maxWorkers,
		handlers:   handlers,
		byID:       make(map[string]*Task),
		failed:     make(map[string]*Task),
		sem:        make(chan struct{}, maxWorkers),
		wake:       make(chan struct{}, 1),
	}
}

// Enqueue adds task to the queue and signals a worker to pick it up.
func (q *Queue) Enqueue(task *Task) {
	task.mu.Lock()
	task.status = StatusPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.mu.Unlock()

	q.mu.Lock()
	q.byID[task.ID] = task
	heap.Push(&q.pq, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled, dispatching up to
// maxWorkers tasks concurrently.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			return
		case q.sem <- struct{}{}:
			task, ok := q.pop()
			if !ok {
				<-q.sem
				select {
				case <-ctx.Done():
					q.wg.Wait()
					return
				case <-q.wake:
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				defer func() { <-q.sem }()
				q.process(ctx, task)
			}()
		}
	}
}

func (q *Queue) pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pq.Len() == 0 {
		return nil, false
	}
	task := heap.Pop(&q.pq).(*Task)
	return task, true
}

func (q *Queue) process(ctx context.Context, task *Task) {
	task.mu.Lock()
	task.status = StatusProcessing
	task.attempts++
	task.startedAt = time.Now()
	task.mu.Unlock()

	handler, ok := q.handlers[task.Type]
	if !ok {
		q.finish(task, fmt.Errorf("taskqueue: no handler registered for type %q", task.Type), false)
		return
	}

	err := handler(ctx, task)
	if err == nil {
		q.finish(task, nil, false)
		return
	}

	task.mu.Lock()
	canRetry := task.attempts < task.MaxRetries
	task.mu.Unlock()

	if canRetry {
		slog.Warn("taskqueue: task failed, retrying", "task", task.ID, "type", task.Type, "attempt", task.attempts, "err", err)
		task.mu.Lock()
		task.status = StatusPending
		task.lastErr = err
		task.mu.Unlock()
		q.Enqueue(task)
		return
	}
	q.finish(task, err, true)
}

func (q *Queue) finish(task *Task, err error, permanentFailure bool) {
	task.mu.Lock()
	task.finishedAt = time.Now()
	task.lastErr = err
	latency := task.finishedAt.Sub(task.startedAt)
	if err != nil {
		task.status = StatusFailed
	} else {
		task.status = StatusCompleted
	}
	task.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.totalLatency += latency
	q.latencyCount++
	if err != nil {
		q.failedN++
		if permanentFailure {
			q.failed[task.ID] = task
		}
	} else {
		q.completed++
	}
}

// Get returns a snapshot of the task by id.
func (q *Queue) Get(id string) (Snapshot, bool) {
	q.mu.Lock()
	task, ok := q.byID[id]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return task.snapshot(), true
}

// Cancel removes a still-pending task from the queue. It returns false
// if the task is not found or is already processing/finished.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.byID[id]
	if !ok {
		return false
	}
	task.mu.Lock()
	pending := task.status == StatusPending
	task.mu.Unlock()
	if !pending {
		return false
	}
	q.pq.remove(task)
	delete(q.byID, id)
	return true
}

// Retry re-enqueues a failed task with its attempt counter reset. It
// returns false if the task is not in the failed set.
func (q *Queue) Retry(id string) bool {
	q.mu.Lock()
	task, ok := q.failed[id]
	if ok {
		delete(q.failed, id)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	task.mu.Lock()
	task.attempts = 0
	task.lastErr = nil
	task.mu.Unlock()
	q.Enqueue(task)
	return true
}

// Counters returns the queue's current pending/processing gauges and
// cumulative completed/failed totals.
func (q *Queue) Counters() Counters {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := 0
	for _, t := range q.byID {
		if s := t.snapshot(); s.Status == StatusProcessing {
			processing++
		}
	}
	return Counters{
		Pending:    q.pq.Len(),
		Processing: processing,
		Completed:  q.completed,
		Failed:     q.failedN,
	}
}

// AverageLatency returns the mean handler execution time across all
// finished tasks (completed or permanently failed).
func (q *Queue) AverageLatency() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.latencyCount == 0 {
		return 0
	}
	return q.totalLatency / time.Duration(q.latencyCount)
}
