// Package scheduler runs the store's periodic background jobs — cleanup
// sweeps, health checks, monitoring snapshots — on a cron clock, with a
// concurrency cap, a priority queue for jobs waiting on that cap,
// retry-with-backoff, per-run timeouts, and escalation to a self
// health-check when a job fails too many times in a row.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work. Name identifies it in logs and
// health snapshots; Spec is a standard five-field cron expression (the
// scheduler does not use cron.WithSeconds, matching whole-minute
// granularity); Priority orders jobs competing for a concurrency slot
// when several come due at once (lower runs first; the zero value is
// the highest priority); Timeout bounds a single run; Run does the work.
type Job struct {
	Name     string
	Spec     string
	Priority int
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// RunResult records the outcome of a single job execution, kept in the
// scheduler's bounded history for health/monitoring surfaces.
type RunResult struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Err      error
	Attempts int
}

const (
	// defaultMaxConcurrent matches the store's documented maxConcurrentJobs
	// default.
	defaultMaxConcurrent = 3
	defaultMaxRetries    = 2
	historySize          = 50

	// failureEscalationFactor: once a job's consecutive failures exceed
	// this many times its retry budget, the scheduler runs its self
	// health-check (if one is registered).
	failureEscalationFactor = 2

	selfHealthCheckTimeout = 30 * time.Second
)

// Option configures a Scheduler beyond its concurrency cap.
type Option func(*Scheduler)

// WithSelfHealthCheck registers a liveness probe the scheduler runs on
// its own, off the cron clock, the moment any job's consecutive
// failures exceed twice its retry budget. Typically a cheap storage
// query plus a memory-pressure check.
func WithSelfHealthCheck(fn func(ctx context.Context) error) Option {
	return func(s *Scheduler) { s.selfHealthCheck = fn }
}

// Scheduler owns a cron clock, a priority queue of jobs waiting for a
// concurrency slot, and per-job consecutive-failure counters. Cron's
// own SkipIfStillRunning chain skips a job's next tick (logging a
// warning) if its previous run — including any time spent waiting in
// the priority queue — has not finished yet.
type Scheduler struct {
	cron          *cron.Cron
	maxConcurrent int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    jobQueue
	running  int
	history  []RunResult
	failures map[string]int

	selfHealthCheck    func(ctx context.Context) error
	healthCheckRunning bool

	wg sync.WaitGroup
}

// New returns a scheduler with maxConcurrent simultaneous job runs
// (defaulting to 3 when maxConcurrent <= 0, the store's documented
// maxConcurrentJobs default).
func New(maxConcurrent int, opts ...Option) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	s := &Scheduler{
		cron:          cron.New(cron.WithChain(cron.SkipIfStillRunning(slogCronLogger{}))),
		maxConcurrent: maxConcurrent,
		failures:      make(map[string]int),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds job to the cron clock. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", job.Name, err)
	}
	return nil
}

// Start begins the cron clock. It returns immediately; jobs fire on
// their own goroutines as their schedules come due.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron clock and waits up to timeout for any in-flight
// job runs to finish, returning false if the timeout elapsed first.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(timeout):
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// acquire enters item into the priority queue and blocks until it is
// both the highest-priority queued item and a concurrency slot is
// free, then claims the slot.
func (s *Scheduler) acquire(item *queueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.queue, item)
	for !(s.running < s.maxConcurrent && len(s.queue) > 0 && s.queue[0] == item) {
		s.cond.Wait()
	}
	heap.Pop(&s.queue)
	s.running++
}

// release frees item's concurrency slot and wakes every goroutine
// waiting in acquire so the next-highest-priority item can recheck.
func (s *Scheduler) release() {
	s.mu.Lock()
	s.running--
	s.cond.Broadcast()
	s.mu.Unlock()
}

// runJob waits its turn in the priority queue, runs job with
// retry-with-backoff up to defaultMaxRetries attempts bounded by
// job.Timeout per attempt, records the outcome in history, and tracks
// consecutive failures for self-health-check escalation.
func (s *Scheduler) runJob(job Job) {
	item := &queueItem{job: job, enqueued: time.Now()}
	s.acquire(item)
	s.wg.Add(1)
	defer func() {
		s.release()
		s.wg.Done()
	}()

	started := time.Now()
	attempts := 0
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(defaultMaxRetries))
	err := backoff.Retry(func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if runErr := job.Run(ctx); runErr != nil {
			slog.Warn("scheduler: job run failed", "job", job.Name, "attempt", attempts, "err", runErr)
			return runErr
		}
		return nil
	}, policy)

	result := RunResult{Job: job.Name, Started: started, Duration: time.Since(started), Err: err, Attempts: attempts}
	s.record(result)
	if err != nil {
		slog.Warn("scheduler: job exhausted retries", "job", job.Name, "attempts", attempts, "err", err)
		s.noteFailure(job.Name)
	} else {
		s.clearFailures(job.Name)
	}
}

// noteFailure increments job's consecutive-failure counter and, once it
// exceeds failureEscalationFactor times the retry budget, runs the
// registered self health-check in its own goroutine.
func (s *Scheduler) noteFailure(jobName string) {
	s.mu.Lock()
	s.failures[jobName]++
	n := s.failures[jobName]
	s.mu.Unlock()

	if n > failureEscalationFactor*defaultMaxRetries {
		s.escalate(jobName, n)
	}
}

func (s *Scheduler) clearFailures(jobName string) {
	s.mu.Lock()
	delete(s.failures, jobName)
	s.mu.Unlock()
}

// escalate runs the self health-check if one is registered and none is
// already in flight. It never blocks the caller.
func (s *Scheduler) escalate(jobName string, consecutiveFailures int) {
	s.mu.Lock()
	if s.selfHealthCheck == nil || s.healthCheckRunning {
		s.mu.Unlock()
		return
	}
	s.healthCheckRunning = true
	s.mu.Unlock()

	slog.Error("scheduler: consecutive failures exceeded retry budget, running self health-check",
		"job", jobName, "consecutive_failures", consecutiveFailures)

	go func() {
		defer func() {
			s.mu.Lock()
			s.healthCheckRunning = false
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), selfHealthCheckTimeout)
		defer cancel()
		if err := s.selfHealthCheck(ctx); err != nil {
			slog.Error("scheduler: self health-check failed", "err", err)
		}
	}()
}

func (s *Scheduler) record(r RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// History returns a copy of the scheduler's recent run results, most
// recent last.
func (s *Scheduler) History() []RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunResult, len(s.history))
	copy(out, s.history)
	return out
}

// Running reports how many jobs are currently executing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// HealthCheckJob returns a Job that samples runtime memory stats and logs
// a warning if heap usage exceeds maxHeapBytes. It never returns an
// error itself — a failing health check is a log event, not a retry.
func HealthCheckJob(maxHeapBytes uint64) Job {
	return Job{
		Name:     "healthcheck",
		Spec:     "@every 1m",
		Priority: 0,
		Timeout:  10 * time.Second,
		Run: func(ctx context.Context) error {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			if m.HeapAlloc > maxHeapBytes {
				slog.Warn("scheduler: heap usage above threshold", "heap_bytes", m.HeapAlloc, "threshold", maxHeapBytes)
			}
			return nil
		},
	}
}

// slogCronLogger adapts cron's Logger interface to the store's ambient
// log/slog logging so SkipIfStillRunning's skip notices and any cron
// internal errors flow through the same structured log as everything
// else.
type slogCronLogger struct{}

func (slogCronLogger) Info(msg string, kv ...any) {
	slog.Warn("scheduler: "+msg, kv...)
}

func (slogCronLogger) Error(err error, msg string, kv ...any) {
	slog.Error("scheduler: "+msg, append(kv, "err", err)...)
}
