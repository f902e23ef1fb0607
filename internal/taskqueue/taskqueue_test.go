package taskqueue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/taskqueue"
)

func TestQueue_ProcessesTaskSuccessfully(t *testing.T) {
	c := qt.New(t)
	var ran int32
	q := taskqueue.New(2, map[string]taskqueue.Handler{
		"noop": func(ctx context.Context, task *taskqueue.Task) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	q.Enqueue(&taskqueue.Task{ID: "t1", Type: "noop", MaxRetries: 1})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := q.Get("t1"); ok && snap.Status == taskqueue.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap, ok := q.Get("t1")
	c.Assert(ok, qt.IsTrue)
	c.Assert(snap.Status, qt.Equals, taskqueue.StatusCompleted)
	c.Assert(atomic.LoadInt32(&ran), qt.Equals, int32(1))
}

func TestQueue_RetriesUntilExhaustedThenFails(t *testing.T) {
	c := qt.New(t)
	var attempts int32
	q := taskqueue.New(1, map[string]taskqueue.Handler{
		"always-fails": func(ctx context.Context, task *taskqueue.Task) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("boom")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	q.Enqueue(&taskqueue.Task{ID: "t1", Type: "always-fails", MaxRetries: 3})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := q.Get("t1"); ok && snap.Status == taskqueue.StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap, ok := q.Get("t1")
	c.Assert(ok, qt.IsTrue)
	c.Assert(snap.Status, qt.Equals, taskqueue.StatusFailed)
	c.Assert(atomic.LoadInt32(&attempts), qt.Equals, int32(3))

	counters := q.Counters()
	c.Assert(counters.Failed, qt.Equals, int64(1))
}

func TestQueue_CancelRemovesPendingTask(t *testing.T) {
	c := qt.New(t)
	q := taskqueue.New(1, map[string]taskqueue.Handler{
		"noop": func(ctx context.Context, task *taskqueue.Task) error { return nil },
	})

	q.Enqueue(&taskqueue.Task{ID: "t1", Type: "noop", MaxRetries: 1})
	ok := q.Cancel("t1")
	c.Assert(ok, qt.IsTrue)

	counters := q.Counters()
	c.Assert(counters.Pending, qt.Equals, 0)
}

func TestQueue_HigherPriorityRunsFirst(t *testing.T) {
	c := qt.New(t)
	var order []string
	done := make(chan struct{})
	q := taskqueue.New(1, map[string]taskqueue.Handler{
		"record": func(ctx context.Context, task *taskqueue.Task) error {
			order = append(order, task.ID)
			if len(order) == 2 {
				close(done)
			}
			return nil
		},
	})

	q.Enqueue(&taskqueue.Task{ID: "low", Type: "record", Priority: taskqueue.PriorityLow, MaxRetries: 1})
	q.Enqueue(&taskqueue.Task{ID: "high", Type: "record", Priority: taskqueue.PriorityHigh, MaxRetries: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never completed")
	}
	c.Assert(order, qt.DeepEquals, []string{"high", "low"})
}
