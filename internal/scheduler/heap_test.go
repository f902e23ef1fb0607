package scheduler

import (
	"container/heap"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestJobQueue_OrdersByPriorityThenFIFO(t *testing.T) {
	c := qt.New(t)
	now := time.Now()

	q := &jobQueue{}
	heap.Init(q)
	heap.Push(q, &queueItem{job: Job{Name: "b", Priority: 5}, enqueued: now})
	heap.Push(q, &queueItem{job: Job{Name: "a", Priority: 1}, enqueued: now.Add(time.Millisecond)})
	heap.Push(q, &queueItem{job: Job{Name: "c", Priority: 1}, enqueued: now})

	var order []string
	for q.Len() > 0 {
		item := heap.Pop(q).(*queueItem)
		order = append(order, item.job.Name)
	}
	c.Assert(order, qt.DeepEquals, []string{"c", "a", "b"})
}
