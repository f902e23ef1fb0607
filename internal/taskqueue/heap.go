package taskqueue

import "container/heap"

// priorityQueue is a container/heap.Interface over *Task, ordering by
// descending Priority then ascending CreatedAt (FIFO within a priority
// band), with an index kept per element so Cancel can remove an
// arbitrary pending task in O(log n).
type priorityQueue struct {
	items []*Task
	index map[*Task]int
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	if pq.index != nil {
		pq.index[pq.items[i]] = i
		pq.index[pq.items[j]] = j
	}
}

func (pq *priorityQueue) Push(x any) {
	task := x.(*Task)
	if pq.index == nil {
		pq.index = make(map[*Task]int)
	}
	pq.index[task] = len(pq.items)
	pq.items = append(pq.items, task)
}

func (pq *priorityQueue) Pop() any {
	n := len(pq.items)
	task := pq.items[n-1]
	pq.items[n-1] = nil
	pq.items = pq.items[:n-1]
	delete(pq.index, task)
	return task
}

// remove drops task from the queue if present, using the index map to
// avoid a linear scan.
func (pq *priorityQueue) remove(task *Task) {
	i, ok := pq.index[task]
	if !ok {
		return
	}
	n := len(pq.items)
	pq.Swap(i, n-1)
	pq.items[n-1] = nil
	pq.items = pq.items[:n-1]
	delete(pq.index, task)
	if i < len(pq.items) {
		heap.Fix(pq, i)
	}
}
