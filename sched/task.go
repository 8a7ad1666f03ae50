package sched

import (
	"container/heap"
	"time"
)

// Task is one scheduled execution. Repeating tasks reuse the same ID
// for every occurrence.
type Task struct {
	ID      int64
	Start   time.Time
	Running time.Duration
}

// taskHeap orders pending tasks by start time, earliest first. The
// ordering among tasks with equal start times is unspecified.
type taskHeap []Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].Start.Before(h[j].Start) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// removeByID deletes the pending occurrence of a task, if any. The
// linear scan is the price of cancellation against a binary heap.
func (h *taskHeap) removeByID(id int64) bool {
	for i := range *h {
		if (*h)[i].ID == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
