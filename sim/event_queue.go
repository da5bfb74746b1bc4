package sim

import "container/heap"

// eventEntry is one pending resumption: the process to wake, the time to wake
// it, and the continuation to run. seqID gives FIFO order among entries with
// equal time and rank.
type eventEntry struct {
	time    float64
	rank    int
	seqID   int64
	process *Process
	next    func(*Process)
}

// EventQueue is a min-heap ordered by (time, rank, seqID).
// Implements heap.Interface.
type EventQueue []*eventEntry

func (q EventQueue) Len() int { return len(q) }

// Less orders by time, then by the registration rank of the owning activity,
// then by scheduling sequence.
func (q EventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(*eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// schedule adds an entry to the queue.
func (q *EventQueue) schedule(e *eventEntry) {
	heap.Push(q, e)
}

// popNext removes and returns the earliest entry, or nil if empty.
func (q *EventQueue) popNext() *eventEntry {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*eventEntry)
}

// peek returns the earliest entry without removing it, or nil if empty.
func (q EventQueue) peek() *eventEntry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}
