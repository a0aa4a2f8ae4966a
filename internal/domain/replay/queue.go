package replay

import "container/heap"

// pendingReup is a scheduled return to ACTIVE. seq must match the entity's
// current seq when popped, otherwise a later down superseded it.
type pendingReup struct {
	at    int64
	order int
	seq   uint64
}

// reupQueue is a min-heap on (at, order).
type reupQueue []pendingReup

func (q reupQueue) Len() int { return len(q) }

func (q reupQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	if q[i].order != q[j].order {
		return q[i].order < q[j].order
	}
	return q[i].seq < q[j].seq
}

func (q reupQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *reupQueue) Push(x any) { *q = append(*q, x.(pendingReup)) }

func (q *reupQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *reupQueue) schedule(r pendingReup) { heap.Push(q, r) }

func (q *reupQueue) peek() (pendingReup, bool) {
	if len(*q) == 0 {
		return pendingReup{}, false
	}
	return (*q)[0], true
}

func (q *reupQueue) next() pendingReup { return heap.Pop(q).(pendingReup) }
