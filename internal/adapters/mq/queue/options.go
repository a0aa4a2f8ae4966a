package queue

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of pending import jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithByteBudget caps the total size of raw logs held in the queue. A job
// that would exceed it is refused with ErrFull. Zero means no cap.
func WithByteBudget(n int64) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.byteBudget = n
		}
	}
}
