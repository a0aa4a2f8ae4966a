// Package queue carries raw match logs from the upload surface to the
// import workers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is one uploaded match log waiting to be imported.
type Job struct {
	ID         string
	Source     string
	Raw        []byte
	Mode       model.Mode // expected mode; ModeUnknown accepts whatever the log says
	Ranked     bool
	ReceivedAt time.Time
}

// NewJob stamps raw with a fresh id and receive time.
func NewJob(source string, raw []byte, mode model.Mode, ranked bool) Job {
	return Job{
		ID:         uuid.NewString(),
		Source:     source,
		Raw:        raw,
		Mode:       mode,
		Ranked:     ranked,
		ReceivedAt: time.Now().UTC(),
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed when the job was
	// not accepted.
	Enqueue(ctx context.Context, j Job) error
	// Dequeue returns a channel of jobs that closes when the queue does.
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	jobs       chan Job
	capacity   int
	byteBudget int64
	queued     atomic.Int64 // bytes of Raw currently buffered

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return ctx.Err()
	default:
	}

	size := int64(len(j.Raw))
	if used := q.queued.Add(size); q.byteBudget > 0 && used > q.byteBudget {
		q.queued.Add(-size)
		metrics.RecordQueueEnqueueError("byte_budget")
		return ErrFull
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		q.queued.Add(-size)
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			q.queued.Add(-int64(len(j.Raw)))
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Bytes reports the size of raw logs waiting in the queue.
func (q *InMemoryQueue) Bytes() int64 { return q.queued.Load() }

func (q *InMemoryQueue) Len(context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops intake. Jobs already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
