// Package dedupe remembers which match logs have already been claimed for
// import so the same (start time, arena) pair is stored once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Deduper claims match keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already claimed and claims it
	// when it was not. The check and the claim are atomic.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a claim so a failed import can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key returns the dedupe key of a match.
func Key(k model.MatchKey) string { return k.String() }

// claim is one remembered key in insertion order.
type claim struct {
	key        string
	prev, next *claim
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*claim
	oldest  *claim
	newest  *claim
	maxSize int
	size    atomic.Int64
	pool    sync.Pool
}

// NewInMemoryDeduper creates a deduper that keeps claims in memory. Claims
// are lost on restart; callers fall back to the match store for keys the
// deduper no longer remembers.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 100000}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]*claim)
	d.pool = sync.Pool{New: func() any { return &claim{} }}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.claims[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		d.remove(d.oldest)
	}

	c := d.pool.Get().(*claim)
	c.key = key
	c.prev = d.newest
	if d.newest != nil {
		d.newest.next = c
	}
	d.newest = c
	if d.oldest == nil {
		d.oldest = c
	}
	d.claims[key] = c
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.claims[key]; ok {
		d.remove(c)
	}
}

// remove unlinks c. d.mu must be held.
func (d *inMemoryDeduper) remove(c *claim) {
	if c == nil {
		return
	}
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		d.oldest = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		d.newest = c.prev
	}
	delete(d.claims, c.key)
	*c = claim{}
	d.pool.Put(c)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
