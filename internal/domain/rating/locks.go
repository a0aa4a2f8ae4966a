package rating

import (
	"sort"
	"sync"
	"time"

	"github.com/okian/lasertrack/pkg/metrics"
)

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// AccountLocks serializes rating mutation per account. Lock acquires every
// id in sorted order so overlapping matches cannot deadlock.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

// NewAccountLocks creates an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*accountLock)}
}

// Lock blocks until all ids are held and returns the release func.
func (l *AccountLocks) Lock(ids []string) func() {
	keys := append([]string(nil), ids...)
	sort.Strings(keys)
	keys = compact(keys)

	start := time.Now()
	held := make([]*accountLock, 0, len(keys))
	for _, k := range keys {
		al := l.acquire(k)
		al.mu.Lock()
		held = append(held, al)
	}
	metrics.RecordRatingLockWait(float64(time.Since(start).Milliseconds()))

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(keys[i])
		}
	}
}

// Len returns the number of ids currently referenced.
func (l *AccountLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *AccountLocks) acquire(id string) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	al, ok := l.locks[id]
	if !ok {
		al = &accountLock{}
		l.locks[id] = al
	}
	al.refs++
	return al
}

func (l *AccountLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	al := l.locks[id]
	al.refs--
	if al.refs == 0 {
		delete(l.locks, id)
	}
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
