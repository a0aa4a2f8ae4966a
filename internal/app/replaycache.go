package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/okian/lasertrack/internal/domain/replay"
	"github.com/okian/lasertrack/pkg/metrics"
)

// replayCache memoizes replay scripts per match id. Concurrent misses for
// the same id share one computation. Eviction is first in, first out.
type replayCache struct {
	mu    sync.Mutex
	max   int
	items map[string]*replay.Script
	order []string
	group singleflight.Group
}

func newReplayCache(max int) *replayCache {
	return &replayCache{max: max, items: make(map[string]*replay.Script)}
}

func (c *replayCache) get(id string) (*replay.Script, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	return s, ok
}

func (c *replayCache) put(id string, s *replay.Script) {
	if c.max <= 0 || s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; ok {
		c.items[id] = s
		return
	}
	for len(c.order) >= c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[id] = s
	c.order = append(c.order, id)
}

func (c *replayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// load returns the cached script for id or computes it once with fn. The
// shared fill ignores cancellation of whichever caller started it; each
// caller stops waiting when its own ctx is done.
func (c *replayCache) load(ctx context.Context, id string, fn func(context.Context) (*replay.Script, error)) (*replay.Script, error) {
	if s, ok := c.get(id); ok {
		metrics.RecordReplayCacheHit()
		return s, nil
	}
	metrics.RecordReplayCacheMiss()
	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		s, err := fn(fillCtx)
		if err != nil {
			return nil, err
		}
		c.put(id, s)
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*replay.Script), nil
	}
}
