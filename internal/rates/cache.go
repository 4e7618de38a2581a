package rates

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source yields the current rate snapshot.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// Cached decorates a Source with a TTL cache. Concurrent refreshes are
// coalesced so a burst of comparisons hits the feed once. The feed updates
// once per business day, so generous TTLs are safe.
type Cached struct {
	S   Source
	TTL time.Duration

	sf    singleflight.Group
	mu    sync.RWMutex
	snap  *Snapshot
	until time.Time
}

func (c *Cached) Fetch(ctx context.Context) (*Snapshot, error) {
	if c.TTL <= 0 {
		return c.S.Fetch(ctx)
	}

	c.mu.RLock()
	if c.snap != nil && time.Now().Before(c.until) {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do("rate", func() (any, error) {
		c.mu.RLock()
		if c.snap != nil && time.Now().Before(c.until) {
			snap := c.snap
			c.mu.RUnlock()
			return snap, nil
		}
		c.mu.RUnlock()

		snap, err := c.S.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = snap
		c.until = time.Now().Add(c.TTL)
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
