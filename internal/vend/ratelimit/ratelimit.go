package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricecheck/internal/vend"
)

// MinInterval wraps a vendor and enforces a minimum time between fetches.
// Concurrent calls wait until the interval has elapsed since the last fetch,
// or return early if the context is canceled.
type MinInterval struct {
	V        vendor.Vendor
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.V.Name() }

func (m *MinInterval) FetchRaw(ctx context.Context, productCode string) (string, error) {
	if m.Interval > 0 {
		// simple gate: ensure at least Interval since last
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-t.C:
			}
		}
	}
	raw, err := m.V.FetchRaw(ctx, productCode)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return raw, err
}
