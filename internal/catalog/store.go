package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store reads the catalog file on demand and keeps the parsed result for a
// TTL. A TTL of zero re-reads the file on every Get. Concurrent reloads are
// coalesced so a burst of comparisons parses the file once.
type Store struct {
	Path    string
	Columns Columns
	TTL     time.Duration

	sf    singleflight.Group
	mu    sync.RWMutex
	cache Catalog
	until time.Time
}

// Get returns the current catalog, reloading from disk when the cached copy
// has expired.
func (s *Store) Get(ctx context.Context) (Catalog, error) {
	if s.TTL > 0 {
		s.mu.RLock()
		if s.cache != nil && time.Now().Before(s.until) {
			c := s.cache
			s.mu.RUnlock()
			return c, nil
		}
		s.mu.RUnlock()
	}

	v, err, _ := s.sf.Do(s.Path, func() (any, error) {
		// Re-check under the flight: another caller may have refreshed.
		if s.TTL > 0 {
			s.mu.RLock()
			if s.cache != nil && time.Now().Before(s.until) {
				c := s.cache
				s.mu.RUnlock()
				return c, nil
			}
			s.mu.RUnlock()
		}
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog: open %s: %w", s.Path, err)
		}
		defer f.Close()
		cat, err := Load(f, s.Columns)
		if err != nil {
			return nil, err
		}
		if s.TTL > 0 {
			s.mu.Lock()
			s.cache = cat
			s.until = time.Now().Add(s.TTL)
			s.mu.Unlock()
		}
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Catalog), nil
}
